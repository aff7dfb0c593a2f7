package srvreg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dclsuite/loadplan/planner"
	"github.com/dclsuite/loadplan/repository"
	"github.com/dclsuite/loadplan/repository/models"
)

var defaultHeaders = map[string]string{"Content-Type": "application/json"}

// jsonResponse marshals v as the response body.
func jsonResponse(status int, v any) *Response {
	data, err := json.Marshal(v)
	if err != nil {
		return &Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    defaultHeaders,
			Body:       `{"error":"Failed to encode response"}`,
		}
	}
	return &Response{
		StatusCode: status,
		Headers:    defaultHeaders,
		Body:       string(data),
	}
}

func errorResponse(status int, format string, args ...any) *Response {
	return jsonResponse(status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

// statusForError maps a store failure to an HTTP status.
func statusForError(err error) int {
	var repoErr *repository.RepositoryError
	if errors.As(err, &repoErr) {
		switch repoErr.Code {
		case repository.ErrEntityNotFound:
			return http.StatusNotFound
		case repository.ErrInvalidState:
			return http.StatusConflict
		case repository.ErrNetwork, repository.ErrStoreRejected, repository.ErrReadbackTimeout:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

// pathPart returns the path segment at index, or "" when the path is too
// short. Routes here are flat enough that positional access suffices.
func pathPart(path string, index int) string {
	parts := strings.Split(path, "/")
	if index >= len(parts) {
		return ""
	}
	return parts[index]
}

// hasErrorNotice reports whether any notice carries the error level; used
// to turn precondition failures into 4xx responses.
func hasErrorNotice(notices []planner.Notice) bool {
	for _, n := range notices {
		if n.Level == planner.LevelError {
			return true
		}
	}
	return false
}

// OpenSessionHandler loads (or reloads) the editing session for a shipment
// and returns its current state.
func (sr *ServiceRegistry) OpenSessionHandler(req *Request) (*Response, error) {
	shipmentID := pathPart(req.Path, 2)
	if shipmentID == "" {
		return errorResponse(http.StatusBadRequest, "shipment id is required"), fmt.Errorf("invalid path format")
	}

	session, err := sr.sessions.Reload(context.Background(), shipmentID)
	if err != nil {
		sr.logger.Printf("session load failed for shipment %s: %v", shipmentID, err)
		return errorResponse(statusForError(err), "failed to load shipment: %s", err.Error()), err
	}

	return jsonResponse(http.StatusOK, map[string]any{
		"shipmentId": shipmentID,
		"rows":       session.LineItems(),
		"containers": session.Containers(),
		"totals":     session.Totals(),
	}), nil
}

// ListRowsHandler returns the current rows and totals.
func (sr *ServiceRegistry) ListRowsHandler(req *Request) (*Response, error) {
	shipmentID := pathPart(req.Path, 2)
	session, release, err := sr.sessions.Acquire(context.Background(), shipmentID)
	if err != nil {
		return errorResponse(statusForError(err), "failed to load shipment: %s", err.Error()), err
	}
	defer release()

	return jsonResponse(http.StatusOK, map[string]any{
		"rows":   session.LineItems(),
		"totals": session.Totals(),
	}), nil
}

type addRowBody struct {
	OrderNumber      string  `json:"orderNumber"`
	ItemCode         string  `json:"itemCode"`
	Description      string  `json:"description"`
	PackagingDetails string  `json:"packagingDetails"`
	PackType         string  `json:"packType"`
	ReleaseStatus    int     `json:"releaseStatus"`
	OrderedQuantity  float64 `json:"orderedQuantity"`
	LoadedQuantity   float64 `json:"loadedQuantity"`
	IsPalletized     bool    `json:"isPalletized"`
	PalletCount      int     `json:"palletCount"`
}

// AddRowHandler creates a new loading-plan row; derived fields are computed
// server-side.
func (sr *ServiceRegistry) AddRowHandler(req *Request) (*Response, error) {
	shipmentID := pathPart(req.Path, 2)
	var body addRowBody
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		sr.logger.Printf("failed to parse body: %v", err)
		return errorResponse(http.StatusUnprocessableEntity, "invalid body format: %s", err.Error()), fmt.Errorf("invalid body format")
	}
	if body.ItemCode == "" {
		return errorResponse(http.StatusBadRequest, "itemCode is required"), fmt.Errorf("itemCode is required")
	}

	session, release, err := sr.sessions.Acquire(context.Background(), shipmentID)
	if err != nil {
		return errorResponse(statusForError(err), "failed to load shipment: %s", err.Error()), err
	}
	defer release()

	item := &planner.LineItem{
		OrderNumber:      body.OrderNumber,
		ItemCode:         body.ItemCode,
		Description:      body.Description,
		PackagingDetails: body.PackagingDetails,
		PackType:         body.PackType,
		ReleaseStatus:    body.ReleaseStatus,
		OrderedQuantity:  body.OrderedQuantity,
		LoadedQuantity:   body.LoadedQuantity,
		IsPalletized:     body.IsPalletized,
		PalletCount:      body.PalletCount,
	}
	notices, err := session.AddLineItem(context.Background(), item)
	if err != nil {
		return jsonResponse(statusForError(err), map[string]any{"notices": notices}), err
	}
	if hasErrorNotice(notices) {
		return jsonResponse(http.StatusBadRequest, map[string]any{"notices": notices}), nil
	}
	return jsonResponse(http.StatusCreated, map[string]any{"row": item, "notices": notices}), nil
}

type editRowBody struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// EditRowHandler applies one field edit with its override cascade.
func (sr *ServiceRegistry) EditRowHandler(req *Request) (*Response, error) {
	shipmentID := pathPart(req.Path, 2)
	rowID := pathPart(req.Path, 4)

	var body editRowBody
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		sr.logger.Printf("failed to parse body: %v", err)
		return errorResponse(http.StatusUnprocessableEntity, "invalid body format: %s", err.Error()), fmt.Errorf("invalid body format")
	}
	if body.Field == "" {
		return errorResponse(http.StatusBadRequest, "field is required"), fmt.Errorf("field is required")
	}
	value, ok := body.Value.(string)
	if !ok {
		value = fmt.Sprintf("%v", body.Value)
	}

	session, release, err := sr.sessions.Acquire(context.Background(), shipmentID)
	if err != nil {
		return errorResponse(statusForError(err), "failed to load shipment: %s", err.Error()), err
	}
	defer release()

	notices, err := session.EditLineItemField(context.Background(), rowID, body.Field, value)
	if err != nil {
		return jsonResponse(statusForError(err), map[string]any{"notices": notices}), err
	}
	if hasErrorNotice(notices) {
		return jsonResponse(http.StatusBadRequest, map[string]any{"notices": notices}), nil
	}
	return jsonResponse(http.StatusOK, map[string]any{"notices": notices, "totals": session.Totals()}), nil
}

// DeleteRowHandler removes a row and its allocation records.
func (sr *ServiceRegistry) DeleteRowHandler(req *Request) (*Response, error) {
	shipmentID := pathPart(req.Path, 2)
	rowID := pathPart(req.Path, 4)

	session, release, err := sr.sessions.Acquire(context.Background(), shipmentID)
	if err != nil {
		return errorResponse(statusForError(err), "failed to load shipment: %s", err.Error()), err
	}
	defer release()

	notices, err := session.DeleteLineItem(context.Background(), rowID)
	if err != nil {
		return jsonResponse(statusForError(err), map[string]any{"notices": notices}), err
	}
	if hasErrorNotice(notices) {
		return jsonResponse(http.StatusNotFound, map[string]any{"notices": notices}), nil
	}
	return jsonResponse(http.StatusOK, map[string]any{"notices": notices, "totals": session.Totals()}), nil
}

type splitRowBody struct {
	Quantities []float64 `json:"quantities"`
	Parts      int       `json:"parts"`
	Size       float64   `json:"size"`
}

// SplitRowHandler divides a row by explicit quantities, into equal parts,
// or into fixed-size chunks. Exactly one mode must be supplied.
func (sr *ServiceRegistry) SplitRowHandler(req *Request) (*Response, error) {
	shipmentID := pathPart(req.Path, 2)
	rowID := pathPart(req.Path, 4)

	var body splitRowBody
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		sr.logger.Printf("failed to parse body: %v", err)
		return errorResponse(http.StatusUnprocessableEntity, "invalid body format: %s", err.Error()), fmt.Errorf("invalid body format")
	}

	modes := 0
	if len(body.Quantities) > 0 {
		modes++
	}
	if body.Parts > 0 {
		modes++
	}
	if body.Size > 0 {
		modes++
	}
	if modes != 1 {
		return errorResponse(http.StatusBadRequest, "provide exactly one of quantities, parts or size"), fmt.Errorf("ambiguous split request")
	}

	session, release, err := sr.sessions.Acquire(context.Background(), shipmentID)
	if err != nil {
		return errorResponse(statusForError(err), "failed to load shipment: %s", err.Error()), err
	}
	defer release()

	var loaded float64
	for _, li := range session.LineItems() {
		if li.ID == rowID {
			loaded = li.LoadedQuantity
		}
	}

	dist := body.Quantities
	switch {
	case body.Parts > 0:
		dist = planner.EqualDistribution(loaded, body.Parts)
	case body.Size > 0:
		dist = planner.FixedSizeDistribution(loaded, body.Size)
	}

	result, notices, err := session.SplitLineItem(context.Background(), rowID, dist)
	if err != nil {
		return jsonResponse(statusForError(err), map[string]any{"notices": notices}), err
	}
	if result == nil {
		return jsonResponse(http.StatusBadRequest, map[string]any{"notices": notices}), nil
	}
	return jsonResponse(http.StatusOK, map[string]any{"result": result, "notices": notices}), nil
}

// SaveAllHandler persists every row in batches.
func (sr *ServiceRegistry) SaveAllHandler(req *Request) (*Response, error) {
	shipmentID := pathPart(req.Path, 2)
	session, release, err := sr.sessions.Acquire(context.Background(), shipmentID)
	if err != nil {
		return errorResponse(statusForError(err), "failed to load shipment: %s", err.Error()), err
	}
	defer release()

	notices, err := session.SaveAll(context.Background())
	if err != nil {
		return jsonResponse(statusForError(err), map[string]any{"notices": notices}), err
	}
	return jsonResponse(http.StatusOK, map[string]any{"notices": notices, "totals": session.Totals()}), nil
}

type addContainersBody struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// AddContainersHandler books containers of one type.
func (sr *ServiceRegistry) AddContainersHandler(req *Request) (*Response, error) {
	shipmentID := pathPart(req.Path, 2)
	var body addContainersBody
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		sr.logger.Printf("failed to parse body: %v", err)
		return errorResponse(http.StatusUnprocessableEntity, "invalid body format: %s", err.Error()), fmt.Errorf("invalid body format")
	}

	session, release, err := sr.sessions.Acquire(context.Background(), shipmentID)
	if err != nil {
		return errorResponse(statusForError(err), "failed to load shipment: %s", err.Error()), err
	}
	defer release()

	notices, err := session.AddContainers(context.Background(), models.ContainerType(body.Type), body.Count)
	if err != nil {
		return jsonResponse(statusForError(err), map[string]any{"notices": notices}), err
	}
	if hasErrorNotice(notices) {
		return jsonResponse(http.StatusBadRequest, map[string]any{"notices": notices}), nil
	}
	return jsonResponse(http.StatusCreated, map[string]any{"notices": notices, "containers": session.Containers()}), nil
}

// DeleteContainerHandler removes a container, unassigning its items first.
func (sr *ServiceRegistry) DeleteContainerHandler(req *Request) (*Response, error) {
	shipmentID := pathPart(req.Path, 2)
	containerID := pathPart(req.Path, 4)

	session, release, err := sr.sessions.Acquire(context.Background(), shipmentID)
	if err != nil {
		return errorResponse(statusForError(err), "failed to load shipment: %s", err.Error()), err
	}
	defer release()

	notices, err := session.DeleteContainer(context.Background(), containerID)
	if err != nil {
		return jsonResponse(statusForError(err), map[string]any{"notices": notices}), err
	}
	if hasErrorNotice(notices) {
		return jsonResponse(http.StatusNotFound, map[string]any{"notices": notices}), nil
	}
	return jsonResponse(http.StatusOK, map[string]any{"notices": notices, "containers": session.Containers()}), nil
}

// StartAllocationHandler reconciles the allocation records with the rows.
func (sr *ServiceRegistry) StartAllocationHandler(req *Request) (*Response, error) {
	shipmentID := pathPart(req.Path, 2)
	session, release, err := sr.sessions.Acquire(context.Background(), shipmentID)
	if err != nil {
		return errorResponse(statusForError(err), "failed to load shipment: %s", err.Error()), err
	}
	defer release()

	report, err := session.Reconcile(context.Background())
	if err != nil {
		return jsonResponse(statusForError(err), map[string]any{"report": report}), err
	}
	return jsonResponse(http.StatusOK, map[string]any{"report": report}), nil
}

// AutoAssignHandler distributes unassigned items across containers.
func (sr *ServiceRegistry) AutoAssignHandler(req *Request) (*Response, error) {
	shipmentID := pathPart(req.Path, 2)
	session, release, err := sr.sessions.Acquire(context.Background(), shipmentID)
	if err != nil {
		return errorResponse(statusForError(err), "failed to load shipment: %s", err.Error()), err
	}
	defer release()

	notices, err := session.AutoAssign(context.Background())
	if err != nil {
		return jsonResponse(statusForError(err), map[string]any{"notices": notices}), err
	}
	return jsonResponse(http.StatusOK, map[string]any{
		"notices": notices,
		"summary": session.Summary(),
	}), nil
}

// ResetAllocationHandler clears every container assignment.
func (sr *ServiceRegistry) ResetAllocationHandler(req *Request) (*Response, error) {
	shipmentID := pathPart(req.Path, 2)
	session, release, err := sr.sessions.Acquire(context.Background(), shipmentID)
	if err != nil {
		return errorResponse(statusForError(err), "failed to load shipment: %s", err.Error()), err
	}
	defer release()

	notices, err := session.ResetAssignments(context.Background())
	if err != nil {
		return jsonResponse(statusForError(err), map[string]any{"notices": notices}), err
	}
	return jsonResponse(http.StatusOK, map[string]any{"notices": notices}), nil
}

// SummaryHandler reports per-container utilization.
func (sr *ServiceRegistry) SummaryHandler(req *Request) (*Response, error) {
	shipmentID := pathPart(req.Path, 2)
	session, release, err := sr.sessions.Acquire(context.Background(), shipmentID)
	if err != nil {
		return errorResponse(statusForError(err), "failed to load shipment: %s", err.Error()), err
	}
	defer release()

	return jsonResponse(http.StatusOK, map[string]any{
		"summary": session.Summary(),
		"totals":  session.Totals(),
	}), nil
}
