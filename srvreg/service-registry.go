package srvreg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Request represents the client's original HTTP request
type Request struct {
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	RemoteAddr string            `json:"remote_addr"`
	RequestID  string            `json:"request_id"` // Unique ID for the request
	Timestamp  time.Time         `json:"timestamp"`
}

// Response represents the computed response from a handler
type Response struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	Error      string            `json:"error,omitempty"`
}

// ParseBody attempts to parse the Response's Body field as JSON
// and returns the structured data or nil if parsing fails.
func (r *Response) ParseBody() interface{} {
	if r.Body == "" {
		return nil
	}

	var bodyMap map[string]interface{}
	if err := json.Unmarshal([]byte(r.Body), &bodyMap); err == nil {
		return bodyMap
	}

	var bodyArray []interface{}
	if err := json.Unmarshal([]byte(r.Body), &bodyArray); err == nil {
		return bodyArray
	}

	return nil
}

// ServiceHandler is a function type for service handlers
type ServiceHandler func(*Request) (*Response, error)

// RouteKey is used to uniquely identify a route
type RouteKey struct {
	Method string
	Path   string
}

// ServiceRegistry manages all service handlers
type ServiceRegistry struct {
	handlers    map[RouteKey]ServiceHandler
	exactRoutes map[RouteKey]bool // Whether a route is exact or pattern-based
	mu          sync.RWMutex
	sessions    *SessionManager
	logger      *log.Logger
}

// ConvertHTTPRequest converts an http.Request to Request
func ConvertHTTPRequest(r *http.Request, requestID string) (*Request, error) {
	// Extract headers
	headers := make(map[string]string)
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	// Read body if present
	body := ""
	if r.Body != nil {
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		raw := strings.TrimSpace(string(bodyBytes))
		body = compactJSON(raw)
	}

	return &Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		Headers:    headers,
		Body:       body,
		RemoteAddr: r.RemoteAddr,
		RequestID:  requestID,
		Timestamp:  time.Now(),
	}, nil
}

// NewServiceRegistry creates a new service registry
func NewServiceRegistry(sessions *SessionManager, logger *log.Logger) *ServiceRegistry {
	if logger == nil {
		logger = log.Default()
	}
	return &ServiceRegistry{
		handlers:    make(map[RouteKey]ServiceHandler),
		exactRoutes: make(map[RouteKey]bool),
		sessions:    sessions,
		logger:      logger,
	}
}

// RegisterHandler registers a new service handler
func (sr *ServiceRegistry) RegisterHandler(method, path string, isExactPath bool, handler ServiceHandler) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	key := RouteKey{Method: strings.ToUpper(method), Path: path}
	sr.handlers[key] = handler
	sr.exactRoutes[key] = isExactPath
}

// GetHandlerForPath finds the appropriate handler for a given path and a boolean of whether or not the handler was found
func (sr *ServiceRegistry) GetHandlerForPath(method, path string) (ServiceHandler, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	// Try exact match first
	key := RouteKey{Method: strings.ToUpper(method), Path: path}
	if handler, ok := sr.handlers[key]; ok {
		if sr.exactRoutes[key] {
			return handler, true
		}
	}

	// Try pattern matching
	for routeKey, handler := range sr.handlers {
		if routeKey.Method != strings.ToUpper(method) {
			continue
		}

		// Skip exact routes in pattern matching
		if sr.exactRoutes[routeKey] {
			continue
		}

		if matchPath(routeKey.Path, path) {
			return handler, true
		}
	}

	return nil, false
}

// matchPath does simple pattern matching for routes.
// It supports patterns like "/shipment/:id" matching "/shipment/SHP-001"
func matchPath(pattern, path string) bool {
	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")

	if len(patternParts) != len(pathParts) {
		return false
	}

	for i := range patternParts {
		if strings.HasPrefix(patternParts[i], ":") {
			// This is a parameter part, it matches anything
			continue
		}

		if patternParts[i] != pathParts[i] {
			return false
		}
	}

	return true
}

// RegisterDefaultServices sets up the loading-plan workflow endpoints
func (sr *ServiceRegistry) RegisterDefaultServices() {
	// Session lifecycle
	sr.RegisterHandler(
		"POST",
		"/shipment/:id/session",
		false,
		sr.OpenSessionHandler,
	)
	// Line item rows
	sr.RegisterHandler(
		"GET",
		"/shipment/:id/rows",
		false,
		sr.ListRowsHandler,
	)
	sr.RegisterHandler(
		"POST",
		"/shipment/:id/rows",
		false,
		sr.AddRowHandler,
	)
	sr.RegisterHandler(
		"PATCH",
		"/shipment/:id/rows/:rowID",
		false,
		sr.EditRowHandler,
	)
	sr.RegisterHandler(
		"DELETE",
		"/shipment/:id/rows/:rowID",
		false,
		sr.DeleteRowHandler,
	)
	sr.RegisterHandler(
		"POST",
		"/shipment/:id/rows/:rowID/split",
		false,
		sr.SplitRowHandler,
	)
	sr.RegisterHandler(
		"POST",
		"/shipment/:id/save",
		false,
		sr.SaveAllHandler,
	)
	// Containers
	sr.RegisterHandler(
		"POST",
		"/shipment/:id/containers",
		false,
		sr.AddContainersHandler,
	)
	sr.RegisterHandler(
		"DELETE",
		"/shipment/:id/containers/:containerID",
		false,
		sr.DeleteContainerHandler,
	)
	// Allocation workflow
	sr.RegisterHandler(
		"POST",
		"/shipment/:id/allocation/start",
		false,
		sr.StartAllocationHandler,
	)
	sr.RegisterHandler(
		"POST",
		"/shipment/:id/allocation/assign",
		false,
		sr.AutoAssignHandler,
	)
	sr.RegisterHandler(
		"POST",
		"/shipment/:id/allocation/reset",
		false,
		sr.ResetAllocationHandler,
	)
	sr.RegisterHandler(
		"GET",
		"/shipment/:id/allocation/summary",
		false,
		sr.SummaryHandler,
	)
}

// GenerateResponse executes the request and generates a response
func (req *Request) GenerateResponse(services *ServiceRegistry) (*Response, error) {
	handler, found := services.GetHandlerForPath(req.Method, req.Path)
	if !found {
		services.logger.Printf("no handler for %s %s", req.Method, req.Path)
		return &Response{
			StatusCode: http.StatusNotFound,
			Headers:    map[string]string{"Content-Type": "text/plain"},
			Body:       fmt.Sprintf("Service not found for %s %s", req.Method, req.Path),
		}, nil
	}

	return handler(req)
}

func compactJSON(body string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(body)); err != nil {
		// If it's not JSON, return trimmed original
		return strings.TrimSpace(body)
	}
	return buf.String()
}
