// Package remote implements the store contract against the hosted record
// store's HTTP protocol: a generic request executor, transparent nextLink
// paging, navigation-property binding for foreign keys, and a bounded-retry
// read-back for creates whose responses omit the new id.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dclsuite/loadplan/repository"
)

const (
	readbackAttempts = 5
	readbackDelay    = 600 * time.Millisecond
)

// TokenProvider supplies the bearer token for each request. Token
// acquisition itself is outside this package.
type TokenProvider func(ctx context.Context) (string, error)

// StaticToken wraps a fixed token as a provider.
func StaticToken(token string) TokenProvider {
	return func(context.Context) (string, error) { return token, nil }
}

// Client is the thin HTTP client for the record store.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenProvider
}

// NewClient creates a store client. baseURL is the entity-set root, e.g.
// "https://org.example.com/api/data".
func NewClient(baseURL string, timeout time.Duration, token TokenProvider) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		token: token,
	}
}

// Request is one generic store request.
type Request struct {
	Method  string
	Path    string // relative ("/containers") or absolute (a nextLink)
	Body    any
	Headers map[string]string
}

// Envelope is the typed list-response shape. Decoding fails loudly when
// the payload does not carry a "value" array; there is no fallback to
// treating the body itself as the list.
type Envelope struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"nextLink"`
}

// Do executes one request and returns the raw body, the response headers
// and the HTTP status.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, http.Header, int, *repository.RepositoryError) {
	url := req.Path
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = c.baseURL + req.Path
	}

	var bodyReader io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, nil, 0, &repository.RepositoryError{
				Code:    repository.ErrRequest,
				Message: "failed to encode request body",
				Detail:  err.Error(),
			}
		}
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, nil, 0, &repository.RepositoryError{
			Code:    repository.ErrRequest,
			Message: "failed to build request",
			Detail:  err.Error(),
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return nil, nil, 0, &repository.RepositoryError{
				Code:    repository.ErrRequest,
				Message: "failed to acquire token",
				Detail:  err.Error(),
			}
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, 0, &repository.RepositoryError{
			Code:    repository.ErrNetwork,
			Message: "store request failed",
			Detail:  err.Error(),
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, resp.StatusCode, &repository.RepositoryError{
			Code:    repository.ErrNetwork,
			Message: "failed to read store response",
			Detail:  err.Error(),
		}
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, resp.Header, resp.StatusCode, &repository.RepositoryError{
			Code:    repository.ErrEntityNotFound,
			Message: "record does not exist",
			Detail:  fmt.Sprintf("%s %s returned 404", req.Method, req.Path),
		}
	}
	if resp.StatusCode >= 400 {
		return nil, resp.Header, resp.StatusCode, &repository.RepositoryError{
			Code:    repository.ErrStoreRejected,
			Message: fmt.Sprintf("store rejected %s %s", req.Method, req.Path),
			Detail:  fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
		}
	}
	return data, resp.Header, resp.StatusCode, nil
}

// decodeEnvelope parses a list response, failing loudly on any shape that
// is not an object with a "value" array.
func decodeEnvelope(data []byte) (*Envelope, *repository.RepositoryError) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &repository.RepositoryError{
			Code:    repository.ErrParse,
			Message: "store response is not a JSON object",
			Detail:  err.Error(),
		}
	}
	if _, ok := probe["value"]; !ok {
		return nil, &repository.RepositoryError{
			Code:    repository.ErrParse,
			Message: "store response has no value array",
			Detail:  fmt.Sprintf("keys: %v", mapKeys(probe)),
		}
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &repository.RepositoryError{
			Code:    repository.ErrParse,
			Message: "failed to decode list envelope",
			Detail:  err.Error(),
		}
	}
	return &env, nil
}

// FetchAll pages through a list endpoint until nextLink is exhausted.
func (c *Client) FetchAll(ctx context.Context, path string) ([]json.RawMessage, *repository.RepositoryError) {
	var all []json.RawMessage
	next := path
	for next != "" {
		data, _, _, repoErr := c.Do(ctx, Request{Method: http.MethodGet, Path: next})
		if repoErr != nil {
			return nil, repoErr
		}
		env, repoErr := decodeEnvelope(data)
		if repoErr != nil {
			return nil, repoErr
		}
		all = append(all, env.Value...)
		next = env.NextLink
	}
	return all, nil
}

// extractEntityID pulls the record id out of an OData-EntityId/Location
// header value like ".../containers(CON-123)".
func extractEntityID(header http.Header) string {
	raw := header.Get("OData-EntityId")
	if raw == "" {
		raw = header.Get("Location")
	}
	open := strings.LastIndex(raw, "(")
	close := strings.LastIndex(raw, ")")
	if open == -1 || close == -1 || close <= open+1 {
		return ""
	}
	return raw[open+1 : close]
}

func mapKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
