package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"time"

	service_registry "github.com/dclsuite/loadplan/srvreg"
)

// WebServer handles HTTP requests
type WebServer struct {
	httpAddr        string
	server          *http.Server
	logger          *log.Logger
	startTime       time.Time
	serviceRegistry *service_registry.ServiceRegistry
}

// ResponseInfo contains information about the response
type ResponseInfo struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type,omitempty"`
	BodyLength  int    `json:"body_length"`
}

// ClientResponse is the response format sent to clients
type ClientResponse struct {
	StatusCode int               `json:"-"` // Not included in JSON
	Headers    map[string]string `json:"-"` // Not included in JSON
	Body       interface{}       `json:"body"`
	RequestID  string            `json:"request_id"`
	Meta       ResponseInfo      `json:"meta"`
}

// NewWebServer creates a new web server
func NewWebServer(httpPort string, logger *log.Logger, serviceRegistry *service_registry.ServiceRegistry) *WebServer {
	if logger == nil {
		logger = log.Default()
	}
	mux := http.NewServeMux()

	server := &WebServer{
		httpAddr: ":" + httpPort,
		server: &http.Server{
			Addr:    ":" + httpPort,
			Handler: mux,
		},
		logger:          logger,
		startTime:       time.Now(),
		serviceRegistry: serviceRegistry,
	}

	// Register routes
	mux.HandleFunc("/", server.handleRoot)
	mux.HandleFunc("/health", server.handleHealth)
	// Shipment workflow endpoints go through the service registry
	mux.HandleFunc("/shipment/", server.handleShipmentAPI)

	return server
}

// Start starts the web server
func (ws *WebServer) Start() error {
	ws.logger.Printf("Starting web server on %s", ws.httpAddr)
	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Printf("web server error: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the web server
func (ws *WebServer) Shutdown(ctx context.Context) error {
	ws.logger.Println("Shutting down web server")
	return ws.server.Shutdown(ctx)
}

// handleRoot shows a minimal service banner
func (ws *WebServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path != "/" {
		JSONError(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte("<h1>Loading Plan Service</h1>"))
	w.Write([]byte("<p>Shipment booking workflow endpoints live under /shipment/</p>"))
}

// handleHealth reports uptime
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(ws.startTime).String(),
	}
	w.Header().Set("Content-Type", "application/json")
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(info); err != nil {
		JSONError(w, "Error encoding response: "+err.Error(), http.StatusInternalServerError)
	}
}

// handleShipmentAPI routes shipment workflow requests through the service
// registry
func (ws *WebServer) handleShipmentAPI(w http.ResponseWriter, r *http.Request) {
	requestID, err := generateRequestID()
	if err != nil {
		JSONError(w, "Internal Server Error", http.StatusInternalServerError)
		ws.logger.Printf("Failed to generate request ID: %v", err)
		return
	}

	request, err := service_registry.ConvertHTTPRequest(r, requestID)
	if err != nil {
		JSONError(w, "Failed to convert request: "+err.Error(), http.StatusUnprocessableEntity)
		ws.logger.Printf("Failed to convert HTTP request: %v", err)
		return
	}

	response, err := request.GenerateResponse(ws.serviceRegistry)
	if response == nil {
		JSONError(w, "Failed to generate response: "+err.Error(), http.StatusInternalServerError)
		ws.logger.Printf("Failed to generate response: %v", err)
		return
	}
	if err != nil {
		// Handlers report operation failures in the response body; the
		// error is for the log only.
		ws.logger.Printf("%s %s failed: %v", request.Method, request.Path, err)
	}

	apiResponse := ClientResponse{
		StatusCode: response.StatusCode,
		Headers:    response.Headers,
		Body:       response.ParseBody(),
		RequestID:  requestID,
		Meta: ResponseInfo{
			StatusCode:  response.StatusCode,
			ContentType: response.Headers["Content-Type"],
			BodyLength:  len(response.Body),
		},
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(response.StatusCode)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(apiResponse); err != nil {
		ws.logger.Printf("Failed to encode client response: %v", err)
	}

	ws.logger.Printf("%s %s -> %d", request.Method, request.Path, response.StatusCode)
}

func generateRequestID() (string, error) {
	bytes := make([]byte, 16)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// JSONError sends a JSON formatted error response with the given status code and message
func JSONError(w http.ResponseWriter, message string, statusCode int) {
	errorResponse := struct {
		Error string `json:"error"`
	}{
		Error: message,
	}
	jsonBytes, err := json.Marshal(errorResponse)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(jsonBytes)
}
