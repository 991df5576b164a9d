package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ironsheep/colony-counter-mcp/internal/batch"
	"github.com/ironsheep/colony-counter-mcp/internal/config"
	"github.com/ironsheep/colony-counter-mcp/internal/export"
	"github.com/ironsheep/colony-counter-mcp/internal/imaging"
	"github.com/ironsheep/colony-counter-mcp/internal/logger"
	"github.com/ironsheep/colony-counter-mcp/internal/metadata"
	"github.com/ironsheep/colony-counter-mcp/internal/session"
	"github.com/ironsheep/colony-counter-mcp/internal/store"
	"github.com/ironsheep/colony-counter-mcp/internal/workspace"
)

// Version is reported in the initialize response.
var Version = "0.1.0"

// eventBuffer is the number of blob change events held for the client
// before new ones are dropped.
const eventBuffer = 256

// Server handles MCP protocol communication
type Server struct {
	cfg       *config.Config
	workspace *workspace.Workspace
	events    *session.ChannelObserver
	style     export.OverlayStyle

	storeMu sync.Mutex
	store   *store.Store

	outMu sync.Mutex
	enc   *json.Encoder
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// New creates a server for cfg. A nil cfg uses config.Default().
func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	resolver, err := metadata.NewFilenameResolver(cfg.Export.DefaultDilution)
	if err != nil {
		return nil, err
	}
	overlay, err := imaging.ParseHexColor(cfg.Export.OverlayColor)
	if err != nil {
		return nil, err
	}

	events := session.NewChannelObserver(eventBuffer)
	ws := workspace.New(workspace.Options{
		Cache:       imaging.NewImageCache(cfg.Cache.MaxImages),
		Resolver:    resolver,
		Coordinator: batch.NewCoordinator(cfg.Batch.Workers),
		Session: session.Options{
			NewBlobRadius: cfg.Session.NewBlobRadius,
			MaxHistory:    cfg.Session.MaxHistory,
			Observer:      session.Observers{events, session.LoggingObserver{}},
		},
	})

	return &Server{
		cfg:       cfg,
		workspace: ws,
		events:    events,
		style:     export.OverlayStyle{Color: overlay, Thickness: cfg.Export.OverlayThickness},
	}, nil
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC message per line from r and writes responses and
// notifications to w until r is exhausted.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	s.outMu.Lock()
	s.enc = json.NewEncoder(w)
	s.outMu.Unlock()

	done := make(chan struct{})
	var forwarding sync.WaitGroup
	forwarding.Add(1)
	go func() {
		defer forwarding.Done()
		s.forwardEvents(done)
	}()
	defer func() {
		close(done)
		forwarding.Wait()
	}()

	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			logger.WithError(err).Warn("Failed to parse request")
			continue
		}

		if resp := s.handleRequest(&req); resp != nil {
			s.send(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// Close releases the count store, if one was opened.
func (s *Server) Close() error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

// send writes one message. Responses and notifications come from different
// goroutines, so writes are serialised.
func (s *Server) send(v interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.enc == nil {
		return
	}
	if err := s.enc.Encode(v); err != nil {
		logger.WithError(err).Warn("Failed to encode message")
	}
}

func (s *Server) notify(method string, params interface{}) {
	s.send(&MCPNotification{JSONRPC: "2.0", Method: method, Params: params})
}

// forwardEvents turns session change events into notifications until done
// is closed, then flushes whatever is still buffered.
func (s *Server) forwardEvents(done <-chan struct{}) {
	for {
		select {
		case e := <-s.events.Events():
			s.notify("notifications/colony/blobs_changed", e)
		case <-done:
			for {
				select {
				case e := <-s.events.Events():
					s.notify("notifications/colony/blobs_changed", e)
				default:
					return
				}
			}
		}
	}
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "colony-counter-mcp",
				"version": Version,
			},
		},
	}
}

// openStore opens the count database on first use.
func (s *Server) openStore() (*store.Store, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	if s.store != nil {
		return s.store, nil
	}

	path := s.cfg.Export.Database
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	logger.WithField("path", path).Info("Opened count store")
	s.store = st
	return st, nil
}

// outputDir resolves the export directory. A relative directory is placed
// inside the loaded image folder.
func (s *Server) outputDir(override string) string {
	dir := s.cfg.Export.OutputDir
	if override != "" {
		dir = override
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(s.workspace.Dir(), dir)
}
