package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/ironsheep/colony-counter-mcp/internal/apperr"
	"github.com/ironsheep/colony-counter-mcp/internal/batch"
	"github.com/ironsheep/colony-counter-mcp/internal/detection"
	"github.com/ironsheep/colony-counter-mcp/internal/export"
	"github.com/ironsheep/colony-counter-mcp/internal/logger"
	"github.com/ironsheep/colony-counter-mcp/internal/metadata"
	"github.com/ironsheep/colony-counter-mcp/internal/session"
)

// errNoImages is returned by tools that need a loaded folder.
var errNoImages = errors.New("no images loaded; call colony_load_folder first")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "colony_detect").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`

	// Meta carries the optional progress token of long-running calls.
	Meta *struct {
		ProgressToken interface{} `json:"progressToken,omitempty"`
	} `json:"_meta,omitempty"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Malformed arguments and invalid detection parameters return code -32602;
// any other tool failure returns -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	var token interface{}
	if params.Meta != nil {
		token = params.Meta.ProgressToken
	}

	result, err := s.executeTool(params.Name, params.Arguments, token)
	if err != nil {
		logger.WithField("tool", params.Name).WithError(err).Debug("Tool call failed")
		if isInvalidParams(err) {
			return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
		}
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
// progressToken is echoed in progress notifications of batch calls.
func (s *Server) executeTool(name string, args json.RawMessage, progressToken interface{}) (interface{}, error) {
	switch name {
	// Image Set
	case "colony_load_folder":
		return s.handleLoadFolder(args)
	case "colony_list":
		return s.handleList(args)
	case "colony_blobs":
		return s.handleBlobs(args)

	// Detection
	case "colony_detect":
		return s.handleDetect(args)
	case "colony_detect_all":
		return s.handleDetectAll(args, progressToken)

	// Editing
	case "colony_toggle":
		return s.handleToggle(args)
	case "colony_undo":
		return s.handleHistoryStep(args, session.Undo)
	case "colony_redo":
		return s.handleHistoryStep(args, session.Redo)
	case "colony_adjust_radius":
		return s.handleAdjustRadius(args)

	// Export
	case "colony_export_xml":
		return s.handleExportXML(args)
	case "colony_export_images":
		return s.handleExportImages(args)
	case "colony_export_excel":
		return s.handleExportExcel(args)
	case "colony_save_counts":
		return s.handleSaveCounts(args)
	case "colony_sample_totals":
		return s.handleSampleTotals(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func isInvalidParams(err error) bool {
	var (
		syntax   *json.SyntaxError
		mismatch *json.UnmarshalTypeError
	)
	return apperr.IsKind(err, apperr.KindInvalidParameter) ||
		errors.As(err, &syntax) || errors.As(err, &mismatch)
}

// decodeArgs unmarshals tool arguments. Missing arguments decode as an
// empty object.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	return json.Unmarshal(args, v)
}

// params overlays the given partial parameter set on the configured one.
func (s *Server) params(raw json.RawMessage) (detection.Params, error) {
	p := s.cfg.Detection
	if err := decodeArgs(raw, &p); err != nil {
		return p, err
	}
	return p, p.Validate()
}

// === Result Types ===

type sessionSummary struct {
	ID            string            `json:"id"`
	Source        string            `json:"source"`
	Label         string            `json:"label"`
	Day           *int              `json:"day,omitempty"`
	Sample        *int              `json:"sample,omitempty"`
	Dilution      metadata.Dilution `json:"dilution,omitempty"`
	Count         int               `json:"count"`
	Detected      bool              `json:"detected"`
	UndoDepth     int               `json:"undo_depth"`
	RedoDepth     int               `json:"redo_depth"`
	NewBlobRadius float64           `json:"new_blob_radius"`
}

func summarize(sess *session.Session) sessionSummary {
	info := sess.Info()
	_, detected := sess.Params()
	undo, redo := sess.HistoryDepth()
	return sessionSummary{
		ID:            sess.ID(),
		Source:        sess.Source(),
		Label:         info.Label,
		Day:           info.Day,
		Sample:        info.Sample,
		Dilution:      info.Dilution,
		Count:         sess.Count(),
		Detected:      detected,
		UndoDepth:     undo,
		RedoDepth:     redo,
		NewBlobRadius: sess.NewBlobRadius(),
	}
}

func summarizeAll(sessions []*session.Session) []sessionSummary {
	out := make([]sessionSummary, len(sessions))
	for i, sess := range sessions {
		out[i] = summarize(sess)
	}
	return out
}

type blobsResult struct {
	Session string           `json:"session"`
	Count   int              `json:"count"`
	Blobs   []detection.Blob `json:"blobs"`
}

// errorStrings flattens a combined error for JSON output.
func errorStrings(err error) []string {
	errs := multierr.Errors(err)
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}

// === Image Set Handlers ===

type loadFolderArgs struct {
	Path string `json:"path"`
}

type loadFolderResult struct {
	Dir      string           `json:"dir"`
	Sessions []sessionSummary `json:"sessions"`
	Errors   []string         `json:"errors,omitempty"`
}

func (s *Server) handleLoadFolder(args json.RawMessage) (interface{}, error) {
	var a loadFolderArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, apperr.InvalidParameter("path", "is required")
	}

	sessions, err := s.workspace.LoadFolder(a.Path)
	if sessions == nil && err != nil {
		return nil, err
	}
	return loadFolderResult{
		Dir:      a.Path,
		Sessions: summarizeAll(sessions),
		Errors:   errorStrings(err),
	}, nil
}

func (s *Server) handleList(json.RawMessage) (interface{}, error) {
	return map[string]interface{}{
		"dir":      s.workspace.Dir(),
		"sessions": summarizeAll(s.workspace.Sessions()),
	}, nil
}

type sessionArgs struct {
	Session string `json:"session"`
}

// lookup decodes args and resolves the session they name.
func (s *Server) lookup(args json.RawMessage, a interface{ sessionID() string }) (*session.Session, error) {
	if err := decodeArgs(args, a); err != nil {
		return nil, err
	}
	id := a.sessionID()
	if id == "" {
		return nil, apperr.InvalidParameter("session", "is required")
	}
	return s.workspace.Session(id)
}

func (a *sessionArgs) sessionID() string { return a.Session }

func (s *Server) handleBlobs(args json.RawMessage) (interface{}, error) {
	var a sessionArgs
	sess, err := s.lookup(args, &a)
	if err != nil {
		return nil, err
	}
	blobs := sess.Blobs()
	return blobsResult{Session: sess.ID(), Count: len(blobs), Blobs: blobs}, nil
}

// === Detection Handlers ===

type detectArgs struct {
	sessionArgs
	Params json.RawMessage `json:"params,omitempty"`
}

func (s *Server) handleDetect(args json.RawMessage) (interface{}, error) {
	var a detectArgs
	sess, err := s.lookup(args, &a)
	if err != nil {
		return nil, err
	}
	p, err := s.params(a.Params)
	if err != nil {
		return nil, err
	}
	if err := sess.Detect(p); err != nil {
		return nil, err
	}
	blobs := sess.Blobs()
	return blobsResult{Session: sess.ID(), Count: len(blobs), Blobs: blobs}, nil
}

type detectAllArgs struct {
	Params  json.RawMessage `json:"params,omitempty"`
	Timeout string          `json:"timeout,omitempty"`
}

type detectAllResult struct {
	Batch    batch.Result     `json:"batch"`
	Errors   []string         `json:"errors,omitempty"`
	Sessions []sessionSummary `json:"sessions"`
}

func (s *Server) handleDetectAll(args json.RawMessage, progressToken interface{}) (interface{}, error) {
	var a detectAllArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	p, err := s.params(a.Params)
	if err != nil {
		return nil, err
	}

	timeout := s.cfg.Batch.Timeout.Duration
	if a.Timeout != "" {
		timeout, err = time.ParseDuration(a.Timeout)
		if err != nil {
			return nil, apperr.InvalidParameter("timeout", "must be a duration such as \"90s\": %v", err)
		}
	}

	progress := func(completed, total int) {
		n := map[string]interface{}{"progress": completed, "total": total}
		if progressToken != nil {
			n["progressToken"] = progressToken
		}
		s.notify("notifications/progress", n)
	}

	res, err := s.workspace.DetectAll(p, timeout, progress)
	if err != nil {
		return nil, err
	}
	return detectAllResult{
		Batch:    res,
		Errors:   errorStrings(res.Err()),
		Sessions: summarizeAll(s.workspace.Sessions()),
	}, nil
}

// === Editing Handlers ===

type toggleArgs struct {
	sessionArgs
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (s *Server) handleToggle(args json.RawMessage) (interface{}, error) {
	var a toggleArgs
	sess, err := s.lookup(args, &a)
	if err != nil {
		return nil, err
	}
	if a.X == nil || a.Y == nil {
		return nil, apperr.InvalidParameter("x, y", "are required")
	}

	action := sess.ToggleBlobAt(*a.X, *a.Y)
	return map[string]interface{}{
		"session": sess.ID(),
		"action":  action.Kind.String(),
		"blob":    action.Item,
		"count":   sess.Count(),
	}, nil
}

func (s *Server) handleHistoryStep(args json.RawMessage, dir session.Direction) (interface{}, error) {
	var a sessionArgs
	sess, err := s.lookup(args, &a)
	if err != nil {
		return nil, err
	}

	applied := sess.ApplyHistoryStep(dir)
	undo, redo := sess.HistoryDepth()
	return map[string]interface{}{
		"session":    sess.ID(),
		"applied":    applied,
		"count":      sess.Count(),
		"undo_depth": undo,
		"redo_depth": redo,
	}, nil
}

type adjustRadiusArgs struct {
	sessionArgs
	Delta *float64 `json:"delta"`
}

func (s *Server) handleAdjustRadius(args json.RawMessage) (interface{}, error) {
	var a adjustRadiusArgs
	sess, err := s.lookup(args, &a)
	if err != nil {
		return nil, err
	}
	delta := s.cfg.Session.RadiusStep
	if a.Delta != nil {
		delta = *a.Delta
	}
	return map[string]interface{}{
		"session":         sess.ID(),
		"new_blob_radius": sess.AdjustNewBlobRadius(delta),
	}, nil
}

// === Export Handlers ===

type exportDirArgs struct {
	OutputDir string `json:"output_dir,omitempty"`
}

func (s *Server) handleExportXML(args json.RawMessage) (interface{}, error) {
	var a exportDirArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	snaps := s.workspace.Snapshots()
	if len(snaps) == 0 {
		return nil, errNoImages
	}
	files, err := export.ExportXML(s.outputDir(a.OutputDir), snaps)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"files": files}, nil
}

func (s *Server) handleExportImages(args json.RawMessage) (interface{}, error) {
	var a exportDirArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sessions := s.workspace.Sessions()
	if len(sessions) == 0 {
		return nil, errNoImages
	}
	files, err := export.ExportImages(s.outputDir(a.OutputDir), sessions, s.style)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"files": files}, nil
}

type exportExcelArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleExportExcel(args json.RawMessage) (interface{}, error) {
	var a exportExcelArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, apperr.InvalidParameter("path", "is required")
	}
	snaps := s.workspace.Snapshots()
	if len(snaps) == 0 {
		return nil, errNoImages
	}
	return export.ExportExcel(a.Path, snaps)
}

func (s *Server) handleSaveCounts(json.RawMessage) (interface{}, error) {
	snaps := s.workspace.Snapshots()
	if len(snaps) == 0 {
		return nil, errNoImages
	}
	st, err := s.openStore()
	if err != nil {
		return nil, err
	}
	return st.SaveRun(context.Background(), snaps)
}

func (s *Server) handleSampleTotals(json.RawMessage) (interface{}, error) {
	st, err := s.openStore()
	if err != nil {
		return nil, err
	}
	totals, err := st.SampleTotals(context.Background())
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"totals": totals}, nil
}
