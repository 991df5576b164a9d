package server

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/colony-counter-mcp/internal/detection"
)

// writePlate writes a light plate image to dir/name with a dark disk of
// radius 10 at every centre, and returns its path.
func writePlate(t *testing.T, dir, name string, centres [][2]int) string {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 120, 100))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	for _, c := range centres {
		for y := c[1] - 10; y <= c[1]+10; y++ {
			for x := c[0] - 10; x <= c[0]+10; x++ {
				dx, dy := x-c[0], y-c[1]
				if dx*dx+dy*dy <= 100 {
					img.SetGray(x, y, color.Gray{Y: 50})
				}
			}
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create image file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// callTool sends a tools/call request through handleRequest.
func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()
	params := map[string]interface{}{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// mustCall calls a tool, fails on an error response and decodes the text
// content into v.
func mustCall(t *testing.T, s *Server, name string, args interface{}, v interface{}) {
	t.Helper()
	resp := callTool(t, s, name, args)
	if resp.Error != nil {
		t.Fatalf("%s: unexpected error: %v (%v)", name, resp.Error.Message, resp.Error.Data)
	}
	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	text := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("%s: failed to decode result %q: %v", name, text, err)
	}
}

func wantErrorCode(t *testing.T, resp *MCPResponse, code int) {
	t.Helper()
	if resp.Error == nil {
		t.Fatalf("expected error code %d, got result %v", code, resp.Result)
	}
	if resp.Error.Code != code {
		t.Errorf("error code: got %d, want %d (%v)", resp.Error.Code, code, resp.Error.Data)
	}
}

// loadedServer returns a server with two plates loaded from a "Day 3"
// folder: sample 2 with two colonies and sample 1 with one.
func loadedServer(t *testing.T) (*Server, []sessionSummary) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Day 3")
	writePlate(t, dir, "2_2nd.png", [][2]int{{30, 30}, {80, 70}})
	writePlate(t, dir, "1_1st.png", [][2]int{{60, 50}})

	s := newTestServer(t)
	var res loadFolderResult
	mustCall(t, s, "colony_load_folder", map[string]interface{}{"path": dir}, &res)
	return s, res.Sessions
}

func TestHandleToolsCall_LoadFolder(t *testing.T) {
	_, sessions := loadedServer(t)

	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if *sessions[0].Sample != 1 || *sessions[1].Sample != 2 {
		t.Errorf("sessions should be ordered by sample, got %d, %d", *sessions[0].Sample, *sessions[1].Sample)
	}
	if sessions[0].Label != "Day 3 - Sample 1 - x10 dilution" {
		t.Errorf("label: got %q", sessions[0].Label)
	}
	if sessions[0].Detected || sessions[0].Count != 0 {
		t.Error("a freshly loaded session should have no blobs")
	}
	if sessions[0].NewBlobRadius != 40 {
		t.Errorf("new blob radius: got %v, want 40", sessions[0].NewBlobRadius)
	}
}

func TestHandleToolsCall_LoadFolder_Missing(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "colony_load_folder", map[string]interface{}{"path": "/nonexistent/plates"})
	wantErrorCode(t, resp, -32000)
	if !strings.Contains(resp.Error.Data.(string), "image_not_found") {
		t.Errorf("error data should name the kind, got %v", resp.Error.Data)
	}
}

func TestHandleToolsCall_LoadFolder_NoPath(t *testing.T) {
	s := newTestServer(t)
	wantErrorCode(t, callTool(t, s, "colony_load_folder", map[string]interface{}{}), -32602)
}

func TestHandleToolsCall_List(t *testing.T) {
	s, _ := loadedServer(t)

	var res struct {
		Dir      string           `json:"dir"`
		Sessions []sessionSummary `json:"sessions"`
	}
	mustCall(t, s, "colony_list", nil, &res)
	if len(res.Sessions) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(res.Sessions))
	}
	if filepath.Base(res.Dir) != "Day 3" {
		t.Errorf("dir: got %q", res.Dir)
	}
}

func TestHandleToolsCall_Detect(t *testing.T) {
	s, sessions := loadedServer(t)

	var res blobsResult
	mustCall(t, s, "colony_detect", map[string]interface{}{"session": sessions[1].ID}, &res)
	if res.Count != 2 || len(res.Blobs) != 2 {
		t.Fatalf("expected 2 blobs, got %d", res.Count)
	}
	if res.Blobs[0].X != 30 || res.Blobs[0].Y != 30 {
		t.Errorf("first blob: got (%v, %v), want (30, 30)", res.Blobs[0].X, res.Blobs[0].Y)
	}

	var blobs blobsResult
	mustCall(t, s, "colony_blobs", map[string]interface{}{"session": sessions[1].ID}, &blobs)
	if blobs.Count != 2 {
		t.Errorf("colony_blobs: got %d, want 2", blobs.Count)
	}
}

func TestHandleToolsCall_Detect_PartialParams(t *testing.T) {
	s, sessions := loadedServer(t)

	// A radius 10 disk covers 317 pixels.
	var res blobsResult
	mustCall(t, s, "colony_detect", map[string]interface{}{
		"session": sessions[1].ID,
		"params":  map[string]interface{}{"min_area": 400},
	}, &res)
	if res.Count != 0 {
		t.Errorf("expected no blobs above min_area 400, got %d", res.Count)
	}
}

func TestHandleToolsCall_Detect_InvalidParams(t *testing.T) {
	s, sessions := loadedServer(t)
	resp := callTool(t, s, "colony_detect", map[string]interface{}{
		"session": sessions[0].ID,
		"params":  map[string]interface{}{"min_threshold": 200, "max_threshold": 100},
	})
	wantErrorCode(t, resp, -32602)
}

func TestHandleToolsCall_Detect_UnknownSession(t *testing.T) {
	s, _ := loadedServer(t)
	resp := callTool(t, s, "colony_detect", map[string]interface{}{"session": "nope"})
	wantErrorCode(t, resp, -32000)
	if !strings.Contains(resp.Error.Data.(string), "session_not_found") {
		t.Errorf("error data should name the kind, got %v", resp.Error.Data)
	}
}

func TestHandleToolsCall_DetectAll(t *testing.T) {
	s, _ := loadedServer(t)

	var res detectAllResult
	mustCall(t, s, "colony_detect_all", map[string]interface{}{"timeout": "30s"}, &res)
	if res.Batch.Total != 2 || res.Batch.Completed != 2 || res.Batch.TimedOut {
		t.Errorf("batch: got %+v", res.Batch)
	}
	if len(res.Errors) != 0 {
		t.Errorf("unexpected errors: %v", res.Errors)
	}
	if res.Sessions[0].Count != 1 || res.Sessions[1].Count != 2 {
		t.Errorf("counts: got %d, %d, want 1, 2", res.Sessions[0].Count, res.Sessions[1].Count)
	}
}

func TestHandleToolsCall_DetectAll_BadTimeout(t *testing.T) {
	s, _ := loadedServer(t)
	wantErrorCode(t, callTool(t, s, "colony_detect_all", map[string]interface{}{"timeout": "soon"}), -32602)
}

func TestHandleToolsCall_ToggleUndoRedo(t *testing.T) {
	s, sessions := loadedServer(t)
	id := sessions[0].ID

	var det blobsResult
	mustCall(t, s, "colony_detect", map[string]interface{}{"session": id}, &det)
	if det.Count != 1 {
		t.Fatalf("expected 1 blob, got %d", det.Count)
	}

	var toggle struct {
		Action string         `json:"action"`
		Count  int            `json:"count"`
		Blob   detection.Blob `json:"blob"`
	}
	mustCall(t, s, "colony_toggle", map[string]interface{}{"session": id, "x": 62, "y": 50}, &toggle)
	if toggle.Action != "remove" || toggle.Count != 0 {
		t.Errorf("toggle on blob: got %s with %d blobs", toggle.Action, toggle.Count)
	}

	mustCall(t, s, "colony_toggle", map[string]interface{}{"session": id, "x": 5, "y": 5}, &toggle)
	if toggle.Action != "add" || toggle.Count != 1 || toggle.Blob.Radius != 40 {
		t.Errorf("toggle on background: got %s with %d blobs, radius %v", toggle.Action, toggle.Count, toggle.Blob.Radius)
	}

	var step struct {
		Applied   bool `json:"applied"`
		Count     int  `json:"count"`
		UndoDepth int  `json:"undo_depth"`
		RedoDepth int  `json:"redo_depth"`
	}
	mustCall(t, s, "colony_undo", map[string]interface{}{"session": id}, &step)
	if !step.Applied || step.Count != 0 || step.UndoDepth != 1 || step.RedoDepth != 1 {
		t.Errorf("undo: got %+v", step)
	}
	mustCall(t, s, "colony_undo", map[string]interface{}{"session": id}, &step)
	if !step.Applied || step.Count != 1 {
		t.Errorf("second undo: got %+v", step)
	}
	mustCall(t, s, "colony_undo", map[string]interface{}{"session": id}, &step)
	if step.Applied {
		t.Error("undo with empty history should not apply")
	}
	mustCall(t, s, "colony_redo", map[string]interface{}{"session": id}, &step)
	if !step.Applied || step.Count != 0 {
		t.Errorf("redo: got %+v", step)
	}
}

func TestHandleToolsCall_Toggle_MissingCoordinates(t *testing.T) {
	s, sessions := loadedServer(t)
	resp := callTool(t, s, "colony_toggle", map[string]interface{}{"session": sessions[0].ID, "x": 5})
	wantErrorCode(t, resp, -32602)
}

func TestHandleToolsCall_AdjustRadius(t *testing.T) {
	s, sessions := loadedServer(t)
	id := sessions[0].ID

	var res struct {
		NewBlobRadius float64 `json:"new_blob_radius"`
	}
	mustCall(t, s, "colony_adjust_radius", map[string]interface{}{"session": id}, &res)
	if res.NewBlobRadius != 41 {
		t.Errorf("default step: got %v, want 41", res.NewBlobRadius)
	}
	mustCall(t, s, "colony_adjust_radius", map[string]interface{}{"session": id, "delta": -100}, &res)
	if res.NewBlobRadius != 1 {
		t.Errorf("radius should stop at 1, got %v", res.NewBlobRadius)
	}
}

func TestHandleToolsCall_ExportXMLAndImages(t *testing.T) {
	s, _ := loadedServer(t)
	var det detectAllResult
	mustCall(t, s, "colony_detect_all", nil, &det)

	out := t.TempDir()
	var files struct {
		Files []string `json:"files"`
	}
	mustCall(t, s, "colony_export_xml", map[string]interface{}{"output_dir": out}, &files)
	if len(files.Files) != 1 || files.Files[0] != filepath.Join(out, "Day 3", "keypoints.xml") {
		t.Fatalf("xml files: got %v", files.Files)
	}
	data, err := os.ReadFile(files.Files[0])
	if err != nil {
		t.Fatalf("failed to read xml: %v", err)
	}
	if got := strings.Count(string(data), "<Keypoint>"); got != 3 {
		t.Errorf("expected 3 keypoints in xml, got %d", got)
	}

	mustCall(t, s, "colony_export_images", map[string]interface{}{"output_dir": out}, &files)
	if len(files.Files) != 2 {
		t.Fatalf("image files: got %v", files.Files)
	}
	for _, f := range files.Files {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("missing exported image %s: %v", f, err)
		}
	}
	if filepath.Base(files.Files[0]) != "Sample_1.png" {
		t.Errorf("first image: got %s, want Sample_1.png", filepath.Base(files.Files[0]))
	}
}

func TestHandleToolsCall_ExportXML_DefaultDir(t *testing.T) {
	s, sessions := loadedServer(t)

	var files struct {
		Files []string `json:"files"`
	}
	mustCall(t, s, "colony_export_xml", nil, &files)
	want := filepath.Join(filepath.Dir(sessions[0].Source), "counted_images", "Day 3", "keypoints.xml")
	if len(files.Files) != 1 || files.Files[0] != want {
		t.Errorf("xml files: got %v, want [%s]", files.Files, want)
	}
}

func TestHandleToolsCall_ExportWithoutImages(t *testing.T) {
	s := newTestServer(t)
	for _, name := range []string{"colony_export_xml", "colony_export_images", "colony_save_counts"} {
		wantErrorCode(t, callTool(t, s, name, nil), -32000)
	}
	wantErrorCode(t, callTool(t, s, "colony_export_excel", map[string]interface{}{"path": "/tmp/counts.xlsx"}), -32000)
}

func TestHandleToolsCall_ExportExcel_NoPath(t *testing.T) {
	s, _ := loadedServer(t)
	wantErrorCode(t, callTool(t, s, "colony_export_excel", map[string]interface{}{}), -32602)
}

func TestHandleToolsCall_SaveCountsAndTotals(t *testing.T) {
	s, _ := loadedServer(t)
	var det detectAllResult
	mustCall(t, s, "colony_detect_all", nil, &det)

	var run struct {
		ID       string `json:"id"`
		Sessions int    `json:"sessions"`
	}
	mustCall(t, s, "colony_save_counts", nil, &run)
	if run.ID == "" || run.Sessions != 2 {
		t.Errorf("run: got %+v", run)
	}
	mustCall(t, s, "colony_save_counts", nil, &run)

	var res struct {
		Totals []struct {
			Day    *int    `json:"day"`
			Sample int     `json:"sample"`
			Latest int     `json:"latest"`
			Mean   float64 `json:"mean"`
			Runs   int     `json:"runs"`
		} `json:"totals"`
	}
	mustCall(t, s, "colony_sample_totals", nil, &res)
	if len(res.Totals) != 2 {
		t.Fatalf("expected 2 totals, got %d", len(res.Totals))
	}
	second := res.Totals[1]
	if second.Day == nil || *second.Day != 3 || second.Sample != 2 {
		t.Errorf("second total should be day 3 sample 2, got %+v", second)
	}
	if second.Latest != 2 || second.Mean != 2 || second.Runs != 2 {
		t.Errorf("second total: got %+v", second)
	}
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "nonexistent_tool", map[string]interface{}{})
	wantErrorCode(t, resp, -32000)
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleToolsCall(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Params:  json.RawMessage(`{invalid json}`),
	})
	wantErrorCode(t, resp, -32602)
}

func TestHandleToolsCall_WrongArgumentType(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "colony_load_folder", map[string]interface{}{"path": 42})
	wantErrorCode(t, resp, -32602)
}

func TestExecuteTool_AllTools(t *testing.T) {
	s := newTestServer(t)

	// Every defined tool must be dispatched; failures other than
	// "unknown tool" are expected with empty arguments.
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			_, err := s.executeTool(tool.Name, json.RawMessage(`{}`), nil)
			if err != nil && strings.Contains(err.Error(), "unknown tool") {
				t.Errorf("tool %s is not dispatched", tool.Name)
			}
		})
	}
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	s := newTestServer(t)
	_, err := s.executeTool("unknown_tool", json.RawMessage(`{}`), nil)
	if err == nil {
		t.Error("Expected error for unknown tool")
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := newTestServer(t)
	_, err := s.executeTool("colony_blobs", json.RawMessage(`{invalid}`), nil)
	if err == nil {
		t.Error("Expected error for invalid JSON")
	}
}
