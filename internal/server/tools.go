package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var sessionProperty = map[string]interface{}{
	"type":        "string",
	"description": "Session ID as returned by colony_load_folder or colony_list",
}

var outputDirProperty = map[string]interface{}{
	"type":        "string",
	"description": "Optional output directory. Relative paths are placed inside the loaded folder. Defaults to the configured output_dir",
}

// paramsSchema describes a partial detection parameter set. Omitted fields
// keep the configured defaults.
func paramsSchema() map[string]interface{} {
	number := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "number", "description": desc}
	}
	return map[string]interface{}{
		"type":        "object",
		"description": "Detection parameter overrides. Omitted fields keep the configured values",
		"properties": map[string]interface{}{
			"min_area":               number("Minimum blob area in pixels"),
			"max_area":               number("Maximum blob area in pixels"),
			"min_circularity":        number("Minimum 4*pi*area/perimeter^2, 0..1"),
			"min_convexity":          number("Minimum area/hull area, 0..1"),
			"min_inertia_ratio":      number("Minimum minor/major axis ratio, 0..1"),
			"min_dist_between_blobs": number("Maximum centre shift for a blob to be the same across thresholds"),
			"min_threshold":          map[string]interface{}{"type": "integer", "description": "First intensity level, 0..255"},
			"max_threshold":          map[string]interface{}{"type": "integer", "description": "Last intensity level, 0..255"},
			"apply_blur":             map[string]interface{}{"type": "boolean", "description": "Smooth with a 5x5 Gaussian first"},
			"apply_morphology":       map[string]interface{}{"type": "boolean", "description": "Apply a 5x5 opening first"},
		},
	}
}

func sessionOnly(name, description string) Tool {
	return Tool{
		Name:        name,
		Description: description,
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"session": sessionProperty,
			},
			"required": []string{"session"},
		},
	}
}

func noArgs(name, description string) Tool {
	return Tool{
		Name:        name,
		Description: description,
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image Set
		{
			Name:        "colony_load_folder",
			Description: "Load every .png/.jpg/.jpeg plate image in a folder (non-recursive) into a detection session. Day, sample and dilution are read from the file names. Replaces any previously loaded set.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image folder",
					},
				},
				"required": []string{"path"},
			},
		},
		noArgs("colony_list", "List the loaded sessions in display order (by sample number) with their current blob counts."),
		sessionOnly("colony_blobs", "Return the current blobs (centre and radius) of a session."),

		// Detection
		{
			Name:        "colony_detect",
			Description: "Run blob detection on one session, replacing its blobs. Manual edit history is kept.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session": sessionProperty,
					"params":  paramsSchema(),
				},
				"required": []string{"session"},
			},
		},
		{
			Name:        "colony_detect_all",
			Description: "Run blob detection on every loaded session in parallel. Reports progress notifications and returns once all sessions finish or the timeout elapses.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"params": paramsSchema(),
					"timeout": map[string]interface{}{
						"type":        "string",
						"description": "Optional batch timeout such as \"90s\". Defaults to the configured batch timeout",
					},
				},
			},
		},

		// Editing
		{
			Name:        "colony_toggle",
			Description: "Remove the first blob containing the point, or add a blob of the session's new-blob radius centred on it. Undoable.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session": sessionProperty,
					"x": map[string]interface{}{
						"type":        "number",
						"description": "X coordinate in image pixels",
					},
					"y": map[string]interface{}{
						"type":        "number",
						"description": "Y coordinate in image pixels",
					},
				},
				"required": []string{"session", "x", "y"},
			},
		},
		sessionOnly("colony_undo", "Undo the most recent manual edit of a session."),
		sessionOnly("colony_redo", "Redo the most recently undone edit of a session."),
		{
			Name:        "colony_adjust_radius",
			Description: "Change the radius used for manually added blobs. The radius never drops below 1.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session": sessionProperty,
					"delta": map[string]interface{}{
						"type":        "number",
						"description": "Amount to add (negative to shrink). Defaults to the configured radius step",
					},
				},
				"required": []string{"session"},
			},
		},

		// Export
		{
			Name:        "colony_export_xml",
			Description: "Write the blobs of every session as keypoints, one keypoints.xml per day folder.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"output_dir": outputDirProperty,
				},
			},
		},
		{
			Name:        "colony_export_images",
			Description: "Write each image with its blobs circled as a PNG, grouped by day folder.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"output_dir": outputDirProperty,
				},
			},
		},
		{
			Name:        "colony_export_excel",
			Description: "Fill the blob counts into an existing workbook: under the day's column, at the 'colonies' row plus the sample number.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the .xlsx workbook",
					},
				},
				"required": []string{"path"},
			},
		},
		noArgs("colony_save_counts", "Record the current counts of every session as a run in the count database."),
		noArgs("colony_sample_totals", "Aggregate the recorded runs per day and sample: latest count, mean count and number of runs."),
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
