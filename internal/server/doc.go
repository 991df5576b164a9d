// Package server implements the MCP (Model Context Protocol) server for
// counting bacterial colonies on plate images.
//
// This package provides a JSON-RPC 2.0 server that exposes the colony
// counting workflow through the MCP protocol: load a folder of plate
// photographs, detect colonies, correct the result by hand and export the
// counts.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image Set:
//   - colony_load_folder: Load every plate image in a folder
//   - colony_list: List sessions with their counts
//   - colony_blobs: Blobs of one session
//
// Detection:
//   - colony_detect: Detect blobs in one session
//   - colony_detect_all: Detect blobs in every session in parallel
//
// Editing:
//   - colony_toggle: Add or remove a blob at a point
//   - colony_undo, colony_redo: Step through manual edits
//   - colony_adjust_radius: Change the radius of added blobs
//
// Export:
//   - colony_export_xml: Keypoints XML per day
//   - colony_export_images: Annotated PNGs per day
//   - colony_export_excel: Counts into an existing workbook
//   - colony_save_counts: Record counts in the SQLite store
//   - colony_sample_totals: Aggregate recorded counts per sample
//
// Detection parameters in tool arguments are partial: omitted fields keep
// the values from the configuration file.
//
// # Notifications
//
// The server sends two notifications while handling calls:
//   - notifications/progress: {progress, total[, progressToken]} after
//     every finished task of colony_detect_all
//   - notifications/colony/blobs_changed: {session, source, cause, count,
//     redraw} after every change of a session's blobs
//
// Change events are buffered; when the client cannot keep up they are
// dropped rather than blocking detection.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32602 for malformed arguments or invalid detection parameters,
//     -32000 for any other tool failure
//   - message: Human-readable error description
//   - data: The error string, prefixed with its kind (e.g. "empty_image: ...")
//
// # Usage
//
//	cfg, err := config.Load(config.Path(""))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := server.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
