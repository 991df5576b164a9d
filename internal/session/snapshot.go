package session

import (
	"github.com/ironsheep/colony-counter-mcp/internal/detection"
	"github.com/ironsheep/colony-counter-mcp/internal/metadata"
)

// Keypoint is the export form of a blob: centre and diameter.
type Keypoint struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
}

// Blob converts the keypoint back to a blob.
func (k Keypoint) Blob() detection.Blob {
	return detection.Blob{X: k.X, Y: k.Y, Radius: k.Size / 2}
}

// Snapshot is a consistent copy of a session's exportable state, taken
// under the session lock.
type Snapshot struct {
	ID        string            `json:"id"`
	Source    string            `json:"source"`
	Day       *int              `json:"day,omitempty"`
	Sample    *int              `json:"sample,omitempty"`
	Dilution  metadata.Dilution `json:"dilution,omitempty"`
	Label     string            `json:"label"`
	BlobCount int               `json:"blob_count"`
	Keypoints []Keypoint        `json:"keypoints"`
}

// Blobs returns the snapshot's keypoints as blobs.
func (s Snapshot) Blobs() []detection.Blob {
	out := make([]detection.Blob, len(s.Keypoints))
	for i, k := range s.Keypoints {
		out[i] = k.Blob()
	}
	return out
}
