package export

import (
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ironsheep/colony-counter-mcp/internal/apperr"
	"github.com/ironsheep/colony-counter-mcp/internal/logger"
	"github.com/ironsheep/colony-counter-mcp/internal/session"
)

type xmlKeypoints struct {
	XMLName xml.Name `xml:"Keypoints"`
	Days    []xmlDay `xml:"Day"`
}

type xmlDay struct {
	Number  string      `xml:"number,attr,omitempty"`
	Samples []xmlSample `xml:"Sample"`
}

type xmlSample struct {
	Number    string        `xml:"number,attr,omitempty"`
	Filename  string        `xml:"filename,attr,omitempty"`
	Keypoints []xmlKeypoint `xml:"Keypoint"`
}

type xmlKeypoint struct {
	X    float64 `xml:"X"`
	Y    float64 `xml:"Y"`
	Size float64 `xml:"Size"`
}

// WriteXML encodes snaps as an indented Keypoints document.
func WriteXML(w io.Writer, snaps []session.Snapshot) error {
	doc := xmlKeypoints{}
	for _, group := range groupByDay(snaps) {
		day := xmlDay{}
		if d := group[0].Day; d != nil {
			day.Number = strconv.Itoa(*d)
		}
		for _, s := range group {
			sample := xmlSample{Keypoints: make([]xmlKeypoint, len(s.Keypoints))}
			if s.Sample != nil {
				sample.Number = strconv.Itoa(*s.Sample)
			} else {
				sample.Filename = filepath.Base(s.Source)
			}
			for i, k := range s.Keypoints {
				sample.Keypoints[i] = xmlKeypoint{X: k.X, Y: k.Y, Size: k.Size}
			}
			day.Samples = append(day.Samples, sample)
		}
		doc.Days = append(doc.Days, day)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return apperr.Export("failed to write XML header", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return apperr.Export("failed to encode keypoints XML", err)
	}
	if err := enc.Close(); err != nil {
		return apperr.Export("failed to flush keypoints XML", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// ExportXML writes one keypoints.xml per day under outDir and returns the
// paths written.
func ExportXML(outDir string, snaps []session.Snapshot) ([]string, error) {
	var paths []string
	for _, group := range groupByDay(snaps) {
		dir := dayDir(outDir, group[0].Day)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return paths, apperr.Export("failed to create output directory", err)
		}

		path := filepath.Join(dir, "keypoints.xml")
		f, err := os.Create(path)
		if err != nil {
			return paths, apperr.Export("failed to create "+path, err)
		}
		if err := WriteXML(f, group); err != nil {
			f.Close()
			return paths, err
		}
		if err := f.Close(); err != nil {
			return paths, apperr.Export("failed to close "+path, err)
		}

		logger.WithField("path", path).WithField("samples", len(group)).Info("Keypoints exported to XML")
		paths = append(paths, path)
	}
	return paths, nil
}
