// Package metadata derives day, sample number and dilution from image file
// names such as "19_23_2nd.jpg" or "Day 19/23_2nd_dilution.jpg".
package metadata

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/colony-counter-mcp/internal/apperr"
	"github.com/ironsheep/colony-counter-mcp/internal/logger"
)

// Dilution is the plating dilution of a sample.
type Dilution int

const (
	DilutionUnknown Dilution = iota
	DilutionX10
	DilutionX100
	DilutionX1000
)

// String returns the factor label, e.g. "x100".
func (d Dilution) String() string {
	switch d {
	case DilutionX10:
		return "x10"
	case DilutionX100:
		return "x100"
	case DilutionX1000:
		return "x1000"
	default:
		return ""
	}
}

// MarshalText encodes the factor label.
func (d Dilution) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts a factor label, or an empty string for unknown.
func (d *Dilution) UnmarshalText(text []byte) error {
	for _, v := range []Dilution{DilutionUnknown, DilutionX10, DilutionX100, DilutionX1000} {
		if string(text) == v.String() {
			*d = v
			return nil
		}
	}
	return fmt.Errorf("unknown dilution %q", text)
}

// ParseDilution recognises the ordinal tokens used in file names. The token
// may carry surrounding text such as a file extension ("2nd.jpg").
func ParseDilution(token string) (Dilution, bool) {
	switch {
	case strings.Contains(token, "1st"):
		return DilutionX10, true
	case strings.Contains(token, "2nd"):
		return DilutionX100, true
	case strings.Contains(token, "3rd"):
		return DilutionX1000, true
	default:
		return DilutionUnknown, false
	}
}

// Info is what a file name says about its image.
type Info struct {
	Day      *int     `json:"day,omitempty"`
	Sample   *int     `json:"sample,omitempty"`
	Dilution Dilution `json:"dilution,omitempty"`

	// Label is the human-readable name, e.g. "Day 19 - Sample 23 - x100 dilution".
	Label string `json:"label"`

	// LabelImage marks photographs of the plate label rather than the plate.
	LabelImage bool `json:"label_image,omitempty"`
}

// dayFolder matches the day number in a parent folder name such as "Day 19".
var dayFolder = regexp.MustCompile(`Day (\d{1,3})`)

// FilenameResolver parses image paths into Info.
type FilenameResolver struct {
	defaultDilution Dilution
}

// NewFilenameResolver creates a resolver that falls back to defaultDilution
// (an ordinal token such as "3rd") when a name carries no valid dilution.
func NewFilenameResolver(defaultDilution string) (*FilenameResolver, error) {
	d, ok := ParseDilution(defaultDilution)
	if !ok {
		return nil, apperr.InvalidParameter("default_dilution", "must be one of 1st, 2nd, 3rd, got %q", defaultDilution)
	}
	return &FilenameResolver{defaultDilution: d}, nil
}

// IsLabelImage reports whether path is a plate label photograph.
func IsLabelImage(path string) bool {
	return strings.HasSuffix(strings.ToUpper(filepath.Base(path)), "LABEL.JPG")
}

// Resolve parses path. Two layouts are understood:
//
//	<sample>_<dilution>[_dilution].ext       day from a "Day N" parent folder
//	<day>_<sample>_<dilution>[_dilution].ext
//
// Anything else keeps the base name as its label.
func (r *FilenameResolver) Resolve(path string) Info {
	base := filepath.Base(path)
	folder := filepath.Base(filepath.Dir(path))
	log := logger.WithField("file", base)

	if IsLabelImage(path) {
		return Info{Label: base, LabelImage: true}
	}

	var info Info
	parts := strings.Split(base, "_")
	switch {
	case len(parts) == 2 || (len(parts) == 3 && strings.Contains(parts[2], "dilution")):
		info.Day = dayFromFolder(folder)
		info.Sample = parseSample(parts[0])
		info.Dilution = r.dilution(parts[1], log)

	case len(parts) == 3 || (len(parts) == 4 && strings.Contains(parts[3], "dilution")):
		info.Day = parseInt(parts[0])
		if info.Day == nil {
			info.Day = dayFromFolder(folder)
		}
		info.Sample = parseSample(parts[1])
		info.Dilution = r.dilution(parts[2], log)

	default:
		log.Warn("Unable to parse image name, using file name")
		info.Day = dayFromFolder(folder)
		info.Label = base
		return info
	}

	if info.Sample == nil {
		log.Warn("Sample number is not an integer")
	}
	info.Label = info.DisplayName()
	return info
}

func (r *FilenameResolver) dilution(token string, log *logrus.Entry) Dilution {
	if d, ok := ParseDilution(token); ok {
		return d
	}
	log.WithField("token", token).Warnf("Not a valid dilution string, using %s", r.defaultDilution)
	return r.defaultDilution
}

// DisplayName joins the known parts as "Day D - Sample S - xN dilution".
func (i Info) DisplayName() string {
	var parts []string
	if i.Day != nil {
		parts = append(parts, fmt.Sprintf("Day %d", *i.Day))
	}
	if i.Sample != nil {
		parts = append(parts, fmt.Sprintf("Sample %d", *i.Sample))
	}
	if i.Dilution != DilutionUnknown {
		parts = append(parts, i.Dilution.String()+" dilution")
	}
	return strings.Join(parts, " - ")
}

func dayFromFolder(folder string) *int {
	m := dayFolder.FindStringSubmatch(folder)
	if m == nil {
		return nil
	}
	return parseInt(m[1])
}

func parseInt(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// parseSample is parseInt for sample numbers, which start at 1.
func parseSample(s string) *int {
	n := parseInt(s)
	if n == nil || *n < 1 {
		return nil
	}
	return n
}
