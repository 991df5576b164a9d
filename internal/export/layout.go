package export

import (
	"fmt"
	"path/filepath"

	"github.com/ironsheep/colony-counter-mcp/internal/session"
)

// dayDir returns the per-day output folder for a snapshot.
func dayDir(outDir string, day *int) string {
	if day == nil {
		return filepath.Join(outDir, "Day unknown")
	}
	return filepath.Join(outDir, fmt.Sprintf("Day %d", *day))
}

// groupByDay splits snapshots by day, keeping first-seen day order and the
// snapshot order within each day.
func groupByDay(snaps []session.Snapshot) [][]session.Snapshot {
	var (
		groups [][]session.Snapshot
		index  = map[string]int{}
	)
	for _, s := range snaps {
		key := "unknown"
		if s.Day != nil {
			key = fmt.Sprint(*s.Day)
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], s)
	}
	return groups
}
