package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/frugalcloud/sweeper/types"
)

// FileSink writes one JSON file per scope. The scanner calls it right
// before the snapshot replace; a write failure is logged upstream and
// never blocks the replace.
type FileSink struct {
	dir string
}

// NewFileSink creates the export directory if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Export writes the scope's findings as an indented JSON ScopeReport.
// The file is written to a temp name and renamed, so a reader never
// sees a partial dump.
func (s *FileSink) Export(scope types.Scope, findings []types.Finding, now time.Time) error {
	sr := ScopeReport{Scope: scope, UpdatedAt: now, Findings: findings}
	for _, f := range findings {
		if f.TotalCost.Known {
			sr.KnownCost += f.TotalCost.Amount
		} else {
			sr.UnknownCostFindings++
		}
	}

	final := filepath.Join(s.dir, scopeFileName(scope))
	tmp, err := os.CreateTemp(s.dir, ".export-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := WriteJSON(tmp, Report{GeneratedAt: now, Scopes: []ScopeReport{sr}}); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), final)
}

// scopeFileName flattens the scope key into a safe file name.
func scopeFileName(scope types.Scope) string {
	key := strings.NewReplacer("|", "_", "/", "_", string(filepath.Separator), "_").Replace(scope.Key())
	return key + ".json"
}
