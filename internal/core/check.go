package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DriftKind describes how a file on disk differs from the generated output.
type DriftKind int

const (
	DriftChanged DriftKind = iota
	DriftMissing
	DriftStale
)

func (k DriftKind) String() string {
	switch k {
	case DriftMissing:
		return "missing"
	case DriftStale:
		return "stale"
	default:
		return "changed"
	}
}

// Drift is a generated file that is out of date.
type Drift struct {
	Path string
	Kind DriftKind
	// Diff is a line diff from the file on disk to the expected content.
	Diff string
}

func (d Drift) String() string {
	if d.Diff == "" {
		return fmt.Sprintf("%s: %s", d.Path, d.Kind)
	}
	return fmt.Sprintf("%s: %s\n%s", d.Path, d.Kind, d.Diff)
}

// Check runs the pipeline and compares its output with the files on disk.
// Nothing is written.
func (g *Generator) Check(ctx context.Context, patterns ...string) ([]Drift, *Result, error) {
	result, err := g.Run(ctx, patterns...)
	if err != nil {
		return nil, nil, err
	}
	var drifts []Drift
	for _, f := range result.Files {
		path, err := result.Path(g.root, f)
		if err != nil {
			return nil, nil, err
		}
		current, err := os.ReadFile(filepath.Join(g.root, filepath.FromSlash(path)))
		switch {
		case errors.Is(err, os.ErrNotExist):
			drifts = append(drifts, Drift{Path: path, Kind: DriftMissing})
		case err != nil:
			return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
		case string(current) != string(f.Content):
			drifts = append(drifts, Drift{Path: path, Kind: DriftChanged, Diff: LineDiff(string(current), string(f.Content))})
		}
	}
	for _, path := range result.Stale {
		drifts = append(drifts, Drift{Path: path, Kind: DriftStale})
	}
	return drifts, result, nil
}

// LineDiff renders the changed lines between before and after, prefixed with
// "-" and "+".
func LineDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(strings.TrimSuffix(line, "\n"))
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
