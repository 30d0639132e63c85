package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/prism/internal/core"
)

const resultsPrefix = "results"

// Archiver writes analysis results as dated JSON snapshots:
//
//	results/YYYY/MM/DD/SYMBOL/<id>.json
type Archiver struct {
	storage Storage
	logger  *zap.Logger
}

// NewArchiver creates an archiver over storage.
func NewArchiver(storage Storage, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{storage: storage, logger: logger}
}

// SnapshotPath returns where a result is archived.
func SnapshotPath(r *core.AnalysisResult) string {
	ts := r.Timestamp.UTC()
	id := r.ID
	if id == "" {
		id = ts.Format("150405.000000000")
	}
	return fmt.Sprintf("%s/%s/%s/%s.json", resultsPrefix, ts.Format("2006/01/02"), strings.ToUpper(r.Symbol), id)
}

// Archive stores r and returns its path.
func (a *Archiver) Archive(ctx context.Context, r *core.AnalysisResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	p := SnapshotPath(r)
	if err := a.storage.Write(ctx, p, data); err != nil {
		return "", fmt.Errorf("archiving %s: %w", p, err)
	}
	a.logger.Debug("result archived", zap.String("symbol", r.Symbol), zap.String("path", p))
	return p, nil
}

// Load reads back one snapshot.
func (a *Archiver) Load(ctx context.Context, path string) (*core.AnalysisResult, error) {
	data, err := a.storage.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	var r core.AnalysisResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &r, nil
}

// Day returns the snapshots archived on day, optionally limited to symbol.
// Unreadable snapshots are logged and skipped.
func (a *Archiver) Day(ctx context.Context, day time.Time, symbol string) ([]core.AnalysisResult, error) {
	prefix := fmt.Sprintf("%s/%s", resultsPrefix, day.UTC().Format("2006/01/02"))
	if symbol != "" {
		prefix += "/" + strings.ToUpper(symbol)
	}
	paths, err := a.storage.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	results := make([]core.AnalysisResult, 0, len(paths))
	for _, p := range paths {
		r, err := a.Load(ctx, p)
		if err != nil {
			a.logger.Warn("skipping unreadable snapshot", zap.String("path", p), zap.Error(err))
			continue
		}
		results = append(results, *r)
	}
	return results, nil
}

// Prune deletes snapshots dated before cutoff and reports how many went.
func (a *Archiver) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	paths, err := a.storage.List(ctx, resultsPrefix)
	if err != nil {
		return 0, err
	}
	cutoffDay := cutoff.UTC().Truncate(24 * time.Hour)

	deleted := 0
	for _, p := range paths {
		day, ok := snapshotDay(p)
		if !ok || !day.Before(cutoffDay) {
			continue
		}
		if err := a.storage.Delete(ctx, p); err != nil {
			return deleted, fmt.Errorf("deleting %s: %w", p, err)
		}
		deleted++
	}
	if deleted > 0 {
		a.logger.Info("archive pruned", zap.Int("deleted", deleted), zap.Time("cutoff", cutoffDay))
	}
	return deleted, nil
}

// snapshotDay parses the date segment of a snapshot path.
func snapshotDay(p string) (time.Time, bool) {
	parts := strings.Split(p, "/")
	if len(parts) < 5 || parts[0] != resultsPrefix {
		return time.Time{}, false
	}
	day, err := time.Parse("2006/01/02", strings.Join(parts[1:4], "/"))
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}
