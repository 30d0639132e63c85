package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/prism/internal/core"
)

func newTestArchiver(t *testing.T) (*Archiver, *LocalFS) {
	t.Helper()
	fs, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)
	return NewArchiver(fs, nil), fs
}

func TestSnapshotPath(t *testing.T) {
	r := &core.AnalysisResult{
		ID:        "abc",
		Symbol:    "aapl",
		Timestamp: time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC),
	}
	assert.Equal(t, "results/2026/03/10/AAPL/abc.json", SnapshotPath(r))
}

func TestArchiver_RoundTrip(t *testing.T) {
	a, _ := newTestArchiver(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	in := &core.AnalysisResult{
		ID:             "r1",
		Symbol:         "AAPL",
		Recommendation: core.RecommendationBuy,
		OverallScore:   78.75,
		Timestamp:      day,
	}
	p, err := a.Archive(ctx, in)
	require.NoError(t, err)

	out, err := a.Load(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, in.Recommendation, out.Recommendation)
	assert.Equal(t, in.OverallScore, out.OverallScore)

	_, err = a.Archive(ctx, &core.AnalysisResult{ID: "r2", Symbol: "GOOG", Timestamp: day})
	require.NoError(t, err)

	all, err := a.Day(ctx, day, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyAAPL, err := a.Day(ctx, day, "aapl")
	require.NoError(t, err)
	require.Len(t, onlyAAPL, 1)
	assert.Equal(t, "r1", onlyAAPL[0].ID)
}

func TestArchiver_DaySkipsCorrupt(t *testing.T) {
	a, fs := newTestArchiver(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := a.Archive(ctx, &core.AnalysisResult{ID: "ok", Symbol: "AAPL", Timestamp: day})
	require.NoError(t, err)
	require.NoError(t, fs.Write(ctx, "results/2026/03/10/AAPL/bad.json", []byte("{not json")))

	results, err := a.Day(ctx, day, "AAPL")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestArchiver_Prune(t *testing.T) {
	a, fs := newTestArchiver(t)
	ctx := context.Background()

	for i, day := range []int{1, 5, 9} {
		_, err := a.Archive(ctx, &core.AnalysisResult{
			ID:        string(rune('a' + i)),
			Symbol:    "AAPL",
			Timestamp: time.Date(2026, 3, day, 8, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}
	require.NoError(t, fs.Write(ctx, "results/notes.txt", []byte("keep")))

	deleted, err := a.Prune(ctx, time.Date(2026, 3, 5, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	left, _ := fs.List(ctx, "results")
	assert.Len(t, left, 3)
}
