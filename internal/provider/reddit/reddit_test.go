package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/provider"
)

var _ provider.SocialSource = (*Source)(nil)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func listing(posts ...map[string]any) map[string]any {
	children := make([]any, len(posts))
	for i, p := range posts {
		children[i] = map[string]any{"kind": "t3", "data": p}
	}
	return map[string]any{"data": map[string]any{"children": children, "after": nil}}
}

func post(id, title string, age time.Duration, score, comments int) map[string]any {
	return map[string]any{
		"id":           id,
		"title":        title,
		"selftext":     "",
		"author":       "u_" + id,
		"permalink":    "/r/stocks/comments/" + id,
		"score":        score,
		"upvote_ratio": 0.9,
		"num_comments": comments,
		"created_utc":  float64(now.Add(-age).Unix()),
	}
}

func newTestSource(t *testing.T, handler http.HandlerFunc, subs ...string) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := New(Config{BaseURL: srv.URL, Subreddits: subs, RequestsPerSecond: 1000}, nil)
	s.now = func() time.Time { return now }
	return s
}

func TestSource_FetchPosts(t *testing.T) {
	var userAgent atomic.Value
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("q"))
		assert.Equal(t, "week", r.URL.Query().Get("t"))

		switch {
		case strings.HasPrefix(r.URL.Path, "/r/stocks/"):
			_ = json.NewEncoder(w).Encode(listing(
				post("a1", "AAPL earnings look great", time.Hour, 120, 30),
				post("a2", "Thoughts on $aapl?", 2*time.Hour, 5, 1),
				post("a3", "Pineapple prices", time.Hour, 10, 0),
				post("a4", "AAPL from last month", 20*24*time.Hour, 50, 5),
			))
		case strings.HasPrefix(r.URL.Path, "/r/investing/"):
			// Cross-posted duplicate.
			_ = json.NewEncoder(w).Encode(listing(post("a1", "AAPL earnings look great", time.Hour, 120, 30)))
		}
	}, "stocks", "investing")

	posts, err := s.FetchPosts(context.Background(), "AAPL", 7)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, "a1", posts[0].ID)
	assert.Equal(t, core.SourceReddit, posts[0].Platform)
	assert.Equal(t, 120, posts[0].Score)
	assert.Equal(t, 30, posts[0].Comments)
	assert.True(t, strings.HasSuffix(posts[0].URL, "/r/stocks/comments/a1"))
	assert.Equal(t, []string{"AAPL"}, posts[0].Symbols)
	assert.Equal(t, "a2", posts[1].ID)
	assert.Equal(t, "prism/1.0", userAgent.Load())
}

func TestSource_PartialFailure(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/r/broken/") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(listing(post("b1", "TSLA deliveries", time.Hour, 1, 1)))
	}, "broken", "stocks")

	posts, err := s.FetchPosts(context.Background(), "TSLA", 7)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestSource_AllFail(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}, "a", "b")

	_, err := s.FetchPosts(context.Background(), "TSLA", 7)
	assert.True(t, errors.Is(err, core.ErrProviderFailed))
}

func TestSource_RateLimited(t *testing.T) {
	var calls atomic.Int32
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}, "a", "b", "c")

	posts, err := s.FetchPosts(context.Background(), "TSLA", 7)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Equal(t, int32(1), calls.Load(), "scan stops at the first 429")
}

func TestMentionsSymbol(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"Buying more F today", true},
		{"$f calls printing", true},
		{"Fed meeting tomorrow", false},
		{"Is F. a value trap?", true},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, mentionsSymbol(postData{Title: tt.title}, "F"))
		})
	}
}

func TestTimeWindow(t *testing.T) {
	assert.Equal(t, "day", timeWindow(1))
	assert.Equal(t, "week", timeWindow(7))
	assert.Equal(t, "month", timeWindow(30))
	assert.Equal(t, "year", timeWindow(90))
}
