package rss

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/provider"
)

var _ provider.NewsSource = (*Source)(nil)

const feedBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Headlines</title>
<item>
  <title>Apple beats earnings estimates</title>
  <link>https://example.com/a</link>
  <guid>guid-a</guid>
  <description>&lt;p&gt;Revenue &lt;b&gt;surged&lt;/b&gt; on strong demand&lt;/p&gt;</description>
  <pubDate>Mon, 09 Mar 2026 12:00:00 GMT</pubDate>
</item>
<item>
  <title>Old story</title>
  <link>https://example.com/old</link>
  <pubDate>Mon, 02 Feb 2026 12:00:00 GMT</pubDate>
</item>
<item>
  <title></title>
  <link>https://example.com/untitled</link>
  <pubDate>Mon, 09 Mar 2026 12:00:00 GMT</pubDate>
</item>
</channel></rss>`

func newTestSource(t *testing.T, status int) (*Source, *string) {
	t.Helper()
	var gotSymbol string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSymbol = r.URL.Query().Get("s")
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedBody))
	}))
	t.Cleanup(srv.Close)

	s := New(Config{Name: "test-feed", URLTemplate: srv.URL + "/rss?s={symbol}"}, nil)
	s.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return s, &gotSymbol
}

func TestSource_FetchNews(t *testing.T) {
	s, gotSymbol := newTestSource(t, http.StatusOK)

	items, err := s.FetchNews(context.Background(), "aapl", 7)
	require.NoError(t, err)
	assert.Equal(t, "aapl", *gotSymbol)

	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, "Apple beats earnings estimates", it.Title)
	assert.Equal(t, "Revenue surged on strong demand", it.Content)
	assert.Equal(t, "test-feed", it.Source)
	assert.Equal(t, []string{"AAPL"}, it.Symbols)
	assert.Nil(t, it.SentimentScore)

	again, err := s.FetchNews(context.Background(), "aapl", 7)
	require.NoError(t, err)
	assert.Equal(t, it.ID, again[0].ID, "ids must be stable across fetches")
}

func TestSource_Lookback(t *testing.T) {
	s, _ := newTestSource(t, http.StatusOK)

	items, err := s.FetchNews(context.Background(), "AAPL", 60)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestSource_Errors(t *testing.T) {
	tests := []struct {
		status int
		want   *core.Error
	}{
		{http.StatusNotFound, core.ErrSymbolNotFound},
		{http.StatusBadGateway, core.ErrProviderFailed},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			s, _ := newTestSource(t, tt.status)
			_, err := s.FetchNews(context.Background(), "AAPL", 7)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain   text\n here", "plain text here"},
		{"<p>Hello <a href='x'>world</a></p>", "Hello world"},
		{"AT&amp;T rallies", "AT&T rallies"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripHTML(tt.in))
	}
}
