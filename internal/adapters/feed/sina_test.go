package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashfeed/internal/adapters/config"
	"flashfeed/pkg/errors"
	"flashfeed/pkg/logger"
)

func newTestClient(t *testing.T, serverURL string) *SinaClient {
	t.Helper()
	c := NewSinaClient(config.FeedConfig{
		URL:      serverURL,
		ChanID:   152,
		Type:     1,
		PageSize: 50,
		Timeout:  2 * time.Second,
	})
	c.now = func() time.Time {
		return time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	}
	return c
}

func feedBody(items ...string) string {
	list := "[" + strings.Join(items, ",") + "]"
	return fmt.Sprintf(`{"result":{"status":{"code":0,"msg":"ok"},"data":{"feed":{"list":%s}}}}`, list)
}

func serveBody(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "152", r.URL.Query().Get("zhibo_id"))
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_NormalizesAndOrdersOldestFirst(t *testing.T) {
	// Upstream order is newest first
	newer := `{"id":101,"rich_text":"Second flash","create_time":"2025-05-14 16:35:00","tag":[{"name":"A股"}],"docurl":"","ext":"{\"stocks\":[{\"market\":\"cn\",\"symbol\":\"sz000001\",\"key\":\"平安银行\"}],\"docurl\":\"https://example.com/101\"}"}`
	older := `{"id":100,"rich_text":"First flash","create_time":"2025-05-14 16:33:56","tag":[],"docurl":"https://example.com/top","ext":""}`
	srv := serveBody(t, feedBody(newer, older))

	c := newTestClient(t, srv.URL)
	flashes, latest, err := c.Fetch(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, int64(101), latest)
	require.Len(t, flashes, 2)

	first := flashes[0]
	assert.Equal(t, "sina_live_100", first.ID)
	assert.Equal(t, int64(100), first.UpstreamID)
	assert.Equal(t, "First flash", first.Content)
	assert.Equal(t, "sina_live", first.Source)
	assert.Equal(t, "https://example.com/top", first.DetailURL)
	assert.Empty(t, first.Symbols)

	// 16:33:56 CST is 08:33:56 UTC
	require.NotNil(t, first.PublishedAt)
	assert.Equal(t, time.Date(2025, 5, 14, 8, 33, 56, 0, time.UTC), first.PublishedAt.UTC())
	assert.Equal(t, time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC), first.CrawledAt)

	second := flashes[1]
	assert.Equal(t, "sina_live_101", second.ID)
	assert.Equal(t, []string{"A股"}, second.Tags)
	require.Len(t, second.Symbols, 1)
	assert.Equal(t, "SZ000001", second.Symbols[0].Symbol)
	assert.Equal(t, "平安银行", second.Symbols[0].Name)
	// ext docurl wins over the top-level one
	assert.Equal(t, "https://example.com/101", second.DetailURL)
	assert.True(t, json.Valid(second.RawSource))
}

func TestFetch_FiltersAtOrBelowCursor(t *testing.T) {
	items := []string{
		`{"id":102,"rich_text":"newest","create_time":"2025-05-14 16:36:00","tag":[],"ext":""}`,
		`{"id":101,"rich_text":"middle","create_time":"2025-05-14 16:35:00","tag":[],"ext":""}`,
		`{"id":100,"rich_text":"oldest","create_time":"2025-05-14 16:34:00","tag":[],"ext":""}`,
	}
	srv := serveBody(t, feedBody(items...))

	c := newTestClient(t, srv.URL)
	flashes, latest, err := c.Fetch(context.Background(), 101)
	require.NoError(t, err)

	assert.Equal(t, int64(102), latest)
	require.Len(t, flashes, 1)
	assert.Equal(t, "sina_live_102", flashes[0].ID)
}

func TestFetch_AllSeenStillReportsLatest(t *testing.T) {
	srv := serveBody(t, feedBody(`{"id":100,"rich_text":"seen","create_time":"2025-05-14 16:34:00","tag":[],"ext":""}`))

	c := newTestClient(t, srv.URL)
	flashes, latest, err := c.Fetch(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, flashes)
	assert.Equal(t, int64(100), latest)
}

func TestFetch_EmptyListIsHealthy(t *testing.T) {
	srv := serveBody(t, feedBody())

	c := newTestClient(t, srv.URL)
	flashes, latest, err := c.Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, flashes)
	assert.Equal(t, int64(0), latest)
}

func TestFetch_UpstreamErrorStatus(t *testing.T) {
	srv := serveBody(t, `{"result":{"status":{"code":500,"msg":"server busy"},"data":{"feed":{"list":[]}}}}`)

	c := newTestClient(t, srv.URL)
	_, _, err := c.Fetch(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "server busy")
}

func TestFetch_HTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL)
	_, _, err := c.Fetch(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSourceUnavailable))
}

func TestFetch_MalformedResponseBody(t *testing.T) {
	srv := serveBody(t, `{"result": not json`)

	c := newTestClient(t, srv.URL)
	_, _, err := c.Fetch(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSourceUnavailable))
}

func TestFetch_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestClient(t, srv.URL)
	_, _, err := c.Fetch(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSourceUnavailable))
}

func TestFetch_BadItemIsolatedCursorStillAdvances(t *testing.T) {
	items := []string{
		`{"id":102,"rich_text":"good","create_time":"2025-05-14 16:36:00","tag":[],"ext":""}`,
		`{"id":0,"rich_text":"no id","create_time":"2025-05-14 16:35:00","tag":[],"ext":""}`,
	}
	srv := serveBody(t, feedBody(items...))

	c := newTestClient(t, srv.URL)
	flashes, latest, err := c.Fetch(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, int64(102), latest)
	require.Len(t, flashes, 1)
	assert.Equal(t, "sina_live_102", flashes[0].ID)
}

func TestNormalize_MalformedCreateTimeDegrades(t *testing.T) {
	item := `{"id":103,"rich_text":"bad time","create_time":"not-a-timestamp","tag":[],"ext":""}`
	srv := serveBody(t, feedBody(item))

	c := newTestClient(t, srv.URL)
	flashes, _, err := c.Fetch(context.Background(), 0)
	require.NoError(t, err)

	require.Len(t, flashes, 1)
	assert.Nil(t, flashes[0].PublishedAt)
	assert.Equal(t, "bad time", flashes[0].Content)
}

func TestNormalize_MalformedExtKeepsItem(t *testing.T) {
	item := `{"id":104,"rich_text":"bad ext","create_time":"2025-05-14 16:36:00","tag":[],"docurl":"https://example.com/top","ext":"{not json"}`
	srv := serveBody(t, feedBody(item))

	c := newTestClient(t, srv.URL)
	flashes, _, err := c.Fetch(context.Background(), 0)
	require.NoError(t, err)

	require.Len(t, flashes, 1)
	assert.Empty(t, flashes[0].Symbols)
	assert.Equal(t, "https://example.com/top", flashes[0].DetailURL)
}

func TestNormalize_IncompleteStockEntriesSkipped(t *testing.T) {
	ext := `{\"stocks\":[{\"market\":\"cn\",\"symbol\":\"sh600000\",\"key\":\"浦发银行\"},{\"market\":\"\",\"symbol\":\"sz000002\"},{\"market\":\"cn\",\"symbol\":\"\"}]}`
	item := fmt.Sprintf(`{"id":105,"rich_text":"stocks","create_time":"2025-05-14 16:36:00","tag":[],"ext":"%s"}`, ext)
	srv := serveBody(t, feedBody(item))

	c := newTestClient(t, srv.URL)
	flashes, _, err := c.Fetch(context.Background(), 0)
	require.NoError(t, err)

	require.Len(t, flashes, 1)
	require.Len(t, flashes[0].Symbols, 1)
	assert.Equal(t, "SH600000", flashes[0].Symbols[0].Symbol)
}

func TestMain(m *testing.M) {
	_ = logger.Init("error", "test")
	os.Exit(m.Run())
}
