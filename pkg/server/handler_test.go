package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/kotoba/pkg/cache"
	"github.com/japaniel/kotoba/pkg/dictionary"
	"github.com/japaniel/kotoba/pkg/search"
	"github.com/japaniel/kotoba/pkg/tags"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type searcherFunc func(ctx context.Context, rawQuery, mode string) (*search.Response, error)

func (f searcherFunc) Search(ctx context.Context, rawQuery, mode string) (*search.Response, error) {
	return f(ctx, rawQuery, mode)
}

type tagList []tags.Tag

func (l tagList) All() []tags.Tag { return l }

func newTestMux(t *testing.T, s Searcher, l TagLister, ready func() bool) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(testLogger(), s, l, ready, "test").Routes(mux, "/metrics", nil)
	return mux
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestSearch_PassesQueryAndMode(t *testing.T) {
	var gotQuery, gotMode string
	s := searcherFunc(func(_ context.Context, rawQuery, mode string) (*search.Response, error) {
		gotQuery, gotMode = rawQuery, mode
		return &search.Response{TotalResults: 0, Results: []search.GroupedResult{}}, nil
	})

	rec := get(t, newTestMux(t, s, tagList{}, nil), "/search?query=%E7%8A%AC+%23n&mode=exact")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "犬 #n", gotQuery)
	assert.Equal(t, "exact", gotMode)
	assert.JSONEq(t, `{"totalResults":0,"results":[]}`, rec.Body.String())
}

func TestSearch_ValidationErrorIs400(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"missing query", "/search", "query: required"},
		{"empty query", "/search?query=&mode=exact", "query: required"},
		{"bad frequency", "/search?query=%23frqabc", `query: frequency "abc" is not an integer`},
	}

	svc := search.NewService(testLogger(), dictionary.NewStore(nil, nil), tags.NewResolver(nil), nil)
	mux := newTestMux(t, svc, tagList{}, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, mux, tt.target)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decodeError(t, rec))
		})
	}
}

func TestSearch_BlankQueryIsNotMissing(t *testing.T) {
	store := dictionary.NewStore([]dictionary.Entry{
		{Term: "犬", Reading: "いぬ", Meanings: []string{"dog"}},
	}, nil)
	svc := search.NewService(testLogger(), store, tags.NewResolver(nil), nil)

	rec := get(t, newTestMux(t, svc, tagList{}, nil), "/search?query=++&mode=any")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp search.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.TotalResults)
}

func TestSearch_InternalErrorIs500(t *testing.T) {
	s := searcherFunc(func(context.Context, string, string) (*search.Response, error) {
		return nil, fmt.Errorf("boom: %w", search.ErrInternal)
	})

	rec := get(t, newTestMux(t, s, tagList{}, nil), "/search?query=x")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeError(t, rec))
}

func TestSearch_EndToEnd(t *testing.T) {
	dog := dictionary.Entry{Term: "犬", Reading: "いぬ", PartOfSpeechTags: []string{"n"}, Frequency: 10, Ranked: true, Meanings: []string{"dog"}}
	spy := dictionary.Entry{Term: "犬", Reading: "いぬ", PartOfSpeechTags: []string{"n"}, Frequency: 3, Ranked: true, Meanings: []string{"spy"}}
	cat := dictionary.Entry{Term: "猫", Reading: "ねこ", PartOfSpeechTags: []string{"n"}, Meanings: []string{"cat"}}
	store := dictionary.NewStore([]dictionary.Entry{dog, spy, cat}, []dictionary.FuriganaEntry{
		{Term: "犬", Reading: "いぬ", Segments: []dictionary.FuriganaSegment{{Ruby: "犬", Rt: "いぬ"}}},
	})
	resolver := tags.NewResolver([]tags.Definition{{Symbol: "n", Category: "partOfSpeech", Description: "noun"}})
	c, err := cache.New[cache.RequestKey, *search.Response](cache.Config{Policy: cache.PolicyLRU, MaxEntries: 10})
	require.NoError(t, err)
	svc := search.NewService(testLogger(), store, resolver, c)
	mux := newTestMux(t, svc, resolver, nil)

	rec := get(t, mux, "/search?query=%E7%8A%AC&mode=exact")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"totalResults": 1,
		"results": [{
			"term": "犬",
			"reading": "いぬ",
			"meanings": ["dog", "spy"],
			"furigana": [{"ruby": "犬", "rt": "いぬ"}],
			"tags": [{"id": 1, "symbol": "n", "category": "partOfSpeech", "description": "noun"}],
			"frequency": 10
		}]
	}`, rec.Body.String())

	rec = get(t, mux, "/search?query=%23unknown")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"totalResults":0,"results":[]}`, rec.Body.String())

	// Unranked entries omit frequency as null.
	rec = get(t, mux, "/search?query=cat&mode=en_exact")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Results, 1)
	assert.Nil(t, resp.Results[0]["frequency"])
}

func TestTags(t *testing.T) {
	l := tagList{{ID: 1, Symbol: "n", Description: "noun"}, {ID: 2, Symbol: "P", Description: "popular"}}
	rec := get(t, newTestMux(t, nil, l, nil), "/tags")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":2,"tags":[
		{"id":1,"symbol":"n","description":"noun"},
		{"id":2,"symbol":"P","description":"popular"}
	]}`, rec.Body.String())
}

func TestTags_Empty(t *testing.T) {
	rec := get(t, newTestMux(t, nil, tagList(nil), nil), "/tags")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":0,"tags":[]}`, rec.Body.String())
}

func TestHealthAndReady(t *testing.T) {
	loaded := false
	mux := newTestMux(t, nil, tagList{}, func() bool { return loaded })

	rec := get(t, mux, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "test", body.Version)

	rec = get(t, mux, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	loaded = true
	rec = get(t, mux, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	mux := newTestMux(t, nil, tagList{}, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search?query=x", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRoutes_Metrics(t *testing.T) {
	mux := http.NewServeMux()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "# metrics")
	})
	NewHandler(testLogger(), nil, tagList{}, nil, "").Routes(mux, "/internal/metrics", metrics)

	rec := get(t, mux, "/internal/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())

	rec = get(t, mux, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearch_ErrorsAreNotLeaked(t *testing.T) {
	s := searcherFunc(func(context.Context, string, string) (*search.Response, error) {
		return nil, errors.New("sql: database is locked at /srv/secret.db")
	})
	rec := get(t, newTestMux(t, s, tagList{}, nil), "/search?query=x")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}
