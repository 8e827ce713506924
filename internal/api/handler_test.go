package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amansuggest/internal/config"
	"github.com/Aman-CERP/amansuggest/internal/suggest"
)

type lookupCall struct {
	projects []string
	query    suggest.Query
	text     suggest.TextQuery
}

type fakeSuggester struct {
	cfg     *config.Config
	results []suggest.LookupResult

	mu       sync.Mutex
	lookups  []lookupCall
	searches []suggest.TextQuery
	counts   []suggest.Term
	weights  []int
}

func newFakeSuggester() *fakeSuggester {
	cfg := config.NewConfig()
	cfg.ProjectsEnabled = true
	cfg.Projects = map[string]config.Project{"p1": {}, "p2": {}}
	return &fakeSuggester{
		cfg: cfg,
		results: []suggest.LookupResult{
			{Phrase: "parse", Projects: []string{"p1"}, Score: 4},
			{Phrase: "parser", Projects: []string{"p1", "p2"}, Score: 2},
		},
	}
}

func (f *fakeSuggester) GetSuggestions(_ context.Context, projects []string, q suggest.Query, text suggest.TextQuery) []suggest.LookupResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, lookupCall{projects, q, text})
	return f.results
}

func (f *fakeSuggester) OnSearch(_ []string, text suggest.TextQuery) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, text)
}

func (f *fakeSuggester) IncreaseSearchCount(_ string, term suggest.Term, weight int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = append(f.counts, term)
	f.weights = append(f.weights, weight)
}

func (f *fakeSuggester) Config() *config.Config { return f.cfg }

func (f *fakeSuggester) Status() suggest.Status {
	return suggest.Status{State: suggest.Ready, Enabled: true}
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_SuggestDefaultPresentation(t *testing.T) {
	// Given: default show_* settings (projects shown, scores and time hidden)
	svc := newFakeSuggester()
	h := NewHandler(svc)

	// When: asking for suggestions
	rec := serve(t, h, http.MethodGet, "/api/v1/suggest?projects=p1,p2&projects=p3&prefix=par&q=path:src+main", "")

	// Then: the request is forwarded and the reply shaped
	require.Equal(t, http.StatusOK, rec.Code)
	var reply Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	require.Len(t, reply.Suggestions, 2)
	assert.Equal(t, "parse", reply.Suggestions[0].Phrase)
	assert.Equal(t, []string{"p1", "p2"}, reply.Suggestions[1].Projects)
	assert.Nil(t, reply.Suggestions[0].Score)
	assert.Nil(t, reply.TimeMillis)
	assert.Equal(t, "path:src main", reply.QueryText)

	require.Len(t, svc.lookups, 1)
	call := svc.lookups[0]
	assert.Equal(t, []string{"p1", "p2", "p3"}, call.projects)
	assert.Equal(t, suggest.Query{Field: "content", Prefix: "par"}, call.query)
	assert.Equal(t, suggest.TextQuery{Text: "main", Terms: []suggest.Term{{Field: "path", Text: "src"}}}, call.text)
}

func TestHandler_SuggestShowsScoresAndTime(t *testing.T) {
	svc := newFakeSuggester()
	svc.cfg.Suggester.ShowScores = true
	svc.cfg.Suggester.ShowTime = true
	svc.cfg.Suggester.ShowProjects = false
	h := NewHandler(svc)

	rec := serve(t, h, http.MethodGet, "/api/v1/suggest?field=path&prefix=s", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var reply Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	require.NotNil(t, reply.Suggestions[0].Score)
	assert.Equal(t, 4.0, *reply.Suggestions[0].Score)
	assert.Nil(t, reply.Suggestions[0].Projects)
	assert.NotNil(t, reply.TimeMillis)
}

func TestHandler_SuggestDisabled(t *testing.T) {
	svc := newFakeSuggester()
	svc.cfg.Suggester.Enabled = false

	rec := serve(t, NewHandler(svc), http.MethodGet, "/api/v1/suggest?prefix=par", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, svc.lookups)
}

func TestHandler_Config(t *testing.T) {
	svc := newFakeSuggester()

	rec := serve(t, NewHandler(svc), http.MethodGet, "/api/v1/suggest/config", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var view ConfigView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 10, view.MaxResults)
	assert.Equal(t, config.DefaultRebuildCron, view.RebuildCron)
	assert.True(t, view.AllowMostPopular)
}

func TestHandler_Popularity(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		weight int
	}{
		{"default weight", `{"project":"p1","field":"content","term":"parse"}`, http.StatusNoContent, 1},
		{"explicit weight", `{"project":"p2","term":"parse","weight":3}`, http.StatusNoContent, 3},
		{"missing term", `{"project":"p1"}`, http.StatusBadRequest, 0},
		{"unknown project", `{"project":"ghost","term":"x1"}`, http.StatusBadRequest, 0},
		{"unknown field in body", `{"project":"p1","term":"x1","bogus":1}`, http.StatusBadRequest, 0},
		{"malformed", `{`, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeSuggester()

			rec := serve(t, NewHandler(svc), http.MethodPost, "/api/v1/suggest/popularity", tt.body)

			assert.Equal(t, tt.status, rec.Code)
			if tt.weight > 0 {
				require.Len(t, svc.weights, 1)
				assert.Equal(t, tt.weight, svc.weights[0])
			} else {
				assert.Empty(t, svc.weights)
			}
		})
	}
}

func TestHandler_PopularityDisabled(t *testing.T) {
	svc := newFakeSuggester()
	svc.cfg.Suggester.AllowMostPopular = false

	rec := serve(t, NewHandler(svc), http.MethodPost, "/api/v1/suggest/popularity", `{"project":"p1","term":"parse"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, svc.counts)
}

func TestHandler_SearchEvent(t *testing.T) {
	svc := newFakeSuggester()

	rec := serve(t, NewHandler(svc), http.MethodPost, "/api/v1/suggest/search-events",
		`{"projects":["p1"],"q":"content:parse handler"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, svc.searches, 1)
	assert.Equal(t, "handler", svc.searches[0].Text)
}

func TestHandler_Health(t *testing.T) {
	rec := serve(t, NewHandler(newFakeSuggester()), http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","state":"ready"}`, rec.Body.String())
}

func TestParseQueryText(t *testing.T) {
	tests := []struct {
		in   string
		want suggest.TextQuery
	}{
		{"", suggest.TextQuery{}},
		{"foo bar", suggest.TextQuery{Text: "foo bar"}},
		{"path:src", suggest.TextQuery{Terms: []suggest.Term{{Field: "path", Text: "src"}}}},
		{"a: :b x", suggest.TextQuery{Text: "a: :b x"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseQueryText(tt.in))
		})
	}
}

func TestNewReply_EmptyResultsEncodeAsList(t *testing.T) {
	sc := config.DefaultSuggesterConfig()

	data, err := json.Marshal(NewReply(&sc, nil, "", time.Millisecond))

	require.NoError(t, err)
	assert.JSONEq(t, `{"suggestions":[]}`, string(data))
}
