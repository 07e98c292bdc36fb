package wikitools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikigate/wikigate/mcp"
	"github.com/wikigate/wikigate/toolkit"
	"github.com/wikigate/wikigate/upstream"
)

// fakeWiki is an httptest-backed upstream with cursor-paginated listings.
type fakeWiki struct {
	spaces   []Space
	pages    []Page
	comments map[string][]Comment

	requests atomic.Int64
	lastAuth atomic.Value
}

func (f *fakeWiki) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/spaces", func(w http.ResponseWriter, r *http.Request) {
		f.observe(r)
		writePage(w, r, f.spaces, "/api/spaces")
	})
	mux.HandleFunc("GET /api/pages/search", func(w http.ResponseWriter, r *http.Request) {
		f.observe(r)
		query := r.URL.Query().Get("query")
		if query == "" {
			http.Error(w, `{"message":"query is required"}`, http.StatusBadRequest)
			return
		}
		spaceKey := r.URL.Query().Get("spaceKey")
		var hits []Page
		for _, p := range f.pages {
			if spaceKey != "" && p.SpaceKey != spaceKey {
				continue
			}
			hits = append(hits, p)
		}
		writePage(w, r, hits, "/api/pages/search")
	})
	mux.HandleFunc("GET /api/pages/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.observe(r)
		for _, p := range f.pages {
			if p.ID == r.PathValue("id") {
				_ = json.NewEncoder(w).Encode(p)
				return
			}
		}
		http.Error(w, `{"message":"no such page"}`, http.StatusNotFound)
	})
	mux.HandleFunc("GET /api/pages/{id}/comments", func(w http.ResponseWriter, r *http.Request) {
		f.observe(r)
		writePage(w, r, f.comments[r.PathValue("id")], "/api/pages/"+r.PathValue("id")+"/comments")
	})
	mux.HandleFunc("POST /api/pages", func(w http.ResponseWriter, r *http.Request) {
		f.observe(r)
		var req createPageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"message":"bad body"}`, http.StatusBadRequest)
			return
		}
		created := Page{ID: "new-1", Title: req.Title, SpaceKey: req.SpaceKey, Body: req.Body, Version: 1}
		f.pages = append(f.pages, created)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(created)
	})
	return mux
}

func (f *fakeWiki) observe(r *http.Request) {
	f.requests.Add(1)
	f.lastAuth.Store(r.Header.Get("Authorization"))
}

// writePage slices the collection by limit plus cursor/start and emits the
// upstream listing envelope with next/prev links.
func writePage[T any](w http.ResponseWriter, r *http.Request, items []T, path string) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 25
	}
	offset := 0
	if c := q.Get("cursor"); c != "" {
		fmt.Sscanf(c, "c%d", &offset)
	} else if s := q.Get("start"); s != "" {
		offset, _ = strconv.Atoi(s)
	}
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}

	env := listEnvelope[T]{
		Results:   items[offset:end],
		Size:      end - offset,
		TotalSize: len(items),
	}
	if end < len(items) {
		env.Links.Next = fmt.Sprintf("%s?limit=%d&cursor=c%d", path, limit, end)
	}
	if offset > 0 {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		env.Links.Prev = fmt.Sprintf("%s?limit=%d&cursor=c%d", path, limit, prev)
	}
	_ = json.NewEncoder(w).Encode(env)
}

func spaceFixtures(n int) []Space {
	out := make([]Space, n)
	for i := range out {
		out[i] = Space{ID: fmt.Sprintf("sp-%d", i), Key: fmt.Sprintf("KEY%d", i), Name: fmt.Sprintf("Space %d", i)}
	}
	return out
}

func newTestRegistry(t *testing.T, wiki *fakeWiki, cfg Config) *toolkit.Registry {
	t.Helper()
	srv := httptest.NewServer(wiki.handler())
	t.Cleanup(srv.Close)

	client, err := upstream.New(srv.URL, upstream.WithToken("sekrit"))
	require.NoError(t, err)

	cfg.Client = client
	reg := toolkit.NewRegistry()
	require.NoError(t, Register(reg, cfg))
	return reg
}

func call(t *testing.T, reg *toolkit.Registry, name, args string) *mcp.CallToolResult {
	t.Helper()
	tool, ok := reg.Resolve(name)
	require.True(t, ok, "tool %q not registered", name)
	res, err := tool.Handler(context.Background(), json.RawMessage(args))
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

// decodeStructured round-trips the structured payload through JSON so typed
// assertions are possible on its shape.
func decodeStructured[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

type listingPayload[T any] struct {
	Spaces     []T `json:"spaces"`
	Results    []T `json:"results"`
	Comments   []T `json:"comments"`
	Pagination struct {
		Start        int    `json:"start"`
		Limit        int    `json:"limit"`
		Size         int    `json:"size"`
		PagesFetched int    `json:"pagesFetched"`
		TotalSize    int    `json:"totalSize"`
		NextCursor   string `json:"nextCursor"`
	} `json:"pagination"`
}

func TestListSpacesWalksAllPages(t *testing.T) {
	wiki := &fakeWiki{spaces: spaceFixtures(7)}
	reg := newTestRegistry(t, wiki, Config{PageSize: 3})

	res := call(t, reg, "wiki_list_spaces", `{}`)
	require.False(t, res.IsError, "content: %+v", res.Content)

	got := decodeStructured[listingPayload[Space]](t, res)
	assert.Len(t, got.Spaces, 7)
	assert.Equal(t, 3, got.Pagination.PagesFetched)
	assert.Equal(t, 7, got.Pagination.TotalSize)
	assert.Empty(t, got.Pagination.NextCursor)
	assert.Equal(t, int64(3), wiki.requests.Load())
	assert.Equal(t, "Bearer sekrit", wiki.lastAuth.Load())
}

func TestListSpacesBudget(t *testing.T) {
	wiki := &fakeWiki{spaces: spaceFixtures(20)}
	reg := newTestRegistry(t, wiki, Config{PageSize: 5})

	res := call(t, reg, "wiki_list_spaces", `{"max_results":8}`)
	require.False(t, res.IsError)

	got := decodeStructured[listingPayload[Space]](t, res)
	assert.Len(t, got.Spaces, 8, "accumulator is truncated to the requested budget")
	assert.Equal(t, 2, got.Pagination.PagesFetched)
	assert.NotEmpty(t, got.Pagination.NextCursor)
}

func TestListSpacesManualPagination(t *testing.T) {
	wiki := &fakeWiki{spaces: spaceFixtures(10)}
	reg := newTestRegistry(t, wiki, Config{PageSize: 4})

	res := call(t, reg, "wiki_list_spaces", `{"auto_paginate":false}`)
	got := decodeStructured[listingPayload[Space]](t, res)
	require.Len(t, got.Spaces, 4)
	require.Equal(t, "c4", got.Pagination.NextCursor)

	res = call(t, reg, "wiki_list_spaces", fmt.Sprintf(`{"auto_paginate":false,"cursor":%q}`, got.Pagination.NextCursor))
	second := decodeStructured[listingPayload[Space]](t, res)
	assert.Equal(t, "sp-4", second.Spaces[0].ID, "the cursor resumes where the first call stopped")
}

func TestSearch(t *testing.T) {
	wiki := &fakeWiki{pages: []Page{
		{ID: "p1", Title: "Alpha", SpaceKey: "DEV"},
		{ID: "p2", Title: "Beta", SpaceKey: "OPS"},
		{ID: "p3", Title: "Gamma", SpaceKey: "DEV"},
	}}
	reg := newTestRegistry(t, wiki, Config{})

	t.Run("missing query is a result-carried error", func(t *testing.T) {
		res := call(t, reg, "wiki_search", `{}`)
		assert.True(t, res.IsError)
		assert.Equal(t, toolkit.ErrCodeMissingInput, res.StructuredContent["code"])
		assert.Equal(t, []any{"query"}, res.StructuredContent["missing"])
	})

	t.Run("space scoping", func(t *testing.T) {
		res := call(t, reg, "wiki_search", `{"query":"anything","space_key":"DEV"}`)
		require.False(t, res.IsError)
		got := decodeStructured[listingPayload[Page]](t, res)
		require.Len(t, got.Results, 2)
		assert.Equal(t, "p1", got.Results[0].ID)
		assert.Equal(t, "p3", got.Results[1].ID)
	})

	t.Run("historical aliases resolve", func(t *testing.T) {
		for _, alias := range []string{"search", "confluence_search"} {
			res := call(t, reg, alias, `{"query":"anything"}`)
			assert.False(t, res.IsError, "alias %q", alias)
		}
	})
}

func TestGetPage(t *testing.T) {
	wiki := &fakeWiki{pages: []Page{{ID: "p1", Title: "Alpha", SpaceKey: "DEV", Body: "<p>hello</p>"}}}
	reg := newTestRegistry(t, wiki, Config{})

	t.Run("missing page_id", func(t *testing.T) {
		res := call(t, reg, "wiki_get_page", `{}`)
		assert.True(t, res.IsError)
		assert.Equal(t, []any{"page_id"}, res.StructuredContent["missing"])
	})

	t.Run("found", func(t *testing.T) {
		res := call(t, reg, "wiki_get_page", `{"page_id":"p1"}`)
		require.False(t, res.IsError)

		got := decodeStructured[struct {
			Page Page `json:"page"`
		}](t, res)
		assert.Equal(t, "Alpha", got.Page.Title)
		assert.Equal(t, "<p>hello</p>", got.Page.Body)
	})

	t.Run("upstream 404 rides inside the result", func(t *testing.T) {
		res := call(t, reg, "wiki_get_page", `{"page_id":"ghost"}`)
		assert.True(t, res.IsError)
		assert.Equal(t, toolkit.ErrCodeUpstreamError, res.StructuredContent["code"])
		assert.Equal(t, 404, res.StructuredContent["status"])
		assert.Contains(t, res.Content[0].Text, "404")
	})
}

func TestCreatePage(t *testing.T) {
	wiki := &fakeWiki{}
	reg := newTestRegistry(t, wiki, Config{})

	t.Run("missing fields are enumerated together", func(t *testing.T) {
		res := call(t, reg, "wiki_create_page", `{}`)
		assert.True(t, res.IsError)
		assert.Equal(t, []any{"space_key", "title"}, res.StructuredContent["missing"])
	})

	t.Run("created", func(t *testing.T) {
		res := call(t, reg, "wiki_create_page", `{"space_key":"DEV","title":"New Page","body":"<p>hi</p>"}`)
		require.False(t, res.IsError, "content: %+v", res.Content)

		got := decodeStructured[struct {
			Page Page `json:"page"`
		}](t, res)
		assert.Equal(t, "new-1", got.Page.ID)
		assert.Equal(t, "New Page", got.Page.Title)
		assert.Equal(t, "DEV", got.Page.SpaceKey)
	})
}

func TestListComments(t *testing.T) {
	wiki := &fakeWiki{comments: map[string][]Comment{
		"p1": {
			{ID: "c1", PageID: "p1", Author: "ana", Body: "first"},
			{ID: "c2", PageID: "p1", Author: "ben", Body: "second"},
		},
	}}
	reg := newTestRegistry(t, wiki, Config{})

	t.Run("missing page_id", func(t *testing.T) {
		res := call(t, reg, "wiki_list_comments", `{}`)
		assert.True(t, res.IsError)
	})

	t.Run("lists", func(t *testing.T) {
		res := call(t, reg, "wiki_list_comments", `{"page_id":"p1"}`)
		require.False(t, res.IsError)
		got := decodeStructured[listingPayload[Comment]](t, res)
		require.Len(t, got.Comments, 2)
		assert.Equal(t, "ana", got.Comments[0].Author)
	})

	t.Run("page with no comments", func(t *testing.T) {
		res := call(t, reg, "wiki_list_comments", `{"page_id":"p2"}`)
		require.False(t, res.IsError)
		got := decodeStructured[listingPayload[Comment]](t, res)
		assert.Empty(t, got.Comments)
	})
}

func TestRegisterRequiresClient(t *testing.T) {
	require.Error(t, Register(toolkit.NewRegistry(), Config{}))
}

func TestAliasTableTargetsRegisteredTools(t *testing.T) {
	wiki := &fakeWiki{}
	reg := newTestRegistry(t, wiki, Config{})

	for alias, canonical := range Aliases {
		tool, ok := reg.Resolve(alias)
		require.True(t, ok, "alias %q must resolve", alias)
		assert.Equal(t, canonical, tool.Descriptor.Name)
	}
}
