package wikitools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/wikigate/wikigate/mcp"
	"github.com/wikigate/wikigate/pagewalk"
	"github.com/wikigate/wikigate/toolkit"
	"github.com/wikigate/wikigate/upstream"
)

// Aliases is the historical tool-name alias table. It is the single source
// of truth for alias resolution and is reviewed as part of the public
// contract; nothing recomputes aliases at request time.
var Aliases = map[string]string{
	"search":            "wiki_search",
	"confluence_search": "wiki_search",
	"get_page":          "wiki_get_page",
	"list_spaces":       "wiki_list_spaces",
	"get_comments":      "wiki_list_comments",
	"create_page":       "wiki_create_page",
}

// Config wires the tool set to its collaborators.
type Config struct {
	Client *upstream.Client
	// PageSize is the upstream page size used when a call does not set one.
	PageSize int
	// MaxPages is the aggregator's hard page-fetch ceiling.
	MaxPages int
	// DefaultBudget caps accumulated results when a call does not set
	// max_results. 0 means unbounded.
	DefaultBudget int
	Logger        *slog.Logger
}

type service struct {
	client        *upstream.Client
	pageSize      int
	maxPages      int
	defaultBudget int
	log           *slog.Logger
}

// Register adds the wiki tool set and its alias table to the registry.
func Register(reg *toolkit.Registry, cfg Config) error {
	if cfg.Client == nil {
		return fmt.Errorf("upstream client is required")
	}
	s := &service{
		client:        cfg.Client,
		pageSize:      cfg.PageSize,
		maxPages:      cfg.MaxPages,
		defaultBudget: cfg.DefaultBudget,
		log:           cfg.Logger,
	}
	if s.pageSize <= 0 {
		s.pageSize = pagewalk.DefaultLimit
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	tools := []toolkit.Tool{
		toolkit.NewTool("wiki_list_spaces", s.listSpaces,
			toolkit.WithDescription("List wiki spaces. Follows pagination cursors up to the result budget.")),
		toolkit.NewTool("wiki_search", s.search,
			toolkit.WithDescription("Search wiki pages by text query, optionally scoped to one space.")),
		toolkit.NewTool("wiki_get_page", s.getPage,
			toolkit.WithDescription("Fetch a single wiki page by id, including its body.")),
		toolkit.NewTool("wiki_create_page", s.createPage,
			toolkit.WithDescription("Create a new wiki page in a space.")),
		toolkit.NewTool("wiki_list_comments", s.listComments,
			toolkit.WithDescription("List the comments on a wiki page.")),
	}
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	for alias, canonical := range Aliases {
		if err := reg.Alias(alias, canonical); err != nil {
			return err
		}
	}
	return nil
}

// pageArgs are the pagination controls shared by every listing tool.
type pageArgs struct {
	Limit        int    `json:"limit,omitempty" jsonschema:"description=Upstream page size"`
	Start        int    `json:"start,omitempty" jsonschema:"description=Offset into the first page of results"`
	Cursor       string `json:"cursor,omitempty" jsonschema:"description=Opaque continuation token from a previous call"`
	MaxResults   int    `json:"max_results,omitempty" jsonschema:"description=Cap on total accumulated results (0 uses the server default)"`
	AutoPaginate *bool  `json:"auto_paginate,omitempty" jsonschema:"description=Follow pagination cursors automatically (default true)"`
}

func (s *service) walkOptions(a pageArgs) pagewalk.Options {
	limit := a.Limit
	if limit <= 0 {
		limit = s.pageSize
	}
	budget := a.MaxResults
	if budget <= 0 {
		budget = s.defaultBudget
	}
	auto := true
	if a.AutoPaginate != nil {
		auto = *a.AutoPaginate
	}
	return pagewalk.Options{
		Limit:        limit,
		Start:        a.Start,
		Cursor:       a.Cursor,
		Budget:       budget,
		AutoContinue: auto,
		MaxPages:     s.maxPages,
	}
}

// failure lowers an aggregation error into a result-carried upstream error,
// or propagates it for the dispatcher to turn into an internal error.
func failure(err error) (*mcp.CallToolResult, error) {
	var ue *upstream.Error
	if errors.As(err, &ue) {
		return toolkit.UpstreamFailure(ue.Status, ue.Snippet), nil
	}
	return nil, err
}

func paginationMeta[T any](rs *pagewalk.ResultSet[T]) map[string]any {
	meta := map[string]any{
		"start":        rs.Start,
		"limit":        rs.Limit,
		"size":         rs.Size,
		"pagesFetched": rs.PagesFetched,
	}
	if rs.TotalSize > 0 {
		meta["totalSize"] = rs.TotalSize
	}
	if rs.NextCursor != "" {
		meta["nextCursor"] = rs.NextCursor
	}
	if rs.PrevCursor != "" {
		meta["prevCursor"] = rs.PrevCursor
	}
	return meta
}

func listResult[T any](noun string, key string, rs *pagewalk.ResultSet[T]) *mcp.CallToolResult {
	summary := fmt.Sprintf("%d %s", rs.Size, noun)
	if rs.NextCursor != "" {
		summary += " (more available via nextCursor)"
	}
	return toolkit.StructuredResult(summary, map[string]any{
		key:          rs.Items,
		"pagination": paginationMeta(rs),
	})
}

// --- wiki_list_spaces ---

type listSpacesArgs struct {
	pageArgs
}

func (s *service) fetchSpaces(ctx context.Context, req pagewalk.Request) (pagewalk.Page[Space], error) {
	var env listEnvelope[Space]
	if err := s.client.GetJSON(ctx, "/api/spaces", listQuery(req, nil), &env); err != nil {
		return pagewalk.Page[Space]{}, err
	}
	return envToPage(env), nil
}

func (s *service) listSpaces(ctx context.Context, a listSpacesArgs) (*mcp.CallToolResult, error) {
	rs, err := pagewalk.Aggregate(ctx, s.fetchSpaces, s.walkOptions(a.pageArgs))
	if err != nil {
		return failure(err)
	}
	return listResult("spaces", "spaces", rs), nil
}

// --- wiki_search ---

type searchArgs struct {
	Query    string `json:"query" jsonschema:"description=Text to search pages for,required"`
	SpaceKey string `json:"space_key,omitempty" jsonschema:"description=Restrict the search to one space"`
	pageArgs
}

func (s *service) search(ctx context.Context, a searchArgs) (*mcp.CallToolResult, error) {
	if strings.TrimSpace(a.Query) == "" {
		return toolkit.MissingInput("query"), nil
	}

	fetch := func(ctx context.Context, req pagewalk.Request) (pagewalk.Page[Page], error) {
		extra := url.Values{}
		extra.Set("query", a.Query)
		if a.SpaceKey != "" {
			extra.Set("spaceKey", a.SpaceKey)
		}
		var env listEnvelope[Page]
		if err := s.client.GetJSON(ctx, "/api/pages/search", listQuery(req, extra), &env); err != nil {
			return pagewalk.Page[Page]{}, err
		}
		return envToPage(env), nil
	}

	rs, err := pagewalk.Aggregate(ctx, fetch, s.walkOptions(a.pageArgs))
	if err != nil {
		return failure(err)
	}
	return listResult("pages", "results", rs), nil
}

// --- wiki_get_page ---

type getPageArgs struct {
	PageID string `json:"page_id" jsonschema:"description=Identifier of the page to fetch,required"`
}

func (s *service) getPage(ctx context.Context, a getPageArgs) (*mcp.CallToolResult, error) {
	if strings.TrimSpace(a.PageID) == "" {
		return toolkit.MissingInput("page_id"), nil
	}
	var page Page
	if err := s.client.GetJSON(ctx, "/api/pages/"+url.PathEscape(a.PageID), nil, &page); err != nil {
		return failure(err)
	}
	return toolkit.StructuredResult(fmt.Sprintf("page %s: %s", page.ID, page.Title), map[string]any{
		"page": page,
	}), nil
}

// --- wiki_create_page ---

type createPageArgs struct {
	SpaceKey string `json:"space_key" jsonschema:"description=Key of the space to create the page in,required"`
	Title    string `json:"title" jsonschema:"description=Title of the new page,required"`
	Body     string `json:"body,omitempty" jsonschema:"description=Page body in storage format"`
	ParentID string `json:"parent_id,omitempty" jsonschema:"description=Optional parent page id"`
}

func (s *service) createPage(ctx context.Context, a createPageArgs) (*mcp.CallToolResult, error) {
	var missing []string
	if strings.TrimSpace(a.SpaceKey) == "" {
		missing = append(missing, "space_key")
	}
	if strings.TrimSpace(a.Title) == "" {
		missing = append(missing, "title")
	}
	if len(missing) > 0 {
		return toolkit.MissingInput(missing...), nil
	}

	var page Page
	req := createPageRequest{SpaceKey: a.SpaceKey, Title: a.Title, Body: a.Body, ParentID: a.ParentID}
	if err := s.client.PostJSON(ctx, "/api/pages", req, &page); err != nil {
		return failure(err)
	}
	s.log.InfoContext(ctx, "wiki.page.create", slog.String("page_id", page.ID), slog.String("space_key", a.SpaceKey))
	return toolkit.StructuredResult(fmt.Sprintf("created page %s: %s", page.ID, page.Title), map[string]any{
		"page": page,
	}), nil
}

// --- wiki_list_comments ---

type listCommentsArgs struct {
	PageID string `json:"page_id" jsonschema:"description=Identifier of the page whose comments to list,required"`
	pageArgs
}

func (s *service) listComments(ctx context.Context, a listCommentsArgs) (*mcp.CallToolResult, error) {
	if strings.TrimSpace(a.PageID) == "" {
		return toolkit.MissingInput("page_id"), nil
	}

	fetch := func(ctx context.Context, req pagewalk.Request) (pagewalk.Page[Comment], error) {
		var env listEnvelope[Comment]
		path := "/api/pages/" + url.PathEscape(a.PageID) + "/comments"
		if err := s.client.GetJSON(ctx, path, listQuery(req, nil), &env); err != nil {
			return pagewalk.Page[Comment]{}, err
		}
		return envToPage(env), nil
	}

	rs, err := pagewalk.Aggregate(ctx, fetch, s.walkOptions(a.pageArgs))
	if err != nil {
		return failure(err)
	}
	return listResult("comments", "comments", rs), nil
}

// --- helpers ---

// listQuery translates an aggregator page request into upstream query
// parameters. A cursor supersedes the offset once a walk is underway.
func listQuery(req pagewalk.Request, extra url.Values) url.Values {
	q := url.Values{}
	for k, vs := range extra {
		q[k] = vs
	}
	q.Set("limit", strconv.Itoa(req.Limit))
	if req.Cursor != "" {
		q.Set("cursor", req.Cursor)
	} else if req.Start > 0 {
		q.Set("start", strconv.Itoa(req.Start))
	}
	return q
}

func envToPage[T any](env listEnvelope[T]) pagewalk.Page[T] {
	return pagewalk.Page[T]{
		Items:     env.Results,
		NextLink:  env.Links.Next,
		PrevLink:  env.Links.Prev,
		TotalSize: env.TotalSize,
	}
}
