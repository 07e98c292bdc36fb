package streaminghttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/wikigate/wikigate/internal/dispatch"
	"github.com/wikigate/wikigate/internal/jsonrpc"
	"github.com/wikigate/wikigate/internal/logctx"
	"github.com/wikigate/wikigate/sessions"
)

var _ http.Handler = (*Handler)(nil)

var (
	jsonMediaType        = contenttype.NewMediaType("application/json")
	eventStreamMediaType = contenttype.NewMediaType("text/event-stream")
)

const (
	// Use canonical header names for clarity; Go matches headers case-insensitively.
	mcpSessionIDHeader = "Mcp-Session-Id"
	acceptHeader       = "Accept"
)

// maxBodyBytes is the request body size ceiling (1 MiB).
const maxBodyBytes = 1 << 20

// defaultKeepAliveInterval paces keep-alive comments on GET streams.
const defaultKeepAliveInterval = 15 * time.Second

// writeJSONError emits a minimal JSON body for HTTP-layer rejections before a
// JSON-RPC message exchange is possible. This is transport-level, not
// JSON-RPC framing. Shape: {"error":{"code":<httpStatus>,"message":"<reason>"}}
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	if ct := w.Header().Get("Content-Type"); ct == "" || ct == jsonMediaType.String() {
		w.Header().Set("Content-Type", jsonMediaType.String())
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

// Option configures the Handler.
type Option func(*newConfig)

type newConfig struct {
	basePath  string
	logger    *slog.Logger
	keepAlive time.Duration
}

// WithBasePath overrides the endpoint path (default "/mcp").
func WithBasePath(path string) Option {
	return func(c *newConfig) { c.basePath = strings.TrimSuffix(path, "/") }
}

// WithLogger sets the slog logger used by the handler.
func WithLogger(log *slog.Logger) Option {
	return func(c *newConfig) { c.logger = log }
}

// WithKeepAliveInterval sets the pacing of keep-alive comments on GET
// streams.
func WithKeepAliveInterval(d time.Duration) Option {
	return func(c *newConfig) { c.keepAlive = d }
}

// Handler is the gateway's HTTP entry point. It normalizes message
// envelopes, resolves the session, negotiates the response transport, and
// feeds each envelope through the dispatcher in order.
type Handler struct {
	mux        *http.ServeMux
	log        *slog.Logger
	dispatcher *dispatch.Dispatcher
	sessions   *sessions.Manager
	keepAlive  time.Duration
}

// New constructs a Handler serving the MCP endpoint plus the connector path
// alias ("/mcp/{connector}", where the extra segment is logged, never
// interpreted).
func New(dispatcher *dispatch.Dispatcher, sessionManager *sessions.Manager, opts ...Option) (*Handler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if sessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}

	cfg := &newConfig{basePath: "/mcp", logger: slog.Default(), keepAlive: defaultKeepAliveInterval}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &Handler{
		log:        slog.New(logctx.Handler{Handler: cfg.logger.Handler()}),
		dispatcher: dispatcher,
		sessions:   sessionManager,
		keepAlive:  cfg.keepAlive,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("POST %s", cfg.basePath), h.handlePost)
	mux.HandleFunc(fmt.Sprintf("POST %s/{connector}", cfg.basePath), h.handlePost)
	mux.HandleFunc(fmt.Sprintf("GET %s", cfg.basePath), h.handleGet)
	mux.HandleFunc(fmt.Sprintf("GET %s/{connector}", cfg.basePath), h.handleGet)
	h.mux = mux
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r.WithContext(logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})))
}

// handlePost accepts one envelope or a batch and answers over the negotiated
// transport.
func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	h.log.InfoContext(ctx, "http.post.start")

	if connector := r.PathValue("connector"); connector != "" {
		h.log.DebugContext(ctx, "http.post.connector_alias", slog.String("connector", connector))
	}

	// An explicit non-JSON content type is a transport-level rejection. An
	// absent header is tolerated: connector intermediaries are sloppy here
	// and the normalizer handles string-encoded bodies anyway.
	if r.Header.Get("Content-Type") != "" {
		ctype, err := contenttype.GetMediaType(r)
		if err != nil || !ctype.Matches(jsonMediaType) {
			writeJSONError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
			h.log.WarnContext(ctx, "content_type.unsupported")
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		h.log.WarnContext(ctx, "body.read.fail", slog.String("err", err.Error()))
		return
	}
	if len(body) > maxBodyBytes {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		h.log.WarnContext(ctx, "body.too_large")
		return
	}

	useStream := UseStreamTransport(r.Header.Get(acceptHeader))

	envelopes, batch, err := jsonrpc.Normalize(body)
	if err != nil {
		// Protocol-level failure: a parse error envelope with HTTP success.
		h.log.WarnContext(ctx, "envelope.normalize.fail", slog.String("err", err.Error()))
		h.emit(ctx, w, useStream, false, []*jsonrpc.Response{
			jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, "parse error", nil),
		})
		return
	}

	sessID := h.sessions.Resolve(r.Header.Get(mcpSessionIDHeader))
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sessID})
	if _, err := h.sessions.Touch(ctx, sessID); err != nil {
		// Session bookkeeping failures are not worth failing the exchange.
		h.log.ErrorContext(ctx, "session.touch.fail", slog.String("err", err.Error()))
	}

	if len(envelopes) == 0 {
		// An empty batch yields no responses. A stream can legitimately
		// carry nothing; the single-JSON transport degenerates to an
		// explicit invalid-request error instead of silence.
		if useStream {
			w.WriteHeader(http.StatusAccepted)
			h.log.InfoContext(ctx, "http.post.empty_batch")
			return
		}
		h.emit(ctx, w, false, batch, []*jsonrpc.Response{
			jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeInvalidRequest, "empty batch", nil),
		})
		return
	}

	responses := make([]*jsonrpc.Response, 0, len(envelopes))
	sessionHeaderSet := false
	for _, raw := range envelopes {
		outcome := h.dispatcher.Dispatch(ctx, sessID, raw)
		if outcome.Initialized && !sessionHeaderSet {
			// First initialize wins the header; every initialize result
			// still carries the id in its body.
			w.Header().Set(mcpSessionIDHeader, sessID)
			sessionHeaderSet = true
		}
		if outcome.Response != nil {
			responses = append(responses, outcome.Response)
		}
	}

	if len(responses) == 0 {
		// Every envelope was a notification: acknowledged, no content.
		w.WriteHeader(http.StatusAccepted)
		h.log.InfoContext(ctx, "http.post.notifications_only", slog.Duration("dur", time.Since(start)))
		return
	}

	h.emit(ctx, w, useStream, batch, responses)
	h.log.InfoContext(ctx, "http.post.ok",
		slog.Int("responses", len(responses)),
		slog.Bool("stream", useStream),
		slog.Duration("dur", time.Since(start)),
	)
}

// emit serializes the response sequence over the negotiated transport,
// preserving input order.
func (h *Handler) emit(ctx context.Context, w http.ResponseWriter, useStream bool, batch bool, responses []*jsonrpc.Response) {
	if useStream {
		f, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
			h.log.ErrorContext(ctx, "sse.flusher.missing")
			return
		}
		wf := &lockedWriteFlusher{Writer: w, Flusher: f, ctx: ctx}

		w.Header().Set("Content-Type", eventStreamMediaType.String())
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		wf.Flush()

		for _, res := range responses {
			b, err := json.Marshal(res)
			if err != nil {
				h.log.ErrorContext(ctx, "rpc.response.marshal.fail", slog.String("err", err.Error()))
				return
			}
			if err := writeSSEEvent(wf, b); err != nil {
				// Client went away; stop writing further events.
				h.log.WarnContext(ctx, "sse.write.fail", slog.String("err", err.Error()))
				return
			}
		}
		return
	}

	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	var err error
	if batch {
		err = enc.Encode(responses)
	} else {
		err = enc.Encode(responses[0])
	}
	if err != nil {
		h.log.ErrorContext(ctx, "rpc.response.write.fail", slog.String("err", err.Error()))
	}
}

// handleGet opens a server-push stream for callers that ask for one. Without
// an event-stream Accept the endpoint has nothing to say: 405.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	acc := r.Header.Get(acceptHeader)
	if acc == "" {
		w.Header().Set("Allow", "POST")
		writeJSONError(w, http.StatusMethodNotAllowed, "GET requires an Accept header including text/event-stream")
		h.log.WarnContext(ctx, "http.get.no_accept")
		return
	}
	if _, _, err := contenttype.GetAcceptableMediaType(r, []contenttype.MediaType{eventStreamMediaType}); err != nil {
		w.Header().Set("Allow", "POST")
		writeJSONError(w, http.StatusMethodNotAllowed, "GET requires an Accept header including text/event-stream")
		h.log.WarnContext(ctx, "http.get.unsupported_accept", slog.String("accept", acc))
		return
	}

	f, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		h.log.ErrorContext(ctx, "sse.flusher.missing")
		return
	}
	wf := &lockedWriteFlusher{Writer: w, Flusher: f, ctx: ctx}

	if sessHeader := r.Header.Get(mcpSessionIDHeader); sessHeader != "" {
		sessID := h.sessions.Resolve(sessHeader)
		ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sessID})
		if _, err := h.sessions.Touch(ctx, sessID); err != nil {
			h.log.ErrorContext(ctx, "session.touch.fail", slog.String("err", err.Error()))
		}
	}

	w.Header().Set("Content-Type", eventStreamMediaType.String())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	wf.Flush()

	h.log.InfoContext(ctx, "sse.stream.start")

	// Nothing is pushed server-initiated today; the stream carries periodic
	// keep-alive comments until the client disconnects.
	t := time.NewTicker(h.keepAlive)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.log.InfoContext(ctx, "sse.stream.end", slog.Duration("dur", time.Since(start)))
			return
		case <-t.C:
			if err := writeSSEComment(wf, "keep-alive"); err != nil {
				h.log.InfoContext(ctx, "sse.stream.closed", slog.Duration("dur", time.Since(start)))
				return
			}
		}
	}
}
