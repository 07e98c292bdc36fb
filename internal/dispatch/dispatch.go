// Package dispatch routes normalized message envelopes to their method
// handlers. One fully stateless transition per message: the only
// cross-message state lives in the session manager, which the HTTP layer
// owns. The dispatcher is parameterized by an injected tool registry so each
// deployment configuration supplies its own tool set.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wikigate/wikigate/internal/jsonrpc"
	"github.com/wikigate/wikigate/internal/logctx"
	"github.com/wikigate/wikigate/mcp"
	"github.com/wikigate/wikigate/toolkit"
)

// methodReplacer tolerates caller variance in method spelling: matching is
// case-insensitive with "." and "_" normalized to "/".
var methodReplacer = strings.NewReplacer(".", "/", "_", "/")

// CanonicalMethod normalizes a wire method name for dispatch. An optional
// protocol prefix is stripped so protocol-prefixed aliases resolve to the
// same handler.
func CanonicalMethod(m string) string {
	s := strings.ToLower(strings.TrimSpace(m))
	s = methodReplacer.Replace(s)
	s = strings.TrimPrefix(s, "mcp/")
	return s
}

// Outcome is the per-envelope dispatch product. Response is nil for bodiless
// notifications. Initialized reports that the envelope was an initialize
// (explicit or implicit) so the transport can attach the session header
// exactly once per HTTP response.
type Outcome struct {
	Response    *jsonrpc.Response
	Initialized bool
}

// Dispatcher routes envelopes to method handlers.
type Dispatcher struct {
	registry     *toolkit.Registry
	info         mcp.ImplementationInfo
	instructions string
	log          *slog.Logger
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the slog logger used by the dispatcher.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// WithInstructions sets the human-readable instructions string returned from
// initialize.
func WithInstructions(s string) Option {
	return func(d *Dispatcher) { d.instructions = s }
}

// New builds a Dispatcher over the given tool registry.
func New(registry *toolkit.Registry, info mcp.ImplementationInfo, opts ...Option) *Dispatcher {
	d := &Dispatcher{registry: registry, info: info, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch processes one normalized envelope against the session identified
// by sessID.
func (d *Dispatcher) Dispatch(ctx context.Context, sessID string, raw json.RawMessage) Outcome {
	env, err := jsonrpc.DecodeEnvelope(raw)
	if err != nil {
		return Outcome{Response: jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeInvalidRequest, "invalid request envelope", nil)}
	}

	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{
		Method: env.Method,
		ID:     env.ID.String(),
		Type:   envelopeType(env),
	})

	// A missing method is a compatibility fallback for malformed clients:
	// treat the envelope as an implicit initialize.
	if env.Method == "" {
		d.log.DebugContext(ctx, "rpc.dispatch.implicit_initialize")
		return d.initialize(ctx, sessID, env)
	}

	canonical := CanonicalMethod(env.Method)

	if env.IsNotification() {
		if canonical == string(mcp.InitializedNotificationMethod) {
			d.log.DebugContext(ctx, "rpc.notification.initialized")
		} else {
			d.log.DebugContext(ctx, "rpc.notification.accept")
		}
		// Notifications expect no response; the HTTP exchange still
		// completes with an accepted status upstream of here.
		return Outcome{}
	}

	switch canonical {
	case string(mcp.InitializeMethod):
		return d.initialize(ctx, sessID, env)
	case string(mcp.InitializedNotificationMethod):
		// A notification carrying an id is malformed but tolerated: echo an
		// acknowledgment result.
		return Outcome{Response: mustResult(env.ID, struct{}{})}
	case string(mcp.ToolsListMethod):
		return Outcome{Response: mustResult(env.ID, mcp.ListToolsResult{Tools: d.registry.Descriptors()})}
	case string(mcp.ToolsCallMethod):
		return Outcome{Response: d.callTool(ctx, env)}
	case string(mcp.PingMethod):
		return Outcome{Response: mustResult(env.ID, struct{}{})}
	default:
		d.log.InfoContext(ctx, "rpc.dispatch.unknown_method")
		return Outcome{Response: jsonrpc.NewErrorResponse(env.ID, jsonrpc.ErrorCodeMethodNotFound, fmt.Sprintf("method not found: %s", env.Method), nil)}
	}
}

func (d *Dispatcher) initialize(ctx context.Context, sessID string, env *jsonrpc.Request) Outcome {
	// Initialize always succeeds; client params are accepted but nothing in
	// them changes the advertised surface.
	if len(env.Params) > 0 {
		var initReq mcp.InitializeRequest
		_ = json.Unmarshal(env.Params, &initReq)
	}

	res := mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities: mcp.ServerCapabilities{
			Tools: &struct {
				ListChanged bool `json:"listChanged"`
			}{},
		},
		ServerInfo:   d.info,
		Instructions: d.instructions,
		SessionID:    sessID,
	}
	d.log.InfoContext(ctx, "session.initialize.ok")
	return Outcome{Response: mustResult(env.ID, res), Initialized: true}
}

func (d *Dispatcher) callTool(ctx context.Context, env *jsonrpc.Request) *jsonrpc.Response {
	var params mcp.CallToolParams
	if len(env.Params) > 0 {
		if err := json.Unmarshal(env.Params, &params); err != nil {
			return jsonrpc.NewErrorResponse(env.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil)
		}
	}
	if params.Name == "" {
		return jsonrpc.NewErrorResponse(env.ID, jsonrpc.ErrorCodeInvalidParams, "tool name is required", nil)
	}

	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: params.Name})

	tool, ok := d.registry.Resolve(params.Name)
	if !ok {
		// The error carries the originally supplied name, not a canonical
		// one, for caller debuggability.
		d.log.InfoContext(ctx, "tool.call.miss")
		return jsonrpc.NewErrorResponse(env.ID, jsonrpc.ErrorCodeMethodNotFound, fmt.Sprintf("tool not found: %s", params.Name), nil)
	}

	result, err := tool.Handler(ctx, params.Arguments)
	if err != nil {
		d.log.ErrorContext(ctx, "tool.call.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(env.ID, jsonrpc.ErrorCodeInternalError, "internal server error", nil)
	}
	d.log.InfoContext(ctx, "tool.call.ok", slog.Bool("is_error", result.IsError))
	return mustResult(env.ID, result)
}

func mustResult(id *jsonrpc.RequestID, result any) *jsonrpc.Response {
	resp, err := jsonrpc.NewResultResponse(id, result)
	if err != nil {
		return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInternalError, "failed to encode result", nil)
	}
	return resp
}

func envelopeType(env *jsonrpc.Request) string {
	if env.Method == "" {
		return "request"
	}
	if env.IsNotification() {
		return "notification"
	}
	return "request"
}
