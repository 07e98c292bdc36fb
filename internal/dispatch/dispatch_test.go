package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikigate/wikigate/internal/jsonrpc"
	"github.com/wikigate/wikigate/mcp"
	"github.com/wikigate/wikigate/toolkit"
)

type echoArgs struct {
	Message string `json:"message"`
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()

	reg := toolkit.NewRegistry()
	require.NoError(t, reg.Register(toolkit.NewTool("echo",
		func(ctx context.Context, a echoArgs) (*mcp.CallToolResult, error) {
			return toolkit.TextResult("echo: " + a.Message), nil
		},
		toolkit.WithDescription("Echo a message back."),
	)))
	require.NoError(t, reg.Register(toolkit.NewTool("boom",
		func(ctx context.Context, a echoArgs) (*mcp.CallToolResult, error) {
			return nil, fmt.Errorf("handler exploded")
		},
	)))
	require.NoError(t, reg.Alias("repeat", "echo"))

	return New(reg, mcp.ImplementationInfo{Name: "testgate", Version: "0.0.0"})
}

func dispatchRaw(d *Dispatcher, sessID, raw string) Outcome {
	return d.Dispatch(context.Background(), sessID, json.RawMessage(raw))
}

func resultOf[T any](t *testing.T, resp *jsonrpc.Response) T {
	t.Helper()
	require.NotNil(t, resp)
	require.Nil(t, resp.Error, "expected a result, got error: %+v", resp.Error)
	var out T
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	return out
}

func TestDispatchInitialize(t *testing.T) {
	d := newTestDispatcher(t)

	out := dispatchRaw(d, "sess-1", `{"jsonrpc":"2.0","method":"initialize","id":1,"params":{"protocolVersion":"2025-03-26","clientInfo":{"name":"tester","version":"1.0"}}}`)
	require.True(t, out.Initialized)

	res := resultOf[mcp.InitializeResult](t, out.Response)
	assert.Equal(t, mcp.ProtocolVersion, res.ProtocolVersion)
	assert.Equal(t, "sess-1", res.SessionID, "session id is echoed in the result body")
	assert.Equal(t, "testgate", res.ServerInfo.Name)
	require.NotNil(t, res.Capabilities.Tools)
}

func TestDispatchImplicitInitialize(t *testing.T) {
	d := newTestDispatcher(t)

	// No method at all: treated as initialize for malformed-client compatibility.
	out := dispatchRaw(d, "sess-2", `{"jsonrpc":"2.0","id":9}`)
	require.True(t, out.Initialized)

	res := resultOf[mcp.InitializeResult](t, out.Response)
	assert.Equal(t, "sess-2", res.SessionID)
}

func TestDispatchMethodNormalization(t *testing.T) {
	d := newTestDispatcher(t)

	for _, method := range []string{
		"initialize",
		"INITIALIZE",
		"Initialize",
		"mcp.initialize",
		"MCP_INITIALIZE",
	} {
		out := dispatchRaw(d, "s", fmt.Sprintf(`{"jsonrpc":"2.0","method":%q,"id":1}`, method))
		assert.True(t, out.Initialized, "method %q should dispatch as initialize", method)
	}

	for _, method := range []string{"tools.list", "TOOLS_LIST", "mcp.tools.list"} {
		out := dispatchRaw(d, "s", fmt.Sprintf(`{"jsonrpc":"2.0","method":%q,"id":1}`, method))
		res := resultOf[mcp.ListToolsResult](t, out.Response)
		assert.Len(t, res.Tools, 2, "method %q should dispatch as tools/list", method)
	}
}

func TestDispatchNotificationYieldsNoResponse(t *testing.T) {
	d := newTestDispatcher(t)

	out := dispatchRaw(d, "s", `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Nil(t, out.Response)
	assert.False(t, out.Initialized)

	// Any notification is absorbed, known method or not.
	out = dispatchRaw(d, "s", `{"jsonrpc":"2.0","method":"notifications/whatever"}`)
	assert.Nil(t, out.Response)
}

func TestDispatchInitializedWithIDGetsAck(t *testing.T) {
	d := newTestDispatcher(t)

	out := dispatchRaw(d, "s", `{"jsonrpc":"2.0","method":"notifications/initialized","id":3}`)
	require.NotNil(t, out.Response)
	assert.Nil(t, out.Response.Error)
	assert.JSONEq(t, `{}`, string(out.Response.Result))
}

func TestDispatchToolsList(t *testing.T) {
	d := newTestDispatcher(t)

	out := dispatchRaw(d, "s", `{"jsonrpc":"2.0","method":"tools/list","id":4}`)
	res := resultOf[mcp.ListToolsResult](t, out.Response)

	require.Len(t, res.Tools, 2)
	assert.Equal(t, "echo", res.Tools[0].Name, "registration order is preserved")
	assert.Equal(t, "boom", res.Tools[1].Name)
	assert.Equal(t, "object", res.Tools[0].InputSchema.Type)
}

func TestDispatchToolsCall(t *testing.T) {
	d := newTestDispatcher(t)

	out := dispatchRaw(d, "s", `{"jsonrpc":"2.0","method":"tools/call","id":5,"params":{"name":"echo","arguments":{"message":"hi"}}}`)
	res := resultOf[mcp.CallToolResult](t, out.Response)

	require.Len(t, res.Content, 1)
	assert.Equal(t, "echo: hi", res.Content[0].Text)
	assert.False(t, res.IsError)
}

func TestDispatchToolsCallViaAlias(t *testing.T) {
	d := newTestDispatcher(t)

	out := dispatchRaw(d, "s", `{"jsonrpc":"2.0","method":"tools/call","id":5,"params":{"name":"repeat","arguments":{"message":"hi"}}}`)
	res := resultOf[mcp.CallToolResult](t, out.Response)
	assert.Equal(t, "echo: hi", res.Content[0].Text)
}

func TestDispatchToolsCallErrors(t *testing.T) {
	d := newTestDispatcher(t)

	t.Run("unknown tool names the original spelling", func(t *testing.T) {
		out := dispatchRaw(d, "s", `{"jsonrpc":"2.0","method":"tools/call","id":6,"params":{"name":"doesNotExist"}}`)
		require.NotNil(t, out.Response)
		require.NotNil(t, out.Response.Error)
		assert.Equal(t, jsonrpc.ErrorCodeMethodNotFound, out.Response.Error.Code)
		assert.Contains(t, out.Response.Error.Message, "doesNotExist")
	})

	t.Run("missing tool name", func(t *testing.T) {
		out := dispatchRaw(d, "s", `{"jsonrpc":"2.0","method":"tools/call","id":7,"params":{}}`)
		require.NotNil(t, out.Response.Error)
		assert.Equal(t, jsonrpc.ErrorCodeInvalidParams, out.Response.Error.Code)
	})

	t.Run("malformed params", func(t *testing.T) {
		out := dispatchRaw(d, "s", `{"jsonrpc":"2.0","method":"tools/call","id":8,"params":"nope"}`)
		require.NotNil(t, out.Response.Error)
		assert.Equal(t, jsonrpc.ErrorCodeInvalidParams, out.Response.Error.Code)
	})

	t.Run("handler failure is an internal error", func(t *testing.T) {
		out := dispatchRaw(d, "s", `{"jsonrpc":"2.0","method":"tools/call","id":9,"params":{"name":"boom","arguments":{}}}`)
		require.NotNil(t, out.Response.Error)
		assert.Equal(t, jsonrpc.ErrorCodeInternalError, out.Response.Error.Code)
	})
}

func TestDispatchPing(t *testing.T) {
	d := newTestDispatcher(t)

	out := dispatchRaw(d, "s", `{"jsonrpc":"2.0","method":"ping","id":10}`)
	require.NotNil(t, out.Response)
	assert.Nil(t, out.Response.Error)
	assert.JSONEq(t, `{}`, string(out.Response.Result))
}

func TestDispatchUnknownMethod(t *testing.T) {
	d := newTestDispatcher(t)

	out := dispatchRaw(d, "s", `{"jsonrpc":"2.0","method":"resources/list","id":11}`)
	require.NotNil(t, out.Response.Error)
	assert.Equal(t, jsonrpc.ErrorCodeMethodNotFound, out.Response.Error.Code)
	assert.Contains(t, out.Response.Error.Message, "resources/list")
}

func TestDispatchUndecodableEnvelope(t *testing.T) {
	d := newTestDispatcher(t)

	out := dispatchRaw(d, "s", `[1,2,3]`)
	require.NotNil(t, out.Response.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInvalidRequest, out.Response.Error.Code)
}

func TestCanonicalMethod(t *testing.T) {
	cases := map[string]string{
		"initialize":                "initialize",
		"Tools.Call":                "tools/call",
		"tools_call":                "tools/call",
		"MCP.TOOLS.LIST":            "tools/list",
		"mcp/ping":                  "ping",
		"notifications_initialized": "notifications/initialized",
		"  ping ":                   "ping",
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalMethod(in), "input %q", in)
	}
}
