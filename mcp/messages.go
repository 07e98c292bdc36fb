package mcp

import "encoding/json"

// Method is an MCP method identifier used in JSON-RPC messages.
type Method string

// Methods understood by the gateway's dispatcher.
const (
	InitializeMethod              Method = "initialize"
	InitializedNotificationMethod Method = "notifications/initialized"
	ToolsListMethod               Method = "tools/list"
	ToolsCallMethod               Method = "tools/call"
	PingMethod                    Method = "ping"
)

// ProtocolVersion is the protocol revision advertised in initialize results.
const ProtocolVersion = "2025-03-26"

// ImplementationInfo describes the implementation name and version.
type ImplementationInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Title   string `json:"title,omitzero"`
}

// ServerCapabilities advertises server features. The gateway only exposes
// tools; the struct shape leaves room for the rest of the protocol surface.
type ServerCapabilities struct {
	Tools *struct {
		ListChanged bool `json:"listChanged"`
	} `json:"tools,omitempty"`
}

// InitializeRequest starts the initialization handshake.
type InitializeRequest struct {
	ProtocolVersion string             `json:"protocolVersion,omitzero"`
	ClientInfo      ImplementationInfo `json:"clientInfo,omitzero"`
}

// InitializeResult returns negotiated capabilities, server info, and the
// session identifier allocated (or echoed) for this connection. SessionID is
// repeated in every initialize result of a batch even though the transport
// header is only set once per HTTP response.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ImplementationInfo `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitzero"`
	SessionID       string             `json:"sessionId,omitzero"`
}

// ListToolsResult returns the static tool registry.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams is the server-received representation for a tool call.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}
