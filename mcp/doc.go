// Package mcp contains the wire-visible types exchanged over the gateway's
// JSON-RPC transport: tool descriptors, call results, and the message bodies
// for the initialize handshake. The types are deliberately a narrow subset of
// the MCP surface; the gateway only speaks the tool-calling profile.
package mcp
