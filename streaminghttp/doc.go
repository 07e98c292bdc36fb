// Package streaminghttp implements the gateway's HTTP transport: envelope
// intake on POST, Accept-header content negotiation between a single JSON
// body and a server-sent event stream, session header continuity, and SSE
// emission. Protocol-level failures ride inside 200 responses as JSON-RPC
// error envelopes; HTTP status codes signal transport-level failure only.
package streaminghttp
