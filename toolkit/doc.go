// Package toolkit holds the tool registry the dispatcher resolves tools/call
// requests against: descriptor + handler pairs, a reviewed alias lookup table
// for historical tool names, typed tool construction with reflected input
// schemas, and helpers for composing tool results (including the
// result-carried error payloads for missing input and upstream failures).
package toolkit
