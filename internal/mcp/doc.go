// Package mcp implements the Model Context Protocol (MCP) server for
// solution memory.
//
// The server exposes five tools to AI coding assistants:
//   - save_solution: Persist a solved problem for future reference
//   - search_solutions: Hybrid search over saved solutions
//   - get_solution: Fetch the full record behind a search hit
//   - list_tags: Browse tags with per-category record counts
//   - reconcile_index: Repair the vector index against the canonical store
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout is reserved for protocol messages; all logging goes to stderr.
//
// # Error Handling
//
// Parameter problems (missing query, oversized title) are protocol errors
// with JSON-RPC codes. Domain outcomes a client should handle in-band
// (unknown solution ID, invalid tag category) are returned as tool results
// with an "error" field instead.
package mcp
