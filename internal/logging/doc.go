// Package logging provides structured JSON logging for CodeAtlas with
// size-based file rotation. In MCP server mode logs go only to a file,
// never to stdout or stderr, since stdout carries the JSON-RPC stream.
package logging
