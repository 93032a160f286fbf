// Package mcp exposes the question answering pipeline as an MCP tool.
//
// The server uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// on the stdio transport and registers a single tool, ask_documents, that
// runs the same retrieval and synthesis as POST /ask.
package mcp
