// Package services assembles the serving components of docrag.
//
// Build wires the embedder, vector store, chat model and question
// answering pipeline from a config.Config. Binaries and the MCP server
// reach individual components through the Registry accessors.
package services
