// Package mcp exposes the query pipeline as Model Context Protocol tools.
//
// The server uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// over stdio and registers rag_query, rag_list_documents,
// rag_document_summary and rag_history. Generated text is passed through the
// secrets redactor before it is returned to clients.
package mcp
