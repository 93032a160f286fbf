// Package vectorstore persists chunk embeddings and answers nearest
// neighbour queries over them.
//
// Two providers implement Store:
//
// ChromemStore (default):
//   - Embedded chromem-go database persisted under a local directory
//   - No external service; the directory is the whole index
//
// QdrantStore (optional):
//   - External Qdrant service over gRPC
//   - The collection is created on first write with the embedding dimension
//
// Search on either provider fetches fetchK nearest candidates together with
// their stored vectors and then lets a reranker choose k of them. The default
// reranker is maximal marginal relevance with lambda 0.5.
//
// Provider selection via config:
//
//	vectorstore:
//	  provider: chromem  # "chromem" (default) or "qdrant"
//	  path: chroma_db
//	  collection: epstein
package vectorstore
