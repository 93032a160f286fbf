// Package embeddings turns chunk and query text into vectors.
//
// Three providers are supported:
//   - ollama: a local Ollama server through langchaingo (default)
//   - openai: any OpenAI compatible embeddings endpoint through langchaingo
//   - fastembed: local ONNX models in process (requires CGO)
//
// Documents and queries must be embedded by the same provider and model;
// the vector store keeps whatever dimension the first batch had.
package embeddings
