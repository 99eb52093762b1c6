// Package embeddings turns text into fixed-length vectors.
//
// Providers:
//   - openai: OpenAI-compatible embedding endpoint through langchaingo
//   - fastembed: local ONNX models through fastembed-go (requires cgo and
//     ONNX_PATH pointing at the onnxruntime shared library)
//
// Every provider fails with ErrEmbeddingUnavailable rather than returning
// zero vectors when the backend cannot be reached. Query and chunk text are
// both passed through Preprocess before embedding.
package embeddings
