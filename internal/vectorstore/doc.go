// Package vectorstore persists chunk embeddings and answers nearest
// neighbour queries over them.
//
// Two backends implement Index:
//   - ChromemIndex: embedded chromem-go database, optionally persisted to disk
//   - QdrantIndex: external Qdrant server over gRPC
//
// Both store one record per chunk in a single collection. Record metadata is
// a flat string map; the document_id key is required and is what
// DeleteDocument, Chunks and Documents group on. Similarity is cosine
// similarity in [-1, 1], higher is closer.
//
// # Usage
//
//	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{
//	    Path:       "./data/chroma_db",
//	    Collection: "rag_documents",
//	    Dimension:  3072,
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	defer idx.Close()
//
//	results, err := idx.Query(ctx, vec, 10, nil)
package vectorstore
