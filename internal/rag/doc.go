// Package rag answers questions over indexed documents.
//
// A query moves through a fixed sequence of states:
//
//	INTENT_CHECK -> SUMMARY_PATH | RETRIEVAL_PATH -> CONTEXT_ASSEMBLY
//	  -> GENERATION -> HISTORY_APPEND -> DONE
//
// A summary-style query short-circuits to a whole-document summary when the
// index holds exactly one document. Every other query embeds the question,
// fetches a loose candidate pool from the vector index, reranks it and keeps
// the caller's top_k. Collaborator failures end in a named failure state
// carried by *PipelineError. Generation errors are the exception: they
// produce a degraded answer instead, and degraded answers are not recorded
// in history.
package rag
