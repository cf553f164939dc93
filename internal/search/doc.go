// Package search fuses keyword and semantic retrieval over the solution
// corpus.
//
// The engine provides three search modes:
//   - Hybrid: weighted combination of semantic + keyword scores (default)
//   - Semantic: cosine similarity over embeddings only
//   - Keyword: normalized BM25 full-text search only
//
// # Score Fusion
//
// In hybrid mode each candidate's relevance is
//
//	relevance = semanticWeight*semantic + (1-semanticWeight)*keyword
//
// with a missing component contributing zero. The default semantic weight
// is 0.6. Results are ordered by relevance descending with ties broken by
// record ID, so identical corpora always produce identical orderings.
//
// # Degradation
//
// Hybrid search tolerates one backend failing: if the embedding provider
// is down the keyword side still answers, and vice versa. Candidates whose
// canonical record has been deleted are dropped silently.
//
// # Reconcile
//
// Reconcile repairs drift between the two stores: records missing a
// vector (or carrying one from a different provider) are re-embedded
// concurrently, and vectors whose record is gone are removed. The
// canonical store is never modified.
package search
