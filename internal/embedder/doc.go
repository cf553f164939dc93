// Package embedder generates vector embeddings for record documents and
// search queries using various providers.
//
// The embedder supports multiple providers (Jina AI, OpenAI, local) and
// provides batching, caching, and retry handling.
//
// # Basic Usage
//
//	// Create embedder (auto-detects provider from environment)
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "docker container killed out of memory",
//	})
//	fmt.Printf("Vector dimension: %d\n", len(result.Vector))
//
// # Provider Selection
//
// SOLUTION_MEMORY_EMBEDDING_PROVIDER selects a provider explicitly
// (jina, openai, local). Without it, the first available API key wins:
// JINA_API_KEY, then OPENAI_API_KEY, then the local provider.
//
// The local provider needs no network: it hashes tokens into a fixed-size
// bag-of-words vector. Identical texts always produce identical vectors,
// which keeps development and tests deterministic.
//
// # Caching
//
// Embeddings are cached in an LRU keyed by the SHA-256 of the input text,
// so re-indexing unchanged records does not hit the provider API.
package embedder
