// Package embed declares the TextEmbedder boundary (SPEC_FULL.md §4
// component table): text → unit-normalized float vector, batched. The
// embedding model itself is an external-collaborator concern per §1.
package embed

import "context"

// TextEmbedder turns text into unit-normalized embedding vectors. Batch
// embedding errors skip the entire batch (SPEC_FULL.md §7 EmbedError) —
// implementations must not return partial or misaligned results.
type TextEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
