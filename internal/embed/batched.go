package embed

import (
	"context"
	"fmt"
)

// BatchProgress reports embedding progress.
type BatchProgress struct {
	BatchIndex     int // current batch, 1-indexed
	TotalBatches   int
	ProcessedTexts int
	TotalTexts     int
}

// EmbedWithProgress embeds texts in batches of batchSize, sending a progress
// update on progressCh after each batch. progressCh may be nil. The result is
// in input order. Cancelling ctx stops between batches.
//
//	progressCh := make(chan embed.BatchProgress, 10)
//	go func() {
//	    for p := range progressCh {
//	        bar.Set(p.ProcessedTexts)
//	    }
//	}()
//	vectors, err := embed.EmbedWithProgress(ctx, provider, texts, embed.EmbedModePassage, 64, progressCh)
//	close(progressCh)
func EmbedWithProgress(
	ctx context.Context,
	provider Provider,
	texts []string,
	mode EmbedMode,
	batchSize int,
	progressCh chan<- BatchProgress,
) ([][]float32, error) {
	total := len(texts)
	if total == 0 {
		return [][]float32{}, nil
	}
	if batchSize <= 0 {
		batchSize = total
	}

	numBatches := (total + batchSize - 1) / batchSize
	results := make([][]float32, total)

	processed := 0
	for batchIdx := 0; batchIdx < numBatches; batchIdx++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		start := batchIdx * batchSize
		end := min(start+batchSize, total)
		batch := texts[start:end]

		vecs, err := provider.Embed(ctx, batch, mode)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d failed: %w", batchIdx+1, numBatches, err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("batch %d/%d: got %d vectors for %d texts", batchIdx+1, numBatches, len(vecs), len(batch))
		}
		copy(results[start:end], vecs)

		processed += len(batch)
		if progressCh != nil {
			progressCh <- BatchProgress{
				BatchIndex:     batchIdx + 1,
				TotalBatches:   numBatches,
				ProcessedTexts: processed,
				TotalTexts:     total,
			}
		}
	}

	return results, nil
}
