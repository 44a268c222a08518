package embedding

import (
	"context"
	"fmt"
	"log"
	"time"

	"lectio/internal/chunker"
	"lectio/internal/config"
)

// Embedder turns an ordered sequence of chunks into one vector per chunk,
// preserving order. Chunks are submitted in sequential batches to respect the
// provider's rate limits; transient failures are retried with exponential
// backoff up to a fixed ceiling, and every returned vector is checked against
// the configured dimensionality before it is accepted.
type Embedder struct {
	provider    Provider
	dim         int
	batchSize   int
	maxAttempts int
	backoff     time.Duration
	logger      *log.Logger
}

func NewEmbedder(p Provider, cfg config.Config, logger *log.Logger) *Embedder {
	dim := cfg.EmbedDim
	if dim <= 0 {
		dim = 1536
	}
	batch := cfg.EmbedBatchSize
	if batch <= 0 {
		batch = 32
	}
	attempts := cfg.EmbedMaxRetries
	if attempts <= 0 {
		attempts = 3
	}
	backoff := time.Duration(cfg.EmbedBackoffMS) * time.Millisecond
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Embedder{
		provider:    p,
		dim:         dim,
		batchSize:   batch,
		maxAttempts: attempts,
		backoff:     backoff,
		logger:      logger,
	}
}

// EmbedChunks returns exactly len(chunks) vectors with out[i] embedding
// chunks[i]. Any failure aborts the whole call: a transient provider error
// that survives every retry is ErrUnavailable (naming the offending batch's
// chunk range), a permanent one is ErrRejected, and a vector of the wrong
// width or a short batch is ErrShape.
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []chunker.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(chunks))
	batches := (len(chunks) + e.batchSize - 1) / e.batchSize
	for b := 0; b < batches; b++ {
		lo := b * e.batchSize
		hi := lo + e.batchSize
		if hi > len(chunks) {
			hi = len(chunks)
		}
		vectors, err := e.embedBatch(ctx, chunks[lo:hi], lo, hi, b+1, batches)
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, batch []chunker.Chunk, lo, hi, seq, total int) ([][]float32, error) {
	inputs := make([]string, 0, len(batch))
	for _, c := range batch {
		inputs = append(inputs, c.Text)
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		start := time.Now()
		vectors, info, err := e.provider.Embed(ctx, Request{Inputs: inputs})
		if err == nil {
			if err := e.checkShape(vectors, len(batch), lo, hi); err != nil {
				return nil, err
			}
			e.logger.Printf("embedded batch %d/%d (%d chunks) via %s/%s in %s",
				seq, total, len(batch), info.Name, info.Model, time.Since(start).Round(time.Millisecond))
			return vectors, nil
		}
		if !Transient(err) {
			return nil, fmt.Errorf("%w: batch %d/%d (chunks %d-%d): %v", ErrRejected, seq, total, lo, hi-1, err)
		}
		lastErr = err
		if attempt < e.maxAttempts {
			wait := e.backoff << (attempt - 1)
			e.logger.Printf("batch %d/%d attempt %d failed (%v), retrying in %s", seq, total, attempt, err, wait)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, fmt.Errorf("%w: batch %d/%d (chunks %d-%d): %v", ErrUnavailable, seq, total, lo, hi-1, err)
			}
		}
	}
	return nil, fmt.Errorf("%w: batch %d/%d (chunks %d-%d) after %d attempts: %v",
		ErrUnavailable, seq, total, lo, hi-1, e.maxAttempts, lastErr)
}

func (e *Embedder) checkShape(vectors [][]float32, want, lo, hi int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: provider returned %d vectors for %d inputs (chunks %d-%d)",
			ErrShape, len(vectors), want, lo, hi-1)
	}
	for i, v := range vectors {
		if len(v) != e.dim {
			return fmt.Errorf("%w: vector for chunk %d has %d dimensions, expected %d",
				ErrShape, lo+i, len(v), e.dim)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
