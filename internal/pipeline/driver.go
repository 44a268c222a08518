// Package pipeline drives one indexing run: extract → clean → chunk → embed →
// store, strictly sequentially. Any stage's fatal error fails the run; the
// store stage only executes when every chunk of the run was embedded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"lectio/internal/chunker"
	"lectio/internal/embedding"
	"lectio/internal/extract"
	"lectio/internal/util"
	"lectio/internal/vectorstore"

	"github.com/google/uuid"
)

type Stage string

const (
	StageExtracting Stage = "extracting"
	StageCleaning   Stage = "cleaning"
	StageChunking   Stage = "chunking"
	StageEmbedding  Stage = "embedding"
	StageStoring    Stage = "storing"
)

const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

type StageTiming struct {
	Stage    Stage  `json:"stage"`
	Millis   int64  `json:"duration_ms"`
	Duration string `json:"duration"`
}

type DocumentResult struct {
	SourceID   string `json:"source_id"`
	Path       string `json:"path"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
	ChunkCount int    `json:"chunk_count"`
}

// Result is the run manifest: what was indexed, how long each stage took,
// and where the run stopped if it failed.
type Result struct {
	RunID       string           `json:"run_id"`
	Course      string           `json:"course"`
	Status      string           `json:"status"`
	FailStage   Stage            `json:"fail_stage,omitempty"`
	FailReason  string           `json:"fail_reason,omitempty"`
	Documents   []DocumentResult `json:"documents"`
	ChunkCount  int              `json:"chunk_count"`
	AppendedIDs []int            `json:"appended_ids,omitempty"`
	Stages      []StageTiming    `json:"stages"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
}

type Driver struct {
	extractor    extract.Extractor
	embedder     *embedding.Embedder
	store        *vectorstore.Store
	chunkSize    int
	chunkOverlap int
	logger       *log.Logger
}

func NewDriver(extractor extract.Extractor, embedder *embedding.Embedder, store *vectorstore.Store, chunkSize, chunkOverlap int, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.Default()
	}
	return &Driver{
		extractor:    extractor,
		embedder:     embedder,
		store:        store,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
}

// Run indexes the given documents for one course as a single logical store
// append. An unreadable document is skipped when other documents remain in
// the run; a single-document run (or a run where every document is
// unreadable) fails. Returns the Result in both outcomes so callers can
// record it.
func (d *Driver) Run(ctx context.Context, course string, paths []string) (Result, error) {
	res := Result{
		RunID:     uuid.NewString(),
		Course:    course,
		Status:    StatusDone,
		StartedAt: time.Now(),
		Documents: make([]DocumentResult, 0, len(paths)),
	}
	if len(paths) == 0 {
		return d.fail(res, StageExtracting, errors.New("no documents in run"))
	}
	d.logger.Printf("run %s course=%s documents=%d", res.RunID, course, len(paths))

	// Extracting
	raw := make([]string, 0, len(paths))
	okDocs := make([]int, 0, len(paths))
	err := d.timed(&res, StageExtracting, func() error {
		for _, path := range paths {
			doc := DocumentResult{SourceID: filepath.Base(path), Path: path, Status: "ok"}
			text, err := d.extractor.Text(path)
			if err != nil {
				if errors.Is(err, extract.ErrDocumentUnreadable) && len(paths) > 1 {
					d.logger.Printf("run %s skipping unreadable document %s: %v", res.RunID, doc.SourceID, err)
					doc.Status = "skipped"
					doc.FailReason = err.Error()
					res.Documents = append(res.Documents, doc)
					continue
				}
				return err
			}
			res.Documents = append(res.Documents, doc)
			okDocs = append(okDocs, len(res.Documents)-1)
			raw = append(raw, text)
		}
		if len(raw) == 0 {
			return fmt.Errorf("%w: every document in the run", extract.ErrDocumentUnreadable)
		}
		return nil
	})
	if err != nil {
		return d.fail(res, StageExtracting, err)
	}

	// Cleaning
	cleaned := make([]string, len(raw))
	err = d.timed(&res, StageCleaning, func() error {
		for i, text := range raw {
			cleaned[i] = util.CleanText(text)
		}
		d.logger.Printf("run %s cleaned text preview: %s", res.RunID, util.Preview(cleaned[0], 200))
		return nil
	})
	if err != nil {
		return d.fail(res, StageCleaning, err)
	}

	// Chunking
	var chunks []chunker.Chunk
	err = d.timed(&res, StageChunking, func() error {
		for i, text := range cleaned {
			doc := &res.Documents[okDocs[i]]
			part, err := chunker.Split(text, doc.SourceID, d.chunkSize, d.chunkOverlap)
			if err != nil {
				return err
			}
			doc.ChunkCount = len(part)
			chunks = append(chunks, part...)
		}
		if len(chunks) == 0 {
			return errors.New("no chunks produced from run documents")
		}
		res.ChunkCount = len(chunks)
		d.logger.Printf("run %s chunks=%d", res.RunID, len(chunks))
		return nil
	})
	if err != nil {
		return d.fail(res, StageChunking, err)
	}

	// Embedding
	var vectors [][]float32
	err = d.timed(&res, StageEmbedding, func() error {
		var err error
		vectors, err = d.embedder.EmbedChunks(ctx, chunks)
		return err
	})
	if err != nil {
		return d.fail(res, StageEmbedding, err)
	}

	// Storing: one logical append for the whole run.
	err = d.timed(&res, StageStoring, func() error {
		meta := make([]vectorstore.Metadata, len(chunks))
		for i, c := range chunks {
			meta[i] = vectorstore.Metadata{
				SourceID:    c.SourceID,
				ChunkIndex:  c.ChunkIndex,
				Text:        c.Text,
				StartOffset: c.StartOffset,
			}
		}
		ids, err := d.store.Append(vectors, meta)
		if err != nil {
			return err
		}
		res.AppendedIDs = ids
		return nil
	})
	if err != nil {
		return d.fail(res, StageStoring, err)
	}

	res.FinishedAt = time.Now()
	d.logger.Printf("run %s done chunks=%d store_count=%d in %s",
		res.RunID, res.ChunkCount, d.store.Count(), res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	return res, nil
}

func (d *Driver) timed(res *Result, stage Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	dur := time.Since(start)
	res.Stages = append(res.Stages, StageTiming{
		Stage:    stage,
		Millis:   dur.Milliseconds(),
		Duration: dur.Round(time.Microsecond).String(),
	})
	if err == nil {
		d.logger.Printf("run %s stage=%s duration=%s", res.RunID, stage, dur.Round(time.Millisecond))
	}
	return err
}

func (d *Driver) fail(res Result, stage Stage, err error) (Result, error) {
	res.Status = StatusFailed
	res.FailStage = stage
	res.FailReason = err.Error()
	res.FinishedAt = time.Now()
	d.logger.Printf("run %s failed stage=%s: %v", res.RunID, stage, err)
	return res, fmt.Errorf("stage %s: %w", stage, err)
}
