package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"testing"

	"lectio/internal/chunker"
	"lectio/internal/config"
	"lectio/internal/embedding"
	"lectio/internal/extract"
	"lectio/internal/vectorstore"

	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	texts map[string]string
}

func (f fakeExtractor) Text(path string) (string, error) {
	text, ok := f.texts[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", extract.ErrDocumentUnreadable, path)
	}
	return text, nil
}

type failingProvider struct {
	err error
}

func (p failingProvider) Embed(context.Context, embedding.Request) ([][]float32, embedding.Info, error) {
	return nil, embedding.Info{Name: "failing"}, p.err
}

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestDriver(t *testing.T, extractor extract.Extractor, provider embedding.Provider, dim int) (*Driver, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := vectorstore.CreateEmpty(dir, "algebra", dim)
	require.NoError(t, err)
	cfg := config.Config{EmbedDim: dim, EmbedBatchSize: 4, EmbedMaxRetries: 2, EmbedBackoffMS: 1}
	embedder := embedding.NewEmbedder(provider, cfg, testLogger())
	return NewDriver(extractor, embedder, store, 40, 10, testLogger()), dir
}

func TestRunIndexesDocumentsEndToEnd(t *testing.T) {
	extractor := fakeExtractor{texts: map[string]string{
		"/in/calculus.pdf": strings.Repeat("the derivative of a function measures change ", 6),
		"/in/limits.pdf":   strings.Repeat("a limit describes behavior near a point ", 6),
	}}
	d, dir := newTestDriver(t, extractor, embedding.NewMockProvider(8), 8)

	res, err := d.Run(context.Background(), "algebra", []string{"/in/calculus.pdf", "/in/limits.pdf"})
	require.NoError(t, err)
	require.Equal(t, StatusDone, res.Status)
	require.Len(t, res.Documents, 2)
	require.Greater(t, res.ChunkCount, 2)
	require.Len(t, res.AppendedIDs, res.ChunkCount)
	require.Equal(t, 0, res.AppendedIDs[0])

	stages := make([]Stage, 0, len(res.Stages))
	for _, s := range res.Stages {
		stages = append(stages, s.Stage)
	}
	require.Equal(t, []Stage{StageExtracting, StageCleaning, StageChunking, StageEmbedding, StageStoring}, stages)

	loaded, err := vectorstore.Load(dir, "algebra")
	require.NoError(t, err)
	require.Equal(t, res.ChunkCount, loaded.Count())
	m, ok := loaded.Meta(0)
	require.True(t, ok)
	require.Equal(t, "calculus.pdf", m.SourceID)
	require.Equal(t, 0, m.ChunkIndex)
	require.Equal(t, 0, m.StartOffset)
}

func TestRunSkipsUnreadableDocumentWhenOthersRemain(t *testing.T) {
	extractor := fakeExtractor{texts: map[string]string{
		"/in/good.pdf": strings.Repeat("vector spaces and linear maps ", 8),
	}}
	d, _ := newTestDriver(t, extractor, embedding.NewMockProvider(8), 8)

	res, err := d.Run(context.Background(), "algebra", []string{"/in/bad.pdf", "/in/good.pdf"})
	require.NoError(t, err)
	require.Equal(t, StatusDone, res.Status)
	require.Len(t, res.Documents, 2)
	require.Equal(t, "skipped", res.Documents[0].Status)
	require.Equal(t, "ok", res.Documents[1].Status)
	require.Greater(t, res.Documents[1].ChunkCount, 0)
}

func TestRunFailsWhenSingleDocumentUnreadable(t *testing.T) {
	d, dir := newTestDriver(t, fakeExtractor{}, embedding.NewMockProvider(8), 8)

	res, err := d.Run(context.Background(), "algebra", []string{"/in/bad.pdf"})
	require.ErrorIs(t, err, extract.ErrDocumentUnreadable)
	require.Equal(t, StatusFailed, res.Status)
	require.Equal(t, StageExtracting, res.FailStage)

	_, statErr := os.Stat(vectorstore.IndexPath(dir, "algebra"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRunFailsWhenAllDocumentsUnreadable(t *testing.T) {
	d, _ := newTestDriver(t, fakeExtractor{}, embedding.NewMockProvider(8), 8)

	res, err := d.Run(context.Background(), "algebra", []string{"/in/a.pdf", "/in/b.pdf"})
	require.ErrorIs(t, err, extract.ErrDocumentUnreadable)
	require.Equal(t, StatusFailed, res.Status)
}

func TestRunEmbeddingFailureLeavesNoStoreWrite(t *testing.T) {
	extractor := fakeExtractor{texts: map[string]string{
		"/in/notes.pdf": strings.Repeat("group theory homomorphisms ", 8),
	}}
	provider := failingProvider{err: &embedding.RemoteError{Provider: "failing", Status: 401, Body: "bad key"}}
	d, dir := newTestDriver(t, extractor, provider, 8)

	res, err := d.Run(context.Background(), "algebra", []string{"/in/notes.pdf"})
	require.ErrorIs(t, err, embedding.ErrRejected)
	require.Equal(t, StatusFailed, res.Status)
	require.Equal(t, StageEmbedding, res.FailStage)
	require.Empty(t, res.AppendedIDs)

	_, statErr := os.Stat(vectorstore.IndexPath(dir, "algebra"))
	require.True(t, os.IsNotExist(statErr), "storing must not run after a failed embedding stage")
	_, statErr = os.Stat(vectorstore.MetadataPath(dir, "algebra"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRunEmbeddingUnavailableAfterRetries(t *testing.T) {
	extractor := fakeExtractor{texts: map[string]string{
		"/in/notes.pdf": strings.Repeat("rings fields ideals ", 8),
	}}
	provider := failingProvider{err: &embedding.RemoteError{Provider: "failing", Status: 503, Body: "down"}}
	d, _ := newTestDriver(t, extractor, provider, 8)

	res, err := d.Run(context.Background(), "algebra", []string{"/in/notes.pdf"})
	require.ErrorIs(t, err, embedding.ErrUnavailable)
	require.Equal(t, StageEmbedding, res.FailStage)
}

func TestRunInvalidChunkConfigFailsChunkingStage(t *testing.T) {
	extractor := fakeExtractor{texts: map[string]string{
		"/in/notes.pdf": "some course notes text",
	}}
	dir := t.TempDir()
	store, err := vectorstore.CreateEmpty(dir, "algebra", 8)
	require.NoError(t, err)
	cfg := config.Config{EmbedDim: 8, EmbedBatchSize: 4, EmbedMaxRetries: 2, EmbedBackoffMS: 1}
	embedder := embedding.NewEmbedder(embedding.NewMockProvider(8), cfg, testLogger())
	d := NewDriver(extractor, embedder, store, 10, 10, testLogger())

	res, runErr := d.Run(context.Background(), "algebra", []string{"/in/notes.pdf"})
	require.ErrorIs(t, runErr, chunker.ErrInvalidChunkConfig)
	require.Equal(t, StageChunking, res.FailStage)
}

func TestRunEmptyDocumentList(t *testing.T) {
	d, _ := newTestDriver(t, fakeExtractor{}, embedding.NewMockProvider(8), 8)
	res, err := d.Run(context.Background(), "algebra", nil)
	require.Error(t, err)
	require.Equal(t, StatusFailed, res.Status)
}
