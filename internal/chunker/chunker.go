// Package chunker splits cleaned document text into overlapping fixed-size
// windows, the unit of embedding.
package chunker

import (
	"errors"
	"strings"
)

// ErrInvalidChunkConfig rejects window parameters that cannot make progress:
// a non-positive chunk size, a negative overlap, or an overlap at least as
// large as the chunk size (the window start would never advance).
var ErrInvalidChunkConfig = errors.New("invalid chunk config")

// Chunk is one contiguous window of a document's cleaned text. StartOffset is
// the rune offset into the cleaned text where the window begins.
type Chunk struct {
	Text        string `json:"text"`
	SourceID    string `json:"source_id"`
	ChunkIndex  int    `json:"chunk_index"`
	StartOffset int    `json:"start_offset"`
}

// Split cuts text into windows of up to chunkSize runes; window i starts at
// rune offset i*(chunkSize-overlap), so consecutive windows share exactly
// overlap runes. The final window may be shorter; a whitespace-only window is
// dropped rather than emitted. Text is expected to be cleaned already
// (util.CleanText); offsets are relative to the input as given.
func Split(text, sourceID string, chunkSize, overlap int) ([]Chunk, error) {
	if chunkSize <= 0 || overlap < 0 || overlap >= chunkSize {
		return nil, ErrInvalidChunkConfig
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	step := chunkSize - overlap
	out := make([]Chunk, 0, (len(runes)+step-1)/step)
	idx := 0
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		part := string(runes[start:end])
		if strings.TrimSpace(part) != "" {
			out = append(out, Chunk{
				Text:        part,
				SourceID:    sourceID,
				ChunkIndex:  idx,
				StartOffset: start,
			})
			idx++
		}
		if end == len(runes) {
			break
		}
	}
	return out, nil
}
