package vectorstore

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func testMeta(n, base int) []Metadata {
	out := make([]Metadata, n)
	for i := range out {
		out[i] = Metadata{
			SourceID:    "notes.pdf",
			ChunkIndex:  base + i,
			Text:        "chunk text",
			StartOffset: (base + i) * 10,
		}
	}
	return out
}

func testVectors(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(i)*100 + float32(j) + 0.25
		}
		out[i] = v
	}
	return out
}

func TestAppendAssignsSequentialIDs(t *testing.T) {
	dir := t.TempDir()
	s, err := CreateEmpty(dir, "algebra", 3)
	require.NoError(t, err)

	ids, err := s.Append(testVectors(3, 3), testMeta(3, 0))
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, ids)

	ids, err = s.Append(testVectors(2, 3), testMeta(2, 3))
	require.NoError(t, err)
	require.Equal(t, []int{3, 4}, ids)
	require.Equal(t, 5, s.Count())
}

func TestAppendLengthMismatchFailsBeforeWrite(t *testing.T) {
	dir := t.TempDir()
	s, err := CreateEmpty(dir, "algebra", 3)
	require.NoError(t, err)

	_, err = s.Append(testVectors(2, 3), testMeta(3, 0))
	require.ErrorIs(t, err, ErrLengthMismatch)
	require.Equal(t, 0, s.Count())
	_, statErr := os.Stat(IndexPath(dir, "algebra"))
	require.True(t, os.IsNotExist(statErr), "no artifact should exist after a rejected append")
}

func TestAppendDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	s, err := CreateEmpty(dir, "algebra", 3)
	require.NoError(t, err)

	vectors := testVectors(2, 3)
	vectors[1] = []float32{1, 2}
	_, err = s.Append(vectors, testMeta(2, 0))
	require.ErrorIs(t, err, ErrDimensionMismatch)
	require.Equal(t, 0, s.Count())
}

func TestPersistLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := CreateEmpty(dir, "algebra", 4)
	require.NoError(t, err)

	vectors := testVectors(3, 4)
	meta := testMeta(3, 0)
	_, err = s.Append(vectors, meta)
	require.NoError(t, err)
	require.NoError(t, s.Persist())

	loaded, err := Load(dir, "algebra")
	require.NoError(t, err)
	require.Equal(t, 3, loaded.Count())
	require.Equal(t, 4, loaded.Dimension())
	for i := range vectors {
		v, ok := loaded.Vector(i)
		require.True(t, ok)
		require.Equal(t, vectors[i], v)
		m, ok := loaded.Meta(i)
		require.True(t, ok)
		require.Equal(t, meta[i], m)
	}
}

func TestLoadMissingStore(t *testing.T) {
	_, err := Load(t.TempDir(), "algebra")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadHalfPairIsCorrupted(t *testing.T) {
	dir := t.TempDir()
	s, err := CreateEmpty(dir, "algebra", 2)
	require.NoError(t, err)
	_, err = s.Append(testVectors(2, 2), testMeta(2, 0))
	require.NoError(t, err)

	require.NoError(t, os.Remove(MetadataPath(dir, "algebra")))
	_, err = Load(dir, "algebra")
	require.ErrorIs(t, err, ErrStoreCorrupted)
}

func TestLoadCountMismatchIsCorrupted(t *testing.T) {
	dir := t.TempDir()
	s, err := CreateEmpty(dir, "algebra", 2)
	require.NoError(t, err)
	_, err = s.Append(testVectors(3, 2), testMeta(3, 0))
	require.NoError(t, err)

	// Simulate a crash between the two renames: the metadata table kept an
	// older, shorter state than the index.
	short, err := CreateEmpty(t.TempDir(), "algebra", 2)
	require.NoError(t, err)
	_, err = short.Append(testVectors(2, 2), testMeta(2, 0))
	require.NoError(t, err)
	data, err := os.ReadFile(short.metaPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(MetadataPath(dir, "algebra"), data, 0o644))

	_, err = Load(dir, "algebra")
	require.ErrorIs(t, err, ErrStoreCorrupted)
}

func TestLoadTruncatedIndexIsCorrupted(t *testing.T) {
	dir := t.TempDir()
	s, err := CreateEmpty(dir, "algebra", 2)
	require.NoError(t, err)
	_, err = s.Append(testVectors(2, 2), testMeta(2, 0))
	require.NoError(t, err)

	raw, err := os.ReadFile(IndexPath(dir, "algebra"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(IndexPath(dir, "algebra"), raw[:len(raw)-3], 0o644))

	_, err = Load(dir, "algebra")
	require.ErrorIs(t, err, ErrStoreCorrupted)
}

func TestLoadBrokenIDSequenceIsCorrupted(t *testing.T) {
	dir := t.TempDir()
	s, err := CreateEmpty(dir, "algebra", 2)
	require.NoError(t, err)
	_, err = s.Append(testVectors(2, 2), testMeta(2, 0))
	require.NoError(t, err)

	data, err := os.ReadFile(MetadataPath(dir, "algebra"))
	require.NoError(t, err)
	lines := []byte(string(data))
	// Duplicate the first row so ids run 0,0,1.
	first := lines[:indexOfNewline(lines)+1]
	require.NoError(t, os.WriteFile(MetadataPath(dir, "algebra"), append(append([]byte{}, first...), lines...), 0o644))

	_, err = Load(dir, "algebra")
	require.ErrorIs(t, err, ErrStoreCorrupted)
}

func indexOfNewline(b []byte) int {
	for i, c := range b {
		if c == '\n' {
			return i
		}
	}
	return len(b) - 1
}

func TestLoadOversizedCountHeaderIsCorrupted(t *testing.T) {
	dir := t.TempDir()
	s, err := CreateEmpty(dir, "algebra", 2)
	require.NoError(t, err)
	_, err = s.Append(testVectors(1, 2), testMeta(1, 0))
	require.NoError(t, err)

	raw, err := os.ReadFile(IndexPath(dir, "algebra"))
	require.NoError(t, err)
	// Count field claims vastly more vectors than the body holds; the
	// product count*dim*4 would wrap around uint64.
	binary.LittleEndian.PutUint64(raw[12:20], math.MaxUint64/4)
	require.NoError(t, os.WriteFile(IndexPath(dir, "algebra"), raw, 0o644))

	_, err = Load(dir, "algebra")
	require.ErrorIs(t, err, ErrStoreCorrupted)
}

func TestCreateEmptyRejectsBadDimension(t *testing.T) {
	_, err := CreateEmpty(t.TempDir(), "algebra", 0)
	require.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestPersistEmptyStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := CreateEmpty(dir, "algebra", 8)
	require.NoError(t, err)
	require.NoError(t, s.Persist())

	loaded, err := Load(dir, "algebra")
	require.NoError(t, err)
	require.Equal(t, 0, loaded.Count())
	require.Equal(t, 8, loaded.Dimension())
}
