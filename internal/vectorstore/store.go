// Package vectorstore owns the on-disk similarity index and its parallel
// metadata table. The two artifacts are always read and written as a pair;
// ids are positions, assigned in append order, identical in both files.
package vectorstore

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"lectio/internal/util"
)

var (
	// ErrLengthMismatch rejects an append where vectors and metadata rows
	// do not pair up one-to-one.
	ErrLengthMismatch = errors.New("vectors and metadata length mismatch")

	// ErrDimensionMismatch rejects a vector whose width differs from the
	// store's declared dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrStoreCorrupted means the index and metadata artifacts disagree on
	// disk (count, id sequence, or truncated content). The store refuses to
	// load rather than silently truncate.
	ErrStoreCorrupted = errors.New("vector store corrupted")
)

const (
	indexMagic   = "LECV"
	indexVersion = 1
)

// Metadata is the side-table record kept for each indexed vector.
type Metadata struct {
	SourceID    string `json:"source_id"`
	ChunkIndex  int    `json:"chunk_index"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
}

type metadataRow struct {
	ID int `json:"id"`
	Metadata
}

// Store is an append-only flat vector index with a parallel metadata table,
// persisted as two files under a store directory. It is not safe for
// concurrent appends from multiple processes; callers that share a store
// directory must serialize runs externally.
type Store struct {
	indexPath string
	metaPath  string
	dim       int
	vectors   [][]float32
	meta      []Metadata
}

// IndexPath returns the index artifact path for a course store. The course
// name is flattened to its base name so URL-supplied names cannot escape the
// store directory.
func IndexPath(dir, course string) string {
	return util.SafeJoin(dir, course+"_index.vec")
}

// MetadataPath returns the metadata artifact path for a course store.
func MetadataPath(dir, course string) string {
	return util.SafeJoin(dir, course+"_metadata.jsonl")
}

// CreateEmpty initializes a new in-memory store with a declared vector width.
// Nothing is written to disk until Append or Persist.
func CreateEmpty(dir, course string, dim int) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrDimensionMismatch, dim)
	}
	return &Store{
		indexPath: IndexPath(dir, course),
		metaPath:  MetadataPath(dir, course),
		dim:       dim,
	}, nil
}

// Load reconstructs a store from its two persisted artifacts. A missing or
// truncated artifact, a count mismatch between the pair, or a broken id
// sequence is ErrStoreCorrupted; only when neither artifact exists does Load
// report os.ErrNotExist.
func Load(dir, course string) (*Store, error) {
	indexPath := IndexPath(dir, course)
	metaPath := MetadataPath(dir, course)

	_, indexErr := os.Stat(indexPath)
	_, metaErr := os.Stat(metaPath)
	if os.IsNotExist(indexErr) && os.IsNotExist(metaErr) {
		return nil, fmt.Errorf("vector store for course at %s: %w", dir, os.ErrNotExist)
	}
	if os.IsNotExist(indexErr) || os.IsNotExist(metaErr) {
		return nil, fmt.Errorf("%w: index/metadata pair incomplete in %s", ErrStoreCorrupted, dir)
	}

	dim, vectors, err := readIndex(indexPath)
	if err != nil {
		return nil, err
	}
	meta, err := readMetadata(metaPath)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(meta) {
		return nil, fmt.Errorf("%w: index has %d vectors, metadata has %d rows",
			ErrStoreCorrupted, len(vectors), len(meta))
	}
	return &Store{
		indexPath: indexPath,
		metaPath:  metaPath,
		dim:       dim,
		vectors:   vectors,
		meta:      meta,
	}, nil
}

func (s *Store) Count() int     { return len(s.vectors) }
func (s *Store) Dimension() int { return s.dim }

// Vector returns a copy of the vector stored under id.
func (s *Store) Vector(id int) ([]float32, bool) {
	if id < 0 || id >= len(s.vectors) {
		return nil, false
	}
	out := make([]float32, s.dim)
	copy(out, s.vectors[id])
	return out, true
}

// Meta returns the metadata row stored under id.
func (s *Store) Meta(id int) (Metadata, bool) {
	if id < 0 || id >= len(s.meta) {
		return Metadata{}, false
	}
	return s.meta[id], true
}

// Append adds a batch of vectors with their metadata as one logical
// operation, assigning ids from the current store size, and persists both
// artifacts as its final step. Validation happens before any mutation; on a
// persist failure the in-memory state is rolled back, so the store never
// reports a partial batch as appended.
func (s *Store) Append(vectors [][]float32, meta []Metadata) ([]int, error) {
	if len(vectors) != len(meta) {
		return nil, fmt.Errorf("%w: %d vectors, %d metadata rows",
			ErrLengthMismatch, len(vectors), len(meta))
	}
	for i, v := range vectors {
		if len(v) != s.dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, store expects %d",
				ErrDimensionMismatch, i, len(v), s.dim)
		}
	}

	base := len(s.vectors)
	ids := make([]int, len(vectors))
	for i := range vectors {
		ids[i] = base + i
	}
	s.vectors = append(s.vectors, vectors...)
	s.meta = append(s.meta, meta...)

	if err := s.Persist(); err != nil {
		s.vectors = s.vectors[:base]
		s.meta = s.meta[:base]
		return nil, err
	}
	return ids, nil
}

// Persist writes both artifacts durably, metadata first, index last; each is
// written to a temp file and renamed into place. The index file is the
// authoritative one: a crash between the two renames leaves a pair whose
// counts disagree, which Load reports as ErrStoreCorrupted instead of
// guessing.
func (s *Store) Persist() error {
	rows := make([]any, 0, len(s.meta))
	for i, m := range s.meta {
		rows = append(rows, metadataRow{ID: i, Metadata: m})
	}
	if err := util.WriteJSONLinesAtomic(s.metaPath, rows); err != nil {
		return fmt.Errorf("persist metadata table: %w", err)
	}
	if err := util.WriteBytesAtomic(s.indexPath, s.encodeIndex()); err != nil {
		return fmt.Errorf("persist vector index: %w", err)
	}
	return nil
}

func (s *Store) encodeIndex() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 16+len(s.vectors)*s.dim*4))
	buf.WriteString(indexMagic)
	_ = binary.Write(buf, binary.LittleEndian, uint32(indexVersion))
	_ = binary.Write(buf, binary.LittleEndian, uint32(s.dim))
	_ = binary.Write(buf, binary.LittleEndian, uint64(len(s.vectors)))
	for _, v := range s.vectors {
		_ = binary.Write(buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

func readIndex(path string) (int, [][]float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, fmt.Errorf("read vector index: %w", err)
	}
	r := bytes.NewReader(raw)

	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != indexMagic {
		return 0, nil, fmt.Errorf("%w: bad index header in %s", ErrStoreCorrupted, path)
	}
	var version, dim uint32
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, nil, fmt.Errorf("%w: truncated index header in %s", ErrStoreCorrupted, path)
	}
	if version != indexVersion {
		return 0, nil, fmt.Errorf("%w: unsupported index version %d in %s", ErrStoreCorrupted, version, path)
	}
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return 0, nil, fmt.Errorf("%w: truncated index header in %s", ErrStoreCorrupted, path)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return 0, nil, fmt.Errorf("%w: truncated index header in %s", ErrStoreCorrupted, path)
	}
	if dim == 0 {
		return 0, nil, fmt.Errorf("%w: zero dimension in %s", ErrStoreCorrupted, path)
	}
	// Compare by division so a hostile count header cannot overflow the
	// expected-size arithmetic and drive a huge allocation below.
	rowBytes := uint64(dim) * 4
	if uint64(r.Len())%rowBytes != 0 || uint64(r.Len())/rowBytes != count {
		return 0, nil, fmt.Errorf("%w: index body has %d bytes, expected %d vectors of width %d",
			ErrStoreCorrupted, r.Len(), count, dim)
	}
	vectors := make([][]float32, count)
	for i := range vectors {
		v := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return 0, nil, fmt.Errorf("%w: truncated vector %d in %s", ErrStoreCorrupted, i, path)
		}
		vectors[i] = v
	}
	return int(dim), vectors, nil
}

func readMetadata(path string) ([]Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata table: %w", err)
	}
	defer f.Close()

	meta := make([]Metadata, 0, 64)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var row metadataRow
		if err := json.Unmarshal(sc.Bytes(), &row); err != nil {
			return nil, fmt.Errorf("%w: bad metadata row at line %d: %v", ErrStoreCorrupted, line+1, err)
		}
		if row.ID != line {
			return nil, fmt.Errorf("%w: metadata id %d at position %d", ErrStoreCorrupted, row.ID, line)
		}
		meta = append(meta, row.Metadata)
		line++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan metadata table: %w", err)
	}
	return meta, nil
}
