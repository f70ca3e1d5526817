package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/unigpt/unigpt/internal/faults"
)

// Memory is an embedded vector index using brute-force inner product search.
// Records are keyed by (document ID, chunk ordinal) so upserts are idempotent,
// and carry the chunk text so query results need no second lookup. A binary
// snapshot can be saved to and loaded from disk.
type Memory struct {
	dimensions int
	records    map[recordKey]*record
	nextSeq    uint64
	mu         sync.RWMutex
}

type recordKey struct {
	doc     string
	ordinal int
}

type record struct {
	key    recordKey
	text   string
	source string
	vector []float32
	seq    uint64 // insertion order, used for deterministic tie-breaking
}

// NewMemory creates an embedded vector index with the given dimension.
func NewMemory(dimensions int) (*Memory, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &Memory{
		dimensions: dimensions,
		records:    make(map[recordKey]*record),
	}, nil
}

// Upsert stores vec under (documentID, ordinal), replacing any prior record
// with the same identity. The replacement keeps the original insertion
// sequence so re-ingesting a document does not reshuffle tie-breaking.
func (m *Memory) Upsert(ctx context.Context, documentID string, ordinal int, vec []float32, text, source string) error {
	if documentID == "" {
		return faults.New(faults.Index, "document ID is empty")
	}
	if ordinal < 0 {
		return faults.New(faults.Index, "ordinal must be non-negative: %d", ordinal)
	}
	if len(vec) != m.dimensions {
		return faults.New(faults.Index, "vector dimension mismatch: got %d, expected %d", len(vec), m.dimensions)
	}
	stored := make([]float32, m.dimensions)
	copy(stored, vec)

	key := recordKey{doc: documentID, ordinal: ordinal}
	m.mu.Lock()
	defer m.mu.Unlock()
	seq := m.nextSeq
	if prev, ok := m.records[key]; ok {
		seq = prev.seq
	} else {
		m.nextSeq++
	}
	m.records[key] = &record{key: key, text: text, source: source, vector: stored, seq: seq}
	return nil
}

// Query returns the top-k records by inner product (cosine similarity for
// normalized vectors), highest first; equal scores are ordered by insertion.
func (m *Memory) Query(ctx context.Context, vec []float32, k int) ([]*Hit, error) {
	if len(vec) != m.dimensions {
		return nil, faults.New(faults.Index, "query dimension mismatch: got %d, expected %d", len(vec), m.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.records) == 0 {
		return nil, nil
	}
	scored := make([]*record, 0, len(m.records))
	scores := make(map[recordKey]float64, len(m.records))
	for _, rec := range m.records {
		scores[rec.key] = InnerProduct(vec, rec.vector)
		scored = append(scored, rec)
	}
	sort.Slice(scored, func(i, j int) bool {
		si, sj := scores[scored[i].key], scores[scored[j].key]
		if si != sj {
			return si > sj
		}
		return scored[i].seq < scored[j].seq
	})
	if k > len(scored) {
		k = len(scored)
	}
	hits := make([]*Hit, k)
	for i := 0; i < k; i++ {
		rec := scored[i]
		hits[i] = &Hit{
			DocumentID: rec.key.doc,
			Ordinal:    rec.key.ordinal,
			Text:       rec.text,
			Source:     rec.source,
			Score:      scores[rec.key],
		}
	}
	return hits, nil
}

// DeleteDocument removes all records belonging to documentID.
func (m *Memory) DeleteDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.records {
		if key.doc == documentID {
			delete(m.records, key)
		}
	}
	return nil
}

// Size returns the number of stored chunk vectors.
func (m *Memory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Save persists the index to path. Directory is created if needed.
// Format: dimensions (4), n (4), then per record: docID len+bytes, ordinal (4),
// source len+bytes, text len+bytes, vector (dimensions*4 bytes), in insertion order.
func (m *Memory) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(m.records))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	ordered := make([]*record, 0, len(m.records))
	for _, rec := range m.records {
		ordered = append(ordered, rec)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })
	for _, rec := range ordered {
		if err := writeString(f, rec.key.doc); err != nil {
			return fmt.Errorf("write doc id: %w", err)
		}
		if err := binary.Write(f, binary.LittleEndian, uint32(rec.key.ordinal)); err != nil {
			return fmt.Errorf("write ordinal: %w", err)
		}
		if err := writeString(f, rec.source); err != nil {
			return fmt.Errorf("write source: %w", err)
		}
		if err := writeString(f, rec.text); err != nil {
			return fmt.Errorf("write text: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(rec.vector)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents.
// Dimensions must match. If the file does not exist, no error is returned
// and the index is unchanged.
func (m *Memory) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	records := make(map[recordKey]*record, n)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		doc, err := readString(f)
		if err != nil {
			return fmt.Errorf("read doc id: %w", err)
		}
		var ordinal uint32
		if err := binary.Read(f, binary.LittleEndian, &ordinal); err != nil {
			return fmt.Errorf("read ordinal: %w", err)
		}
		source, err := readString(f)
		if err != nil {
			return fmt.Errorf("read source: %w", err)
		}
		text, err := readString(f)
		if err != nil {
			return fmt.Errorf("read text: %w", err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		key := recordKey{doc: doc, ordinal: int(ordinal)}
		records[key] = &record{
			key:    key,
			text:   text,
			source: source,
			vector: bytesToFloat32Slice(buf),
			seq:    uint64(i),
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
	m.nextSeq = uint64(n)
	return nil
}

// Close is a no-op for the embedded index.
func (m *Memory) Close() error {
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
