// Package batch partitions a stream of records into fixed-size batches.
package batch

import "fmt"

// Batch is an ordered group of records sent in one request
type Batch struct {
	Number  int // 1-based position within the task
	Records []Record
}

// Len returns the number of records in the batch
func (b Batch) Len() int {
	return len(b.Records)
}

// Source yields records one at a time. It mirrors the sql.Rows cursor
// shape so a database cursor can be batched without buffering.
type Source interface {
	Next() bool
	Record() Record
	Err() error
}

// Batcher groups consecutive records from a Source into batches of at
// most size records. Only the final batch may be short.
type Batcher struct {
	src     Source
	size    int
	current Batch
	number  int
	done    bool
	err     error
}

// New creates a Batcher reading from src
func New(src Source, size int) (*Batcher, error) {
	if size < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", size)
	}
	return &Batcher{src: src, size: size}, nil
}

// Next advances to the next batch. It returns false when the source is
// exhausted or failed; check Err afterwards.
func (b *Batcher) Next() bool {
	if b.done {
		return false
	}

	records := make([]Record, 0, b.size)
	for len(records) < b.size {
		if !b.src.Next() {
			b.done = true
			b.err = b.src.Err()
			break
		}
		records = append(records, b.src.Record())
	}

	// A failing source never yields the partial tail
	if b.err != nil || len(records) == 0 {
		b.current = Batch{}
		return false
	}

	b.number++
	b.current = Batch{Number: b.number, Records: records}
	return true
}

// Batch returns the batch produced by the last successful Next
func (b *Batcher) Batch() Batch {
	return b.current
}

// Err returns the source error that stopped iteration, if any
func (b *Batcher) Err() error {
	return b.err
}

// Split partitions records into batches of size, preserving order
func Split(records []Record, size int) ([]Batch, error) {
	if size < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", size)
	}

	batches := make([]Batch, 0, Count(len(records), size))
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		batches = append(batches, Batch{
			Number:  len(batches) + 1,
			Records: records[start:end],
		})
	}
	return batches, nil
}

// Count returns the number of batches needed for total records
func Count(total, size int) int {
	if size < 1 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// SliceSource adapts an in-memory slice to a Source
type SliceSource struct {
	records []Record
	pos     int
	err     error
}

// NewSliceSource returns a Source over records. If err is non-nil it is
// reported once the records are exhausted.
func NewSliceSource(records []Record, err error) *SliceSource {
	return &SliceSource{records: records, pos: -1, err: err}
}

func (s *SliceSource) Next() bool {
	if s.pos+1 >= len(s.records) {
		s.pos = len(s.records)
		return false
	}
	s.pos++
	return true
}

func (s *SliceSource) Record() Record {
	return s.records[s.pos]
}

func (s *SliceSource) Err() error {
	if s.pos >= len(s.records) {
		return s.err
	}
	return nil
}
