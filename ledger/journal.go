package ledger

import (
	"sort"

	"github.com/ethereum/go-ethereum/ethdb"
)

// Journal buffers the writes of one transition on top of a read-only view
// of the committed state. Nothing reaches the database until Flush, so a
// transition that fails is rolled back by dropping its journal.
type Journal struct {
	base  ethdb.KeyValueReader
	dirty map[string][]byte
}

// NewJournal creates an empty journal reading through to base.
func NewJournal(base ethdb.KeyValueReader) *Journal {
	return &Journal{
		base:  base,
		dirty: make(map[string][]byte),
	}
}

// Has implements interfaces.StateReader.
func (j *Journal) Has(key []byte) (bool, error) {
	if _, ok := j.dirty[string(key)]; ok {
		return true, nil
	}
	return j.base.Has(key)
}

// Get implements interfaces.StateReader.
func (j *Journal) Get(key []byte) ([]byte, error) {
	if value, ok := j.dirty[string(key)]; ok {
		return append([]byte{}, value...), nil
	}
	return j.base.Get(key)
}

// Put implements interfaces.StateWriter.
func (j *Journal) Put(key []byte, value []byte) error {
	j.dirty[string(key)] = append([]byte{}, value...)
	return nil
}

// Len returns the number of buffered keys.
func (j *Journal) Len() int {
	return len(j.dirty)
}

// Flush writes the buffered entries to w in key order.
func (j *Journal) Flush(w ethdb.KeyValueWriter) error {
	keys := make([]string, 0, len(j.dirty))
	for k := range j.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := w.Put([]byte(k), j.dirty[k]); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops every buffered write.
func (j *Journal) Discard() {
	j.dirty = make(map[string][]byte)
}
