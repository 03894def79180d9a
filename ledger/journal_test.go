package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_ReadThrough(t *testing.T) {
	base := memorydb.New()
	require.NoError(t, base.Put([]byte("a"), []byte("committed")))

	j := NewJournal(base)
	ok, err := j.Has([]byte("a"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, j.Put([]byte("a"), []byte("pending")))
	require.NoError(t, j.Put([]byte("b"), []byte("new")))

	got, err := j.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("pending"), got)

	committed, err := base.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("committed"), committed)

	ok, err = base.Has([]byte("b"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, j.Len())
}

func TestJournal_PutCopiesValue(t *testing.T) {
	j := NewJournal(memorydb.New())
	value := []byte("v1")
	require.NoError(t, j.Put([]byte("k"), value))
	value[1] = '2'

	got, err := j.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)
}

func TestJournal_FlushAndDiscard(t *testing.T) {
	base := memorydb.New()
	j := NewJournal(base)
	require.NoError(t, j.Put([]byte("x"), []byte("1")))
	require.NoError(t, j.Put([]byte("y"), []byte("2")))

	batch := base.NewBatch()
	require.NoError(t, j.Flush(batch))
	assert.Zero(t, base.Len())
	require.NoError(t, batch.Write())
	assert.Equal(t, 2, base.Len())

	j.Discard()
	assert.Zero(t, j.Len())
	require.NoError(t, j.Put([]byte("z"), []byte("3")))
	j.Discard()
	require.NoError(t, j.Flush(base))
	assert.Equal(t, 2, base.Len())
}
