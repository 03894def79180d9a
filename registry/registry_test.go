package registry

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ruteri/document-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func newTestRegistry() (*Registry, *memorydb.Database, *EventBuffer) {
	db := memorydb.New()
	events := &EventBuffer{}
	return New(db, events), db, events
}

func call(caller common.Address, ts uint64) interfaces.CallContext {
	return interfaces.CallContext{Caller: caller, Timestamp: ts}
}

func TestRegistry_Scenario(t *testing.T) {
	reg, _, events := newTestRegistry()
	h1 := interfaces.ComputeFingerprint([]byte("H1"))
	h2 := interfaces.ComputeFingerprint([]byte("H2"))

	require.NoError(t, reg.Register(call(alice, 100), h1.Bytes()))

	v, err := reg.Verify(h1.Bytes())
	require.NoError(t, err)
	assert.Equal(t, interfaces.Verification{Found: true, Owner: alice, Timestamp: 100, IsRevoked: false}, v)

	err = reg.Revoke(call(bob, 101), h1.Bytes())
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)
	v, err = reg.Verify(h1.Bytes())
	require.NoError(t, err)
	assert.False(t, v.IsRevoked)

	require.NoError(t, reg.Revoke(call(alice, 102), h1.Bytes()))
	v, err = reg.Verify(h1.Bytes())
	require.NoError(t, err)
	assert.Equal(t, interfaces.Verification{Found: true, Owner: alice, Timestamp: 100, IsRevoked: true}, v)

	owned, err := reg.ListByOwner(alice)
	require.NoError(t, err)
	assert.Contains(t, owned, h1)

	total, err := reg.TotalCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)

	v, err = reg.Verify(h2.Bytes())
	require.NoError(t, err)
	assert.Equal(t, interfaces.Verification{Found: false, Owner: common.Address{}, Timestamp: 0, IsRevoked: false}, v)

	emitted := events.Events()
	require.Len(t, emitted, 2)
	assert.Equal(t, interfaces.DocumentRegistered, emitted[0].Kind)
	assert.Equal(t, interfaces.DocumentRevoked, emitted[1].Kind)
}

func TestRegistry_DuplicateRejection(t *testing.T) {
	reg, _, events := newTestRegistry()
	fp := interfaces.ComputeFingerprint([]byte("doc"))

	require.NoError(t, reg.Register(call(alice, 10), fp.Bytes()))

	for _, caller := range []common.Address{alice, bob} {
		err := reg.Register(call(caller, 20), fp.Bytes())
		assert.ErrorIs(t, err, interfaces.ErrDuplicateDocument)
	}

	v, err := reg.Verify(fp.Bytes())
	require.NoError(t, err)
	assert.Equal(t, alice, v.Owner)
	assert.Equal(t, uint64(10), v.Timestamp)

	total, err := reg.TotalCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)

	bobs, err := reg.ListByOwner(bob)
	require.NoError(t, err)
	assert.Empty(t, bobs)
	assert.Len(t, events.Events(), 1)
}

func TestRegistry_LengthGuard(t *testing.T) {
	hexDigest := []byte(interfaces.ComputeFingerprint([]byte("doc")).String()[2:])

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "empty", input: nil},
		{name: "one byte", input: []byte{0x01}},
		{name: "31 bytes", input: bytes.Repeat([]byte{0xaa}, 31)},
		{name: "33 bytes", input: bytes.Repeat([]byte{0xaa}, 33)},
		{name: "hex text of a digest", input: hexDigest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, db, events := newTestRegistry()

			err := reg.Register(call(alice, 1), tt.input)
			assert.ErrorIs(t, err, interfaces.ErrInvalidHashLength)

			total, err := reg.TotalCount()
			require.NoError(t, err)
			assert.Equal(t, uint64(0), total)
			assert.Equal(t, 0, db.Len())
			assert.Empty(t, events.Events())
		})
	}
}

func TestRegistry_RevokePreconditions(t *testing.T) {
	fp := interfaces.ComputeFingerprint([]byte("doc"))
	unknown := interfaces.ComputeFingerprint([]byte("unknown"))

	tests := []struct {
		name        string
		setup       func(reg *Registry)
		caller      common.Address
		fingerprint []byte
		expectedErr error
	}{
		{
			name:        "not registered",
			setup:       func(reg *Registry) {},
			caller:      alice,
			fingerprint: unknown.Bytes(),
			expectedErr: interfaces.ErrNotRegistered,
		},
		{
			name:        "wrong length is never registered",
			setup:       func(reg *Registry) {},
			caller:      alice,
			fingerprint: []byte{0x01, 0x02},
			expectedErr: interfaces.ErrNotRegistered,
		},
		{
			name: "not the owner",
			setup: func(reg *Registry) {
				require.NoError(t, reg.Register(call(alice, 1), fp.Bytes()))
			},
			caller:      bob,
			fingerprint: fp.Bytes(),
			expectedErr: interfaces.ErrUnauthorized,
		},
		{
			name: "ownership is checked before revocation state",
			setup: func(reg *Registry) {
				require.NoError(t, reg.Register(call(alice, 1), fp.Bytes()))
				require.NoError(t, reg.Revoke(call(alice, 2), fp.Bytes()))
			},
			caller:      bob,
			fingerprint: fp.Bytes(),
			expectedErr: interfaces.ErrUnauthorized,
		},
		{
			name: "already revoked",
			setup: func(reg *Registry) {
				require.NoError(t, reg.Register(call(alice, 1), fp.Bytes()))
				require.NoError(t, reg.Revoke(call(alice, 2), fp.Bytes()))
			},
			caller:      alice,
			fingerprint: fp.Bytes(),
			expectedErr: interfaces.ErrAlreadyRevoked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, _, events := newTestRegistry()
			tt.setup(reg)
			before := len(events.Events())

			prevVerification, err := reg.Verify(fp.Bytes())
			require.NoError(t, err)

			err = reg.Revoke(call(tt.caller, 3), tt.fingerprint)
			assert.ErrorIs(t, err, tt.expectedErr)
			assert.True(t, interfaces.IsPreconditionError(err))

			gotVerification, err := reg.Verify(fp.Bytes())
			require.NoError(t, err)
			assert.Equal(t, prevVerification, gotVerification)
			assert.Len(t, events.Events(), before)
		})
	}
}

func TestRegistry_RevocationMonotonicity(t *testing.T) {
	reg, _, _ := newTestRegistry()
	fp := interfaces.ComputeFingerprint([]byte("doc"))

	require.NoError(t, reg.Register(call(alice, 1), fp.Bytes()))
	require.NoError(t, reg.Revoke(call(alice, 2), fp.Bytes()))

	for i := 0; i < 3; i++ {
		err := reg.Revoke(call(alice, uint64(3+i)), fp.Bytes())
		assert.ErrorIs(t, err, interfaces.ErrAlreadyRevoked)

		v, err := reg.Verify(fp.Bytes())
		require.NoError(t, err)
		assert.True(t, v.IsRevoked)
	}

	// A revoked fingerprint is still taken.
	err := reg.Register(call(alice, 9), fp.Bytes())
	assert.ErrorIs(t, err, interfaces.ErrDuplicateDocument)

	owned, err := reg.ListByOwner(alice)
	require.NoError(t, err)
	assert.Equal(t, []interfaces.Fingerprint{fp}, owned)
}

func TestRegistry_CounterCorrectness(t *testing.T) {
	reg, _, _ := newTestRegistry()
	succeeded := map[interfaces.Fingerprint]bool{}

	for i := 0; i < 20; i++ {
		fp := interfaces.ComputeFingerprint([]byte{byte(i % 7)})
		caller := alice
		if i%3 == 0 {
			caller = bob
		}

		if err := reg.Register(call(caller, uint64(i)), fp.Bytes()); err == nil {
			succeeded[fp] = true
		}
		_ = reg.Register(call(caller, uint64(i)), []byte("short"))
		_ = reg.Revoke(call(caller, uint64(i)), fp.Bytes())
	}

	total, err := reg.TotalCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(succeeded)), total)
	assert.Equal(t, uint64(7), total)

	aliceDocs, err := reg.ListByOwner(alice)
	require.NoError(t, err)
	bobDocs, err := reg.ListByOwner(bob)
	require.NoError(t, err)
	assert.Equal(t, len(succeeded), len(aliceDocs)+len(bobDocs))
}

func TestRegistry_EventPayloads(t *testing.T) {
	reg, _, events := newTestRegistry()
	fp := interfaces.ComputeFingerprint([]byte("doc"))

	require.NoError(t, reg.Register(call(alice, 1234), fp.Bytes()))
	require.NoError(t, reg.Revoke(call(alice, 1300), fp.Bytes()))

	emitted := events.Events()
	require.Len(t, emitted, 2)

	registered := emitted[0]
	owner, ok := registered.Owner()
	require.True(t, ok)
	assert.Equal(t, alice, owner)
	gotFp, ok := registered.Fingerprint()
	require.True(t, ok)
	assert.Equal(t, fp, gotFp)
	ts, ok := registered.Timestamp()
	require.True(t, ok)
	assert.Equal(t, uint64(1234), ts)

	topics := registered.Topics()
	require.Len(t, topics, 3)
	assert.Equal(t, crypto.Keccak256Hash([]byte("documentRegistered(address,bytes32,uint64)")), topics[0])
	assert.Equal(t, common.BytesToHash(alice.Bytes()), topics[1])
	assert.Equal(t, common.Hash(fp), topics[2])

	revoked := emitted[1]
	_, ok = revoked.Timestamp()
	assert.False(t, ok)
	assert.Len(t, revoked.Topics(), 3)
	assert.Len(t, revoked.Indexed, 2)
	assert.Empty(t, revoked.Data)
}

func TestRegistry_StorageFailurePropagates(t *testing.T) {
	state := new(MockState)
	sink := new(MockEventSink)
	fp := interfaces.ComputeFingerprint([]byte("doc"))
	writeErr := errors.New("disk full")

	state.On("Has", DocumentKey(fp)).Return(false, nil)
	state.On("Put", DocumentKey(fp), mock.Anything).Return(writeErr)

	reg := New(state, sink)
	err := reg.Register(call(alice, 1), fp.Bytes())
	assert.ErrorIs(t, err, writeErr)
	assert.False(t, interfaces.IsPreconditionError(err))

	state.AssertExpectations(t)
	sink.AssertNotCalled(t, "Emit", mock.Anything)
}

func TestRegistry_ReadOnlyQueriesDoNotEmit(t *testing.T) {
	db := memorydb.New()
	fp := interfaces.ComputeFingerprint([]byte("doc"))
	require.NoError(t, New(db, nil).Register(call(alice, 5), fp.Bytes()))

	sink := new(MockEventSink)
	reg := New(db, sink)
	_, err := reg.Verify(fp.Bytes())
	require.NoError(t, err)
	_, err = reg.ListByOwner(alice)
	require.NoError(t, err)
	_, err = reg.TotalCount()
	require.NoError(t, err)

	sink.AssertNotCalled(t, "Emit", mock.Anything)
}
