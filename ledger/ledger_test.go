package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
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

// fakeClock returns the queued times in order, repeating the last one.
type fakeClock struct {
	times []int64
}

func (c *fakeClock) Now() time.Time {
	now := c.times[0]
	if len(c.times) > 1 {
		c.times = c.times[1:]
	}
	return time.Unix(now, 0)
}

func newTestLedger(t *testing.T, opts ...Option) (*Ledger, *memorydb.Database) {
	t.Helper()
	db := memorydb.New()
	l, err := New(db, opts...)
	require.NoError(t, err)
	return l, db
}

func register(caller common.Address, fp interfaces.Fingerprint) Transaction {
	return Transaction{Caller: caller, Method: MethodRegister, Fingerprint: fp.Bytes()}
}

func revoke(caller common.Address, fp interfaces.Fingerprint) Transaction {
	return Transaction{Caller: caller, Method: MethodRevoke, Fingerprint: fp.Bytes()}
}

func TestLedger_SubmitRegister(t *testing.T) {
	clock := &fakeClock{times: []int64{1700000000}}
	l, _ := newTestLedger(t, WithClock(clock.Now))
	fp := interfaces.ComputeFingerprint([]byte("contract.pdf"))

	receipt, err := l.Submit(context.Background(), register(alice, fp))
	require.NoError(t, err)
	require.NotNil(t, receipt)

	assert.Equal(t, uint64(0), receipt.Seq)
	assert.Equal(t, StatusSuccess, receipt.Status)
	assert.Equal(t, uint64(1700000000), receipt.Timestamp)
	assert.NotEqual(t, common.Hash{}, receipt.TxHash)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, interfaces.DocumentRegistered, receipt.Events[0].Kind)

	v, err := l.Verify(fp.Bytes())
	require.NoError(t, err)
	assert.Equal(t, interfaces.Verification{Found: true, Owner: alice, Timestamp: 1700000000}, v)
	assert.Equal(t, uint64(1), l.Height())
}

func TestLedger_FailedTransitionKeepsState(t *testing.T) {
	l, _ := newTestLedger(t)
	fp := interfaces.ComputeFingerprint([]byte("doc"))

	_, err := l.Submit(context.Background(), register(alice, fp))
	require.NoError(t, err)

	receipt, err := l.Submit(context.Background(), register(bob, fp))
	assert.ErrorIs(t, err, interfaces.ErrDuplicateDocument)
	require.NotNil(t, receipt)
	assert.Equal(t, StatusFailed, receipt.Status)
	assert.Equal(t, interfaces.ErrDuplicateDocument.Error(), receipt.Error)
	assert.Empty(t, receipt.Events)

	receipt, err = l.Submit(context.Background(), revoke(bob, fp))
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)
	assert.Equal(t, StatusFailed, receipt.Status)

	v, err := l.Verify(fp.Bytes())
	require.NoError(t, err)
	assert.Equal(t, alice, v.Owner)
	assert.False(t, v.IsRevoked)

	total, err := l.TotalCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)

	owned, err := l.ListByOwner(bob)
	require.NoError(t, err)
	assert.Empty(t, owned)

	assert.Equal(t, uint64(3), l.Height())
}

func TestLedger_InvalidLengthLeavesNoRegistryState(t *testing.T) {
	l, db := newTestLedger(t)

	receipt, err := l.Submit(context.Background(), Transaction{
		Caller:      alice,
		Method:      MethodRegister,
		Fingerprint: []byte("too short"),
	})
	assert.ErrorIs(t, err, interfaces.ErrInvalidHashLength)
	require.NotNil(t, receipt)
	assert.Equal(t, StatusFailed, receipt.Status)

	it := db.NewIterator([]byte("documentRegistry"), nil)
	defer it.Release()
	assert.False(t, it.Next())

	total, err := l.TotalCount()
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestLedger_UnknownMethod(t *testing.T) {
	l, _ := newTestLedger(t)

	receipt, err := l.Submit(context.Background(), Transaction{Caller: alice, Method: "transferDocument"})
	assert.ErrorIs(t, err, ErrUnknownMethod)
	assert.Nil(t, receipt)
	assert.Zero(t, l.Height())
}

func TestLedger_CancelledContext(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	receipt, err := l.Submit(ctx, register(alice, interfaces.ComputeFingerprint([]byte("x"))))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, receipt)
	assert.Zero(t, l.Height())
}

func TestLedger_TimestampNeverDecreases(t *testing.T) {
	clock := &fakeClock{times: []int64{500, 400, 600}}
	l, _ := newTestLedger(t, WithClock(clock.Now))

	var stamps []uint64
	for i := 0; i < 3; i++ {
		fp := interfaces.ComputeFingerprint([]byte{byte(i)})
		receipt, err := l.Submit(context.Background(), register(alice, fp))
		require.NoError(t, err)
		stamps = append(stamps, receipt.Timestamp)
	}

	assert.Equal(t, []uint64{500, 500, 600}, stamps)
}

func TestLedger_ResumesFromDatabase(t *testing.T) {
	clock := &fakeClock{times: []int64{1000}}
	l, db := newTestLedger(t, WithClock(clock.Now))
	fp := interfaces.ComputeFingerprint([]byte("persisted"))

	_, err := l.Submit(context.Background(), register(alice, fp))
	require.NoError(t, err)
	_, err = l.Submit(context.Background(), register(alice, fp))
	require.Error(t, err)

	earlier := &fakeClock{times: []int64{10}}
	reopened, err := New(db, WithClock(earlier.Now))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), reopened.Height())

	v, err := reopened.Verify(fp.Bytes())
	require.NoError(t, err)
	assert.True(t, v.Found)

	receipt, err := reopened.Submit(context.Background(), revoke(alice, fp))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), receipt.Seq)
	assert.Equal(t, uint64(1000), receipt.Timestamp)
}

type failingBatch struct {
	ethdb.Batch
}

func (b failingBatch) Write() error {
	return errors.New("disk full")
}

type failingDB struct {
	*memorydb.Database
}

func (db failingDB) NewBatch() ethdb.Batch {
	return failingBatch{db.Database.NewBatch()}
}

func TestLedger_CommitFailureWritesNothing(t *testing.T) {
	db := failingDB{memorydb.New()}
	l, err := New(db)
	require.NoError(t, err)

	receipt, err := l.Submit(context.Background(), register(alice, interfaces.ComputeFingerprint([]byte("doc"))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Nil(t, receipt)
	assert.Zero(t, l.Height())
	assert.Zero(t, db.Len())
}

func TestLedger_Receipts(t *testing.T) {
	l, _ := newTestLedger(t)
	h1 := interfaces.ComputeFingerprint([]byte("H1"))
	h2 := interfaces.ComputeFingerprint([]byte("H2"))

	for _, tx := range []Transaction{
		register(alice, h1),
		register(bob, h2),
		register(bob, h1),
		revoke(alice, h1),
	} {
		_, _ = l.Submit(context.Background(), tx)
	}

	all, err := l.Receipts(ReceiptFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, r := range all {
		assert.Equal(t, uint64(i), r.Seq)
	}

	failed, err := l.Receipts(ReceiptFilter{Status: StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, uint64(2), failed[0].Seq)

	byBob, err := l.Receipts(ReceiptFilter{Caller: &bob})
	require.NoError(t, err)
	assert.Len(t, byBob, 2)

	window, err := l.Receipts(ReceiptFilter{FromSeq: 1, ToSeq: 2})
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, uint64(1), window[0].Seq)

	limited, err := l.Receipts(ReceiptFilter{Method: MethodRegister, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestLedger_Events(t *testing.T) {
	l, _ := newTestLedger(t)
	h1 := interfaces.ComputeFingerprint([]byte("H1"))
	h2 := interfaces.ComputeFingerprint([]byte("H2"))

	for _, tx := range []Transaction{
		register(alice, h1),
		register(bob, h2),
		revoke(alice, h1),
	} {
		_, err := l.Submit(context.Background(), tx)
		require.NoError(t, err)
	}

	all, err := l.Events(EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, interfaces.DocumentRevoked, all[2].Kind)
	assert.Equal(t, uint64(2), all[2].Seq)

	revoked, err := l.Events(EventFilter{Kind: interfaces.DocumentRevoked})
	require.NoError(t, err)
	assert.Len(t, revoked, 1)

	aboutH1, err := l.Events(EventFilter{Fingerprint: &h1})
	require.NoError(t, err)
	assert.Len(t, aboutH1, 2)

	byBob, err := l.Events(EventFilter{Owner: &bob})
	require.NoError(t, err)
	require.Len(t, byBob, 1)
	fp, ok := byBob[0].Fingerprint()
	require.True(t, ok)
	assert.Equal(t, h2, fp)
	assert.Equal(t, byBob[0].Event.Topics(), byBob[0].Topics)

	fromSeq, err := l.Events(EventFilter{FromSeq: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, fromSeq, 1)
	assert.Equal(t, uint64(1), fromSeq[0].Seq)
}

func TestLedger_SubscribeEvents(t *testing.T) {
	l, _ := newTestLedger(t)
	ch := make(chan LoggedEvent, 4)
	sub := l.SubscribeEvents(ch)
	defer sub.Unsubscribe()

	fp := interfaces.ComputeFingerprint([]byte("streamed"))
	_, err := l.Submit(context.Background(), register(alice, fp))
	require.NoError(t, err)
	_, err = l.Submit(context.Background(), register(alice, fp))
	require.Error(t, err)
	_, err = l.Submit(context.Background(), revoke(alice, fp))
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, interfaces.DocumentRegistered, first.Kind)
	assert.Equal(t, uint64(0), first.Seq)

	second := <-ch
	assert.Equal(t, interfaces.DocumentRevoked, second.Kind)
	assert.Equal(t, uint64(2), second.Seq)

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestLedger_Publishers(t *testing.T) {
	ok := new(MockPublisher)
	broken := new(MockPublisher)
	broken.On("Name").Return("broken")

	fp := interfaces.ComputeFingerprint([]byte("published"))
	expected := []interfaces.Event{interfaces.NewDocumentRegisteredEvent(alice, fp, 42)}
	ok.On("Publish", mock.Anything, expected).Return(nil).Once()
	broken.On("Publish", mock.Anything, expected).Return(errors.New("broker down")).Once()

	clock := &fakeClock{times: []int64{42}}
	l, _ := newTestLedger(t, WithClock(clock.Now), WithPublisher(ok), WithPublisher(broken))

	receipt, err := l.Submit(context.Background(), register(alice, fp))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, receipt.Status)

	// Failed transitions publish nothing.
	_, err = l.Submit(context.Background(), register(bob, fp))
	require.Error(t, err)

	require.NoError(t, l.Close(context.Background()))
	ok.AssertExpectations(t)
	broken.AssertExpectations(t)
}

// blockingPublisher records the receipts it sees and blocks each Publish
// until release is closed or the context ends.
type blockingPublisher struct {
	release chan struct{}
	started chan struct{}

	mu   sync.Mutex
	seen []interfaces.Fingerprint
}

func newBlockingPublisher() *blockingPublisher {
	return &blockingPublisher{
		release: make(chan struct{}),
		started: make(chan struct{}, 64),
	}
}

func (p *blockingPublisher) Publish(ctx context.Context, events []interfaces.Event) error {
	p.started <- struct{}{}
	select {
	case <-p.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ev := range events {
		fp, _ := ev.Fingerprint()
		p.seen = append(p.seen, fp)
	}
	return nil
}

func (p *blockingPublisher) Name() string { return "blocking" }

func (p *blockingPublisher) published() []interfaces.Fingerprint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]interfaces.Fingerprint{}, p.seen...)
}

func TestLedger_HangingPublisherDoesNotDelaySubmit(t *testing.T) {
	publisher := newBlockingPublisher()
	l, _ := newTestLedger(t, WithPublisher(publisher))

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fp := interfaces.ComputeFingerprint([]byte{byte(i)})
			_, err := l.Submit(context.Background(), register(alice, fp))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, uint64(3), l.Height())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := l.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, publisher.published())
}

func TestLedger_PublishesInCommitOrder(t *testing.T) {
	publisher := newBlockingPublisher()
	close(publisher.release)
	l, _ := newTestLedger(t, WithPublisher(publisher))

	var want []interfaces.Fingerprint
	for i := 0; i < 20; i++ {
		fp := interfaces.ComputeFingerprint([]byte{byte(i)})
		want = append(want, fp)
		_, err := l.Submit(context.Background(), register(alice, fp))
		require.NoError(t, err)
	}

	require.NoError(t, l.Close(context.Background()))
	assert.Equal(t, want, publisher.published())

	// Closed ledgers keep accepting transitions without publishing them.
	_, err := l.Submit(context.Background(), register(alice, interfaces.ComputeFingerprint([]byte("late"))))
	require.NoError(t, err)
	assert.Len(t, publisher.published(), 20)
}

func TestLedger_FullPublishQueueDropsEvents(t *testing.T) {
	publisher := newBlockingPublisher()
	l, _ := newTestLedger(t, WithPublisher(publisher), WithPublishQueue(1))

	fps := make([]interfaces.Fingerprint, 3)
	for i := range fps {
		fps[i] = interfaces.ComputeFingerprint([]byte{byte(i)})
	}

	_, err := l.Submit(context.Background(), register(alice, fps[0]))
	require.NoError(t, err)
	<-publisher.started

	// fps[1] waits in the queue, fps[2] finds it full.
	for _, fp := range fps[1:] {
		_, err := l.Submit(context.Background(), register(alice, fp))
		require.NoError(t, err)
	}

	close(publisher.release)
	require.NoError(t, l.Close(context.Background()))
	assert.Equal(t, fps[:2], publisher.published())

	total, err := l.TotalCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
}

func TestLedger_ClockBeforeEpochIsClamped(t *testing.T) {
	l, _ := newTestLedger(t, WithClock(func() time.Time { return time.Unix(-5, 0) }))
	fp := interfaces.ComputeFingerprint([]byte("early"))

	receipt, err := l.Submit(context.Background(), register(alice, fp))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), receipt.Timestamp)

	v, err := l.Verify(fp.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v.Timestamp)
}

func TestLedger_Observer(t *testing.T) {
	observer := new(MockObserver)
	observer.On("ObserveTransition", MethodRegister, string(StatusSuccess), mock.Anything).Once()
	observer.On("ObserveTransition", MethodRegister, string(StatusFailed), mock.Anything).Once()
	observer.On("ObserveState", uint64(1), uint64(1)).Once()
	observer.On("ObserveState", uint64(2), uint64(1)).Once()

	l, _ := newTestLedger(t, WithObserver(observer))
	fp := interfaces.ComputeFingerprint([]byte("observed"))

	_, err := l.Submit(context.Background(), register(alice, fp))
	require.NoError(t, err)
	_, err = l.Submit(context.Background(), register(alice, fp))
	require.Error(t, err)

	observer.AssertExpectations(t)
}

func TestLedger_ForEachDocument(t *testing.T) {
	l, _ := newTestLedger(t)
	want := map[interfaces.Fingerprint]common.Address{}
	for i, owner := range []common.Address{alice, bob, alice} {
		fp := interfaces.ComputeFingerprint([]byte{byte(i)})
		want[fp] = owner
		_, err := l.Submit(context.Background(), register(owner, fp))
		require.NoError(t, err)
	}

	got := map[interfaces.Fingerprint]common.Address{}
	err := l.ForEachDocument(func(fp interfaces.Fingerprint, info interfaces.DocumentInfo) error {
		got[fp] = info.Owner
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	stop := errors.New("stop")
	err = l.ForEachDocument(func(interfaces.Fingerprint, interfaces.DocumentInfo) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestReadOnlyState(t *testing.T) {
	s := readOnlyState{memorydb.New()}
	assert.ErrorIs(t, s.Put([]byte("k"), []byte("v")), ErrReadOnly)
}

func TestLedger_ConcurrentSubmitDeliversInOrder(t *testing.T) {
	l, _ := newTestLedger(t)
	const n = 32

	ch := make(chan LoggedEvent, n)
	sub := l.SubscribeEvents(ch)
	defer sub.Unsubscribe()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fp := interfaces.ComputeFingerprint([]byte{byte(i), 0xff})
			_, err := l.Submit(context.Background(), register(alice, fp))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for want := uint64(0); want < n; want++ {
		ev := <-ch
		assert.Equal(t, want, ev.Seq)
	}

	total, err := l.TotalCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(n), total)
	owned, err := l.ListByOwner(alice)
	require.NoError(t, err)
	assert.Len(t, owned, n)
}
