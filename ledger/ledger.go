package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ruteri/document-registry/interfaces"
	"github.com/ruteri/document-registry/registry"
)

var (
	// ErrUnknownMethod is returned by Submit for methods other than
	// registerDocument and revokeDocument.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrReadOnly is returned when a query path attempts a write.
	ErrReadOnly = errors.New("read-only state")
)

// Observer receives transition metrics.
type Observer interface {
	ObserveTransition(method string, status string, duration time.Duration)
	ObserveState(height uint64, totalDocuments uint64)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock used to stamp transitions.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// WithLogger sets the ledger logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) {
		l.log = log
	}
}

// WithPublisher forwards committed events to an external publisher.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) {
		if p != nil {
			l.publishers = append(l.publishers, p)
		}
	}
}

// WithObserver reports transition metrics to o.
func WithObserver(o Observer) Option {
	return func(l *Ledger) {
		l.observer = o
	}
}

// WithPublishQueue bounds the number of committed receipts waiting for the
// publishers. Receipts committed while the queue is full are not published.
func WithPublishQueue(size int) Option {
	return func(l *Ledger) {
		l.publishQueue = size
	}
}

// Ledger is the execution host of the registry. It imposes a total order
// on transitions, supplies the caller and a non-decreasing timestamp, and
// commits each successful transition's writes, receipt and metadata in a
// single database batch.
type Ledger struct {
	// mu serializes transitions and guards height/lastTime.
	mu sync.RWMutex

	// notifyMu and notifyCond hand out delivery turns in commit order;
	// notified is the sequence number whose events go out next.
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	notified   uint64

	db         Database
	clock      func() time.Time
	log        *slog.Logger
	publishers []interfaces.EventPublisher
	observer   Observer
	dispatcher *dispatcher

	publishQueue int
	feed         event.Feed

	height   uint64
	lastTime uint64
}

// New opens a ledger over db, resuming from the height and time stored in it.
func New(db Database, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		db:    db,
		clock: time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	var err error
	if l.height, err = l.readMeta(heightKey); err != nil {
		return nil, err
	}
	if l.lastTime, err = l.readMeta(lastTimeKey); err != nil {
		return nil, err
	}

	l.notifyCond = sync.NewCond(&l.notifyMu)
	l.notified = l.height

	if len(l.publishers) > 0 {
		l.dispatcher = newDispatcher(l.publishers, l.publishQueue, publishTimeout, l.log)
	}

	l.log.Debug("Ledger opened", "height", l.height, "lastTime", l.lastTime)
	return l, nil
}

func (l *Ledger) readMeta(key []byte) (uint64, error) {
	ok, err := l.db.Has(key)
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger metadata %s: %w", key, err)
	}
	if !ok {
		return 0, nil
	}
	raw, err := l.db.Get(key)
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger metadata %s: %w", key, err)
	}
	return decodeUint64(raw)
}

// Submit applies tx as the next transition.
//
// A precondition failure is recorded as a failed receipt and returned
// together with the receipt. Infrastructure errors return a nil receipt and
// leave the database untouched.
func (l *Ledger) Submit(ctx context.Context, tx Transaction) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tx.Method != MethodRegister && tx.Method != MethodRevoke {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, tx.Method)
	}

	start := time.Now()

	l.mu.Lock()
	receipt, txErr, err := l.apply(tx)
	l.mu.Unlock()
	if err != nil {
		l.log.Error("Transition aborted", "method", tx.Method, "caller", tx.Caller.Hex(), "err", err)
		return nil, err
	}

	l.notifyMu.Lock()
	for l.notified != receipt.Seq {
		l.notifyCond.Wait()
	}
	l.notify(receipt)
	l.notified++
	l.notifyCond.Broadcast()
	l.notifyMu.Unlock()

	l.log.Debug("Transition applied",
		slog.Uint64("seq", receipt.Seq),
		slog.String("method", receipt.Method),
		slog.String("caller", receipt.Caller.Hex()),
		slog.String("status", string(receipt.Status)),
		slog.Duration("duration", time.Since(start)))

	if l.observer != nil {
		l.observer.ObserveTransition(tx.Method, string(receipt.Status), time.Since(start))
		if total, err := l.TotalCount(); err == nil {
			l.observer.ObserveState(receipt.Seq+1, total)
		}
	}

	return receipt, txErr
}

// apply runs one transition against a journal and commits it. Must be
// called with mu held. txErr is the precondition failure, if any; err is an
// infrastructure failure, in which case nothing was written.
func (l *Ledger) apply(tx Transaction) (receipt *Receipt, txErr error, err error) {
	timestamp := uint64(max(l.clock().Unix(), 0))
	if timestamp < l.lastTime {
		timestamp = l.lastTime
	}
	call := interfaces.CallContext{Caller: tx.Caller, Timestamp: timestamp}

	journal := NewJournal(l.db)
	events := &registry.EventBuffer{}
	reg := registry.New(journal, events)

	switch tx.Method {
	case MethodRegister:
		txErr = reg.Register(call, tx.Fingerprint)
	case MethodRevoke:
		txErr = reg.Revoke(call, tx.Fingerprint)
	}
	if txErr != nil && !interfaces.IsPreconditionError(txErr) {
		return nil, nil, txErr
	}

	seq := l.height
	txHash, err := computeTxHash(seq, tx, timestamp)
	if err != nil {
		return nil, nil, err
	}

	receipt = &Receipt{
		Seq:         seq,
		TxHash:      txHash,
		Caller:      tx.Caller,
		Method:      tx.Method,
		Fingerprint: append([]byte{}, tx.Fingerprint...),
		Timestamp:   timestamp,
		Status:      StatusSuccess,
		Events:      events.Events(),
	}
	if txErr != nil {
		journal.Discard()
		receipt.Status = StatusFailed
		receipt.Error = txErr.Error()
		receipt.Events = nil
	}

	rawReceipt, err := encodeReceipt(receipt)
	if err != nil {
		return nil, nil, err
	}

	batch := l.db.NewBatch()
	if err := journal.Flush(batch); err != nil {
		return nil, nil, fmt.Errorf("failed to stage state changes: %w", err)
	}
	if err := batch.Put(receiptKey(seq), rawReceipt); err != nil {
		return nil, nil, fmt.Errorf("failed to stage receipt: %w", err)
	}
	if err := batch.Put(heightKey, encodeUint64(seq+1)); err != nil {
		return nil, nil, fmt.Errorf("failed to stage height: %w", err)
	}
	if err := batch.Put(lastTimeKey, encodeUint64(timestamp)); err != nil {
		return nil, nil, fmt.Errorf("failed to stage time: %w", err)
	}
	if err := batch.Write(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	l.height = seq + 1
	l.lastTime = timestamp
	return receipt, txErr, nil
}

// notify delivers committed events to feed subscribers and queues them for
// the publishers. Must be called in commit order.
func (l *Ledger) notify(receipt *Receipt) {
	if len(receipt.Events) == 0 {
		return
	}

	for _, ev := range receipt.loggedEvents() {
		l.feed.Send(ev)
	}

	if l.dispatcher != nil && !l.dispatcher.enqueue(receipt) {
		l.log.Warn("Publish queue full, events not published", slog.Uint64("seq", receipt.Seq))
	}
}

// Close waits until queued events reach the publishers. If ctx ends first,
// publishing is aborted and the remaining events are dropped. Submit keeps
// working after Close but no longer publishes.
func (l *Ledger) Close(ctx context.Context) error {
	if l.dispatcher == nil {
		return nil
	}
	return l.dispatcher.close(ctx)
}

// SubscribeEvents delivers every event committed after the call to ch.
// Delivery blocks until the subscriber receives, so ch must be drained
// promptly or buffered.
func (l *Ledger) SubscribeEvents(ch chan<- LoggedEvent) event.Subscription {
	return l.feed.Subscribe(ch)
}

// Height returns the number of receipts committed so far.
func (l *Ledger) Height() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.height
}

// reader returns a registry bound to the committed state. Writes fail with
// ErrReadOnly and events are discarded.
func (l *Ledger) reader() *registry.Registry {
	return registry.New(readOnlyState{l.db}, nil)
}

// Verify returns the committed record of fingerprint.
func (l *Ledger) Verify(fingerprint []byte) (interfaces.Verification, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reader().Verify(fingerprint)
}

// ListByOwner returns the fingerprints ever registered by owner.
func (l *Ledger) ListByOwner(owner common.Address) ([]interfaces.Fingerprint, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reader().ListByOwner(owner)
}

// TotalCount returns the number of successful registrations.
func (l *Ledger) TotalCount() (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reader().TotalCount()
}

// ForEachDocument calls fn for every registered fingerprint in key order.
func (l *Ledger) ForEachDocument(fn func(fp interfaces.Fingerprint, info interfaces.DocumentInfo) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.forEachDocument(fn)
}

// ExportState walks all document records like ForEachDocument and returns
// the height and document count of the same committed state.
func (l *Ledger) ExportState(fn func(fp interfaces.Fingerprint, info interfaces.DocumentInfo) error) (height uint64, total uint64, err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total, err = l.reader().TotalCount()
	if err != nil {
		return 0, 0, err
	}
	if err := l.forEachDocument(fn); err != nil {
		return 0, 0, err
	}
	return l.height, total, nil
}

func (l *Ledger) forEachDocument(fn func(fp interfaces.Fingerprint, info interfaces.DocumentInfo) error) error {
	it := l.db.NewIterator(registry.DocumentRegistryPrefix, nil)
	defer it.Release()

	for it.Next() {
		fp, err := interfaces.NewFingerprintFromBytes(it.Key()[len(registry.DocumentRegistryPrefix):])
		if err != nil {
			return fmt.Errorf("corrupt document key %x: %w", it.Key(), err)
		}
		info, err := registry.DecodeDocumentInfo(it.Value())
		if err != nil {
			return err
		}
		if err := fn(fp, info); err != nil {
			return err
		}
	}
	return it.Error()
}

// Receipts returns committed receipts matching filter, in sequence order.
func (l *Ledger) Receipts(filter ReceiptFilter) ([]*Receipt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Receipt
	err := l.iterateReceipts(filter.FromSeq, func(r *Receipt) bool {
		if filter.ToSeq != 0 && r.Seq > filter.ToSeq {
			return false
		}
		if filter.matches(r) {
			out = append(out, r)
		}
		return filter.Limit == 0 || len(out) < filter.Limit
	})
	return out, err
}

// Events returns committed events matching filter, in commit order.
func (l *Ledger) Events(filter EventFilter) ([]LoggedEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []LoggedEvent
	err := l.iterateReceipts(filter.FromSeq, func(r *Receipt) bool {
		for _, ev := range r.loggedEvents() {
			if !filter.Matches(ev.Event) {
				continue
			}
			out = append(out, ev)
			if filter.Limit != 0 && len(out) >= filter.Limit {
				return false
			}
		}
		return true
	})
	return out, err
}

// iterateReceipts walks receipts from seq onwards until fn returns false.
func (l *Ledger) iterateReceipts(from uint64, fn func(r *Receipt) bool) error {
	it := l.db.NewIterator(receiptPrefix, encodeUint64(from))
	defer it.Release()

	for it.Next() {
		r, err := decodeReceipt(it.Value())
		if err != nil {
			return err
		}
		if !fn(r) {
			break
		}
	}
	return it.Error()
}

// readOnlyState exposes committed state to query-only registries.
type readOnlyState struct {
	db Database
}

func (s readOnlyState) Has(key []byte) (bool, error) { return s.db.Has(key) }

func (s readOnlyState) Get(key []byte) ([]byte, error) { return s.db.Get(key) }

func (s readOnlyState) Put(key []byte, value []byte) error { return ErrReadOnly }
