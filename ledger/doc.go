// Package ledger hosts the document registry on a durable key-value store.
//
// The Ledger serializes state-changing calls, stamps each with the caller
// and a non-decreasing timestamp, and runs the registry transition against
// a write Journal. A successful transition's writes, its receipt and the
// ledger metadata land in one atomic database batch. A transition rejected
// by a registry precondition gets a failed receipt and changes nothing
// else. Committed events are fanned out through an event.Feed and, from a
// bounded background queue, to any configured interfaces.EventPublisher,
// both in commit order. Publishing never delays Submit; events that find
// the queue full are logged and dropped. Close drains the queue.
package ledger
