// Package notify forwards committed registry events to external
// notification streams.
//
// Publishers implement interfaces.EventPublisher and are attached to the
// ledger with ledger.WithPublisher. They only ever see events of committed
// transitions, in commit order. A failing publisher is logged by the
// ledger and never rolls a transition back.
//
// Available publishers:
//   - KafkaPublisher: one record per event, keyed by fingerprint
//   - RedisPublisher: PUBLISH on "<channel>:<event kind>"
//   - MultiPublisher: fans out to several publishers
package notify
