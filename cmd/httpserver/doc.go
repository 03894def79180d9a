// Command httpserver runs the document registry API.
//
// The ledger lives in the database named by --db. Committed events can be
// forwarded to Kafka (--kafka-brokers) and Redis pub/sub (--redis-url), and
// POST /api/admin/snapshot archives state snapshots to the storage backends
// given in --snapshot-backends. Every flag can also be set through a
// DOCREG_* environment variable.
//
// Example:
//
//	registry-server --listen-addr=0.0.0.0:8080 \
//	    --db=leveldb:///var/lib/docregistry \
//	    --snapshot-backends=file:///var/lib/docregistry/snapshots \
//	    --snapshot-backends='s3://bucket/snapshots?region=eu-west-1' \
//	    --kafka-brokers=localhost:9092 \
//	    --redis-url=redis://localhost:6379/0
package main
