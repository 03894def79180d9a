// Package storage provides content-addressed archival storage for registry
// snapshots with pluggable backends.
//
// Content is identified by the SHA-256 hash of its bytes (interfaces.ContentID)
// and namespaced by interfaces.ContentType. Backends are created from URIs:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//
//   - file:///var/lib/docregistry/snapshots
//   - s3://ACCESS_KEY:SECRET_KEY@bucket/prefix?region=eu-west-1&endpoint=http://minio:9000
//   - ipfs://127.0.0.1:5001/docregistry
//   - vault://TOKEN@vault.example.com:8200/secret/docregistry?tls=false
//
// MultiStorageBackend aggregates several backends: Store writes to every
// available backend, Fetch returns the first hit.
//
// Backends do not verify fetched content against its ID. Callers that
// need integrity (package snapshot does) hash what they get back.
package storage
