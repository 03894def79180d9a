// Command admin performs offline maintenance on a registry database.
//
//	registry-admin snapshot export  --db leveldb:///var/lib/docregistry --file state.json
//	registry-admin snapshot archive --db leveldb:///var/lib/docregistry --snapshot-backends s3://...
//	registry-admin snapshot import  --db leveldb:///srv/new --file state.json
//	registry-admin snapshot restore --db leveldb:///srv/new --snapshot-backends s3://... --id <content id>
//
// Import and restore only write into an empty database. The ledger height
// is not carried over: a restored registry starts a fresh receipt log on
// top of the imported documents.
package main
