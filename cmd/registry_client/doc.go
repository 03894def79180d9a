// Command registry_client talks to a running registry server.
//
// Documents are identified by the SHA-256 of their content; every command
// that takes a document accepts either a file, which is hashed locally, or
// a 0x-prefixed fingerprint. The document itself never leaves the machine.
//
//	registry-client keygen --out alice.hex
//	registry-client --key-file alice.hex register contract.pdf
//	registry-client verify contract.pdf
//	registry-client --key-file alice.hex revoke contract.pdf
//	registry-client list 0x71C7656EC7ab88b098defB751B7401B5f6d8976F
//	registry-client events --kind documentRevoked --follow
package main
