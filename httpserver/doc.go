/*
Package httpserver serves the document registry over HTTP.

Routes:

	POST /api/documents/register      register a fingerprint (signed)
	POST /api/documents/revoke        revoke a fingerprint (signed)
	GET  /api/documents/{fingerprint} verification tuple
	GET  /api/owners/{owner}/documents fingerprints registered by an address
	GET  /api/stats                   document counter and ledger height
	GET  /api/receipts                committed receipts
	GET  /api/events                  committed events
	GET  /api/events/stream           committed events as server-sent events
	POST /api/admin/snapshot          archive a state snapshot

Registry failures map to status codes: 400 for a fingerprint of the wrong
length, 409 for duplicates and repeated revocations, 404 for unknown
documents, 403 when a non-owner revokes and 401 for a bad signature. The
body of a failed submission still carries the failed receipt.

The server also exposes /livez, /readyz, /drain and /undrain for
orchestration, and pprof under /debug when enabled.
*/
package httpserver
