/*
Package clients provides a Go client for the document registry API.

RegistryClient signs register and revoke calls with a secp256k1 key and
exposes the read endpoints (verify, owner listing, stats, receipts and
events) as typed methods. Errors returned for non-2xx responses are
*api.StatusError values; registry failures unwrap to the matching
interfaces error:

	receipt, err := client.Register(ctx, fp.Bytes())
	if errors.Is(err, interfaces.ErrDuplicateDocument) {
		// receipt holds the failed transition
	}
*/
package clients
