/*
Package api defines the HTTP wire types of the document registry.

State-changing requests (register and revoke) are authenticated by a
secp256k1 signature in the X-Registry-Signature header. The signed text is

	<method>:<0x-prefixed fingerprint>

hashed with the usual personal-message prefix (accounts.TextHash), so any
Ethereum wallet can produce it. The address recovered from the signature is
the caller the registry sees.

A signature authorizes one method on one fingerprint. Replaying it is
harmless: a second registration fails as a duplicate and a second
revocation fails as already revoked.

The matching client lives in the clients subpackage.
*/
package api
