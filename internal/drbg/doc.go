/*
Package drbg implements the Hash_DRBG and HMAC_DRBG deterministic random bit
generators of NIST SP 800-90A Rev. 1.

The package has two layers.

The mechanisms, HashDRBG and HMACDRBG, hold the secret working state (V and
C, or V and Key) and implement the instantiate, reseed and generate
algorithms of sections 10.1.1 and 10.1.2 bit-for-bit. They never obtain
entropy themselves: the caller passes entropy, nonce, personalization string
and additional input as byte slices. Each mechanism serializes its own calls
with a mutex and exposes its reseed counter.

DRBG is the state machine on top. It negotiates the security strength for
the selected digest, draws entropy and nonces from an io.Reader, enforces
the reseed interval, honours prediction resistance requests and the
configured reseed capability, and latches into an error state when a digest
engine fails.

Digests and MACs are reached through the narrow Digest and MAC interfaces.
The default EngineFactory builds them from the Go standard library and
golang.org/x/crypto/sha3; see package rng-drbg/internal/digest.

CTR_DRBG is not implemented; selecting it is a configuration error.
*/
package drbg
