package crypto

import "encoding/hex"

// DID derives the decentralized identifier for a public key: the lowercase
// hex encoding of the first 16 bytes of SHA-256(pubkey), prefixed "did:bc:".
func (pub PublicKey) DID() string {
	sum := HashBytes(pub)
	return "did:bc:" + hex.EncodeToString(sum[:16])
}
