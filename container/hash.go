package container

import (
	"crypto/sha256"
	"encoding/hex"
	"math/big"

	"github.com/zeebo/blake3"
)

// Digest returns SHA-256 over the signing encoding of c.
func Digest(c Container) []byte {
	sum := sha256.Sum256(Encode(c, ModeSigning))
	return sum[:]
}

// Hash returns Digest(c) as a non-negative integer, the value that gets signed.
func Hash(c Container) *big.Int {
	return new(big.Int).SetBytes(Digest(c))
}

// Fingerprint identifies the shared content of c: BLAKE3-256 over its
// ModeShared encoding, hex encoded. Unlike Hash it covers signatures too, so
// two documents with equal fingerprints are the same document.
func Fingerprint(c Container) string {
	sum := blake3.Sum256(Encode(c, ModeShared))
	return hex.EncodeToString(sum[:])
}
