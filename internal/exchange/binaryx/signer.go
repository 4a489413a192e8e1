package binaryx

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sign reproduces internal/exchange/bitunix.Sign's double-SHA256 scheme
// unchanged — the same exchange family, same signing convention.
func Sign(secret, nonce, apiKey, ts string) string {
	h1 := sha256.Sum256([]byte(nonce + ts + apiKey))
	h2 := sha256.Sum256([]byte(hex.EncodeToString(h1[:]) + secret))
	return hex.EncodeToString(h2[:])
}
