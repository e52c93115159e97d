// Package hashutil provides the content hashing primitives the Merkle tree
// builder and differ are built on. Every function here must stay
// bit-identical to the server's independent implementation: no framing, no
// separators beyond what the spec calls for.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBytes returns the lowercase hex SHA-256 digest of content, encoded as
// UTF-8 (Go strings already are UTF-8, so this is a direct hash).
func HashBytes(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ChildRef is a (hash, path) pair used to build a directory hash. Callers
// must pass children already sorted the way they want them hashed; this
// function does not sort.
type ChildRef struct {
	Hash string
	Path string
}

// HashDirectory hashes the concatenation of hash++path for each child, in
// the order given, with no separators or length prefixes. An empty slice
// hashes to SHA-256("").
func HashDirectory(children []ChildRef) string {
	var buf []byte
	for _, c := range children {
		buf = append(buf, c.Hash...)
		buf = append(buf, c.Path...)
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
