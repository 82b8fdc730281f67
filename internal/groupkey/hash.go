// Package groupkey derives the identifier shared by all mappings between one
// source type and one target type.
package groupkey

import (
	"crypto/sha256"
)

// Separator joins the source and target full names before hashing.
const Separator = "__"

// Hash returns the 32 letter group key for a source/target pair. Each byte of
// the SHA-256 digest of "<source>__<target>" is mapped onto 'A'..'Z'.
func Hash(sourceFullName, targetFullName string) string {
	sum := sha256.Sum256([]byte(sourceFullName + Separator + targetFullName))
	key := make([]byte, len(sum))
	for i, b := range sum {
		key[i] = 'A' + b%26
	}
	return string(key)
}
