// Package randid generates short random identifiers for user ids and
// request ids that people may need to type.
package randid

import "math/rand/v2"

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Generate creates a random lowercase alphanumeric ID of the given length.
func Generate(length int) string {
	if length <= 0 {
		return ""
	}

	b := make([]byte, length)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}

// WithPrefix returns prefix and a random ID of the given length joined by
// a dash, for example "user-k3j9x2ab".
func WithPrefix(prefix string, length int) string {
	id := Generate(length)
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
