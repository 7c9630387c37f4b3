// Package shared holds small helpers used by both binaries.
package shared

// WipeByteArray zeroes b in place. Callers use it on signing secrets once a
// token has been minted.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
