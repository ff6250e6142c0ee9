// Package utils holds small helpers shared by the identity service.
package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// RandomString draws n bytes from crypto/rand and encodes them as
// unpadded URL-safe base64, so the result fits in URLs and cookies.
func RandomString(n int) string {
	buf := make([]byte, n)
	// crypto/rand.Read never fails on supported platforms since Go 1.24.
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}
