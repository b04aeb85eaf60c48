// Package randid provides random ID generation utilities.
package randid

import (
	"math/rand/v2"
	"strconv"
	"time"
)

const chars = "abcdefghijklmnopqrstuvwxyz0123456789"

// Generate creates a random alphanumeric ID of the specified length.
func Generate(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = chars[rand.IntN(len(chars))]
	}
	return string(b)
}

// Timestamped returns prefix, the millisecond timestamp of t in base 36 and a
// random suffix of n characters. IDs generated later sort after earlier ones
// when their timestamps differ.
func Timestamped(prefix string, t time.Time, n int) string {
	return prefix + strconv.FormatInt(t.UnixMilli(), 36) + "-" + Generate(n)
}
