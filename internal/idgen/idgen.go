// Package idgen generates short random session identifiers.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

// sessionIDBytes gives 8 hex characters, enough to avoid collisions
// between the handful of sessions sharing one state directory.
const sessionIDBytes = 4

var sessionIDPattern = regexp.MustCompile(`^[0-9a-f]{8}$`)

// NewSessionID returns a fresh 8-character lowercase hex session id.
func NewSessionID() string {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("idgen: read random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}

// IsSessionID reports whether s looks like a generated session id.
func IsSessionID(s string) bool {
	return sessionIDPattern.MatchString(s)
}
