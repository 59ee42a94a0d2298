// Package admission decides whether an inbound message comes from the
// contract this node serves.
package admission

import (
	"log/slog"
	"strings"
)

// IsValid reports whether sender is the expected contract address.
// Addresses are compared case-insensitively, so checksummed and lower-case
// forms match. Anything else, including surrounding whitespace, does not.
// An empty sender never matches.
func IsValid(sender, expected string) bool {
	if sender == "" || expected == "" || !strings.EqualFold(sender, expected) {
		slog.Info("ignoring message from unexpected sender", "sender", sender, "expected", expected)
		return false
	}
	slog.Debug("message from deployed contract", "sender", sender)
	return true
}
