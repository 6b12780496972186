package memory

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/google/uuid"
)

// Fingerprint returns the stable content-derived key for a knowledge item.
// Two items with byte-identical content always map to the same fingerprint
// regardless of storage identifier or metadata; it is the sole key into the
// penalty ledger.
func Fingerprint(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Scope identifiers for the keyed-storage families. Derived as v5 UUIDs so
// every process computes the same scopes and the families never collide.
var (
	PenaltyScopeID  = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("knowledge-penalties")).String()
	TraceScopeID    = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("trace-storage")).String()
	FeedbackScopeID = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("feedback-log")).String()
)
