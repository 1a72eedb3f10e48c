package pipeline

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cuongbtq/jobmail/internal/domain"
)

// IdentityLength is the number of hex characters kept from the fallback hash
const IdentityLength = 24

// AssignIdentity returns the stable job_id for a message. The source-native id
// is used verbatim when present; otherwise the id is a truncated SHA-256 over
// subject and date, so re-ingesting the same message maps onto the same record.
func AssignIdentity(msg domain.RawMessage) string {
	if msg.ID != "" {
		return msg.ID
	}
	return FallbackIdentity(msg.Subject, msg.Date)
}

// FallbackIdentity hashes subject then date, separated by a newline
func FallbackIdentity(subject, date string) string {
	sum := sha256.Sum256([]byte(subject + "\n" + date))
	return hex.EncodeToString(sum[:])[:IdentityLength]
}
