package thread

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/user"
	"time"

	"github.com/google/uuid"
)

// DefaultConversation is the conversation every session starts in until
// the operator opens a new chat.
const DefaultConversation = "default"

// UserID derives the operator's identity: stable for one installation
// within a calendar day, without storing anything.
func UserID() string {
	return userIDFor(fingerprint(), time.Now().UTC())
}

func userIDFor(fingerprint string, day time.Time) string {
	sum := sha256.Sum256([]byte(fingerprint + day.Format("20060102")))
	return "user_" + hex.EncodeToString(sum[:])[:16]
}

func fingerprint() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown-host"
	}
	name := "unknown-user"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	return host + ":" + name
}

// NewConversationID returns a fresh conversation ID. New conversations
// get new thread IDs, which is what isolates them from older
// checkpoints.
func NewConversationID() string {
	return uuid.NewString()
}

// ThreadID builds the checkpoint key for a (user, conversation) pair.
func ThreadID(userID, conversationID string) string {
	return "thread_" + userID + "_" + conversationID
}
