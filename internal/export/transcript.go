package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/palchat/backend/internal/models"
)

// renderTranscript formats a conversation as plain text, one message per line.
func renderTranscript(owner, peer string, exportedAt time.Time, messages []models.Message) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Conversation between %s and %s\n", owner, peer)
	fmt.Fprintf(&buf, "Exported %s, %d messages\n\n", exportedAt.UTC().Format(time.RFC3339), len(messages))
	for _, m := range messages {
		fmt.Fprintf(&buf, "[%s] %s: %s\n", m.Timestamp.UTC().Format(time.RFC3339), m.FromUser, m.Content)
	}
	return buf.Bytes()
}
