// internal/gmail/types.go
package gmail

import "fmt"

type MessageID string

// Header is a single message header exactly as issued by Gmail.
type Header struct {
	Name  string
	Value string
}

// Message carries the parts of a Gmail message the checker reads.
type Message struct {
	ID      MessageID
	Headers []Header // provider order, duplicates preserved
	Snippet string
}

type Query struct {
	Raw string // Gmail query string, already formed (e.g., `is:important is:unread after:1726440001`)
}

// APIError wraps any failure returned by the Gmail API.
type APIError struct {
	Op  string
	ID  MessageID
	Err error
}

func (e *APIError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("gmail %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("gmail %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }
