// Package transport delivers rendered campaign messages through an email
// provider. Every implementation reports a provider status code; only 202
// counts as accepted.
package transport

import (
	"context"
	"fmt"
)

// StatusAccepted is the only status treated as a successful send
const StatusAccepted = 202

// Message is one fully rendered email
type Message struct {
	From     string
	FromName string
	To       string
	Subject  string
	HTML     string
	Text     string
	// Campaign is passed to providers that support tagging
	Campaign string
}

// Result is the provider's answer to a send
type Result struct {
	StatusCode int
	MessageID  string
	// Detail carries the provider's response body on rejection
	Detail string
}

// Accepted reports whether the provider accepted the message
func (r *Result) Accepted() bool {
	return r != nil && r.StatusCode == StatusAccepted
}

// Failure describes a non-accepted result for the history log
func (r *Result) Failure() string {
	if r == nil {
		return "empty transport result"
	}
	if r.Detail != "" {
		return fmt.Sprintf("status code: %d: %s", r.StatusCode, r.Detail)
	}
	return fmt.Sprintf("status code: %d", r.StatusCode)
}

// Sender sends a single message. A non-nil error means the provider could
// not be reached or refused the call outright; a Result with a status other
// than 202 means it answered but did not accept.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *Message) (*Result, error)
}

// fromHeader formats the From address with an optional display name
func fromHeader(msg *Message) string {
	if msg.FromName == "" {
		return msg.From
	}
	return fmt.Sprintf("%s <%s>", msg.FromName, msg.From)
}
