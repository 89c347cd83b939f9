// Package mailer delivers notification messages. Delivery is best effort:
// the Dispatcher logs and counts failures and never reports them to callers.
package mailer

import (
	"context"
	"fmt"
	"strings"
)

// Message is one notification. Link is appended to the body when set.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
	Link    string
}

// Sender transports a message. Implementations must honour ctx cancellation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Text renders the plain-text body with the link on its own line.
func (m Message) Text() string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(m.Body, "\n"))
	if m.Link != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.Link)
	}
	b.WriteString("\n")
	return b.String()
}

func (m Message) validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	for _, to := range m.To {
		if strings.ContainsAny(to, "\r\n") {
			return fmt.Errorf("invalid recipient %q", to)
		}
	}
	if strings.ContainsAny(m.Subject, "\r\n") {
		return fmt.Errorf("invalid subject")
	}
	return nil
}
