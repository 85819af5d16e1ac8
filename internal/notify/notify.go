// Package notify delivers one-way messages to account holders. Each Send is
// independent; a failure affects only that message.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Message is a plain-text notification to a single address.
type Message struct {
	To      string
	Subject string
	Body    string
}

//go:generate mockgen -source=notify.go -destination=mocks/mocks.go -package=mocks Notifier

// Notifier sends a message or reports why it could not.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

const (
	subjectLoginCode = "New OTP"
	subjectElection  = "Election Update"
)

// LoginCodeMessage tells the holder their one-time code and its lifetime.
func LoginCodeMessage(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: subjectLoginCode,
		Body:    fmt.Sprintf("Your OTP to login is %s. It will expire in %s", code, humanize(ttl)),
	}
}

func ElectionStartedMessage(to string) Message {
	return Message{
		To:      to,
		Subject: subjectElection,
		Body:    "Election has started. Login to vote",
	}
}

// ElectionEndedMessage links to the results page for the ledger address.
func ElectionEndedMessage(to, publicBaseURL, address string) Message {
	return Message{
		To:      to,
		Subject: subjectElection,
		Body:    fmt.Sprintf("Election has ended. Visit %s/results/%s", strings.TrimRight(publicBaseURL, "/"), address),
	}
}

func humanize(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}
