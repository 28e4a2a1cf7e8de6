// Package mail delivers one-time codes to users. The authentication core
// only needs "send this code for this purpose to this address"; templating
// and provider specifics live behind the Sender.
package mail

import (
	"context"
	"log"
)

// Purpose mirrors the code purpose so templates can differ per flow.
type Purpose string

const (
	PurposeEmailVerification Purpose = "verify"
	PurposePasswordReset     Purpose = "reset"
)

// Sender delivers a code by email.
type Sender interface {
	SendCode(ctx context.Context, email string, purpose Purpose, code string) error
}

// LogSender writes a redacted line per message. Useful in development and
// in the load-test binary.
type LogSender struct {
	Logger *log.Logger
}

func (s LogSender) SendCode(_ context.Context, email string, purpose Purpose, code string) error {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("authcore: mail %s code to %s (%s)", purpose, redactEmail(email), redactCode(code))
	return nil
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, email string, purpose Purpose, code string) error

func (f SenderFunc) SendCode(ctx context.Context, email string, purpose Purpose, code string) error {
	return f(ctx, email, purpose, code)
}

func redactCode(code string) string {
	if len(code) <= 2 {
		return "**"
	}
	b := []byte(code)
	for i := 1; i < len(b)-1; i++ {
		b[i] = '*'
	}
	return string(b)
}

func redactEmail(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			if i <= 1 {
				return "*" + email[i:]
			}
			return email[:1] + "***" + email[i:]
		}
	}
	return "***"
}
