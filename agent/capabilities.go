package agent

import (
	"context"
	"errors"

	"github.com/bassamadnan/mailpilot/gmail"
)

var (
	// ErrNoCredentials is returned by Loop.Run when the mail session cannot be established.
	ErrNoCredentials = errors.New("no usable mail credentials")
	// ErrStageFailed wraps an unexpected failure inside a stage. It ends the poll loop.
	ErrStageFailed = errors.New("pipeline stage failed")
	// ErrMalformedVerdict is returned when classifier output cannot be decoded.
	ErrMalformedVerdict = errors.New("malformed classifier verdict")
	// ErrEmptyDraft is returned when the draft service produced no text.
	ErrEmptyDraft = errors.New("empty draft")
)

// MailGateway is the mail service as the pipeline uses it.
type MailGateway interface {
	ListUnreadThreads(ctx context.Context, query string, maxResults int64) ([]gmail.ThreadRef, error)
	GetThreadDetail(ctx context.Context, threadID string) (gmail.Thread, error)
	SendReply(ctx context.Context, to, subject, body, threadID string) (gmail.Receipt, error)
}

// Session is a connected MailGateway that must be closed once.
type Session interface {
	MailGateway
	Close() error
}

// Dialer establishes the mail session at startup.
type Dialer func(ctx context.Context) (Session, error)

// ClassifierService judges a message. The response is raw model text expected to hold a JSON verdict.
type ClassifierService interface {
	Classify(ctx context.Context, sender, subject, snippet string) (string, error)
}

// DraftService writes the body of a reply.
type DraftService interface {
	Draft(ctx context.Context, subject, snippet string) (string, error)
}

// Screener applies local rules before a message reaches the classifier.
// It returns true and the matching rule when the message must be dropped.
type Screener interface {
	Screen(sender, subject, snippet string) (bool, string)
}
