package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const user = "me"

// Client is an authenticated Gmail session. It is created once at startup and reused by every cycle.
type Client struct {
	srv        *gmail.Service
	httpClient *http.Client
	logger     zerolog.Logger

	mu         sync.Mutex
	messageIDs map[string]string // thread id -> RFC Message-ID of its latest message, current listing only
	closed     bool
}

// DialOptions configures Dial.
type DialOptions struct {
	CredentialsFile string
	Store           TokenStore
	Logger          zerolog.Logger

	// Endpoint overrides the API base URL; used by tests.
	Endpoint string
}

// Dial builds an authenticated client from the stored token and checks it against the profile endpoint.
func Dial(ctx context.Context, opts DialOptions) (*Client, error) {
	oauthConfig, err := OAuthConfig(opts.CredentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := opts.Store.Load()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger.With().Str("component", "gmail").Logger()

	baseCtx := context.WithoutCancel(ctx)
	src := newPersistingTokenSource(oauthConfig.TokenSource(baseCtx, tok), opts.Store, tok, logger)
	httpClient := oauth2.NewClient(baseCtx, oauth2.ReuseTokenSource(tok, src))

	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	srv, err := gmail.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}

	c := New(srv, logger)
	c.httpClient = httpClient

	profile, err := srv.Users.GetProfile(user).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("verify gmail session: %w", describe(err))
	}
	logger.Info().Str("account", profile.EmailAddress).Int64("threads", profile.ThreadsTotal).Msg("gmail session ready")
	return c, nil
}

// New wraps an existing service.
func New(srv *gmail.Service, logger zerolog.Logger) *Client {
	return &Client{srv: srv, logger: logger, messageIDs: map[string]string{}}
}

// ListUnreadThreads returns up to maxResults threads matching query, in the order Gmail lists them.
func (c *Client) ListUnreadThreads(ctx context.Context, query string, maxResults int64) ([]ThreadRef, error) {
	resp, err := c.srv.Users.Threads.List(user).Q(query).MaxResults(maxResults).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list threads %q: %w", query, describe(err))
	}
	// a new listing starts a new cycle; references from the previous one are stale
	c.mu.Lock()
	c.messageIDs = map[string]string{}
	c.mu.Unlock()

	refs := make([]ThreadRef, 0, len(resp.Threads))
	for _, t := range resp.Threads {
		refs = append(refs, ThreadRef{ID: t.Id})
	}
	c.logger.Debug().Str("query", query).Int("threads", len(refs)).Msg("listed threads")
	return refs, nil
}

// GetThreadDetail fetches every message of a thread with full headers.
func (c *Client) GetThreadDetail(ctx context.Context, threadID string) (Thread, error) {
	t, err := c.srv.Users.Threads.Get(user, threadID).Format("full").Context(ctx).Do()
	if err != nil {
		return Thread{}, fmt.Errorf("get thread %s: %w", threadID, describe(err))
	}
	thread := convertThread(t)
	if latest, ok := thread.Latest(); ok {
		if id, ok := latest.HeaderValue("Message-ID"); ok {
			c.mu.Lock()
			c.messageIDs[threadID] = id
			c.mu.Unlock()
		}
	}
	return thread, nil
}

// SendReply sends a plain text reply on the given thread.
func (c *Client) SendReply(ctx context.Context, to, subject, body, threadID string) (Receipt, error) {
	c.mu.Lock()
	inReplyTo := c.messageIDs[threadID]
	delete(c.messageIDs, threadID)
	c.mu.Unlock()

	raw, err := BuildReply(to, subject, body, inReplyTo, time.Now())
	if err != nil {
		return Receipt{}, err
	}
	msg := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: threadID,
	}
	sent, err := c.srv.Users.Messages.Send(user, msg).Context(ctx).Do()
	if err != nil {
		return Receipt{}, fmt.Errorf("send reply on thread %s: %w", threadID, describe(err))
	}
	return Receipt{ID: sent.Id, ThreadID: sent.ThreadId}, nil
}

// Close releases the session. Calling it more than once is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	c.logger.Info().Msg("gmail session closed")
	return nil
}

// BuildReply renders the RFC 5322 message for a reply. From is left to Gmail, which fills in the
// authenticated account.
func BuildReply(to, subject, body, inReplyTo string, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if inReplyTo != "" {
		h.Set("In-Reply-To", inReplyTo)
		h.Set("References", inReplyTo)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("compose reply: %w", err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("compose reply: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compose reply: %w", err)
	}
	return buf.Bytes(), nil
}

func convertThread(t *gmail.Thread) Thread {
	thread := Thread{ID: t.Id, Messages: make([]Message, 0, len(t.Messages))}
	for _, m := range t.Messages {
		thread.Messages = append(thread.Messages, convertMessage(m))
	}
	return thread
}

func convertMessage(m *gmail.Message) Message {
	msg := Message{
		ID:           m.Id,
		ThreadID:     m.ThreadId,
		InternalDate: m.InternalDate,
		Snippet:      m.Snippet,
	}
	if m.Payload != nil {
		for _, h := range m.Payload.Headers {
			msg.Headers = append(msg.Headers, Header{Name: h.Name, Value: h.Value})
		}
		msg.Body = getPlainTextBody(m.Payload)
	}
	return msg
}

func getPlainTextBody(payload *gmail.MessagePart) string {
	if payload.MimeType == "text/plain" && payload.Body != nil && payload.Body.Data != "" {
		if data, err := decodeBase64URL(payload.Body.Data); err == nil {
			return string(data)
		}
	}
	for _, part := range payload.Parts {
		mimeType := strings.ToLower(part.MimeType)
		if strings.HasPrefix(mimeType, "text/") || strings.HasPrefix(mimeType, "multipart/") {
			if body := getPlainTextBody(part); body != "" {
				return body
			}
		}
	}
	return ""
}

func decodeBase64URL(s string) ([]byte, error) {
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// describe flattens googleapi errors into something readable in a log line.
func describe(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("gmail api %d: %s: %w", apiErr.Code, apiErr.Message, err)
	}
	return err
}
