package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

type fakeGmail struct {
	t        *testing.T
	sentRaw  string
	sentTo   string
	listQ    string
	listMax  string
	failSend bool
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/users/me/threads"):
		f.listQ = r.URL.Query().Get("q")
		f.listMax = r.URL.Query().Get("maxResults")
		_, _ = w.Write([]byte(`{"threads":[{"id":"t1"},{"id":"t2"}]}`))
	case strings.HasSuffix(r.URL.Path, "/users/me/threads/t1"):
		body := base64.URLEncoding.EncodeToString([]byte("Is the new phone in stock?"))
		_, _ = w.Write([]byte(`{"id":"t1","messages":[
			{"id":"m0","threadId":"t1","internalDate":"1700000000000","snippet":"older","payload":{"mimeType":"text/plain","headers":[]}},
			{"id":"m1","threadId":"t1","internalDate":"1700000060000","snippet":"Is the new phone in stock?",
			 "payload":{"mimeType":"text/plain","headers":[
				{"name":"From","value":"Bob <bob@x.com>"},
				{"name":"Subject","value":"Phone question"},
				{"name":"Message-ID","value":"<abc@mail.x.com>"}],
			 "body":{"data":"` + body + `"}}}]}`))
	case strings.HasSuffix(r.URL.Path, "/users/me/messages/send"):
		if f.failSend {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"backend error"}}`))
			return
		}
		var msg gmail.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			f.t.Errorf("decode send body: %v", err)
		}
		raw, err := base64.URLEncoding.DecodeString(msg.Raw)
		if err != nil {
			f.t.Errorf("decode raw: %v", err)
		}
		f.sentRaw = string(raw)
		f.sentTo = msg.ThreadId
		_, _ = w.Write([]byte(`{"id":"sent1","threadId":"` + msg.ThreadId + `"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
	}
}

func newTestClient(t *testing.T, fake *fakeGmail) *Client {
	t.Helper()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)
	srv, err := gmail.NewService(context.Background(),
		option.WithEndpoint(ts.URL+"/"),
		option.WithHTTPClient(ts.Client()),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return New(srv, zerolog.Nop())
}

func TestListUnreadThreadsKeepsOrder(t *testing.T) {
	fake := &fakeGmail{t: t}
	c := newTestClient(t, fake)

	refs, err := c.ListUnreadThreads(context.Background(), "is:unread", 3)
	if err != nil {
		t.Fatalf("list threads: %v", err)
	}
	if len(refs) != 2 || refs[0].ID != "t1" || refs[1].ID != "t2" {
		t.Fatalf("unexpected refs: %+v", refs)
	}
	if fake.listQ != "is:unread" || fake.listMax != "3" {
		t.Fatalf("unexpected query params q=%q max=%q", fake.listQ, fake.listMax)
	}
}

func TestGetThreadDetailConvertsMessages(t *testing.T) {
	c := newTestClient(t, &fakeGmail{t: t})

	thread, err := c.GetThreadDetail(context.Background(), "t1")
	if err != nil {
		t.Fatalf("get thread: %v", err)
	}
	latest, ok := thread.Latest()
	if !ok {
		t.Fatalf("expected messages in thread")
	}
	if latest.ID != "m1" || latest.InternalDate != 1700000060000 {
		t.Fatalf("unexpected latest message: %+v", latest)
	}
	if from, _ := latest.HeaderValue("From"); from != "Bob <bob@x.com>" {
		t.Fatalf("unexpected From: %q", from)
	}
	if latest.Body != "Is the new phone in stock?" {
		t.Fatalf("unexpected body: %q", latest.Body)
	}
}

func TestGetThreadDetailMissingThread(t *testing.T) {
	c := newTestClient(t, &fakeGmail{t: t})
	if _, err := c.GetThreadDetail(context.Background(), "nope"); err == nil {
		t.Fatalf("expected error for unknown thread")
	}
}

func TestSendReplyThreadsTheMessage(t *testing.T) {
	fake := &fakeGmail{t: t}
	c := newTestClient(t, fake)

	if _, err := c.GetThreadDetail(context.Background(), "t1"); err != nil {
		t.Fatalf("get thread: %v", err)
	}
	receipt, err := c.SendReply(context.Background(), "bob@x.com", "Re: Phone question", "Thanks for reaching out", "t1")
	if err != nil {
		t.Fatalf("send reply: %v", err)
	}
	if receipt.ID != "sent1" || receipt.ThreadID != "t1" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if fake.sentTo != "t1" {
		t.Fatalf("expected thread id on sent message, got %q", fake.sentTo)
	}
	for _, want := range []string{"bob@x.com", "Subject: Re: Phone question", "In-Reply-To: <abc@mail.x.com>", "Thanks for reaching out"} {
		if !strings.Contains(fake.sentRaw, want) {
			t.Fatalf("raw message missing %q:\n%s", want, fake.sentRaw)
		}
	}
}

func TestMessageIDsDoNotOutliveTheCycle(t *testing.T) {
	fake := &fakeGmail{t: t}
	c := newTestClient(t, fake)
	ctx := context.Background()

	tracked := func() int {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.messageIDs)
	}

	if _, err := c.GetThreadDetail(ctx, "t1"); err != nil {
		t.Fatalf("get thread: %v", err)
	}
	if _, err := c.SendReply(ctx, "bob@x.com", "Re: Phone question", "Thanks", "t1"); err != nil {
		t.Fatalf("send reply: %v", err)
	}
	if n := tracked(); n != 0 {
		t.Fatalf("tracked message ids after send = %d, want 0", n)
	}

	// fetched but never answered
	if _, err := c.GetThreadDetail(ctx, "t1"); err != nil {
		t.Fatalf("get thread: %v", err)
	}
	if _, err := c.ListUnreadThreads(ctx, "is:unread", 3); err != nil {
		t.Fatalf("list: %v", err)
	}
	if n := tracked(); n != 0 {
		t.Fatalf("tracked message ids after new listing = %d, want 0", n)
	}
}

func TestSendReplyReportsAPIError(t *testing.T) {
	c := newTestClient(t, &fakeGmail{t: t, failSend: true})
	if _, err := c.SendReply(context.Background(), "bob@x.com", "Re: hi", "body", "t9"); err == nil {
		t.Fatalf("expected send error")
	}
}

func TestBuildReplyWithoutReference(t *testing.T) {
	raw, err := BuildReply("jane@x.com", "Re: hello", "hi there", "", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("build reply: %v", err)
	}
	s := string(raw)
	if strings.Contains(s, "In-Reply-To") {
		t.Fatalf("did not expect In-Reply-To:\n%s", s)
	}
	if !strings.Contains(s, "text/plain") || !strings.Contains(s, "hi there") {
		t.Fatalf("unexpected message:\n%s", s)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New(nil, zerolog.Nop())
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestFileTokenStore(t *testing.T) {
	store := FileTokenStore{Path: filepath.Join(t.TempDir(), "token.json")}

	if _, err := store.Load(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if err := store.Save(&oauth2.Token{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("save token: %v", err)
	}
	tok, err := store.Load()
	if err != nil {
		t.Fatalf("load token: %v", err)
	}
	if tok.AccessToken != "a" || tok.RefreshToken != "r" {
		t.Fatalf("unexpected token: %+v", tok)
	}
}

func TestOAuthConfigMissingFile(t *testing.T) {
	_, err := OAuthConfig(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, ErrNoClientSecret) {
		t.Fatalf("expected ErrNoClientSecret, got %v", err)
	}
}
