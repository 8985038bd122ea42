package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bassamadnan/mailpilot/gmail"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type sentReply struct {
	To, Subject, Body, ThreadID string
}

type fakeGateway struct {
	mu sync.Mutex

	refs      []gmail.ThreadRef
	threads   map[string]gmail.Thread
	listErr   error
	detailErr map[string]error
	sendErr   map[int]error // by 1-based attempt number

	listQuery string
	listMax   int64
	sends     []sentReply
	closed    int
}

func (f *fakeGateway) ListUnreadThreads(ctx context.Context, query string, maxResults int64) ([]gmail.ThreadRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listQuery = query
	f.listMax = maxResults
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.refs, nil
}

func (f *fakeGateway) GetThreadDetail(ctx context.Context, threadID string) (gmail.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.detailErr[threadID]; err != nil {
		return gmail.Thread{}, err
	}
	t, ok := f.threads[threadID]
	if !ok {
		return gmail.Thread{}, fmt.Errorf("thread %s not found", threadID)
	}
	return t, nil
}

func (f *fakeGateway) SendReply(ctx context.Context, to, subject, body, threadID string) (gmail.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sentReply{To: to, Subject: subject, Body: body, ThreadID: threadID})
	if err := f.sendErr[len(f.sends)]; err != nil {
		return gmail.Receipt{}, err
	}
	return gmail.Receipt{ID: fmt.Sprintf("sent-%d", len(f.sends)), ThreadID: threadID}, nil
}

func (f *fakeGateway) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// addThread registers a single-message thread in listing order.
func (f *fakeGateway) addThread(id, from, subject, snippet string, received time.Time) {
	if f.threads == nil {
		f.threads = map[string]gmail.Thread{}
	}
	var headers []gmail.Header
	if from != "" {
		headers = append(headers, gmail.Header{Name: "From", Value: from})
	}
	if subject != "" {
		headers = append(headers, gmail.Header{Name: "Subject", Value: subject})
	}
	f.refs = append(f.refs, gmail.ThreadRef{ID: id})
	f.threads[id] = gmail.Thread{ID: id, Messages: []gmail.Message{{
		ID:           "msg-" + id,
		ThreadID:     id,
		InternalDate: received.UnixMilli(),
		Snippet:      snippet,
		Headers:      headers,
	}}}
}

type fakeClassifier struct {
	// responses by subject; missing subjects get a passing verdict
	responses map[string]string
	errs      map[string]error
	calls     []string
	onCall    func()
	panicOn   string
}

const passing = `{"is_real_human": true, "is_mobile_related": true, "reason": "asks about a phone"}`

func (f *fakeClassifier) Classify(ctx context.Context, sender, subject, snippet string) (string, error) {
	f.calls = append(f.calls, subject)
	if f.onCall != nil {
		f.onCall()
	}
	if subject == f.panicOn {
		panic("classifier blew up")
	}
	if err := f.errs[subject]; err != nil {
		return "", err
	}
	if r, ok := f.responses[subject]; ok {
		return r, nil
	}
	return passing, nil
}

type fakeDrafter struct {
	bodies map[string]string
	errs   map[string]error
	calls  []string
}

func (f *fakeDrafter) Draft(ctx context.Context, subject, snippet string) (string, error) {
	f.calls = append(f.calls, subject)
	if err := f.errs[subject]; err != nil {
		return "", err
	}
	if b, ok := f.bodies[subject]; ok {
		return b, nil
	}
	return "Thanks for reaching out about " + subject, nil
}

type stubScreener struct {
	blocked string
}

func (s stubScreener) Screen(sender, subject, snippet string) (bool, string) {
	if s.blocked != "" && sender == s.blocked {
		return true, "sender:" + s.blocked
	}
	return false, ""
}

// clock returns a func that advances one second per call, starting at start.
func clock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

var errBoom = errors.New("boom")
