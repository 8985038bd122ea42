package gmail

// ThreadRef identifies a thread returned by a thread listing.
type ThreadRef struct {
	ID string
}

// Header is a single RFC 5322 header as reported by the Gmail API, in wire order.
type Header struct {
	Name  string
	Value string
}

// Message holds the fields of a Gmail message the agent needs.
type Message struct {
	ID           string
	ThreadID     string
	InternalDate int64 // epoch milliseconds, Gmail's receipt time
	Snippet      string
	Body         string // plain text body when one could be decoded
	Headers      []Header
}

// Thread is the detail view of a conversation. The last element of Messages is the most recent one.
type Thread struct {
	ID       string
	Messages []Message
}

// Receipt is returned by a successful send.
type Receipt struct {
	ID       string
	ThreadID string
}

// HeaderValue returns the value of the first header whose name matches exactly.
func (m Message) HeaderValue(name string) (string, bool) {
	for _, h := range m.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// Latest returns the most recent message of the thread.
func (t Thread) Latest() (Message, bool) {
	if len(t.Messages) == 0 {
		return Message{}, false
	}
	return t.Messages[len(t.Messages)-1], true
}
