package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	DefaultBusiness  = "Mobile Store"
	DefaultTopic     = "mobile phones, buying a phone, or mobile accessories"
	DefaultSignature = "Mobile Store Team"
)

// Completer turns a prompt into model text. *Client implements it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Persona is the business the agent answers for.
type Persona struct {
	Business  string // e.g. "Mobile Store"
	Topic     string // what customers must be asking about to get a reply
	Signature string // sign-off used in drafted replies
}

func (p Persona) withDefaults() Persona {
	if p.Business == "" {
		p.Business = DefaultBusiness
	}
	if p.Topic == "" {
		p.Topic = DefaultTopic
	}
	if p.Signature == "" {
		p.Signature = DefaultSignature
	}
	return p
}

// Classifier asks the model whether a message comes from a real person and is on topic.
// It returns the raw model text; decoding the verdict is left to the caller.
type Classifier struct {
	llm     Completer
	persona Persona
}

func NewClassifier(llm Completer, persona Persona) *Classifier {
	return &Classifier{llm: llm, persona: persona.withDefaults()}
}

func (c *Classifier) Classify(ctx context.Context, sender, subject, snippet string) (string, error) {
	return c.llm.Complete(ctx, c.Prompt(sender, subject, snippet))
}

// Prompt renders the classification prompt.
func (c *Classifier) Prompt(sender, subject, snippet string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a smart email filter for a %s.\n", c.persona.Business)
	b.WriteString("Analyze this email:\n")
	fmt.Fprintf(&b, "Sender: %s\nSubject: %s\nContent: %s\n\n", sender, subject, snippet)
	b.WriteString("Determine two things:\n")
	b.WriteString("1. Is this a REAL email from a human (not marketing/spam/automated)?\n")
	fmt.Fprintf(&b, "2. Is the user explicitly asking about %s?\n\n", c.persona.Topic)
	b.WriteString("Reply strictly in the following JSON format (no markdown, just json):\n")
	b.WriteString(`{"is_real_human": true/false, "is_mobile_related": true/false, "reason": "short reason"}`)
	return b.String()
}

// Drafter asks the model for the body of a reply.
type Drafter struct {
	llm     Completer
	persona Persona
}

func NewDrafter(llm Completer, persona Persona) *Drafter {
	return &Drafter{llm: llm, persona: persona.withDefaults()}
}

func (d *Drafter) Draft(ctx context.Context, subject, snippet string) (string, error) {
	return d.llm.Complete(ctx, d.Prompt(subject, snippet))
}

// Prompt renders the drafting prompt.
func (d *Drafter) Prompt(subject, snippet string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a helpful %s owner.\n", d.persona.Business)
	b.WriteString("A customer sent this inquiry:\n")
	fmt.Fprintf(&b, "Subject: %s\nMessage: %s\n\n", subject, snippet)
	b.WriteString("Write a professional, short, and helpful reply.\n")
	fmt.Fprintf(&b, "Do not include placeholders like [Your Name]. Sign off as '%s'.", d.persona.Signature)
	return b.String()
}
