package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

type verdictPayload struct {
	IsRealHuman     *bool  `json:"is_real_human"`
	IsMobileRelated *bool  `json:"is_mobile_related"`
	Reason          string `json:"reason"`
}

// DecodeVerdict turns classifier text into a Verdict. The text may be wrapped in a fenced block
// with a language tag. Anything that is not exactly one JSON object carrying both flags is
// rejected with ErrMalformedVerdict; the text is never interpreted any other way.
func DecodeVerdict(raw string) (Verdict, error) {
	body := stripFence(raw)
	if body == "" {
		return Verdict{}, fmt.Errorf("%w: empty response", ErrMalformedVerdict)
	}

	dec := json.NewDecoder(strings.NewReader(body))
	var p verdictPayload
	if err := dec.Decode(&p); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Verdict{}, fmt.Errorf("%w: trailing data after object", ErrMalformedVerdict)
	}
	if p.IsRealHuman == nil || p.IsMobileRelated == nil {
		return Verdict{}, fmt.Errorf("%w: missing is_real_human or is_mobile_related", ErrMalformedVerdict)
	}
	return Verdict{
		IsHuman:    *p.IsRealHuman,
		IsRelevant: *p.IsMobileRelated,
		Reason:     p.Reason,
	}, nil
}

// stripFence returns the contents of the first ``` block with its language tag removed,
// or the trimmed input when there is no fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	inner := s[start+3:]
	if end := strings.Index(inner, "```"); end >= 0 {
		inner = inner[:end]
	}
	inner = strings.TrimSpace(inner)
	if inner == "" || strings.HasPrefix(inner, "{") || strings.HasPrefix(inner, "[") {
		return inner
	}
	tagEnd := strings.IndexFunc(inner, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_')
	})
	if tagEnd < 0 {
		// nothing but a tag
		return ""
	}
	return strings.TrimSpace(inner[tagEnd:])
}
