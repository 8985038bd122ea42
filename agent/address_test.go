package agent

import "testing"

func TestNormalizeAddress(t *testing.T) {
	tests := map[string]string{
		"Jane Doe <jane@x.com>":     "jane@x.com",
		"<bob@x.com>":               "bob@x.com",
		"bob@x.com":                 "bob@x.com",
		`"Doe, Jane" <jane@x.com>`:  "jane@x.com",
		"Broken <jane@x.com":        "Broken <jane@x.com",
		"a <first@x.com> <b@x.com>": "first@x.com",
		"":                          "",
		"<>":                        "<>",
		"Nobody < >":                "Nobody < >",
	}
	for in, want := range tests {
		if got := NormalizeAddress(in); got != want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReplySubject(t *testing.T) {
	if got := ReplySubject("Phone question"); got != "Re: Phone question" {
		t.Errorf("ReplySubject = %q", got)
	}
	if got := ReplySubject("Re: Phone question"); got != "Re: Re: Phone question" {
		t.Errorf("ReplySubject should always prefix, got %q", got)
	}
}
