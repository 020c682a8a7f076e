package engine

import (
	"regexp"
	"strings"
)

// Kind classifies an AI reply. Models are asked to lead every reply with
// a tag; the tag is parsed once here so callers branch on Kind instead of
// re-reading raw text.
type Kind string

const (
	KindPuzzle    Kind = "puzzle"
	KindCorrect   Kind = "correct"
	KindWrong     Kind = "wrong"
	KindHint      Kind = "hint"
	KindNarration Kind = "narration"
)

var tags = map[string]Kind{
	"PUZZLE":    KindPuzzle,
	"CORRECT":   KindCorrect,
	"WRONG":     KindWrong,
	"HINT":      KindHint,
	"NARRATION": KindNarration,
}

var (
	leadingTag = regexp.MustCompile(`(?i)^\s*\[(PUZZLE|CORRECT|WRONG|HINT|NARRATION)\]`)
	anyTag     = regexp.MustCompile(`(?i)\[(PUZZLE|CORRECT|WRONG|HINT|NARRATION)\]`)
	correctTag = regexp.MustCompile(`(?i)\[CORRECT\]`)
)

// Response is a parsed AI reply. Body has the framing tags removed.
type Response struct {
	Kind Kind   `json:"kind"`
	Body string `json:"body"`
	Raw  string `json:"-"`
}

// Parse reads the leading tag of raw. Replies without a tag take fallback.
func Parse(raw string, fallback Kind) Response {
	kind := fallback
	if m := leadingTag.FindStringSubmatch(raw); m != nil {
		kind = tags[strings.ToUpper(m[1])]
	}
	return Response{Kind: kind, Body: stripTags(raw), Raw: raw}
}

// ParseVerdict classifies a judgement lexically: a reply containing the
// correct tag anywhere is correct, anything else is wrong.
func ParseVerdict(raw string) Response {
	kind := KindWrong
	if correctTag.MatchString(raw) {
		kind = KindCorrect
	}
	return Response{Kind: kind, Body: stripTags(raw), Raw: raw}
}

func stripTags(raw string) string {
	return strings.TrimSpace(anyTag.ReplaceAllString(raw, ""))
}
