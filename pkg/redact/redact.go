package redact

import (
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/harunnryd/mockinterview/pkg/adapters/transcriber"
)

var enabled atomic.Bool

var (
	emailRe = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phoneRe = regexp.MustCompile(`\b\+?\d[\d\s\-]{7,}\d\b`)
	urlRe   = regexp.MustCompile(`(?i)\bhttps?://[^\s]+`)
)

// Keys whose string values carry what the candidate said or was told.
var spokenKeys = map[string]struct{}{
	"transcript": {},
	"feedback":   {},
	"error":      {},
}

// SetEnabled toggles PII redaction.
func SetEnabled(v bool) {
	enabled.Store(v)
}

// Enabled returns true when redaction is active.
func Enabled() bool {
	return enabled.Load()
}

// Text redacts emails, phone numbers and links when enabled.
func Text(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	out := emailRe.ReplaceAllString(in, "[REDACTED_EMAIL]")
	out = urlRe.ReplaceAllString(out, "[REDACTED_URL]")
	out = phoneRe.ReplaceAllString(out, "[REDACTED_PHONE]")
	return out
}

// Result redacts a transcript/feedback pair.
func Result(r transcriber.Result) transcriber.Result {
	return transcriber.Result{Transcript: Text(r.Transcript), Feedback: Text(r.Feedback)}
}

// Fields returns a copy of fields with spoken content redacted.
func Fields(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		s, ok := v.(string)
		if _, spoken := spokenKeys[k]; ok && spoken {
			out[k] = Text(s)
			continue
		}
		out[k] = v
	}
	return out
}
