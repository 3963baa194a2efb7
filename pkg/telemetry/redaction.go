package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// ConfigureSlogRedacted is ConfigureSlog plus a credential-redaction pass;
// the gateway uses this one at startup since every log field might carry a
// backend URL or LLM API key.
func ConfigureSlogRedacted(output io.Writer, level, format string, urlKeys ...string) *slog.Logger {
	base := newSlogHandler(output, level, format)
	logger := slog.New(NewRedactingHandler(base, urlKeys...))
	slog.SetDefault(logger)
	return logger
}

// redactedKeyPatterns names the substrings that mark a log attribute key as
// carrying a credential; matching is case-insensitive and by substring so
// "db_password" and "api_key_primary" both match. The "_url" entry is not
// matched by substring: a *_url key is masked only when named in urlKeys.
var redactedKeyPatterns = []string{"password", "token", "api_key", "apikey", "secret", "_url"}

const redactedValue = "[REDACTED]"

// looksLikeCredentialKey reports whether key matches one of
// redactedKeyPatterns. "_url" only flags keys that plausibly carry
// embedded credentials (most *_url fields are plain endpoints), so it is
// handled by the caller of NewRedactingHandler / ConfigureSlogRedacted
// passing explicit key names instead of
// matching every *_url key here — see NewRedactingHandler's urlKeys param.
func looksLikeCredentialKey(key string, extraURLKeys map[string]bool) bool {
	lower := strings.ToLower(key)
	for _, pattern := range redactedPatternsExcludingURL() {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return extraURLKeys[lower]
}

func redactedPatternsExcludingURL() []string {
	out := make([]string, 0, len(redactedKeyPatterns)-1)
	for _, p := range redactedKeyPatterns {
		if p != "_url" {
			out = append(out, p)
		}
	}
	return out
}

// redactingHandler wraps another slog.Handler and masks the value of any
// attribute whose key matches looksLikeCredentialKey before it reaches the
// underlying handler, so secrets never reach the log sink as plain text.
type redactingHandler struct {
	next    slog.Handler
	urlKeys map[string]bool
}

// NewRedactingHandler wraps next with credential-key masking. urlKeys names
// additional keys (e.g. "backend_url" when it embeds basic-auth
// credentials) that should be redacted even though "*_url" isn't masked by
// default.
func NewRedactingHandler(next slog.Handler, urlKeys ...string) slog.Handler {
	set := make(map[string]bool, len(urlKeys))
	for _, k := range urlKeys {
		set[strings.ToLower(k)] = true
	}
	return &redactingHandler{next: next, urlKeys: set}
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, record slog.Record) error {
	redacted := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		redacted.AddAttrs(h.redactAttr(attr))
		return true
	})
	return h.next.Handle(ctx, redacted)
}

func (h *redactingHandler) redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, a := range group {
			out[i] = h.redactAttr(a)
		}
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(out...)}
	}
	if looksLikeCredentialKey(attr.Key, h.urlKeys) {
		return slog.String(attr.Key, redactedValue)
	}
	return attr
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = h.redactAttr(a)
	}
	return &redactingHandler{next: h.next.WithAttrs(out), urlKeys: h.urlKeys}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{next: h.next.WithGroup(name), urlKeys: h.urlKeys}
}
