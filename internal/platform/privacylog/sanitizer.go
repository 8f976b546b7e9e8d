package privacylog

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

// bootNonce salts the fingerprints so ids cannot be correlated across
// daemon restarts from logs alone.
var bootNonce = randomNonce()

type keyClass int

const (
	keyPlain keyClass = iota
	keySecret
	keyIdentifier
)

var identifierKeys = map[string]struct{}{
	"channel_id":        {},
	"message_id":        {},
	"sender_id":         {},
	"optimistic_id":     {},
	"parent_message_id": {},
	"root_message_id":   {},
	"user_id":           {},
	"batch_id":          {},
	"device_id":         {},
}

var secretKeyParts = []string{"token", "secret", "password", "passphrase", "authorization", "auth"}

func classifyKey(key string) keyClass {
	lower := strings.ToLower(strings.TrimSpace(key))
	for _, part := range secretKeyParts {
		if strings.Contains(lower, part) {
			return keySecret
		}
	}
	if _, ok := identifierKeys[lower]; ok {
		return keyIdentifier
	}
	return keyPlain
}

// SanitizingHandler rewrites log attributes before the wrapped handler
// sees them: secrets are redacted, identifiers replaced by salted
// fingerprints.
type SanitizingHandler struct {
	next slog.Handler
}

func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(SanitizeAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		sanitized = append(sanitized, SanitizeAttr(attr))
	}
	return &SanitizingHandler{next: h.next.WithAttrs(sanitized)}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

func SanitizeAttr(attr slog.Attr) slog.Attr {
	key := strings.TrimSpace(attr.Key)
	switch classifyKey(key) {
	case keySecret:
		return slog.String(key, redactedValue)
	case keyIdentifier:
		return slog.String(fingerprintKeyName(key), FingerprintID(flattenValue(attr.Value)))
	}
	if attr.Value.Kind() == slog.KindGroup {
		members := attr.Value.Group()
		out := make([]any, 0, len(members))
		for _, member := range members {
			out = append(out, SanitizeAttr(member))
		}
		return slog.Group(key, out...)
	}
	return attr
}

// SanitizeArgs applies the same rewriting to a key/value argument list
// destined for slog convenience methods.
func SanitizeArgs(args ...any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, 0, len(args))
	for i := 0; i < len(args); i++ {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			out = append(out, args[i])
			continue
		}
		value := args[i+1]
		i++
		switch classifyKey(key) {
		case keySecret:
			out = append(out, key, redactedValue)
		case keyIdentifier:
			out = append(out, fingerprintKeyName(key), FingerprintID(fmt.Sprint(value)))
		default:
			out = append(out, key, value)
		}
	}
	return out
}

// FingerprintID maps an identifier to a short token that is stable
// within one boot. Empty input stays empty.
func FingerprintID(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(trimmed + "|" + bootNonce))
	return "fp_" + hex.EncodeToString(sum[:8])
}

func fingerprintKeyName(key string) string {
	if strings.HasSuffix(strings.ToLower(key), "_fp") {
		return key
	}
	return key + "_fp"
}

func flattenValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return fmt.Sprintf("%d", v.Int64())
	case slog.KindUint64:
		return fmt.Sprintf("%d", v.Uint64())
	case slog.KindFloat64:
		return fmt.Sprintf("%g", v.Float64())
	case slog.KindBool:
		return fmt.Sprintf("%t", v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format("2006-01-02T15:04:05.000000000Z")
	default:
		return fmt.Sprint(v.Any())
	}
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "fallback_nonce"
	}
	return hex.EncodeToString(buf)
}
