package logger

import (
	"log/slog"
	"strings"
	"sync"
)

// Key patterns whose values are always redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"token",
	"key",
	"credential",
	"auth",
	"bearer",
}

// Keys that contain a sensitive pattern but only ever carry public data.
var publicKeys = map[string]bool{
	"key_file":    true,
	"keys":        true,
	"token_bytes": true,
}

const redactedValue = "***REDACTED***"

// minSecretLength keeps short, common strings (e.g. "", "a") out of the
// value registry; masking them would shred unrelated log lines.
const minSecretLength = 4

var secrets struct {
	mu     sync.RWMutex
	values map[string]struct{}
}

// RegisterSecret marks value as secret. Any string attribute containing it
// is masked from then on, regardless of its key.
func RegisterSecret(value string) {
	if len(value) < minSecretLength {
		return
	}
	secrets.mu.Lock()
	defer secrets.mu.Unlock()
	if secrets.values == nil {
		secrets.values = make(map[string]struct{})
	}
	secrets.values[value] = struct{}{}
}

// ForgetSecrets clears the registry. Tests use it to isolate cases.
func ForgetSecrets() {
	secrets.mu.Lock()
	secrets.values = nil
	secrets.mu.Unlock()
}

func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		strVal := a.Value.String()
		if strVal == "" {
			return a
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
		if masked, ok := maskRegistered(strVal); ok {
			return slog.String(a.Key, masked)
		}
	case slog.KindAny:
		// Errors are rendered through their message, which may quote a secret.
		if err, ok := a.Value.Any().(error); ok && err != nil {
			if masked, ok := maskRegistered(err.Error()); ok {
				return slog.String(a.Key, masked)
			}
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}
	return a
}

func maskRegistered(s string) (string, bool) {
	secrets.mu.RLock()
	defer secrets.mu.RUnlock()

	changed := false
	for secret := range secrets.values {
		if strings.Contains(s, secret) {
			s = strings.ReplaceAll(s, secret, RedactString(secret))
			changed = true
		}
	}
	return s, changed
}

// RedactString masks a secret for display, keeping the first and last three
// characters of long values: "abcdefghijkl" -> "abc...jkl".
func RedactString(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "***"
	}
	return value[:3] + "..." + value[len(value)-3:]
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	if publicKeys[keyLower] {
		return false
	}
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
