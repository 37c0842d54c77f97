package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
)

const redacted = "[REDACTED]"

// Keys whose values never reach the log sink.
var redactMarkers = []string{
	"token",
	"authorization",
	"password",
	"secret",
	"cookie",
	"api_key",
	"apikey",
	"email",
	"refresh",
}

// Keys whose values are replaced by a salted, truncated digest so they stay
// joinable across log lines without exposing the identity.
var hashMarkers = []string{
	"user_id",
	"session_id",
	"identifier",
}

var (
	redactOnce       sync.Once
	redactionEnabled bool
	hashSalt         string
)

var envValue = os.Getenv

func sanitizeKVs(kv []interface{}) []interface{} {
	if len(kv) == 0 || !redactionOn() {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		name := toString(kv[i])
		out = append(out, name, sanitizeValue(normalizeKey(name), kv[i+1]))
	}
	return out
}

func sanitizeValue(key string, val interface{}) interface{} {
	if key != "" {
		if hasMarker(key, redactMarkers) {
			return redacted
		}
		if hasMarker(key, hashMarkers) {
			return hashValue(val)
		}
	}
	switch v := val.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[k] = sanitizeValue(normalizeKey(k), inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(v))
		for _, inner := range v {
			out = append(out, sanitizeValue("", inner))
		}
		return out
	case string:
		if looksLikeJWT(v) {
			return redacted
		}
		return v
	default:
		return val
	}
}

func normalizeKey(k string) string {
	return strings.TrimSpace(strings.ToLower(k))
}

func hasMarker(key string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(key, m) {
			return true
		}
	}
	return false
}

func hashValue(val interface{}) string {
	raw := toString(val)
	if raw == "" {
		return ""
	}
	h := sha256.New()
	if hashSalt != "" {
		_, _ = h.Write([]byte(hashSalt))
	}
	_, _ = h.Write([]byte(raw))
	sum := hex.EncodeToString(h.Sum(nil))
	return "hash:" + sum[:12]
}

func looksLikeJWT(s string) bool {
	parts := strings.Split(s, ".")
	return len(parts) == 3 && len(parts[0]) > 10 && len(parts[1]) > 10
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func redactionOn() bool {
	redactOnce.Do(func() {
		switch strings.TrimSpace(strings.ToLower(envValue("LOG_REDACTION_ENABLED"))) {
		case "0", "false", "no", "off":
			redactionEnabled = false
		default:
			redactionEnabled = true
		}
		hashSalt = strings.TrimSpace(envValue("LOG_HASH_SALT"))
	})
	return redactionEnabled
}
