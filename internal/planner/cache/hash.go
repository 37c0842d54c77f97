package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
)

// Hash fingerprints preferences so that case and surrounding whitespace in
// string fields do not change the key. Empty strings count as absent.
func Hash(prefs contract.TravelPreferences) string {
	return digest(canonical(prefs))
}

// HashFor scopes the fingerprint to a locale, since reports are localized.
func HashFor(locale contract.Locale, prefs contract.TravelPreferences) string {
	return digest(map[string]any{
		"locale":      string(locale.Normalize()),
		"preferences": canonical(prefs),
	})
}

func canonical(prefs contract.TravelPreferences) map[string]any {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			delete(m, k)
			continue
		}
		m[k] = s
	}
	return m
}

// digest relies on encoding/json writing map keys in sorted order.
func digest(v any) string {
	b, _ := json.Marshal(v)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
