package games

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"game-score-engine/internal/domain"
)

// Hasher derives the stored form of a trivia answer.
type Hasher interface {
	Hash(questionID, answer, salt string) (string, error)
}

// HMACHasher computes hex(HMAC-SHA256(secret, questionId|answer|salt)).
type HMACHasher struct {
	secret []byte
}

func NewHMACHasher(secret string) *HMACHasher {
	return &HMACHasher{secret: []byte(secret)}
}

func (h *HMACHasher) Hash(questionID, answer, salt string) (string, error) {
	if h == nil || len(h.secret) == 0 {
		return "", domain.NewError(domain.KindConfiguration, "trivia.hash", domain.ErrMissingSecret.Error(), domain.ErrMissingSecret)
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(questionID + "|" + strings.TrimSpace(answer) + "|" + salt))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// NormalizeHash strips any "algo:" prefix and lower-cases the digest. It
// reports false for values that are not a SHA-256 hex digest.
func NormalizeHash(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	segments := strings.Split(raw, ":")
	value := strings.ToLower(segments[len(segments)-1])
	if !hashPattern.MatchString(value) {
		return "", false
	}
	return value, true
}

// collectHashes gathers every valid digest found in strings, arrays and
// nested objects.
func collectHashes(v any, into map[string]struct{}) {
	switch t := v.(type) {
	case string:
		if h, ok := NormalizeHash(t); ok {
			into[h] = struct{}{}
		}
	case []any:
		for _, item := range t {
			collectHashes(item, into)
		}
	case []string:
		for _, item := range t {
			collectHashes(item, into)
		}
	case map[string]any:
		for _, item := range t {
			collectHashes(item, into)
		}
	}
}

// correctHashes reads the accepted digests of a question document.
func correctHashes(doc map[string]any) map[string]struct{} {
	out := map[string]struct{}{}
	collectHashes(doc["correctHash"], out)
	collectHashes(doc["correctHashes"], out)
	if h, ok := doc["hash"].(map[string]any); ok {
		for _, key := range []string{"value", "hash", "correct"} {
			if v, ok := h[key]; ok && v != nil {
				collectHashes(v, out)
				break
			}
		}
		collectHashes(h["accepted"], out)
	}
	collectHashes(doc["acceptedHashes"], out)
	return out
}
