package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedPayload = errors.New("malformed init data")
	ErrInvalidSignature = errors.New("invalid telegram signature")
	ErrExpiredPayload   = errors.New("expired init data")
)

// MaxInitDataAge is how long a signed initData payload stays acceptable.
const MaxInitDataAge = 24 * time.Hour

// WebAppUser is the user object Telegram embeds in WebApp initData.
type WebAppUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// InitData holds the verified payload fields.
type InitData struct {
	Raw  map[string]string
	User *WebAppUser
}

// VerifyInitData validates a Telegram WebApp initData string against the bot
// token per the WebApp signing scheme: the check string is the remaining
// fields sorted by key and joined as "key=value" lines, the HMAC key is
// SHA-256 of the bot token. Verification is pure; "now" is injected so expiry
// is testable.
func VerifyInitData(initData, botToken string, now time.Time) (*InitData, error) {
	fields, err := parsePairs(initData)
	if err != nil {
		return nil, err
	}

	suppliedHash, ok := fields["hash"]
	if !ok || suppliedHash == "" {
		return nil, fmt.Errorf("%w: missing hash", ErrMalformedPayload)
	}
	delete(fields, "hash")

	if !hashMatches(fields, botToken, suppliedHash) {
		return nil, ErrInvalidSignature
	}

	if raw, ok := fields["auth_date"]; ok && raw != "" {
		authTs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid auth_date", ErrMalformedPayload)
		}
		if now.Unix()-authTs > int64(MaxInitDataAge.Seconds()) {
			return nil, ErrExpiredPayload
		}
	}

	out := &InitData{Raw: fields}
	if userJSON, ok := fields["user"]; ok && userJSON != "" {
		user := &WebAppUser{}
		if err := json.Unmarshal([]byte(userJSON), user); err != nil {
			return nil, fmt.Errorf("%w: invalid user payload", ErrMalformedPayload)
		}
		out.User = user
	}
	return out, nil
}

// parsePairs decodes the URL-encoded key/value pairs strictly: every segment
// must be a decodable key=value.
func parsePairs(initData string) (map[string]string, error) {
	if strings.TrimSpace(initData) == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}
	fields := make(map[string]string)
	for _, segment := range strings.Split(initData, "&") {
		key, value, found := strings.Cut(segment, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: bad field %q", ErrMalformedPayload, segment)
		}
		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("%w: bad field key %q", ErrMalformedPayload, key)
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("%w: bad field value for %q", ErrMalformedPayload, decodedKey)
		}
		fields[decodedKey] = decodedValue
	}
	return fields, nil
}

func hashMatches(fields map[string]string, botToken, suppliedHash string) bool {
	computed := ComputeInitDataHash(fields, botToken)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(suppliedHash)) == 1
}

// ComputeInitDataHash renders the canonical check string for the given fields
// (hash excluded by the caller) and signs it. Exposed for tests and for
// producing fixtures.
func ComputeInitDataHash(fields map[string]string, botToken string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}
	checkString := strings.Join(lines, "\n")

	secretKey := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secretKey[:])
	mac.Write([]byte(checkString))
	return hex.EncodeToString(mac.Sum(nil))
}
