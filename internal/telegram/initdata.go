package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
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

// MaxInitDataAge is how long signed init data stays valid.
const MaxInitDataAge = 24 * time.Hour

var (
	ErrMissingHash = errors.New("telegram: init data has no hash")
	ErrExpired     = errors.New("telegram: init data is expired")
	ErrBadHash     = errors.New("telegram: init data hash mismatch")
)

// User is the mini-app user embedded in init data.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
	IsPremium    bool   `json:"is_premium"`
}

// DisplayName is the best human-readable name available.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}

// ValidateInitData verifies the signature and freshness of a mini-app
// init data string against the bot token.
func ValidateInitData(initData, botToken string, now time.Time) error {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return fmt.Errorf("telegram: parse init data: %w", err)
	}
	hash := values.Get("hash")
	if hash == "" {
		return ErrMissingHash
	}

	if raw := values.Get("auth_date"); raw != "" {
		authDate, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("telegram: parse auth_date: %w", err)
		}
		if now.Unix()-authDate > int64(MaxInitDataAge.Seconds()) {
			return ErrExpired
		}
	}

	pairs := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)
	checkString := strings.Join(pairs, "\n")

	secret := hmacSHA256([]byte("WebAppData"), []byte(botToken))
	computed := hex.EncodeToString(hmacSHA256(secret, []byte(checkString)))
	if !hmac.Equal([]byte(computed), []byte(hash)) {
		return ErrBadHash
	}
	return nil
}

// ParseUser extracts the user object from init data without validating it.
func ParseUser(initData string) (User, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return User{}, fmt.Errorf("telegram: parse init data: %w", err)
	}
	raw := values.Get("user")
	if raw == "" {
		return User{}, errors.New("telegram: init data has no user")
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return User{}, fmt.Errorf("telegram: parse user: %w", err)
	}
	return u, nil
}

func hmacSHA256(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}
