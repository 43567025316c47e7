package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:ABC-DEF1234ghIkl"

func signInitData(t *testing.T, botToken string, values url.Values) string {
	t.Helper()
	pairs := make([]string, 0, len(values))
	for key := range values {
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)

	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	secret := mac.Sum(nil)

	mac = hmac.New(sha256.New, secret)
	mac.Write([]byte(strings.Join(pairs, "\n")))
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func TestValidateInitData(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	values := url.Values{}
	values.Set("auth_date", fmt.Sprintf("%d", now.Add(-time.Hour).Unix()))
	values.Set("query_id", "AAH1234")
	values.Set("user", `{"id":42,"first_name":"Анна"}`)
	initData := signInitData(t, testBotToken, values)

	assert.NoError(t, ValidateInitData(initData, testBotToken, now))
}

func TestValidateInitDataRejectsTamper(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	values := url.Values{}
	values.Set("auth_date", fmt.Sprintf("%d", now.Unix()))
	values.Set("user", `{"id":42,"first_name":"Анна"}`)
	initData := signInitData(t, testBotToken, values)

	tampered := strings.Replace(initData, "42", "43", 1)
	assert.ErrorIs(t, ValidateInitData(tampered, testBotToken, now), ErrBadHash)
}

func TestValidateInitDataRejectsWrongToken(t *testing.T) {
	now := time.Now()
	values := url.Values{}
	values.Set("auth_date", fmt.Sprintf("%d", now.Unix()))
	initData := signInitData(t, "999:other-token", values)

	assert.ErrorIs(t, ValidateInitData(initData, testBotToken, now), ErrBadHash)
}

func TestValidateInitDataRejectsExpired(t *testing.T) {
	now := time.Date(2025, 3, 2, 12, 0, 1, 0, time.UTC)
	values := url.Values{}
	values.Set("auth_date", fmt.Sprintf("%d", now.Add(-MaxInitDataAge-time.Second).Unix()))
	initData := signInitData(t, testBotToken, values)

	assert.ErrorIs(t, ValidateInitData(initData, testBotToken, now), ErrExpired)
}

func TestValidateInitDataRequiresHash(t *testing.T) {
	assert.ErrorIs(t, ValidateInitData("auth_date=100", testBotToken, time.Now()), ErrMissingHash)
}

func TestParseUser(t *testing.T) {
	values := url.Values{}
	values.Set("user", `{"id":777,"first_name":"Иван","last_name":"Петров","username":"ivan","is_premium":true}`)

	user, err := ParseUser(values.Encode())
	require.NoError(t, err)
	assert.Equal(t, int64(777), user.ID)
	assert.Equal(t, "Иван Петров", user.DisplayName())
	assert.True(t, user.IsPremium)
}

func TestParseUserMissing(t *testing.T) {
	_, err := ParseUser("auth_date=100")
	assert.Error(t, err)
}

func TestDisplayNameFallbacks(t *testing.T) {
	assert.Equal(t, "@ivan", User{ID: 1, Username: "ivan"}.DisplayName())
	assert.Equal(t, "1", User{ID: 1}.DisplayName())
}
