package middleware_test

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodlink/internal/middleware"
	storagemem "github.com/bloodlink/internal/storage/memory"
)

func newSession(t *testing.T, kv *storagemem.Client) (sessionID, secretB64 string) {
	t.Helper()
	secret := make([]byte, 32)
	_, err := rand.Read(secret)
	require.NoError(t, err)
	secretB64 = base64.StdEncoding.EncodeToString(secret)
	sessionID = "sess-1"
	require.NoError(t, kv.SetSession(context.Background(), sessionID, "user-1", secretB64))
	return sessionID, secretB64
}

func sign(secretB64, method, path, body, timestamp string) string {
	secret, _ := base64.StdEncoding.DecodeString(secretB64)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(method + path + body + timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

func doSigned(kv *storagemem.Client, req *http.Request) (*httptest.ResponseRecorder, string) {
	var gotUserID string
	h := middleware.SessionAuth(kv)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = middleware.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, gotUserID
}

func TestSessionAuthValidSignature(t *testing.T) {
	kv := storagemem.New()
	sessionID, secret := newSession(t, kv)

	body := `{"text":"hi"}`
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/api/chats", strings.NewReader(body))
	req.Header.Set("X-Session-Id", sessionID)
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", sign(secret, http.MethodPost, "/api/chats", body, ts))

	rec, userID := doSigned(kv, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", userID)
}

func TestSessionAuthQueryFallback(t *testing.T) {
	kv := storagemem.New()
	sessionID, secret := newSession(t, kv)

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := sign(secret, http.MethodGet, "/ws", "", ts)
	req := httptest.NewRequest(http.MethodGet, "/ws?session_id="+sessionID+"&timestamp="+ts+"&signature="+sig, nil)

	rec, userID := doSigned(kv, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", userID)
}

func TestSessionAuthRejectsTamperedBody(t *testing.T) {
	kv := storagemem.New()
	sessionID, secret := newSession(t, kv)

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/api/chats", strings.NewReader(`{"text":"evil"}`))
	req.Header.Set("X-Session-Id", sessionID)
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", sign(secret, http.MethodPost, "/api/chats", `{"text":"hi"}`, ts))

	rec, _ := doSigned(kv, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionAuthRejectsStaleTimestamp(t *testing.T) {
	kv := storagemem.New()
	sessionID, secret := newSession(t, kv)

	ts := strconv.FormatInt(time.Now().Add(-2*middleware.TimestampSkew).Unix(), 10)
	req := httptest.NewRequest(http.MethodGet, "/api/donors", nil)
	req.Header.Set("X-Session-Id", sessionID)
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", sign(secret, http.MethodGet, "/api/donors", "", ts))

	rec, _ := doSigned(kv, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionAuthRejectsUnknownSession(t *testing.T) {
	kv := storagemem.New()
	_, secret := newSession(t, kv)

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodGet, "/api/donors", nil)
	req.Header.Set("X-Session-Id", "other-session")
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", sign(secret, http.MethodGet, "/api/donors", "", ts))

	rec, _ := doSigned(kv, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionAuthMissingHeaders(t *testing.T) {
	kv := storagemem.New()
	req := httptest.NewRequest(http.MethodGet, "/api/donors", nil)
	rec, _ := doSigned(kv, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
