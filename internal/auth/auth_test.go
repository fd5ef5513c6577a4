package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	hash, err := HashKey("sk-local-dev")
	require.NoError(t, err)
	keys := []APIKey{{ClientID: "analyst", KeyHash: hash, Role: "submitter"}}
	return NewManager("test-signing-key", time.Hour, keys)
}

func TestExchangeAndValidate(t *testing.T) {
	m := testManager(t)

	token, err := m.Exchange("analyst", "sk-local-dev")
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "analyst", claims.ClientID)
	assert.Equal(t, "submitter", claims.Role)
}

func TestExchangeRejectsWrongKey(t *testing.T) {
	m := testManager(t)

	_, err := m.Exchange("analyst", "wrong")
	assert.Error(t, err)

	_, err = m.Exchange("nobody", "sk-local-dev")
	assert.Error(t, err)
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	m := testManager(t)
	other := NewManager("different-key", time.Hour, nil)

	token, err := m.Exchange("analyst", "sk-local-dev")
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	hash, err := HashKey("k")
	require.NoError(t, err)
	m := NewManager("key", -time.Minute, []APIKey{{ClientID: "c", KeyHash: hash}})

	token, err := m.Exchange("c", "k")
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.Error(t, err)
}

func TestLoadKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
keys:
  - client_id: analyst
    key_hash: "$2a$10$fakehashfakehashfakehashfakehashfakehashfakehashfake"
    role: submitter
`), 0o600))

	keys, err := LoadKeys(path)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "analyst", keys[0].ClientID)
}

func TestLoadKeysRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keys: []\n"), 0o600))

	_, err := LoadKeys(path)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	m := testManager(t)
	var sawClient string
	handler := Middleware(m, zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		sawClient = claims.ClientID
		w.WriteHeader(http.StatusNoContent)
	}))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/questions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token.
	token, err := m.Exchange("analyst", "sk-local-dev")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/questions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "analyst", sawClient)
}
