// Package auth secures the question gateway. Clients exchange a static
// API key for a short-lived JWT, then present the JWT on question
// submissions. API keys live bcrypt-hashed in a YAML file so the plaintext
// never touches disk on the server side.
package auth

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// APIKey is one gateway credential.
type APIKey struct {
	ClientID string `yaml:"client_id"`
	// KeyHash is the bcrypt hash of the plaintext key.
	KeyHash string `yaml:"key_hash"`
	// Role is informational; the gateway has a single privilege level.
	Role string `yaml:"role"`
}

type keyFile struct {
	Keys []APIKey `yaml:"keys"`
}

// LoadKeys reads the API key file.
func LoadKeys(path string) ([]APIKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read api key file: %w", err)
	}
	var kf keyFile
	if err := yaml.Unmarshal(raw, &kf); err != nil {
		return nil, fmt.Errorf("parse api key file: %w", err)
	}
	if len(kf.Keys) == 0 {
		return nil, fmt.Errorf("api key file %s contains no keys", path)
	}
	return kf.Keys, nil
}

// HashKey bcrypt-hashes a plaintext key, for key provisioning tools.
func HashKey(plaintext string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Claims are the gateway token claims.
type Claims struct {
	jwt.RegisteredClaims
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
}

// Manager issues and validates gateway tokens.
type Manager struct {
	signingKey []byte
	expiry     time.Duration
	issuer     string
	keys       []APIKey
}

// NewManager builds a manager over the loaded API keys.
func NewManager(signingKey string, expiry time.Duration, keys []APIKey) *Manager {
	return &Manager{
		signingKey: []byte(signingKey),
		expiry:     expiry,
		issuer:     "tabularis-gateway",
		keys:       keys,
	}
}

// Exchange checks an API key against the stored hashes and, on match,
// issues a signed token.
func (m *Manager) Exchange(clientID, plaintextKey string) (string, error) {
	for _, k := range m.keys {
		if k.ClientID != clientID {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(plaintextKey)); err != nil {
			return "", fmt.Errorf("invalid api key")
		}
		return m.issue(k)
	}
	return "", fmt.Errorf("unknown client %q", clientID)
}

func (m *Manager) issue(k APIKey) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   k.ClientID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		ClientID: k.ClientID,
		Role:     k.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

// Validate parses and verifies a token, returning its claims.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
