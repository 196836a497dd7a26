package jwt

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benmeehan/live-location/pkg/file"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrPayloadMismatch is returned when a token was issued for a different payload.
	ErrPayloadMismatch = errors.New("token does not match payload")
	// ErrEmptySecret is returned when the signing secret is missing.
	ErrEmptySecret = errors.New("signing secret is empty")
)

// Claims bind a token to the publishing user and to the exact payload bytes.
type Claims struct {
	PayloadHash string `json:"ph"`
	jwt.RegisteredClaims
}

// TokenManagerInterface signs and verifies payload tokens.
type TokenManagerInterface interface {
	Sign(subject string, payload []byte) (string, error)
	Verify(token string, payload []byte) (*Claims, error)
}

// TokenManager issues HS256 tokens from a shared secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager with the given secret and token lifetime.
func NewTokenManager(secret []byte, ttl time.Duration) (*TokenManager, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenManager{secret: secret, ttl: ttl, now: time.Now}, nil
}

// NewTokenManagerFromFile reads the secret from secretPath. Surrounding
// whitespace in the file is ignored.
func NewTokenManagerFromFile(secretPath string, fileOps file.FileOperations, ttl time.Duration) (*TokenManager, error) {
	raw, err := fileOps.ReadFileRaw(secretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret file: %w", err)
	}
	return NewTokenManager([]byte(strings.TrimSpace(string(raw))), ttl)
}

// Sign issues a token for subject covering payload.
func (tm *TokenManager) Sign(subject string, payload []byte) (string, error) {
	now := tm.now()
	claims := Claims{
		PayloadHash: hashPayload(payload),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// Verify checks the signature, expiry and payload binding of token.
func (tm *TokenManager) Verify(token string, payload []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.PayloadHash != hashPayload(payload) {
		return nil, ErrPayloadMismatch
	}
	return claims, nil
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
