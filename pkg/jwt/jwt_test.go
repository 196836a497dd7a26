package jwt

import (
	"testing"
	"time"

	"github.com/benmeehan/live-location/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_SignVerify(t *testing.T) {
	tm, err := NewTokenManager([]byte("s3cret"), time.Minute)
	require.NoError(t, err)
	payload := []byte(`{"userId":"u-1","lat":1,"lng":2}`)

	token, err := tm.Sign("u-1", payload)
	require.NoError(t, err)

	claims, err := tm.Verify(token, payload)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
}

// TestTokenManager_Verify_PayloadMismatch refuses a token reused on another payload.
func TestTokenManager_Verify_PayloadMismatch(t *testing.T) {
	tm, _ := NewTokenManager([]byte("s3cret"), time.Minute)
	token, err := tm.Sign("u-1", []byte("a"))
	require.NoError(t, err)

	_, err = tm.Verify(token, []byte("b"))
	assert.ErrorIs(t, err, ErrPayloadMismatch)
}

func TestTokenManager_Verify_WrongSecret(t *testing.T) {
	signer, _ := NewTokenManager([]byte("one"), time.Minute)
	verifier, _ := NewTokenManager([]byte("two"), time.Minute)
	token, _ := signer.Sign("u", []byte("p"))

	_, err := verifier.Verify(token, []byte("p"))
	assert.Error(t, err)
}

// TestTokenManager_Verify_Expired uses a clock past the token lifetime.
func TestTokenManager_Verify_Expired(t *testing.T) {
	tm, _ := NewTokenManager([]byte("s"), time.Second)
	token, _ := tm.Sign("u", []byte("p"))

	tm.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err := tm.Verify(token, []byte("p"))
	assert.Error(t, err)
}

func TestNewTokenManager_EmptySecret(t *testing.T) {
	_, err := NewTokenManager(nil, time.Minute)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestNewTokenManagerFromFile(t *testing.T) {
	fileOps := new(mocks.MockFileOperations)
	fileOps.On("ReadFileRaw", "secret").Return([]byte("  abc\n"), nil)

	tm, err := NewTokenManagerFromFile("secret", fileOps, 0)

	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), tm.secret)
	assert.Equal(t, 5*time.Minute, tm.ttl)
}
