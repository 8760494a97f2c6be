package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	s := New("secret", time.Hour)

	tok, err := s.GenerateToken(Identity{UserID: "42", Username: "alice", Role: "staff", GuildIDs: []string{"g1", "g2"}})
	require.NoError(t, err)

	claims, err := s.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "staff", claims.Role)
	assert.True(t, claims.InGuild("g2"))
	assert.False(t, claims.InGuild("g3"))
}

func TestValidate_Rejects(t *testing.T) {
	s := New("secret", time.Hour)

	other, err := New("other", time.Hour).GenerateToken(Identity{UserID: "42"})
	require.NoError(t, err)
	_, err = s.ValidateToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := New("secret", -time.Minute).GenerateToken(Identity{UserID: "42"})
	require.NoError(t, err)
	_, err = s.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, Claims{UserID: "42"})
	raw, err := none.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.ValidateToken(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	anon, err := s.GenerateToken(Identity{})
	require.NoError(t, err)
	_, err = s.ValidateToken(anon)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
