package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
)

var testUser = domain.User{ID: "6407cf6f515bdcf347c09f17", Name: "Ahmed", Role: "user"}

func TestIssueAndValidate(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)

	token, err := issuer.Issue(testUser)
	require.NoError(t, err)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, testUser, claims.User())
	require.NotNil(t, claims.ExpiresAt)
}

func TestValidate_WrongSecret(t *testing.T) {
	token, err := NewIssuer("secret", 0).Issue(testUser)
	require.NoError(t, err)

	_, err = NewIssuer("other", 0).Validate(token)
	assert.Error(t, err)
}

func TestValidate_Expired(t *testing.T) {
	token, err := NewIssuer("secret", -time.Minute).Issue(testUser)
	require.NoError(t, err)

	_, err = NewIssuer("secret", 0).Validate(token)
	assert.Error(t, err)
}

func TestParseUnverified_IgnoresSignature(t *testing.T) {
	token, err := NewIssuer("a key the client never sees", 0).Issue(testUser)
	require.NoError(t, err)

	claims, err := ParseUnverified(token)
	require.NoError(t, err)
	assert.Equal(t, testUser, claims.User())
}

func TestParseUnverified_Garbage(t *testing.T) {
	_, err := ParseUnverified("not-a-jwt")
	assert.Error(t, err)
}

func TestParseUnverified_MissingID(t *testing.T) {
	token, err := NewIssuer("secret", 0).Issue(domain.User{Name: "nobody"})
	require.NoError(t, err)

	_, err = ParseUnverified(token)
	assert.Error(t, err)
}
