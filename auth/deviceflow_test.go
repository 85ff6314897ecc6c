package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestIDTokenOf(t *testing.T) {
	token := (&oauth2.Token{AccessToken: "access"}).WithExtra(map[string]interface{}{"id_token": "raw.jwt.value"})
	raw, err := idTokenOf(token)
	require.NoError(t, err)
	assert.Equal(t, "raw.jwt.value", raw)

	_, err = idTokenOf(&oauth2.Token{AccessToken: "access"})
	assert.Error(t, err)
}

func TestStaticTokenSource(t *testing.T) {
	raw, err := StaticTokenSource("abc").IDToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", raw)
	_, err = StaticTokenSource("").IDToken(context.Background())
	assert.Error(t, err)
}

func TestNewGoogleDeviceTokenSource(t *testing.T) {
	src := NewGoogleDeviceTokenSource("id", "secret", nil)
	assert.Equal(t, "id", src.config.ClientID)
	assert.Equal(t, idTokenScopes, src.config.Scopes)
	assert.NotEmpty(t, src.config.Endpoint.DeviceAuthURL)
}
