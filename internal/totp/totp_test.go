package totp

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsAdjacentSteps(t *testing.T) {
	secret, err := NewSecret("SecureBank", "alice@example.com")
	require.NoError(t, err)

	now := time.Date(2026, 10, 15, 12, 0, 15, 0, time.UTC)
	code, err := GenerateCode(secret, now)
	require.NoError(t, err)

	require.True(t, Validate(code, secret, now))
	require.True(t, Validate(code, secret, now.Add(period*time.Second)))
	require.True(t, Validate(code, secret, now.Add(-period*time.Second)))
	require.False(t, Validate(code, secret, now.Add(3*period*time.Second)))
}

func TestValidateRejectsWrongInput(t *testing.T) {
	secret, err := NewSecret("SecureBank", "alice@example.com")
	require.NoError(t, err)
	now := time.Now()
	code := mustCode(t, secret, now)

	require.False(t, Validate("", secret, now))
	require.False(t, Validate("12345", secret, now))
	require.False(t, Validate("abcdef", secret, now))
	require.True(t, Validate(" "+code+" ", secret, now))
	require.False(t, Validate(code, "", now))
}

func TestNewEnrollmentReusesSecret(t *testing.T) {
	secret, err := NewSecret("SecureBank", "alice@example.com")
	require.NoError(t, err)

	enrollment, err := NewEnrollment("SecureBank", "alice@example.com", secret)
	require.NoError(t, err)
	require.Equal(t, secret, enrollment.Secret)
	require.True(t, strings.HasPrefix(enrollment.QRCode, "data:image/png;base64,"))

	uri, err := url.Parse(enrollment.URI)
	require.NoError(t, err)
	require.Equal(t, "otpauth", uri.Scheme)
	require.Equal(t, "totp", uri.Host)
	require.Equal(t, secret, uri.Query().Get("secret"))
	require.Equal(t, "SecureBank", uri.Query().Get("issuer"))
}

func TestNewEnrollmentRejectsGarbageSecret(t *testing.T) {
	_, err := NewEnrollment("SecureBank", "alice@example.com", "not base32!")
	require.Error(t, err)
}

func mustCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := GenerateCode(secret, at)
	require.NoError(t, err)
	return code
}
