package twofactor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/securebank/securebank/internal/identity"
	"github.com/securebank/securebank/internal/logging"
	"github.com/securebank/securebank/internal/totp"
)

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, identity.Repository, identity.Account) {
	t.Helper()
	repo := identity.NewMemoryRepository()
	ids := identity.NewService(repo, decimal.NewFromInt(500)).WithHashCost(bcrypt.MinCost)
	account, err := ids.Register(context.Background(), identity.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "password1"})
	require.NoError(t, err)
	svc := NewService(repo, "SecureBank", logging.Discard()).WithClock(func() time.Time { return fixedNow })
	return svc, repo, account
}

func codeFor(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, fixedNow)
	require.NoError(t, err)
	return code
}

func TestSetupReusesSecret(t *testing.T) {
	svc, _, account := newService(t)
	ctx := context.Background()

	first, err := svc.Setup(ctx, account.ID)
	require.NoError(t, err)
	require.NotEmpty(t, first.Secret)
	require.Contains(t, first.URI, "otpauth://totp/")
	require.Contains(t, first.QRCode, "data:image/png;base64,")

	second, err := svc.Setup(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, first.Secret, second.Secret)

	status, err := svc.Status(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, Status{}, status, "setup alone must not enable 2FA")
}

func TestConcurrentSetupYieldsOneSecret(t *testing.T) {
	svc, repo, account := newService(t)
	ctx := context.Background()

	const workers = 10
	secrets := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			enrollment, err := svc.Setup(ctx, account.ID)
			if err != nil {
				t.Errorf("setup: %v", err)
				return
			}
			secrets[i] = enrollment.Secret
		}(i)
	}
	wg.Wait()

	stored, err := repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	for _, s := range secrets {
		require.Equal(t, stored.TwoFactor.Secret, s)
	}
}

func TestConfirmRequiresValidCode(t *testing.T) {
	svc, _, account := newService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.Confirm(ctx, account.ID, "123456"), ErrNotSetUp)

	enrollment, err := svc.Setup(ctx, account.ID)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Confirm(ctx, account.ID, "abcdef"), ErrInvalidCode)
	status, err := svc.Status(ctx, account.ID)
	require.NoError(t, err)
	require.False(t, status.Enabled)
	require.False(t, status.Verified)

	require.NoError(t, svc.Confirm(ctx, account.ID, codeFor(t, enrollment.Secret)))
	status, err = svc.Status(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, Status{Enabled: true, Verified: true}, status)

	again, err := svc.Status(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, status, again)
}

func TestDisableClearsState(t *testing.T) {
	svc, repo, account := newService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.Disable(ctx, account.ID, "123456"), ErrNotSetUp)

	enrollment, err := svc.Setup(ctx, account.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Confirm(ctx, account.ID, codeFor(t, enrollment.Secret)))

	require.ErrorIs(t, svc.Disable(ctx, account.ID, "000000x"), ErrInvalidCode)
	stored, err := repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, stored.TwoFactor.Active())

	require.NoError(t, svc.Disable(ctx, account.ID, codeFor(t, enrollment.Secret)))
	stored, err = repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, identity.TwoFactorState{}, stored.TwoFactor)

	fresh, err := svc.Setup(ctx, account.ID)
	require.NoError(t, err)
	require.NotEqual(t, enrollment.Secret, fresh.Secret)
}
