package keychain

import (
	"context"
	"testing"
	"time"

	"refassist-backend/lib/oauth"
	"refassist-backend/lib/testutil"
	"refassist-backend/services/keychain/db"

	"github.com/stretchr/testify/require"
)

func TestCredentialRoundtrip(t *testing.T) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "keychain",
		DbSchema: db.Schema,
	})
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewService(ctx, res.DB)

	_, err := s.GetCredential(ctx, "scholarone", "mf")
	require.ErrorIs(t, err, ErrNotFound)

	err = s.SetCredential(ctx, "scholarone", "mf", Credential{
		Username: "editor@example.org",
		Password: "hunter2",
	})
	require.NoError(t, err)

	cred, err := s.GetCredential(ctx, "scholarone", "mf")
	require.NoError(t, err)
	require.Equal(t, "editor@example.org", cred.Username)

	// upsert overwrites
	err = s.SetCredential(ctx, "scholarone", "mf", Credential{
		Username: "editor@example.org",
		Password: "rotated",
	})
	require.NoError(t, err)
	cred, err = s.GetCredential(ctx, "scholarone", "mf")
	require.NoError(t, err)
	require.Equal(t, "rotated", cred.Password)
}

func TestOAuthRoundtrip(t *testing.T) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "keychain-oauth",
		DbSchema: db.Schema,
	})
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewService(ctx, res.DB)

	entry := OAuthEntry{
		Namespace:  "google",
		ID:         "mailbox",
		RefreshUrl: "https://oauth2.googleapis.com/token",
		ClientID:   "client-id",
		Token: oauth.OpenIdToken{
			AccessToken:  "access",
			RefreshToken: "refresh",
			Scope:        "https://www.googleapis.com/auth/gmail.readonly",
			ExpiresIn:    3600,
		},
		ExpiresAt: time.Unix(1_750_000_000, 0),
	}
	require.NoError(t, s.SetOAuth(ctx, entry))

	got, err := s.GetOAuth(ctx, "google", "mailbox")
	require.NoError(t, err)
	require.Equal(t, entry.Token, got.Token)
	require.Equal(t, entry.ExpiresAt.Unix(), got.ExpiresAt.Unix())
}
