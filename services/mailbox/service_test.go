package mailbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"refassist-backend/lib/oauth"
	"refassist-backend/lib/testutil"
	"refassist-backend/services/keychain"
	"refassist-backend/services/keychain/db"

	"github.com/stretchr/testify/require"
)

const rawReply = "From: Marco Ferrari <marco.ferrari@univ.it>\r\n" +
	"To: editor@example.org\r\n" +
	"Subject: Re: Invitation to review M172838\r\n" +
	"Date: Mon, 02 Jun 2025 09:30:00 +0200\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Dear Editor,\r\n\r\nI have accepted your invitation to review manuscript M172838.\r\n"

const rawVerification = "From: noreply@scholarone.com\r\n" +
	"To: editor@example.org\r\n" +
	"Subject: Your verification code\r\n" +
	"Date: Mon, 02 Jun 2025 10:00:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Your one-time verification code is 482913. It expires in 10 minutes.\r\n"

func encodeRaw(raw string) string {
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func fakeGmail(t *testing.T, messages map[string]string, queries *[]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-access-token", r.Header.Get("Authorization"))

		if strings.HasSuffix(r.URL.Path, "/users/me/messages") {
			if queries != nil {
				*queries = append(*queries, r.URL.Query().Get("q"))
			}
			var refs []map[string]string
			for id := range messages {
				refs = append(refs, map[string]string{"id": id, "threadId": id})
			}
			json.NewEncoder(w).Encode(map[string]any{"messages": refs})
			return
		}

		parts := strings.Split(r.URL.Path, "/")
		id := parts[len(parts)-1]
		raw, ok := messages[id]
		if !ok {
			w.WriteHeader(404)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": id, "raw": encodeRaw(raw)})
	}))
}

func setup(t *testing.T, messages map[string]string) (*Service, func()) {
	return setupWithQueries(t, messages, nil)
}

func setupWithQueries(t *testing.T, messages map[string]string, queries *[]string) (*Service, func()) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "mailbox",
		DbSchema: db.Schema,
	})

	ctx, cancel := context.WithCancel(context.Background())

	kc := keychain.NewService(ctx, res.DB)
	err := kc.SetOAuth(ctx, keychain.OAuthEntry{
		Namespace: "google",
		ID:        "mailbox",
		Token: oauth.OpenIdToken{
			AccessToken: "test-access-token",
		},
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	server := fakeGmail(t, messages, queries)

	s := NewService(kc)
	s.SetBaseUrl(server.URL)

	return s, func() {
		server.Close()
		cancel()
		cleanup()
	}
}

func TestSearch(t *testing.T) {
	s, cleanup := setup(t, map[string]string{"msg1": rawReply})
	defer cleanup()

	messages, err := s.Search(context.Background(), "M172838", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	msg := messages[0]
	require.Equal(t, "Re: Invitation to review M172838", msg.Subject)
	require.Equal(t, "Marco Ferrari <marco.ferrari@univ.it>", msg.From)
	require.Equal(t, "editor@example.org", msg.To)
	require.Contains(t, msg.Body, "accepted your invitation")
	require.Equal(t, 2025, msg.Date.Year())
}

func TestSearchReplies(t *testing.T) {
	var queries []string
	s, cleanup := setupWithQueries(t, map[string]string{"msg1": rawReply}, &queries)
	defer cleanup()

	messages, err := s.SearchReplies(context.Background(), "sicon", "M172838", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	require.Len(t, queries, 1)
	require.Equal(t, "M172838 OR sicon OR review", queries[0])

	// no manuscript id still yields a usable query
	_, err = s.SearchReplies(context.Background(), "sicon", "", 10)
	require.NoError(t, err)
	require.Equal(t, "sicon OR review", queries[1])
}

func TestFetchVerificationCode(t *testing.T) {
	s, cleanup := setup(t, map[string]string{"msg1": rawVerification})
	defer cleanup()

	code, err := s.FetchVerificationCode(
		context.Background(),
		"scholarone.com",
		time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	require.Equal(t, "482913", code)
}

func TestFetchVerificationCodeIgnoresOldMail(t *testing.T) {
	s, cleanup := setup(t, map[string]string{"msg1": rawVerification})
	defer cleanup()

	_, err := s.FetchVerificationCode(
		context.Background(),
		"scholarone.com",
		time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC),
	)
	require.ErrorIs(t, err, ErrNoVerificationCode)
}
