// Package keychain stores portal credentials and OAuth tokens in sqlite
// and keeps refreshable tokens alive. Credentials live here or in the
// environment, never as source defaults.
package keychain

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"refassist-backend/lib/oauth"
	"refassist-backend/lib/restyutil"

	"github.com/go-resty/resty/v2"

	_ "modernc.org/sqlite"
)

type Service struct {
	db     *sql.DB
	client *resty.Client
}

type Credential struct {
	Username string
	Password string
}

var ErrNotFound = fmt.Errorf("keychain: entry not found")

func NewService(ctx context.Context, database *sql.DB) *Service {
	client := resty.New()
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, nil, restyInstrumentOutput)

	s := &Service{
		db:     database,
		client: client,
	}

	go s.refreshOAuthDaemon(ctx)

	return s
}

var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	restyInstrumentOutput = output
}

func (s *Service) SetCredential(ctx context.Context, namespace, id string, cred Credential) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO credential (namespace, id, username, password) VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, id) DO UPDATE SET username = excluded.username, password = excluded.password`,
		namespace, id, cred.Username, cred.Password,
	)
	return err
}

func (s *Service) GetCredential(ctx context.Context, namespace, id string) (Credential, error) {
	var cred Credential
	err := s.db.QueryRowContext(
		ctx,
		`SELECT username, password FROM credential WHERE namespace = ? AND id = ?`,
		namespace, id,
	).Scan(&cred.Username, &cred.Password)
	if err == sql.ErrNoRows {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, err
	}
	return cred, nil
}

type OAuthEntry struct {
	Namespace  string
	ID         string
	RefreshUrl string
	ClientID   string
	Token      oauth.OpenIdToken
	ExpiresAt  time.Time
}

func (s *Service) SetOAuth(ctx context.Context, entry OAuthEntry) error {
	tokenJson, err := json.Marshal(entry.Token)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO oauth (namespace, id, refresh_url, client_id, token, expires_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (namespace, id) DO UPDATE SET
		   refresh_url = excluded.refresh_url,
		   client_id = excluded.client_id,
		   token = excluded.token,
		   expires_at = excluded.expires_at`,
		entry.Namespace, entry.ID, entry.RefreshUrl, entry.ClientID, string(tokenJson), entry.ExpiresAt.Unix(),
	)
	return err
}

func (s *Service) GetOAuth(ctx context.Context, namespace, id string) (OAuthEntry, error) {
	entry := OAuthEntry{Namespace: namespace, ID: id}
	var tokenJson string
	var expiresAt int64
	err := s.db.QueryRowContext(
		ctx,
		`SELECT refresh_url, client_id, token, expires_at FROM oauth WHERE namespace = ? AND id = ?`,
		namespace, id,
	).Scan(&entry.RefreshUrl, &entry.ClientID, &tokenJson, &expiresAt)
	if err == sql.ErrNoRows {
		return OAuthEntry{}, ErrNotFound
	}
	if err != nil {
		return OAuthEntry{}, err
	}
	err = json.Unmarshal([]byte(tokenJson), &entry.Token)
	if err != nil {
		return OAuthEntry{}, err
	}
	entry.ExpiresAt = time.Unix(expiresAt, 0)
	return entry, nil
}

func (s *Service) refreshOAuthKey(ctx context.Context, entry OAuthEntry) error {
	if entry.Token.RefreshToken == "" {
		return fmt.Errorf("token is not refreshable")
	}

	form := url.Values{}
	form.Add("grant_type", "refresh_token")
	form.Add("client_id", entry.ClientID)
	form.Add("scope", entry.Token.Scope)
	form.Add("refresh_token", entry.Token.RefreshToken)

	res, err := s.client.R().
		SetContext(ctx).
		SetBody(form.Encode()).
		SetHeader("content-type", "application/x-www-form-urlencoded").
		Post(entry.RefreshUrl)
	if err != nil {
		return err
	}

	var newToken oauth.OpenIdToken
	err = json.Unmarshal(res.Body(), &newToken)
	if err != nil {
		return err
	}
	if newToken.AccessToken == "" {
		return fmt.Errorf("refresh endpoint returned no access token")
	}

	newToken.RefreshToken = entry.Token.RefreshToken
	entry.Token = newToken
	entry.ExpiresAt = time.Now().Add(time.Duration(newToken.ExpiresIn) * time.Second)

	slog.DebugContext(ctx, "refreshed oauth token", "namespace", entry.Namespace, "id", entry.ID)

	return s.SetOAuth(ctx, entry)
}

func (s *Service) refreshAllOAuthKeys(ctx context.Context) error {
	cutoff := time.Now().Add(5 * time.Minute)

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT namespace, id FROM oauth WHERE expires_at <= ?`,
		cutoff.Unix(),
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	type key struct{ namespace, id string }
	var almostExpired []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.namespace, &k.id); err != nil {
			return err
		}
		almostExpired = append(almostExpired, k)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range almostExpired {
		entry, err := s.GetOAuth(ctx, k.namespace, k.id)
		if err != nil {
			slog.WarnContext(ctx, "failed to load oauth entry for refresh", "namespace", k.namespace, "id", k.id, "err", err)
			continue
		}
		err = s.refreshOAuthKey(ctx, entry)
		if err != nil {
			slog.WarnContext(ctx, "failed to refresh oauth token", "namespace", k.namespace, "id", k.id, "err", err)
		}
	}
	return nil
}

func (s *Service) refreshOAuthDaemon(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := s.refreshAllOAuthKeys(ctx)
			if err != nil {
				slog.WarnContext(ctx, "oauth refresh sweep failed", "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
