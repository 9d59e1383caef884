package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"refassist-backend/lib/configutil"
	"refassist-backend/lib/editorial"
	"refassist-backend/lib/pagecache"
	"refassist-backend/lib/retryutil"
	"refassist-backend/lib/scrapers/editflow"
	"refassist-backend/lib/scrapers/scholarone"
	"refassist-backend/lib/scrapers/siamcgi"
	"refassist-backend/services/keychain"
	"refassist-backend/services/mailbox"
)

// credential resolves a login for a journal: the keychain first, then the
// environment. Env names are derived from the journal code plus a few
// legacy spellings that predate the keychain.
func (d Deps) credential(ctx context.Context, namespace, code string, legacy ...string) (keychain.Credential, error) {
	if d.Keychain != nil {
		cred, err := d.Keychain.GetCredential(ctx, namespace, code)
		if err == nil {
			return cred, nil
		}
		if !errors.Is(err, keychain.ErrNotFound) {
			return keychain.Credential{}, err
		}
	}

	prefix := strings.ToUpper(code)
	userNames := []string{prefix + "_USER", prefix + "_USERNAME"}
	passNames := []string{prefix + "_PASS", prefix + "_PASSWORD"}
	for _, l := range legacy {
		lp := strings.ToUpper(l)
		userNames = append(userNames, lp+"_USER", lp+"_USERNAME", lp+"_EMAIL")
		passNames = append(passNames, lp+"_PASS", lp+"_PASSWORD")
	}

	cred := keychain.Credential{
		Username: configutil.Env(userNames...),
		Password: configutil.Env(passNames...),
	}
	if cred.Username == "" || cred.Password == "" {
		return keychain.Credential{}, fmt.Errorf("no credentials for %s/%s in keychain or environment", namespace, code)
	}
	return cred, nil
}

type scholarOnePortal struct {
	client *scholarone.Client
	cfg    JournalConfig
	deps   Deps
}

func newScholarOnePortal(ctx context.Context, cfg JournalConfig, deps Deps) (Portal, error) {
	client, err := scholarone.NewClient(ctx, scholarone.ClientOptions{
		BaseUrl: cfg.BaseUrl,
		Journal: cfg.Code,
	})
	if err != nil {
		return nil, err
	}
	return &scholarOnePortal{client: client, cfg: cfg, deps: deps}, nil
}

func (p *scholarOnePortal) Journal() string { return p.cfg.Code }

func (p *scholarOnePortal) Login(ctx context.Context) error {
	if p.cfg.UseOrcid {
		cred, err := p.deps.credential(ctx, "orcid", p.cfg.Code, "orcid")
		if err != nil {
			return retryutil.Permanent(err)
		}
		err = p.client.LoginOrcid(ctx, cred.Username, cred.Password)
		if errors.Is(err, scholarone.LoginFailed) {
			return retryutil.Permanent(err)
		}
		return err
	}

	cred, err := p.deps.credential(ctx, "scholarone", p.cfg.Code)
	if err != nil {
		return retryutil.Permanent(err)
	}

	loginStart := time.Now()
	err = p.client.LoginUsernamePassword(ctx, cred.Username, cred.Password)
	if errors.Is(err, scholarone.VerificationRequired) {
		return p.completeVerification(ctx, loginStart)
	}
	// a rejected password will not improve on a re-post
	if errors.Is(err, scholarone.LoginFailed) {
		return retryutil.Permanent(err)
	}
	return err
}

func (p *scholarOnePortal) completeVerification(ctx context.Context, loginStart time.Time) error {
	if p.deps.Mailbox == nil {
		return fmt.Errorf("portal asked for a verification code but no mailbox is configured: %w", scholarone.VerificationRequired)
	}

	domain := p.cfg.SenderDomain
	if domain == "" {
		domain = "manuscriptcentral.com"
	}

	// the verification mail can take a moment to land
	var code string
	for attempt := 0; attempt < 6; attempt++ {
		var err error
		code, err = p.deps.Mailbox.FetchVerificationCode(ctx, domain, loginStart)
		if err == nil {
			break
		}
		if !errors.Is(err, mailbox.ErrNoVerificationCode) {
			return err
		}
		select {
		case <-time.After(10 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if code == "" {
		return fmt.Errorf("verification code never arrived from %s", domain)
	}

	return p.client.SubmitVerificationCode(ctx, code)
}

func (p *scholarOnePortal) FetchManuscripts(ctx context.Context) ([]editorial.Manuscript, error) {
	return p.client.FetchManuscripts(ctx)
}

type siamCgiPortal struct {
	client *siamcgi.Client
	cfg    JournalConfig
	deps   Deps
}

func newSiamCgiPortal(ctx context.Context, cfg JournalConfig, deps Deps) (Portal, error) {
	var cache *pagecache.Cache
	if cfg.PageCacheDir != "" {
		var err error
		cache, err = pagecache.Open(pagecache.Options{
			Path:    cfg.PageCacheDir,
			BaseUrl: cfg.BaseUrl,
			Ttl:     time.Hour,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open page cache: %w", err)
		}
	}

	client, err := siamcgi.NewClient(ctx, siamcgi.ClientOptions{
		BaseUrl: cfg.BaseUrl,
		Journal: cfg.Code,
		Cache:   cache,
	})
	if err != nil {
		return nil, err
	}
	return &siamCgiPortal{client: client, cfg: cfg, deps: deps}, nil
}

func (p *siamCgiPortal) Journal() string { return p.cfg.Code }

func (p *siamCgiPortal) Login(ctx context.Context) error {
	cred, err := p.deps.credential(ctx, "siamcgi", p.cfg.Code, "naco")
	if err != nil {
		return retryutil.Permanent(err)
	}
	err = p.client.Login(ctx, cred.Username, cred.Password)
	if errors.Is(err, siamcgi.LoginFailed) {
		return retryutil.Permanent(err)
	}
	return err
}

func (p *siamCgiPortal) FetchManuscripts(ctx context.Context) ([]editorial.Manuscript, error) {
	return p.client.FetchManuscripts(ctx)
}

type editFlowPortal struct {
	client *editflow.Client
	cfg    JournalConfig
	deps   Deps
}

func newEditFlowPortal(ctx context.Context, cfg JournalConfig, deps Deps) (Portal, error) {
	client, err := editflow.NewClient(ctx, editflow.ClientOptions{
		BaseUrl: cfg.BaseUrl,
		Journal: cfg.Code,
	})
	if err != nil {
		return nil, err
	}
	return &editFlowPortal{client: client, cfg: cfg, deps: deps}, nil
}

func (p *editFlowPortal) Journal() string { return p.cfg.Code }

func (p *editFlowPortal) Login(ctx context.Context) error {
	cred, err := p.deps.credential(ctx, "editflow", p.cfg.Code)
	if err != nil {
		return retryutil.Permanent(err)
	}
	err = p.client.Login(ctx, cred.Username, cred.Password)
	if errors.Is(err, editflow.LoginFailed) {
		return retryutil.Permanent(err)
	}
	return err
}

func (p *editFlowPortal) FetchManuscripts(ctx context.Context) ([]editorial.Manuscript, error) {
	return p.client.FetchManuscripts(ctx)
}
