// Package harvest orchestrates a scrape: log into a portal, pull the
// manuscript tree, enrich referee emails from the mailbox, validate counts
// and persist a snapshot. Portals are looked up through a registry so
// adding a journal means registering a constructor, not editing a dispatch
// chain.
package harvest

import (
	"context"
	"fmt"

	"refassist-backend/lib/editorial"
	"refassist-backend/services/keychain"
	"refassist-backend/services/mailbox"
)

// Portal is the minimal surface a journal scraper exposes to the
// orchestration layer.
type Portal interface {
	Journal() string
	Login(ctx context.Context) error
	FetchManuscripts(ctx context.Context) ([]editorial.Manuscript, error)
}

type JournalConfig struct {
	// Code is the short journal code, e.g. "mf", "sicon", "agt".
	Code string `json:"code"`
	// Kind names the portal software: "scholarone", "siamcgi" or "editflow".
	Kind    string `json:"kind"`
	BaseUrl string `json:"base_url"`
	// SenderDomain is where the portal's verification mails come from.
	SenderDomain string `json:"sender_domain,omitempty"`
	// PageCacheDir enables on-disk caching of portal pages when set.
	PageCacheDir string `json:"page_cache_dir,omitempty"`
	// UseOrcid routes ScholarOne logins through ORCID SSO.
	UseOrcid bool               `json:"use_orcid,omitempty"`
	Baseline editorial.Baseline `json:"baseline,omitempty"`
}

type Deps struct {
	Keychain *keychain.Service
	// Mailbox may be nil, in which case 2FA logins fail and referee email
	// enrichment is skipped.
	Mailbox *mailbox.Service
}

type Constructor func(ctx context.Context, cfg JournalConfig, deps Deps) (Portal, error)

type Registry struct {
	constructors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{constructors: map[string]Constructor{}}
}

func (r *Registry) Register(kind string, c Constructor) {
	r.constructors[kind] = c
}

func (r *Registry) New(ctx context.Context, cfg JournalConfig, deps Deps) (Portal, error) {
	c, ok := r.constructors[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("no portal registered for kind %q", cfg.Kind)
	}
	return c(ctx, cfg, deps)
}

// DefaultRegistry returns a registry with every built-in portal kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("scholarone", newScholarOnePortal)
	r.Register("siamcgi", newSiamCgiPortal)
	r.Register("editflow", newEditFlowPortal)
	return r
}
