package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"refassist-backend/lib/editorial"
	"refassist-backend/lib/refstore"
	"refassist-backend/lib/retryutil"
	"refassist-backend/services/correlator"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("refassist.services.harvest")

type Config struct {
	Journals []JournalConfig `json:"journals"`
}

type Service struct {
	registry *Registry
	store    refstore.Store
	deps     Deps
	config   Config
}

func NewService(registry *Registry, store refstore.Store, deps Deps, config Config) *Service {
	return &Service{
		registry: registry,
		store:    store,
		deps:     deps,
		config:   config,
	}
}

func (s *Service) JournalConfig(code string) (JournalConfig, error) {
	for _, j := range s.config.Journals {
		if j.Code == code {
			return j, nil
		}
	}
	return JournalConfig{}, fmt.Errorf("journal %q is not configured", code)
}

type Result struct {
	RunId       string
	Manuscripts []editorial.Manuscript
}

// Harvest scrapes one journal end to end and persists a snapshot. A
// baseline shortfall is an error, never silently padded.
func (s *Service) Harvest(ctx context.Context, code string) (Result, error) {
	ctx, span := tracer.Start(ctx, "Harvest")
	defer span.End()
	span.SetAttributes(attribute.String("journal", code))

	fail := func(message string, err error) (Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, message)
		return Result{}, err
	}

	cfg, err := s.JournalConfig(code)
	if err != nil {
		return fail("unknown journal", err)
	}

	portal, err := s.registry.New(ctx, cfg, s.deps)
	if err != nil {
		return fail("failed to construct portal", err)
	}

	err = retryutil.Do(ctx, fmt.Sprintf("%s:login", code), func() error {
		return portal.Login(ctx)
	})
	if err != nil {
		return fail("login failed", err)
	}
	slog.InfoContext(ctx, "logged in", "journal", code)

	var manuscripts []editorial.Manuscript
	err = retryutil.Do(ctx, fmt.Sprintf("%s:fetch", code), func() error {
		var err error
		manuscripts, err = portal.FetchManuscripts(ctx)
		return err
	})
	if err != nil {
		return fail("fetch failed", err)
	}
	slog.InfoContext(ctx, "fetched manuscripts", "journal", code, "count", len(manuscripts))

	s.enrichRefereeEmails(ctx, cfg, manuscripts)

	err = cfg.Baseline.Validate(manuscripts)
	if err != nil {
		var berr *editorial.BaselineError
		if errors.As(err, &berr) {
			slog.ErrorContext(
				ctx, "baseline check failed",
				"journal", code,
				"field", berr.Field,
				"expected", berr.Expected,
				"got", berr.Got,
			)
		}
		return fail("baseline check failed", err)
	}

	runId, err := s.store.Push(ctx, code, time.Now(), manuscripts)
	if err != nil {
		return fail("failed to persist run", err)
	}
	span.SetAttributes(attribute.String("run_id", runId))

	return Result{RunId: runId, Manuscripts: manuscripts}, nil
}

// enrichRefereeEmails fills in missing referee addresses from mailbox
// correlation. Best effort: a referee we cannot correlate keeps an empty
// email, which is more honest than a guessed one.
func (s *Service) enrichRefereeEmails(ctx context.Context, cfg JournalConfig, manuscripts []editorial.Manuscript) {
	if s.deps.Mailbox == nil {
		return
	}
	ctx, span := tracer.Start(ctx, "enrichRefereeEmails")
	defer span.End()

	for mi := range manuscripts {
		m := &manuscripts[mi]

		needsEmail := false
		for _, r := range m.Referees {
			if r.Email == "" {
				needsEmail = true
				break
			}
		}
		if !needsEmail {
			continue
		}

		emails, err := s.deps.Mailbox.SearchReplies(ctx, cfg.Code, m.ID, 25)
		if err != nil {
			span.RecordError(err)
			slog.WarnContext(ctx, "mailbox search failed", "manuscript", m.ID, "err", err)
			continue
		}
		if len(emails) == 0 {
			continue
		}

		for ri := range m.Referees {
			r := &m.Referees[ri]
			if r.Email != "" {
				continue
			}

			acceptance, contact := correlator.MatchEmails(correlator.Request{
				RefereeName:  r.Name,
				ManuscriptID: m.ID,
				JournalCode:  cfg.Code,
				Emails:       emails,
			})
			switch {
			case acceptance != nil && acceptance.Address != "":
				r.Email = acceptance.Address
			case contact != nil && contact.Address != "":
				r.Email = contact.Address
			}
			if r.Email != "" {
				slog.DebugContext(
					ctx, "correlated referee email",
					"manuscript", m.ID,
					"referee", r.Name,
					"email", r.Email,
				)
			}
		}
	}
}
