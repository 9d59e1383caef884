package scholarone

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"refassist-backend/lib/editorial"
	"refassist-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ScholarOne ids look like MF-2025-0123 or MOR-2024-1410.R1
var manuscriptIdRegex = regexp.MustCompile(`^[A-Z]{2,6}-\d{4}-\d{3,5}(\.R\d+)?$`)

var statusRunRegex = regexp.MustCompile(
	`Report Submitted|Report Received|Accepted|Agreed|Declined|Invited|Overdue`,
)

// SplitStatusRun splits a concatenated status cell like
// "AcceptedAcceptedDeclined" into its individual statuses. Listing pages
// render one status per referee with no separator between them.
func SplitStatusRun(cell string) []string {
	return statusRunRegex.FindAllString(cell, -1)
}

var dateRegex = regexp.MustCompile(`\d{1,2}[-/][A-Za-z]{3}[-/]\d{4}|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}`)

// ParseManuscriptList extracts manuscripts from an AE center listing page.
// Columns are located by header text, never by position. Referees, their
// statuses and their dates arrive as parallel <br>-separated cells. The
// second return maps referee names to their bio popup hrefs when the
// listing links them.
func ParseManuscriptList(ctx context.Context, doc *goquery.Document) ([]editorial.Manuscript, map[string]string) {
	ctx, span := tracer.Start(ctx, "ParseManuscriptList")
	defer span.End()

	bioLinks := map[string]string{}
	var manuscripts []editorial.Manuscript
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		htmlutil.EachTableRow(table, func(row htmlutil.TableRow) {
			id := row.Text("manuscript id")
			if !manuscriptIdRegex.MatchString(id) {
				return
			}

			m := editorial.Manuscript{
				ID:             id,
				Title:          row.Text("title"),
				Status:         row.Text("status"),
				SubmissionDate: row.Text("submitted"),
			}
			if authors := row.Lines("authors"); len(authors) > 0 {
				m.Authors = authors
			}
			if editors := row.Lines("editor"); len(editors) > 0 {
				m.Editors = editors
			}

			names := row.Lines("referees")
			statuses := row.Lines("referee status")
			if len(statuses) == 1 && len(names) > 1 {
				statuses = SplitStatusRun(statuses[0])
			}
			dates := row.Lines("referee dates")

			if cell, ok := row["referees"]; ok {
				for _, anchor := range htmlutil.GetAnchors(ctx, cell.Find("a")) {
					if anchor.Name != "" && anchor.Href != "" {
						bioLinks[anchor.Name] = anchor.Href
					}
				}
			}

			for i, name := range names {
				referee := editorial.Referee{Name: name}
				if i < len(statuses) {
					referee.RawStatus = statuses[i]
					referee.Status = editorial.NormalizeStatus(statuses[i])
				} else {
					referee.Status = editorial.StatusUnknown
				}
				if i < len(dates) {
					found := dateRegex.FindAllString(dates[i], -1)
					if len(found) > 0 {
						referee.InvitedDate = found[0]
					}
					if len(found) > 1 {
						referee.DueDate = found[1]
					}
				}
				m.Referees = append(m.Referees, referee)
			}

			manuscripts = append(manuscripts, m)
		})
	})

	span.SetAttributes(attribute.Int("manuscripts", len(manuscripts)))
	return manuscripts, bioLinks
}

// FetchManuscripts navigates to the associate editor center and parses the
// manuscript listing.
func (c *Client) FetchManuscripts(ctx context.Context) ([]editorial.Manuscript, error) {
	ctx, span := tracer.Start(ctx, "client:FetchManuscripts")
	defer span.End()

	doc, err := c.fetchDocument(ctx, "/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch dashboard")
		return nil, err
	}

	listingHref := ""
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find("a")) {
		name := strings.ToLower(anchor.Name)
		if strings.Contains(name, "associate editor") || strings.Contains(name, "editor cent") {
			listingHref = anchor.Href
			break
		}
	}
	if listingHref == "" {
		span.SetStatus(codes.Error, "failed to find editor center link")
		return nil, fmt.Errorf("could not find the editor center link, is the session logged in?")
	}

	doc, err = c.fetchDocument(ctx, listingHref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch manuscript listing")
		return nil, err
	}

	manuscripts, bioLinks := ParseManuscriptList(ctx, doc)
	if len(bioLinks) > 0 {
		c.fillRefereeEmails(ctx, manuscripts, bioLinks)
	}
	return manuscripts, nil
}

// fillRefereeEmails resolves referee addresses through their bio popups.
// Best effort: a referee whose bio cannot be fetched keeps an empty email
// for the mailbox correlator to fill in later.
func (c *Client) fillRefereeEmails(ctx context.Context, manuscripts []editorial.Manuscript, bioLinks map[string]string) {
	resolved := map[string]string{}
	for mi := range manuscripts {
		for ri := range manuscripts[mi].Referees {
			r := &manuscripts[mi].Referees[ri]
			if r.Email != "" {
				continue
			}
			href, ok := bioLinks[r.Name]
			if !ok {
				continue
			}

			email, cached := resolved[r.Name]
			if !cached {
				var err error
				email, err = c.FetchRefereeEmail(ctx, href)
				if err != nil {
					slog.WarnContext(ctx, "failed to fetch referee bio", "referee", r.Name, "err", err)
					continue
				}
				resolved[r.Name] = email
			}
			r.Email = email
		}
	}
}

// FetchRefereeEmail opens a referee's bio popup page and pulls the mailto
// address, empty when the bio page carries none.
func (c *Client) FetchRefereeEmail(ctx context.Context, bioHref string) (string, error) {
	ctx, span := tracer.Start(ctx, "client:FetchRefereeEmail")
	defer span.End()

	doc, err := c.fetchDocument(ctx, bioHref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch referee bio")
		return "", err
	}

	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find("a[href^='mailto:']")) {
		return strings.TrimPrefix(anchor.Href, "mailto:"), nil
	}
	return "", nil
}
