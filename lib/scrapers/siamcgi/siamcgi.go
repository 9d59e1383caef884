// Package siamcgi drives the SIAM editorial portal, a CGI application
// served from a single endpoint (cgi-bin/main.plex) that multiplexes every
// page on form_type.
package siamcgi

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"refassist-backend/lib/editorial"
	"refassist-backend/lib/htmlutil"
	"refassist-backend/lib/pagecache"
	"refassist-backend/lib/report"
	"refassist-backend/lib/restyutil"
	"refassist-backend/lib/retryutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/siamcgi")

var LoginFailed = fmt.Errorf("Failed to login to your account.")

const mainPlex = "/cgi-bin/main.plex"

// SIAM ids look like M172838
var manuscriptIdRegex = regexp.MustCompile(`^M\d{5,7}$`)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2-Jan-2006",
	"02-Jan-2006",
	"Jan 2, 2006",
}

// ParseDate normalizes a portal date to ISO (2006-01-02). Unparsable
// input yields "", a missing date is not an error.
func ParseDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

type Client struct {
	BaseUrl *url.URL
	Journal string
	Http    *resty.Client
	cache   *pagecache.Cache
}

type ClientOptions struct {
	// BaseUrl looks like https://sicon.siam.org
	BaseUrl string
	Journal string
	// Cache is optional, listing and detail pages are served from it
	// within their ttl.
	Cache *pagecache.Cache
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, instrumentOutput)

	return &Client{
		BaseUrl: baseUrl,
		Journal: opts.Journal,
		Http:    client,
		cache:   opts.Cache,
	}, nil
}

var instrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	instrumentOutput = output
}

func (c *Client) Login(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	var body []byte
	err := retryutil.Do(ctx, "siamcgi.login", func() error {
		res, err := c.Http.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"form_type": "login",
				"j_id":      c.Journal,
				"login":     username,
				"password":  password,
			}).
			Post(mainPlex)
		if err != nil {
			return err
		}
		body = res.Body()
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	if doc.Find("input[name=password]").Length() > 0 {
		span.SetStatus(codes.Error, LoginFailed.Error())
		return LoginFailed
	}
	return nil
}

func (c *Client) fetchDocument(ctx context.Context, query url.Values) (*goquery.Document, error) {
	endpoint := mainPlex + "?" + query.Encode()

	if c.cache != nil {
		cached, err := c.cache.Get(ctx, c.Journal, endpoint)
		if err == nil {
			return goquery.NewDocumentFromReader(bytes.NewBuffer(cached))
		}
		if err != pagecache.ErrPageNotFound {
			slog.WarnContext(ctx, "page cache read failed", "endpoint", endpoint, "err", err)
		}
	}

	var doc *goquery.Document
	err := retryutil.Do(ctx, "siamcgi.fetch", func() error {
		res, err := c.Http.R().
			SetContext(ctx).
			SetQueryParamsFromValues(query).
			Get(mainPlex)
		if err != nil {
			return err
		}
		body := res.Body()
		doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(body))
		if err != nil {
			return retryutil.Permanent(err)
		}
		if c.cache != nil {
			err := c.cache.Set(ctx, c.Journal, endpoint, body)
			if err != nil {
				slog.WarnContext(ctx, "page cache write failed", "endpoint", endpoint, "err", err)
			}
		}
		return nil
	})
	return doc, err
}

// FetchManuscripts loads the AE folder listing and the per-manuscript
// referee and document tables.
func (c *Client) FetchManuscripts(ctx context.Context) ([]editorial.Manuscript, error) {
	ctx, span := tracer.Start(ctx, "client:FetchManuscripts")
	defer span.End()

	query := url.Values{}
	query.Set("form_type", "display_folders")
	query.Set("j_id", c.Journal)
	doc, err := c.fetchDocument(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch folder listing")
		return nil, err
	}

	manuscripts := ParseFolderListing(ctx, doc)
	for i := range manuscripts {
		detailQuery := url.Values{}
		detailQuery.Set("form_type", "display_ms_details")
		detailQuery.Set("j_id", c.Journal)
		detailQuery.Set("ms_id", manuscripts[i].ID)

		detail, err := c.fetchDocument(ctx, detailQuery)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch manuscript details")
			return nil, fmt.Errorf("failed to fetch details for %s: %w", manuscripts[i].ID, err)
		}
		ParseManuscriptDetails(ctx, detail, &manuscripts[i])
		c.inspectReports(ctx, &manuscripts[i])
	}

	span.SetAttributes(attribute.Int("manuscripts", len(manuscripts)))
	return manuscripts, nil
}

// inspectReports downloads referee report PDFs and records their page
// counts. Best effort, a report we cannot read keeps Pages == 0.
func (c *Client) inspectReports(ctx context.Context, m *editorial.Manuscript) {
	for i := range m.Documents {
		d := &m.Documents[i]
		if d.Kind != editorial.DocRefereeReport || d.URL == "" {
			continue
		}

		contents, err := c.DownloadDocument(ctx, d.URL)
		if err != nil {
			slog.WarnContext(ctx, "failed to download referee report", "manuscript", m.ID, "file", d.Name, "err", err)
			continue
		}
		info, err := report.Inspect(contents)
		if err != nil {
			slog.WarnContext(ctx, "failed to inspect referee report", "manuscript", m.ID, "file", d.Name, "err", err)
			continue
		}
		d.Pages = info.Pages
	}
}

// ParseFolderListing pulls manuscript rows out of the folder page.
func ParseFolderListing(ctx context.Context, doc *goquery.Document) []editorial.Manuscript {
	ctx, span := tracer.Start(ctx, "ParseFolderListing")
	defer span.End()

	var manuscripts []editorial.Manuscript
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		htmlutil.EachTableRow(table, func(row htmlutil.TableRow) {
			id := row.Text("ms #")
			if id == "" {
				id = row.Text("manuscript")
			}
			if !manuscriptIdRegex.MatchString(id) {
				return
			}

			manuscripts = append(manuscripts, editorial.Manuscript{
				ID:             id,
				Title:          row.Text("title"),
				Status:         row.Text("status"),
				SubmissionDate: ParseDate(row.Text("submitted")),
				Authors:        row.Lines("authors"),
				Editors:        row.Lines("ae"),
			})
		})
	})

	span.SetAttributes(attribute.Int("rows", len(manuscripts)))
	return manuscripts
}

// ParseManuscriptDetails fills referees and documents from the detail page.
// The page holds two tables, one headed by "referee", one by "file".
func ParseManuscriptDetails(ctx context.Context, doc *goquery.Document, m *editorial.Manuscript) {
	ctx, span := tracer.Start(ctx, "ParseManuscriptDetails")
	defer span.End()

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		htmlutil.EachTableRow(table, func(row htmlutil.TableRow) {
			if name := row.Text("referee"); name != "" {
				raw := row.Text("status")
				m.Referees = append(m.Referees, editorial.Referee{
					Name:         name,
					Email:        row.Text("email"),
					Status:       editorial.NormalizeStatus(raw),
					RawStatus:    raw,
					InvitedDate:  ParseDate(row.Text("invited")),
					DueDate:      ParseDate(row.Text("due")),
					ResponseDate: ParseDate(row.Text("responded")),
				})
				return
			}

			if name := row.Text("file"); name != "" {
				kind := editorial.DocOther
				lowered := strings.ToLower(row.Text("type"))
				switch {
				case strings.Contains(lowered, "report"):
					kind = editorial.DocRefereeReport
				case strings.Contains(lowered, "manuscript") || strings.Contains(lowered, "article"):
					kind = editorial.DocManuscript
				case strings.Contains(lowered, "cover"):
					kind = editorial.DocCoverLetter
				}

				docUrl := ""
				if cell, ok := row["file"]; ok {
					for _, anchor := range htmlutil.GetAnchors(ctx, cell.Find("a")) {
						docUrl = anchor.Href
						break
					}
				}

				m.Documents = append(m.Documents, editorial.Document{
					Name: name,
					Kind: kind,
					URL:  docUrl,
				})
			}
		})
	})

	span.SetAttributes(
		attribute.Int("referees", len(m.Referees)),
		attribute.Int("documents", len(m.Documents)),
	)
}

// DownloadDocument fetches a document body (referee report PDFs mostly).
func (c *Client) DownloadDocument(ctx context.Context, href string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "client:DownloadDocument")
	defer span.End()

	var body []byte
	err := retryutil.Do(ctx, "siamcgi.download", func() error {
		res, err := c.Http.R().
			SetContext(ctx).
			Get(href)
		if err != nil {
			return err
		}
		body = res.Body()
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to download document")
		return nil, err
	}
	return body, nil
}
