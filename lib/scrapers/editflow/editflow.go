// Package editflow drives an EditFlow (ef.msp.org) site.
package editflow

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"time"

	"refassist-backend/lib/editorial"
	"refassist-backend/lib/htmlutil"
	"refassist-backend/lib/restyutil"
	"refassist-backend/lib/retryutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/editflow")

var LoginFailed = fmt.Errorf("Failed to login to your account.")

// EditFlow ids look like 2025-03-041
var manuscriptIdRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{3}$`)

type Client struct {
	BaseUrl *url.URL
	Journal string
	Http    *resty.Client
}

type ClientOptions struct {
	// BaseUrl looks like https://ef.msp.org/<journal>
	BaseUrl string
	Journal string
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
	}, nil
}

var instrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	instrumentOutput = output
}

func (c *Client) fetchDocument(ctx context.Context, endpoint string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := retryutil.Do(ctx, "editflow.fetch", func() error {
		res, err := c.Http.R().
			SetContext(ctx).
			Get(endpoint)
		if err != nil {
			return err
		}
		doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
		if err != nil {
			return retryutil.Permanent(err)
		}
		return nil
	})
	return doc, err
}

func (c *Client) Login(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	doc, err := c.fetchDocument(ctx, "/login")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}

	token := doc.Find("input[name=csrf_token]").AttrOr("value", "")
	if token == "" {
		span.SetStatus(codes.Error, "failed to find csrf token")
		return fmt.Errorf("could not find csrf token on login page")
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"csrf_token": token,
			"username":   username,
			"password":   password,
		}).
		Post("/login")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return err
	}

	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return err
	}
	if doc.Find("input[name=password]").Length() > 0 {
		span.SetStatus(codes.Error, LoginFailed.Error())
		return LoginFailed
	}
	return nil
}

func (c *Client) FetchManuscripts(ctx context.Context) ([]editorial.Manuscript, error) {
	ctx, span := tracer.Start(ctx, "client:FetchManuscripts")
	defer span.End()

	doc, err := c.fetchDocument(ctx, "/submissions")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch submissions listing")
		return nil, err
	}

	manuscripts := ParseSubmissionList(ctx, doc)
	span.SetAttributes(attribute.Int("manuscripts", len(manuscripts)))
	return manuscripts, nil
}

// ParseSubmissionList extracts manuscripts from the submissions table.
// EditFlow keeps referees in a single cell per row, one per line, with the
// status trailing in parentheses: "Ferrari, Marco (accepted 2025-07-12)".
func ParseSubmissionList(ctx context.Context, doc *goquery.Document) []editorial.Manuscript {
	ctx, span := tracer.Start(ctx, "ParseSubmissionList")
	defer span.End()

	var manuscripts []editorial.Manuscript
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		htmlutil.EachTableRow(table, func(row htmlutil.TableRow) {
			id := row.Text("id")
			if !manuscriptIdRegex.MatchString(id) {
				return
			}

			m := editorial.Manuscript{
				ID:             id,
				Title:          row.Text("title"),
				Status:         row.Text("status"),
				SubmissionDate: row.Text("received"),
				Authors:        row.Lines("authors"),
			}
			for _, line := range row.Lines("referees") {
				m.Referees = append(m.Referees, parseRefereeLine(line))
			}
			manuscripts = append(manuscripts, m)
		})
	})

	span.SetAttributes(attribute.Int("rows", len(manuscripts)))
	return manuscripts
}

var refereeLineRegex = regexp.MustCompile(`^(.*?)\s*\(([^)]*)\)\s*$`)
var isoDateRegex = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

func parseRefereeLine(line string) editorial.Referee {
	groups := refereeLineRegex.FindStringSubmatch(line)
	if groups == nil {
		return editorial.Referee{Name: line, Status: editorial.StatusUnknown}
	}

	name := groups[1]
	annotation := groups[2]
	referee := editorial.Referee{
		Name:      name,
		RawStatus: annotation,
		Status:    editorial.NormalizeStatus(annotation),
	}
	if date := isoDateRegex.FindString(annotation); date != "" {
		referee.ResponseDate = date
	}
	return referee
}
