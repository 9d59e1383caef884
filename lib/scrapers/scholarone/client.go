// Package scholarone drives a ScholarOne Manuscripts site
// (mc.manuscriptcentral.com/<journal>) over HTTP.
package scholarone

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"refassist-backend/lib/htmlutil"
	"refassist-backend/lib/restyutil"
	"refassist-backend/lib/retryutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/scholarone")

var LoginFailed = fmt.Errorf("Failed to login to your account.")

// VerificationRequired is returned by login when the site demands an
// email-delivered verification code. Fetch the code from the mailbox and
// call SubmitVerificationCode.
var VerificationRequired = fmt.Errorf("a verification code has been emailed to you")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Client struct {
	BaseUrl *url.URL
	Journal string
	Http    *resty.Client
}

type ClientOptions struct {
	// BaseUrl looks like https://mc.manuscriptcentral.com/mf
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
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
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
	err := retryutil.Do(ctx, "scholarone.fetch", func() error {
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

// hiddenInputs collects hidden form fields so they can be echoed back on
// submit, ScholarOne rotates CSRF tokens across them.
func hiddenInputs(form *goquery.Selection) map[string]string {
	fields := map[string]string{}
	form.Find("input[type=hidden]").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		if name == "" {
			return
		}
		fields[name] = input.AttrOr("value", "")
	})
	return fields
}

func (c *Client) LoginUsernamePassword(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "client:LoginUsernamePassword")
	defer span.End()

	doc, err := c.fetchDocument(ctx, "/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}

	form := doc.Find("form[name=loginForm]")
	if form.Length() == 0 {
		form = doc.Find("form").First()
	}
	if form.Length() == 0 {
		span.SetStatus(codes.Error, "failed to find login form")
		return fmt.Errorf("could not find login form")
	}

	fields := hiddenInputs(form)
	fields["USERID"] = username
	fields["PASSWORD"] = password

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(form.AttrOr("action", "/"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return err
	}

	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse post-login html")
		return err
	}

	if doc.Find("input[name=VERIFICATION_CODE]").Length() > 0 {
		span.AddEvent("verification code requested")
		return VerificationRequired
	}
	if doc.Find("form[name=loginForm]").Length() > 0 {
		span.SetStatus(codes.Error, LoginFailed.Error())
		return LoginFailed
	}
	return nil
}

// SubmitVerificationCode completes a login that returned
// VerificationRequired.
func (c *Client) SubmitVerificationCode(ctx context.Context, code string) error {
	ctx, span := tracer.Start(ctx, "client:SubmitVerificationCode")
	defer span.End()

	doc, err := c.fetchDocument(ctx, "/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch verification page")
		return err
	}

	form := doc.Find("input[name=VERIFICATION_CODE]").Closest("form")
	if form.Length() == 0 {
		span.SetStatus(codes.Error, "failed to find verification form")
		return fmt.Errorf("could not find verification form")
	}

	fields := hiddenInputs(form)
	fields["VERIFICATION_CODE"] = code

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(form.AttrOr("action", "/"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit verification code")
		return err
	}

	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return err
	}
	if doc.Find("input[name=VERIFICATION_CODE]").Length() > 0 {
		span.SetStatus(codes.Error, "verification code rejected")
		return LoginFailed
	}
	return nil
}

// LoginOrcid follows the ORCID SSO redirect chain: the portal hands off to
// orcid.org, credentials are posted there, and the OAuth code redirects
// back into the portal session.
func (c *Client) LoginOrcid(ctx context.Context, email, password string) error {
	ctx, span := tracer.Start(ctx, "client:LoginOrcid")
	defer span.End()

	doc, err := c.fetchDocument(ctx, "/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}

	orcidHref := ""
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find("a[href*='orcid.org/oauth']")) {
		orcidHref = anchor.Href
		break
	}
	if orcidHref == "" {
		span.SetStatus(codes.Error, "failed to find orcid sso link")
		return fmt.Errorf("could not find orcid sso link")
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get(orcidHref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to follow orcid sso link")
		return err
	}
	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return err
	}

	form := doc.Find("form#signin-form")
	if form.Length() == 0 {
		form = doc.Find("form").First()
	}
	fields := hiddenInputs(form)
	fields["username"] = email
	fields["password"] = password

	signinUrl := form.AttrOr("action", "https://orcid.org/signin/auth.json")
	res, err = c.Http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(signinUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post orcid credentials")
		return err
	}

	finalUrl := res.RawResponse.Request.URL
	if finalUrl.Hostname() != c.BaseUrl.Hostname() {
		span.SetStatus(codes.Error, LoginFailed.Error())
		return LoginFailed
	}
	return nil
}
