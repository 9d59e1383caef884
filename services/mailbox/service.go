// Package mailbox reads the editor's Gmail account through the REST API
// using a keychain-managed OAuth token. It only ever needs the readonly
// scope: the correlator searches it for referee replies and the harvest
// flow pulls 2FA verification codes out of it.
package mailbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"refassist-backend/lib/editorial"
	"refassist-backend/lib/restyutil"
	"refassist-backend/services/keychain"

	"github.com/go-resty/resty/v2"
	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("refassist.services.mailbox")

const defaultBaseUrl = "https://gmail.googleapis.com/gmail/v1"

const (
	keychainNamespace = "google"
	keychainId        = "mailbox"
)

type Service struct {
	client   *resty.Client
	keychain *keychain.Service
	baseUrl  string
}

var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	restyInstrumentOutput = output
}

func NewService(kc *keychain.Service) *Service {
	client := resty.New()
	client.SetTimeout(time.Second * 30)
	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &Service{
		client:   client,
		keychain: kc,
		baseUrl:  defaultBaseUrl,
	}
}

// SetBaseUrl points the service at a different API endpoint. Used in tests.
func (s *Service) SetBaseUrl(baseUrl string) {
	s.baseUrl = strings.TrimSuffix(baseUrl, "/")
}

func (s *Service) accessToken(ctx context.Context) (string, error) {
	entry, err := s.keychain.GetOAuth(ctx, keychainNamespace, keychainId)
	if err != nil {
		return "", fmt.Errorf("no mailbox token in keychain: %w", err)
	}
	return entry.Token.AccessToken, nil
}

type messageRef struct {
	Id       string `json:"id"`
	ThreadId string `json:"threadId"`
}

type listResponse struct {
	Messages []messageRef `json:"messages"`
}

type rawMessage struct {
	Id  string `json:"id"`
	Raw string `json:"raw"`
}

// Search runs a Gmail query and returns the parsed messages, newest first,
// the way the API orders them. max caps the number of messages fetched.
func (s *Service) Search(ctx context.Context, query string, max int) ([]editorial.EmailMessage, error) {
	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()
	span.SetAttributes(attribute.String("query", query))

	token, err := s.accessToken(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get access token")
		return nil, err
	}

	res, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("q", query).
		SetQueryParam("maxResults", fmt.Sprint(max)).
		Get(s.baseUrl + "/users/me/messages")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "message list request failed")
		return nil, err
	}
	if res.StatusCode() != 200 {
		err := fmt.Errorf("gmail list returned status %d", res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, "message list request failed")
		return nil, err
	}

	var list listResponse
	err = json.Unmarshal(res.Body(), &list)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode message list")
		return nil, err
	}

	var messages []editorial.EmailMessage
	for _, ref := range list.Messages {
		msg, err := s.fetchMessage(ctx, token, ref.Id)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch message")
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *Service) fetchMessage(ctx context.Context, token, id string) (editorial.EmailMessage, error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("format", "raw").
		Get(s.baseUrl + "/users/me/messages/" + id)
	if err != nil {
		return editorial.EmailMessage{}, err
	}
	if res.StatusCode() != 200 {
		return editorial.EmailMessage{}, fmt.Errorf("gmail get message %s returned status %d", id, res.StatusCode())
	}

	var raw rawMessage
	err = json.Unmarshal(res.Body(), &raw)
	if err != nil {
		return editorial.EmailMessage{}, err
	}
	return ParseRawMessage(raw.Raw)
}

// ParseRawMessage decodes a base64url RFC822 message as returned by the
// Gmail API with format=raw.
func ParseRawMessage(raw string) (editorial.EmailMessage, error) {
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return editorial.EmailMessage{}, fmt.Errorf("failed to decode raw message: %w", err)
	}

	parsed, err := email.NewEmailFromReader(strings.NewReader(string(decoded)))
	if err != nil {
		return editorial.EmailMessage{}, fmt.Errorf("failed to parse rfc822 message: %w", err)
	}

	msg := editorial.EmailMessage{
		Subject: parsed.Subject,
		From:    parsed.From,
		To:      strings.Join(parsed.To, ", "),
	}
	if len(parsed.Text) > 0 {
		msg.Body = string(parsed.Text)
	} else {
		msg.Body = string(parsed.HTML)
	}
	if date := parsed.Headers.Get("Date"); date != "" {
		t, err := mail.ParseDate(date)
		if err == nil {
			msg.Date = t
		}
	}
	return msg, nil
}

var verificationCodeRegex = regexp.MustCompile(`\b(\d{6})\b`)

var ErrNoVerificationCode = fmt.Errorf("no verification code found in recent mail")

// FetchVerificationCode looks for a login verification code emailed after
// `since`. Portals send these when they decide a login looks unfamiliar.
func (s *Service) FetchVerificationCode(ctx context.Context, senderDomain string, since time.Time) (string, error) {
	ctx, span := tracer.Start(ctx, "FetchVerificationCode")
	defer span.End()

	query := fmt.Sprintf("from:%s newer_than:1d", senderDomain)
	messages, err := s.Search(ctx, query, 10)
	if err != nil {
		return "", err
	}

	for _, msg := range messages {
		if msg.Date.Before(since) {
			continue
		}
		match := verificationCodeRegex.FindStringSubmatch(msg.Subject)
		if match == nil {
			match = verificationCodeRegex.FindStringSubmatch(msg.Body)
		}
		if match != nil {
			return match[1], nil
		}
	}
	return "", ErrNoVerificationCode
}

// SearchReplies pulls candidate referee reply messages for one manuscript.
// The query intentionally stays broad, an over-wide candidate pool is fine
// because scoring is the correlator's job.
func (s *Service) SearchReplies(ctx context.Context, journalCode, manuscriptId string, max int) ([]editorial.EmailMessage, error) {
	var terms []string
	if manuscriptId != "" {
		terms = append(terms, manuscriptId)
	}
	if journalCode != "" {
		terms = append(terms, journalCode)
	}
	terms = append(terms, "review")
	return s.Search(ctx, strings.Join(terms, " OR "), max)
}
