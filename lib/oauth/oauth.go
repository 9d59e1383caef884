// Package oauth implements the pieces of the OAuth2/OpenID code flow the
// portals need: ORCID SSO for ScholarOne logins and Google for the
// gmail.readonly mailbox scope.
package oauth

import (
	"context"
	"net/url"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("refassist.lib.oauth")

type AuthCodeRequest struct {
	AccessType   string
	Scope        string
	RedirectUri  string
	CodeVerifier string
	ClientId     string
}

func GetLoginUrl(ctx context.Context, req AuthCodeRequest, baseLoginUrl string) (string, error) {
	ctx, span := tracer.Start(ctx, "GetLoginUrl")
	defer span.End()

	endpoint, err := url.Parse(baseLoginUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse base login url")
		return "", err
	}

	values := endpoint.Query()
	values.Add("client_id", req.ClientId)
	if req.AccessType != "" {
		values.Add("access_type", req.AccessType)
	}
	values.Add("scope", req.Scope)
	if req.CodeVerifier != "" {
		values.Add("code_challenge", req.CodeVerifier)
	}
	values.Add("redirect_uri", req.RedirectUri)

	state, err := random.String(32)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate state nonce")
		return "", err
	}
	values.Add("state", state)
	values.Add("response_type", "code")

	span.SetAttributes(
		attribute.String("client_id", req.ClientId),
		attribute.String("scope", req.Scope),
		attribute.String("redirect_uri", req.RedirectUri),
		attribute.String("state", state),
	)

	endpoint.RawQuery = values.Encode()
	return endpoint.String(), nil
}

type OpenIdToken struct {
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
	IdToken      string `json:"id_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

type TokenRequest struct {
	ClientId     string `json:"client_id"`
	Scope        string `json:"scope"`
	AuthCode     string `json:"code"`
	CodeVerifier string `json:"code_verifier,omitempty"`
	RedirectUri  string `json:"redirect_uri"`
	GrantType    string `json:"grant_type"`
}

func GenerateCodeVerifier() (string, error) {
	return random.String(64)
}
