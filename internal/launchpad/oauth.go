package launchpad

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const signatureMethod = "PLAINTEXT"

// Credentials is an authorized OAuth access token for one consumer.
// Launchpad consumers have no secret.
type Credentials struct {
	ConsumerKey string
	Token       string
	Secret      string
}

// RequestToken is the short-lived token the user authorizes in a browser.
type RequestToken struct {
	Token  string
	Secret string
}

// AccessGrant is what +access-token returns once the user approved.
type AccessGrant struct {
	Credentials
	Context string
}

type signer struct {
	creds Credentials
	now   func() time.Time
	nonce func() string
}

func newSigner(creds Credentials) *signer {
	return &signer{
		creds: creds,
		now:   time.Now,
		nonce: func() string { return uuid.NewString() },
	}
}

func (s *signer) header() string {
	params := []struct{ key, value string }{
		{"oauth_consumer_key", s.creds.ConsumerKey},
		{"oauth_token", s.creds.Token},
		{"oauth_signature_method", signatureMethod},
		{"oauth_signature", plaintextSignature(s.creds.Secret)},
		{"oauth_timestamp", strconv.FormatInt(s.now().Unix(), 10)},
		{"oauth_nonce", s.nonce()},
		{"oauth_version", "1.0"},
	}
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, `realm="OAuth"`)
	for _, p := range params {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, p.key, percentEncode(p.value)))
	}
	return "OAuth " + strings.Join(parts, ", ")
}

func plaintextSignature(tokenSecret string) string {
	return "&" + percentEncode(tokenSecret)
}

// percentEncode is the RFC 3986 encoding OAuth 1.0 requires.
func percentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Authorizer runs the three-legged token exchange against the web root.
type Authorizer struct {
	httpClient *http.Client
	webRoot    string
	consumer   string
}

func NewAuthorizer(webRoot, consumer string, httpClient *http.Client) *Authorizer {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if !strings.HasSuffix(webRoot, "/") {
		webRoot += "/"
	}
	return &Authorizer{httpClient: httpClient, webRoot: webRoot, consumer: consumer}
}

func (a *Authorizer) RequestToken(ctx context.Context) (RequestToken, error) {
	values, err := a.post(ctx, "+request-token", url.Values{
		"oauth_consumer_key":     {a.consumer},
		"oauth_signature_method": {signatureMethod},
		"oauth_signature":        {"&"},
	})
	if err != nil {
		return RequestToken{}, err
	}
	token := RequestToken{Token: values.Get("oauth_token"), Secret: values.Get("oauth_token_secret")}
	if token.Token == "" {
		return RequestToken{}, fmt.Errorf("launchpad request token response has no oauth_token")
	}
	return token, nil
}

// AuthorizeURL is the page where the user grants one of levels to the token.
func (a *Authorizer) AuthorizeURL(token RequestToken, levels []string) string {
	q := url.Values{"oauth_token": {token.Token}}
	for _, l := range levels {
		q.Add("allow_permission", l)
	}
	return a.webRoot + "+authorize-token?" + q.Encode()
}

// AccessToken exchanges an authorized request token. Launchpad answers 401
// while the user has not approved the token yet.
func (a *Authorizer) AccessToken(ctx context.Context, token RequestToken) (AccessGrant, error) {
	values, err := a.post(ctx, "+access-token", url.Values{
		"oauth_token":            {token.Token},
		"oauth_consumer_key":     {a.consumer},
		"oauth_signature_method": {signatureMethod},
		"oauth_signature":        {"&" + token.Secret},
	})
	if err != nil {
		return AccessGrant{}, err
	}
	grant := AccessGrant{
		Credentials: Credentials{
			ConsumerKey: a.consumer,
			Token:       values.Get("oauth_token"),
			Secret:      values.Get("oauth_token_secret"),
		},
		Context: values.Get("lp.context"),
	}
	if grant.Token == "" {
		return AccessGrant{}, fmt.Errorf("launchpad access token response has no oauth_token")
	}
	return grant, nil
}

func (a *Authorizer) post(ctx context.Context, endpoint string, form url.Values) (url.Values, error) {
	target := a.webRoot + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create launchpad token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach launchpad: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read launchpad token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Method: http.MethodPost, URL: target, StatusCode: resp.StatusCode, Body: string(body)}
	}

	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse launchpad token response: %w", err)
	}
	return values, nil
}
