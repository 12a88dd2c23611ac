package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/spotidal/internal/shared"
	"golang.org/x/oauth2"
)

const defaultTidalAuthURL = "https://auth.tidal.com/v1/oauth2"

// TidalScopes are the permissions requested during device login.
var TidalScopes = []string{"r_usr", "w_usr", "w_sub"}

// TidalAuth runs the OAuth2 device authorization flow against Tidal.
type TidalAuth struct {
	config        *oauth2.Config
	deviceAuthURL string
	httpClient    *http.Client
}

// NewTidalAuth creates an authenticator for the configured client.
func NewTidalAuth(cfg shared.TidalConfig) *TidalAuth {
	return NewTidalAuthWithURL(cfg, defaultTidalAuthURL, nil)
}

// NewTidalAuthWithURL points the flow at baseURL, which serves /device_authorization and /token.
func NewTidalAuthWithURL(cfg shared.TidalConfig, baseURL string, client *http.Client) *TidalAuth {
	baseURL = strings.TrimRight(baseURL, "/")
	if client == nil {
		client = http.DefaultClient
	}

	return &TidalAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       TidalScopes,
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: baseURL + "/device_authorization",
				TokenURL:      baseURL + "/token",
				AuthStyle:     oauth2.AuthStyleInParams,
			},
		},
		deviceAuthURL: baseURL + "/device_authorization",
		httpClient:    client,
	}
}

// DeviceAuth starts a login and returns the code the user must confirm.
//
// Tidal answers with camelCase fields, so the response is decoded here instead of by [oauth2.Config.DeviceAuth].
func (a *TidalAuth) DeviceAuth(ctx context.Context) (*oauth2.DeviceAuthResponse, error) {
	form := url.Values{
		"client_id": {a.config.ClientID},
		"scope":     {strings.Join(a.config.Scopes, " ")},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.deviceAuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device authorization request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: device authorization returned status %d", shared.ErrAuthFailed, resp.StatusCode)
	}

	var body struct {
		DeviceCode              string `json:"deviceCode"`
		UserCode                string `json:"userCode"`
		VerificationURI         string `json:"verificationUri"`
		VerificationURIComplete string `json:"verificationUriComplete"`
		ExpiresIn               int64  `json:"expiresIn"`
		Interval                int64  `json:"interval"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode device authorization: %w", err)
	}
	if body.DeviceCode == "" {
		return nil, fmt.Errorf("%w: device authorization returned no device code", shared.ErrAuthFailed)
	}

	da := &oauth2.DeviceAuthResponse{
		DeviceCode:              body.DeviceCode,
		UserCode:                body.UserCode,
		VerificationURI:         withScheme(body.VerificationURI),
		VerificationURIComplete: withScheme(body.VerificationURIComplete),
		Interval:                body.Interval,
	}
	if body.ExpiresIn > 0 {
		da.Expiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	}
	return da, nil
}

// Poll waits until the user approves the login, the code expires or ctx is done.
func (a *TidalAuth) Poll(ctx context.Context, da *oauth2.DeviceAuthResponse) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	tok, err := a.config.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return tok, nil
}

// Client returns an HTTP client that authorizes requests with tok and refreshes it when needed,
// along with the token source so refreshed tokens can be saved.
func (a *TidalAuth) Client(ctx context.Context, tok *oauth2.Token) (*http.Client, oauth2.TokenSource) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	ts := oauth2.ReuseTokenSource(tok, a.config.TokenSource(ctx, tok))
	return oauth2.NewClient(ctx, ts), ts
}

func withScheme(u string) string {
	if u == "" || strings.Contains(u, "://") {
		return u
	}
	return "https://" + u
}
