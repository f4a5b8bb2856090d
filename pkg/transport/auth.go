package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// LoginURI is the token login endpoint.
const LoginURI = "/mgmt/shared/authn/login"

// ErrAuthFailed is returned when the device rejects a login.
var ErrAuthFailed = errors.New("authentication failed")

// TokenAuthenticator logs in with username/passphrase and returns the issued
// token. Targets that already carry a token are returned as-is.
type TokenAuthenticator struct {
	requester     Requester
	loginProvider string
}

// NewTokenAuthenticator creates an authenticator that logs in through requester.
func NewTokenAuthenticator(requester Requester) *TokenAuthenticator {
	return &TokenAuthenticator{requester: requester, loginProvider: "tmos"}
}

type loginRequest struct {
	Username          string `json:"username"`
	Password          string `json:"password"`
	LoginProviderName string `json:"loginProviderName"`
}

type loginResponse struct {
	Token struct {
		Token string `json:"token"`
	} `json:"token"`
}

// Token implements Authenticator.
func (a *TokenAuthenticator) Token(ctx context.Context, target Target) (string, error) {
	if target.Credentials.Token != "" {
		return target.Credentials.Token, nil
	}

	body, err := json.Marshal(loginRequest{
		Username:          target.Credentials.Username,
		Password:          target.Credentials.Passphrase,
		LoginProviderName: a.loginProvider,
	})
	if err != nil {
		return "", fmt.Errorf("encode login request: %w", err)
	}

	resp, err := a.requester.Do(ctx, target, Request{
		Method:  http.MethodPost,
		URI:     LoginURI,
		Body:    body,
		Headers: http.Header{"Content-Type": {"application/json"}},
	})
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}

	var decoded loginResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if decoded.Token.Token == "" {
		return "", fmt.Errorf("%w: response carries no token", ErrAuthFailed)
	}
	return decoded.Token.Token, nil
}
