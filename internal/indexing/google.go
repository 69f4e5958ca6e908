package indexing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/jwt"

	"github.com/indexpilot/indexpilot/internal/models"
)

const (
	publishEndpoint = "https://indexing.googleapis.com/v3/urlNotifications:publish"
	indexingScope   = "https://www.googleapis.com/auth/indexing"

	// refresh the cached token a bit before it actually expires
	tokenSlack = 2 * time.Minute

	maxErrorBody = 16 << 10
)

// TokenCache persists refreshed access tokens so later URLs in the same
// run, and later runs, skip re-authentication.
type TokenCache interface {
	UpdateToken(ctx context.Context, accountID uint, token string, expiry time.Time) error
}

type serviceAccountKey struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// GoogleClient submits URLs to the Google Indexing API using
// service-account JWT credentials.
type GoogleClient struct {
	httpClient *http.Client
	tokens     TokenCache
	endpoint   string
	log        *zap.Logger
}

func NewGoogleClient(httpClient *http.Client, tokens TokenCache, log *zap.Logger) *GoogleClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GoogleClient{
		httpClient: httpClient,
		tokens:     tokens,
		endpoint:   publishEndpoint,
		log:        log.Named("indexing"),
	}
}

var _ Client = (*GoogleClient)(nil)

func (c *GoogleClient) Submit(ctx context.Context, url string, account *models.ServiceAccount) Result {
	token, err := c.accessToken(ctx, account)
	if err != nil {
		return Result{URL: url, Error: fmt.Sprintf("authentication failed: %v", err)}
	}

	payload, err := json.Marshal(map[string]string{
		"url":  url,
		"type": "URL_UPDATED",
	})
	if err != nil {
		return Result{URL: url, Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{URL: url, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{URL: url, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{URL: url, Success: true}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := apiErrorMessage(body, resp.Status)

	return Result{
		URL:           url,
		Error:         message,
		QuotaExceeded: isQuotaError(resp.StatusCode, message),
	}
}

// accessToken returns a valid bearer token for the account, reusing the
// cached one when it has not expired and refreshing (and persisting) it
// otherwise.
func (c *GoogleClient) accessToken(ctx context.Context, account *models.ServiceAccount) (string, error) {
	if account.AccessToken != "" && account.TokenExpiresAt != nil &&
		time.Until(*account.TokenExpiresAt) > tokenSlack {
		return account.AccessToken, nil
	}

	var key serviceAccountKey
	if err := json.Unmarshal([]byte(account.CredentialsJSON), &key); err != nil {
		return "", fmt.Errorf("parse service account credentials: %w", err)
	}
	if key.Type != "service_account" || key.ClientEmail == "" || key.PrivateKey == "" {
		return "", fmt.Errorf("credentials for account %d are not a service account key", account.ID)
	}

	cfg := &jwt.Config{
		Email:        key.ClientEmail,
		PrivateKey:   []byte(key.PrivateKey),
		PrivateKeyID: key.PrivateKeyID,
		Scopes:       []string{indexingScope},
		TokenURL:     key.TokenURI,
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = "https://oauth2.googleapis.com/token"
	}

	token, err := cfg.TokenSource(ctx).Token()
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}

	account.AccessToken = token.AccessToken
	account.TokenExpiresAt = &token.Expiry

	if c.tokens != nil {
		if err := c.tokens.UpdateToken(ctx, account.ID, token.AccessToken, token.Expiry); err != nil {
			c.log.Warn("persist refreshed token failed",
				zap.Uint("account_id", account.ID), zap.Error(err))
		}
	}

	return token.AccessToken, nil
}

func apiErrorMessage(body []byte, fallback string) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return fallback
}

// isQuotaError classifies a provider rejection as quota exhaustion. The
// API signals it as 429, or as 403/RESOURCE_EXHAUSTED with a quota
// message.
func isQuotaError(statusCode int, message string) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	lower := strings.ToLower(message)
	return strings.Contains(lower, "quota exceeded") ||
		strings.Contains(lower, "resource_exhausted") ||
		strings.Contains(lower, "rate limit")
}
