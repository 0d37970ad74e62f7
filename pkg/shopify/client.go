package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/promosynchq/promosync/pkg/config"
	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
	"github.com/promosynchq/promosync/pkg/logger"
)

const (
	accessTokenHeader = "X-Shopify-Access-Token"

	responseBodyReadLimit int64 = 4 << 20
)

var (
	errShopDomainRequired  = errors.New("shop domain is required")
	errAccessTokenRequired = errors.New("shop access token is required")
)

// Client wraps the Shopify Admin GraphQL API for a single shop with
// centralized auth, logging, and error mapping. All calls are sequential;
// pacing between calls is the caller's concern.
type Client struct {
	httpClient  *http.Client
	shopDomain  string
	accessToken string
	apiVersion  string
	baseURL     string
	logger      *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the admin API base URL (tests point this at a stub).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds an admin API client for the given shop credentials.
func NewClient(shopDomain, accessToken string, cfg config.ShopifyConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	domain := strings.TrimSpace(shopDomain)
	if domain == "" {
		return nil, errShopDomainRequired
	}
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		shopDomain:  domain,
		accessToken: token,
		apiVersion:  cfg.APIVersion,
		baseURL:     fmt.Sprintf("https://%s", domain),
		logger:      logg,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// ShopDomain reports the shop this client is bound to.
func (c *Client) ShopDomain() string {
	if c == nil {
		return ""
	}
	return c.shopDomain
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", c.baseURL, c.apiVersion)
}

func (c *Client) doGraphQL(ctx context.Context, op, query string, variables map[string]any, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "shopify client not configured")
	}

	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode graphql request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build graphql request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(accessTokenHeader, c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logError(ctx, op, err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("shopify %s failed", op))
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read graphql response")
	}

	if resp.StatusCode != http.StatusOK {
		err := pkgerrors.New(codeForStatus(resp.StatusCode), fmt.Sprintf("shopify %s returned status %d", op, resp.StatusCode))
		c.logError(ctx, op, err)
		return err
	}

	var envelope graphqlEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode graphql envelope")
	}

	if len(envelope.Errors) > 0 {
		first := envelope.Errors[0]
		code := pkgerrors.CodeDependency
		if strings.EqualFold(first.Extensions.Code, "THROTTLED") {
			code = pkgerrors.CodeRateLimit
		}
		err := pkgerrors.New(code, fmt.Sprintf("shopify %s: %s", op, first.Message))
		c.logError(ctx, op, err)
		return err
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode graphql data")
		}
	}

	return nil
}

func (c *Client) logError(ctx context.Context, op string, err error) {
	if c == nil || c.logger == nil {
		return
	}
	ctx = c.logger.WithFields(ctx, map[string]any{
		"operation": op,
		"shop":      c.shopDomain,
	})
	c.logger.Error(ctx, "shopify request failed", err)
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeUnauthorized
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}
