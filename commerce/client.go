// Package commerce provides a client for the upstream commerce orders API
package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/oauth2"

	"github.com/covenant/enrollsync/pocketbase/ratelimit"
)

const defaultBaseURL = "https://api.squarespace.com/1.0/commerce"

// LineItemTypeService marks line items that represent course enrollments.
// Physical goods carry other type tags and are ignored by the sync pipeline.
const LineItemTypeService = "SERVICE"

// NameValue is a free-form label/value pair collected at purchase time
// (e.g. "Name", "Email"). Labels are not guaranteed unique or normalized.
type NameValue struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// VariantOption is a structured option chosen at purchase time (e.g. Plan, Section)
type VariantOption struct {
	OptionName string `json:"optionName"`
	Value      string `json:"value"`
}

// LineItem is one purchased unit within an order
type LineItem struct {
	ID             string          `json:"id"`
	Type           string          `json:"lineItemType"`
	ProductName    string          `json:"productName"`
	ImageURL       string          `json:"imageUrl"`
	Customizations []NameValue     `json:"customizations"`
	VariantOptions []VariantOption `json:"variantOptions"`
}

// Order is one commerce transaction, possibly containing multiple line items
type Order struct {
	ID            string     `json:"id"`
	OrderNumber   string     `json:"orderNumber"`
	CreatedOn     time.Time  `json:"createdOn"`
	ModifiedOn    time.Time  `json:"modifiedOn"`
	CustomerEmail string     `json:"customerEmail"`
	LineItems     []LineItem `json:"lineItems"`
}

// Client wraps commerce API interactions
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	pageSize   int
}

// Config holds commerce API configuration
type Config struct {
	APIKey   string
	BaseURL  string // optional override, defaults to the hosted API
	PageSize int    // optional, defaults to 50 (API maximum)
}

// NewClient creates a new commerce client. The API key is a long-lived bearer
// token, so the authorized HTTP client is built from a static token source.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, fmt.Errorf("missing required commerce API key")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if env := os.Getenv("COMMERCE_API_BASE"); env != "" {
			baseURL = env
		} else {
			baseURL = defaultBaseURL
		}
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey})
	httpClient := oauth2.NewClient(context.Background(), src)
	httpClient.Timeout = 30 * time.Second

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    ratelimit.New(nil),
		pageSize:   pageSize,
	}, nil
}

// ordersPage mirrors the API's paginated orders envelope
type ordersPage struct {
	Result     []Order `json:"result"`
	Pagination struct {
		HasNextPage    bool   `json:"hasNextPage"`
		NextPageCursor string `json:"nextPageCursor"`
	} `json:"pagination"`
}

// FetchOrders retrieves all orders modified within the given time window,
// following pagination cursors until exhausted.
func (c *Client) FetchOrders(ctx context.Context, modifiedAfter, modifiedBefore time.Time) ([]Order, error) {
	var all []Order
	cursor := ""

	for {
		page, err := c.fetchOrdersPage(ctx, modifiedAfter, modifiedBefore, cursor)
		if err != nil {
			return nil, err
		}

		all = append(all, page.Result...)

		if !page.Pagination.HasNextPage || page.Pagination.NextPageCursor == "" {
			break
		}
		cursor = page.Pagination.NextPageCursor
	}

	slog.Info("Fetched orders from commerce API",
		"count", len(all),
		"modifiedAfter", modifiedAfter.UTC().Format(time.RFC3339),
		"modifiedBefore", modifiedBefore.UTC().Format(time.RFC3339))
	return all, nil
}

// fetchOrdersPage retrieves a single page of orders
func (c *Client) fetchOrdersPage(ctx context.Context, after, before time.Time, cursor string) (*ordersPage, error) {
	values := url.Values{}
	if cursor != "" {
		// The API rejects cursor combined with time-window params
		values.Set("cursor", cursor)
	} else {
		values.Set("modifiedAfter", after.UTC().Format(time.RFC3339))
		values.Set("modifiedBefore", before.UTC().Format(time.RFC3339))
	}

	fullURL := fmt.Sprintf("%s/orders?%s", c.baseURL, values.Encode())

	var page ordersPage
	err := c.limiter.ExecuteWithRetry(ctx, func() error {
		body, err := c.get(ctx, fullURL)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("decode orders response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching orders page: %w", err)
	}

	return &page, nil
}

// get performs a single authenticated GET request
func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "enrollsync")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		// Surface a recognizable error so the limiter backs off and retries
		return nil, fmt.Errorf("rate limit exceeded (429): %s", string(body))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
