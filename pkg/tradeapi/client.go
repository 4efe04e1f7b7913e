package tradeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIKeyHeader authenticates account-scoped endpoints.
const APIKeyHeader = "ANTHIC-API-KEY"

var ErrAPIFailure = errors.New("trade api request failed")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Status  int
	Body    ErrorResponse
	RawBody string
}

func (e *StatusError) Error() string {
	if e.Body.Error != "" {
		return fmt.Sprintf("trade api error %d: %s: %s", e.Status, e.Body.Error, e.Body.Message)
	}
	return fmt.Sprintf("trade api error %d: %s", e.Status, e.RawBody)
}

func (e *StatusError) Unwrap() error { return ErrAPIFailure }

// Client talks to the trading service. Every call takes a context and makes
// exactly one request.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

func (c *Client) do(req *http.Request, authenticated bool, result any) error {
	if authenticated {
		if c.apiKey == "" {
			return fmt.Errorf("%s %s: missing api key: %w", req.Method, req.URL.Path, ErrAPIFailure)
		}
		req.Header.Set(APIKeyHeader, c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Status: resp.StatusCode, RawBody: string(body)}
		_ = json.Unmarshal(body, &se.Body)
		return se
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decode %s: %w", req.URL.Path, err)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, authenticated bool, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, authenticated, result)
}

func (c *Client) post(ctx context.Context, endpoint string, authenticated bool, payload, result any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, authenticated, result)
}

func (c *Client) NetworkStatus(ctx context.Context) (*NetworkStatusResponse, error) {
	out := &NetworkStatusResponse{}
	if err := c.get(ctx, "/network/status", false, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Info(ctx context.Context) (*InfoResponse, error) {
	out := &InfoResponse{}
	if err := c.get(ctx, "/trade/info", false, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AccountAddressInfo(ctx context.Context, address string) (*AccountAddressInfo, error) {
	out := &AccountAddressInfo{}
	if err := c.get(ctx, "/trade/account_addresses/"+url.PathEscape(address), false, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Tokens(ctx context.Context) (*TokensResponse, error) {
	out := &TokensResponse{}
	if err := c.get(ctx, "/trade/tokens", false, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) TokenPairs(ctx context.Context) (*TokenPairsResponse, error) {
	out := &TokenPairsResponse{}
	if err := c.get(ctx, "/trade/token_pairs", false, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Accounts lists the caller's accounts and balances. Requires the api key.
func (c *Client) Accounts(ctx context.Context) (*AccountsResponse, error) {
	out := &AccountsResponse{}
	if err := c.get(ctx, "/trade/accounts", true, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) InstamintInfo(ctx context.Context) (*InstamintInfo, error) {
	out := &InstamintInfo{}
	if err := c.get(ctx, "/instamint/info", false, out); err != nil {
		return nil, err
	}
	return out, nil
}

// InstamintAccounts lists the caller's instamint accounts. Requires the api key.
func (c *Client) InstamintAccounts(ctx context.Context) (*InstamintAccountsResponse, error) {
	out := &InstamintAccountsResponse{}
	if err := c.get(ctx, "/instamint/accounts", true, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitSubintent posts a signed partial transaction to a matching node.
func (c *Client) SubmitSubintent(ctx context.Context, signedHex string) (*SubmitResponse, error) {
	out := &SubmitResponse{}
	req := SubmitRequest{SignedPartialTransactionHex: signedHex}
	if err := c.post(ctx, "/trade/subintents", false, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Order(ctx context.Context, hash string) (*OrderResponse, error) {
	out := &OrderResponse{}
	if err := c.get(ctx, "/trade/subintents/"+url.PathEscape(hash), false, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CancelSubintent(ctx context.Context, hash, signatureHex string) (*OrderResponse, error) {
	out := &OrderResponse{}
	req := CancelRequest{Signature: signatureHex}
	if err := c.post(ctx, "/trade/subintents/"+url.PathEscape(hash)+"/cancel", false, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Orders lists open orders, cheapest first when both sell and buy symbols
// are given and soonest expiry first otherwise.
func (c *Client) Orders(ctx context.Context, sell, buy string) (*OrdersResponse, error) {
	out := &OrdersResponse{}
	endpoint := "/trade/orders"
	if sell != "" || buy != "" {
		q := url.Values{}
		q.Set("sell", sell)
		q.Set("buy", buy)
		endpoint += "?" + q.Encode()
	}
	if err := c.get(ctx, endpoint, false, out); err != nil {
		return nil, err
	}
	return out, nil
}
