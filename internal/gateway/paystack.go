package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the Paystack-compatible payment API. It implements
// Resolver and Transferer.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

func NewClient(baseURL, secret string) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Status {
		return fmt.Errorf("gateway error (%d): %s", resp.StatusCode, envelope.Message)
	}
	if out != nil {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

// ResolveAccount verifies the account and returns its registered name.
func (c *Client) ResolveAccount(ctx context.Context, bankCode, accountNumber string) (string, error) {
	path := fmt.Sprintf("/bank/resolve?account_number=%s&bank_code=%s",
		url.QueryEscape(accountNumber), url.QueryEscape(bankCode))
	var data struct {
		AccountName string `json:"account_name"`
	}
	if err := c.get(ctx, path, &data); err != nil {
		return "", err
	}
	return data.AccountName, nil
}

// InitiateTransfer starts a payout from the platform balance.
func (c *Client) InitiateTransfer(ctx context.Context, amount int64, recipientRef, reason string) (*TransferRecord, error) {
	body := map[string]any{
		"source":    "balance",
		"amount":    amount,
		"recipient": recipientRef,
		"reason":    reason,
	}
	var data struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
	}
	if err := c.post(ctx, "/transfer", body, &data); err != nil {
		return nil, err
	}
	return &TransferRecord{Reference: data.Reference, Amount: data.Amount, Status: data.Status}, nil
}

// VTUClient talks to the airtime gateway. It implements
// AirtimeDispatcher.
type VTUClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewVTUClient(baseURL, apiKey string) *VTUClient {
	return &VTUClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// DispatchAirtime fires the airtime-to-cash request; settlement comes
// back later on callbackURL.
func (c *VTUClient) DispatchAirtime(ctx context.Context, amount int64, network, phone, ref, callbackURL string) error {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("network", network)
	params.Set("sender", phone)
	params.Set("amount", fmt.Sprintf("%d", amount))
	params.Set("ref", ref)
	params.Set("webhookURL", callbackURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/airtime-cash/?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		Code        int             `json:"code"`
		Description json.RawMessage `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding dispatch response: %w", err)
	}
	if result.Code != 101 {
		return fmt.Errorf("airtime dispatch rejected (code %d)", result.Code)
	}
	return nil
}
