package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Catalog(ctx context.Context, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/catalog", playerID, nil, &out)
	return out, err
}

func (c *Client) ItemDetail(ctx context.Context, playerID, itemID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/items/"+url.PathEscape(itemID), playerID, nil, &out)
	return out, err
}

func (c *Client) StartViewing(ctx context.Context, playerID, itemID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/items/"+url.PathEscape(itemID)+"/view", playerID, map[string]any{}, &out)
	return out, err
}

func (c *Client) StopViewing(ctx context.Context, playerID, itemID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodDelete, "/v1/items/"+url.PathEscape(itemID)+"/view", playerID, nil, &out)
	return out, err
}

func (c *Client) TakeShot(ctx context.Context, playerID, itemID, mode string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/shots", playerID, map[string]any{
		"item_id": itemID,
		"mode":    mode,
	}, &out)
	return out, err
}

func (c *Client) CommitShot(ctx context.Context, playerID, shotID string, priceMicros int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/shots/"+url.PathEscape(shotID)+"/commit", playerID, map[string]any{
		"price_micros": priceMicros,
	}, &out)
	return out, err
}

func (c *Client) DiscardShot(ctx context.Context, playerID, shotID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/shots/"+url.PathEscape(shotID)+"/discard", playerID, map[string]any{}, &out)
	return out, err
}

func (c *Client) Wallet(ctx context.Context, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/wallet", playerID, nil, &out)
	return out, err
}

func (c *Client) TradeIn(ctx context.Context, playerID, vaultItemID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/vault/"+url.PathEscape(vaultItemID)+"/trade-in", playerID, map[string]any{}, &out)
	return out, err
}

func (c *Client) MoveToShipping(ctx context.Context, playerID string, vaultItemIDs []string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/shipping/move", playerID, map[string]any{
		"vault_item_ids": vaultItemIDs,
	}, &out)
	return out, err
}

func (c *Client) RecallShipping(ctx context.Context, playerID, shippingID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/shipping/"+url.PathEscape(shippingID)+"/recall", playerID, map[string]any{}, &out)
	return out, err
}

func (c *Client) ConfirmShipping(ctx context.Context, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/shipping/confirm", playerID, map[string]any{}, &out)
	return out, err
}

func (c *Client) AskCoach(ctx context.Context, playerID, itemID, question string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/coach", playerID, map[string]any{
		"item_id":  itemID,
		"question": question,
	}, &out)
	return out, err
}

func (c *Client) BotMove(ctx context.Context, playerID, seed string, round int, legal []string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/arcade/bot-move", playerID, map[string]any{
		"seed":        seed,
		"round":       round,
		"legal_moves": legal,
	}, &out)
	return out, err
}

func (c *Client) Puzzle(ctx context.Context, playerID, seed string, cards int) (map[string]any, error) {
	path := fmt.Sprintf("/v1/arcade/puzzle?seed=%s&cards=%d", url.QueryEscape(seed), cards)
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, playerID, nil, &out)
	return out, err
}

func (c *Client) VerifyPuzzle(ctx context.Context, playerID, seed string, cards []map[string]any) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/arcade/puzzle/verify", playerID, map[string]any{
		"seed":  seed,
		"cards": cards,
	}, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, playerID string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if playerID != "" {
		req.Header.Set("X-Player-ID", playerID)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
