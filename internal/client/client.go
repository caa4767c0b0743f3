// Package client is a thin HTTP client for the floatdb API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"csgo-floatdb/internal/codec"
	"csgo-floatdb/internal/services/floatdb"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	client *resty.Client
}

// envelope is the success wrapper every API response uses.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type apiError struct {
	Error string `json:"error"`
}

func New(baseURL string) *Client {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetBaseURL(baseURL)
	client.SetHeader("Content-Type", "application/json")

	return &Client{client: client}
}

func (c *Client) InsertItem(ctx context.Context, item codec.RawItem, price *int64) error {
	body := map[string]interface{}{"item": item}
	if price != nil {
		body["price"] = *price
	}
	resp, err := c.client.R().SetContext(ctx).SetBody(body).Post("/api/v1/items")
	return decode(resp, err, nil)
}

func (c *Client) Lookup(ctx context.Context, assets ...string) ([]codec.ExternalItem, error) {
	reqs := make([]floatdb.LookupRequest, 0, len(assets))
	for _, a := range assets {
		reqs = append(reqs, floatdb.LookupRequest{A: a})
	}
	var out []codec.ExternalItem
	resp, err := c.client.R().SetContext(ctx).
		SetBody(map[string]interface{}{"requests": reqs}).
		Post("/api/v1/items/lookup")
	if err := decode(resp, err, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Rank(ctx context.Context, asset string) (floatdb.Rank, error) {
	var out floatdb.Rank
	resp, err := c.client.R().SetContext(ctx).Get("/api/v1/items/" + url.PathEscape(asset) + "/rank")
	if err := decode(resp, err, &out); err != nil {
		return floatdb.Rank{}, err
	}
	return out, nil
}

func (c *Client) UpdatePrice(ctx context.Context, asset string, price int64) error {
	resp, err := c.client.R().SetContext(ctx).
		SetBody(map[string]int64{"price": price}).
		Put("/api/v1/items/" + url.PathEscape(asset) + "/price")
	return decode(resp, err, nil)
}

func (c *Client) History(ctx context.Context, asset string) ([]floatdb.HistoryRecord, error) {
	var out []floatdb.HistoryRecord
	resp, err := c.client.R().SetContext(ctx).Get("/api/v1/items/" + url.PathEscape(asset) + "/history")
	if err := decode(resp, err, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decode(resp *resty.Response, err error, out interface{}) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		var e apiError
		if json.Unmarshal(resp.Body(), &e) == nil && e.Error != "" {
			return fmt.Errorf("floatdb api %d: %s", resp.StatusCode(), e.Error)
		}
		return fmt.Errorf("floatdb api %d", resp.StatusCode())
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Code != 200 {
		return fmt.Errorf("floatdb api code %d: %s", env.Code, env.Msg)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
