// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/covsuite/covwallet/wire"
)

// HTTPClient implements Interface against a network node exposing the
// wallet-facing JSON endpoints.  It carries no state beyond the base URL;
// request deadlines come from the caller's context.
type HTTPClient struct {
	base string
	http *http.Client
}

// NewHTTPClient creates a client for the node at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{},
	}
}

// Broadcast submits a transaction to the node.
func (c *HTTPClient) Broadcast(ctx context.Context, tx *wire.MsgTx) error {
	body, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/broadcast", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// CurrentHeight returns the node's current confirmed height.
func (c *HTTPClient) CurrentHeight(ctx context.Context) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/height", nil)
	if err != nil {
		return 0, err
	}
	var height uint64
	if err := c.do(req, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// coinEntry is the node's wire form of one unspent coin.
type coinEntry struct {
	CoinID   wire.CoinID   `json:"coin_id"`
	CoinData wire.CoinData `json:"coin_data"`
	Height   uint64        `json:"height"`
}

// CoinsAt returns the confirmed unspent coins locked to covhash.
func (c *HTTPClient) CoinsAt(ctx context.Context, covhash wire.Hash) ([]Coin, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/coins/"+covhash.String(), nil)
	if err != nil {
		return nil, err
	}
	var entries []coinEntry
	if err := c.do(req, &entries); err != nil {
		return nil, err
	}
	coins := make([]Coin, len(entries))
	for i, entry := range entries {
		coins[i] = Coin{
			ID:     entry.CoinID,
			Data:   entry.CoinData,
			Height: entry.Height,
		}
	}
	return coins, nil
}

// TxStatus returns the confirmation height of a transaction, or nil while
// unconfirmed.
func (c *HTTPClient) TxStatus(ctx context.Context, txHash wire.Hash) (*uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/tx-status/"+txHash.String(), nil)
	if err != nil {
		return nil, err
	}
	var status struct {
		ConfirmedHeight *uint64 `json:"confirmed_height"`
	}
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return status.ConfirmedHeight, nil
}

// do runs the request and decodes a JSON response body into out when out is
// non-nil.
func (c *HTTPClient) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("node returned %s: %s", resp.Status,
			strings.TrimSpace(string(msg)))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
