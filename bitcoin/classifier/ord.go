// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/jellydator/ttlcache/v3"
	jsoniter "github.com/json-iterator/go"

	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
)

// runeIDTTL bounds how long resolved rune ids stay in memory.
const runeIDTTL = 24 * time.Hour

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	// ErrUnexpectedStatus defines that ord server answered with non 200 status.
	ErrUnexpectedStatus = errors.New("unexpected ord server status")
	// ErrMalformedResponse defines that ord server response could not be decoded.
	ErrMalformedResponse = errors.New("malformed ord server response")
)

// OrdClient implements Classifier over ord server json api.
type OrdClient struct {
	baseURL string
	client  *http.Client
	ids     *ttlcache.Cache[string, runes.RuneID]
}

var _ Classifier = (*OrdClient)(nil)

// NewOrdClient is a constructor for OrdClient.
func NewOrdClient(baseURL string, client *http.Client) *OrdClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &OrdClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		ids: ttlcache.New[string, runes.RuneID](
			ttlcache.WithTTL[string, runes.RuneID](runeIDTTL),
			ttlcache.WithDisableTouchOnHit[string, runes.RuneID](),
		),
	}
}

type runeAmount struct {
	Amount jsoniter.Number `json:"amount"`
}

type outputResponse struct {
	Runes jsoniter.RawMessage `json:"runes"`
}

type runeResponse struct {
	ID string `json:"id"`
}

// Classify returns rune balances of the output.
func (c *OrdClient) Classify(ctx context.Context, txID chainhash.Hash, vout uint32) ([]Balance, error) {
	var output outputResponse
	if err := c.get(ctx, fmt.Sprintf("/output/%s:%d", txID, vout), &output); err != nil {
		return nil, err
	}

	amounts, err := parseRunes(output.Runes)
	if err != nil {
		return nil, err
	}

	balances := make([]Balance, 0, len(amounts))
	for name, amount := range amounts {
		runeID, err := c.runeID(ctx, name)
		if err != nil {
			return nil, err
		}

		balances = append(balances, Balance{RuneID: runeID, Amount: amount})
	}

	return balances, nil
}

// parseRunes accepts both the map form {"NAME": {"amount": n}} and the older
// list form [["NAME", {"amount": n}]] of the runes field.
func parseRunes(raw jsoniter.RawMessage) (map[string]*big.Int, error) {
	amounts := make(map[string]*big.Int)
	if len(raw) == 0 || string(raw) == "null" {
		return amounts, nil
	}

	entries := make(map[string]runeAmount)
	if raw[0] == '[' {
		var list [][2]jsoniter.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}

		for _, pair := range list {
			var (
				name  string
				entry runeAmount
			)
			if err := json.Unmarshal(pair[0], &name); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
			}
			if err := json.Unmarshal(pair[1], &entry); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
			}

			entries[name] = entry
		}
	} else if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	for name, entry := range entries {
		amount, ok := new(big.Int).SetString(entry.Amount.String(), 10)
		if !ok {
			return nil, fmt.Errorf("%w: amount %q of %s", ErrMalformedResponse, entry.Amount, name)
		}

		amounts[name] = amount
	}

	return amounts, nil
}

func (c *OrdClient) runeID(ctx context.Context, name string) (runes.RuneID, error) {
	if item := c.ids.Get(name); item != nil {
		return item.Value(), nil
	}

	var response runeResponse
	if err := c.get(ctx, "/rune/"+url.PathEscape(name), &response); err != nil {
		return runes.RuneID{}, err
	}

	runeID, err := runes.NewRuneIDFromString(response.ID)
	if err != nil {
		return runes.RuneID{}, fmt.Errorf("%w: rune id %q: %w", ErrMalformedResponse, response.ID, err)
	}

	c.ids.Set(name, runeID, ttlcache.DefaultTTL)

	return runeID, nil
}

func (c *OrdClient) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d on %s", ErrUnexpectedStatus, resp.StatusCode, path)
	}

	if err = json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return nil
}
