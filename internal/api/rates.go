package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rickgao/tradeapi/internal/model"
)

// GetRates fetches current rates for up to MaxRatesBatch instruments.
func (c *Client) GetRates(ctx context.Context, instrumentIDs []int64) ([]model.Rate, error) {
	if len(instrumentIDs) == 0 {
		return nil, &ValidationError{Field: "instrumentIDs", Message: "at least one instrument is required"}
	}
	if len(instrumentIDs) > MaxRatesBatch {
		return nil, &ValidationError{
			Field:   "instrumentIDs",
			Message: fmt.Sprintf("%d instruments exceeds the maximum batch of %d", len(instrumentIDs), MaxRatesBatch),
		}
	}

	ids := make([]string, len(instrumentIDs))
	for i, id := range instrumentIDs {
		if id <= 0 {
			return nil, &ValidationError{Field: "instrumentIDs", Message: fmt.Sprintf("invalid instrument id %d", id)}
		}
		ids[i] = strconv.FormatInt(id, 10)
	}

	query := url.Values{}
	query.Set("instrumentIds", strings.Join(ids, ","))

	var resp RatesResponse
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/market-data/rates", Query: query}, &resp); err != nil {
		return nil, err
	}

	rates := make([]model.Rate, 0, len(resp.Rates))
	for _, q := range resp.Rates {
		rates = append(rates, q.Rate())
	}
	return rates, nil
}
