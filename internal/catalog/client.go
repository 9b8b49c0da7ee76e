package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quotematch/internal"
	"quotematch/internal/config"
	"quotematch/internal/util"
)

const maxAttempts = 5

// Client talks to the supplier catalog API: bearer-token auth,
// scroll pagination, bounded retry with backoff on transient
// statuses, and a client-side RPS cap.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *rpsLimiter
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type scrollPage struct {
	Products []map[string]any `json:"products"`
	ScrollID *string          `json:"scrollId"`
	Total    *int             `json:"total"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.CatalogTimeoutMs) * time.Millisecond},
		limiter:    newRPSLimiter(cfg.CatalogRateLimitRPS),
	}
}

// FetchAllProducts walks the scroll cursor until the API stops
// returning pages.
func (c *Client) FetchAllProducts(ctx context.Context) ([]internal.ProductRecord, error) {
	return c.scrollProducts(ctx, map[string]string{})
}

// FetchIncremental fetches products changed within the configured
// lookback window. Modes mirror the API: day, hour_price, hour_stock.
func (c *Client) FetchIncremental(ctx context.Context, mode string) ([]internal.ProductRecord, error) {
	params := map[string]string{}
	switch mode {
	case "day":
		params["day"] = strconv.Itoa(c.cfg.CatalogLookbackDays)
	case "hour_price":
		params["hour_price"] = strconv.Itoa(c.cfg.CatalogLookbackHours)
	case "hour_stock":
		params["hour_stock"] = strconv.Itoa(c.cfg.CatalogLookbackHours)
	default:
		return nil, fmt.Errorf("unsupported incremental mode: %s", mode)
	}
	return c.scrollProducts(ctx, params)
}

func (c *Client) FetchCategoryTree(ctx context.Context) (map[string]any, error) {
	body, err := c.getJSON(ctx, "catalog/full-tree/", nil)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) scrollProducts(ctx context.Context, params map[string]string) ([]internal.ProductRecord, error) {
	var all []internal.ProductRecord
	seenCursors := map[string]struct{}{}
	cursor := ""

	for {
		query := map[string]string{}
		for k, v := range params {
			query[k] = v
		}
		if cursor != "" {
			query["scrollId"] = cursor
		}

		body, err := c.getJSON(ctx, "product/scroll", query)
		if err != nil {
			return nil, err
		}

		var page scrollPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, err
		}

		for _, raw := range page.Products {
			record, err := decodeProduct(raw)
			if err != nil {
				// Malformed records (empty header, missing id) are
				// dropped at ingestion and never reach the index.
				continue
			}
			all = append(all, record)
		}

		if page.ScrollID == nil || *page.ScrollID == "" || len(page.Products) == 0 {
			break
		}
		if _, looped := seenCursors[*page.ScrollID]; looped {
			break
		}
		seenCursors[*page.ScrollID] = struct{}{}
		cursor = *page.ScrollID
	}

	return all, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.CatalogAPIToken) == "" {
		return nil, errors.New("missing CATALOG_API_TOKEN")
	}

	u, err := url.Parse(strings.TrimRight(c.cfg.CatalogAPIBaseURL, "/") + "/" + endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.limiter.wait()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.CatalogAPIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if retryableStatus(resp.StatusCode) && attempt < maxAttempts {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("catalog api status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("catalog api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var envelope apiEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, err
		}
		if !envelope.Success {
			return nil, fmt.Errorf("catalog api unsuccessful: %s", string(envelope.Errors))
		}
		return envelope.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("catalog request failed")
	}
	return nil, lastErr
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// decodeProduct maps a loosely typed payload into the closed record
// shape; the full payload is retained as raw JSON for export only.
func decodeProduct(raw map[string]any) (internal.ProductRecord, error) {
	header, _ := raw["header"].(string)
	header = strings.TrimSpace(header)
	if header == "" {
		return internal.ProductRecord{}, errors.New("empty header")
	}

	id, ok := anyToInt(raw["id"])
	if !ok {
		return internal.ProductRecord{}, errors.New("missing id")
	}

	rawJSON, _ := json.Marshal(raw)
	record := internal.ProductRecord{
		ID:      id,
		Header:  header,
		RawJSON: string(rawJSON),
	}
	record.SyncUID = anyToStringPtr(raw["syncUid"])
	record.Articul = anyToStringPtr(raw["articul"])
	record.UnitHeader = anyToStringPtr(raw["unitHeader"])
	record.ManufacturerHeader = anyToStringPtr(raw["manufacturerHeader"])
	record.MultiplicityOrder = anyToFloatPtr(raw["multiplicityOrder"])
	record.UpdatedAt = anyToStringPtr(raw["updatedAt"])
	record.FlatCodes = anyToFlatCodes(raw["flatCodes"])
	record.AnalogCodes = anyToStrings(raw["analogCodes"])

	return record, nil
}

func anyToInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

func anyToFloatPtr(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f
		}
	}
	return nil
}

func anyToStringPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return util.StringPtr(s)
}

func anyToStrings(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func anyToFlatCodes(v any) internal.FlatCodes {
	flat := internal.FlatCodes{}
	m, ok := v.(map[string]any)
	if !ok {
		return flat
	}
	flat.Elcom = anyToStringPtr(m["elcom"])
	flat.Manufacturer = anyToStringPtr(m["manufacturer"])
	flat.Raec = anyToStringPtr(m["raec"])
	flat.PC = anyToStringPtr(m["pc"])
	flat.Etm = anyToStringPtr(m["etm"])
	return flat
}
