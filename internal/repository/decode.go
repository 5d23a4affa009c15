package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
)

// decodeList accepts either a bare JSON array or an object holding the
// array under key, and decodes it into out
func decodeList[T any](raw json.RawMessage, key string, out *[]T) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		*out = []T{}
		return nil
	}

	if raw[0] != '[' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return apperrors.Server("Unexpected response from server", http.StatusOK)
		}
		inner, ok := wrapper[key]
		if !ok {
			*out = []T{}
			return nil
		}
		raw = inner
	}

	items := []T{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return apperrors.Server("Unexpected response from server", http.StatusOK)
	}
	*out = items
	return nil
}

// fetchList GETs path and decodes a list response
func fetchList[T any](ctx context.Context, c *Client, path string, query url.Values, key string) ([]T, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, path, query, nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", key, err)
	}

	var items []T
	if err := decodeList(raw, key, &items); err != nil {
		return nil, err
	}
	return items, nil
}
