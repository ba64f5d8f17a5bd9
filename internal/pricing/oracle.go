package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"positionScope/internal/resilience"
)

func (r *Registry) fetchOracle(ctx context.Context, src Oracle) (float64, error) {
	return resilience.WithTimeout(ctx, r.oracleTimeout, "price oracle timeout", func(ctx context.Context) (float64, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := r.httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return 0, fmt.Errorf("oracle status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return 0, err
		}
		price, err := ExtractNumber(body, src.Field)
		if err != nil {
			return 0, err
		}
		if err := checkPrice(price); err != nil {
			return 0, fmt.Errorf("oracle: %w", err)
		}
		return price, nil
	})
}

// checkPrice rejects values that cannot be used as a USD price.
func checkPrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return fmt.Errorf("non-finite price %v", price)
	}
	if price < 0 {
		return fmt.Errorf("negative price %v", price)
	}
	return nil
}

// ExtractNumber reads the number at a dot separated path of a JSON document.
// Numbers encoded as strings are accepted.
func ExtractNumber(body []byte, field string) (float64, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode json: %w", err)
	}

	node := doc
	if field = strings.TrimSpace(field); field != "" {
		for _, part := range strings.Split(field, ".") {
			obj, ok := node.(map[string]any)
			if !ok {
				return 0, fmt.Errorf("field %q: not an object at %q", field, part)
			}
			node, ok = obj[part]
			if !ok {
				return 0, fmt.Errorf("field %q: missing %q", field, part)
			}
		}
	}

	switch v := node.(type) {
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("field %q is %T, not a number", field, node)
	}
}
