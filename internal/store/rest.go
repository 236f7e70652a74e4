package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// RESTStore talks to a remote table store speaking the filter grammar as
// query parameters (GET /table?field=eq.value&field=in.(a,b)). Mutations ask
// for the resulting representation back so callers observe the stored row.
type RESTStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRESTStore builds a client for the table store at baseURL.
func NewRESTStore(baseURL, apiKey string, timeout time.Duration) *RESTStore {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RESTStore{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *RESTStore) Insert(ctx context.Context, table string, record Row) (Row, error) {
	rows, err := s.do(ctx, http.MethodPost, table, nil, record, "return=representation")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return record, nil
	}
	return rows[0], nil
}

func (s *RESTStore) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	return s.do(ctx, http.MethodGet, table, &q, nil, "")
}

func (s *RESTStore) Update(ctx context.Context, table string, q Query, patch Row) ([]Row, error) {
	return s.do(ctx, http.MethodPatch, table, &q, patch, "return=representation")
}

func (s *RESTStore) Delete(ctx context.Context, table string, q Query) error {
	_, err := s.do(ctx, http.MethodDelete, table, &q, nil, "")
	return err
}

func (s *RESTStore) Upsert(ctx context.Context, table string, record Row, conflictColumns ...string) (Row, error) {
	q := Query{}
	u := table
	if len(conflictColumns) > 0 {
		u = fmt.Sprintf("%s?on_conflict=%s", table, url.QueryEscape(strings.Join(conflictColumns, ",")))
	}
	rows, err := s.do(ctx, http.MethodPost, u, &q, record, "resolution=merge-duplicates,return=representation")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return record, nil
	}
	return rows[0], nil
}

func (s *RESTStore) do(ctx context.Context, method, table string, q *Query, body any, prefer string) ([]Row, error) {
	endpoint := fmt.Sprintf("%s/%s", s.baseURL, table)
	params := url.Values{}
	if q != nil {
		for _, f := range q.Filters {
			if f.Op == OpIn {
				params.Add(f.Field, fmt.Sprintf("in.(%s)", strings.Join(f.Values, ",")))
			} else {
				params.Add(f.Field, fmt.Sprintf("%s.%s", f.Op, f.Values[0]))
			}
		}
		if q.OrderBy != "" {
			dir := "asc"
			if q.Descending {
				dir = "desc"
			}
			params.Set("order", fmt.Sprintf("%s.%s", q.OrderBy, dir))
		}
		if q.Limit > 0 {
			params.Set("limit", strconv.Itoa(q.Limit))
		}
		if q.Offset > 0 {
			params.Set("offset", strconv.Itoa(q.Offset))
		}
	}
	if encoded := params.Encode(); encoded != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + encoded
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "building store request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, table)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("store returned %d for %s %s: %s", resp.StatusCode, method, table, snippet)
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading store response")
	}
	if len(data) == 0 {
		return nil, nil
	}

	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		// Single-object responses come back for keyed reads.
		var row Row
		if err2 := json.Unmarshal(data, &row); err2 != nil {
			return nil, errors.Wrap(err, "decoding store response")
		}
		rows = []Row{row}
	}
	return rows, nil
}
