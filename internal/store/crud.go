package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"procurement-api/internal/apperr"
)

// CRUDClient talks to the external CRUD data service configured by URL_DATA_CRUD.
//
//	GET    {base}/{collection}?field=value&search=..&sort=..&limit=..&offset=..
//	GET    {base}/{collection}/{id}
//	POST   {base}/{collection}
//	PUT    {base}/{collection}/{id}
//	DELETE {base}/{collection}/{id}
//
// Responses may be wrapped in {success, data, error, meta} or be bare JSON.
type CRUDClient struct {
	BaseURL    string
	HTTPClient *http.Client
	now        func() time.Time
}

func NewCRUDClient(baseURL string, timeout time.Duration) *CRUDClient {
	return &CRUDClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

type crudEnvelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
	Meta    struct {
		Total *int `json:"total"`
	} `json:"meta"`
}

func (c *CRUDClient) List(ctx context.Context, collection string, q Query) ([]Record, int, error) {
	params := url.Values{}
	for k, v := range q.Filters {
		params.Set(k, v)
	}
	if q.Search != "" {
		params.Set("search", q.Search)
		if len(q.SearchFields) > 0 {
			params.Set("search_fields", strings.Join(q.SearchFields, ","))
		}
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	var records []Record
	meta, header, err := c.do(ctx, http.MethodGet, c.url(collection, "", params), nil, &records)
	if err != nil {
		return nil, 0, err
	}
	total := len(records)
	if meta.Meta.Total != nil {
		total = *meta.Meta.Total
	} else if h := header.Get("X-Total-Count"); h != "" {
		if n, err := strconv.Atoi(h); err == nil {
			total = n
		}
	}
	return records, total, nil
}

func (c *CRUDClient) Get(ctx context.Context, collection, id string) (Record, error) {
	var rec Record
	if _, _, err := c.do(ctx, http.MethodGet, c.url(collection, id, nil), nil, &rec); err != nil {
		return nil, c.annotate(err, collection, id)
	}
	if rec == nil {
		return nil, apperr.NotFound(singular(collection), id)
	}
	return rec, nil
}

func (c *CRUDClient) Create(ctx context.Context, collection string, rec Record) (Record, error) {
	in := stamp(rec, c.now())
	var out Record
	if _, _, err := c.do(ctx, http.MethodPost, c.url(collection, "", nil), in, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = in
	}
	return out, nil
}

func (c *CRUDClient) Update(ctx context.Context, collection, id string, rec Record) (Record, error) {
	in := rec.Clone()
	if in == nil {
		in = Record{}
	}
	in["id"] = id
	in["updated_at"] = c.now().UTC().Format(time.RFC3339Nano)
	var out Record
	if _, _, err := c.do(ctx, http.MethodPut, c.url(collection, id, nil), in, &out); err != nil {
		return nil, c.annotate(err, collection, id)
	}
	if out == nil {
		out = in
	}
	return out, nil
}

func (c *CRUDClient) Delete(ctx context.Context, collection, id string) error {
	_, _, err := c.do(ctx, http.MethodDelete, c.url(collection, id, nil), nil, nil)
	return c.annotate(err, collection, id)
}

// Ping checks the service answers at all; any HTTP response counts.
func (c *CRUDClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return apperr.Upstream(err, "crud service unreachable")
	}
	resp.Body.Close()
	return nil
}

func (c *CRUDClient) url(collection, id string, params url.Values) string {
	u := c.BaseURL + "/" + url.PathEscape(collection)
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// annotate replaces a bare not-found from the service with one naming the entity.
func (c *CRUDClient) annotate(err error, collection, id string) error {
	if err != nil && apperr.IsNotFound(err) {
		return apperr.NotFound(singular(collection), id)
	}
	return err
}

func (c *CRUDClient) do(ctx context.Context, method, rawURL string, body any, out any) (crudEnvelope, http.Header, error) {
	var env crudEnvelope
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return env, nil, apperr.Internal(err, "encode request")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return env, nil, apperr.Internal(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return env, nil, apperr.Upstream(err, "crud service request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return env, resp.Header, apperr.Upstream(err, "read crud response")
	}

	if resp.StatusCode >= 300 {
		return env, resp.Header, statusError(resp.StatusCode, payload)
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return env, resp.Header, nil
	}

	data := payload
	if bytes.HasPrefix(bytes.TrimSpace(payload), []byte("{")) {
		if err := json.Unmarshal(payload, &env); err == nil && env.Success != nil {
			if !*env.Success {
				return env, resp.Header, apperr.Upstream(errors.New(upstreamMessage(env.Error)), "crud service reported failure")
			}
			data = env.Data
		}
	}
	if len(data) == 0 || string(data) == "null" {
		return env, resp.Header, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return env, resp.Header, apperr.Upstream(err, "decode crud response")
	}
	return env, resp.Header, nil
}

func statusError(status int, payload []byte) error {
	msg := strings.TrimSpace(string(payload))
	var env crudEnvelope
	if err := json.Unmarshal(payload, &env); err == nil && len(env.Error) > 0 {
		msg = upstreamMessage(env.Error)
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch status {
	case http.StatusNotFound:
		return apperr.NotFound("record", msg)
	case http.StatusConflict:
		return apperr.Conflict("%s", msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperr.Validation("%s", msg)
	default:
		return apperr.Upstream(fmt.Errorf("status %d", status), "%s", msg)
	}
}

// upstreamMessage accepts an error given as a string or as {message}.
func upstreamMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return strings.TrimSpace(string(raw))
}
