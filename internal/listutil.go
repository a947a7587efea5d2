package internal

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"procurement-api/internal/apperr"
	"procurement-api/internal/logging"
	"procurement-api/internal/store"

	"go.uber.org/zap"
)

const (
	defaultLimit = 50
	maxLimit     = 200
	maxBodyBytes = 1 << 20
)

// filterParams are the query parameters copied verbatim into store filters.
var filterParams = []string{"status", "category", "vendor_id", "tender_id"}

// parseListParams parses limit, offset, q, sort and the filter parameters.
// Defaults: limit=50 (max 200), offset=0.
func parseListParams(r *http.Request) store.Query {
	values := r.URL.Query()

	limit := defaultLimit
	if s := strings.TrimSpace(values.Get("limit")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			if v > maxLimit {
				v = maxLimit
			}
			limit = v
		}
	}

	offset := 0
	if s := strings.TrimSpace(values.Get("offset")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	q := store.Query{
		Search: strings.TrimSpace(values.Get("q")),
		Sort:   strings.TrimSpace(values.Get("sort")),
		Limit:  limit,
		Offset: offset,
	}
	for _, key := range filterParams {
		if v := strings.TrimSpace(values.Get(key)); v != "" {
			if q.Filters == nil {
				q.Filters = map[string]string{}
			}
			q.Filters[key] = v
		}
	}
	return q
}

// sendListResponse writes a page of results with its pagination metadata.
func sendListResponse[T any](w http.ResponseWriter, data []T, total int, q store.Query) {
	if data == nil {
		data = []T{}
	}
	apperr.WriteList(w, data, total, q.Limit, q.Offset)
}

// decodeJSON reads a JSON request body into v. Unknown fields are ignored.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return &apperr.AppError{Status: http.StatusBadRequest, Code: apperr.CodeInvalidJSON, Message: "request body is required"}
	}
	return invalidJSON(err)
}

// decodeOptionalJSON is decodeJSON for actions whose body may be empty.
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return invalidJSON(err)
}

func invalidJSON(err error) error {
	if err == nil {
		return nil
	}
	return &apperr.AppError{Status: http.StatusBadRequest, Code: apperr.CodeInvalidJSON, Message: "invalid JSON body", Err: err}
}

// sendError writes err and logs it when it is a server side failure.
func sendError(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.StatusOf(err) >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
	}
	apperr.WriteError(w, err)
}
