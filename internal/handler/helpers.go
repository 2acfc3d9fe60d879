package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/basin/internal/model"
	"github.com/faucetdb/basin/internal/query"
)

// UserFunc returns the id of the user making a request. It is stamped into
// the audit fields of every write.
type UserFunc func(r *http.Request) string

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an envelope with empty data and the given message.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, model.Envelope[[]any]{Data: []any{}, Error: message})
}

// statusFor maps an envelope error kind to an HTTP status code.
func statusFor(kind model.ErrorKind, okStatus int) int {
	switch kind {
	case model.KindInvalid:
		return http.StatusBadRequest
	case model.KindDuplicate:
		return http.StatusConflict
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindInternal:
		return http.StatusInternalServerError
	}
	return okStatus
}

// writeEnvelope writes a service envelope with the status its error kind
// maps to, or okStatus on success.
func writeEnvelope[T any](w http.ResponseWriter, okStatus int, env model.Envelope[T]) {
	writeJSON(w, statusFor(env.Kind, okStatus), env)
}

// writePaged is writeEnvelope for list envelopes. The total is also exposed
// as the X-Total-Count header.
func writePaged[T any](w http.ResponseWriter, env model.PagedEnvelope[T]) {
	if env.OK() {
		w.Header().Set("X-Total-Count", strconv.FormatInt(env.Total, 10))
	}
	writeJSON(w, statusFor(env.Kind, http.StatusOK), env)
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// queryString extracts a string query parameter.
func queryString(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryFields parses the comma-separated "fields" parameter used as the
// selection of reads and the returning columns of writes.
func queryFields(r *http.Request) ([]string, error) {
	return query.ParseFieldSelection(queryString(r, "fields"))
}

// pageParams reads page and limit, clamping limit to the supported range.
func pageParams(r *http.Request) (page, limit int) {
	page = queryInt(r, "page", query.DefaultPage)
	if page < 1 {
		page = query.DefaultPage
	}
	limit = clampInt(queryInt(r, "limit", query.DefaultLimit), 1, query.MaxLimit)
	return page, limit
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, param string) (int64, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", param, raw)
	}
	return id, nil
}

// parseIDs parses a comma-separated list of positive integer ids.
func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseDocumentsBody reads the request body as a list of document payloads.
// Accepts a single JSON object, an array of objects, or {"documents": [...]}.
func parseDocumentsBody(r *http.Request) ([]map[string]interface{}, error) {
	var raw json.RawMessage
	if err := readJSON(r, &raw); err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	var wrapped struct {
		Documents []map[string]interface{} `json:"documents"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Documents) > 0 {
		return wrapped.Documents, nil
	}

	var docs []map[string]interface{}
	if err := json.Unmarshal(raw, &docs); err == nil && len(docs) > 0 {
		return docs, nil
	}

	var single map[string]interface{}
	if err := json.Unmarshal(raw, &single); err == nil && single != nil {
		if _, isWrapper := single["documents"]; !isWrapper {
			return []map[string]interface{}{single}, nil
		}
	}

	return nil, fmt.Errorf("expected JSON object, array, or {\"documents\": [...]}")
}

// clampInt constrains val to be within [lo, hi].
func clampInt(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
