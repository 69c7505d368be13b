// Package http provides HTTP server and handler implementations.
//
// This file holds the helpers that turn query strings, path parameters and
// JSON bodies into validated domain values.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"gastos/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
)

const (
	maxBodyBytes    = 64 << 10
	maxUserIDLen    = 128
	maxFilterLen    = 200
	queryDateLayout = "2006-01-02"
)

// errBadRequest marks malformed input that maps to 400.
var errBadRequest = errors.New("bad request")

var strictPolicy = bluemonday.StrictPolicy()

// sanitizeInput strips markup and control characters from free text. Entities
// escaped by the policy are decoded again so "Café & Co" survives intact.
func sanitizeInput(s string) string {
	s = html.UnescapeString(strictPolicy.Sanitize(s))
	s = strings.Map(func(r rune) rune {
		if r == '<' || r == '>' || (unicode.IsControl(r) && r != '\t') {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// userIDParam returns the {userID} path parameter.
func userIDParam(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "userID"))
	if id == "" || len(id) > maxUserIDLen || strings.ContainsFunc(id, unicode.IsControl) {
		return "", core.ErrInvalidUserID
	}
	return id, nil
}

// parseQueryDate parses a yyyy-MM-dd query value as midnight in loc.
func parseQueryDate(query url.Values, key string, loc *time.Location) (time.Time, bool, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return time.Time{}, false, nil
	}
	t, err := time.ParseInLocation(queryDateLayout, v, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %s must be yyyy-mm-dd", core.ErrInvalidPeriod, key)
	}
	return t, true, nil
}

// ParsePeriod reads ?period= or an explicit ?start=&end= pair. An explicit
// range wins over the named period.
func ParsePeriod(query url.Values, loc *time.Location) (core.Period, error) {
	start, hasStart, err := parseQueryDate(query, "start", loc)
	if err != nil {
		return core.Period{}, err
	}
	end, hasEnd, err := parseQueryDate(query, "end", loc)
	if err != nil {
		return core.Period{}, err
	}
	switch {
	case hasStart && hasEnd:
		return core.NewCustomPeriod(start, end), nil
	case hasStart || hasEnd:
		return core.Period{}, fmt.Errorf("%w: start and end must be given together", core.ErrInvalidPeriod)
	}

	kind, err := core.ParsePeriodKind(query.Get("period"))
	if err != nil {
		return core.Period{}, err
	}
	if kind == core.CustomRange {
		return core.Period{}, fmt.Errorf("%w: custom period needs start and end", core.ErrInvalidPeriod)
	}
	return core.Period{Kind: kind}, nil
}

// ParseExportRange returns nil when neither start nor end is set, leaving
// the default range to the service. A lone start runs until now.
func ParseExportRange(query url.Values, now time.Time, loc *time.Location) (*core.DateRange, error) {
	start, hasStart, err := parseQueryDate(query, "start", loc)
	if err != nil {
		return nil, err
	}
	end, hasEnd, err := parseQueryDate(query, "end", loc)
	if err != nil {
		return nil, err
	}
	switch {
	case !hasStart && !hasEnd:
		return nil, nil
	case !hasStart:
		return nil, fmt.Errorf("%w: end without start", core.ErrInvalidPeriod)
	case !hasEnd:
		end = now.In(loc)
	default:
		end = core.EndOfDay(end)
	}
	if start.After(end) {
		return nil, fmt.Errorf("%w: start is after end", core.ErrInvalidPeriod)
	}
	return &core.DateRange{Start: start, End: end}, nil
}

// ParseHistoryFilter reads ?q=, ?category= and ?payment=. Empty values and
// "all" leave the criterion unset.
func ParseHistoryFilter(query url.Values) core.HistoryFilter {
	get := func(key string) string {
		v := sanitizeInput(query.Get(key))
		if runes := []rune(v); len(runes) > maxFilterLen {
			v = string(runes[:maxFilterLen])
		}
		if strings.EqualFold(v, "all") {
			return ""
		}
		return v
	}
	return core.HistoryFilter{
		Search:   get("q"),
		Category: get("category"),
		Payment:  get("payment"),
	}
}

// decodeJSONBody decodes a single JSON object into dst, rejecting unknown
// fields, trailing data and bodies over maxBodyBytes.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: body exceeds %d bytes", errBadRequest, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", errBadRequest)
		case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrNegativeAmount):
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON object", errBadRequest)
	}
	return nil
}

// parseTransactionUpdate decodes the body of PUT .../expenses/{id}.
func parseTransactionUpdate(w http.ResponseWriter, r *http.Request) (core.TransactionUpdate, error) {
	var u core.TransactionUpdate
	if err := decodeJSONBody(w, r, &u); err != nil {
		return core.TransactionUpdate{}, err
	}
	u.PaymentMethod = sanitizeInput(u.PaymentMethod)
	if err := u.Validate(); err != nil {
		return core.TransactionUpdate{}, err
	}
	return u, nil
}

// parsePreferences decodes and validates the body of PUT .../preferences.
func parsePreferences(w http.ResponseWriter, r *http.Request) (core.Preferences, error) {
	var p core.Preferences
	if err := decodeJSONBody(w, r, &p); err != nil {
		return core.Preferences{}, err
	}
	p = p.Normalized()
	if err := p.Validate(); err != nil {
		return core.Preferences{}, err
	}
	return p, nil
}
