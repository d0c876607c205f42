// Package http exposes the ledger as a JSON REST API.
//
// This file implements utilities for parsing and validating request data:
// JSON bodies, month selectors and journal filters from query strings.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fortuna/internal/core"
	"fortuna/internal/storage"
)

// maxBodyBytes bounds every JSON body. Snapshots use maxSnapshotBytes.
const (
	maxBodyBytes     = 1 << 20
	maxSnapshotBytes = 32 << 20
)

// errBadRequest marks malformed requests, as opposed to well-formed requests
// the ledger rejects.
var errBadRequest = errors.New("bad request")

func errBadRequestf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using now
// for missing values. Malformed values are an error rather than a silent default.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, fmt.Errorf("%w: year %q", errBadRequest, v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, fmt.Errorf("%w: month %q", errBadRequest, v)
		}
		params.Month = m
	}
	if params.Month < 1 || params.Month > 12 {
		return MonthParams{}, fmt.Errorf("%w: month %d", core.ErrInvalidDate, params.Month)
	}
	return params, nil
}

// decodeJSON reads one JSON object into dst, rejecting unknown fields and
// trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		// Domain codecs (Money, Date) report their own error kinds.
		if errors.Is(err, core.ErrInvalidAmount) || errors.Is(err, core.ErrInvalidDate) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON object", errBadRequest)
	}
	return nil
}

// parseBoolParam reads an optional boolean query parameter.
func parseBoolParam(query url.Values, key string) (bool, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", errBadRequest, key, v)
	}
	return b, nil
}

// parseDateParam reads an optional YYYY-MM-DD query parameter.
func parseDateParam(query url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(v)
}

// ParseTransactionFilter builds a journal filter from query parameters:
// account_id, category_id, subscription_id, transfer_id, kind (repeatable or
// comma separated), from (inclusive), to (exclusive) and limit.
func ParseTransactionFilter(query url.Values) (storage.TransactionFilter, error) {
	f := storage.TransactionFilter{
		AccountID:      strings.TrimSpace(query.Get("account_id")),
		CategoryID:     strings.TrimSpace(query.Get("category_id")),
		SubscriptionID: strings.TrimSpace(query.Get("subscription_id")),
		TransferID:     strings.TrimSpace(query.Get("transfer_id")),
	}
	for _, raw := range query["kind"] {
		for _, k := range strings.Split(raw, ",") {
			kind := core.TransactionKind(strings.TrimSpace(k))
			if kind == "" {
				continue
			}
			if err := kind.Validate(); err != nil {
				return storage.TransactionFilter{}, err
			}
			f.Kinds = append(f.Kinds, kind)
		}
	}

	var err error
	if f.From, err = parseDateParam(query, "from"); err != nil {
		return storage.TransactionFilter{}, err
	}
	if f.To, err = parseDateParam(query, "to"); err != nil {
		return storage.TransactionFilter{}, err
	}
	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return storage.TransactionFilter{}, fmt.Errorf("%w: limit %q", errBadRequest, v)
		}
		f.Limit = n
	}
	return f, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
