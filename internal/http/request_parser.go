// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for decoding request bodies and path
// parameters.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"pmpv/internal/core"
)

const (
	maxJSONBody   = 1 << 20  // 1 MiB
	maxUploadBody = 10 << 20 // 10 MiB
)

var errBadRequest = errors.New("bad request")

// decodeJSON reads a single JSON object into dst. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// readUpload reads a raw upload body up to maxUploadBody bytes.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", errBadRequest)
	}
	return data, nil
}

// pathInt parses a positive integer path value.
func pathInt(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return v, nil
}

// pathSlot parses and validates the {slot} path value.
func pathSlot(r *http.Request) (int, error) {
	raw := r.PathValue("slot")
	slot, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid slot %q", errBadRequest, raw)
	}
	return slot, core.ValidateSlot(slot)
}

// queryBool reads a boolean query parameter, false when absent.
func queryBool(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return v, nil
}

// quarterQuery reads start_month and leap from the query string.
func quarterQuery(r *http.Request, def core.QuarterConfig) (core.QuarterConfig, error) {
	leap, err := queryBool(r, "leap")
	if err != nil {
		return core.QuarterConfig{}, err
	}
	return settingsRequest{StartMonth: r.URL.Query().Get("start_month"), IsLeapYear: leap}.config(def), nil
}
