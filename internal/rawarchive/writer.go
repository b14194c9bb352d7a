// Package rawarchive appends verbatim upstream responses to the RAW
// provenance log. It never mutates a row and never rejects a duplicate
// fetch — the same endpoint and parameters may legitimately be recorded
// many times over the life of the pipeline (§4.4).
package rawarchive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brightpitch/fixtureflow/internal/domain/rawenvelope"
	"github.com/brightpitch/fixtureflow/internal/upstream"
)

type Writer struct {
	repo rawenvelope.Repository
}

func NewWriter(repo rawenvelope.Repository) *Writer {
	return &Writer{repo: repo}
}

// Record appends one RAW row for a completed upstream call. It is safe to
// call for every outcome the client returns, including envelope_error —
// the audit log exists precisely to capture what the provider actually
// sent back.
func (w *Writer) Record(ctx context.Context, endpoint string, params map[string]string, result upstream.Result) (int64, error) {
	requestedParams, err := canonicalParams(params)
	if err != nil {
		return 0, fmt.Errorf("canonicalize requested params endpoint=%s: %w", endpoint, err)
	}

	headers, err := json.Marshal(result.Headers)
	if err != nil {
		return 0, fmt.Errorf("marshal response headers endpoint=%s: %w", endpoint, err)
	}

	envelope := rawenvelope.Envelope{
		Endpoint:        endpoint,
		RequestedParams: requestedParams,
		StatusCode:      result.StatusCode,
		ResponseHeaders: headers,
		Body:            result.Body,
		Errors:          result.Envelope.Errors,
		ResultsCount:    resultsCount(result.Envelope.Results),
		FetchedAt:       fetchedAtOrNow(result.FetchedAt),
	}

	id, err := w.repo.Insert(ctx, envelope)
	if err != nil {
		return 0, fmt.Errorf("insert raw envelope endpoint=%s: %w", endpoint, err)
	}
	return id, nil
}

// canonicalParams relies on encoding/json always marshaling map[string]string
// keys in sorted order, which gives a stable, comparable form for the same
// logical request regardless of the order params were built in.
func canonicalParams(params map[string]string) (json.RawMessage, error) {
	if len(params) == 0 {
		return json.RawMessage("{}"), nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func resultsCount(results json.RawMessage) int {
	if len(results) == 0 {
		return 0
	}
	var asArray []json.RawMessage
	if err := json.Unmarshal(results, &asArray); err == nil {
		return len(asArray)
	}
	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(results, &asObject); err == nil {
		return 1
	}
	return 0
}

func fetchedAtOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
