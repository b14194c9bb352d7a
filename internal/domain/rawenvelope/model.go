package rawenvelope

import (
	"context"
	"encoding/json"
	"time"
)

// Envelope is one append-only row in the RAW archive: one per upstream
// call, verbatim, never mutated, never rejected as a duplicate (§3, §4.4).
// This deliberately diverges from the teacher's dedup-cache raw payload
// table — see DESIGN.md.
type Envelope struct {
	ID int64

	Endpoint        string
	RequestedParams json.RawMessage
	StatusCode      int
	ResponseHeaders json.RawMessage
	Body            json.RawMessage
	Errors          json.RawMessage
	ResultsCount    int
	FetchedAt       time.Time
}

// Repository appends RAW rows. Insert never fails on duplicate content: the
// same endpoint+params pair may legitimately be fetched many times.
type Repository interface {
	Insert(ctx context.Context, e Envelope) (int64, error)
	ListByEndpoint(ctx context.Context, endpoint string, since time.Time, limit int) ([]Envelope, error)
	CountSince(ctx context.Context, endpoint string, since time.Time) (int, error)
}
