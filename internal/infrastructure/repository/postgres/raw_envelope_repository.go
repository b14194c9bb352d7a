package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/rawenvelope"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type rawEnvelopeTableModel struct {
	Endpoint        string `db:"endpoint"`
	RequestedParams []byte `db:"requested_params"`
	StatusCode      int    `db:"status_code"`
	ResponseHeaders []byte `db:"response_headers"`
	Body            []byte `db:"body"`
	Errors          []byte `db:"errors"`
	ResultsCount    int    `db:"results_count"`
	FetchedAt       time.Time `db:"fetched_at"`
}

// RawEnvelopeRepository is strictly append-only: Insert never attempts an
// ON CONFLICT clause, unlike the rest of this package. Re-fetching the same
// endpoint and parameters is expected and every response is kept verbatim.
type RawEnvelopeRepository struct {
	db *sqlx.DB
}

func NewRawEnvelopeRepository(db *sqlx.DB) *RawEnvelopeRepository {
	return &RawEnvelopeRepository{db: db}
}

func (r *RawEnvelopeRepository) Insert(ctx context.Context, e rawenvelope.Envelope) (int64, error) {
	model := rawEnvelopeTableModel{
		Endpoint:        e.Endpoint,
		RequestedParams: jsonOrEmptyObject(e.RequestedParams),
		StatusCode:      e.StatusCode,
		ResponseHeaders: jsonOrEmptyObject(e.ResponseHeaders),
		Body:            jsonOrEmptyObject(e.Body),
		Errors:          jsonOrEmptyArray(e.Errors),
		ResultsCount:    e.ResultsCount,
		FetchedAt:       e.FetchedAt,
	}

	query, args, err := qb.InsertModel("raw_envelopes", model, "RETURNING id")
	if err != nil {
		return 0, fmt.Errorf("build insert raw envelope query: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert raw envelope endpoint=%s: %w", e.Endpoint, err)
	}
	return id, nil
}

func (r *RawEnvelopeRepository) ListByEndpoint(ctx context.Context, endpoint string, since time.Time, limit int) ([]rawenvelope.Envelope, error) {
	query, args, err := qb.Select("id", "endpoint", "requested_params", "status_code", "response_headers",
		"body", "errors", "results_count", "fetched_at").
		From("raw_envelopes").
		Where(qb.Eq("endpoint", endpoint), qb.Expr("fetched_at >= ?", since)).
		OrderBy("fetched_at DESC").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list raw envelopes query: %w", err)
	}

	type row struct {
		ID              int64     `db:"id"`
		Endpoint        string    `db:"endpoint"`
		RequestedParams []byte    `db:"requested_params"`
		StatusCode      int       `db:"status_code"`
		ResponseHeaders []byte    `db:"response_headers"`
		Body            []byte    `db:"body"`
		Errors          []byte    `db:"errors"`
		ResultsCount    int       `db:"results_count"`
		FetchedAt       time.Time `db:"fetched_at"`
	}

	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list raw envelopes endpoint=%s: %w", endpoint, err)
	}

	out := make([]rawenvelope.Envelope, 0, len(rows))
	for _, rr := range rows {
		out = append(out, rawenvelope.Envelope{
			ID: rr.ID, Endpoint: rr.Endpoint, RequestedParams: rr.RequestedParams,
			StatusCode: rr.StatusCode, ResponseHeaders: rr.ResponseHeaders, Body: rr.Body,
			Errors: rr.Errors, ResultsCount: rr.ResultsCount, FetchedAt: rr.FetchedAt,
		})
	}
	return out, nil
}

func (r *RawEnvelopeRepository) CountSince(ctx context.Context, endpoint string, since time.Time) (int, error) {
	query, args, err := qb.Select("COUNT(1)").From("raw_envelopes").
		Where(qb.Eq("endpoint", endpoint), qb.Expr("fetched_at >= ?", since)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count raw envelopes query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count raw envelopes endpoint=%s: %w", endpoint, err)
	}
	return count, nil
}
