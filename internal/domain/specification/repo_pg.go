package specification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ehr/labspec/internal/platform/db"
)

var tracer = otel.Tracer("github.com/ehr/labspec/internal/domain/specification")

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type catalogPG struct{ pool *pgxpool.Pool }

// NewCatalogPG returns a read-only Catalog over the tenant's specification tables.
func NewCatalogPG(pool *pgxpool.Pool) Catalog {
	return &catalogPG{pool: pool}
}

func (r *catalogPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const staticCols = `uid, container_uid, title, client_uid, sample_type_uid, service_uid, method_uid, created_at, updated_at`

const dynamicCols = `uid, container_uid, title, client_uid, rows, created_at, updated_at`

func scanStatic(row pgx.Row) (*StaticSpecification, error) {
	var s StaticSpecification
	err := row.Scan(&s.UID, &s.ContainerUID, &s.Title, &s.ClientUID, &s.SampleTypeUID,
		&s.ServiceUID, &s.MethodUID, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func scanDynamic(row pgx.Row) (*DynamicSpecification, error) {
	var d DynamicSpecification
	var raw []byte
	if err := row.Scan(&d.UID, &d.ContainerUID, &d.Title, &d.ClientUID, &raw, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return &d, err
	}
	decodeRows(&d, raw)
	return &d, nil
}

// decodeRows fills d.Rows from stored JSON. Malformed or missing data marks
// the rows unavailable instead of failing the whole listing.
func decodeRows(d *DynamicSpecification, raw []byte) {
	if len(raw) == 0 {
		d.RowsUnavailable = true
		return
	}
	var rows []Row
	if err := json.Unmarshal(raw, &rows); err != nil {
		d.RowsUnavailable = true
		return
	}
	d.Rows = rows
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (r *catalogPG) FindStatic(ctx context.Context, q StaticQuery) (result []*StaticSpecification, err error) {
	ctx, span := tracer.Start(ctx, "specification.FindStatic", trace.WithAttributes(
		attribute.StringSlice("spec.client_uids", q.ClientUIDs),
		attribute.StringSlice("spec.sample_type_uids", q.SampleTypeUIDs),
	))
	defer func() { endSpan(span, err) }()

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+staticCols+` FROM static_specification
		WHERE client_uid = ANY($1) AND sample_type_uid = ANY($2)
		ORDER BY title, uid`, q.ClientUIDs, q.SampleTypeUIDs)
	if err != nil {
		return nil, fmt.Errorf("query static specifications: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanStatic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan static specification: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate static specifications: %w", err)
	}
	span.SetAttributes(attribute.Int("spec.results", len(result)))
	return result, nil
}

func (r *catalogPG) ListStatic(ctx context.Context, limit, offset int) ([]*StaticSpecification, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM static_specification`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count static specifications: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+staticCols+` FROM static_specification
		ORDER BY title, uid LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list static specifications: %w", err)
	}
	defer rows.Close()
	var items []*StaticSpecification
	for rows.Next() {
		s, err := scanStatic(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *catalogPG) ListDynamic(ctx context.Context) (result []*DynamicSpecification, err error) {
	ctx, span := tracer.Start(ctx, "specification.ListDynamic")
	defer func() { endSpan(span, err) }()

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+dynamicCols+` FROM dynamic_specification ORDER BY created_at, uid`)
	if err != nil {
		return nil, fmt.Errorf("query dynamic specifications: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		d, err := scanDynamic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dynamic specification: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dynamic specifications: %w", err)
	}
	span.SetAttributes(attribute.Int("spec.results", len(result)))
	return result, nil
}

func (r *catalogPG) GetDynamic(ctx context.Context, uid string) (*DynamicSpecification, error) {
	d, err := scanDynamic(r.conn(ctx).QueryRow(ctx, `SELECT `+dynamicCols+` FROM dynamic_specification WHERE uid = $1`, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dynamic specification %s: %w", uid, err)
	}
	return d, nil
}

// Walk visits containers in title order and, within each, static records then
// dynamic records, both in title order. Every container is loaded before fn
// runs so callbacks never hold a connection busy.
func (r *catalogPG) Walk(ctx context.Context, fn func(Record) error) (err error) {
	ctx, span := tracer.Start(ctx, "specification.Walk")
	defer func() { endSpan(span, err) }()

	containers, err := r.containers(ctx)
	if err != nil {
		return err
	}
	for _, c := range containers {
		records, err := r.containerRecords(ctx, c.UID)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := fn(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *catalogPG) containers(ctx context.Context) ([]Container, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT uid, title FROM spec_container ORDER BY title, uid`)
	if err != nil {
		return nil, fmt.Errorf("query specification containers: %w", err)
	}
	defer rows.Close()
	var out []Container
	for rows.Next() {
		var c Container
		if err := rows.Scan(&c.UID, &c.Title); err != nil {
			return nil, fmt.Errorf("scan specification container: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *catalogPG) containerRecords(ctx context.Context, containerUID string) ([]Record, error) {
	var out []Record

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+staticCols+` FROM static_specification
		WHERE container_uid = $1 ORDER BY title, uid`, containerUID)
	if err != nil {
		return nil, fmt.Errorf("query container %s static records: %w", containerUID, err)
	}
	for rows.Next() {
		s, err := scanStatic(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.conn(ctx).Query(ctx, `SELECT `+dynamicCols+` FROM dynamic_specification
		WHERE container_uid = $1 ORDER BY title, uid`, containerUID)
	if err != nil {
		return nil, fmt.Errorf("query container %s dynamic records: %w", containerUID, err)
	}
	defer rows.Close()
	for rows.Next() {
		d, err := scanDynamic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
