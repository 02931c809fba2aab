package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/labspec/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type storePG struct{ pool *pgxpool.Pool }

func NewStorePG(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (s *storePG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return s.pool
}

func (s *storePG) CreateOrder(ctx context.Context, o *Order) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO lab_order (uid, client_uid, patient_dob, patient_sex, date_collected, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		o.UID, o.ClientUID, o.PatientDOB, o.PatientSex, o.DateCollected, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.UID, err)
	}
	return nil
}

func (s *storePG) GetOrder(ctx context.Context, uid string) (*Order, error) {
	var o Order
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT uid, client_uid, patient_dob, patient_sex, date_collected, created_at
		FROM lab_order WHERE uid = $1`, uid).
		Scan(&o.UID, &o.ClientUID, &o.PatientDOB, &o.PatientSex, &o.DateCollected, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", uid, err)
	}
	return &o, nil
}

func (s *storePG) CreateAnalysis(ctx context.Context, rec *Record) error {
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	if rec.Schema == "" {
		rec.Schema = SchemaCurrent
	}
	rangeJSON, err := marshalRange(rec.ResultsRange)
	if err != nil {
		return err
	}
	_, err = s.conn(ctx).Exec(ctx, `
		INSERT INTO analysis (uid, order_uid, keyword, service_uid, method_uid, sample_type_uid,
			schema, specification_uid, dynamic_specification_uid, results_range, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		rec.UID, rec.OrderUID, rec.Keyword, rec.ServiceUID, rec.MethodUID, rec.SampleTypeUID,
		rec.Schema, rec.SpecificationUID, rec.DynamicSpecificationUID, rangeJSON, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis %s: %w", rec.UID, err)
	}
	return nil
}

const analysisSelect = `
	SELECT a.uid, a.order_uid, a.keyword, a.service_uid, a.method_uid, a.sample_type_uid,
		a.schema, a.specification_uid, a.dynamic_specification_uid, a.results_range,
		a.created_at, a.updated_at,
		w.uid, w.specification_uid, w.dynamic_specification_uid, w.created_at
	FROM analysis a
	LEFT JOIN analysis_wrapper w ON w.analysis_uid = a.uid`

func scanAnalysis(row pgx.Row) (*Record, error) {
	var rec Record
	var rangeJSON []byte
	var wUID, wSpec, wDyn *string
	var wCreated *time.Time
	err := row.Scan(&rec.UID, &rec.OrderUID, &rec.Keyword, &rec.ServiceUID, &rec.MethodUID, &rec.SampleTypeUID,
		&rec.Schema, &rec.SpecificationUID, &rec.DynamicSpecificationUID, &rangeJSON,
		&rec.CreatedAt, &rec.UpdatedAt,
		&wUID, &wSpec, &wDyn, &wCreated)
	if err != nil {
		return nil, err
	}
	if len(rangeJSON) > 0 {
		var rr ResultsRange
		if err := json.Unmarshal(rangeJSON, &rr); err != nil {
			return nil, fmt.Errorf("decode results range of %s: %w", rec.UID, err)
		}
		rec.ResultsRange = &rr
	}
	if wUID != nil {
		rec.Wrapper = &WrapperRecord{UID: *wUID, AnalysisUID: rec.UID}
		if wSpec != nil {
			rec.Wrapper.SpecificationUID = *wSpec
		}
		if wDyn != nil {
			rec.Wrapper.DynamicSpecificationUID = *wDyn
		}
		if wCreated != nil {
			rec.Wrapper.CreatedAt = *wCreated
		}
	}
	return &rec, nil
}

func (s *storePG) GetAnalysis(ctx context.Context, uid string) (*Record, error) {
	rec, err := scanAnalysis(s.conn(ctx).QueryRow(ctx, analysisSelect+` WHERE a.uid = $1`, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", uid, err)
	}
	return rec, nil
}

func (s *storePG) ListAnalyses(ctx context.Context, orderUID string) ([]*Record, error) {
	rows, err := s.conn(ctx).Query(ctx, analysisSelect+` WHERE a.order_uid = $1 ORDER BY a.created_at, a.uid`, orderUID)
	if err != nil {
		return nil, fmt.Errorf("list analyses of %s: %w", orderUID, err)
	}
	defer rows.Close()
	var out []*Record
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveBinding updates the analysis binding columns and upserts its wrapper in
// one transaction. The unique analysis_uid constraint keeps a second wrapper
// from ever being inserted.
func (s *storePG) SaveBinding(ctx context.Context, rec *Record) error {
	tx, err := s.conn(ctx).Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rec.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE analysis SET specification_uid = $2, dynamic_specification_uid = $3, updated_at = $4
		WHERE uid = $1`,
		rec.UID, rec.SpecificationUID, rec.DynamicSpecificationUID, rec.UpdatedAt); err != nil {
		return fmt.Errorf("update analysis binding %s: %w", rec.UID, err)
	}

	if w := rec.Wrapper; w != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO analysis_wrapper (uid, analysis_uid, specification_uid, dynamic_specification_uid, created_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (analysis_uid) DO UPDATE
			SET specification_uid = EXCLUDED.specification_uid,
				dynamic_specification_uid = EXCLUDED.dynamic_specification_uid`,
			w.UID, rec.UID, w.SpecificationUID, w.DynamicSpecificationUID, w.CreatedAt); err != nil {
			return fmt.Errorf("upsert wrapper of %s: %w", rec.UID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit binding of %s: %w", rec.UID, err)
	}
	rec.MarkSaved()
	return nil
}

func marshalRange(rr *ResultsRange) ([]byte, error) {
	if rr == nil {
		return nil, nil
	}
	b, err := json.Marshal(rr)
	if err != nil {
		return nil, fmt.Errorf("encode results range: %w", err)
	}
	return b, nil
}
