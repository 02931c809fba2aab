package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ehr/labspec/internal/domain/analysis"
	"github.com/ehr/labspec/internal/domain/specification"
)

const demoOrderUID = "demo-order-1"

type demoSet struct {
	containers []specification.Container
	statics    []*specification.StaticSpecification
	dynamics   []*specification.DynamicSpecification
	order      *analysis.Order
	analyses   []*analysis.Record
}

func intPtr(v int) *int { return &v }

func demoData() demoSet {
	dob := time.Date(1988, 4, 12, 0, 0, 0, 0, time.UTC)
	collected := time.Date(2026, 10, 1, 8, 30, 0, 0, time.UTC)

	return demoSet{
		containers: []specification.Container{
			{UID: "ct-chem", Title: "Clinical chemistry"},
			{UID: "ct-elec", Title: "Electrolytes"},
		},
		statics: []*specification.StaticSpecification{
			{UID: "st-glu-open", ContainerUID: "ct-chem", Title: "Glucose (any client)", SampleTypeUID: "ST-SERUM"},
			{UID: "st-glu-c1", ContainerUID: "ct-chem", Title: "Glucose (North clinic)", ClientUID: "CL-NORTH", SampleTypeUID: "ST-SERUM", ServiceUID: "SV-GLU"},
			{UID: "st-na", ContainerUID: "ct-elec", Title: "Sodium", ServiceUID: "SV-NA"},
		},
		dynamics: []*specification.DynamicSpecification{
			{
				UID: "dyn-glu", ContainerUID: "ct-chem", Title: "Glucose by age", ClientUID: "CL-NORTH",
				Rows: []specification.Row{
					{Keyword: "GLU", MaxAgeDays: intPtr(6574), Min: "60", Max: "100", Unit: "mg/dL"},
					{Keyword: "GLU", MinAgeDays: intPtr(6575), Sex: "female", Min: "70", Max: "105", Unit: "mg/dL"},
					{Keyword: "GLU", MinAgeDays: intPtr(6575), Sex: "male", Min: "70", Max: "110", Unit: "mg/dL"},
				},
			},
			{
				UID: "dyn-k", ContainerUID: "ct-elec", Title: "Potassium",
				Rows: []specification.Row{
					{Keyword: "K", Min: "3.5", Max: "5.1", Unit: "mmol/L"},
				},
			},
		},
		order: &analysis.Order{
			UID:           demoOrderUID,
			ClientUID:     "CL-NORTH",
			PatientDOB:    &dob,
			PatientSex:    "F",
			DateCollected: &collected,
		},
		analyses: []*analysis.Record{
			{UID: "an-glu", OrderUID: demoOrderUID, Keyword: "GLU", ServiceUID: "SV-GLU", SampleTypeUID: "ST-SERUM", Schema: analysis.SchemaCurrent},
			{UID: "an-na", OrderUID: demoOrderUID, Keyword: "NA", ServiceUID: "SV-NA", SampleTypeUID: "ST-SERUM", Schema: analysis.SchemaLegacy},
			{UID: "an-k", OrderUID: demoOrderUID, Keyword: "K", ServiceUID: "SV-K", SampleTypeUID: "ST-SERUM", Schema: analysis.SchemaPlain},
			{
				UID: "an-crea", OrderUID: demoOrderUID, Keyword: "CREA", ServiceUID: "SV-CREA", SampleTypeUID: "ST-SERUM", Schema: analysis.SchemaCurrent,
				ResultsRange: &analysis.ResultsRange{Min: "0.5", Max: "1.1", SetBy: "seed", SetAt: collected},
			},
		},
	}
}

// specBatch queues the upserts for every container and specification record.
func specBatch(d demoSet) (*pgx.Batch, error) {
	b := &pgx.Batch{}
	for _, c := range d.containers {
		b.Queue(`INSERT INTO spec_container (uid, title) VALUES ($1, $2)
			ON CONFLICT (uid) DO UPDATE SET title = EXCLUDED.title`, c.UID, c.Title)
	}
	for _, s := range d.statics {
		b.Queue(`INSERT INTO static_specification (uid, container_uid, title, client_uid, sample_type_uid, service_uid, method_uid)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (uid) DO UPDATE SET title = EXCLUDED.title, updated_at = NOW()`,
			s.UID, s.ContainerUID, s.Title, s.ClientUID, s.SampleTypeUID, s.ServiceUID, s.MethodUID)
	}
	for _, dyn := range d.dynamics {
		rows, err := json.Marshal(dyn.Rows)
		if err != nil {
			return nil, fmt.Errorf("encode rows of %s: %w", dyn.UID, err)
		}
		b.Queue(`INSERT INTO dynamic_specification (uid, container_uid, title, client_uid, rows)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (uid) DO UPDATE SET rows = EXCLUDED.rows, updated_at = NOW()`,
			dyn.UID, dyn.ContainerUID, dyn.Title, dyn.ClientUID, rows)
	}
	return b, nil
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func seed(ctx context.Context, conn batchSender, store analysis.Store, d demoSet) error {
	b, err := specBatch(d)
	if err != nil {
		return err
	}
	if err := conn.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("seed specifications: %w", err)
	}

	_, err = store.GetOrder(ctx, d.order.UID)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, analysis.ErrNotFound):
		return err
	}
	if err := store.CreateOrder(ctx, d.order); err != nil {
		return err
	}
	for _, rec := range d.analyses {
		if err := store.CreateAnalysis(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
