package specification

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a specification lookup has no result.
var ErrNotFound = errors.New("specification not found")

// Wildcard is the value an undeclared field is stored with. Including it in a
// StaticQuery selects records that leave the field open.
const Wildcard = ""

// StaticQuery filters the static record scope. A record qualifies when its
// ClientUID is in ClientUIDs and its SampleTypeUID is in SampleTypeUIDs.
type StaticQuery struct {
	ClientUIDs     []string
	SampleTypeUIDs []string
}

// NewStaticQuery builds the scoped query for an order client and an analysis
// sample type, both widened with the wildcard.
func NewStaticQuery(clientUID, sampleTypeUID string) StaticQuery {
	q := StaticQuery{
		ClientUIDs:     []string{Wildcard},
		SampleTypeUIDs: []string{Wildcard},
	}
	if clientUID != "" {
		q.ClientUIDs = append([]string{clientUID}, q.ClientUIDs...)
	}
	if sampleTypeUID != "" {
		q.SampleTypeUIDs = append([]string{sampleTypeUID}, q.SampleTypeUIDs...)
	}
	return q
}

// StaticCatalog answers scoped static queries, ordered by title.
type StaticCatalog interface {
	FindStatic(ctx context.Context, q StaticQuery) ([]*StaticSpecification, error)
}

// DynamicCatalog enumerates dynamic records in a stable order.
type DynamicCatalog interface {
	ListDynamic(ctx context.Context) ([]*DynamicSpecification, error)
	GetDynamic(ctx context.Context, uid string) (*DynamicSpecification, error)
}

// Walker visits every record of every known container without going through
// the indexed scope queries. Returning an error from fn stops the walk.
type Walker interface {
	Walk(ctx context.Context, fn func(Record) error) error
}

// Catalog is the full read surface over specification records.
type Catalog interface {
	StaticCatalog
	DynamicCatalog
	Walker
	ListStatic(ctx context.Context, limit, offset int) ([]*StaticSpecification, int, error)
}
