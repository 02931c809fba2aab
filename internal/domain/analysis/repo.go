package analysis

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an order or analysis does not exist.
var ErrNotFound = errors.New("not found")

// Store persists orders, analyses and the binding state the resolver mutates.
type Store interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, uid string) (*Order, error)
	CreateAnalysis(ctx context.Context, rec *Record) error
	GetAnalysis(ctx context.Context, uid string) (*Record, error)
	ListAnalyses(ctx context.Context, orderUID string) ([]*Record, error)
	// SaveBinding writes the specification bindings of rec and its wrapper.
	SaveBinding(ctx context.Context, rec *Record) error
}
