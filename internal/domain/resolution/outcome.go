package resolution

import (
	"errors"

	"github.com/ehr/labspec/internal/domain/specification"
)

// Error taxonomy. None of these ever escapes ResolveAndBind; they travel in
// Outcome.Err and log fields.
var (
	ErrInconclusive          = errors.New("no specification candidate found")
	ErrCapabilityUnsupported = errors.New("binding kind not supported by target")
	ErrBindAttemptFailed     = errors.New("bind attempt failed")
	ErrQueryFailed           = errors.New("specification query failed")
)

// Candidate is a specification selected by a strategy but not yet bound.
// Exactly one of Static and Dynamic is set.
type Candidate struct {
	Static   *specification.StaticSpecification
	Dynamic  *specification.DynamicSpecification
	Strategy string
	Score    int
}

func (c Candidate) Kind() specification.Kind {
	if c.Dynamic != nil {
		return specification.KindDynamic
	}
	return specification.KindStatic
}

func (c Candidate) UID() string {
	if c.Dynamic != nil {
		return c.Dynamic.UID
	}
	if c.Static != nil {
		return c.Static.UID
	}
	return ""
}

func (c Candidate) Title() string {
	if c.Dynamic != nil {
		return c.Dynamic.Title
	}
	if c.Static != nil {
		return c.Static.Title
	}
	return ""
}

type Status string

const (
	StatusBound        Status = "bound"
	StatusSkipped      Status = "skipped"
	StatusInconclusive Status = "inconclusive"
	StatusFailed       Status = "failed"
)

// Outcome describes what one resolution did.
type Outcome struct {
	AnalysisUID      string             `json:"analysis_uid"`
	Status           Status             `json:"status"`
	Kind             specification.Kind `json:"kind,omitempty"`
	SpecificationUID string             `json:"specification_uid,omitempty"`
	Strategy         string             `json:"strategy,omitempty"`
	Reason           string             `json:"reason,omitempty"`
	Err              error              `json:"-"`
}

// Bound reports whether this resolution performed (or confirmed) a binding.
func (o Outcome) Bound() bool { return o.Status == StatusBound }
