package analysis

import (
	"time"
)

// Schema identifies which binding operations an analysis object exposes.
// Deployments carry analyses created under different schema versions side
// by side, so the shape is chosen per record.
type Schema string

const (
	// SchemaCurrent analyses bind both specification kinds natively.
	SchemaCurrent Schema = "current"
	// SchemaLegacy analyses bind static specifications through a reference
	// setter only; dynamic bindings live on the wrapper.
	SchemaLegacy Schema = "legacy"
	// SchemaPlain analyses have no binding fields at all and host a static
	// binding on a static-only wrapper.
	SchemaPlain Schema = "plain"
)

// Order maps to the lab_order table. Patient and sample fields are copies
// taken when the order was received; they may be missing.
type Order struct {
	UID           string     `db:"uid" json:"uid"`
	ClientUID     string     `db:"client_uid" json:"client_uid"`
	PatientDOB    *time.Time `db:"patient_dob" json:"patient_dob,omitempty"`
	PatientSex    string     `db:"patient_sex" json:"patient_sex,omitempty"`
	DateCollected *time.Time `db:"date_collected" json:"date_collected,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

func (o *Order) GetUID() string       { return o.UID }
func (o *Order) GetClientUID() string { return o.ClientUID }

// ResultsRange is a range a user picked by hand. Its presence always wins
// over any specification binding.
type ResultsRange struct {
	Min     string    `json:"min,omitempty"`
	Max     string    `json:"max,omitempty"`
	WarnMin string    `json:"warn_min,omitempty"`
	WarnMax string    `json:"warn_max,omitempty"`
	SetBy   string    `json:"set_by,omitempty"`
	SetAt   time.Time `json:"set_at"`
}

// Record maps to the analysis table: one test requested within an order.
type Record struct {
	UID                     string         `db:"uid" json:"uid"`
	OrderUID                string         `db:"order_uid" json:"order_uid"`
	Keyword                 string         `db:"keyword" json:"keyword"`
	ServiceUID              string         `db:"service_uid" json:"service_uid"`
	MethodUID               string         `db:"method_uid" json:"method_uid,omitempty"`
	SampleTypeUID           string         `db:"sample_type_uid" json:"sample_type_uid,omitempty"`
	Schema                  Schema         `db:"schema" json:"schema"`
	SpecificationUID        string         `db:"specification_uid" json:"specification_uid,omitempty"`
	DynamicSpecificationUID string         `db:"dynamic_specification_uid" json:"dynamic_specification_uid,omitempty"`
	ResultsRange            *ResultsRange  `db:"results_range" json:"results_range,omitempty"`
	Wrapper                 *WrapperRecord `db:"-" json:"wrapper,omitempty"`
	CreatedAt               time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time      `db:"updated_at" json:"updated_at"`

	changed bool
}

// WrapperRecord maps to the analysis_wrapper table. At most one exists per
// analysis.
type WrapperRecord struct {
	UID                     string    `db:"uid" json:"uid"`
	AnalysisUID             string    `db:"analysis_uid" json:"analysis_uid"`
	SpecificationUID        string    `db:"specification_uid" json:"specification_uid,omitempty"`
	DynamicSpecificationUID string    `db:"dynamic_specification_uid" json:"dynamic_specification_uid,omitempty"`
	CreatedAt               time.Time `db:"created_at" json:"created_at"`
}

func (r *Record) Base() *Record                      { return r }
func (r *Record) GetUID() string                     { return r.UID }
func (r *Record) GetKeyword() string                 { return r.Keyword }
func (r *Record) GetServiceUID() string              { return r.ServiceUID }
func (r *Record) GetMethodUID() string               { return r.MethodUID }
func (r *Record) GetSampleTypeUID() string           { return r.SampleTypeUID }
func (r *Record) HasResultsRange() bool              { return r.ResultsRange != nil }
func (r *Record) GetSpecificationUID() string        { return r.SpecificationUID }
func (r *Record) GetDynamicSpecificationUID() string { return r.DynamicSpecificationUID }

// Changed reports whether binding state was modified since load or last save.
func (r *Record) Changed() bool { return r.changed }

// MarkSaved clears the change flag after the binding state was persisted.
func (r *Record) MarkSaved() { r.changed = false }

// EffectiveSpecification returns the bound specification UID and whether it is
// dynamic, looking at the analysis first and its wrapper second.
func (r *Record) EffectiveSpecification() (uid string, dynamic bool) {
	switch {
	case r.DynamicSpecificationUID != "":
		return r.DynamicSpecificationUID, true
	case r.SpecificationUID != "":
		return r.SpecificationUID, false
	case r.Wrapper == nil:
		return "", false
	case r.Wrapper.DynamicSpecificationUID != "":
		return r.Wrapper.DynamicSpecificationUID, true
	default:
		return r.Wrapper.SpecificationUID, false
	}
}
