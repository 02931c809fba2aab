package specification

import (
	"strings"
	"time"
)

// Kind tags the two specification variants.
type Kind string

const (
	KindStatic  Kind = "static"
	KindDynamic Kind = "dynamic"
)

// Record is implemented by *StaticSpecification and *DynamicSpecification.
type Record interface {
	GetUID() string
	GetTitle() string
	Kind() Kind
}

// StaticSpecification maps to the static_specification table. It is a flat
// field-equality record: an empty field is undeclared and matches anything.
type StaticSpecification struct {
	UID           string    `db:"uid" json:"uid"`
	ContainerUID  string    `db:"container_uid" json:"container_uid,omitempty"`
	Title         string    `db:"title" json:"title"`
	ClientUID     string    `db:"client_uid" json:"client_uid,omitempty"`
	SampleTypeUID string    `db:"sample_type_uid" json:"sample_type_uid,omitempty"`
	ServiceUID    string    `db:"service_uid" json:"service_uid,omitempty"`
	MethodUID     string    `db:"method_uid" json:"method_uid,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

func (s *StaticSpecification) GetUID() string   { return s.UID }
func (s *StaticSpecification) GetTitle() string { return s.Title }
func (s *StaticSpecification) Kind() Kind       { return KindStatic }

// DynamicSpecification maps to the dynamic_specification table. Its range
// table is an ordered list of rows, each carrying its own filters.
type DynamicSpecification struct {
	UID          string `db:"uid" json:"uid"`
	ContainerUID string `db:"container_uid" json:"container_uid,omitempty"`
	Title        string `db:"title" json:"title"`
	ClientUID    string `db:"client_uid" json:"client_uid,omitempty"`
	Rows         []Row  `db:"rows" json:"rows"`
	// RowsUnavailable is set when the stored row data could not be decoded.
	RowsUnavailable bool      `db:"-" json:"rows_unavailable,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

func (d *DynamicSpecification) GetUID() string   { return d.UID }
func (d *DynamicSpecification) GetTitle() string { return d.Title }
func (d *DynamicSpecification) Kind() Kind       { return KindDynamic }

// RowsInspectable reports whether the row table carries usable data. Unknown
// or empty row data is ambiguous: it neither accepts nor rejects an analysis.
func (d *DynamicSpecification) RowsInspectable() bool {
	return !d.RowsUnavailable && len(d.Rows) > 0
}

// Row is one filter+range entry of a dynamic specification. Filter fields left
// empty (or nil) impose no constraint. The range payload is carried opaquely.
type Row struct {
	Keyword       string `json:"keyword"`
	ClientUID     string `json:"client_uid,omitempty"`
	SampleTypeUID string `json:"sample_type_uid,omitempty"`
	MethodUID     string `json:"method_uid,omitempty"`
	MinAgeDays    *int   `json:"min_age_days,omitempty"`
	MaxAgeDays    *int   `json:"max_age_days,omitempty"`
	Sex           string `json:"sex,omitempty"`
	Expression    string `json:"expression,omitempty"`

	Min     string `json:"min,omitempty"`
	Max     string `json:"max,omitempty"`
	WarnMin string `json:"warn_min,omitempty"`
	WarnMax string `json:"warn_max,omitempty"`
	Unit    string `json:"unit,omitempty"`
}

// HasAgeFilter reports whether the row declares any age bound.
func (r Row) HasAgeFilter() bool {
	return r.MinAgeDays != nil || r.MaxAgeDays != nil
}

// HasSexFilter reports whether the row declares a required sex.
func (r Row) HasSexFilter() bool {
	return strings.TrimSpace(r.Sex) != ""
}

// Container groups specification records, mirroring the folder the records
// live in. The traversal walk visits containers in title order.
type Container struct {
	UID   string `db:"uid" json:"uid"`
	Title string `db:"title" json:"title"`
}

// Matches reports whether a declared value equals actual. Undeclared (empty)
// values match anything.
func Matches(declared, actual string) bool {
	return declared == "" || declared == actual
}
