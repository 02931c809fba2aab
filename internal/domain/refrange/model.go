package refrange

import "time"

// PatientContext is the demographic part of a sample. Every field may be
// missing.
type PatientContext struct {
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Sex         string     `json:"sex,omitempty"`
}

// SampleContext describes the sample a row is evaluated for.
type SampleContext struct {
	DateCollected  *time.Time `json:"date_collected,omitempty"`
	SampleTypeUID  string     `json:"sample_type_uid,omitempty"`
	MethodUID      string     `json:"method_uid,omitempty"`
	ServiceKeyword string     `json:"service_keyword,omitempty"`
	ClientUID      string     `json:"client_uid,omitempty"`
}
