package refrange

import "time"

// AgeDays returns the whole calendar days between birth and collection. The
// time of day and the zone offset of either value are ignored.
func AgeDays(birth, collected time.Time) int {
	b := calendarDate(birth)
	c := calendarDate(collected)
	return int(c.Sub(b).Hours() / 24)
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ageDays resolves the patient age at collection. ok is false when either
// date is missing.
func ageDays(patient PatientContext, sample SampleContext) (days int, ok bool) {
	if patient.DateOfBirth == nil || sample.DateCollected == nil {
		return 0, false
	}
	return AgeDays(*patient.DateOfBirth, *sample.DateCollected), true
}
