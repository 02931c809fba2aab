package resolution

import (
	"github.com/ehr/labspec/internal/domain/specification"
)

// Dynamic candidate score weights.
const (
	scoreSameClient    = 100
	scoreMatchingRow   = 50
	scoreOpaqueRows    = 10
	scorePreferredName = 5
)

// scoreDynamic ranks a dynamic candidate for an analysis within an order.
func scoreDynamic(spec *specification.DynamicSpecification, a Analysis, o Order, preferred map[string]struct{}) int {
	score := 0
	if spec.ClientUID != "" && spec.ClientUID == o.GetClientUID() {
		score += scoreSameClient
	}
	if !spec.RowsInspectable() {
		score += scoreOpaqueRows
	} else if hasMatchingRow(spec.Rows, a, o) {
		score += scoreMatchingRow
	}
	if _, ok := preferred[spec.Title]; ok {
		score += scorePreferredName
	}
	return score
}

// hasMatchingRow reports whether some row targets the analysis keyword and
// every declared structural filter of that row agrees with the analysis.
func hasMatchingRow(rows []specification.Row, a Analysis, o Order) bool {
	keyword := a.GetKeyword()
	if keyword == "" {
		return false
	}
	for _, row := range rows {
		if row.Keyword != keyword {
			continue
		}
		if specification.Matches(row.ClientUID, o.GetClientUID()) &&
			specification.Matches(row.SampleTypeUID, a.GetSampleTypeUID()) &&
			specification.Matches(row.MethodUID, a.GetMethodUID()) {
			return true
		}
	}
	return false
}

// pickDynamic returns the best scoring candidate. Ties keep enumeration order.
func pickDynamic(specs []*specification.DynamicSpecification, a Analysis, o Order, preferred map[string]struct{}) (*specification.DynamicSpecification, int) {
	if len(specs) == 1 {
		return specs[0], scoreDynamic(specs[0], a, o, preferred)
	}
	var (
		best      *specification.DynamicSpecification
		bestScore = -1
	)
	for _, s := range specs {
		if s == nil {
			continue
		}
		if score := scoreDynamic(s, a, o, preferred); score > bestScore {
			best, bestScore = s, score
		}
	}
	return best, bestScore
}

// staticMatches is the strict static rule: every declared field must equal
// the analysis or order value.
func staticMatches(s *specification.StaticSpecification, a Analysis, o Order) bool {
	return specification.Matches(s.ServiceUID, a.GetServiceUID()) &&
		specification.Matches(s.ClientUID, o.GetClientUID()) &&
		specification.Matches(s.SampleTypeUID, a.GetSampleTypeUID()) &&
		specification.Matches(s.MethodUID, a.GetMethodUID())
}

// strictStatic returns the first strict match in order, preferring records
// that declare the analysis service over records that leave it open.
func strictStatic(specs []*specification.StaticSpecification, a Analysis, o Order) *specification.StaticSpecification {
	var open *specification.StaticSpecification
	for _, s := range specs {
		if s == nil || !staticMatches(s, a, o) {
			continue
		}
		if s.ServiceUID != "" {
			return s
		}
		if open == nil {
			open = s
		}
	}
	return open
}
