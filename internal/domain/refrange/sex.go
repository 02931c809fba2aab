package refrange

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Sex is a normalized sex value.
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
)

// sexAliases maps folded spellings to a normalized sex.
var sexAliases = map[string]Sex{
	"m":         SexMale,
	"male":      SexMale,
	"man":       SexMale,
	"masculine": SexMale,
	"masculino": SexMale,
	"masculin":  SexMale,
	"hombre":    SexMale,
	"homme":     SexMale,
	"h":         SexMale,

	"f":        SexFemale,
	"female":   SexFemale,
	"woman":    SexFemale,
	"feminine": SexFemale,
	"femenino": SexFemale,
	"feminino": SexFemale,
	"feminin":  SexFemale,
	"mujer":    SexFemale,
	"femme":    SexFemale,

	"u":             SexUnknown,
	"unk":           SexUnknown,
	"unknown":       SexUnknown,
	"undetermined":  SexUnknown,
	"desconocido":   SexUnknown,
	"indeterminado": SexUnknown,
	"inconnu":       SexUnknown,
}

// fold lower-cases s and strips accents and surrounding space, so that
// "Femenino", "FEMENINO" and "feménino" compare equal.
func fold(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	return cases.Fold().String(s)
}

// NormalizeSex folds s and maps it through the alias table. Values not in the
// table come back folded but otherwise unchanged; ok reports a table hit.
func NormalizeSex(s string) (sex Sex, ok bool) {
	f := fold(s)
	if v, hit := sexAliases[f]; hit {
		return v, true
	}
	return Sex(f), false
}

// resolved reports whether s names a definite sex.
func (s Sex) resolved() bool { return s == SexMale || s == SexFemale }

// sexMatches applies a row's required sex to the patient. An undeclared
// requirement matches everything.
func sexMatches(required, patient string) bool {
	req, known := NormalizeSex(required)
	if req == "" {
		return true
	}
	pat, _ := NormalizeSex(patient)
	switch {
	case known && req == SexUnknown:
		return !pat.resolved()
	case known:
		return pat.resolved() && pat == req
	default:
		return pat != "" && pat == req
	}
}
