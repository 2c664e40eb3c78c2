package fpreport

import "time"

// TotalBand is the pseudo-band covering every patient with a known birth
// date. It is defined as the sum of the named bands, so patients with no
// recorded birth date are excluded from it as well.
const TotalBand = "Total"

// AgeBand is a disjoint, inclusive age bucket.
type AgeBand struct {
	Label string
	Min   int
	Max   int
}

// DefaultBands are the program's reporting strata.
var DefaultBands = []AgeBand{
	{Label: "10-14", Min: 10, Max: 14},
	{Label: "15-19", Min: 15, Max: 19},
	{Label: "20-49", Min: 20, Max: 49},
}

// AgeAt computes whole years between dob and asOf with the usual
// birthday-decrement rule.
func AgeAt(dob, asOf time.Time) int {
	years := asOf.Year() - dob.Year()
	if asOf.Month() < dob.Month() ||
		(asOf.Month() == dob.Month() && asOf.Day() < dob.Day()) {
		years--
	}
	return years
}

// Contains reports whether an age falls in the band.
func (b AgeBand) Contains(age int) bool {
	return age >= b.Min && age <= b.Max
}

// BandFor buckets a birth date into one of the configured bands relative
// to asOf. A nil dob, or an age outside every band, yields ok=false and
// excludes the patient from all bands including Total.
func BandFor(bands []AgeBand, dob *time.Time, asOf time.Time) (string, bool) {
	if dob == nil {
		return "", false
	}
	age := AgeAt(*dob, asOf)
	for _, b := range bands {
		if b.Contains(age) {
			return b.Label, true
		}
	}
	return "", false
}
