package utils

import "strings"

var plateReplacer = strings.NewReplacer(" ", "", "-", "", "_", "", "\t", "")

// NormalizePlate canonicalises a registration for equality checks.
// Detection plates and stored registrations must both pass through it.
func NormalizePlate(plate string) string {
	return strings.TrimSpace(plateReplacer.Replace(strings.ToUpper(plate)))
}

// SamePlate compares two registrations after normalisation.
func SamePlate(a, b string) bool {
	na := NormalizePlate(a)
	return na != "" && na == NormalizePlate(b)
}
