// Package match holds the pickup-point matching policy: how a driver's
// declared pickup point is compared against a ride's, and how the short
// ledger code is derived from a point name.
package match

import (
	"strings"
	"unicode"

	"github.com/pointride/dispatch/internal/domain/models"
)

// aliases maps normalized alternate names to the canonical point name.
// Both sides are in normalized form.
var aliases = map[string]string{
	"hauz khas":         "hauz khas gate 1",
	"hk gate":           "hauz khas gate 1",
	"hk gate 1":         "hauz khas gate 1",
	"main gate":         "hauz khas gate 1",
	"hk gate 2":         "hauz khas gate 2",
	"jia sarai":         "jia sarai gate",
	"js gate":           "jia sarai gate",
	"mehrauli":          "mehrauli gate",
	"adhchini":          "adhchini gate",
	"jnu":               "jnu gate",
	"jnu east":          "jnu east gate",
	"hostel circle":     "hostel gate",
	"sports complex":    "sports gate",
	"metro":             "hauz khas metro",
	"hauz khas station": "hauz khas metro",
}

// Normalize lowercases, collapses whitespace and strips punctuation so that
// "Hauz Khas  Gate-1" and "hauz khas gate 1" compare equal.
func Normalize(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Canonical resolves aliases to the canonical point name after normalizing.
func Canonical(s string) string {
	n := Normalize(s)
	if c, ok := aliases[n]; ok {
		return c
	}
	return n
}

// SamePoint reports whether two pickup point names refer to the same place:
// case-insensitive exact match first, then substring containment in either
// direction, then the alias table.
func SamePoint(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}
	return Canonical(a) == Canonical(b)
}

// EligibleDrivers filters online drivers down to those free and declared at
// the ride's pickup point. Vehicle class is deliberately not filtered here:
// every free online driver of any class is a candidate once points match.
func EligibleDrivers(online []models.DriverPresence, pickupPoint string) []models.DriverPresence {
	var eligible []models.DriverPresence
	for _, d := range online {
		if !d.Free() {
			continue
		}
		if SamePoint(d.PickupPoint, pickupPoint) {
			eligible = append(eligible, d)
		}
	}
	return eligible
}

// FreeDrivers filters online drivers down to those with no active ride,
// ignoring pickup point. Used as the broadcast fallback.
func FreeDrivers(online []models.DriverPresence) []models.DriverPresence {
	var free []models.DriverPresence
	for _, d := range online {
		if d.Free() {
			free = append(free, d)
		}
	}
	return free
}

// PointCode derives the short ledger code from a point name: the first
// letter of each word, digits carried through. "Hauz Khas Gate 1" -> "HKG1".
func PointCode(point string) string {
	n := Canonical(point)
	if n == "" {
		return "XX"
	}

	var b strings.Builder
	for _, word := range strings.Fields(n) {
		r := rune(word[0])
		if unicode.IsDigit(r) {
			b.WriteString(word)
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
