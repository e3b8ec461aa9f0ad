// Package product maps free-text product types to serial abbreviations and
// numbering groups. The mapping is deliberately not persisted on rows: group
// membership is re-derived from the stored product type at every read site,
// which keeps old rows valid if this table ever changes.
package product

import (
	"regexp"
	"strings"

	"serial-service/internal/textnorm"
)

// Group partitions serial numbering into two independent sequences.
type Group int

const (
	// GroupB covers every product type outside the rod/bar family.
	GroupB Group = iota
	// GroupA is the rod/bar family (MF, MR, MU).
	GroupA
)

func (g Group) String() string {
	if g == GroupA {
		return "a"
	}
	return "b"
}

var latinCode = regexp.MustCompile(`^[A-Za-z]{1,4}$`)

// abbreviations maps normalized product names and codes to the short token
// embedded in serials.
var abbreviations = map[string]string{
	"MF": "F", "MR": "R", "MU": "U",
	"نفراست": "ن", "فویلی": "ف", "فویل": "ف",
	"ترموسوییچ": "TS", "ترموسوئیچ": "TS",
	"هیتر سیمی": "س",
	"لوله ای دیفراست": "د", "لوله‌ای دیفراست": "د",
	"ترموفیوز": "TF",
}

// rodBarCodes defines group A membership.
var rodBarCodes = map[string]bool{"MF": true, "MR": true, "MU": true}

// Classification is the result of classifying one product type.
type Classification struct {
	Group  Group
	Abbrev string
}

// Classify resolves a free-text product type to its numbering group and
// serial abbreviation. It is total: an explicit table entry always wins,
// and unmapped input degrades to a fallback abbreviation (first letter of
// the code for group A, "0" for everything else) instead of failing.
func Classify(productType string) Classification {
	key := textnorm.Normalize(productType)
	if latinCode.MatchString(key) {
		key = strings.ToUpper(key)
	}

	group := GroupB
	if rodBarCodes[strings.ToUpper(key)] {
		group = GroupA
	}

	if abbrev, ok := abbreviations[key]; ok {
		return Classification{Group: group, Abbrev: abbrev}
	}
	if group == GroupA {
		return Classification{Group: group, Abbrev: strings.ToUpper(key)[:1]}
	}
	return Classification{Group: group, Abbrev: "0"}
}
