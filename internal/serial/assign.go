// Package serial mints item indexes and production serials, and recovers
// the sequence state those assignments depend on from the row history.
package serial

import (
	"fmt"
	"regexp"

	"serial-service/internal/models"
	"serial-service/internal/product"
	"serial-service/internal/textnorm"
)

var yearRun = regexp.MustCompile(`\d{4}`)

// Assignment is one minted item index with its formatted serial.
type Assignment struct {
	ItemIndex int64
	Serial    string
	Group     product.Group
	Abbrev    string
}

// YearToken extracts the 4-digit year embedded in serials from the date
// text the order was entered with: the first run of four digits, else the
// first four characters, else "0000". The text is the business calendar
// date as typed, so the token is the Persian year even though rows store
// the Gregorian date.
func YearToken(dateText string) string {
	t := textnorm.Normalize(dateText)
	if t == "" {
		return "0000"
	}
	if m := yearRun.FindString(t); m != "" {
		return m
	}
	if r := []rune(t); len(r) >= 4 {
		return string(r[:4])
	}
	return "0000"
}

// Format renders the canonical serial string.
func Format(itemIndex int64, year, abbrev string) string {
	return fmt.Sprintf("%d-%s-%s", itemIndex, year, abbrev)
}

// AssignNext mints the next item index in the product's numbering group and
// formats its serial, returning the state to thread into the next call.
// MaxRowID is untouched here; the caller advances it once per appended row.
func AssignNext(dateText, productType string, st models.SequenceState) (Assignment, models.SequenceState) {
	c := product.Classify(productType)
	year := YearToken(dateText)

	var idx int64
	if c.Group == product.GroupA {
		st.MaxGroupA++
		idx = st.MaxGroupA
	} else {
		st.MaxGroupB++
		idx = st.MaxGroupB
	}

	return Assignment{
		ItemIndex: idx,
		Serial:    Format(idx, year, c.Abbrev),
		Group:     c.Group,
		Abbrev:    c.Abbrev,
	}, st
}
