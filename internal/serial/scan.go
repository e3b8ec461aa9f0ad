package serial

import (
	"serial-service/internal/models"
	"serial-service/internal/product"
)

// Scan recovers the sequence state from the full row history in one linear
// pass. Each row's numbering group is re-derived from its stored product
// type; no group column is trusted because none is persisted. Rows with
// malformed numeric cells arrive here already coerced to zero by the store
// parser, and a zero can never lower a running maximum, so a messy history
// degrades the scan gracefully instead of failing it.
func Scan(records []models.OrderItemRecord) models.SequenceState {
	var st models.SequenceState
	for _, rec := range records {
		if rec.RowID > st.MaxRowID {
			st.MaxRowID = rec.RowID
		}
		if product.Classify(rec.ProductType).Group == product.GroupA {
			if rec.ItemIndex > st.MaxGroupA {
				st.MaxGroupA = rec.ItemIndex
			}
		} else if rec.ItemIndex > st.MaxGroupB {
			st.MaxGroupB = rec.ItemIndex
		}
	}
	return st
}
