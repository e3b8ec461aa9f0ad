package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"serial-service/internal/apperrors"
	"serial-service/internal/models"
	"serial-service/internal/util"
)

// ChangeSet is one batch of mutations applied as a single
// lock/open/mutate/save unit.
type ChangeSet struct {
	// Updates rewrite existing rows in place, matched by RowID.
	Updates []models.OrderItemRecord
	// DeleteRowIDs removes rows by their global row id.
	DeleteRowIDs []int64
	// Appends adds rows at the bottom; RowID must be pre-assigned by the
	// caller from the current sequence state.
	Appends []models.OrderItemRecord
}

// Empty reports whether the set contains no mutations.
func (cs ChangeSet) Empty() bool {
	return len(cs.Updates) == 0 && len(cs.DeleteRowIDs) == 0 && len(cs.Appends) == 0
}

// ApplyChanges applies one batch against the workbook. The exclusive lock
// is tried exactly once: if another writer holds it the batch fails with a
// BusyError and nothing is written. Retrying is the caller's (human's)
// decision.
func (s *Store) ApplyChanges(ctx context.Context, cs ChangeSet) error {
	if cs.Empty() {
		return nil
	}

	locked, err := s.lock.TryLock()
	if err != nil || !locked {
		util.StoreBusyTotal.Inc()
		return &apperrors.BusyError{Path: s.cfg.Path, Err: err}
	}
	defer func() { _ = s.lock.Unlock() }()

	start := time.Now()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(s.cfg.SheetName)
	if err != nil {
		return fmt.Errorf("read sheet %s of %s: %w", s.cfg.SheetName, s.cfg.Path, err)
	}

	// Map row ids to sheet positions once, before any mutation shifts them.
	position := make(map[int64]int, len(rows))
	for i := 1; i < len(rows); i++ {
		if id := coerceInt64(cellAt(rows[i], colRowID)); id != 0 {
			position[id] = i + 1 // sheet rows are 1-based
		}
	}

	for _, rec := range cs.Updates {
		rowNum, ok := position[rec.RowID]
		if !ok {
			return fmt.Errorf("row %d not found in %s for update", rec.RowID, s.cfg.Path)
		}
		if err := s.writeRow(f, rowNum, rec); err != nil {
			return err
		}
	}

	// Deletes run bottom-up so earlier removals cannot shift the positions
	// of rows still waiting to be removed.
	deletions := make([]int, 0, len(cs.DeleteRowIDs))
	for _, id := range cs.DeleteRowIDs {
		if rowNum, ok := position[id]; ok {
			deletions = append(deletions, rowNum)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(deletions)))
	for _, rowNum := range deletions {
		if err := f.RemoveRow(s.cfg.SheetName, rowNum); err != nil {
			return fmt.Errorf("delete sheet row %d of %s: %w", rowNum, s.cfg.Path, err)
		}
	}

	nextRow := len(rows) - len(deletions) + 1
	for _, rec := range cs.Appends {
		if err := s.writeRow(f, nextRow, rec); err != nil {
			return err
		}
		nextRow++
	}

	if err := s.syncTableRange(f, nextRow-1); err != nil {
		return err
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook %s: %w", s.cfg.Path, err)
	}

	util.StoreSaveLatency.Observe(time.Since(start).Seconds())
	s.logger.Info("workbook saved",
		zap.Int("updates", len(cs.Updates)),
		zap.Int("deletes", len(deletions)),
		zap.Int("appends", len(cs.Appends)))
	return nil
}

// DeleteByOrderNo removes every row of one order, reporting how many rows
// went away.
func (s *Store) DeleteByOrderNo(ctx context.Context, orderNo string) (int, error) {
	records, err := s.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.RowID
	}
	return len(records), s.ApplyChanges(ctx, ChangeSet{DeleteRowIDs: ids})
}

// DeleteByRowID removes a single row by its global identifier.
func (s *Store) DeleteByRowID(ctx context.Context, rowID int64) error {
	return s.ApplyChanges(ctx, ChangeSet{DeleteRowIDs: []int64{rowID}})
}

func (s *Store) writeRow(f *excelize.File, rowNum int, rec models.OrderItemRecord) error {
	createdAt := ""
	if !rec.CreatedAt.IsZero() {
		createdAt = rec.CreatedAt.Format(time.RFC3339)
	}

	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	values := []interface{}{
		rec.RowID, rec.OrderDate, rec.OrderNo, rec.ProductType, rec.ProductCode,
		rec.Quantity, rec.ItemIndex, rec.Serial, rec.Description, rec.CreatedBy, createdAt,
	}
	if err := f.SetSheetRow(s.cfg.SheetName, cell, &values); err != nil {
		return fmt.Errorf("write sheet row %d of %s: %w", rowNum, s.cfg.Path, err)
	}
	return nil
}

// syncTableRange rewrites the named table so its extent covers exactly the
// live rows. A stale extent hides appended rows from everything downstream
// that reads through the table.
func (s *Store) syncTableRange(f *excelize.File, lastRow int) error {
	if s.cfg.TableName == "" {
		return nil
	}

	tables, err := f.GetTables(s.cfg.SheetName)
	if err != nil {
		return fmt.Errorf("read tables of sheet %s: %w", s.cfg.SheetName, err)
	}

	for _, tbl := range tables {
		if tbl.Name != s.cfg.TableName {
			continue
		}

		bounds := strings.Split(tbl.Range, ":")
		if len(bounds) != 2 {
			return fmt.Errorf("table %s has malformed range %q", tbl.Name, tbl.Range)
		}
		_, startRow, err := excelize.CellNameToCoordinates(bounds[0])
		if err != nil {
			return err
		}
		endCol, _, err := excelize.CellNameToCoordinates(bounds[1])
		if err != nil {
			return err
		}
		if lastRow <= startRow {
			// a table keeps at least one data row under its header
			lastRow = startRow + 1
		}
		end, err := excelize.CoordinatesToCellName(endCol, lastRow)
		if err != nil {
			return err
		}

		if err := f.DeleteTable(tbl.Name); err != nil {
			return fmt.Errorf("refresh table %s: %w", tbl.Name, err)
		}
		tbl.Range = bounds[0] + ":" + end
		if err := f.AddTable(s.cfg.SheetName, &tbl); err != nil {
			return fmt.Errorf("refresh table %s: %w", tbl.Name, err)
		}
		return nil
	}

	s.logger.Warn("table not found, rows saved without extent update",
		zap.String("table", s.cfg.TableName), zap.String("path", s.cfg.Path))
	return nil
}

func cellAt(cells []string, col int) string {
	if col < len(cells) {
		return cells[col]
	}
	return ""
}
