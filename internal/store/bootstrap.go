package store

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"serial-service/config"
)

// CreateWorkbook provisions a fresh order workbook with the header row and
// the named table downstream readers expect. Existing files are not
// touched; NewStore still requires the workbook to exist.
func CreateWorkbook(cfg config.StoreConfig) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if cfg.SheetName != "Sheet1" {
		if err := f.SetSheetName("Sheet1", cfg.SheetName); err != nil {
			return fmt.Errorf("name sheet %s: %w", cfg.SheetName, err)
		}
	}

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(cfg.SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}

	if cfg.TableName != "" {
		end, err := excelize.CoordinatesToCellName(columnCount, 2)
		if err != nil {
			return err
		}
		if err := f.AddTable(cfg.SheetName, &excelize.Table{
			Range:     "A1:" + end,
			Name:      cfg.TableName,
			StyleName: "TableStyleMedium9",
		}); err != nil {
			return fmt.Errorf("create table %s: %w", cfg.TableName, err)
		}
	}

	if err := f.SaveAs(cfg.Path); err != nil {
		return fmt.Errorf("create workbook %s: %w", cfg.Path, err)
	}
	return nil
}
