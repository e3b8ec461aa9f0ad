package store

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"serial-service/config"
	"serial-service/internal/models"
	"serial-service/internal/textnorm"
	"serial-service/internal/util"
)

// Workbook column layout. The header row is Persian, matching the sheet the
// office already shares; the order here is load-bearing.
const (
	colRowID = iota
	colDate
	colOrderNo
	colProductType
	colProductCode
	colQuantity
	colItemIndex
	colSerial
	colDescription
	colCreatedBy
	colCreatedAt
	columnCount
)

// Headers is the fixed header row of the order sheet.
var Headers = []string{
	"ردیف", "تاریخ", "شماره سفارش", "نوع محصول", "کد محصول",
	"تعداد", "ردیف آیتم", "سریال سفارش", "توضیحات", "کاربر", "زمان ثبت",
}

// Store reads and mutates the order workbook. Every mutation is one
// lock/open/modify/save unit with no partial visibility between the rows of
// a batch: the save either fully lands or the lock acquisition fails up
// front.
type Store struct {
	cfg    config.StoreConfig
	lock   *flock.Flock
	logger *zap.Logger
}

// NewStore opens a store over an existing workbook.
func NewStore(cfg config.StoreConfig) (*Store, error) {
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("order workbook not found at %s: %w", cfg.Path, err)
	}
	return &Store{
		cfg:    cfg,
		lock:   flock.New(cfg.Path + ".lock"),
		logger: util.GetLogger(),
	}, nil
}

// ModTime reports the workbook's last-modified time, which the cache uses
// as its validity key.
func (s *Store) ModTime() (time.Time, error) {
	info, err := os.Stat(s.cfg.Path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat workbook %s: %w", s.cfg.Path, err)
	}
	return info.ModTime(), nil
}

// LoadAll parses every data row of the sheet, in storage order.
func (s *Store) LoadAll(ctx context.Context) ([]models.OrderItemRecord, error) {
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return s.readRows(f)
}

// FindByOrderNo returns all rows of one order in storage order. A missing
// order is an empty result, not an error.
func (s *Store) FindByOrderNo(ctx context.Context, orderNo string) ([]models.OrderItemRecord, error) {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	want := textnorm.Normalize(orderNo)
	var found []models.OrderItemRecord
	for _, rec := range records {
		if textnorm.Normalize(rec.OrderNo) == want {
			found = append(found, rec)
		}
	}
	return found, nil
}

func (s *Store) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", s.cfg.Path, err)
	}
	return f, nil
}

func (s *Store) readRows(f *excelize.File) ([]models.OrderItemRecord, error) {
	rows, err := f.GetRows(s.cfg.SheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s of %s: %w", s.cfg.SheetName, s.cfg.Path, err)
	}

	var records []models.OrderItemRecord
	for i, cells := range rows {
		if i == 0 || blankRow(cells) {
			continue
		}
		records = append(records, parseRow(cells))
	}
	return records, nil
}

// parseRow coerces one sheet row into a record. Historical rows can be
// ragged or hold text where numbers belong; every field degrades to its
// zero value instead of failing the load.
func parseRow(cells []string) models.OrderItemRecord {
	get := func(col int) string {
		if col < len(cells) {
			return strings.TrimSpace(cells[col])
		}
		return ""
	}
	createdAt, _ := time.Parse(time.RFC3339, get(colCreatedAt))

	return models.OrderItemRecord{
		RowID:       coerceInt64(get(colRowID)),
		OrderDate:   textnorm.Normalize(get(colDate)),
		OrderNo:     textnorm.Normalize(get(colOrderNo)),
		ProductType: textnorm.Normalize(get(colProductType)),
		ProductCode: textnorm.Normalize(get(colProductCode)),
		Quantity:    int(coerceInt64(get(colQuantity))),
		ItemIndex:   coerceInt64(get(colItemIndex)),
		Serial:      get(colSerial),
		Description: textnorm.Normalize(get(colDescription)),
		CreatedBy:   get(colCreatedBy),
		CreatedAt:   createdAt,
	}
}

// coerceInt64 parses a numeric cell, treating anything unparseable as zero.
// Excel sometimes renders integers as floats, so that form is accepted too.
func coerceInt64(s string) int64 {
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(fl)
	}
	return 0
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
