package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serial-service/config"
	"serial-service/internal/apperrors"
	"serial-service/internal/cache"
	"serial-service/internal/store"
)

func newTestService(t *testing.T, access config.AccessConfig) (*OrderService, config.StoreConfig) {
	t.Helper()

	dir := t.TempDir()
	storeCfg := config.StoreConfig{
		Path:      filepath.Join(dir, "order.xlsx"),
		SheetName: "order",
		TableName: "ordertable",
	}
	require.NoError(t, store.CreateWorkbook(storeCfg))

	st, err := store.NewStore(storeCfg)
	require.NoError(t, err)

	c := cache.New(st, config.CacheConfig{Path: filepath.Join(dir, "order.cache.json")})
	return NewOrderService(st, c, nil, access), storeCfg
}

func submit(orderNo, date string, items ...ItemRequest) *SubmitOrderRequest {
	return &SubmitOrderRequest{
		OrderNo:   orderNo,
		OrderDate: date,
		CreatedBy: "ali",
		Items:     items,
	}
}

func TestSubmitOrderFirstSerial(t *testing.T) {
	svc, _ := newTestService(t, config.AccessConfig{})
	ctx := context.Background()

	resp, err := svc.SubmitOrder(ctx, submit("1001", "1403-06-01",
		ItemRequest{ProductType: "MF", ProductCode: "C-1", Quantity: 2}))
	require.NoError(t, err)
	require.Len(t, resp.Serials, 1)
	assert.Equal(t, int64(1), resp.Serials[0].ItemIndex)
	assert.Equal(t, "1-1403-F", resp.Serials[0].Serial)

	view, err := svc.SearchOrder(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "2024-08-22", view.OrderDate)
	assert.Equal(t, "1403-06-01", view.LocalDate)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, int64(1), view.Rows[0].RowID)
}

func TestSubmitOrderIndependentGroupSequences(t *testing.T) {
	svc, _ := newTestService(t, config.AccessConfig{})
	ctx := context.Background()

	// mixed batch: rod and bar codes number apart from everything else
	resp, err := svc.SubmitOrder(ctx, submit("2001", "1403-06-01",
		ItemRequest{ProductType: "MF", ProductCode: "C-1", Quantity: 1},
		ItemRequest{ProductType: "MR", ProductCode: "C-2", Quantity: 1},
		ItemRequest{ProductType: "ترموفیوز", ProductCode: "C-3", Quantity: 5}))
	require.NoError(t, err)
	require.Len(t, resp.Serials, 3)
	assert.Equal(t, "1-1403-F", resp.Serials[0].Serial)
	assert.Equal(t, "2-1403-R", resp.Serials[1].Serial)
	assert.Equal(t, "1-1403-TF", resp.Serials[2].Serial)

	// a second order continues both sequences where they left off
	resp, err = svc.SubmitOrder(ctx, submit("2002", "1403-06-02",
		ItemRequest{ProductType: "MU", ProductCode: "C-4", Quantity: 1},
		ItemRequest{ProductType: "فویل", ProductCode: "C-5", Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, "3-1403-U", resp.Serials[0].Serial)
	assert.Equal(t, "2-1403-ف", resp.Serials[1].Serial)
}

func TestSubmitOrderValidation(t *testing.T) {
	svc, _ := newTestService(t, config.AccessConfig{})
	ctx := context.Background()

	var verr *apperrors.ValidationError

	_, err := svc.SubmitOrder(ctx, submit("", "1403-06-01",
		ItemRequest{ProductType: "MF", ProductCode: "C", Quantity: 1}))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "order_no", verr.Field)

	_, err = svc.SubmitOrder(ctx, submit("3001", "1403-06-01",
		ItemRequest{ProductType: "MF", ProductCode: "", Quantity: 1}))
	require.ErrorAs(t, err, &verr)

	_, err = svc.SubmitOrder(ctx, submit("3001", "1403-06-01",
		ItemRequest{ProductType: "MF", ProductCode: "C", Quantity: 0}))
	require.ErrorAs(t, err, &verr)

	var cerr *apperrors.CalendarError
	_, err = svc.SubmitOrder(ctx, submit("3001", "1403-07-31",
		ItemRequest{ProductType: "MF", ProductCode: "C", Quantity: 1}))
	require.ErrorAs(t, err, &cerr)
}

func TestSubmitOrderAllowedUsers(t *testing.T) {
	svc, _ := newTestService(t, config.AccessConfig{AllowedUsers: []string{"ali", "sara"}})
	ctx := context.Background()

	req := submit("4001", "1403-06-01",
		ItemRequest{ProductType: "MF", ProductCode: "C", Quantity: 1})
	req.CreatedBy = "mehdi"

	var verr *apperrors.ValidationError
	_, err := svc.SubmitOrder(ctx, req)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "created_by", verr.Field)

	req.CreatedBy = "sara"
	_, err = svc.SubmitOrder(ctx, req)
	require.NoError(t, err)
}

func TestSearchOrderNotFound(t *testing.T) {
	svc, _ := newTestService(t, config.AccessConfig{})

	var nf *apperrors.NotFoundError
	_, err := svc.SearchOrder(context.Background(), "9999")
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "9999", nf.OrderNo)
}

func TestSearchOrderPersianDigitLookup(t *testing.T) {
	svc, _ := newTestService(t, config.AccessConfig{})
	ctx := context.Background()

	_, err := svc.SubmitOrder(ctx, submit("1002", "1403-06-01",
		ItemRequest{ProductType: "MF", ProductCode: "C", Quantity: 1}))
	require.NoError(t, err)

	view, err := svc.SearchOrder(ctx, "۱۰۰۲")
	require.NoError(t, err)
	assert.Equal(t, "1002", view.OrderNo)
}

func TestUpdateOrderSameGroupKeepsIndex(t *testing.T) {
	svc, _ := newTestService(t, config.AccessConfig{})
	ctx := context.Background()

	_, err := svc.SubmitOrder(ctx, submit("5001", "1403-06-01",
		ItemRequest{ProductType: "MF", ProductCode: "C-1", Quantity: 1}))
	require.NoError(t, err)

	resp, err := svc.UpdateOrder(ctx, "5001", &UpdateOrderRequest{
		OrderDate: "1403-06-01",
		CreatedBy: "ali",
		Items:     []ItemRequest{{ProductType: "MR", ProductCode: "C-9", Quantity: 4}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Serials, 1)
	assert.Equal(t, int64(1), resp.Serials[0].ItemIndex)
	assert.Equal(t, "1-1403-R", resp.Serials[0].Serial)

	view, err := svc.SearchOrder(ctx, "5001")
	require.NoError(t, err)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "MR", view.Rows[0].ProductType)
	assert.Equal(t, "C-9", view.Rows[0].ProductCode)
	assert.Equal(t, 4, view.Rows[0].Quantity)
}

func TestUpdateOrderCrossGroupMintsFresh(t *testing.T) {
	svc, _ := newTestService(t, config.AccessConfig{})
	ctx := context.Background()

	// push the other group's sequence along first
	_, err := svc.SubmitOrder(ctx, submit("6000", "1403-06-01",
		ItemRequest{ProductType: "ترموفیوز", ProductCode: "C-1", Quantity: 1},
		ItemRequest{ProductType: "فویل", ProductCode: "C-2", Quantity: 1}))
	require.NoError(t, err)

	// two rod rows, indexes 1 and 2; the first will cross groups
	_, err = svc.SubmitOrder(ctx, submit("6001", "1403-06-01",
		ItemRequest{ProductType: "MF", ProductCode: "C-3", Quantity: 1}))
	require.NoError(t, err)
	_, err = svc.SubmitOrder(ctx, submit("6002", "1403-06-01",
		ItemRequest{ProductType: "MR", ProductCode: "C-4", Quantity: 1}))
	require.NoError(t, err)

	resp, err := svc.UpdateOrder(ctx, "6001", &UpdateOrderRequest{
		OrderDate: "1403-06-01",
		CreatedBy: "ali",
		Items:     []ItemRequest{{ProductType: "ترموسوییچ", ProductCode: "C-3", Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Serials, 1)
	// continues group B from 2, never reclaims the abandoned group A index
	assert.Equal(t, int64(3), resp.Serials[0].ItemIndex)
	assert.Equal(t, "3-1403-TS", resp.Serials[0].Serial)

	// a later rod order resumes group A past the abandoned index
	resp, err = svc.SubmitOrder(ctx, submit("6003", "1403-06-01",
		ItemRequest{ProductType: "MF", ProductCode: "C-5", Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Serials[0].ItemIndex)
}

func TestUpdateOrderGrowAndShrink(t *testing.T) {
	svc, _ := newTestService(t, config.AccessConfig{})
	ctx := context.Background()

	_, err := svc.SubmitOrder(ctx, submit("7001", "1403-06-01",
		ItemRequest{ProductType: "MF", ProductCode: "C-1", Quantity: 1}))
	require.NoError(t, err)

	// grow to two rows
	resp, err := svc.UpdateOrder(ctx, "7001", &UpdateOrderRequest{
		OrderDate: "1403-06-01",
		CreatedBy: "ali",
		Items: []ItemRequest{
			{ProductType: "MF", ProductCode: "C-1", Quantity: 1},
			{ProductType: "MR", ProductCode: "C-2", Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Serials, 2)
	assert.Equal(t, int64(2), resp.Serials[1].ItemIndex)

	// shrink back to one
	resp, err = svc.UpdateOrder(ctx, "7001", &UpdateOrderRequest{
		OrderDate: "1403-06-01",
		CreatedBy: "ali",
		Items:     []ItemRequest{{ProductType: "MF", ProductCode: "C-1", Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Serials, 1)

	view, err := svc.SearchOrder(ctx, "7001")
	require.NoError(t, err)
	assert.Len(t, view.Rows, 1)
}

func TestUpdateOrderNotFound(t *testing.T) {
	svc, _ := newTestService(t, config.AccessConfig{})

	var nf *apperrors.NotFoundError
	_, err := svc.UpdateOrder(context.Background(), "8888", &UpdateOrderRequest{
		OrderDate: "1403-06-01",
		CreatedBy: "ali",
		Items:     []ItemRequest{{ProductType: "MF", ProductCode: "C", Quantity: 1}},
	})
	require.ErrorAs(t, err, &nf)
}

func TestDeleteOrder(t *testing.T) {
	svc, _ := newTestService(t, config.AccessConfig{})
	ctx := context.Background()

	_, err := svc.SubmitOrder(ctx, submit("9001", "1403-06-01",
		ItemRequest{ProductType: "MF", ProductCode: "C-1", Quantity: 1},
		ItemRequest{ProductType: "MR", ProductCode: "C-2", Quantity: 1}))
	require.NoError(t, err)

	removed, err := svc.DeleteOrder(ctx, "9001")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	var nf *apperrors.NotFoundError
	_, err = svc.SearchOrder(ctx, "9001")
	require.ErrorAs(t, err, &nf)

	_, err = svc.DeleteOrder(ctx, "9001")
	require.ErrorAs(t, err, &nf)
}

func TestSubmitOrderWorkbookBusy(t *testing.T) {
	svc, storeCfg := newTestService(t, config.AccessConfig{})
	ctx := context.Background()

	other := flock.New(storeCfg.Path + ".lock")
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer other.Unlock()

	var busy *apperrors.BusyError
	_, err = svc.SubmitOrder(ctx, submit("1101", "1403-06-01",
		ItemRequest{ProductType: "MF", ProductCode: "C", Quantity: 1}))
	require.ErrorAs(t, err, &busy)

	// nothing landed while the workbook was held
	require.NoError(t, other.Unlock())
	var nf *apperrors.NotFoundError
	_, err = svc.SearchOrder(ctx, "1101")
	require.ErrorAs(t, err, &nf)
}
