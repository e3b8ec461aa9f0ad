package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"serial-service/config"
	"serial-service/internal/apperrors"
	"serial-service/internal/broker"
	"serial-service/internal/cache"
	"serial-service/internal/calendar"
	"serial-service/internal/models"
	"serial-service/internal/product"
	"serial-service/internal/serial"
	"serial-service/internal/store"
	"serial-service/internal/textnorm"
	"serial-service/internal/util"
)

// OrderService carries orders from validated input to persisted rows with
// minted serials. It is the only writer of the workbook, and it invalidates
// the cache immediately after every successful batch.
type OrderService struct {
	store     *store.Store
	cache     *cache.Cache
	publisher *broker.EventPublisher
	allowed   map[string]bool
	logger    *zap.Logger
}

// NewOrderService creates a new order service. publisher may be nil.
func NewOrderService(
	st *store.Store,
	c *cache.Cache,
	publisher *broker.EventPublisher,
	access config.AccessConfig,
) *OrderService {
	allowed := make(map[string]bool, len(access.AllowedUsers))
	for _, u := range access.AllowedUsers {
		allowed[textnorm.Normalize(u)] = true
	}
	return &OrderService{
		store:     st,
		cache:     c,
		publisher: publisher,
		allowed:   allowed,
		logger:    util.GetLogger(),
	}
}

// ItemRequest is one product line within an order.
type ItemRequest struct {
	ProductType string `json:"product_type" binding:"required"`
	ProductCode string `json:"product_code" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

// SubmitOrderRequest registers a new order. OrderDate is the Persian
// calendar date as typed by the office, strict YYYY-MM-DD.
type SubmitOrderRequest struct {
	OrderNo     string        `json:"order_no" binding:"required"`
	OrderDate   string        `json:"order_date" binding:"required"`
	Description string        `json:"description"`
	CreatedBy   string        `json:"created_by"`
	Items       []ItemRequest `json:"items" binding:"required,min=1"`
}

// UpdateOrderRequest rewrites an existing order's rows. Items are matched
// to existing rows by position.
type UpdateOrderRequest struct {
	OrderDate   string        `json:"order_date" binding:"required"`
	Description string        `json:"description"`
	CreatedBy   string        `json:"created_by"`
	Items       []ItemRequest `json:"items" binding:"required,min=1"`
}

// OrderResponse reports the serials live for an order after a save.
type OrderResponse struct {
	OrderNo string                `json:"order_no"`
	Serials []models.MintedSerial `json:"serials"`
}

// OrderView is one order as returned by search.
type OrderView struct {
	OrderNo     string                   `json:"order_no"`
	OrderDate   string                   `json:"order_date"`  // stored Gregorian
	LocalDate   string                   `json:"local_date"`  // Persian, for display
	Description string                   `json:"description"`
	Rows        []models.OrderItemRecord `json:"rows"`
}

// SubmitOrder validates the request, mints one serial per item by threading
// the sequence state through successive assignments, and appends all rows as
// a single batch.
func (s *OrderService) SubmitOrder(ctx context.Context, req *SubmitOrderRequest) (*OrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SubmitOrder")
	defer span.End()

	orderNo := textnorm.Normalize(req.OrderNo)
	dateText := textnorm.Normalize(req.OrderDate)
	desc := textnorm.Normalize(req.Description)
	createdBy := textnorm.Normalize(req.CreatedBy)

	if err := s.validateHeader(orderNo, dateText, createdBy); err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}
	items, err := normalizeItems(req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	storedDate, err := calendar.ToGregorian(dateText)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("calendar").Inc()
		return nil, err
	}

	state, err := s.cache.SequenceState(ctx)
	if err != nil {
		return nil, fmt.Errorf("recover sequence state: %w", err)
	}

	now := time.Now()
	appends := make([]models.OrderItemRecord, 0, len(items))
	minted := make([]models.MintedSerial, 0, len(items))
	for _, item := range items {
		var a serial.Assignment
		a, state = serial.AssignNext(dateText, item.ProductType, state)
		state.MaxRowID++

		appends = append(appends, models.OrderItemRecord{
			RowID:       state.MaxRowID,
			OrderDate:   storedDate,
			OrderNo:     orderNo,
			ProductType: item.ProductType,
			ProductCode: item.ProductCode,
			Quantity:    item.Quantity,
			ItemIndex:   a.ItemIndex,
			Serial:      a.Serial,
			Description: desc,
			CreatedBy:   createdBy,
			CreatedAt:   now,
		})
		minted = append(minted, models.MintedSerial{ItemIndex: a.ItemIndex, Serial: a.Serial})
		util.SerialsMintedTotal.WithLabelValues(a.Group.String()).Inc()
	}

	if err := s.store.ApplyChanges(ctx, store.ChangeSet{Appends: appends}); err != nil {
		util.OrdersFailedTotal.WithLabelValues(failReason(err)).Inc()
		return nil, err
	}
	s.cache.Invalidate()

	util.OrdersSavedTotal.Inc()
	s.logger.Info("order saved",
		zap.String("op_id", uuid.New().String()),
		zap.String("order_no", orderNo),
		zap.Int("items", len(appends)))

	s.publishRegistered(ctx, models.EventTypeOrderRegistered, orderNo, storedDate, createdBy, minted)

	return &OrderResponse{OrderNo: orderNo, Serials: minted}, nil
}

// SearchOrder returns one order's rows through the cache. An unknown order
// number is a NotFoundError, which is an outcome, not a fault.
func (s *OrderService) SearchOrder(ctx context.Context, orderNo string) (*OrderView, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SearchOrder")
	defer span.End()

	no := textnorm.Normalize(orderNo)
	if no == "" {
		return nil, &apperrors.ValidationError{Field: "order_no", Reason: "required"}
	}

	rows, err := s.cache.Order(ctx, no)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &apperrors.NotFoundError{OrderNo: no}
	}

	first := rows[0]
	local, err := calendar.ToPersian(first.OrderDate)
	if err != nil {
		// rows written before the calendar bridge can hold free-form dates;
		// display falls back to the stored text
		local = first.OrderDate
	}

	util.OrderSearchesTotal.Inc()
	return &OrderView{
		OrderNo:     no,
		OrderDate:   first.OrderDate,
		LocalDate:   local,
		Description: first.Description,
		Rows:        rows,
	}, nil
}

// UpdateOrder rewrites an order in the edit-and-resubmit style: rows are
// matched by position and updated in place; a product type moved to the
// other numbering group gets a brand-new item index from the current state
// and the old index is abandoned for good; extra submitted rows are
// appended and removed rows deleted. Everything lands as one batch.
func (s *OrderService) UpdateOrder(ctx context.Context, orderNo string, req *UpdateOrderRequest) (*OrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrder")
	defer span.End()

	no := textnorm.Normalize(orderNo)
	dateText := textnorm.Normalize(req.OrderDate)
	desc := textnorm.Normalize(req.Description)
	createdBy := textnorm.Normalize(req.CreatedBy)

	if err := s.validateHeader(no, dateText, createdBy); err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}
	items, err := normalizeItems(req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	storedDate, err := calendar.ToGregorian(dateText)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("calendar").Inc()
		return nil, err
	}

	existing, err := s.cache.Order(ctx, no)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, &apperrors.NotFoundError{OrderNo: no}
	}

	state, err := s.cache.SequenceState(ctx)
	if err != nil {
		return nil, fmt.Errorf("recover sequence state: %w", err)
	}

	now := time.Now()
	var cs store.ChangeSet
	minted := make([]models.MintedSerial, 0, len(items))

	newRow := func(item ItemRequest) models.OrderItemRecord {
		var a serial.Assignment
		a, state = serial.AssignNext(dateText, item.ProductType, state)
		state.MaxRowID++
		minted = append(minted, models.MintedSerial{ItemIndex: a.ItemIndex, Serial: a.Serial})
		util.SerialsMintedTotal.WithLabelValues(a.Group.String()).Inc()
		return models.OrderItemRecord{
			RowID:       state.MaxRowID,
			OrderDate:   storedDate,
			OrderNo:     no,
			ProductType: item.ProductType,
			ProductCode: item.ProductCode,
			Quantity:    item.Quantity,
			ItemIndex:   a.ItemIndex,
			Serial:      a.Serial,
			Description: desc,
			CreatedBy:   createdBy,
			CreatedAt:   now,
		}
	}

	for i, item := range items {
		if i >= len(existing) {
			cs.Appends = append(cs.Appends, newRow(item))
			continue
		}

		row := existing[i]
		if item.ProductType != row.ProductType &&
			product.Classify(item.ProductType).Group != product.Classify(row.ProductType).Group {
			// Crossing groups: the old index is never reclaimed; the row is
			// replaced by a fresh one numbered from the other group.
			cs.DeleteRowIDs = append(cs.DeleteRowIDs, row.RowID)
			cs.Appends = append(cs.Appends, newRow(item))
			continue
		}

		updated := row
		updated.OrderDate = storedDate
		updated.Description = desc
		updated.ProductCode = item.ProductCode
		updated.Quantity = item.Quantity
		if item.ProductType != row.ProductType {
			// Same group: the index survives; only the abbreviation, and so
			// the serial, changes. The year token stays whatever the row
			// was minted with.
			updated.ProductType = item.ProductType
			updated.Serial = serial.Format(row.ItemIndex, yearPartOf(row.Serial, dateText), product.Classify(item.ProductType).Abbrev)
		}
		minted = append(minted, models.MintedSerial{ItemIndex: updated.ItemIndex, Serial: updated.Serial})
		cs.Updates = append(cs.Updates, updated)
	}

	for _, row := range existing[minInt(len(items), len(existing)):] {
		cs.DeleteRowIDs = append(cs.DeleteRowIDs, row.RowID)
	}

	if err := s.store.ApplyChanges(ctx, cs); err != nil {
		util.OrdersFailedTotal.WithLabelValues(failReason(err)).Inc()
		return nil, err
	}
	s.cache.Invalidate()

	util.OrdersUpdatedTotal.Inc()
	s.logger.Info("order updated",
		zap.String("order_no", no),
		zap.Int("updates", len(cs.Updates)),
		zap.Int("deletes", len(cs.DeleteRowIDs)),
		zap.Int("appends", len(cs.Appends)))

	s.publishRegistered(ctx, models.EventTypeOrderUpdated, no, storedDate, createdBy, minted)

	return &OrderResponse{OrderNo: no, Serials: minted}, nil
}

// DeleteOrder removes every row of an order. Row ids and item indexes are
// never reassigned afterwards.
func (s *OrderService) DeleteOrder(ctx context.Context, orderNo string) (int, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteOrder")
	defer span.End()

	no := textnorm.Normalize(orderNo)
	if no == "" {
		return 0, &apperrors.ValidationError{Field: "order_no", Reason: "required"}
	}

	removed, err := s.store.DeleteByOrderNo(ctx, no)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failReason(err)).Inc()
		return 0, err
	}
	if removed == 0 {
		return 0, &apperrors.NotFoundError{OrderNo: no}
	}
	s.cache.Invalidate()

	util.OrdersDeletedTotal.Inc()
	s.logger.Info("order deleted", zap.String("order_no", no), zap.Int("rows", removed))
	return removed, nil
}

func (s *OrderService) validateHeader(orderNo, dateText, createdBy string) error {
	if orderNo == "" {
		return &apperrors.ValidationError{Field: "order_no", Reason: "required"}
	}
	if dateText == "" {
		return &apperrors.ValidationError{Field: "order_date", Reason: "required"}
	}
	if len(s.allowed) > 0 && !s.allowed[createdBy] {
		return &apperrors.ValidationError{Field: "created_by", Reason: "user is not allowed to register orders"}
	}
	return nil
}

func normalizeItems(items []ItemRequest) ([]ItemRequest, error) {
	if len(items) == 0 {
		return nil, &apperrors.ValidationError{Field: "items", Reason: "at least one item is required"}
	}

	out := make([]ItemRequest, 0, len(items))
	for i, item := range items {
		ptype := textnorm.Normalize(item.ProductType)
		code := textnorm.Normalize(item.ProductCode)
		if ptype == "" || code == "" {
			return nil, &apperrors.ValidationError{
				Field:  fmt.Sprintf("items[%d]", i),
				Reason: "product type and product code are required",
			}
		}
		if item.Quantity <= 0 {
			return nil, &apperrors.ValidationError{
				Field:  fmt.Sprintf("items[%d].quantity", i),
				Reason: "must be greater than zero",
			}
		}
		out = append(out, ItemRequest{ProductType: ptype, ProductCode: code, Quantity: item.Quantity})
	}
	return out, nil
}

func (s *OrderService) publishRegistered(ctx context.Context, eventType, orderNo, storedDate, createdBy string, serials []models.MintedSerial) {
	if s.publisher == nil {
		return
	}
	event := &models.OrderRegisteredEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now(),
		},
		OrderNo:   orderNo,
		OrderDate: storedDate,
		CreatedBy: createdBy,
		Serials:   serials,
	}
	if err := s.publisher.PublishOrderRegistered(ctx, event); err != nil {
		s.logger.Error("failed to publish order event", zap.String("order_no", orderNo), zap.Error(err))
	}
}

// yearPartOf pulls the year token out of a stored serial, falling back to
// deriving it from the order date when the serial is not in canonical form.
func yearPartOf(stored, dateText string) string {
	parts := strings.Split(stored, "-")
	if len(parts) == 3 && parts[1] != "" {
		return parts[1]
	}
	return serial.YearToken(dateText)
}

func failReason(err error) string {
	var busy *apperrors.BusyError
	if errors.As(err, &busy) {
		return "workbook_busy"
	}
	return "store_error"
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
