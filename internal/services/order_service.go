package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kitchenline/server/internal/models"
)

const (
	maxTxRetries = 4

	// Алфавит кода выдачи без похожих символов (0/O, 1/I)
	handoffAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	defaultAutoAdvanceSeconds = 40

	actorAutoFlow = "auto_flow"
	actorSystem   = "system"
)

// EventPublisher доставляет события заказов внешним потребителям
// (Kafka, WebSocket). Реализация обязана быть fire-and-forget.
type EventPublisher interface {
	PublishOrderEvent(payload map[string]interface{})
}

// OrderService оркестратор очереди заказов: создание, смена статусов,
// состояния позиций, денормализованные счетчики и журнал событий.
type OrderService struct {
	db        *gorm.DB
	menu      *MenuService
	router    *RouterService
	throttle  *ThrottleService
	inventory *InventoryService
	audit     *AuditService
	publisher EventPublisher
}

// NewOrderService создает оркестратор заказов
func NewOrderService(db *gorm.DB, menu *MenuService, router *RouterService, throttle *ThrottleService, inventory *InventoryService, audit *AuditService) *OrderService {
	return &OrderService{
		db:        db,
		menu:      menu,
		router:    router,
		throttle:  throttle,
		inventory: inventory,
		audit:     audit,
	}
}

// SetPublisher подключает доставку событий (вызывается из main после сборки)
func (s *OrderService) SetPublisher(p EventPublisher) {
	s.publisher = p
}

// CreateLine входящая позиция нового заказа
type CreateLine struct {
	MenuItemID  string   `json:"menu_item_id"`
	Quantity    int      `json:"quantity"`
	Modifiers   []string `json:"modifiers"`
	Allergens   []string `json:"allergens"`
	Notes       string   `json:"notes"`
	Priority    string   `json:"priority"`
	StationHint string   `json:"station_hint"`
}

// CreateOrderRequest запрос на создание заказа
type CreateOrderRequest struct {
	OrderType         string                 `json:"order_type"`
	Channel           string                 `json:"channel"`
	Priority          string                 `json:"priority"`
	CustomerName      string                 `json:"customer_name"`
	PaymentMethod     string                 `json:"payment_method"`
	Discount          float64                `json:"discount"`
	StationSuggestion string                 `json:"station_suggestion"`
	QuotedMinutes     int                    `json:"quoted_minutes"`
	IsThrottled       bool                   `json:"is_throttled"`
	ThrottleReason    string                 `json:"throttle_reason"`
	Lines             []CreateLine           `json:"lines"`
	Meta              map[string]interface{} `json:"meta"`
}

// NewOrderNumber генерирует номер заказа вида W-260831-142501
func NewOrderNumber(channel string, now time.Time) string {
	prefix := "W"
	if channel = strings.TrimSpace(channel); channel != "" {
		prefix = strings.ToUpper(channel[:1])
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("060102"), now.Format("150405"))
}

// collisionOrderNumber дает вариант номера со случайным суффиксом
// для повторной попытки после нарушения уникальности
func collisionOrderNumber(base string) string {
	return fmt.Sprintf("%s-%02d", base, rand.Intn(100))
}

// NewHandoffCode генерирует код выдачи из 6 символов
func NewHandoffCode() string {
	code := make([]byte, 6)
	for i := range code {
		code[i] = handoffAlphabet[rand.Intn(len(handoffAlphabet))]
	}
	return string(code)
}

// CreateOrder создает заказ: валидация позиций по меню, маршрутизация
// по станциям, котировка готовности, запись в одной транзакции.
// Невалидные позиции пропускаются, заказ без валидных позиций отклоняется.
// Начальный статус всегда accepted.
func (s *OrderService) CreateOrder(req CreateOrderRequest, actorID string) (*models.Order, error) {
	now := time.Now().UTC()

	orderType := strings.ToLower(strings.TrimSpace(req.OrderType))
	if orderType == "" {
		orderType = "dine_in"
	}
	channel := strings.ToLower(strings.TrimSpace(req.Channel))
	if channel == "" {
		channel = "walk_in"
	}
	priority := strings.ToLower(strings.TrimSpace(req.Priority))
	if priority == "" {
		priority = "normal"
	}

	var stations []models.KitchenStation
	if err := s.db.Find(&stations).Error; err != nil {
		return nil, fmt.Errorf("failed to load stations: %w", err)
	}

	// Валидация и маршрутизация позиций
	type resolvedLine struct {
		line    CreateLine
		menu    models.MenuItem
		station *models.KitchenStation
	}
	var resolved []resolvedLine
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			log.Printf("⚠️ Позиция с количеством %d пропущена", line.Quantity)
			continue
		}
		menuItem, ok := s.menu.Lookup(line.MenuItemID)
		if !ok || !menuItem.IsAvailable {
			log.Printf("⚠️ Позиция меню %s недоступна, пропущена", line.MenuItemID)
			continue
		}

		hint := line.StationHint
		if hint == "" {
			hint = req.StationSuggestion
		}
		station := s.router.Route(stations, hint, menuItem.Category, menuItem.Name)
		resolved = append(resolved, resolvedLine{line: line, menu: menuItem, station: station})
	}
	if len(resolved) == 0 {
		return nil, ValidationError("no valid items")
	}

	// Котировка готовности с учетом текущей загрузки станций
	quoteLines := make([]QuoteLine, 0, len(resolved))
	for _, r := range resolved {
		if r.station != nil {
			quoteLines = append(quoteLines, QuoteLine{
				StationCode: r.station.Code,
				StationName: r.station.Name,
				Quantity:    r.line.Quantity,
			})
		}
	}
	quote, err := s.throttle.Quote(nil, req.QuotedMinutes, stations, quoteLines, now)
	if err != nil {
		return nil, err
	}
	quote = ApplyCallerThrottle(quote, req.ThrottleReason, req.IsThrottled)

	meta := models.JSONMap{}
	for k, v := range req.Meta {
		meta[k] = v
	}
	if req.StationSuggestion != "" {
		meta["station_suggestion"] = req.StationSuggestion
	}

	promised := quote.PromisedTime
	order := &models.Order{
		ID:                         uuid.New().String(),
		OrderNumber:                NewOrderNumber(channel, now),
		Status:                     OrderStatusAccepted,
		OrderType:                  orderType,
		Channel:                    channel,
		Priority:                   priority,
		CustomerName:               req.CustomerName,
		Discount:                   req.Discount,
		PaymentMethod:              req.PaymentMethod,
		PlacedBy:                   actorID,
		PromisedTime:               &promised,
		QuotedMinutes:              quote.QuotedMinutes,
		EtaSeconds:                 quote.EtaSeconds,
		IsThrottled:                quote.IsThrottled,
		ThrottleReason:             quote.ThrottleReason,
		AutoAdvanceDurationSeconds: defaultAutoAdvanceSeconds,
		Meta:                       meta,
	}

	subtotal := 0.0
	for i, r := range resolved {
		itemPriority := strings.ToLower(strings.TrimSpace(r.line.Priority))
		if itemPriority == "" {
			itemPriority = priority
		}
		item := models.OrderItem{
			ID:                  uuid.New().String(),
			OrderID:             order.ID,
			MenuItemID:          r.menu.ID,
			ItemName:            r.menu.Name,
			Price:               r.menu.Price,
			Quantity:            r.line.Quantity,
			State:               ItemStateQueued,
			CookSecondsEstimate: r.menu.PreparationMinutes * 60,
			Priority:            itemPriority,
			Sequence:            i + 1,
			Modifiers:           models.StringList(r.line.Modifiers),
			Allergens:           models.StringList(r.line.Allergens),
			Notes:               r.line.Notes,
		}
		if r.station != nil {
			item.StationCode = r.station.Code
			item.StationName = r.station.Name
		}
		subtotal += r.menu.Price * float64(r.line.Quantity)
		order.Items = append(order.Items, item)
	}
	order.Subtotal = subtotal
	order.TotalAmount = subtotal - order.Discount
	if order.TotalAmount < 0 {
		order.TotalAmount = 0
	}

	armAutoAdvance(order, now)
	RecalcCounters(order, now)

	createTx := func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		s.recordEvent(tx, order, nil, actorID, models.EventOrderCreated, "", order.Status, models.JSONMap{
			"order_number": order.OrderNumber,
			"items":        len(order.Items),
		})
		return nil
	}

	// Коллизия номера откатывает всю транзакцию, поэтому каждая новая
	// попытка с суффиксом идет в свежей транзакции
	baseNumber := order.OrderNumber
	err = withRetry(s.db, maxTxRetries, createTx)
	for attempt := 0; err != nil && isDuplicateKeyError(err) && attempt < 2; attempt++ {
		order.OrderNumber = collisionOrderNumber(baseNumber)
		log.Printf("⚠️ Номер заказа %s занят, новая попытка с номером %s", baseNumber, order.OrderNumber)
		err = withRetry(s.db, maxTxRetries, createTx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	log.Printf("🚀 Заказ %s создан: %d позиций, котировка %d мин", order.OrderNumber, len(order.Items), order.QuotedMinutes)

	s.audit.Record(actorID, "order", "create", fmt.Sprintf("Заказ %s создан", order.OrderNumber), models.JSONMap{"order_id": order.ID})
	s.publish(models.EventOrderCreated, order, nil)

	return order, nil
}

// StatusChangeRequest запрос на смену статуса заказа
type StatusChangeRequest struct {
	Status            string                 `json:"status"`
	ShelfSlot         *string                `json:"shelf_slot"`
	Priority          *string                `json:"priority"`
	QuotedMinutes     *int                   `json:"quoted_minutes"`
	PromisedTime      *string                `json:"promised_time"`
	IsThrottled       *bool                  `json:"is_throttled"`
	ThrottleReason    *string                `json:"throttle_reason"`
	BulkReference     *string                `json:"bulk_reference"`
	HandoffVerifiedBy *string                `json:"handoff_verified_by"`
	Meta              map[string]interface{} `json:"meta"`
}

// SetOrderStatus меняет статус заказа с проверкой графа переходов.
// Запрос с текущим статусом (после канонизации) валиден и ничего не меняет.
func (s *OrderService) SetOrderStatus(orderID string, req StatusChangeRequest, actorID string) (*models.Order, error) {
	target := CanonicalOrderStatus(req.Status)
	if !IsKnownOrderStatus(target) {
		return nil, ValidationError("unknown status %q", req.Status)
	}

	var order models.Order
	var becameCompleted bool

	err := withRetry(s.db, maxTxRetries, func(tx *gorm.DB) error {
		becameCompleted = false
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}

		now := time.Now().UTC()
		fromStatus := order.Status
		statusChanged := target != order.Status

		if statusChanged && !CanTransitionOrder(order.Status, target) {
			return TransitionError(order.Status, target)
		}

		applyStatusSideFields(&order, req, now)

		if statusChanged {
			ApplyOrderStatus(&order, target, now)
			becameCompleted = target == OrderStatusCompleted
		}

		RecalcCounters(&order, now)

		if err := saveOrder(tx, &order); err != nil {
			return err
		}
		if statusChanged {
			s.recordEvent(tx, &order, nil, actorID, models.EventOrderStatusChanged, fromStatus, target, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if becameCompleted && s.inventory != nil {
		go s.inventory.ConsumeForOrder(&order)
	}
	s.audit.Record(actorID, "order", "status", fmt.Sprintf("Заказ %s -> %s", order.OrderNumber, order.Status), models.JSONMap{"order_id": order.ID})
	s.publish(models.EventOrderStatusChanged, &order, nil)

	return &order, nil
}

// ItemChangeRequest запрос на изменение позиции заказа
type ItemChangeRequest struct {
	State               *string  `json:"state"`
	StationCode         *string  `json:"station_code"`
	CookSecondsEstimate *int     `json:"cook_seconds_estimate"`
	Modifiers           []string `json:"modifiers"`
	Allergens           []string `json:"allergens"`
	Notes               *string  `json:"notes"`
	Priority            *string  `json:"priority"`
	BatchID             *string  `json:"batch_id"`
	HoldUntil           *string  `json:"hold_until"`
	AutoStage           bool     `json:"auto_stage"`
}

// SetItemState меняет состояние и атрибуты позиции. После изменения
// пересчитывает счетчики заказа и при полной готовности всех позиций
// автоматически двигает заказ в assembling (или staged при auto_stage).
func (s *OrderService) SetItemState(orderID, itemID string, req ItemChangeRequest, actorID string) (*models.Order, error) {
	var order models.Order
	var changedItem *models.OrderItem

	err := withRetry(s.db, maxTxRetries, func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}

		var item *models.OrderItem
		for i := range order.Items {
			if order.Items[i].ID == itemID {
				item = &order.Items[i]
				break
			}
		}
		if item == nil {
			return fmt.Errorf("%w: order item %s", ErrNotFound, itemID)
		}

		now := time.Now().UTC()
		fromState := item.State

		if req.State != nil {
			target := CanonicalItemState(*req.State)
			if !IsKnownItemState(target) {
				return ValidationError("unknown item state %q", *req.State)
			}
			if target != item.State {
				if !CanTransitionItem(item.State, target) {
					return TransitionError(item.State, target)
				}
				ApplyItemState(item, target, now)
			}
		}

		if req.HoldUntil != nil && (item.State == ItemStateHold || item.State == ItemStateDelayed) {
			holdUntil, err := time.Parse(time.RFC3339, *req.HoldUntil)
			if err != nil {
				return ValidationError("invalid hold_until: %v", err)
			}
			item.HoldUntil = &holdUntil
		}

		if req.StationCode != nil {
			var station models.KitchenStation
			err := tx.Where("code = ? AND is_active = ?", strings.ToLower(*req.StationCode), true).First(&station).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ValidationError("station %q is not active", *req.StationCode)
			}
			if err != nil {
				return err
			}
			item.StationCode = station.Code
			item.StationName = station.Name
		}
		if req.CookSecondsEstimate != nil {
			item.CookSecondsEstimate = *req.CookSecondsEstimate
		}
		if req.Modifiers != nil {
			item.Modifiers = models.StringList(req.Modifiers)
		}
		if req.Allergens != nil {
			item.Allergens = models.StringList(req.Allergens)
		}
		if req.Notes != nil {
			item.Notes = *req.Notes
		}
		if req.Priority != nil {
			item.Priority = strings.ToLower(*req.Priority)
		}
		if req.BatchID != nil {
			item.BatchID = *req.BatchID
		}
		item.UpdatedAt = now

		if err := tx.Save(item).Error; err != nil {
			return err
		}

		RecalcCounters(&order, now)

		// Все позиции готовы: заказ двигается сам
		if autoTarget := DeriveAutoTarget(&order, req.AutoStage); autoTarget != "" {
			fromStatus := order.Status
			ApplyOrderStatus(&order, autoTarget, now)
			RecalcCounters(&order, now)
			s.recordEvent(tx, &order, nil, actorID, models.EventOrderStatusAuto, fromStatus, autoTarget, models.JSONMap{
				"trigger": "item_state",
			})
		}

		if err := saveOrder(tx, &order); err != nil {
			return err
		}

		itemCopy := *item
		changedItem = &itemCopy
		s.recordEvent(tx, &order, item, actorID, models.EventOrderItemStateChanged, fromState, item.State, models.JSONMap{
			"item_name": item.ItemName,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(actorID, "order_item", "state", fmt.Sprintf("Позиция %s -> %s", changedItem.ItemName, changedItem.State), models.JSONMap{
		"order_id": order.ID,
		"item_id":  changedItem.ID,
	})
	s.publish(models.EventOrderItemStateChanged, &order, changedItem)

	return &order, nil
}

// VerifyHandoff проверяет код выдачи и завершает заказ
func (s *OrderService) VerifyHandoff(orderID, code, actorID string) (*models.Order, error) {
	var order models.Order

	err := withRetry(s.db, maxTxRetries, func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if order.HandoffCode == "" {
			return ValidationError("order has no handoff code")
		}
		if !strings.EqualFold(strings.TrimSpace(code), order.HandoffCode) {
			return ValidationError("handoff code mismatch")
		}

		now := time.Now().UTC()
		order.HandoffVerifiedBy = actorID
		order.HandoffVerifiedAt = &now

		if order.Status == OrderStatusStaged || order.Status == OrderStatusHandoff {
			fromStatus := order.Status
			ApplyOrderStatus(&order, OrderStatusCompleted, now)
			RecalcCounters(&order, now)
			s.recordEvent(tx, &order, nil, actorID, models.EventOrderStatusChanged, fromStatus, OrderStatusCompleted, models.JSONMap{
				"trigger": "handoff_verify",
			})
		}
		return saveOrder(tx, &order)
	})
	if err != nil {
		return nil, err
	}

	if order.Status == OrderStatusCompleted && s.inventory != nil {
		go s.inventory.ConsumeForOrder(&order)
	}
	s.audit.Record(actorID, "order", "handoff_verify", fmt.Sprintf("Выдача заказа %s подтверждена", order.OrderNumber), models.JSONMap{"order_id": order.ID})
	s.publish(models.EventOrderStatusChanged, &order, nil)
	return &order, nil
}

// SetAutoFlow ставит авто-продвижение на паузу или снимает с паузы
func (s *OrderService) SetAutoFlow(orderID string, paused bool, reason, actorID string) (*models.Order, error) {
	var order models.Order

	err := withRetry(s.db, maxTxRetries, func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		now := time.Now().UTC()
		if paused {
			order.AutoAdvancePaused = true
			order.AutoAdvancePauseReason = reason
			order.AutoAdvanceTarget = ""
			order.AutoAdvanceAt = nil
		} else {
			order.AutoAdvancePaused = false
			order.AutoAdvancePauseReason = ""
			armAutoAdvance(&order, now)
		}
		return saveOrder(tx, &order)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(actorID, "order", "auto_flow", fmt.Sprintf("Авто-продвижение заказа %s: paused=%v", order.OrderNumber, paused), models.JSONMap{"order_id": order.ID})
	return &order, nil
}

// GetOrder возвращает заказ с позициями
func (s *OrderService) GetOrder(orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence ASC")
	}).Where("id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderListFilter фильтры списка заказов
type OrderListFilter struct {
	Statuses  []string
	OrderType string
	Channel   string
	Priority  string
	Search    string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// ListOrders возвращает страницу заказов по фильтрам
func (s *OrderService) ListOrders(filter OrderListFilter) ([]models.Order, int64, error) {
	query := s.db.Model(&models.Order{})

	if len(filter.Statuses) > 0 {
		canonical := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			canonical = append(canonical, CanonicalOrderStatus(status))
		}
		query = query.Where("status IN ?", canonical)
	}
	if filter.OrderType != "" {
		query = query.Where("order_type = ?", strings.ToLower(filter.OrderType))
	}
	if filter.Channel != "" {
		query = query.Where("channel = ?", strings.ToLower(filter.Channel))
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", strings.ToLower(filter.Priority))
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("order_number ILIKE ? OR customer_name ILIKE ?", pattern, pattern)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var orders []models.Order
	err := query.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence ASC")
	}).Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListEvents возвращает журнал событий заказа (от старых к новым)
func (s *OrderService) ListEvents(orderID string) ([]models.OrderEvent, error) {
	var events []models.OrderEvent
	err := s.db.Where("order_id = ?", orderID).Order("created_at ASC").Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// lockOrder читает заказ с позициями под FOR UPDATE
func lockOrder(tx *gorm.DB, orderID string, order *models.Order) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Where("id = ?", orderID).
		First(order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	return err
}

// saveOrder сохраняет заказ без каскада позиций
func saveOrder(tx *gorm.DB, order *models.Order) error {
	return tx.Omit("Items").Save(order).Error
}

// applyStatusSideFields применяет сопутствующие поля запроса смены статуса
func applyStatusSideFields(order *models.Order, req StatusChangeRequest, now time.Time) {
	if req.ShelfSlot != nil {
		order.ShelfSlot = strings.ToUpper(strings.TrimSpace(*req.ShelfSlot))
	}
	if req.Priority != nil {
		order.Priority = strings.ToLower(strings.TrimSpace(*req.Priority))
	}
	if req.QuotedMinutes != nil {
		order.QuotedMinutes = clampQuote(*req.QuotedMinutes)
		order.EtaSeconds = order.QuotedMinutes * 60
	}
	if req.PromisedTime != nil {
		if promised, err := time.Parse(time.RFC3339, *req.PromisedTime); err == nil {
			order.PromisedTime = &promised
		} else {
			log.Printf("⚠️ Некорректное promised_time %q: %v", *req.PromisedTime, err)
		}
	}
	if req.IsThrottled != nil {
		order.IsThrottled = *req.IsThrottled
	}
	if req.ThrottleReason != nil {
		order.ThrottleReason = *req.ThrottleReason
	}
	if req.BulkReference != nil {
		order.BulkReference = *req.BulkReference
	}
	if req.HandoffVerifiedBy != nil {
		order.HandoffVerifiedBy = *req.HandoffVerifiedBy
		order.HandoffVerifiedAt = &now
	}
	if len(req.Meta) > 0 {
		if order.Meta == nil {
			order.Meta = models.JSONMap{}
		}
		for k, v := range req.Meta {
			order.Meta[k] = v
		}
	}
}

// ApplyOrderStatus применяет уже проверенный переход статуса:
// отметки времени, код выдачи, перевзвод авто-продвижения.
// Проверка допустимости перехода остается на вызывающем.
func ApplyOrderStatus(order *models.Order, target string, now time.Time) {
	order.Status = target

	if target == OrderStatusCompleted {
		completedAt := now
		order.CompletedAt = &completedAt
	} else {
		// Любой уход из completed, включая возврат, снимает отметку завершения
		order.CompletedAt = nil
	}

	// Код выдачи появляется при выкладке на полку
	if (target == OrderStatusStaged || target == OrderStatusHandoff) && order.HandoffCode == "" {
		order.HandoffCode = NewHandoffCode()
	}

	if IsTerminalOrderStatus(target) {
		order.AutoAdvanceTarget = ""
		order.AutoAdvanceAt = nil
	} else {
		armAutoAdvance(order, now)
	}
}

// ApplyItemState применяет уже проверенный переход состояния позиции
func ApplyItemState(item *models.OrderItem, target string, now time.Time) {
	switch target {
	case ItemStateFiring:
		// Каждый вход в огонь перезаписывает FiredAt: время на hold
		// не попадает в фактическое время готовки
		firedAt := now
		item.FiredAt = &firedAt
		item.ReadyAt = nil
		if item.BatchID == "" {
			item.BatchID = NewBatchID(item.StationCode, now)
		}
	case ItemStateCooking:
		firedAt := now
		item.FiredAt = &firedAt
		item.ReadyAt = nil
	case ItemStateReady:
		readyAt := now
		item.ReadyAt = &readyAt
		if item.FiredAt != nil {
			item.CookSecondsActual = int(now.Sub(*item.FiredAt).Seconds())
		}
	case ItemStateRefired:
		firedAt := now
		item.FiredAt = &firedAt
		item.ReadyAt = nil
		item.BatchID = NewBatchID(item.StationCode, now)
	}

	// Уход из hold/delayed снимает отметку удержания
	if target != ItemStateHold && target != ItemStateDelayed {
		item.HoldUntil = nil
	}

	item.State = target
}

// DeriveAutoTarget решает, куда двигать заказ после изменения позиции.
// Пустая строка означает, что автоматический переход не нужен.
func DeriveAutoTarget(order *models.Order, autoStage bool) string {
	if len(order.Items) == 0 {
		return ""
	}
	for i := range order.Items {
		state := order.Items[i].State
		if state != ItemStateReady && state != ItemStateCompleted {
			return ""
		}
	}

	if autoStage &&
		order.Status != OrderStatusStaged &&
		order.Status != OrderStatusHandoff &&
		order.Status != OrderStatusCompleted &&
		CanTransitionOrder(order.Status, OrderStatusStaged) {
		return OrderStatusStaged
	}
	if (order.Status == OrderStatusAccepted || order.Status == OrderStatusInPrep) &&
		CanTransitionOrder(order.Status, OrderStatusAssembling) {
		return OrderStatusAssembling
	}
	return ""
}

// RecalcCounters пересчитывает денормализованные счетчики заказа.
// Вызывается в той же транзакции, что и изменение, которое он отражает.
func RecalcCounters(order *models.Order, now time.Time) {
	total := 0
	ready := 0
	lastStation := order.LastStationCode
	var lastUpdated time.Time

	for i := range order.Items {
		item := &order.Items[i]
		total += item.Quantity
		if item.State == ItemStateReady || item.State == ItemStateCompleted {
			ready += item.Quantity
		}
		if IsActiveItemState(item.State) && item.UpdatedAt.After(lastUpdated) {
			lastUpdated = item.UpdatedAt
			lastStation = item.StationCode
		}
	}

	order.TotalItemsCached = total
	order.PartialReadyItems = ready
	order.LastStationCode = lastStation

	order.LateBySeconds = 0
	if order.PromisedTime != nil {
		switch {
		case order.Status == OrderStatusCompleted && order.CompletedAt != nil:
			// Опоздание фиксируется на момент завершения
			if order.CompletedAt.After(*order.PromisedTime) {
				order.LateBySeconds = int(order.CompletedAt.Sub(*order.PromisedTime).Seconds())
			}
		case IsTerminalOrderStatus(order.Status):
			order.LateBySeconds = 0
		case now.After(*order.PromisedTime):
			order.LateBySeconds = int(now.Sub(*order.PromisedTime).Seconds())
		}
	}
}

// armAutoAdvance взводит таймер авто-продвижения на следующую фазу
func armAutoAdvance(order *models.Order, now time.Time) {
	phaseStarted := now
	order.PhaseStartedAt = &phaseStarted
	order.PhaseSequence++

	next := NextAutoPhase(order.Status)
	if next == "" || order.AutoAdvancePaused {
		order.AutoAdvanceTarget = ""
		order.AutoAdvanceAt = nil
		return
	}

	duration := order.AutoAdvanceDurationSeconds
	if duration <= 0 {
		duration = defaultAutoAdvanceSeconds
	}
	fireAt := now.Add(time.Duration(duration) * time.Second)
	order.AutoAdvanceTarget = next
	order.AutoAdvanceAt = &fireAt
}

// recordEvent пишет событие в журнал. Журнал только пополняется,
// сбой записи логируется и не откатывает транзакцию.
func (s *OrderService) recordEvent(tx *gorm.DB, order *models.Order, item *models.OrderItem, actorID, eventType, fromState, toState string, payload models.JSONMap) {
	if actorID == "" {
		actorID = actorSystem
	}
	event := models.OrderEvent{
		ID:        uuid.New().String(),
		OrderID:   order.ID,
		ActorID:   actorID,
		EventType: eventType,
		FromState: fromState,
		ToState:   toState,
		Payload:   payload,
	}
	if item != nil {
		itemID := item.ID
		event.ItemID = &itemID
		event.StationCode = item.StationCode
	} else {
		event.StationCode = order.LastStationCode
	}

	if err := tx.Create(&event).Error; err != nil {
		log.Printf("⚠️ Не удалось записать событие %s для заказа %s: %v", eventType, order.OrderNumber, err)
	}
}

// publish отправляет событие внешним потребителям (fire-and-forget)
func (s *OrderService) publish(eventType string, order *models.Order, item *models.OrderItem) {
	if s.publisher == nil {
		return
	}

	payload := map[string]interface{}{
		"event_type":   eventType,
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"status":       order.Status,
		"priority":     order.Priority,
		"audience":     []string{"admin", "manager", "staff"},
		"placed_by":    order.PlacedBy,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}
	if item != nil {
		payload["item_id"] = item.ID
		payload["item_name"] = item.ItemName
		payload["item_state"] = item.State
		payload["station_code"] = item.StationCode
	}
	s.publisher.PublishOrderEvent(payload)
}
