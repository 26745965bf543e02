package models

import (
	"time"
)

// Order заказ на кухне. Статус всегда хранится в каноническом виде.
type Order struct {
	ID           string `gorm:"type:varchar(36);primaryKey" json:"id"` // UUID как строка
	OrderNumber  string `gorm:"type:varchar(32);uniqueIndex;not null" json:"order_number"`
	Status       string `gorm:"type:varchar(20);not null;default:'accepted';index" json:"status"`
	OrderType    string `gorm:"type:varchar(20);not null;default:'dine_in'" json:"order_type"` // dine_in, takeaway, delivery
	Channel      string `gorm:"type:varchar(20);not null;default:'walk_in'" json:"channel"`    // web, app, phone, walk_in, aggregator
	Priority     string `gorm:"type:varchar(10);not null;default:'normal'" json:"priority"`    // vip, high, normal, low
	CustomerName string `gorm:"type:varchar(255)" json:"customer_name"`

	Subtotal      float64 `gorm:"type:decimal(10,2);default:0" json:"subtotal"`
	Discount      float64 `gorm:"type:decimal(10,2);default:0" json:"discount"`
	TotalAmount   float64 `gorm:"type:decimal(10,2);default:0" json:"total_amount"`
	PaymentMethod string  `gorm:"type:varchar(20)" json:"payment_method"`
	PlacedBy      string  `gorm:"type:varchar(64);index" json:"placed_by"`

	// Котировка времени готовности
	PromisedTime   *time.Time `json:"promised_time"`
	QuotedMinutes  int        `gorm:"default:0" json:"quoted_minutes"`
	EtaSeconds     int        `gorm:"default:0" json:"eta_seconds"`
	IsThrottled    bool       `gorm:"default:false" json:"is_throttled"`
	ThrottleReason string     `gorm:"type:varchar(255)" json:"throttle_reason"`
	BulkReference  string     `gorm:"type:varchar(64)" json:"bulk_reference"`

	// Выдача
	ShelfSlot         string     `gorm:"type:varchar(16)" json:"shelf_slot"`
	HandoffCode       string     `gorm:"type:varchar(8)" json:"handoff_code"`
	HandoffVerifiedBy string     `gorm:"type:varchar(64)" json:"handoff_verified_by"`
	HandoffVerifiedAt *time.Time `json:"handoff_verified_at"`

	// Денормализованные счётчики (пересчитываются в той же транзакции, что и изменение)
	TotalItemsCached  int    `gorm:"default:0" json:"total_items_cached"`
	PartialReadyItems int    `gorm:"default:0" json:"partial_ready_items"`
	LastStationCode   string `gorm:"type:varchar(32)" json:"last_station_code"`
	LateBySeconds     int    `gorm:"default:0" json:"late_by_seconds"`

	// Авто-продвижение по фазам
	AutoAdvanceTarget          string     `gorm:"type:varchar(20)" json:"auto_advance_target"`
	AutoAdvanceAt              *time.Time `gorm:"index" json:"auto_advance_at"`
	AutoAdvancePaused          bool       `gorm:"default:false" json:"auto_advance_paused"`
	AutoAdvancePauseReason     string     `gorm:"type:varchar(128)" json:"auto_advance_pause_reason"`
	AutoAdvanceDurationSeconds int        `gorm:"default:40" json:"auto_advance_duration_seconds"`
	PhaseStartedAt             *time.Time `json:"phase_started_at"`
	PhaseSequence              int        `gorm:"default:0" json:"phase_sequence"`

	Meta JSONMap `gorm:"type:jsonb" json:"meta"`

	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

// TableName возвращает имя таблицы
func (Order) TableName() string {
	return "orders"
}

// OrderItem позиция заказа, привязана к станции приготовления
type OrderItem struct {
	ID         string `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID    string `gorm:"type:varchar(36);not null;index" json:"order_id"`
	MenuItemID string `gorm:"type:varchar(36);index" json:"menu_item_id"`
	ItemName   string `gorm:"type:varchar(255);not null" json:"item_name"`

	Price    float64 `gorm:"type:decimal(10,2);default:0" json:"price"`
	Quantity int     `gorm:"default:1" json:"quantity"`

	State       string `gorm:"type:varchar(20);not null;default:'queued';index" json:"state"`
	StationCode string `gorm:"type:varchar(32);index" json:"station_code"`
	StationName string `gorm:"type:varchar(64)" json:"station_name"`

	CookSecondsEstimate int        `gorm:"default:0" json:"cook_seconds_estimate"`
	CookSecondsActual   int        `gorm:"default:0" json:"cook_seconds_actual"`
	FiredAt             *time.Time `json:"fired_at"`
	ReadyAt             *time.Time `json:"ready_at"`
	HoldUntil           *time.Time `json:"hold_until"`

	BatchID  string `gorm:"type:varchar(40);index" json:"batch_id"`
	Priority string `gorm:"type:varchar(10);default:'normal'" json:"priority"`
	Sequence int    `gorm:"default:0" json:"sequence"`

	Modifiers StringList `gorm:"type:jsonb" json:"modifiers"`
	Allergens StringList `gorm:"type:jsonb" json:"allergens"`
	Notes     string     `gorm:"type:text" json:"notes"`
	Meta      JSONMap    `gorm:"type:jsonb" json:"meta"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName возвращает имя таблицы
func (OrderItem) TableName() string {
	return "order_items"
}

// ToMap преобразует OrderItem в map для API ответа
func (i *OrderItem) ToMap() map[string]interface{} {
	modifiers := i.Modifiers
	if modifiers == nil {
		modifiers = StringList{}
	}
	allergens := i.Allergens
	if allergens == nil {
		allergens = StringList{}
	}

	m := map[string]interface{}{
		"id":                    i.ID,
		"order_id":              i.OrderID,
		"menu_item_id":          i.MenuItemID,
		"item_name":             i.ItemName,
		"price":                 i.Price,
		"quantity":              i.Quantity,
		"state":                 i.State,
		"station_code":          i.StationCode,
		"station_name":          i.StationName,
		"cook_seconds_estimate": i.CookSecondsEstimate,
		"cook_seconds_actual":   i.CookSecondsActual,
		"batch_id":              i.BatchID,
		"priority":              i.Priority,
		"sequence":              i.Sequence,
		"modifiers":             modifiers,
		"allergens":             allergens,
		"notes":                 i.Notes,
		"created_at":            i.CreatedAt.Format(time.RFC3339),
		"updated_at":            i.UpdatedAt.Format(time.RFC3339),
	}
	if i.FiredAt != nil {
		m["fired_at"] = i.FiredAt.Format(time.RFC3339)
	}
	if i.ReadyAt != nil {
		m["ready_at"] = i.ReadyAt.Format(time.RFC3339)
	}
	if i.HoldUntil != nil {
		m["hold_until"] = i.HoldUntil.Format(time.RFC3339)
	}
	return m
}

// ToMap преобразует Order в map для API ответа
func (o *Order) ToMap() map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(o.Items))
	for idx := range o.Items {
		items = append(items, o.Items[idx].ToMap())
	}

	meta := o.Meta
	if meta == nil {
		meta = JSONMap{}
	}

	m := map[string]interface{}{
		"id":                  o.ID,
		"order_number":        o.OrderNumber,
		"status":              o.Status,
		"order_type":          o.OrderType,
		"channel":             o.Channel,
		"priority":            o.Priority,
		"customer_name":       o.CustomerName,
		"subtotal":            o.Subtotal,
		"discount":            o.Discount,
		"total_amount":        o.TotalAmount,
		"payment_method":      o.PaymentMethod,
		"placed_by":           o.PlacedBy,
		"quoted_minutes":      o.QuotedMinutes,
		"eta_seconds":         o.EtaSeconds,
		"is_throttled":        o.IsThrottled,
		"throttle_reason":     o.ThrottleReason,
		"bulk_reference":      o.BulkReference,
		"shelf_slot":          o.ShelfSlot,
		"handoff_code":        o.HandoffCode,
		"handoff_verified_by": o.HandoffVerifiedBy,
		"total_items":         o.TotalItemsCached,
		"partial_ready_items": o.PartialReadyItems,
		"last_station_code":   o.LastStationCode,
		"late_by_seconds":     o.LateBySeconds,
		"auto_advance": map[string]interface{}{
			"target":           o.AutoAdvanceTarget,
			"paused":           o.AutoAdvancePaused,
			"pause_reason":     o.AutoAdvancePauseReason,
			"duration_seconds": o.AutoAdvanceDurationSeconds,
			"phase_sequence":   o.PhaseSequence,
		},
		"meta":       meta,
		"items":      items,
		"created_at": o.CreatedAt.Format(time.RFC3339),
		"updated_at": o.UpdatedAt.Format(time.RFC3339),
	}
	if o.PromisedTime != nil {
		m["promised_time"] = o.PromisedTime.Format(time.RFC3339)
	}
	if o.CompletedAt != nil {
		m["completed_at"] = o.CompletedAt.Format(time.RFC3339)
	}
	if o.HandoffVerifiedAt != nil {
		m["handoff_verified_at"] = o.HandoffVerifiedAt.Format(time.RFC3339)
	}
	if o.AutoAdvanceAt != nil {
		auto := m["auto_advance"].(map[string]interface{})
		auto["at"] = o.AutoAdvanceAt.Format(time.RFC3339)
	}
	if o.PhaseStartedAt != nil {
		auto := m["auto_advance"].(map[string]interface{})
		auto["phase_started_at"] = o.PhaseStartedAt.Format(time.RFC3339)
	}
	return m
}
