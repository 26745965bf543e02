package models

import (
	"time"
)

// Типы событий заказа
const (
	EventOrderCreated          = "order.created"
	EventOrderStatusChanged    = "order.status_changed"
	EventOrderItemStateChanged = "order.item_state_changed"
	EventOrderStatusAuto       = "order.status_auto"
)

// OrderEvent запись журнала событий заказа. Только добавление, без изменений и удалений.
type OrderEvent struct {
	ID          string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID     string  `gorm:"type:varchar(36);not null;index" json:"order_id"`
	ItemID      *string `gorm:"type:varchar(36);index" json:"item_id"`
	ActorID     string  `gorm:"type:varchar(64)" json:"actor_id"`
	EventType   string  `gorm:"type:varchar(40);not null;index" json:"event_type"`
	FromState   string  `gorm:"type:varchar(20)" json:"from_state"`
	ToState     string  `gorm:"type:varchar(20)" json:"to_state"`
	StationCode string  `gorm:"type:varchar(32)" json:"station_code"`
	Payload     JSONMap `gorm:"type:jsonb" json:"payload"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName возвращает имя таблицы
func (OrderEvent) TableName() string {
	return "order_events"
}

// ToMap преобразует OrderEvent в map для API ответа
func (e *OrderEvent) ToMap() map[string]interface{} {
	payload := e.Payload
	if payload == nil {
		payload = JSONMap{}
	}

	m := map[string]interface{}{
		"id":           e.ID,
		"order_id":     e.OrderID,
		"actor_id":     e.ActorID,
		"event_type":   e.EventType,
		"from_state":   e.FromState,
		"to_state":     e.ToState,
		"station_code": e.StationCode,
		"payload":      payload,
		"created_at":   e.CreatedAt.Format(time.RFC3339),
	}
	if e.ItemID != nil {
		m["item_id"] = *e.ItemID
	}
	return m
}
