package models

import (
	"time"
)

// AuditRecord запись аудита действий над заказами и станциями.
// Пишется best-effort, сбой записи не ломает основную операцию.
type AuditRecord struct {
	ID         string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	ActorID    string  `gorm:"type:varchar(64);index" json:"actor_id"`
	RecordType string  `gorm:"type:varchar(40);index" json:"record_type"`
	Action     string  `gorm:"type:varchar(64)" json:"action"`
	Details    string  `gorm:"type:text" json:"details"`
	Severity   string  `gorm:"type:varchar(16);default:'info'" json:"severity"`
	Meta       JSONMap `gorm:"type:jsonb" json:"meta"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName возвращает имя таблицы
func (AuditRecord) TableName() string {
	return "audit_records"
}
