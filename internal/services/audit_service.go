package services

import (
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"kitchenline/server/internal/models"
)

// AuditService пишет журнал действий. Все записи best-effort:
// сбой аудита логируется и не ломает основную операцию.
type AuditService struct {
	db *gorm.DB
}

// NewAuditService создает сервис аудита
func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record добавляет запись аудита
func (a *AuditService) Record(actorID, recordType, action, details string, meta models.JSONMap) {
	record := models.AuditRecord{
		ID:         uuid.New().String(),
		ActorID:    actorID,
		RecordType: recordType,
		Action:     action,
		Details:    details,
		Severity:   "info",
		Meta:       meta,
	}
	if err := a.db.Create(&record).Error; err != nil {
		log.Printf("⚠️ Не удалось записать аудит (%s/%s): %v", recordType, action, err)
	}
}
