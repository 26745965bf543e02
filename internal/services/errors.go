package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Базовые ошибки сервисного слоя
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrIllegalTransition = errors.New("illegal transition")
)

// ValidationError создает ошибку валидации с деталями
func ValidationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// TransitionError создает ошибку недопустимого перехода
func TransitionError(from, to string) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

// isSerializationError проверяет, является ли ошибка конфликтом сериализации PostgreSQL
// 40001 = serialization_failure, 40P01 = deadlock_detected
func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// isDuplicateKeyError распознает нарушение уникального ограничения
// 23505 = unique_violation
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}

// withRetry выполняет транзакцию с повторами при конфликтах сериализации.
// Экспоненциальная задержка с jitter, максимум maxRetries попыток.
func withRetry(db *gorm.DB, maxRetries int, fn func(tx *gorm.DB) error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		lastErr = db.Transaction(fn)
		if lastErr == nil {
			return nil
		}
		if !isSerializationError(lastErr) {
			return lastErr
		}

		backoff := time.Duration(1<<uint(attempt))*10*time.Millisecond +
			time.Duration(rand.Intn(10))*time.Millisecond
		log.Printf("🔄 Конфликт сериализации, повтор %d/%d через %v", attempt+1, maxRetries, backoff)
		time.Sleep(backoff)
	}
	return fmt.Errorf("transaction failed after %d retries: %w", maxRetries, lastErr)
}
