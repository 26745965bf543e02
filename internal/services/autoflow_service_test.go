package services

import (
	"testing"
	"time"

	"kitchenline/server/internal/models"
)

func TestClearAutoAdvance(t *testing.T) {
	at := time.Now().UTC()
	order := &models.Order{
		Status:            OrderStatusStaged,
		AutoAdvanceTarget: OrderStatusHandoff,
		AutoAdvanceAt:     &at,
	}

	clearAutoAdvance(order, PauseReasonNoTarget)
	if !order.AutoAdvancePaused {
		t.Error("остановка должна переводить заказ на паузу")
	}
	if order.AutoAdvancePauseReason != "no target" {
		t.Errorf("причина = %q, want %q", order.AutoAdvancePauseReason, "no target")
	}
	if order.AutoAdvanceTarget != "" || order.AutoAdvanceAt != nil {
		t.Error("остановка должна очищать цель и таймер")
	}
}

func TestAutoAdvanceChainEndsAfterCompleted(t *testing.T) {
	// Полная цепочка авто-продвижения от принятия до завершения
	now := time.Now().UTC()
	order := &models.Order{Status: OrderStatusNew}

	ApplyOrderStatus(order, OrderStatusAccepted, now)
	steps := 0
	for order.AutoAdvanceTarget != "" {
		if steps++; steps > 10 {
			t.Fatal("цепочка авто-продвижения не завершается")
		}
		target := order.AutoAdvanceTarget
		if !CanTransitionOrder(order.Status, target) {
			t.Fatalf("авто-переход %s -> %s недопустим", order.Status, target)
		}
		ApplyOrderStatus(order, target, now)
	}

	if order.Status != OrderStatusCompleted {
		t.Errorf("цепочка должна заканчиваться на completed, got %s", order.Status)
	}
	if order.AutoAdvanceAt != nil {
		t.Error("после завершения таймер должен быть снят")
	}
}

func TestAutoAdvanceNeverArmsInPast(t *testing.T) {
	now := time.Now().UTC()
	order := &models.Order{Status: OrderStatusNew, AutoAdvanceDurationSeconds: 1}

	ApplyOrderStatus(order, OrderStatusAccepted, now)
	if order.AutoAdvanceAt == nil {
		t.Fatal("непаузный заказ должен получить таймер")
	}
	if !order.AutoAdvanceAt.After(now.Add(-time.Millisecond)) {
		t.Errorf("таймер в прошлом: %v при now=%v", order.AutoAdvanceAt, now)
	}
}
