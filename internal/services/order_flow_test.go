package services

import (
	"strings"
	"testing"
	"time"

	"kitchenline/server/internal/models"
)

func TestNewOrderNumberFormat(t *testing.T) {
	now := time.Date(2026, 8, 31, 14, 25, 1, 0, time.UTC)
	if got := NewOrderNumber("web", now); got != "W-260831-142501" {
		t.Errorf("NewOrderNumber(web) = %q, want W-260831-142501", got)
	}
	if got := NewOrderNumber("", now); got != "W-260831-142501" {
		t.Errorf("пустой канал должен вести себя как walk_in, got %q", got)
	}
	if got := NewOrderNumber("aggregator", now); got[0] != 'A' {
		t.Errorf("первая буква канала в верхнем регистре, got %q", got)
	}
}

func TestNewHandoffCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := NewHandoffCode()
		if len(code) != 6 {
			t.Fatalf("длина кода выдачи = %d, want 6", len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(handoffAlphabet, r) {
				t.Fatalf("код %q содержит символ вне алфавита", code)
			}
		}
	}
}

func TestApplyOrderStatusStagedIssuesHandoffCode(t *testing.T) {
	now := time.Now().UTC()
	order := &models.Order{Status: OrderStatusAssembling}

	ApplyOrderStatus(order, OrderStatusStaged, now)
	if order.Status != OrderStatusStaged {
		t.Fatalf("status = %s, want staged", order.Status)
	}
	if order.HandoffCode == "" {
		t.Error("выкладка на полку должна выдавать код выдачи")
	}

	// Повторный переход не перевыпускает код
	code := order.HandoffCode
	ApplyOrderStatus(order, OrderStatusHandoff, now)
	if order.HandoffCode != code {
		t.Errorf("код выдачи изменился: %s -> %s", code, order.HandoffCode)
	}
}

func TestApplyOrderStatusCompletedAt(t *testing.T) {
	now := time.Now().UTC()
	order := &models.Order{Status: OrderStatusHandoff}

	ApplyOrderStatus(order, OrderStatusCompleted, now)
	if order.CompletedAt == nil || !order.CompletedAt.Equal(now) {
		t.Fatalf("CompletedAt = %v, want %v", order.CompletedAt, now)
	}
	if order.AutoAdvanceTarget != "" || order.AutoAdvanceAt != nil {
		t.Error("после завершения таймер авто-продвижения должен быть снят")
	}

	// Уход из completed снимает отметку завершения, возврат не исключение
	ApplyOrderStatus(order, OrderStatusRefunded, now.Add(time.Hour))
	if order.CompletedAt != nil {
		t.Errorf("refunded должен снимать CompletedAt, got %v", order.CompletedAt)
	}
}

func TestApplyOrderStatusArmsTimer(t *testing.T) {
	now := time.Now().UTC()
	order := &models.Order{Status: OrderStatusNew, AutoAdvanceDurationSeconds: 25}

	ApplyOrderStatus(order, OrderStatusAccepted, now)
	if order.AutoAdvanceTarget != OrderStatusInPrep {
		t.Errorf("AutoAdvanceTarget = %s, want in_prep", order.AutoAdvanceTarget)
	}
	want := now.Add(25 * time.Second)
	if order.AutoAdvanceAt == nil || !order.AutoAdvanceAt.Equal(want) {
		t.Errorf("AutoAdvanceAt = %v, want %v", order.AutoAdvanceAt, want)
	}
	if order.PhaseSequence != 1 || order.PhaseStartedAt == nil {
		t.Errorf("фаза не отмечена: seq=%d startedAt=%v", order.PhaseSequence, order.PhaseStartedAt)
	}

	// Пауза не дает взводить таймер
	paused := &models.Order{Status: OrderStatusNew, AutoAdvancePaused: true}
	ApplyOrderStatus(paused, OrderStatusAccepted, now)
	if paused.AutoAdvanceTarget != "" || paused.AutoAdvanceAt != nil {
		t.Error("на паузе таймер должен оставаться пустым")
	}
}

func TestApplyItemStateTimestamps(t *testing.T) {
	now := time.Now().UTC()
	item := &models.OrderItem{State: ItemStateQueued, StationCode: "grill"}

	ApplyItemState(item, ItemStateFiring, now)
	if item.FiredAt == nil || !item.FiredAt.Equal(now) {
		t.Fatalf("firing должен проставлять FiredAt")
	}
	if item.BatchID == "" {
		t.Error("firing без батча должен назначать BatchID")
	}
	firstBatch := item.BatchID

	// Каждый вход в готовку перезаписывает FiredAt
	later := now.Add(30 * time.Second)
	ApplyItemState(item, ItemStateCooking, later)
	if !item.FiredAt.Equal(later) {
		t.Errorf("cooking должен обновлять FiredAt, got %v", item.FiredAt)
	}

	ApplyItemState(item, ItemStateReady, later.Add(90*time.Second))
	if item.ReadyAt == nil {
		t.Fatal("ready должен проставлять ReadyAt")
	}
	if item.CookSecondsActual != 90 {
		t.Errorf("CookSecondsActual = %d, want 90", item.CookSecondsActual)
	}

	// Повторная жарка сбрасывает готовность и выдает новый батч
	ApplyItemState(item, ItemStateRefired, now.Add(2*time.Minute))
	if item.ReadyAt != nil {
		t.Error("refired должен снимать ReadyAt")
	}
	if !item.FiredAt.Equal(now.Add(2 * time.Minute)) {
		t.Errorf("refired должен обновлять FiredAt, got %v", item.FiredAt)
	}
	if item.BatchID == firstBatch {
		t.Error("refired должен выдавать новый BatchID")
	}
}

func TestApplyItemStateHoldExcludedFromCookTime(t *testing.T) {
	start := time.Now().UTC()
	item := &models.OrderItem{State: ItemStateQueued, StationCode: "grill"}

	ApplyItemState(item, ItemStateFiring, start)
	ApplyItemState(item, ItemStateCooking, start)
	ApplyItemState(item, ItemStateHold, start.Add(20*time.Second))

	// Долгое удержание не попадает в фактическое время готовки:
	// возврат в cooking заново отсчитывает FiredAt
	resume := start.Add(10 * time.Minute)
	ApplyItemState(item, ItemStateCooking, resume)
	ApplyItemState(item, ItemStateReady, resume.Add(30*time.Second))

	if item.CookSecondsActual != 30 {
		t.Errorf("CookSecondsActual = %d, want 30", item.CookSecondsActual)
	}
}

func TestCollisionOrderNumber(t *testing.T) {
	base := "W-260831-142501"
	for i := 0; i < 20; i++ {
		got := collisionOrderNumber(base)
		if !strings.HasPrefix(got, base+"-") {
			t.Fatalf("суффикс должен добавляться к исходному номеру, got %q", got)
		}
		if suffix := strings.TrimPrefix(got, base+"-"); len(suffix) != 2 {
			t.Fatalf("суффикс должен быть двузначным, got %q", got)
		}
	}
}

func TestApplyItemStateClearsHoldUntil(t *testing.T) {
	now := time.Now().UTC()
	hold := now.Add(5 * time.Minute)
	item := &models.OrderItem{State: ItemStateHold, HoldUntil: &hold}

	ApplyItemState(item, ItemStateCooking, now)
	if item.HoldUntil != nil {
		t.Error("выход из hold должен снимать HoldUntil")
	}
}

func TestDeriveAutoTarget(t *testing.T) {
	ready := func(states ...string) []models.OrderItem {
		items := make([]models.OrderItem, len(states))
		for i, s := range states {
			items[i] = models.OrderItem{State: s}
		}
		return items
	}

	tests := []struct {
		name      string
		status    string
		items     []models.OrderItem
		autoStage bool
		want      string
	}{
		{"все готово, автовыкладка", OrderStatusAssembling, ready("ready", "completed"), true, OrderStatusStaged},
		{"все готово, без автовыкладки из in_prep", OrderStatusInPrep, ready("ready"), false, OrderStatusAssembling},
		{"есть позиция в работе", OrderStatusInPrep, ready("ready", "cooking"), true, ""},
		{"заказ без позиций", OrderStatusInPrep, nil, true, ""},
		{"уже на полке", OrderStatusStaged, ready("ready"), true, ""},
		{"accepted без автовыкладки", OrderStatusAccepted, ready("completed"), false, OrderStatusAssembling},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &models.Order{Status: tt.status, Items: tt.items}
			if got := DeriveAutoTarget(order, tt.autoStage); got != tt.want {
				t.Errorf("DeriveAutoTarget = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecalcCounters(t *testing.T) {
	now := time.Now().UTC()
	order := &models.Order{
		Status: OrderStatusInPrep,
		Items: []models.OrderItem{
			{State: ItemStateReady, Quantity: 2, StationCode: "grill", UpdatedAt: now.Add(-time.Minute)},
			{State: ItemStateCooking, Quantity: 1, StationCode: "fry", UpdatedAt: now},
			{State: ItemStateCancelled, Quantity: 3, StationCode: "salad", UpdatedAt: now},
		},
	}

	RecalcCounters(order, now)
	if order.TotalItemsCached != 6 {
		t.Errorf("TotalItemsCached = %d, want 6", order.TotalItemsCached)
	}
	if order.PartialReadyItems != 2 {
		t.Errorf("PartialReadyItems = %d, want 2", order.PartialReadyItems)
	}
	// Отмененная позиция не считается активной, последняя станция fry
	if order.LastStationCode != "fry" {
		t.Errorf("LastStationCode = %s, want fry", order.LastStationCode)
	}
}

func TestRecalcCountersLateness(t *testing.T) {
	now := time.Now().UTC()
	promised := now.Add(-2 * time.Minute)

	order := &models.Order{Status: OrderStatusInPrep, PromisedTime: &promised}
	RecalcCounters(order, now)
	if order.LateBySeconds != 120 {
		t.Errorf("live опоздание = %d, want 120", order.LateBySeconds)
	}

	// Опоздание завершенного заказа фиксируется на момент завершения
	completedAt := promised.Add(30 * time.Second)
	order.Status = OrderStatusCompleted
	order.CompletedAt = &completedAt
	RecalcCounters(order, now)
	if order.LateBySeconds != 30 {
		t.Errorf("опоздание завершенного = %d, want 30", order.LateBySeconds)
	}

	// Отмена обнуляет опоздание
	order.Status = OrderStatusCancelled
	order.CompletedAt = nil
	RecalcCounters(order, now)
	if order.LateBySeconds != 0 {
		t.Errorf("опоздание отмененного = %d, want 0", order.LateBySeconds)
	}
}
