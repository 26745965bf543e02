package services

import (
	"strings"
	"testing"
	"time"

	"kitchenline/server/internal/models"
)

func quoteStations() []models.KitchenStation {
	return []models.KitchenStation{
		{Code: "grill", Name: "Grill", Capacity: 4, IsActive: true},
		{Code: "fry", Name: "Fry", Capacity: 6, IsActive: true},
	}
}

func TestComputeQuoteUnderCapacity(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	result := ComputeQuote(12, quoteStations(), map[string]int{"grill": 1},
		[]QuoteLine{{StationCode: "grill", Quantity: 2}}, now)

	if result.QuotedMinutes != 12 {
		t.Errorf("QuotedMinutes = %d, want 12 (базовая котировка без перегрузки)", result.QuotedMinutes)
	}
	if result.IsThrottled {
		t.Error("станция не перегружена, is_throttled должен быть false")
	}
	if result.EtaSeconds != 12*60 {
		t.Errorf("EtaSeconds = %d, want %d", result.EtaSeconds, 12*60)
	}
	if want := now.Add(12 * time.Minute); !result.PromisedTime.Equal(want) {
		t.Errorf("PromisedTime = %v, want %v", result.PromisedTime, want)
	}
}

func TestComputeQuoteOverload(t *testing.T) {
	now := time.Now().UTC()
	// grill: wip 4 (полная мощность) + 2 входящих = 6 при мощности 4.
	// Превышение 2, добавка (2+1)*2 = 6 минут к базе.
	result := ComputeQuote(12, quoteStations(), map[string]int{"grill": 4},
		[]QuoteLine{{StationCode: "grill", Quantity: 2}}, now)

	if result.QuotedMinutes != 18 {
		t.Errorf("QuotedMinutes = %d, want 18", result.QuotedMinutes)
	}
	if !result.IsThrottled {
		t.Error("перегруженная станция должна давать is_throttled = true")
	}
	if !strings.Contains(result.ThrottleReason, "Grill at 150% load") {
		t.Errorf("ThrottleReason = %q, want упоминание Grill at 150%% load", result.ThrottleReason)
	}
}

func TestComputeQuoteMultipleStations(t *testing.T) {
	now := time.Now().UTC()
	// Перегружены обе станции: берется худшая оценка, причины объединяются
	result := ComputeQuote(12, quoteStations(),
		map[string]int{"grill": 6, "fry": 7},
		[]QuoteLine{
			{StationCode: "grill", Quantity: 1},
			{StationCode: "fry", Quantity: 1},
		}, now)

	// grill: 7 при мощности 4 -> 12 + (7-4+1)*2 = 20
	// fry: 8 при мощности 6 -> 12 + (8-6+1)*2 = 18
	if result.QuotedMinutes != 20 {
		t.Errorf("QuotedMinutes = %d, want 20 (максимум по станциям)", result.QuotedMinutes)
	}
	if !strings.Contains(result.ThrottleReason, "Grill") || !strings.Contains(result.ThrottleReason, "Fry") {
		t.Errorf("ThrottleReason = %q, want обе станции", result.ThrottleReason)
	}
	if !strings.Contains(result.ThrottleReason, ", ") {
		t.Errorf("причины должны объединяться через запятую: %q", result.ThrottleReason)
	}
}

func TestComputeQuoteCallerBaseOverload(t *testing.T) {
	now := time.Now().UTC()
	// Станция с мощностью 4 и WIP 3 получает еще 2 позиции.
	// Базой служит котировка вызывающего, добавка за перегрузку идет
	// поверх нее: 20 + (5-4+1)*2 = 24, строго больше запрошенного
	result := ComputeQuote(20, quoteStations(), map[string]int{"grill": 3},
		[]QuoteLine{{StationCode: "grill", Quantity: 2}}, now)

	if !result.IsThrottled {
		t.Error("перегруженная станция должна давать is_throttled = true")
	}
	if result.QuotedMinutes != 24 {
		t.Errorf("QuotedMinutes = %d, want 24", result.QuotedMinutes)
	}
	if result.QuotedMinutes <= 20 {
		t.Errorf("итоговая котировка %d мин должна быть строго больше запрошенных 20", result.QuotedMinutes)
	}
}

func TestApplyCallerThrottle(t *testing.T) {
	auto := QuoteResult{IsThrottled: true, ThrottleReason: "Grill at 150% load"}

	// Явная причина заменяет автоматическую, флаг берется у вызывающего
	got := ApplyCallerThrottle(auto, "печь на профилактике", false)
	if got.ThrottleReason != "печь на профилактике" {
		t.Errorf("ThrottleReason = %q, want причину вызывающего", got.ThrottleReason)
	}
	if got.IsThrottled {
		t.Error("флаг троттлинга при явной причине берется у вызывающего")
	}

	// Флаг без причины лишь поднимает троттлинг
	got = ApplyCallerThrottle(QuoteResult{}, "  ", true)
	if !got.IsThrottled {
		t.Error("явный флаг вызывающего должен включать троттлинг")
	}
	if got.ThrottleReason != "" {
		t.Errorf("причина не должна появляться из ниоткуда: %q", got.ThrottleReason)
	}

	// Без явных полей котировка не меняется
	got = ApplyCallerThrottle(auto, "", false)
	if !got.IsThrottled || got.ThrottleReason != auto.ThrottleReason {
		t.Error("пустые поля вызывающего не должны трогать автоматическую оценку")
	}
}

func TestComputeQuoteClamp(t *testing.T) {
	now := time.Now().UTC()

	// База ниже минимума поднимается до 6
	low := ComputeQuote(2, quoteStations(), nil, []QuoteLine{{StationCode: "grill", Quantity: 1}}, now)
	if low.QuotedMinutes != 6 {
		t.Errorf("QuotedMinutes = %d, want 6 (нижняя граница)", low.QuotedMinutes)
	}

	// Дикая перегрузка упирается в потолок 90
	high := ComputeQuote(12, quoteStations(), map[string]int{"grill": 200},
		[]QuoteLine{{StationCode: "grill", Quantity: 10}}, now)
	if high.QuotedMinutes != 90 {
		t.Errorf("QuotedMinutes = %d, want 90 (верхняя граница)", high.QuotedMinutes)
	}
}

func TestComputeQuoteZeroCapacityFloor(t *testing.T) {
	now := time.Now().UTC()
	stations := []models.KitchenStation{{Code: "grill", Name: "Grill", Capacity: 0, IsActive: true}}

	// Мощность 0 трактуется как 1, деления на ноль нет
	result := ComputeQuote(12, stations, nil, []QuoteLine{{StationCode: "grill", Quantity: 2}}, now)
	if !result.IsThrottled {
		t.Error("2 позиции при мощности 1 должны давать перегрузку")
	}
	// 12 + (2-1+1)*2 = 16
	if result.QuotedMinutes != 16 {
		t.Errorf("QuotedMinutes = %d, want 16", result.QuotedMinutes)
	}
}
