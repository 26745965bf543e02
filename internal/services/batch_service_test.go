package services

import (
	"strings"
	"testing"
	"time"

	"kitchenline/server/internal/models"
)

func batchStations() []models.KitchenStation {
	return []models.KitchenStation{
		{Code: "grill", Name: "Grill", AutoBatchWindowSeconds: 120},
		{Code: "fry", Name: "Fry", AutoBatchWindowSeconds: 90},
	}
}

func TestDetectBatchWithinWindow(t *testing.T) {
	b := NewBatchService()
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	items := []models.OrderItem{
		{ID: "i1", OrderID: "o1", MenuItemID: "burger", ItemName: "Burger", State: "queued", StationCode: "grill", Quantity: 1, CreatedAt: base},
		{ID: "i2", OrderID: "o2", MenuItemID: "burger", ItemName: "Burger", State: "firing", StationCode: "grill", Quantity: 2, CreatedAt: base.Add(60 * time.Second)},
		// Третья позиция вне окна 120с от самой ранней
		{ID: "i3", OrderID: "o3", MenuItemID: "burger", ItemName: "Burger", State: "queued", StationCode: "grill", Quantity: 1, CreatedAt: base.Add(150 * time.Second)},
	}

	candidates := b.Detect(items[:2], batchStations())
	if len(candidates) != 1 {
		t.Fatalf("ожидался 1 кандидат, получено %d", len(candidates))
	}
	c := candidates[0]
	if c.StationCode != "grill" || c.TotalQuantity != 3 {
		t.Errorf("кандидат: station=%s qty=%d, want grill/3", c.StationCode, c.TotalQuantity)
	}
	if want := base.Add(120 * time.Second); !c.RecommendedFireAt.Equal(want) {
		t.Errorf("RecommendedFireAt = %v, want %v (ранняя позиция + окно)", c.RecommendedFireAt, want)
	}

	// Все три вместе: разброс 150с больше окна 120с, группа отбрасывается
	candidates = b.Detect(items, batchStations())
	if len(candidates) != 0 {
		t.Fatalf("группа с разбросом больше окна не должна быть кандидатом, получено %d", len(candidates))
	}
}

func TestDetectBatchIgnoresOtherStates(t *testing.T) {
	b := NewBatchService()
	base := time.Now().UTC()

	items := []models.OrderItem{
		{ID: "i1", MenuItemID: "burger", ItemName: "Burger", State: "cooking", StationCode: "grill", Quantity: 1, CreatedAt: base},
		{ID: "i2", MenuItemID: "burger", ItemName: "Burger", State: "ready", StationCode: "grill", Quantity: 2, CreatedAt: base},
	}
	if got := b.Detect(items, batchStations()); len(got) != 0 {
		t.Fatalf("только queued/firing участвуют в батчах, получено %d кандидатов", len(got))
	}
}

func TestDetectBatchGroupsByNameWhenNoMenuID(t *testing.T) {
	b := NewBatchService()
	base := time.Now().UTC()

	items := []models.OrderItem{
		{ID: "i1", ItemName: "Special Burger", State: "queued", StationCode: "grill", Quantity: 1, CreatedAt: base},
		{ID: "i2", ItemName: "special burger", State: "queued", StationCode: "grill", Quantity: 1, CreatedAt: base.Add(10 * time.Second)},
	}
	candidates := b.Detect(items, batchStations())
	if len(candidates) != 1 {
		t.Fatalf("группировка по имени без menu_item_id: ожидался 1 кандидат, получено %d", len(candidates))
	}
	if candidates[0].MenuItemKey != "special burger" {
		t.Errorf("MenuItemKey = %q, want %q", candidates[0].MenuItemKey, "special burger")
	}
}

func TestDetectBatchSingleQuantitySkipped(t *testing.T) {
	b := NewBatchService()
	base := time.Now().UTC()

	// Две записи, но суммарное количество 1 встречается только при нуле
	// во второй строке, такой батч не имеет смысла
	items := []models.OrderItem{
		{ID: "i1", MenuItemID: "cola", ItemName: "Cola", State: "queued", StationCode: "fry", Quantity: 1, CreatedAt: base},
		{ID: "i2", MenuItemID: "cola", ItemName: "Cola", State: "queued", StationCode: "fry", Quantity: 0, CreatedAt: base},
	}
	if got := b.Detect(items, batchStations()); len(got) != 0 {
		t.Fatalf("суммарное количество 1 не дает кандидата, получено %d", len(got))
	}
}

func TestDetectBatchUnknownStationSkipped(t *testing.T) {
	b := NewBatchService()
	base := time.Now().UTC()

	items := []models.OrderItem{
		{ID: "i1", MenuItemID: "x", ItemName: "X", State: "queued", StationCode: "ghost", Quantity: 1, CreatedAt: base},
		{ID: "i2", MenuItemID: "x", ItemName: "X", State: "queued", StationCode: "ghost", Quantity: 1, CreatedAt: base},
	}
	if got := b.Detect(items, batchStations()); len(got) != 0 {
		t.Fatalf("станция без окна не дает кандидатов, получено %d", len(got))
	}
}

func TestNewBatchID(t *testing.T) {
	now := time.Date(2026, 8, 31, 14, 25, 1, 0, time.UTC)
	if got := NewBatchID("grill", now); got != "GRILL-260831142501" {
		t.Errorf("NewBatchID = %q, want GRILL-260831142501", got)
	}
	if got := NewBatchID("", now); !strings.HasPrefix(got, "BATCH-") {
		t.Errorf("пустая станция должна давать префикс BATCH-, got %q", got)
	}
}
