package services

import (
	"testing"
)

func TestCanonicalOrderStatus(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"pending", "new"},
		{"in_queue", "accepted"},
		{"in_progress", "in_prep"},
		{"ready", "staged"},
		{"  Ready ", "staged"},
		{"IN_PROGRESS", "in_prep"},
		{"accepted", "accepted"},
		{"completed", "completed"},
		{"garbage", "garbage"},
	}
	for _, tc := range cases {
		if got := CanonicalOrderStatus(tc.in); got != tc.want {
			t.Errorf("CanonicalOrderStatus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOrderTransitions(t *testing.T) {
	cases := []struct {
		from, to string
		allowed  bool
	}{
		{"new", "accepted", true},
		{"new", "cancelled", true},
		{"accepted", "in_prep", true},
		{"accepted", "assembling", true},
		{"accepted", "completed", false}, // прыжок через фазы запрещен
		{"in_prep", "staged", true},
		{"assembling", "handoff", true},
		{"staged", "completed", true},
		{"handoff", "voided", true},
		{"handoff", "cancelled", false},
		{"completed", "refunded", true},
		{"completed", "accepted", false},
		{"cancelled", "accepted", false},
		{"refunded", "completed", false},
	}
	for _, tc := range cases {
		if got := CanTransitionOrder(tc.from, tc.to); got != tc.allowed {
			t.Errorf("CanTransitionOrder(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestItemTransitions(t *testing.T) {
	cases := []struct {
		from, to string
		allowed  bool
	}{
		{"queued", "firing", true},
		{"queued", "delayed", true},
		{"queued", "ready", false},
		{"firing", "cooking", true},
		{"cooking", "ready", true},
		{"cooking", "hold", true},
		{"hold", "cooking", true},
		{"hold", "delayed", false},
		{"delayed", "cooking", true},
		{"ready", "refired", true},
		{"refired", "cooking", true},
		{"ready", "queued", false},
		{"cancelled", "queued", false},
		{"completed", "refired", false},
	}
	for _, tc := range cases {
		if got := CanTransitionItem(tc.from, tc.to); got != tc.allowed {
			t.Errorf("CanTransitionItem(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, status := range []string{"completed", "cancelled", "voided", "refunded"} {
		if !IsTerminalOrderStatus(status) {
			t.Errorf("IsTerminalOrderStatus(%q) = false, want true", status)
		}
	}
	for _, status := range []string{"new", "accepted", "in_prep", "assembling", "staged", "handoff"} {
		if IsTerminalOrderStatus(status) {
			t.Errorf("IsTerminalOrderStatus(%q) = true, want false", status)
		}
	}

	// Completed терминален, но возврат денег из него все еще возможен
	if !CanTransitionOrder("completed", "refunded") {
		t.Error("completed -> refunded должен оставаться допустимым")
	}

	for _, state := range []string{"cancelled", "completed"} {
		if !IsTerminalItemState(state) {
			t.Errorf("IsTerminalItemState(%q) = false, want true", state)
		}
	}
	if IsTerminalItemState("ready") {
		t.Error("ready не должен быть терминальным: возможен refire")
	}
}

func TestActiveItemStates(t *testing.T) {
	active := []string{"queued", "firing", "cooking", "hold", "delayed", "refired"}
	for _, state := range active {
		if !IsActiveItemState(state) {
			t.Errorf("IsActiveItemState(%q) = false, want true", state)
		}
	}
	for _, state := range []string{"ready", "cancelled", "completed"} {
		if IsActiveItemState(state) {
			t.Errorf("IsActiveItemState(%q) = true, want false", state)
		}
	}
}

func TestNextAutoPhase(t *testing.T) {
	cases := []struct {
		status string
		want   string
	}{
		{"accepted", "in_prep"},
		{"in_prep", "assembling"},
		{"assembling", "staged"},
		{"staged", "handoff"},
		{"handoff", "completed"},
		{"completed", ""},
		{"cancelled", ""},
		{"new", ""},
	}
	for _, tc := range cases {
		if got := NextAutoPhase(tc.status); got != tc.want {
			t.Errorf("NextAutoPhase(%q) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestPriorityRank(t *testing.T) {
	cases := []struct {
		priority string
		want     int
	}{
		{"vip", 0},
		{"high", 1},
		{"normal", 2},
		{"medium", 2},
		{"standard", 2},
		{"low", 3},
		{"unknown", 2},
		{"", 2},
	}
	for _, tc := range cases {
		if got := PriorityRank(tc.priority); got != tc.want {
			t.Errorf("PriorityRank(%q) = %d, want %d", tc.priority, got, tc.want)
		}
	}
}
