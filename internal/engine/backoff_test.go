package engine

import (
	"testing"
	"time"
)

func TestBackoff_Next(t *testing.T) {
	b := NewBackoff(time.Minute, 1.5, 8)

	tests := []struct {
		name    string
		current time.Duration
		found   bool
		want    time.Duration
	}{
		{"found resets to base", 4 * time.Minute, true, time.Minute},
		{"found at base stays at base", time.Minute, true, time.Minute},
		{"empty stretches by factor", time.Minute, false, 90 * time.Second},
		{"empty near ceiling clamps", 7 * time.Minute, false, 8 * time.Minute},
		{"empty at ceiling stays", 8 * time.Minute, false, 8 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Next(tt.current, tt.found); got != tt.want {
				t.Errorf("Next(%v, %v) = %v, want %v", tt.current, tt.found, got, tt.want)
			}
		})
	}
}

func TestBackoff_ConvergesToCeiling(t *testing.T) {
	b := NewBackoff(time.Minute, 1.5, 8)

	interval := time.Minute
	for i := 0; i < 20; i++ {
		interval = b.Next(interval, false)
		if interval > 8*time.Minute {
			t.Fatalf("interval %v exceeded ceiling after %d empty passes", interval, i+1)
		}
	}
	if interval != 8*time.Minute {
		t.Errorf("interval = %v after 20 empty passes, want ceiling %v", interval, 8*time.Minute)
	}

	if got := b.Next(interval, true); got != time.Minute {
		t.Errorf("found after ceiling = %v, want base %v", got, time.Minute)
	}
}

func TestBackoff_Defaults(t *testing.T) {
	b := NewBackoff(time.Minute, 0, 0)
	if b.Factor != 1.5 {
		t.Errorf("default factor = %v, want 1.5", b.Factor)
	}
	if b.Ceiling != 8*time.Minute {
		t.Errorf("default ceiling = %v, want %v", b.Ceiling, 8*time.Minute)
	}
}

func TestChannelState_DueAndUpdate(t *testing.T) {
	b := NewBackoff(time.Minute, 2, 8)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ch := ChannelState{Name: "inbox", Interval: time.Minute}
	if !ch.Due(now) {
		t.Fatal("fresh channel with zero LastCheck should be due")
	}

	ch.Update(b, false, now)
	if ch.Interval != 2*time.Minute {
		t.Errorf("interval after empty pass = %v, want 2m", ch.Interval)
	}
	if ch.Due(now.Add(time.Minute)) {
		t.Error("channel due before interval elapsed")
	}
	if !ch.Due(now.Add(2 * time.Minute)) {
		t.Error("channel not due after interval elapsed")
	}

	ch.Update(b, true, now.Add(2*time.Minute))
	if ch.Interval != time.Minute {
		t.Errorf("interval after found pass = %v, want base 1m", ch.Interval)
	}
	if got := ch.NextCheck(); !got.Equal(now.Add(3 * time.Minute)) {
		t.Errorf("NextCheck = %v, want %v", got, now.Add(3*time.Minute))
	}
}
