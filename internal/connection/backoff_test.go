package connection

import (
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	max := 2 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1600 * time.Millisecond},
		{5, 2 * time.Second},
		{10, 2 * time.Second},
		{100, 2 * time.Second},
	}

	for _, tt := range tests {
		if got := Backoff(base, max, tt.attempt); got != tt.want {
			t.Errorf("Backoff(%v, %v, %d) = %v, want %v", base, max, tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_MatchesFormula(t *testing.T) {
	base := 250 * time.Millisecond
	max := 30 * time.Second

	for n := 1; n <= 12; n++ {
		want := base * time.Duration(1<<n)
		if want > max {
			want = max
		}
		if got := Backoff(base, max, n); got != want {
			t.Errorf("Backoff(n=%d) = %v, want %v", n, got, want)
		}
	}
}

func TestBackoff_EdgeCases(t *testing.T) {
	if got := Backoff(0, time.Second, 3); got != 0 {
		t.Errorf("Backoff(base=0) = %v, want 0", got)
	}
	if got := Backoff(time.Second, 0, 3); got != 8*time.Second {
		t.Errorf("Backoff(max=0) = %v, want 8s", got)
	}
	if got := Backoff(time.Second, 0, 200); got <= 0 {
		t.Errorf("Backoff(uncapped, large n) = %v, want positive", got)
	}
}
