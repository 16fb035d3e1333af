package reaper

import (
	"context"
	"errors"
	"testing"
)

type fakePurger struct {
	n     int64
	err   error
	calls int
}

func (f *fakePurger) PurgeOrphanedAttempts(context.Context) (int64, error) {
	f.calls++
	return f.n, f.err
}

func TestRunOnce(t *testing.T) {
	tests := []struct {
		name string
		p    *fakePurger
		want int64
	}{
		{"purged", &fakePurger{n: 3}, 3},
		{"nothing", &fakePurger{}, 0},
		{"error", &fakePurger{n: 5, err: errors.New("db down")}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RunOnce(context.Background(), tt.p); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
			if tt.p.calls != 1 {
				t.Errorf("expected 1 call, got %d", tt.p.calls)
			}
		})
	}
}

func TestStartInvalidSchedule(t *testing.T) {
	if _, err := Start(&fakePurger{}, "every now and then"); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestStartValidSchedule(t *testing.T) {
	c, err := Start(&fakePurger{}, "@every 1h")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-c.Stop().Done()
}
