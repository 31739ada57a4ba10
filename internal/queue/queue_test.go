package queue

import (
	"testing"
	"time"
)

func TestBackoffDelayGrowth(t *testing.T) {
	b := Backoff{Base: 60 * time.Second, Factor: 2, Cap: 600 * time.Second, MaxAttempts: 5}

	// Jitter is +-25%, so check the envelope per attempt.
	wantCenters := []time.Duration{
		60 * time.Second,  // attempt 1
		120 * time.Second, // attempt 2
		240 * time.Second, // attempt 3
		480 * time.Second, // attempt 4
		600 * time.Second, // attempt 5, capped
	}
	for attempt, center := range wantCenters {
		got := b.Delay(attempt + 1)
		low := time.Duration(float64(center) * 0.75)
		if got < low || got > b.Cap+time.Duration(float64(center)*0.25) {
			t.Errorf("attempt %d: delay %s outside envelope around %s", attempt+1, got, center)
		}
		if got > b.Cap {
			t.Errorf("attempt %d: delay %s exceeds cap %s", attempt+1, got, b.Cap)
		}
	}
}

func TestBackoffDelayClampsAttempt(t *testing.T) {
	b := DefaultBackoff
	if d := b.Delay(0); d <= 0 {
		t.Errorf("non-positive delay %s for attempt 0", d)
	}
	if d := b.Delay(100); d > b.Cap {
		t.Errorf("delay %s exceeds cap for large attempt", d)
	}
}
