package alert

import (
	"testing"
	"time"
)

func TestDetectorFiresOnQualifyingMove(t *testing.T) {
	d := NewDetector(15.0, time.Minute)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, fired := d.Observe(t0, 100); fired {
		t.Fatal("single sample must not fire")
	}

	ev, fired := d.Observe(t0.Add(10*time.Second), 118)
	if !fired {
		t.Fatal("move of +18 over 10s should fire")
	}
	if ev.Diff != 18.0 || ev.Direction != "up" || ev.Value != 118 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDetectorRespectsWindowBoundary(t *testing.T) {
	d := NewDetector(15.0, time.Minute)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	d.Observe(t0, 100)
	d.Observe(t0.Add(30*time.Second), 110)

	// t0 falls out of the window; oldest is now 110, diff is only 6.
	if _, fired := d.Observe(t0.Add(61*time.Second), 116); fired {
		t.Fatal("move must be measured against the in-window oldest sample")
	}
}

func TestDetectorFiresDownward(t *testing.T) {
	d := NewDetector(15.0, time.Minute)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	d.Observe(t0, 100)
	ev, fired := d.Observe(t0.Add(5*time.Second), 83.5)
	if !fired {
		t.Fatal("drop of 16.5 should fire")
	}
	if ev.Direction != "down" || ev.Diff != -16.5 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDetectorClearsWindowAfterFire(t *testing.T) {
	d := NewDetector(15.0, time.Minute)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	d.Observe(t0, 100)
	if _, fired := d.Observe(t0.Add(10*time.Second), 120); !fired {
		t.Fatal("expected fire")
	}
	if d.WindowSize() != 0 {
		t.Fatalf("window should be empty after fire, has %d", d.WindowSize())
	}

	// The drift continues but a fresh window has to accumulate a new
	// qualifying delta before the next fire.
	if _, fired := d.Observe(t0.Add(20*time.Second), 125); fired {
		t.Fatal("first sample of a fresh window must not fire")
	}
	if _, fired := d.Observe(t0.Add(30*time.Second), 130); fired {
		t.Fatal("delta of 5 within new window must not fire")
	}
	if _, fired := d.Observe(t0.Add(40*time.Second), 141); !fired {
		t.Fatal("delta of 16 within new window should fire")
	}
}

func TestDetectorDisabledByZeroThreshold(t *testing.T) {
	d := NewDetector(0, time.Minute)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	d.Observe(t0, 100)
	if _, fired := d.Observe(t0.Add(time.Second), 5000); fired {
		t.Fatal("zero threshold disables the detector")
	}
}

func TestDetectorExactThresholdFires(t *testing.T) {
	d := NewDetector(15.0, time.Minute)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	d.Observe(t0, 100)
	if _, fired := d.Observe(t0.Add(time.Second), 115); !fired {
		t.Fatal("diff equal to threshold should fire")
	}
}
