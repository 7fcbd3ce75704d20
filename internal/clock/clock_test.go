package clock

import "testing"

func TestDeadlineMillis(t *testing.T) {
	got := DeadlineMillis(1000, 25)
	want := Micros(1000 + 25000)
	if got != want {
		t.Errorf("DeadlineMillis = %v, want %v", got, want)
	}
}

func TestElapsedClampsNegative(t *testing.T) {
	if got := Elapsed(100, 200); got != 0 {
		t.Errorf("Elapsed(before since) = %v, want 0", got)
	}
}

func TestElapsedMillis(t *testing.T) {
	if got := Elapsed(50_000, 10_000); got != 40 {
		t.Errorf("Elapsed = %v, want 40", got)
	}
}

func TestFakeAdvance(t *testing.T) {
	f := NewFake(0)
	f.Advance(25)
	if f.Now() != 25_000 {
		t.Errorf("Now() = %v, want 25000", f.Now())
	}
}
