package indicators

import (
	"testing"
	"time"

	"supertrend-core/internal/market"
)

func closeBar(c float64, i int) market.Bar {
	start := time.Date(2025, 9, 22, 10, 0, 0, 0, time.UTC).Add(time.Duration(i) * 3 * time.Minute)
	return market.Bar{Start: start, Open: c, High: c, Low: c, Close: c, Volume: 1}
}

func TestWarmupProducesNoOutput(t *testing.T) {
	st := NewSupertrend(10, 3.0)
	for i := 0; i < 10; i++ {
		if res := st.Push(closeBar(100, i)); res != nil {
			t.Fatalf("bar %d: output before warmup: %+v", i+1, res)
		}
		if st.Ready() {
			t.Fatalf("bar %d: ready before period+1 bars", i+1)
		}
	}
	if res := st.Push(closeBar(100, 10)); res == nil {
		t.Fatal("no output at period+1 bars")
	}
	if !st.Ready() {
		t.Fatal("not ready after period+1 bars")
	}
}

func TestTrackedBandSequence(t *testing.T) {
	// Eleven closes stepping down 0.5 from 100, then a dip, a spike, and a
	// collapse. Expected values verified against the reference series.
	closes := make([]float64, 0, 15)
	for i := 0; i < 11; i++ {
		closes = append(closes, 100-0.5*float64(i))
	}
	closes = append(closes, 94.5, 110, 50)

	want := []struct {
		value float64
		dir   Direction
	}{
		{96.30, Down},
		{95.84, Down},
		{100.45, Up},
		{90.54, Down},
	}

	st := NewSupertrend(10, 3.0)
	got := 0
	for i, c := range closes {
		res := st.Push(closeBar(c, i))
		if res == nil {
			continue
		}
		if got >= len(want) {
			t.Fatalf("extra result at bar %d: %+v", i+1, res)
		}
		if res.Value != want[got].value {
			t.Fatalf("bar %d: value = %v, want %v", i+1, res.Value, want[got].value)
		}
		if res.Direction != want[got].dir {
			t.Fatalf("bar %d: direction = %s, want %s", i+1, res.Direction, want[got].dir)
		}
		got++
	}
	if got != len(want) {
		t.Fatalf("results = %d, want %d", got, len(want))
	}
}

func TestShortPeriodWithRangeBars(t *testing.T) {
	bars := []market.Bar{
		{High: 102, Low: 98, Close: 100},
		{High: 103, Low: 99, Close: 101},
		{High: 101, Low: 97, Close: 98},
		{High: 99, Low: 95, Close: 96},
		{High: 100, Low: 96, Close: 99},
		{High: 104, Low: 100, Close: 103},
	}
	st := NewSupertrend(2, 3.0)
	for i, b := range bars {
		res := st.Push(b)
		if i < 2 {
			if res != nil {
				t.Fatalf("bar %d: output before warmup", i+1)
			}
			continue
		}
		// The lower band sticks at its high-water mark while closes stay
		// above it.
		if res == nil {
			t.Fatalf("bar %d: no output", i+1)
		}
		if res.Value != 89.00 || res.Direction != Up {
			t.Fatalf("bar %d: got %v %s, want 89.00 up", i+1, res.Value, res.Direction)
		}
	}
}

func TestCurrentMatchesLastPush(t *testing.T) {
	st := NewSupertrend(10, 3.0)
	if st.Current() != nil {
		t.Fatal("current during warmup")
	}
	var last *Result
	for i := 0; i < 12; i++ {
		last = st.Push(closeBar(100-0.5*float64(i), i))
	}
	cur := st.Current()
	if cur == nil || last == nil {
		t.Fatal("missing results")
	}
	if cur.Value != last.Value || cur.Direction != last.Direction {
		t.Fatalf("current %+v != last push %+v", cur, last)
	}
}

func TestResetDiscardsHistory(t *testing.T) {
	st := NewSupertrend(10, 3.0)
	for i := 0; i < 12; i++ {
		st.Push(closeBar(100, i))
	}
	st.Reset()
	if st.Ready() || st.BarCount() != 0 {
		t.Fatalf("reset left %d bars", st.BarCount())
	}
	if res := st.Push(closeBar(100, 0)); res != nil {
		t.Fatal("output right after reset")
	}
}

func TestInvalidParamsFallBack(t *testing.T) {
	st := NewSupertrend(0, -1)
	if st.period != 10 || st.multiplier != 3.0 {
		t.Fatalf("defaults not applied: period %d mult %v", st.period, st.multiplier)
	}
}
