package market

import (
	mathrand "math/rand"
	"testing"
	"time"

	"pricehunt/internal/clock"
)

func testEngine(t *testing.T, clk clock.Clock, depth int, seed int64) *Engine {
	t.Helper()
	e := NewEngine(clk, nil, depth)
	e.rand = mathrand.New(mathrand.NewSource(seed))
	return e
}

func coins(v int64) int64 { return v * MicrosPerCoin }

func TestPriceStaysInBounds(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	e := testEngine(t, clk, DefaultHistoryDepth, 7)
	item := Item{ID: "helios-drone", Name: "Helios X2 Drone", MarketPriceMicros: coins(100)}
	if err := e.Track(item); err != nil {
		t.Fatalf("track: %v", err)
	}

	min := MicrosPerCoin
	max := item.MarketPriceMicros + item.MarketPriceMicros/10
	for i := 0; i < 5000; i++ {
		clk.Advance(250 * time.Millisecond)
		price, err := e.Tick(item.ID)
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if price < min || price > max {
			t.Fatalf("tick %d: price %d outside [%d, %d]", i, price, min, max)
		}
	}
}

func TestAntiStallForcesClimb(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	e := testEngine(t, clk, DefaultHistoryDepth, 3)
	if err := e.Track(Item{ID: "x", Name: "X", MarketPriceMicros: coins(100)}); err != nil {
		t.Fatalf("track: %v", err)
	}
	st, err := e.get("x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	st.priceMicros = coins(45) // discount 0.55
	before := st.priceMicros

	clk.Advance(1100 * time.Millisecond)
	for i := 0; i < 2; i++ {
		if _, err := e.Tick("x"); err != nil {
			t.Fatalf("tick: %v", err)
		}
	}
	if st.trend.mode != ModeClimbing {
		t.Fatalf("deep discount did not force climbing, mode=%s", st.trend.mode)
	}
	if st.priceMicros < before {
		t.Fatalf("price fell while anti-stall climbing: %d -> %d", before, st.priceMicros)
	}
}

func TestAntiStallSlowThreshold(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	e := testEngine(t, clk, DefaultHistoryDepth, 3)
	if err := e.Track(Item{ID: "x", Name: "X", MarketPriceMicros: coins(100)}); err != nil {
		t.Fatalf("track: %v", err)
	}
	st, _ := e.get("x")
	st.priceMicros = coins(55) // discount 0.45, below the fast threshold

	clk.Advance(2100 * time.Millisecond)
	if _, err := e.Tick("x"); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if st.trend.mode != ModeClimbing {
		t.Fatalf("0.45 discount after 2s should force climbing, mode=%s", st.trend.mode)
	}
}

func TestDiveSuppressedForFreshViewer(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	e := testEngine(t, clk, DefaultHistoryDepth, 11)
	if err := e.Track(Item{ID: "x", Name: "X", MarketPriceMicros: coins(100)}); err != nil {
		t.Fatalf("track: %v", err)
	}
	if err := e.StartViewing("x"); err != nil {
		t.Fatalf("view: %v", err)
	}
	st, _ := e.get("x")

	// 12 ticks inside the 5s grace window; a dive must never start.
	for i := 0; i < 12; i++ {
		clk.Advance(300 * time.Millisecond)
		if _, err := e.Tick("x"); err != nil {
			t.Fatalf("tick: %v", err)
		}
		if st.trend.mode == ModeDiving {
			t.Fatalf("dive started %v after viewing began", time.Duration(i+1)*300*time.Millisecond)
		}
	}
}

func TestDiveEventuallyStartsUnwatched(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	e := testEngine(t, clk, DefaultHistoryDepth, 11)
	if err := e.Track(Item{ID: "x", Name: "X", MarketPriceMicros: coins(100)}); err != nil {
		t.Fatalf("track: %v", err)
	}
	st, _ := e.get("x")

	sawDive := false
	prev := st.priceMicros
	for i := 0; i < 500 && !sawDive; i++ {
		clk.Advance(250 * time.Millisecond)
		price, err := e.Tick("x")
		if err != nil {
			t.Fatalf("tick: %v", err)
		}
		// A single-tick drop past the stable amplitude can only come
		// from a dive, even if the trend already flipped back.
		if st.trend.mode == ModeDiving || float64(prev-price) > 0.06*float64(prev) {
			sawDive = true
		}
		prev = price
	}
	if !sawDive {
		t.Fatalf("no dive in 500 unwatched ticks at 10%% entry chance")
	}
}

func TestHistoryRingEvictsOldest(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	e := testEngine(t, clk, 8, 5)
	if err := e.Track(Item{ID: "x", Name: "X", MarketPriceMicros: coins(100)}); err != nil {
		t.Fatalf("track: %v", err)
	}
	for i := 0; i < 30; i++ {
		clk.Advance(250 * time.Millisecond)
		if _, err := e.Tick("x"); err != nil {
			t.Fatalf("tick: %v", err)
		}
	}
	detail, err := e.Detail("x")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(detail.History) != 8 {
		t.Fatalf("history length %d, want capacity 8", len(detail.History))
	}
	for i := 1; i < len(detail.History); i++ {
		if detail.History[i].At.Before(detail.History[i-1].At) {
			t.Fatalf("history out of order at %d", i)
		}
	}
	last := detail.History[len(detail.History)-1]
	if last.PriceMicros != detail.CurrentPriceMicros {
		t.Fatalf("newest history point %d != current price %d", last.PriceMicros, detail.CurrentPriceMicros)
	}
}

func TestTrackRejectsDuplicatesAndJunk(t *testing.T) {
	e := testEngine(t, clock.NewFake(time.Unix(1_700_000_000, 0)), 8, 1)
	item := Item{ID: "x", Name: "X", MarketPriceMicros: coins(10)}
	if err := e.Track(item); err != nil {
		t.Fatalf("track: %v", err)
	}
	if err := e.Track(item); err != ErrDuplicateItem {
		t.Fatalf("expected ErrDuplicateItem, got %v", err)
	}
	if err := e.Track(Item{ID: "bad", MarketPriceMicros: 5}); err == nil {
		t.Fatalf("expected sub-coin market price to be rejected")
	}
}

func TestClampPrice(t *testing.T) {
	market := coins(100)
	tests := []struct {
		in   int64
		want int64
	}{
		{in: 0, want: MicrosPerCoin},
		{in: -coins(5), want: MicrosPerCoin},
		{in: coins(50), want: coins(50)},
		{in: coins(200), want: coins(110)},
	}
	for _, tc := range tests {
		if got := clampPrice(tc.in, market); got != tc.want {
			t.Fatalf("clampPrice(%d)=%d want %d", tc.in, got, tc.want)
		}
	}
}

func TestTickUnknownItem(t *testing.T) {
	e := testEngine(t, clock.NewFake(time.Unix(1_700_000_000, 0)), 8, 1)
	if _, err := e.Tick("ghost"); err != ErrItemNotFound {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}
