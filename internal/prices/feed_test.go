package prices

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/cryptoearn/cryptoearn/internal/logging"
)

func TestTickMovesWithinBounds(t *testing.T) {
	values := []float64{0, 0.999999, 0.5, 0.75}
	i := 0
	feed := NewFeed(time.Second, logging.Discard(), WithRandom(func() float64 {
		v := values[i%len(values)]
		i++
		return v
	}))

	for n := 0; n < 20; n++ {
		feed.Tick()
	}
	after := feed.Snapshot()
	if len(after) != 6 {
		t.Fatalf("expected 6 assets, got %d", len(after))
	}
	for asset, q := range after {
		if q.Change < -MaxStepPercent || q.Change >= MaxStepPercent {
			t.Fatalf("%s: change %f out of range", asset, q.Change)
		}
		if q.Price <= 0 {
			t.Fatalf("%s: price must stay positive", asset)
		}
	}
}

func TestTickAppliesStep(t *testing.T) {
	feed := NewFeed(time.Second, logging.Discard(),
		WithQuotes(map[string]Quote{"bitcoin": {Price: 100}}),
		WithRandom(func() float64 { return 0.75 }),
	)
	feed.Tick()
	q := feed.Snapshot()["bitcoin"]
	if math.Abs(q.Change-2.5) > 1e-9 || math.Abs(q.Price-102.5) > 1e-9 {
		t.Fatalf("unexpected quote %+v", q)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	feed := NewFeed(time.Second, logging.Discard())
	snap := feed.Snapshot()
	snap["bitcoin"] = Quote{Price: 1}
	if feed.Snapshot()["bitcoin"].Price != 45000 {
		t.Fatalf("snapshot mutation leaked into feed")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	feed := NewFeed(time.Millisecond, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		feed.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("feed did not stop")
	}
}
