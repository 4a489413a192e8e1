package storage

import (
	"testing"
	"time"

	"bitunix-bot/internal/apperr"
	"bitunix-bot/internal/lifecycle"
	"bitunix-bot/internal/position"
	"bitunix-bot/internal/safeguard"
)

func TestInsertAndGetPosition(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	id, err := store.InsertPosition(position.Position{
		Market: "btc", TokenID: "btc-token", WindowID: "w", StrategyID: "s",
		Side: position.Long, EntryPrice: 0.5, Size: 10, Status: position.Open,
		LifecycleState: lifecycle.Monitoring, OpenedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	got, err := store.GetPosition(id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Market != "btc" || got.EntryPrice != 0.5 {
		t.Errorf("got %+v", got)
	}
}

func TestInsertPositionEnforcesWindowMarketTokenUniqueness(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	p := position.Position{Market: "btc", TokenID: "btc-token", WindowID: "w", Status: position.Open}
	if _, err := store.InsertPosition(p); err != nil {
		t.Fatal(err)
	}

	_, err = store.InsertPosition(p)
	if err == nil {
		t.Fatal("expected duplicate (window, market, token) insert to fail")
	}
	if apperr.KindOf(err) != apperr.DuplicatePosition {
		t.Errorf("kind = %v, want DUPLICATE_POSITION", apperr.KindOf(err))
	}

	// A different token on the same window/market is a distinct position.
	p2 := p
	p2.TokenID = "eth-token"
	if _, err := store.InsertPosition(p2); err != nil {
		t.Errorf("a different token_id should not collide: %v", err)
	}
}

func TestListOpenPositionsExcludesClosed(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	id1, err := store.InsertPosition(position.Position{Market: "btc", WindowID: "w1", Status: position.Open, LifecycleState: lifecycle.Monitoring})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.InsertPosition(position.Position{Market: "btc", WindowID: "w2", Status: position.ClosedStat, LifecycleState: lifecycle.Closed}); err != nil {
		t.Fatal(err)
	}

	open, err := store.ListOpenPositions()
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 || open[0].ID != id1 {
		t.Errorf("expected only position %d open, got %+v", id1, open)
	}
}

func TestSetLifecycleStateRejectsStaleFrom(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	id, _ := store.InsertPosition(position.Position{LifecycleState: lifecycle.Monitoring, Status: position.Open})

	n, err := store.SetLifecycleState(id, lifecycle.StopTriggered, lifecycle.ExitPending)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows affected for a stale from, got %d", n)
	}

	n, err = store.SetLifecycleState(id, lifecycle.Monitoring, lifecycle.StopTriggered)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 row affected, got %d", n)
	}
}

func TestIntentLifecycle(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	id, err := store.InsertIntent(position.Intent{Kind: position.OpenPosition, CreatedAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}

	incomplete, err := store.IncompleteIntents()
	if err != nil {
		t.Fatal(err)
	}
	if len(incomplete) != 1 || incomplete[0].Status != position.IntentLogged {
		t.Fatalf("expected 1 incomplete intent at IntentLogged, got %+v", incomplete)
	}

	if err := store.MarkIntentExecuting(id); err != nil {
		t.Fatal(err)
	}
	incomplete, err = store.IncompleteIntents()
	if err != nil {
		t.Fatal(err)
	}
	if len(incomplete) != 1 || incomplete[0].Status != position.IntentExecuting {
		t.Fatalf("expected 1 incomplete intent at IntentExecuting, got %+v", incomplete)
	}

	if err := store.CompleteIntent(id); err != nil {
		t.Fatal(err)
	}

	incomplete, err = store.IncompleteIntents()
	if err != nil {
		t.Fatal(err)
	}
	if len(incomplete) != 0 {
		t.Errorf("expected 0 incomplete intents after completion, got %d", len(incomplete))
	}
}

func TestFailIntentIsTerminalNotIncomplete(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	id, err := store.InsertIntent(position.Intent{Kind: position.ClosePosition, CreatedAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.FailIntent(id); err != nil {
		t.Fatal(err)
	}

	incomplete, err := store.IncompleteIntents()
	if err != nil {
		t.Fatal(err)
	}
	if len(incomplete) != 0 {
		t.Errorf("a failed intent is terminal, should not appear as incomplete, got %+v", incomplete)
	}
}

func TestInsertEntryEnforcesUniqueness(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	e := safeguard.WindowEntry{WindowID: "btc-15m-2026-01-31-10:00", StrategyID: "momentum", Symbol: "BTC", ReservedAt: time.Now()}
	if err := store.InsertEntry(e); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertEntry(e); err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
}

func TestReservationRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	now := time.Now()
	e := safeguard.WindowEntry{WindowID: "w", StrategyID: "s", Symbol: "BTC", ReservedAt: now}
	if err := store.InsertEntry(e); err != nil {
		t.Fatal(err)
	}

	if ok, _ := store.HasEntry("w", "s"); !ok {
		t.Fatal("expected entry to exist")
	}

	confirmedAt := now.Add(time.Second)
	if err := store.ConfirmEntry("w", "s", 7, confirmedAt); err != nil {
		t.Fatal(err)
	}

	last, ok, err := store.LastConfirmedEntryTime("BTC")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !last.Equal(confirmedAt) {
		t.Errorf("expected last confirmed entry time %v, got %v (ok=%v)", confirmedAt, last, ok)
	}

	if err := store.RemoveEntry("w", "s"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := store.HasEntry("w", "s"); ok {
		t.Fatal("expected entry to be removed")
	}
}

func TestSeedConfirmedEntrySetsRateLimitClock(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	seededAt := time.Now().Add(-time.Minute)
	err = store.SeedConfirmedEntry(safeguard.WindowEntry{
		WindowID: "w", StrategyID: "s", Symbol: "ETH", Confirmed: true, ConfirmedAt: seededAt,
	})
	if err != nil {
		t.Fatal(err)
	}

	last, ok, err := store.LastConfirmedEntryTime("ETH")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !last.Equal(seededAt) {
		t.Errorf("expected seeded confirmed time %v, got %v (ok=%v)", seededAt, last, ok)
	}
}

func TestStaleReservations(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	old := time.Now().Add(-time.Hour)
	recent := time.Now()
	if err := store.InsertEntry(safeguard.WindowEntry{WindowID: "w1", StrategyID: "s1", Symbol: "BTC", ReservedAt: old}); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertEntry(safeguard.WindowEntry{WindowID: "w2", StrategyID: "s2", Symbol: "ETH", ReservedAt: recent}); err != nil {
		t.Fatal(err)
	}

	stale, err := store.StaleReservations(time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 || stale[0].WindowID != "w1" {
		t.Errorf("expected only w1 stale, got %+v", stale)
	}
}
