package game

import (
	"context"
	"fmt"
	"testing"
	"time"

	"birzha-bot/internal/features/settings"
)

// waitFor опрашивает условие до истечения таймаута.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("условие не выполнилось за отведённое время")
}

// tuneSettings собирает настройки для контроллера: turnTimer в секундах
// (0 даёт мгновенные тики, большое значение их практически отключает).
func tuneSettings(turnTimer, turnCounter int) *fakeSettings {
	return &fakeSettings{s: settings.Settings{
		TurnTimer:          turnTimer,
		TurnCounter:        turnCounter,
		PlayerBalance:      500,
		SharesMinimalPrice: 100,
		SharesMaximumPrice: 200,
	}}
}

func newControllerTest(t *testing.T, turnTimer, turnCounter int) (*Registry, *Service, *memStore, *fakeMessenger, *Game) {
	t.Helper()
	store := newMemStore()
	messenger := &fakeMessenger{}
	userDir := newFakeUsers()
	svc := NewService(store, messenger, userDir, tuneSettings(turnTimer, turnCounter))
	game := setupGame(t, svc, store, userDir)
	return NewRegistry(svc, 16), svc, store, messenger, game
}

func TestControllerStopsAtTurnLimit(t *testing.T) {
	reg, _, store, _, game := newControllerTest(t, 0, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reg.Start(ctx, 100); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool {
		g, err := store.GetGameByID(context.Background(), game.ID)
		return err == nil && !g.IsActive
	})

	g, _ := store.GetGameByID(context.Background(), game.ID)
	if g.LastTurn != 3 {
		t.Errorf("игра остановилась на ходу %d, ожидали 3", g.LastTurn)
	}
	waitFor(t, func() bool { return reg.Count() == 0 })
}

func TestControllerAnnouncesWinner(t *testing.T) {
	reg, _, store, messenger, game := newControllerTest(t, 0, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reg.Start(ctx, 100); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool {
		g, err := store.GetGameByID(context.Background(), game.ID)
		return err == nil && !g.IsActive
	})
	waitFor(t, func() bool { return messenger.lastText() != "" })
}

func TestControllerLeaveBelowTwoFinishes(t *testing.T) {
	reg, _, store, _, game := newControllerTest(t, 3600, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reg.Start(ctx, 100); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return reg.Attached(100) })

	if !reg.Dispatch(100, Action{Kind: ActionLeave, TelegramID: 11}) {
		t.Fatal("действие не принято")
	}

	waitFor(t, func() bool {
		g, err := store.GetGameByID(context.Background(), game.ID)
		return err == nil && !g.IsActive
	})
	waitFor(t, func() bool { return !reg.Attached(100) })
}

func TestControllerExplicitFinish(t *testing.T) {
	reg, _, store, _, game := newControllerTest(t, 3600, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reg.Start(ctx, 100); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return reg.Attached(100) })

	reg.Dispatch(100, Action{Kind: ActionFinish})

	waitFor(t, func() bool {
		g, err := store.GetGameByID(context.Background(), game.ID)
		return err == nil && !g.IsActive
	})
}

func TestControllerSurvivesAliveCountError(t *testing.T) {
	_, svc, store, _, game := newControllerTest(t, 0, 3)

	cfg, err := svc.TurnConfig(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Первый тик не сможет прочитать список живых игроков
	store.failNextAlive(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go newController(svc, game, cfg, 16).run(ctx, func() {})

	waitFor(t, func() bool {
		g, err := store.GetGameByID(context.Background(), game.ID)
		return err == nil && !g.IsActive
	})

	g, _ := store.GetGameByID(context.Background(), game.ID)
	if g.LastTurn != 3 {
		t.Errorf("сбой чтения завершил игру на ходу %d, ожидали 3", g.LastTurn)
	}
	alive, err := svc.AliveCount(context.Background(), game.ID)
	if err != nil || alive != 2 {
		t.Errorf("живых игроков %d (err=%v), ожидали 2", alive, err)
	}
}

func TestControllerProcessesActionsInOrder(t *testing.T) {
	reg, _, store, _, _ := newControllerTest(t, 3600, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reg.Start(ctx, 100); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return reg.Attached(100) })

	gazprom, err := store.GetShareByName(context.Background(), "Газпром")
	if err != nil {
		t.Fatal(err)
	}
	sber, err := store.GetShareByName(context.Background(), "Сбер")
	if err != nil {
		t.Fatal(err)
	}

	actions := []Action{
		{Kind: ActionBuy, TelegramID: 11, ShareID: gazprom.ID},
		{Kind: ActionBuy, TelegramID: 11, ShareID: sber.ID},
		{Kind: ActionSell, TelegramID: 11, ShareID: gazprom.ID},
	}
	for _, act := range actions {
		if !reg.Dispatch(100, act) {
			t.Fatalf("действие %+v не принято", act)
		}
	}
	reg.Dispatch(100, Action{Kind: ActionFinish})
	waitFor(t, func() bool { return !reg.Attached(100) })

	want := []string{
		fmt.Sprintf("buy %d", gazprom.ID),
		fmt.Sprintf("buy %d", sber.ID),
		fmt.Sprintf("sell %d", gazprom.ID),
	}
	got := store.tradeLog()
	if len(got) != len(want) {
		t.Fatalf("операций %d, ожидали %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("операция %d: %q, ожидали %q", i, got[i], want[i])
		}
	}
}

func TestRegistryDispatchWithoutGame(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, &fakeMessenger{}, newFakeUsers(), defaultFakeSettings())
	reg := NewRegistry(svc, 16)

	if reg.Dispatch(100, Action{Kind: ActionBuy, TelegramID: 11, ShareID: 1}) {
		t.Error("Dispatch без контроллера должен вернуть false")
	}
}

func TestRegistryResumeActive(t *testing.T) {
	store := newMemStore()
	messenger := &fakeMessenger{}
	userDir := newFakeUsers()
	svc := NewService(store, messenger, userDir, tuneSettings(3600, 1000))
	game := setupGame(t, svc, store, userDir)

	// Игра шла до перезапуска: счётчик ходов уже сдвинут
	if err := store.IncreaseGameTurn(context.Background(), game.ID); err != nil {
		t.Fatal(err)
	}

	// Вторая игра в другом чате ждёт набора игроков: не возобновляется
	if err := svc.CreateGame(context.Background(), 200); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry(svc, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reg.ResumeActive(ctx); err != nil {
		t.Fatalf("ResumeActive: %v", err)
	}
	waitFor(t, func() bool { return reg.Attached(100) })
	if reg.Attached(200) {
		t.Error("игра в наборе игроков не должна возобновляться")
	}
}
