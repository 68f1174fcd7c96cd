package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"memsync/offsets"
	"memsync/offsets/offsetstest"
	"memsync/process"
	"memsync/skins"
	"memsync/session"
)

const defAK47 = 7

var state = skins.State{skins.Ak47: {Enabled: true, PaintKit: 44, StatTrak: -1}}

func options() session.Options {
	return session.Options{
		TickInterval:  time.Millisecond,
		AttachBackoff: time.Millisecond,
		Enabled:       true,
	}
}

func newTarget() (*offsetstest.Target, offsetstest.Player) {
	tg := offsetstest.New(offsetstest.Options{NetworkClientPattern: 1})
	return tg, tg.Spawn(defAK47)
}

func newEngine(tg *offsetstest.Target, attach session.Attacher, opts session.Options) *session.Engine {
	return session.New(attach, offsets.NewResolver(tg.Config, nil), skins.NewChanger(skins.DefaultOptions()), state, opts)
}

func paintKit(t *testing.T, tg *offsetstest.Target, weapon process.ProcessMemoryAddress) int32 {
	t.Helper()
	v, err := tg.Image.ReadINT32(weapon.Add(offsetstest.Field("C_EconEntity.m_nFallbackPaintKit")))
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestRunRetriesAttach(t *testing.T) {
	tg, player := newTarget()

	attempts := 0
	attach := func(context.Context) (process.Process, error) {
		attempts++
		if attempts < 3 {
			return nil, process.ErrProcessNotFound
		}
		return tg.Image, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e := newEngine(tg, attach, options())
	e.OnTick = func(r skins.Report) {
		if r.Patched > 0 {
			cancel()
		}
	}

	if err := e.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("run ended with %v", err)
	}
	if attempts != 3 {
		t.Fatalf("%d attach attempts, want 3", attempts)
	}
	if kit := paintKit(t, tg, player.Active); kit != 44 {
		t.Fatalf("paint kit %d, want 44", kit)
	}
}

func TestRunReattachesAfterExit(t *testing.T) {
	first, _ := newTarget()
	second, player := newTarget()

	var attached []*offsetstest.Target
	attach := func(context.Context) (process.Process, error) {
		tg := first
		if len(attached) > 0 {
			tg = second
		}
		tg.Image.SetAlive(true)
		attached = append(attached, tg)
		return tg.Image, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e := newEngine(first, attach, options())
	e.OnTick = func(r skins.Report) {
		switch {
		case len(attached) == 1 && r.Converged > 0:
			// The first target exits after converging
			first.Image.SetAlive(false)
		case len(attached) == 2 && r.Patched > 0:
			cancel()
		}
	}

	if err := e.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("run ended with %v", err)
	}
	if len(attached) != 2 {
		t.Fatalf("%d attachments, want 2", len(attached))
	}
	if kit := paintKit(t, second, player.Active); kit != 44 {
		t.Fatalf("second target paint kit %d, want 44", kit)
	}
	if second.Image.IsAlive() {
		t.Fatal("session not closed on cancel")
	}
}

func TestRunClosesOnResolveFailure(t *testing.T) {
	broken := offsetstest.New(offsetstest.Options{OmitFields: []string{"CBasePlayerController.m_hPawn"}})
	good, player := newTarget()

	var attached []*offsetstest.Target
	attach := func(context.Context) (process.Process, error) {
		tg := broken
		if len(attached) > 0 {
			tg = good
		}
		attached = append(attached, tg)
		return tg.Image, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e := newEngine(good, attach, options())
	e.OnTick = func(r skins.Report) {
		if r.Patched > 0 {
			cancel()
		}
	}

	if err := e.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("run ended with %v", err)
	}
	if broken.Image.IsAlive() {
		t.Fatal("target with unresolved offsets left open")
	}
	if kit := paintKit(t, good, player.Active); kit != 44 {
		t.Fatalf("paint kit %d, want 44", kit)
	}
}

func TestRunDisabledNeverWrites(t *testing.T) {
	tg, _ := newTarget()
	attach := func(context.Context) (process.Process, error) { return tg.Image, nil }

	opts := options()
	opts.Enabled = false
	e := newEngine(tg, attach, opts)
	e.OnTick = func(skins.Report) { t.Error("tick applied while disabled") }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := e.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run ended with %v", err)
	}
	if n := len(tg.Image.Writes()); n != 0 {
		t.Fatalf("%d writes while disabled", n)
	}
}

func TestRunForcesFullUpdateOnce(t *testing.T) {
	tg, _ := newTarget()
	attach := func(context.Context) (process.Process, error) { return tg.Image, nil }

	opts := options()
	opts.ForceFullUpdate = true
	e := newEngine(tg, attach, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ticks := 0
	e.OnTick = func(skins.Report) {
		if ticks++; ticks == 5 {
			cancel()
		}
	}
	if err := e.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("run ended with %v", err)
	}

	deltaTick := tg.NetworkClient.Add(process.ProcessMemorySize(tg.Config.DeltaTick.Fallback))
	n := 0
	for _, w := range tg.Image.Writes() {
		if w.Addr == deltaTick {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("%d delta tick writes, want 1", n)
	}
}

func TestRunWaitsForPlayer(t *testing.T) {
	tg := offsetstest.New(offsetstest.Options{NetworkClientPattern: 1})
	attach := func(context.Context) (process.Process, error) { return tg.Image, nil }

	e := newEngine(tg, attach, options())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var player offsetstest.Player
	ticks := 0
	e.OnTick = func(r skins.Report) {
		ticks++
		switch {
		case ticks == 3:
			// Player spawns while the session is running
			player = tg.Spawn(defAK47)
		case r.Patched > 0:
			cancel()
		}
	}
	if err := e.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("run ended with %v", err)
	}
	if kit := paintKit(t, tg, player.Active); kit != 44 {
		t.Fatalf("paint kit %d, want 44", kit)
	}
}
