// Package session drives the patch loop: attach to the target, resolve its
// offsets, tick until it exits, then start over.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memsync/offsets"
	"memsync/process"
	"memsync/skins"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Attacher opens the target. It is called again after every failure or
// exit of the target.
type Attacher func(ctx context.Context) (process.Process, error)

type Options struct {
	TickInterval  time.Duration
	AttachBackoff time.Duration
	// Enabled gates the patch loop; a disabled engine still attaches
	Enabled         bool
	ForceFullUpdate bool
	// Debug logs every tick report
	Debug bool
}

// Engine is a single actor: nothing in it runs concurrently.
type Engine struct {
	Options

	Attach   Attacher
	Resolver *offsets.Resolver
	Changer  *skins.Changer
	State    skins.State

	// OnTick, when set, receives the report of every applied tick.
	OnTick func(skins.Report)

	log *logger.Logger
}

func New(attach Attacher, resolver *offsets.Resolver, changer *skins.Changer, state skins.State, opts Options) *Engine {
	return &Engine{
		Options:  opts,
		Attach:   attach,
		Resolver: resolver,
		Changer:  changer,
		State:    state,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "session")),
	}
}

// session is one attachment. Its table is discarded with it.
type session struct {
	proc  process.Process
	table *offsets.Table

	patched     bool
	forced      bool
	unsupported bool
	noPlayer    bool
}

// Run loops until ctx is canceled and returns its error.
func (e *Engine) Run(ctx context.Context) error {
	for {
		s, err := e.attach(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Warn("Attach failed:", err)
			if !sleep(ctx, e.AttachBackoff) {
				return ctx.Err()
			}
			continue
		}

		e.run(ctx, s)

		e.log.Infoln("Session ended, discarding offsets")
		if err := s.proc.Close(); err != nil {
			e.log.Debugln("Close:", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (e *Engine) attach(ctx context.Context) (*session, error) {
	proc, err := e.Attach(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	table, err := e.Resolver.Resolve(ctx, proc)
	if err != nil {
		proc.Close()
		return nil, fmt.Errorf("resolve offsets of pid %d: %w", proc.GetPID(), err)
	}
	e.log.Infoln("Attached to pid", proc.GetPID(), "offsets resolved in", time.Since(start))

	return &session{proc: proc, table: table}, nil
}

func (e *Engine) run(ctx context.Context, s *session) {
	ticker := time.NewTicker(e.TickInterval)
	defer ticker.Stop()

	for {
		if !s.proc.IsAlive() {
			e.log.Infoln("Target process", s.proc.GetPID(), "exited")
			return
		}
		if e.Enabled {
			e.tick(s)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) tick(s *session) {
	report, err := e.Changer.ApplyTick(s.proc, s.table, e.State)
	switch {
	case errors.Is(err, skins.ErrUnsupported):
		if !s.unsupported {
			e.log.Warn("Skin changer disabled for this session:", err)
			s.unsupported = true
		}
		return
	case errors.Is(err, skins.ErrNoPlayer):
		if !s.noPlayer {
			e.log.Debugln("Waiting for a local player")
			s.noPlayer = true
		}
	case err != nil:
		e.log.Debugln("Tick:", err)
	default:
		s.noPlayer = false
	}

	if e.OnTick != nil {
		e.OnTick(report)
	}
	if report.Patched > 0 || e.Debug {
		e.log.Infoln("Tick:", report.String())
	}

	if report.Patched > 0 {
		s.patched = true
	}
	if e.ForceFullUpdate && s.patched && !s.forced {
		s.forced = true
		if err := skins.ForceFullUpdate(s.proc, s.table); err != nil {
			e.log.Warn("Force full update failed:", err)
		} else {
			e.log.Infoln("Forced full update")
		}
	}
}

// sleep waits for d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
