package effect

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Strip is what a Loop drives.
type Strip interface {
	Canvas
	Show() error
}

// Loop renders the current effect and shows it FPS times a second. Every
// frame is rendered and shown while holding Lock, which must be shared with
// anything else touching the strip.
type Loop struct {
	Strip Strip
	Lock  sync.Locker
	FPS   int
	Log   zerolog.Logger

	effect atomic.Value // holder
	now    func() time.Time
}

type holder struct{ Effect }

func NewLoop(s Strip, lock sync.Locker, fps int, e Effect) *Loop {
	l := &Loop{Strip: s, Lock: lock, FPS: fps, Log: zerolog.Nop(), now: time.Now}
	l.SetEffect(e)
	return l
}

// SetEffect swaps the running effect from the next frame on.
func (l *Loop) SetEffect(e Effect) {
	l.effect.Store(holder{e})
}

func (l *Loop) Effect() Effect {
	return l.effect.Load().(holder).Effect
}

// Run ticks until ctx is done. A render or show error ends the loop.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(max(1, l.FPS)))
	defer ticker.Stop()

	start := l.now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.Step(l.now().Sub(start)); err != nil {
				return err
			}
		}
	}
}

// Step renders and shows a single frame at elapsed time t.
func (l *Loop) Step(t time.Duration) error {
	e := l.Effect()
	if _, idle := e.(None); idle {
		return nil
	}
	l.Lock.Lock()
	defer l.Lock.Unlock()
	if err := e.Render(l.Strip, t); err != nil {
		l.Log.Error().Err(err).Str("effect", e.Name()).Msg("render failed")
		return err
	}
	return l.Strip.Show()
}
