package timer

import (
	"fmt"
	"log"
	"time"

	"tickwise/internal/clock"
)

type subscriber struct {
	id int
	fn func(Completion)
}

// Engine drives a Session through Idle/Running/Paused/Expired. The session
// record belongs to the caller; the engine keeps only its tick handle.
// Not safe for concurrent use.
type Engine struct {
	clock clock.Clock
	cfg   Config
	s     *Session

	tick   clock.Timer
	gen    uint64
	anchor time.Time

	subs    []subscriber
	nextSub int
}

// NewEngine attaches to s. A zero session is initialised for pomodoro; a
// session restored as Running comes back Paused since its ticks were lost.
func NewEngine(clk clock.Clock, cfg Config, s *Session) *Engine {
	if s.Mode == "" || s.Total <= 0 {
		*s = NewSession(ModePomodoro, cfg)
	}
	if s.Index < 1 {
		s.Index = 1
	}
	if s.Remaining < 0 {
		s.Remaining = 0
	}
	if s.Remaining > s.Total {
		s.Remaining = s.Total
	}
	if s.State == StateRunning {
		s.State = StatePaused
	}
	if s.State == "" {
		s.State = StateIdle
	}
	return &Engine{clock: clk, cfg: cfg, s: s}
}

func (e *Engine) Session() Session { return *e.s }
func (e *Engine) Config() Config   { return e.cfg }

// Subscribe registers fn for interval completions.
func (e *Engine) Subscribe(fn func(Completion)) (unsubscribe func()) {
	e.nextSub++
	id := e.nextSub
	e.subs = append(e.subs, subscriber{id: id, fn: fn})
	return func() {
		for i, sub := range e.subs {
			if sub.id == id {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) Start() error {
	switch e.s.State {
	case StateIdle, StateExpired:
	default:
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, e.s.State)
	}
	if e.s.Remaining <= 0 {
		e.s.Total = e.cfg.Seconds(e.s.Type)
		e.s.Remaining = e.s.Total
	}
	e.s.State = StateRunning
	e.armTick()
	return nil
}

func (e *Engine) Pause() error {
	if e.s.State != StateRunning {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, e.s.State)
	}
	e.stopTick()
	e.s.State = StatePaused
	return nil
}

func (e *Engine) Resume() error {
	if e.s.State != StatePaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, e.s.State)
	}
	e.s.State = StateRunning
	e.armTick()
	return nil
}

// Reset returns to Idle with the current interval at full length.
func (e *Engine) Reset() {
	e.stopTick()
	e.s.Total = e.cfg.Seconds(e.s.Type)
	e.s.Remaining = e.s.Total
	e.s.State = StateIdle
}

// SetMode switches mode and starts its cycle over.
func (e *Engine) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	e.stopTick()
	*e.s = NewSession(m, e.cfg)
	return nil
}

// SetConfig swaps interval lengths. An untouched idle interval picks them
// up at once; anything in progress keeps its length until the next one.
func (e *Engine) SetConfig(cfg Config) {
	e.cfg = cfg
	if e.s.State == StateIdle && e.s.Remaining == e.s.Total {
		e.s.Total = cfg.Seconds(e.s.Type)
		e.s.Remaining = e.s.Total
	}
}

// Skip moves a pomodoro to its next interval without a completion.
func (e *Engine) Skip() error {
	if e.s.Mode != ModePomodoro {
		return fmt.Errorf("%w: skip outside pomodoro", ErrInvalidTransition)
	}
	running := e.s.State == StateRunning
	e.stopTick()
	e.advance(false)
	if running {
		e.s.State = StateRunning
		e.armTick()
	} else {
		e.s.State = StateIdle
	}
	return nil
}

// Tick consumes one second. Ticks outside Running are ignored.
func (e *Engine) Tick() {
	e.tickAt(e.clock.Now())
}

// tickAt consumes the second ending at at, which stamps any completion.
func (e *Engine) tickAt(at time.Time) {
	if e.s.State != StateRunning {
		return
	}
	e.s.Remaining--
	if e.s.Remaining < 0 {
		e.s.Remaining = 0
	}
	if e.s.Remaining == 0 {
		e.complete(at)
	}
}

// Close cancels the tick source.
func (e *Engine) Close() {
	e.stopTick()
}

func (e *Engine) complete(at time.Time) {
	e.s.State = StateExpired
	done := Completion{
		Mode:    e.s.Mode,
		Type:    e.s.Type,
		Seconds: e.s.Total,
		Index:   e.s.Index,
		At:      at,
	}
	e.emit(done)

	if e.s.State != StateExpired {
		// A subscriber already moved the session on.
		return
	}
	if e.s.Mode != ModePomodoro {
		e.stopTick()
		return
	}
	e.advance(true)
	if e.cfg.AutoStart {
		e.s.State = StateRunning
		return
	}
	e.stopTick()
	e.s.State = StateIdle
}

// advance loads the next pomodoro interval.
func (e *Engine) advance(completed bool) {
	if e.s.Type == TypeWork {
		if completed {
			e.s.Completed++
		}
		every := e.cfg.SessionsUntilLongBreak
		if every < 1 {
			every = 1
		}
		if e.s.Index%every == 0 {
			e.s.Type = TypeLongBreak
		} else {
			e.s.Type = TypeBreak
		}
	} else {
		e.s.Index++
		e.s.Type = TypeWork
	}
	e.s.Total = e.cfg.Seconds(e.s.Type)
	e.s.Remaining = e.s.Total
}

func (e *Engine) emit(c Completion) {
	subs := make([]subscriber, len(e.subs))
	copy(subs, e.subs)
	for _, sub := range subs {
		sub.fn(c)
	}
}

func (e *Engine) armTick() {
	e.stopTick()
	e.anchor = e.clock.Now()
	e.schedule(time.Second)
}

func (e *Engine) schedule(d time.Duration) {
	gen := e.gen
	e.tick = e.clock.AfterFunc(d, func() { e.onTick(gen) })
}

func (e *Engine) stopTick() {
	if e.tick != nil {
		e.tick.Stop()
		e.tick = nil
	}
	e.gen++
}

// onTick applies every whole second that passed since the anchor, so a late
// or coalesced callback catches up instead of drifting.
func (e *Engine) onTick(gen uint64) {
	if gen != e.gen || e.s.State != StateRunning {
		return
	}
	e.tick = nil
	now := e.clock.Now()
	n := int(now.Sub(e.anchor) / time.Second)
	if n > 1 {
		log.Printf("Timer catching up %d seconds", n)
	}
	for i := 0; i < n && e.s.State == StateRunning && gen == e.gen; i++ {
		e.tickAt(e.anchor.Add(time.Duration(i+1) * time.Second))
	}
	if gen != e.gen || e.s.State != StateRunning {
		return
	}
	e.anchor = e.anchor.Add(time.Duration(n) * time.Second)
	next := e.anchor.Add(time.Second).Sub(now)
	if next < 0 {
		next = 0
	}
	e.schedule(next)
}
