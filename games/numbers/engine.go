/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package numbers implements the round and turn logic of a two-player
// number describing game: one player sees a random number and describes it,
// the other guesses against a countdown, and the roles swap every half-round.
package numbers

import (
	"maps"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingReveal
	StateGuessing
	StateRoundResolved
	StateMatchComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingReveal:
		return "awaiting_reveal"
	case StateGuessing:
		return "guessing"
	case StateRoundResolved:
		return "round_resolved"
	case StateMatchComplete:
		return "match_complete"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HalfTurn says which half of the current round is being played.
type HalfTurn int

const (
	FirstHalf HalfTurn = iota
	SecondHalf
)

func (h HalfTurn) String() string {
	if h == FirstHalf {
		return "first"
	}

	return "second"
}

func (h HalfTurn) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// RoundState is the mutable per-match progress.
type RoundState struct {
	// RoundIndex counts completed full rounds.
	RoundIndex         int
	Half               HalfTurn
	GuesserIsPlayerOne bool
	// GuessesThisHalfRound counts incorrect guesses only.
	GuessesThisHalfRound int

	number    int
	hasNumber bool
	seen      map[int]struct{}
}

func newRoundState() RoundState {
	return RoundState{seen: make(map[int]struct{})}
}

// Seen lists the numbers drawn so far this match, in ascending order.
func (r RoundState) Seen() []int {
	return slices.Sorted(maps.Keys(r.seen))
}

// HalfRoundResult is emitted every time a guesser's turn ends.
type HalfRoundResult struct {
	Round            int       `json:"round"`
	Half             HalfTurn  `json:"half"`
	WasCorrect       bool      `json:"was_correct"`
	Expired          bool      `json:"expired"`
	Guesser          Seat      `json:"-"`
	GuesserName      string    `json:"guesser"`
	Number           int       `json:"number"`
	IncorrectGuesses int       `json:"incorrect_guesses"`
	TimeLeft         int       `json:"time_left"`
	Standings        Standings `json:"standings"`
	Next             State     `json:"next"`
}

// MatchResult is emitted once when the final half-round resolves.
type MatchResult struct {
	Winner       Outcome   `json:"-"`
	WinnerLabel  string    `json:"winner"`
	RoundsPlayed int       `json:"rounds_played"`
	Standings    Standings `json:"standings"`
}

// Hooks receive engine notifications in the order the transitions that raised
// them took effect. They are called after the engine has released its lock,
// so they may query the engine, but they must not call methods that change
// its state. Nil hooks are skipped.
type Hooks struct {
	NumberRevealed    func(number int)
	Tick              func(remaining int)
	HalfRoundResolved func(result HalfRoundResult)
	MatchComplete     func(result MatchResult)
}

// Snapshot is a read-only view of the engine.
type Snapshot struct {
	State                State       `json:"state"`
	Config               MatchConfig `json:"config"`
	RoundIndex           int         `json:"round_index"`
	Half                 HalfTurn    `json:"half"`
	Guesser              string      `json:"guesser"`
	Describer            string      `json:"describer"`
	Number               *int        `json:"number,omitempty"`
	GuessesThisHalfRound int         `json:"guesses_this_half_round"`
	TimeRemaining        int         `json:"time_remaining"`
	Standings            Standings   `json:"standings"`
	Winner               string      `json:"winner,omitempty"`
}

type Option func(*Engine)

func WithPicker(p *Picker) Option {
	return func(e *Engine) { e.picker = p }
}

func WithTimer(t *Timer) Option {
	return func(e *Engine) { e.timer = t }
}

func WithScoreboard(sb *Scoreboard) Option {
	return func(e *Engine) { e.scores = sb }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithHooks(h Hooks) Option {
	return func(e *Engine) { e.hooks = h }
}

// WithDefaultTimer sets the turn length the lobby is pre-filled with.
func WithDefaultTimer(seconds int) Option {
	return func(e *Engine) { e.defaultTimer = ClampTimer(seconds) }
}

// Engine is the match state machine. All methods are safe for concurrent
// use; transitions are serialized behind a single mutex.
type Engine struct {
	mu sync.Mutex

	state        State
	cfg          MatchConfig
	round        RoundState
	defaultTimer int

	// turn is bumped whenever a countdown is started or abandoned, so
	// callbacks from an earlier countdown are ignored.
	turn uint64

	picker *Picker
	timer  *Timer
	scores *Scoreboard
	hooks  Hooks
	log    zerolog.Logger

	outbox []func()

	// Batches of notifications are numbered under mu and delivered in that
	// order, so a tick can never reach a hook after the resolution that
	// ended its countdown.
	batches   uint64
	delivered uint64
	deliverMu sync.Mutex
	deliverOK *sync.Cond
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		defaultTimer: DefaultTimerSeconds,
		log:          zerolog.Nop(),
	}
	e.deliverOK = sync.NewCond(&e.deliverMu)

	for _, opt := range opts {
		opt(e)
	}

	if e.picker == nil {
		e.picker = NewPicker(nil)
	}
	if e.timer == nil {
		e.timer = NewTimer(nil)
	}
	if e.scores == nil {
		e.scores = NewScoreboard(DefaultPlayerOneName, DefaultPlayerTwoName)
	}

	e.resetLocked(LobbyConfig(e.defaultTimer))

	return e
}

// do runs fn under the lock, then delivers any notifications it queued.
func (e *Engine) do(fn func() error) error {
	e.mu.Lock()
	err := fn()
	out := e.outbox
	e.outbox = nil

	var batch uint64
	if len(out) > 0 {
		e.batches++
		batch = e.batches
	}
	e.mu.Unlock()

	if len(out) > 0 {
		e.deliver(batch, out)
	}

	return err
}

// deliver runs out once every earlier batch has been delivered.
func (e *Engine) deliver(batch uint64, out []func()) {
	e.deliverMu.Lock()
	for e.delivered+1 != batch {
		e.deliverOK.Wait()
	}
	e.deliverMu.Unlock()

	for _, notify := range out {
		notify()
	}

	e.deliverMu.Lock()
	e.delivered = batch
	e.deliverOK.Broadcast()
	e.deliverMu.Unlock()
}

func (e *Engine) emit(fn func()) {
	e.outbox = append(e.outbox, fn)
}

func (e *Engine) resetLocked(cfg MatchConfig) {
	e.timer.Stop()
	e.turn++

	e.cfg = cfg
	e.round = newRoundState()
	e.scores.Reset(cfg.PlayerOneName, cfg.PlayerTwoName)
	e.state = StateIdle
}

func (e *Engine) guesserLocked() Seat {
	if e.round.GuesserIsPlayerOne {
		return PlayerOne
	}

	return PlayerTwo
}

// StartMatch validates cfg and begins a new match. It is only allowed from
// the lobby or after a match has completed.
func (e *Engine) StartMatch(cfg MatchConfig) error {
	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return err
	}

	return e.do(func() error {
		if e.state != StateIdle && e.state != StateMatchComplete {
			return &TransitionError{Op: "start_match", State: e.state}
		}

		e.resetLocked(cfg)
		e.defaultTimer = cfg.TurnTimeoutSeconds
		e.state = StateAwaitingReveal

		e.log.Info().
			Str("event", "match_start").
			Str("p1_name", cfg.PlayerOneName).
			Str("p2_name", cfg.PlayerTwoName).
			Int("range_min", cfg.RangeMin).
			Int("range_max", cfg.RangeMax).
			Int("rounds", cfg.TotalRounds).
			Int("timer_seconds", cfg.TurnTimeoutSeconds).
			Bool("avoid_repeats", cfg.AvoidRepeats).
			Msg("match started")

		return nil
	})
}

// Reveal draws the number for the current half-round.
func (e *Engine) Reveal() (int, error) {
	var n int

	err := e.do(func() error {
		if e.state != StateAwaitingReveal || e.round.hasNumber {
			return &TransitionError{Op: "reveal", State: e.state}
		}

		n = e.revealLocked()

		return nil
	})

	return n, err
}

func (e *Engine) revealLocked() int {
	n := e.picker.Pick(e.cfg, e.round.seen)
	e.round.seen[n] = struct{}{}
	e.round.number = n
	e.round.hasNumber = true

	e.log.Debug().
		Int("round", e.round.RoundIndex+1).
		Stringer("half", e.round.Half).
		Int("number", n).
		Msg("number revealed")

	if hook := e.hooks.NumberRevealed; hook != nil {
		e.emit(func() { hook(n) })
	}

	return n
}

// BeginGuessing starts the guesser's countdown. If no number has been drawn
// yet, one is revealed first.
func (e *Engine) BeginGuessing() error {
	return e.do(e.beginGuessingLocked)
}

func (e *Engine) beginGuessingLocked() error {
	if e.state != StateAwaitingReveal {
		return &TransitionError{Op: "begin_guessing", State: e.state}
	}

	if !e.round.hasNumber {
		e.revealLocked()
	}

	e.round.GuessesThisHalfRound = 0
	e.state = StateGuessing

	e.turn++
	turn := e.turn
	e.timer.Start(e.cfg.TurnTimeoutSeconds,
		func(remaining int) { e.onTick(turn, remaining) },
		func() { e.onExpire(turn) },
	)

	return nil
}

// RecordIncorrectGuess counts a wrong guess without ending the turn. Called
// before guessing has begun, it reveals a number and starts the countdown
// first.
func (e *Engine) RecordIncorrectGuess() error {
	return e.do(func() error {
		switch e.state {
		case StateGuessing:
		case StateAwaitingReveal:
			if err := e.beginGuessingLocked(); err != nil {
				return err
			}
		default:
			return &TransitionError{Op: "record_incorrect_guess", State: e.state}
		}

		e.round.GuessesThisHalfRound++

		return nil
	})
}

// ResolveHalfRound ends the current guesser's turn, scores it, swaps roles
// and either moves on to the next reveal or completes the match.
//
// Unlike RecordIncorrectGuess it never starts a turn on its own: outside
// StateGuessing, including before a number has been revealed, it returns
// ErrInvalidTransition. A repeated "correct" therefore cannot score the
// half-round that follows.
func (e *Engine) ResolveHalfRound(wasCorrect bool) error {
	return e.do(func() error {
		return e.resolveLocked(wasCorrect, false)
	})
}

func (e *Engine) resolveLocked(wasCorrect, expired bool) error {
	if e.state != StateGuessing {
		return &TransitionError{Op: "resolve_half_round", State: e.state}
	}

	e.timer.Stop()
	e.turn++
	e.state = StateRoundResolved

	guesser := e.guesserLocked()
	incorrect := e.round.GuessesThisHalfRound
	e.scores.RecordResult(guesser, wasCorrect, incorrect)

	result := HalfRoundResult{
		Round:            e.round.RoundIndex + 1,
		Half:             e.round.Half,
		WasCorrect:       wasCorrect,
		Expired:          expired,
		Guesser:          guesser,
		GuesserName:      e.scores.Player(guesser).Name,
		Number:           e.round.number,
		IncorrectGuesses: incorrect,
		TimeLeft:         e.timer.Remaining(),
	}

	e.log.Info().
		Str("event", "round_complete").
		Int("round", result.Round).
		Stringer("half_turn", result.Half).
		Bool("was_correct", wasCorrect).
		Bool("expired", expired).
		Int("guesses", incorrect).
		Int("time_left", result.TimeLeft).
		Int("number", result.Number).
		Str("guesser", result.GuesserName).
		Msg("half-round resolved")

	e.round.GuesserIsPlayerOne = !e.round.GuesserIsPlayerOne
	if e.round.Half == FirstHalf {
		e.round.Half = SecondHalf
	} else {
		e.round.Half = FirstHalf
		e.round.RoundIndex++
	}

	if e.round.RoundIndex >= e.cfg.TotalRounds {
		e.state = StateMatchComplete
	} else {
		e.round.hasNumber = false
		e.round.number = 0
		e.round.GuessesThisHalfRound = 0
		e.state = StateAwaitingReveal
	}

	result.Standings = e.scores.Snapshot()
	result.Next = e.state

	if hook := e.hooks.HalfRoundResolved; hook != nil {
		e.emit(func() { hook(result) })
	}

	if e.state == StateMatchComplete {
		e.completeLocked(result.Standings)
	}

	return nil
}

func (e *Engine) completeLocked(final Standings) {
	match := MatchResult{
		Winner:       final.Winner(),
		WinnerLabel:  final.WinnerLabel(),
		RoundsPlayed: e.round.RoundIndex,
		Standings:    final,
	}

	e.log.Info().
		Str("event", "match_complete").
		Str("p1_name", final.PlayerOne.Name).
		Str("p2_name", final.PlayerTwo.Name).
		Int("p1_score", final.PlayerOne.Score).
		Int("p2_score", final.PlayerTwo.Score).
		Int("p1_guesses", final.PlayerOne.IncorrectGuesses).
		Int("p2_guesses", final.PlayerTwo.IncorrectGuesses).
		Int("rounds_played", match.RoundsPlayed).
		Stringer("winner", match.Winner).
		Msg("match complete")

	if hook := e.hooks.MatchComplete; hook != nil {
		e.emit(func() { hook(match) })
	}
}

func (e *Engine) onTick(turn uint64, remaining int) {
	_ = e.do(func() error {
		if turn != e.turn || e.state != StateGuessing {
			return nil
		}

		if hook := e.hooks.Tick; hook != nil {
			e.emit(func() { hook(remaining) })
		}

		return nil
	})
}

func (e *Engine) onExpire(turn uint64) {
	_ = e.do(func() error {
		if turn != e.turn || e.state != StateGuessing {
			return nil
		}

		e.log.Debug().Msg("turn timer expired")

		return e.resolveLocked(false, true)
	})
}

// ReturnToLobby abandons any match in progress and restores lobby defaults.
// It is valid from every state.
func (e *Engine) ReturnToLobby() {
	_ = e.do(func() error {
		e.resetLocked(LobbyConfig(e.defaultTimer))

		return nil
	})
}

// Close stops the countdown without changing state.
func (e *Engine) Close() {
	_ = e.do(func() error {
		e.timer.Stop()
		e.turn++

		return nil
	})
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

func (e *Engine) Config() MatchConfig {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.cfg
}

// LobbyDefaults is the configuration a new match form starts from.
func (e *Engine) LobbyDefaults() MatchConfig {
	e.mu.Lock()
	defer e.mu.Unlock()

	return LobbyConfig(e.defaultTimer)
}

func (e *Engine) CurrentGuesserName() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.scores.Player(e.guesserLocked()).Name
}

func (e *Engine) CurrentDescriberName() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.scores.Player(e.guesserLocked().Other()).Name
}

// CurrentNumber returns the secret number, if one has been drawn.
func (e *Engine) CurrentNumber() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.round.number, e.round.hasNumber
}

// Round returns a copy of the round progress.
func (e *Engine) Round() RoundState {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.round
	r.seen = maps.Clone(e.round.seen)

	return r
}

// TimeRemaining is the countdown value while guessing, and the configured
// turn length otherwise.
func (e *Engine) TimeRemaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.timeRemainingLocked()
}

func (e *Engine) timeRemainingLocked() int {
	if e.state == StateGuessing {
		return e.timer.Remaining()
	}

	return e.cfg.TurnTimeoutSeconds
}

func (e *Engine) ScoreboardSnapshot() Standings {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.scores.Snapshot()
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	guesser := e.guesserLocked()

	snap := Snapshot{
		State:                e.state,
		Config:               e.cfg,
		RoundIndex:           e.round.RoundIndex,
		Half:                 e.round.Half,
		Guesser:              e.scores.Player(guesser).Name,
		Describer:            e.scores.Player(guesser.Other()).Name,
		GuessesThisHalfRound: e.round.GuessesThisHalfRound,
		TimeRemaining:        e.timeRemainingLocked(),
		Standings:            e.scores.Snapshot(),
	}

	if e.round.hasNumber {
		n := e.round.number
		snap.Number = &n
	}

	if e.state == StateMatchComplete {
		snap.Winner = snap.Standings.WinnerLabel()
	}

	return snap
}
