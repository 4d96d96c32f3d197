package numbers

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"
)

type EngineSuite struct {
	suite.Suite

	clock  *clockwork.FakeClock
	src    *queueSource
	engine *Engine

	revealed  chan int
	ticks     chan int
	resolved  chan HalfRoundResult
	completed chan MatchResult
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.clock = clockwork.NewFakeClock()
	s.src = &queueSource{}

	s.revealed = make(chan int, 64)
	s.ticks = make(chan int, 256)
	s.resolved = make(chan HalfRoundResult, 64)
	s.completed = make(chan MatchResult, 8)

	s.engine = NewEngine(
		WithPicker(NewPicker(s.src)),
		WithTimer(NewTimer(s.clock)),
		WithHooks(Hooks{
			NumberRevealed:    func(n int) { s.revealed <- n },
			Tick:              func(r int) { s.ticks <- r },
			HalfRoundResolved: func(r HalfRoundResult) { s.resolved <- r },
			MatchComplete:     func(r MatchResult) { s.completed <- r },
		}),
	)
}

func (s *EngineSuite) TearDownTest() {
	s.engine.Close()
}

func (s *EngineSuite) config(rounds int) MatchConfig {
	return MatchConfig{
		RangeMin:           1,
		RangeMax:           10,
		TotalRounds:        rounds,
		TurnTimeoutSeconds: 30,
	}
}

func (s *EngineSuite) TestStartsIdle() {
	s.Equal(StateIdle, s.engine.State())
	s.Equal(DefaultTimerSeconds, s.engine.TimeRemaining())

	_, ok := s.engine.CurrentNumber()
	s.False(ok)
}

func (s *EngineSuite) TestScenarioOneRoundMatch() {
	s.src.queue(6, 2)

	s.Require().NoError(s.engine.StartMatch(s.config(1)))
	s.Equal(StateAwaitingReveal, s.engine.State())
	s.Equal(DefaultPlayerTwoName, s.engine.CurrentGuesserName())
	s.Equal(DefaultPlayerOneName, s.engine.CurrentDescriberName())

	n, err := s.engine.Reveal()
	s.Require().NoError(err)
	s.Equal(7, n)
	s.Equal(7, receive(s.T(), s.revealed))

	s.Require().NoError(s.engine.BeginGuessing())
	s.Equal(StateGuessing, s.engine.State())
	s.Equal(30, s.engine.TimeRemaining())

	s.Require().NoError(s.engine.RecordIncorrectGuess())
	s.Require().NoError(s.engine.RecordIncorrectGuess())
	s.Require().NoError(s.engine.ResolveHalfRound(true))

	first := receive(s.T(), s.resolved)
	s.True(first.WasCorrect)
	s.Equal(PlayerTwo, first.Guesser)
	s.Equal(2, first.IncorrectGuesses)
	s.Equal(7, first.Number)
	s.Equal(StateAwaitingReveal, first.Next)

	scores := s.engine.ScoreboardSnapshot()
	s.Equal(1, scores.PlayerTwo.Score)
	s.Equal(2, scores.PlayerTwo.IncorrectGuesses)

	round := s.engine.Round()
	s.Equal(SecondHalf, round.Half)
	s.Equal(0, round.RoundIndex)
	s.True(round.GuesserIsPlayerOne)
	s.Equal(DefaultPlayerOneName, s.engine.CurrentGuesserName())

	_, ok := s.engine.CurrentNumber()
	s.False(ok)

	_, err = s.engine.Reveal()
	s.Require().NoError(err)
	s.Require().NoError(s.engine.BeginGuessing())
	s.Require().NoError(s.engine.ResolveHalfRound(false))

	second := receive(s.T(), s.resolved)
	s.False(second.WasCorrect)
	s.Equal(PlayerOne, second.Guesser)
	s.Equal(StateMatchComplete, second.Next)

	s.Equal(StateMatchComplete, s.engine.State())
	s.Equal(1, s.engine.Round().RoundIndex)

	scores = s.engine.ScoreboardSnapshot()
	s.Equal(0, scores.PlayerOne.Score)
	s.Equal(0, scores.PlayerOne.IncorrectGuesses)
	s.Equal(OutcomePlayerTwo, scores.Winner())

	match := receive(s.T(), s.completed)
	s.Equal(OutcomePlayerTwo, match.Winner)
	s.Equal(DefaultPlayerTwoName, match.WinnerLabel)
	s.Equal(1, match.RoundsPlayed)
	s.Equal(DefaultPlayerTwoName, s.engine.Snapshot().Winner)
}

func (s *EngineSuite) TestFullMatchAlternatesRoles() {
	const rounds = 3

	s.Require().NoError(s.engine.StartMatch(s.config(rounds)))

	var guessers []string
	for i := range 2 * rounds {
		s.Equal(i/2, s.engine.Round().RoundIndex)

		guessers = append(guessers, s.engine.CurrentGuesserName())

		_, err := s.engine.Reveal()
		s.Require().NoError(err)
		s.Require().NoError(s.engine.BeginGuessing())
		s.Require().NoError(s.engine.ResolveHalfRound(i%3 == 0))
	}

	s.Equal([]string{
		DefaultPlayerTwoName, DefaultPlayerOneName,
		DefaultPlayerTwoName, DefaultPlayerOneName,
		DefaultPlayerTwoName, DefaultPlayerOneName,
	}, guessers)

	s.Len(s.resolved, 2*rounds)
	s.Len(s.completed, 1)
	s.Equal(StateMatchComplete, s.engine.State())
	s.Equal(rounds, s.engine.Round().RoundIndex)

	// half-rounds 0 and 3 were correct: one for each player
	scores := s.engine.ScoreboardSnapshot()
	s.Equal(1, scores.PlayerTwo.Score)
	s.Equal(1, scores.PlayerOne.Score)
}

func (s *EngineSuite) TestCorrectResolutionOnlyCreditsGuesser() {
	s.Require().NoError(s.engine.StartMatch(s.config(2)))
	s.Require().NoError(s.engine.BeginGuessing())
	s.Require().NoError(s.engine.ResolveHalfRound(true))
	s.Require().NoError(s.engine.BeginGuessing())
	s.Require().NoError(s.engine.RecordIncorrectGuess())
	s.Require().NoError(s.engine.ResolveHalfRound(false))

	scores := s.engine.ScoreboardSnapshot()
	s.Equal(Player{Name: DefaultPlayerTwoName, Score: 1}, scores.PlayerTwo)
	s.Equal(Player{Name: DefaultPlayerOneName, IncorrectGuesses: 1}, scores.PlayerOne)
}

func (s *EngineSuite) TestTimerExpiryResolvesIncorrect() {
	cfg := s.config(1)
	cfg.TurnTimeoutSeconds = 10

	s.Require().NoError(s.engine.StartMatch(cfg))
	s.Require().NoError(s.engine.BeginGuessing())
	s.Require().NoError(s.engine.RecordIncorrectGuess())

	for want := 9; want >= 0; want-- {
		s.clock.Advance(time.Second)
		s.Equal(want, receive(s.T(), s.ticks))
	}

	result := receive(s.T(), s.resolved)
	s.False(result.WasCorrect)
	s.True(result.Expired)
	s.Equal(PlayerTwo, result.Guesser)
	s.Equal(1, result.IncorrectGuesses)
	s.Equal(0, result.TimeLeft)

	s.Equal(StateAwaitingReveal, s.engine.State())
	s.Equal(1, s.engine.ScoreboardSnapshot().PlayerTwo.IncorrectGuesses)

	s.clock.Advance(5 * time.Second)
	expectNothing(s.T(), s.ticks)
	expectNothing(s.T(), s.resolved)
}

func (s *EngineSuite) TestResolveStopsTimer() {
	s.Require().NoError(s.engine.StartMatch(s.config(2)))
	s.Require().NoError(s.engine.BeginGuessing())

	s.clock.Advance(time.Second)
	s.Equal(29, receive(s.T(), s.ticks))
	s.Equal(29, s.engine.TimeRemaining())

	s.Require().NoError(s.engine.ResolveHalfRound(true))
	receive(s.T(), s.resolved)

	s.clock.Advance(time.Minute)
	expectNothing(s.T(), s.ticks)
	expectNothing(s.T(), s.resolved)
}

func (s *EngineSuite) TestDoubleResolveIsRejected() {
	s.Require().NoError(s.engine.StartMatch(s.config(2)))
	s.Require().NoError(s.engine.BeginGuessing())
	s.Require().NoError(s.engine.ResolveHalfRound(true))

	err := s.engine.ResolveHalfRound(true)
	s.ErrorIs(err, ErrInvalidTransition)
	s.Equal(1, s.engine.ScoreboardSnapshot().PlayerTwo.Score)
}

func (s *EngineSuite) TestResolveBeforeRevealIsRejected() {
	s.Require().NoError(s.engine.StartMatch(s.config(1)))

	s.ErrorIs(s.engine.ResolveHalfRound(true), ErrInvalidTransition)

	_, ok := s.engine.CurrentNumber()
	s.False(ok)
	s.Equal(StateAwaitingReveal, s.engine.State())
	s.Equal(0, s.engine.ScoreboardSnapshot().PlayerTwo.Score)
	expectNothing(s.T(), s.revealed)
}

func (s *EngineSuite) TestInvalidTransitions() {
	s.ErrorIs(s.engine.RecordIncorrectGuess(), ErrInvalidTransition)
	s.ErrorIs(s.engine.ResolveHalfRound(true), ErrInvalidTransition)
	s.ErrorIs(s.engine.BeginGuessing(), ErrInvalidTransition)

	_, err := s.engine.Reveal()
	s.ErrorIs(err, ErrInvalidTransition)

	s.Require().NoError(s.engine.StartMatch(s.config(1)))
	s.ErrorIs(s.engine.StartMatch(s.config(1)), ErrInvalidTransition)

	_, err = s.engine.Reveal()
	s.Require().NoError(err)

	_, err = s.engine.Reveal()
	var te *TransitionError
	s.Require().ErrorAs(err, &te)
	s.Equal("reveal", te.Op)
	s.Equal(StateAwaitingReveal, te.State)
}

func (s *EngineSuite) TestInvalidConfigurationLeavesStateAlone() {
	cases := map[string]MatchConfig{
		"range_max":            {RangeMin: 5, RangeMax: 5, TotalRounds: 1, TurnTimeoutSeconds: 30},
		"total_rounds":         {RangeMin: 1, RangeMax: 5, TotalRounds: 0, TurnTimeoutSeconds: 30},
		"turn_timeout_seconds": {RangeMin: 1, RangeMax: 5, TotalRounds: 1, TurnTimeoutSeconds: 9},
	}

	for field, cfg := range cases {
		err := s.engine.StartMatch(cfg)
		s.ErrorIs(err, ErrInvalidConfiguration)

		var ce *ConfigError
		s.Require().ErrorAs(err, &ce)
		s.Equal(field, ce.Field)

		s.Equal(StateIdle, s.engine.State())
	}
}

func (s *EngineSuite) TestStartMatchRejectsOversizedRange() {
	cfg := s.config(1)
	cfg.RangeMin = -(MaxRangeSpan / 2) - 1
	cfg.RangeMax = MaxRangeSpan/2 + 1
	cfg.AvoidRepeats = true

	err := s.engine.StartMatch(cfg)
	s.ErrorIs(err, ErrInvalidConfiguration)
	s.Equal(StateIdle, s.engine.State())
}

func (s *EngineSuite) TestTickIsDeliveredBeforeResolution() {
	entered := make(chan int, 1)
	release := make(chan struct{})
	resolved := make(chan HalfRoundResult, 1)

	engine := NewEngine(
		WithPicker(NewPicker(s.src)),
		WithTimer(NewTimer(s.clock)),
		WithHooks(Hooks{
			Tick: func(r int) {
				entered <- r
				<-release
			},
			HalfRoundResolved: func(r HalfRoundResult) { resolved <- r },
		}),
	)
	defer engine.Close()

	s.Require().NoError(engine.StartMatch(s.config(1)))
	s.Require().NoError(engine.BeginGuessing())

	s.clock.Advance(time.Second)
	s.Equal(29, receive(s.T(), entered))

	done := make(chan error, 1)
	go func() { done <- engine.ResolveHalfRound(true) }()

	// the transition itself is not held up by the pending tick
	s.Eventually(func() bool {
		return engine.State() == StateAwaitingReveal
	}, 2*time.Second, 5*time.Millisecond)

	expectNothing(s.T(), resolved)

	close(release)

	result := receive(s.T(), resolved)
	s.True(result.WasCorrect)
	s.Require().NoError(receive(s.T(), done))
}

func (s *EngineSuite) TestBeginGuessingRevealsWhenNoNumber() {
	s.src.queue(3)

	s.Require().NoError(s.engine.StartMatch(s.config(1)))
	s.Require().NoError(s.engine.BeginGuessing())

	n, ok := s.engine.CurrentNumber()
	s.True(ok)
	s.Equal(4, n)
	s.Equal(4, receive(s.T(), s.revealed))
	s.Equal(StateGuessing, s.engine.State())
}

func (s *EngineSuite) TestIncorrectGuessBeforeGuessingStartsTurn() {
	s.Require().NoError(s.engine.StartMatch(s.config(1)))
	s.Require().NoError(s.engine.RecordIncorrectGuess())

	s.Equal(StateGuessing, s.engine.State())
	s.Equal(1, s.engine.Round().GuessesThisHalfRound)

	_, ok := s.engine.CurrentNumber()
	s.True(ok)
}

func (s *EngineSuite) TestAvoidRepeatsTracksSeenNumbers() {
	cfg := s.config(2)
	cfg.AvoidRepeats = true
	s.src.queue(0, 0, 1)

	s.Require().NoError(s.engine.StartMatch(cfg))

	first, err := s.engine.Reveal()
	s.Require().NoError(err)
	s.Require().NoError(s.engine.BeginGuessing())
	s.Require().NoError(s.engine.ResolveHalfRound(false))

	second, err := s.engine.Reveal()
	s.Require().NoError(err)

	s.Equal(1, first)
	s.Equal(2, second)
	s.Equal([]int{1, 2}, s.engine.Round().Seen())
}

func (s *EngineSuite) TestReturnToLobbyResetsEverything() {
	cfg := s.config(3)
	cfg.PlayerOneName = "  Ann "
	cfg.PlayerTwoName = "Bea"
	cfg.TurnTimeoutSeconds = 45

	s.Require().NoError(s.engine.StartMatch(cfg))
	s.Equal("Bea", s.engine.CurrentGuesserName())
	s.Equal("Ann", s.engine.CurrentDescriberName())

	s.Require().NoError(s.engine.BeginGuessing())
	s.Require().NoError(s.engine.ResolveHalfRound(true))
	s.Require().NoError(s.engine.BeginGuessing())

	s.engine.ReturnToLobby()

	s.Equal(StateIdle, s.engine.State())
	s.Equal(Standings{
		PlayerOne: Player{Name: DefaultPlayerOneName},
		PlayerTwo: Player{Name: DefaultPlayerTwoName},
	}, s.engine.ScoreboardSnapshot())
	s.Empty(s.engine.Round().Seen())
	s.Equal(0, s.engine.Round().RoundIndex)

	defaults := s.engine.LobbyDefaults()
	s.Equal(45, defaults.TurnTimeoutSeconds)
	s.Equal(DefaultRangeMin, defaults.RangeMin)
	s.Equal(DefaultRangeMax, defaults.RangeMax)
	s.Equal(DefaultTotalRounds, defaults.TotalRounds)

	s.clock.Advance(time.Minute)
	expectNothing(s.T(), s.ticks)
}

func (s *EngineSuite) TestRestartAfterMatchComplete() {
	s.Require().NoError(s.engine.StartMatch(s.config(1)))
	for range 2 {
		s.Require().NoError(s.engine.BeginGuessing())
		s.Require().NoError(s.engine.ResolveHalfRound(true))
	}
	s.Equal(StateMatchComplete, s.engine.State())

	s.Require().NoError(s.engine.StartMatch(s.config(1)))
	s.Equal(StateAwaitingReveal, s.engine.State())
	s.Equal(0, s.engine.ScoreboardSnapshot().PlayerOne.Score)
}

func (s *EngineSuite) TestSnapshot() {
	s.src.queue(4)

	s.Require().NoError(s.engine.StartMatch(s.config(2)))
	_, err := s.engine.Reveal()
	s.Require().NoError(err)

	snap := s.engine.Snapshot()
	s.Equal(StateAwaitingReveal, snap.State)
	s.Equal(DefaultPlayerTwoName, snap.Guesser)
	s.Equal(DefaultPlayerOneName, snap.Describer)
	s.Require().NotNil(snap.Number)
	s.Equal(5, *snap.Number)
	s.Equal(30, snap.TimeRemaining)
	s.Empty(snap.Winner)
}
