/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package numbers

// Seat identifies one of the two players.
type Seat int

const (
	PlayerOne Seat = iota
	PlayerTwo
)

func (s Seat) String() string {
	if s == PlayerOne {
		return "player_one"
	}

	return "player_two"
}

// Other returns the opposing seat.
func (s Seat) Other() Seat {
	return 1 - s
}

// Outcome is the result of comparing two players at the end of a match.
type Outcome int

const (
	OutcomeTie Outcome = iota
	OutcomePlayerOne
	OutcomePlayerTwo
)

func (o Outcome) String() string {
	switch o {
	case OutcomePlayerOne:
		return "player_one"
	case OutcomePlayerTwo:
		return "player_two"
	default:
		return "tie"
	}
}

const suddenDeathLabel = "Sudden Death (play one more round)"

type Player struct {
	Name             string `json:"name"`
	Score            int    `json:"score"`
	IncorrectGuesses int    `json:"incorrect_guesses"`
}

// Standings is a copy of both players at a point in time.
type Standings struct {
	PlayerOne Player `json:"player_one"`
	PlayerTwo Player `json:"player_two"`
}

// Winner applies the tie-break rules to the standings.
func (s Standings) Winner() Outcome {
	return Winner(s.PlayerOne, s.PlayerTwo)
}

// WinnerLabel is the display text for the winner: a name, or the sudden
// death label on a tie.
func (s Standings) WinnerLabel() string {
	switch s.Winner() {
	case OutcomePlayerOne:
		return s.PlayerOne.Name
	case OutcomePlayerTwo:
		return s.PlayerTwo.Name
	default:
		return suddenDeathLabel
	}
}

// Winner ranks by higher score, then by fewer incorrect guesses.
func Winner(p1, p2 Player) Outcome {
	switch {
	case p1.Score > p2.Score:
		return OutcomePlayerOne
	case p2.Score > p1.Score:
		return OutcomePlayerTwo
	case p1.IncorrectGuesses < p2.IncorrectGuesses:
		return OutcomePlayerOne
	case p2.IncorrectGuesses < p1.IncorrectGuesses:
		return OutcomePlayerTwo
	default:
		return OutcomeTie
	}
}

// Scoreboard holds both players for one match.
type Scoreboard struct {
	players [2]Player
}

func NewScoreboard(p1Name, p2Name string) *Scoreboard {
	sb := &Scoreboard{}
	sb.Reset(p1Name, p2Name)

	return sb
}

// Reset zeroes both players and renames them.
func (sb *Scoreboard) Reset(p1Name, p2Name string) {
	sb.players[PlayerOne] = Player{Name: p1Name}
	sb.players[PlayerTwo] = Player{Name: p2Name}
}

// RecordResult credits one point for a correct round and always adds the
// round's incorrect guesses to the player's running total.
func (sb *Scoreboard) RecordResult(seat Seat, wasCorrect bool, incorrectGuesses int) {
	p := &sb.players[seat]

	if wasCorrect {
		p.Score++
	}

	p.IncorrectGuesses += max(0, incorrectGuesses)
}

func (sb *Scoreboard) Player(seat Seat) Player {
	return sb.players[seat]
}

func (sb *Scoreboard) Snapshot() Standings {
	return Standings{
		PlayerOne: sb.players[PlayerOne],
		PlayerTwo: sb.players[PlayerTwo],
	}
}

func (sb *Scoreboard) Winner() Outcome {
	return Winner(sb.players[PlayerOne], sb.players[PlayerTwo])
}
