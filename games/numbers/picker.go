/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package numbers

import (
	"crypto/rand"
	"io"
	"math"
	"math/big"
)

// Source yields uniformly distributed ints in [0, n).
type Source interface {
	Intn(n int) int
}

type cryptoSource struct {
	reader io.Reader
}

func (c cryptoSource) Intn(n int) int {
	if n <= 0 {
		return 0
	}

	v, err := rand.Int(c.reader, big.NewInt(int64(n)))
	if err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	return int(v.Int64())
}

// Picker draws the secret number for each half-round.
type Picker struct {
	src Source
}

// NewPicker returns a Picker backed by src, or by crypto/rand if src is nil.
func NewPicker(src Source) *Picker {
	if src == nil {
		src = cryptoSource{reader: rand.Reader}
	}

	return &Picker{src: src}
}

func (p *Picker) draw(cfg MatchConfig) int {
	return cfg.RangeMin + p.src.Intn(cfg.size())
}

// Pick returns a value in [cfg.RangeMin, cfg.RangeMax].
//
// With AvoidRepeats set, up to twice the range size draws are made looking
// for a value missing from seen. If every draw collides, seen is cleared and
// one unconditional draw is returned. Inserting the result into seen is left
// to the caller.
func (p *Picker) Pick(cfg MatchConfig, seen map[int]struct{}) int {
	if !cfg.AvoidRepeats {
		return p.draw(cfg)
	}

	tries := cfg.size()
	if tries <= math.MaxInt/2 {
		tries *= 2
	}
	for range tries {
		n := p.draw(cfg)
		if _, ok := seen[n]; !ok {
			return n
		}
	}

	clear(seen)

	return p.draw(cfg)
}
