// Package protocol defines the negotiation rules shared by every mailbox of a
// session and the references agents use to address each other.
package protocol

import (
	"errors"
	"fmt"
)

// ErrInvalidProtocol reports a configuration the engine refuses to run.
var ErrInvalidProtocol = errors.New("invalid negotiation protocol")

// Protocol is fixed during setup and read-only once negotiation starts.
type Protocol struct {
	MaxRounds       int     `yaml:"max_rounds" json:"max_rounds"`             // Round budget per negotiation
	ObligatoryRound int     `yaml:"obligatory_round" json:"obligatory_round"` // Round at which the buyer must commit or walk away
	PenaltyPercent  float64 `yaml:"penalty_percent" json:"penalty_percent"`   // Karma price raise
	MaxConcurrent   int     `yaml:"max_concurrent" json:"max_concurrent"`     // Sellers a buyer keeps after ranking
	DeferPurchase   bool    `yaml:"defer_purchase" json:"defer_purchase"`     // Carried for the presentation layer
}

// Default returns the stock rules: 5 rounds, commit at round 4, 5% penalty,
// three concurrent negotiations.
func Default() Protocol {
	return Protocol{
		MaxRounds:       5,
		ObligatoryRound: 4,
		PenaltyPercent:  5,
		MaxConcurrent:   3,
	}
}

// Validate rejects rule sets that would leave branches unreachable or
// negotiations without partners.
func (p Protocol) Validate() error {
	switch {
	case p.MaxRounds < 2:
		return fmt.Errorf("%w: max rounds %d, need at least 2", ErrInvalidProtocol, p.MaxRounds)
	case p.ObligatoryRound < 1:
		return fmt.Errorf("%w: obligatory round %d", ErrInvalidProtocol, p.ObligatoryRound)
	case p.ObligatoryRound > p.MaxRounds:
		return fmt.Errorf("%w: obligatory round %d exceeds max rounds %d", ErrInvalidProtocol, p.ObligatoryRound, p.MaxRounds)
	case p.MaxConcurrent < 1:
		return fmt.Errorf("%w: concurrency limit %d", ErrInvalidProtocol, p.MaxConcurrent)
	case p.PenaltyPercent < 0:
		return fmt.Errorf("%w: negative penalty %.2f%%", ErrInvalidProtocol, p.PenaltyPercent)
	}
	return nil
}
