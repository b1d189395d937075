package protocol

import "fmt"

// Side says which half of the market an agent trades on.
type Side uint8

const (
	SideBuyer Side = iota
	SideSeller
)

func (s Side) String() string {
	if s == SideSeller {
		return "seller"
	}
	return "buyer"
}

// AgentRef addresses one agent by side and registry index.
type AgentRef struct {
	Side Side `json:"side"`
	ID   int  `json:"id"`
}

// Buyer returns the reference of buyer id.
func Buyer(id int) AgentRef { return AgentRef{Side: SideBuyer, ID: id} }

// Seller returns the reference of seller id.
func Seller(id int) AgentRef { return AgentRef{Side: SideSeller, ID: id} }

func (a AgentRef) String() string {
	return fmt.Sprintf("%s-%d", a.Side, a.ID)
}

// MarshalText renders refs as "buyer-0" in JSON and YAML.
func (a AgentRef) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
