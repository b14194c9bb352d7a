package league

import (
	"encoding/json"
	"fmt"
)

// Type is the competition shape, which drives Scope Policy defaults (§4.8).
type Type string

const (
	TypeLeague Type = "League"
	TypeCup    Type = "Cup"
	TypeUnknown Type = ""
)

// League is upserted from the upstream /leagues endpoint.
type League struct {
	ID          int64
	Name        string
	Type        Type
	CountryCode string
	SeasonsJSON json.RawMessage
}

// ParseType normalizes the provider's free-text type field to the two
// shapes the Scope Policy distinguishes between; anything else maps to
// TypeUnknown rather than failing the upsert.
func ParseType(raw string) Type {
	switch raw {
	case string(TypeLeague):
		return TypeLeague
	case string(TypeCup):
		return TypeCup
	default:
		return TypeUnknown
	}
}

func (l League) Validate() error {
	if l.ID == 0 {
		return fmt.Errorf("league id is required")
	}
	if l.Name == "" {
		return fmt.Errorf("league name is required")
	}
	return nil
}
