package team

import "fmt"

// Team is upserted from the upstream /teams endpoint. VenueID is nullable:
// a team without a known home ground carries no venue reference.
type Team struct {
	ID          int64
	Name        string
	CountryCode string
	Founded     int
	VenueID     *int64
}

func (t Team) Validate() error {
	if t.ID == 0 {
		return fmt.Errorf("team id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("team name is required")
	}
	return nil
}
