package entity

// PlayerRecord is the lifetime tally of a human player across every game type.
type PlayerRecord struct {
	PlayerID string `json:"player_id"`
	Games    int    `json:"games"`
	Wins     int    `json:"wins"`
	Draws    int    `json:"draws"`
	Losses   int    `json:"losses"`
	Points   int    `json:"points"`
}
