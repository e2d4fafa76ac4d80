package topics

const (
	// Dados de mercado
	OddsUpdates      = "odds_updates"
	GameStateUpdates = "game_state_updates"

	// Apostas
	BetPlaced    = "bet_placed"
	BetSettled   = "bet_settled"
	BetCashedOut = "bet_cashed_out"
)
