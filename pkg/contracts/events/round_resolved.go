package events

// Payout é o crédito aplicado a um vencedor na liquidação.
type Payout struct {
	UserID         string `json:"user_id"`
	WagerID        string `json:"wager_id"`
	AmountCredits  int64  `json:"amount_credits"`
	NewBalance     int64  `json:"new_balance"`
	MatchedWagerID string `json:"matched_wager_id"`
}

// Refund é a devolução integral de uma aposta não pareada no fim da rodada.
type Refund struct {
	UserID        string `json:"user_id"`
	WagerID       string `json:"wager_id"`
	AmountCredits int64  `json:"amount_credits"`
	NewBalance    int64  `json:"new_balance"`
}

// Evento publicado no tópico "round_resolved" após a liquidação de uma rodada.
type RoundResolved struct {
	ArenaID     string   `json:"arenaId"`
	RoundNumber int64    `json:"round_number"`
	WinningSide string   `json:"winning_side"` // "A" | "B"
	Payouts     []Payout `json:"payouts"`
	Refunds     []Refund `json:"refunds"`
	TsUnixMs    int64    `json:"ts_unix_ms"`
}
