package models

// Requests for dashboard HTTP endpoints. Defined in domain for consistency and reuse.

type RejectionsRequest struct {
	Symbol   string `query:"symbol" json:"symbol"`
	Strategy string `query:"strategy" json:"strategy"`
	Category string `query:"category" json:"category" validate:"omitempty,oneof=confidence heat riskReward timeframe cooldown volume fundamental"`
	Since    string `query:"since" json:"since"`
	Limit    int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=5000"`
	// History reads from durable storage instead of the in-memory buffer.
	History bool `query:"history" json:"history"`
}

type AnalyzeRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"200" validate:"gte=30,lte=5000"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h 4h 1d"`
}
