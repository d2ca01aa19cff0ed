package model

// CryptoPrice is one row of the public market-data feed.
type CryptoPrice struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	CurrentPrice             float64 `json:"current_price"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
	Image                    string  `json:"image"`
}

// Holding is a wallet valued at the current market price.
type Holding struct {
	Wallet   Wallet  `json:"wallet"`
	PriceUSD float64 `json:"priceUsd"`
	ValueUSD float64 `json:"valueUsd"`
	Priced   bool    `json:"priced"`
}

// Portfolio is the dashboard summary: every holding plus the total.
//
// PriceError is set when the price feed was unavailable; holdings are then
// listed unpriced rather than the whole summary failing.
type Portfolio struct {
	Holdings   []Holding `json:"holdings"`
	TotalUSD   float64   `json:"totalUsd"`
	PriceError string    `json:"priceError,omitempty"`
}
