package api

import "encoding/json"

// envelope wraps every API response.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *errorBody      `json:"error,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// errorBody is the structured failure carried by an envelope.
type errorBody struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

// APIAsset is a catalog entry from GET /cryptos.
type APIAsset struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	CurrentPrice             float64 `json:"current_price"`
	MarketCap                float64 `json:"market_cap"`
	MarketCapRank            int     `json:"market_cap_rank"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
	High24h                  float64 `json:"high_24h"`
	Low24h                   float64 `json:"low_24h"`
	Image                    string  `json:"image"`
	LastUpdated              string  `json:"last_updated"`
}

// APIAssetDetail is the payload of GET /cryptos/{id}.
type APIAssetDetail struct {
	APIAsset
	PriceChangePercentage7d  float64  `json:"price_change_percentage_7d"`
	PriceChangePercentage30d float64  `json:"price_change_percentage_30d"`
	Description              string   `json:"description,omitempty"`
	CirculatingSupply        *float64 `json:"circulating_supply,omitempty"`
	TotalSupply              *float64 `json:"total_supply,omitempty"`
}

// APIAlert is an alert as returned by the alert endpoints.
type APIAlert struct {
	ID             string   `json:"id"`
	CryptoID       string   `json:"crypto_id"`
	CryptoName     string   `json:"crypto_name"`
	CryptoSymbol   string   `json:"crypto_symbol"`
	CurrentPrice   *float64 `json:"current_price,omitempty"`
	TargetPrice    float64  `json:"target_price"`
	Condition      string   `json:"condition"`
	Status         string   `json:"status"`
	Note           string   `json:"note,omitempty"`
	CreatedAt      string   `json:"created_at"`
	TriggeredAt    string   `json:"triggered_at,omitempty"`
	TriggeredPrice *float64 `json:"triggered_price,omitempty"`
}

// APIFavorite is a favorite as returned by GET /favorites.
type APIFavorite struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	CurrentPrice             float64 `json:"current_price"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
	AddedAt                  string  `json:"added_at"`
}

// createAlertBody is the request body of POST /alerts.
type createAlertBody struct {
	CryptoID    string  `json:"crypto_id"`
	TargetPrice float64 `json:"target_price"`
	Condition   string  `json:"condition"`
	Note        string  `json:"note,omitempty"`
}

// addFavoriteBody is the request body of POST /favorites.
type addFavoriteBody struct {
	CryptoID string `json:"crypto_id"`
}

// healthResponse is the payload of GET /health.
type healthResponse struct {
	Status string `json:"status"`
}
