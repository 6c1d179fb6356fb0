package model

import "time"

// -----------------------------------------------------------------------------
// Catalog Types
// -----------------------------------------------------------------------------

// Asset is a tracked cryptocurrency as held in canonical state.
type Asset struct {
	ID             string    // Primary key (e.g., "bitcoin")
	Symbol         string    // Ticker symbol (e.g., "btc")
	Name           string    // Display name
	CurrentPrice   float64   // Last known price
	MarketCap      float64   // Market capitalisation
	MarketCapRank  int       // Rank by market cap
	PriceChange24h float64   // Last known 24h change (percent)
	High24h        float64   // 24h high
	Low24h         float64   // 24h low
	Image          string    // Icon URL
	LastUpdated    time.Time // Server-side update time of the last full fetch
}

// AssetDetail extends Asset with fields only returned by the detail endpoint.
type AssetDetail struct {
	Asset
	PriceChange7d     float64
	PriceChange30d    float64
	Description       string
	CirculatingSupply float64
	TotalSupply       float64
}

// Favorite is an asset the user has starred.
type Favorite struct {
	ID             string
	Symbol         string
	Name           string
	CurrentPrice   float64
	PriceChange24h float64
	AddedAt        time.Time
}

// -----------------------------------------------------------------------------
// Alert Types
// -----------------------------------------------------------------------------

// AlertCondition is the direction a price must cross to trigger an alert.
type AlertCondition string

const (
	ConditionAbove AlertCondition = "above"
	ConditionBelow AlertCondition = "below"
)

// Valid reports whether c is a known condition.
func (c AlertCondition) Valid() bool {
	return c == ConditionAbove || c == ConditionBelow
}

// Crossed reports whether price satisfies the condition against target.
func (c AlertCondition) Crossed(price, target float64) bool {
	switch c {
	case ConditionAbove:
		return price >= target
	case ConditionBelow:
		return price <= target
	}
	return false
}

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertPending   AlertStatus = "pending"
	AlertTriggered AlertStatus = "triggered"
	AlertDeleted   AlertStatus = "deleted"
)

// Terminal reports whether no further transitions are allowed from s.
func (s AlertStatus) Terminal() bool {
	return s == AlertTriggered || s == AlertDeleted
}

// Alert is a user-defined price alert.
type Alert struct {
	ID             string
	AssetID        string
	AssetName      string
	AssetSymbol    string
	CurrentPrice   float64
	TargetPrice    float64
	Condition      AlertCondition
	Status         AlertStatus
	Note           string
	CreatedAt      time.Time
	TriggeredAt    *time.Time // Set once, on the pending -> triggered transition
	TriggeredPrice *float64
	Deleting       bool // A delete request is in flight
}

// IsTerminal reports whether the alert can no longer change state.
func (a Alert) IsTerminal() bool {
	return a.Status.Terminal()
}

// CreateAlertRequest is the payload for creating an alert.
type CreateAlertRequest struct {
	AssetID     string
	TargetPrice float64
	Condition   AlertCondition
	Note        string
}

// -----------------------------------------------------------------------------
// Push Event Types
// -----------------------------------------------------------------------------

// PriceUpdate is a single-asset price delta pushed by the server.
type PriceUpdate struct {
	AssetID   string
	Price     float64
	Change24h float64
}

// AlertTriggeredEvent is pushed when the server fires an alert.
type AlertTriggeredEvent struct {
	AlertID        string
	AssetID        string
	TriggeredPrice float64
	TargetPrice    float64
	Condition      AlertCondition
	At             time.Time // Event time; zero when the frame carried none
}
