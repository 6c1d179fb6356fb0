package api

import (
	"strings"
	"time"

	"github.com/marvelcn015/crypto-tracker/internal/model"
)

// ParseTimestamp parses an ISO 8601 timestamp.
// Returns the zero time for empty or invalid input.
func ParseTimestamp(iso string) time.Time {
	iso = strings.TrimSpace(iso)
	if iso == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05.999999999", iso)
		if err != nil {
			return time.Time{}
		}
	}

	return t
}

// ToModel converts an APIAsset to model.Asset.
func (a *APIAsset) ToModel() model.Asset {
	return model.Asset{
		ID:             a.ID,
		Symbol:         a.Symbol,
		Name:           a.Name,
		CurrentPrice:   a.CurrentPrice,
		MarketCap:      a.MarketCap,
		MarketCapRank:  a.MarketCapRank,
		PriceChange24h: a.PriceChangePercentage24h,
		High24h:        a.High24h,
		Low24h:         a.Low24h,
		Image:          a.Image,
		LastUpdated:    ParseTimestamp(a.LastUpdated),
	}
}

// ToModel converts an APIAssetDetail to model.AssetDetail.
func (d *APIAssetDetail) ToModel() model.AssetDetail {
	detail := model.AssetDetail{
		Asset:          d.APIAsset.ToModel(),
		PriceChange7d:  d.PriceChangePercentage7d,
		PriceChange30d: d.PriceChangePercentage30d,
		Description:    d.Description,
	}
	if d.CirculatingSupply != nil {
		detail.CirculatingSupply = *d.CirculatingSupply
	}
	if d.TotalSupply != nil {
		detail.TotalSupply = *d.TotalSupply
	}
	return detail
}

// ToModel converts an APIAlert to model.Alert.
func (a *APIAlert) ToModel() model.Alert {
	alert := model.Alert{
		ID:          a.ID,
		AssetID:     a.CryptoID,
		AssetName:   a.CryptoName,
		AssetSymbol: a.CryptoSymbol,
		TargetPrice: a.TargetPrice,
		Condition:   model.AlertCondition(a.Condition),
		Status:      model.AlertStatus(a.Status),
		Note:        a.Note,
		CreatedAt:   ParseTimestamp(a.CreatedAt),
	}
	if a.CurrentPrice != nil {
		alert.CurrentPrice = *a.CurrentPrice
	}
	if ts := ParseTimestamp(a.TriggeredAt); !ts.IsZero() {
		alert.TriggeredAt = &ts
	}
	if a.TriggeredPrice != nil {
		p := *a.TriggeredPrice
		alert.TriggeredPrice = &p
	}
	if alert.Status == "" {
		alert.Status = model.AlertPending
	}
	return alert
}

// ToModel converts an APIFavorite to model.Favorite.
func (f *APIFavorite) ToModel() model.Favorite {
	return model.Favorite{
		ID:             f.ID,
		Symbol:         f.Symbol,
		Name:           f.Name,
		CurrentPrice:   f.CurrentPrice,
		PriceChange24h: f.PriceChangePercentage24h,
		AddedAt:        ParseTimestamp(f.AddedAt),
	}
}
