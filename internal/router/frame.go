package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/marvelcn015/crypto-tracker/internal/model"
)

var (
	// ErrMissingType is returned for frames without a type field.
	ErrMissingType = errors.New("frame has no type")

	// ErrInvalidPayload is returned when a payload lacks a required field.
	ErrInvalidPayload = errors.New("invalid payload")
)

// Frame is a decoded push-channel frame.
type Frame struct {
	Type      string
	Data      json.RawMessage
	Timestamp time.Time
}

// frameWire is the on-the-wire envelope.
type frameWire struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// outboundWire is the envelope for frames the client sends.
type outboundWire struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

// priceUpdateWire is the payload of price_update and each price_batch_update entry.
type priceUpdateWire struct {
	CryptoID  string   `json:"crypto_id"`
	Price     *float64 `json:"price"`
	Change24h float64  `json:"change_24h"`
}

// alertTriggeredWire is the payload of alert_triggered.
type alertTriggeredWire struct {
	AlertID        string  `json:"alert_id"`
	CryptoID       string  `json:"crypto_id"`
	TriggeredPrice float64 `json:"triggered_price"`
	TargetPrice    float64 `json:"target_price"`
	Condition      string  `json:"condition"`
	TriggeredAt    string  `json:"triggered_at,omitempty"`
}

// DecodeFrame parses a raw frame.
func DecodeFrame(data []byte) (Frame, error) {
	var wire frameWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if wire.Type == "" {
		return Frame{}, ErrMissingType
	}
	return Frame{
		Type:      wire.Type,
		Data:      wire.Data,
		Timestamp: parseFrameTime(wire.Timestamp),
	}, nil
}

// EncodeFrame builds an outbound frame for topic with payload as data.
func EncodeFrame(topic string, payload any, now time.Time) ([]byte, error) {
	if topic == "" {
		return nil, ErrMissingType
	}
	data, err := json.Marshal(outboundWire{
		Type:      topic,
		Data:      payload,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// parseFrameTime accepts an RFC 3339 string or epoch milliseconds.
func parseFrameTime(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseTime(s)
	}

	if ms, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Servers emitting naive ISO strings mean UTC.
		t, err = time.Parse("2006-01-02T15:04:05.999999999", s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

func (w priceUpdateWire) toModel() (model.PriceUpdate, error) {
	if w.CryptoID == "" || w.Price == nil {
		return model.PriceUpdate{}, ErrInvalidPayload
	}
	return model.PriceUpdate{
		AssetID:   w.CryptoID,
		Price:     *w.Price,
		Change24h: w.Change24h,
	}, nil
}

// DecodePriceUpdate decodes a price_update payload.
func DecodePriceUpdate(data json.RawMessage) (model.PriceUpdate, error) {
	var wire priceUpdateWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return model.PriceUpdate{}, fmt.Errorf("decode price update: %w", err)
	}
	return wire.toModel()
}

// DecodePriceBatch decodes a price_batch_update payload, preserving order.
// Entries missing an id or price are skipped.
func DecodePriceBatch(data json.RawMessage) ([]model.PriceUpdate, error) {
	var wire []priceUpdateWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode price batch: %w", err)
	}

	updates := make([]model.PriceUpdate, 0, len(wire))
	for _, w := range wire {
		u, err := w.toModel()
		if err != nil {
			continue
		}
		updates = append(updates, u)
	}
	return updates, nil
}

// DecodeAlertTriggered decodes an alert_triggered payload.
func DecodeAlertTriggered(data json.RawMessage) (model.AlertTriggeredEvent, error) {
	var wire alertTriggeredWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return model.AlertTriggeredEvent{}, fmt.Errorf("decode alert triggered: %w", err)
	}
	if wire.AlertID == "" {
		return model.AlertTriggeredEvent{}, ErrInvalidPayload
	}
	return model.AlertTriggeredEvent{
		AlertID:        wire.AlertID,
		AssetID:        wire.CryptoID,
		TriggeredPrice: wire.TriggeredPrice,
		TargetPrice:    wire.TargetPrice,
		Condition:      model.AlertCondition(wire.Condition),
		At:             parseTime(wire.TriggeredAt),
	}, nil
}
