package router

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/marvelcn015/crypto-tracker/internal/model"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType string
		wantTS   time.Time
		wantErr  bool
	}{
		{
			name:     "string timestamp",
			input:    `{"type":"price_update","data":{"crypto_id":"bitcoin"},"timestamp":"2024-01-15T10:00:00Z"}`,
			wantType: "price_update",
			wantTS:   time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "millisecond timestamp",
			input:    `{"type":"connection_established","timestamp":1705312800000}`,
			wantType: "connection_established",
			wantTS:   time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "no timestamp",
			input:    `{"type":"error","data":"bad room"}`,
			wantType: "error",
		},
		{name: "missing type", input: `{"data":{}}`, wantErr: true},
		{name: "not json", input: `hello`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeFrame([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeFrame() err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if f.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", f.Type, tt.wantType)
			}
			if !f.Timestamp.Equal(tt.wantTS) {
				t.Errorf("Timestamp = %v, want %v", f.Timestamp, tt.wantTS)
			}
		})
	}

	if _, err := DecodeFrame([]byte(`{"data":1}`)); !errors.Is(err, ErrMissingType) {
		t.Errorf("err = %v, want ErrMissingType", err)
	}
}

func TestEncodeFrame(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	data, err := EncodeFrame("join", map[string]string{"room": "crypto:bitcoin"}, now)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	f, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if f.Type != "join" || !f.Timestamp.Equal(now) {
		t.Errorf("frame = %+v", f)
	}

	var payload struct {
		Room string `json:"room"`
	}
	if err := json.Unmarshal(f.Data, &payload); err != nil || payload.Room != "crypto:bitcoin" {
		t.Errorf("payload = %+v, err = %v", payload, err)
	}

	if _, err := EncodeFrame("", nil, now); !errors.Is(err, ErrMissingType) {
		t.Errorf("empty topic err = %v, want ErrMissingType", err)
	}
}

func TestDecodePriceUpdate(t *testing.T) {
	u, err := DecodePriceUpdate(json.RawMessage(`{"crypto_id":"bitcoin","price":51000,"change_24h":2.1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := model.PriceUpdate{AssetID: "bitcoin", Price: 51000, Change24h: 2.1}
	if u != want {
		t.Errorf("update = %+v, want %+v", u, want)
	}

	for _, bad := range []string{`{"price":1}`, `{"crypto_id":"bitcoin"}`} {
		if _, err := DecodePriceUpdate(json.RawMessage(bad)); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("DecodePriceUpdate(%s) err = %v, want ErrInvalidPayload", bad, err)
		}
	}
}

func TestDecodePriceBatch(t *testing.T) {
	data := json.RawMessage(`[
		{"crypto_id":"bitcoin","price":51000,"change_24h":2.1},
		{"price":3},
		{"crypto_id":"bitcoin","price":51500,"change_24h":2.4},
		{"crypto_id":"ethereum","price":3100,"change_24h":-0.5}
	]`)

	updates, err := DecodePriceBatch(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 3 {
		t.Fatalf("len = %d, want 3", len(updates))
	}
	if updates[0].Price != 51000 || updates[1].Price != 51500 || updates[2].AssetID != "ethereum" {
		t.Errorf("updates = %+v", updates)
	}

	if _, err := DecodePriceBatch(json.RawMessage(`{"crypto_id":"bitcoin"}`)); err == nil {
		t.Error("object payload should not decode as batch")
	}
}

func TestDecodeAlertTriggered(t *testing.T) {
	a, err := DecodeAlertTriggered(json.RawMessage(`{"alert_id":"a1","crypto_id":"bitcoin","triggered_price":60100,"target_price":60000,"condition":"above"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.AlertID != "a1" || a.AssetID != "bitcoin" || a.TriggeredPrice != 60100 || a.Condition != model.ConditionAbove {
		t.Errorf("event = %+v", a)
	}
	if !a.At.IsZero() {
		t.Errorf("At = %v, want zero", a.At)
	}

	a, err = DecodeAlertTriggered(json.RawMessage(`{"alert_id":"a1","triggered_at":"2024-01-15T10:00:00Z"}`))
	if err != nil || a.At.IsZero() {
		t.Errorf("triggered_at not parsed: %+v, %v", a, err)
	}

	if _, err := DecodeAlertTriggered(json.RawMessage(`{"crypto_id":"bitcoin"}`)); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("err = %v, want ErrInvalidPayload", err)
	}
}
