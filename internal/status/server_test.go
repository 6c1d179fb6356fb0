package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marvelcn015/crypto-tracker/internal/connection"
	"github.com/marvelcn015/crypto-tracker/internal/market"
	"github.com/marvelcn015/crypto-tracker/internal/model"
	"github.com/marvelcn015/crypto-tracker/internal/tracker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTracker struct {
	store     *market.Store
	connected bool
}

func (f *fakeTracker) Store() *market.Store { return f.store }

func (f *fakeTracker) Status() tracker.Status {
	st := tracker.Status{Store: f.store.Stats()}
	if f.connected {
		st.Channel = connection.ChannelState{Status: connection.StatusConnected, SocketID: "sid-1"}
	}
	return st
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newFakeTracker(connected bool) *fakeTracker {
	store := market.NewStore(nil)
	store.LoadAssets([]model.Asset{
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: 50000, MarketCapRank: 1},
		{ID: "ethereum", Symbol: "eth", Name: "Ethereum", CurrentPrice: 3000, MarketCapRank: 2},
	})
	now := time.Now()
	store.LoadAlerts([]model.Alert{
		{ID: "a1", AssetID: "bitcoin", TargetPrice: 60000, Condition: model.ConditionAbove, Status: model.AlertPending, CreatedAt: now},
		{ID: "a2", AssetID: "ethereum", TargetPrice: 2000, Condition: model.ConditionBelow, Status: model.AlertTriggered, CreatedAt: now.Add(-time.Hour)},
	})
	return &fakeTracker{store: store, connected: connected}
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		db        Pinger
		wantCode  int
		want      string
	}{
		{"connected", true, nil, http.StatusOK, Healthy},
		{"disconnected", false, nil, http.StatusOK, Degraded},
		{"database ok", true, fakePinger{}, http.StatusOK, Healthy},
		{"database down", true, fakePinger{err: errors.New("refused")}, http.StatusServiceUnavailable, Unhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(0, newFakeTracker(tt.connected), tt.db, nil)
			rec := get(t, s, "/health")

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var body struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.want {
				t.Errorf("status = %q, want %q", body.Status, tt.want)
			}
		})
	}
}

func TestStatus_ChannelByName(t *testing.T) {
	s := NewServer(0, newFakeTracker(true), nil, nil)
	rec := get(t, s, "/status")

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	var body struct {
		Channel struct {
			Status   string `json:"status"`
			SocketID string `json:"socket_id"`
		} `json:"channel"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Channel.Status != "connected" {
		t.Errorf("channel.status = %q, want connected", body.Channel.Status)
	}
	if body.Channel.SocketID != "sid-1" {
		t.Errorf("channel.socket_id = %q, want sid-1", body.Channel.SocketID)
	}
}

func TestAssets(t *testing.T) {
	s := NewServer(0, newFakeTracker(true), nil, nil)

	rec := get(t, s, "/assets")
	var list struct {
		Count  int           `json:"count"`
		Assets []model.Asset `json:"assets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Count != 2 || len(list.Assets) != 2 {
		t.Fatalf("count = %d, want 2", list.Count)
	}
	if list.Assets[0].ID != "bitcoin" {
		t.Errorf("first asset = %q, want bitcoin", list.Assets[0].ID)
	}

	rec = get(t, s, "/assets/ethereum")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /assets/ethereum code = %d, want 200", rec.Code)
	}

	rec = get(t, s, "/assets/dogecoin")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /assets/dogecoin code = %d, want 404", rec.Code)
	}
}

func TestAlerts(t *testing.T) {
	s := NewServer(0, newFakeTracker(true), nil, nil)

	tests := []struct {
		query    string
		wantCode int
		wantIDs  []string
	}{
		{"", http.StatusOK, []string{"a1", "a2"}},
		{"?status=pending", http.StatusOK, []string{"a1"}},
		{"?status=triggered", http.StatusOK, []string{"a2"}},
		{"?status=deleted", http.StatusBadRequest, nil},
		{"?status=bogus", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := get(t, s, "/alerts"+tt.query)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}

			var body struct {
				Alerts []model.Alert `json:"alerts"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(body.Alerts) != len(tt.wantIDs) {
				t.Fatalf("alerts = %d, want %d", len(body.Alerts), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if body.Alerts[i].ID != id {
					t.Errorf("alerts[%d] = %q, want %q", i, body.Alerts[i].ID, id)
				}
			}
		})
	}
}

func TestFavorites_Empty(t *testing.T) {
	s := NewServer(0, newFakeTracker(true), nil, nil)
	rec := get(t, s, "/favorites")

	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 0 {
		t.Errorf("count = %d, want 0", body.Count)
	}
}
