package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marvelcn015/crypto-tracker/internal/model"
)

func TestListAssets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cryptos" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/cryptos")
		}
		if r.URL.Query().Get("limit") != "20" {
			t.Errorf("limit = %q, want %q", r.URL.Query().Get("limit"), "20")
		}
		writeData(w, []APIAsset{
			{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: 50000, MarketCapRank: 1, PriceChangePercentage24h: 2.5, LastUpdated: "2024-01-15T10:00:00Z"},
			{ID: "ethereum", Symbol: "eth", Name: "Ethereum", CurrentPrice: 3000, MarketCapRank: 2},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	assets, err := c.ListAssets(context.Background(), 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("len = %d, want 2", len(assets))
	}
	if assets[0].ID != "bitcoin" || assets[0].CurrentPrice != 50000 || assets[0].PriceChange24h != 2.5 {
		t.Errorf("assets[0] = %+v", assets[0])
	}
	if assets[0].LastUpdated.IsZero() {
		t.Error("LastUpdated should be parsed")
	}
}

func TestGetAsset(t *testing.T) {
	t.Run("detail", func(t *testing.T) {
		supply := 19500000.0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/cryptos/bitcoin" {
				t.Errorf("path = %q", r.URL.Path)
			}
			writeData(w, APIAssetDetail{
				APIAsset:                APIAsset{ID: "bitcoin", CurrentPrice: 50000},
				PriceChangePercentage7d: 4.2,
				CirculatingSupply:       &supply,
			})
		}))
		defer server.Close()

		c := NewClient(server.URL, nil)
		detail, err := c.GetAsset(context.Background(), "bitcoin")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if detail.ID != "bitcoin" || detail.PriceChange7d != 4.2 || detail.CirculatingSupply != supply {
			t.Errorf("detail = %+v", detail)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			writeFailure(w, http.StatusNotFound, "NOT_FOUND", "crypto not found")
		}))
		defer server.Close()

		c := NewClient(server.URL, nil, WithRetries(3, time.Millisecond))
		_, err := c.GetAsset(context.Background(), "nope")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})
}

func TestListAlerts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") != "pending" {
			t.Errorf("status = %q, want %q", r.URL.Query().Get("status"), "pending")
		}
		writeData(w, []APIAlert{
			{ID: "a1", CryptoID: "bitcoin", TargetPrice: 60000, Condition: "above", Status: "pending", CreatedAt: "2024-01-15T10:00:00Z"},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	alerts, err := c.ListAlerts(context.Background(), model.AlertPending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("len = %d, want 1", len(alerts))
	}
	a := alerts[0]
	if a.AssetID != "bitcoin" || a.Condition != model.ConditionAbove || a.Status != model.AlertPending {
		t.Errorf("alert = %+v", a)
	}
	if a.TriggeredAt != nil || a.TriggeredPrice != nil {
		t.Error("pending alert should have no trigger fields")
	}
}

func TestCreateAlert(t *testing.T) {
	t.Run("posts body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/alerts" {
				t.Errorf("%s %s", r.Method, r.URL.Path)
			}
			var body createAlertBody
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.CryptoID != "bitcoin" || body.TargetPrice != 60000 || body.Condition != "above" {
				t.Errorf("body = %+v", body)
			}
			writeData(w, APIAlert{ID: "a1", CryptoID: "bitcoin", TargetPrice: 60000, Condition: "above", Status: "pending"})
		}))
		defer server.Close()

		c := NewClient(server.URL, nil)
		alert, err := c.CreateAlert(context.Background(), model.CreateAlertRequest{
			AssetID: "bitcoin", TargetPrice: 60000, Condition: model.ConditionAbove,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if alert.ID != "a1" {
			t.Errorf("ID = %q, want %q", alert.ID, "a1")
		}
	})

	t.Run("rejects invalid request locally", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", nil)
		_, err := c.CreateAlert(context.Background(), model.CreateAlertRequest{AssetID: "bitcoin", TargetPrice: 1, Condition: "sideways"})
		if !errors.Is(err, ErrInvalidAlert) {
			t.Errorf("err = %v, want ErrInvalidAlert", err)
		}
	})
}

func TestMutationsAreNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, WithRetries(3, time.Millisecond))
	ctx := context.Background()

	if err := c.DeleteAlert(ctx, "a1"); err == nil {
		t.Error("DeleteAlert: expected error")
	}
	if err := c.AddFavorite(ctx, "ethereum"); err == nil {
		t.Error("AddFavorite: expected error")
	}
	if err := c.RemoveFavorite(ctx, "ethereum"); err == nil {
		t.Error("RemoveFavorite: expected error")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestFavorites(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/favorites":
			writeData(w, []APIFavorite{{ID: "ethereum", Symbol: "eth", Name: "Ethereum", AddedAt: "2024-01-15T10:00:00Z"}})
		case r.Method == http.MethodPost && r.URL.Path == "/favorites":
			writeData(w, nil)
		case r.Method == http.MethodDelete && r.URL.Path == "/favorites/ethereum":
			writeData(w, nil)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	ctx := context.Background()

	favs, err := c.ListFavorites(ctx)
	if err != nil {
		t.Fatalf("ListFavorites: %v", err)
	}
	if len(favs) != 1 || favs[0].ID != "ethereum" || favs[0].AddedAt.IsZero() {
		t.Errorf("favs = %+v", favs)
	}
	if err := c.AddFavorite(ctx, "ethereum"); err != nil {
		t.Errorf("AddFavorite: %v", err)
	}
	if err := c.RemoveFavorite(ctx, "ethereum"); err != nil {
		t.Errorf("RemoveFavorite: %v", err)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr bool
	}{
		{"healthy", "healthy", false},
		{"degraded", "degraded", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeData(w, healthResponse{Status: tt.status})
			}))
			defer server.Close()

			err := NewClient(server.URL, nil).Health(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Health() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
