package config

import (
	"strings"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultInstanceID        = "tracker"
	DefaultRestURL           = "http://localhost:8000/api/v1"
	DefaultWSURL             = "ws://localhost:8000/ws"
	DefaultAPITimeout        = 10 * time.Second
	DefaultMaxRetries        = 3
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = 3 * time.Second
	DefaultPingInterval      = 25 * time.Second
	DefaultPingTimeout       = 60 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultBufferSize        = 1024
	DefaultPollTimeout       = 30 * time.Second
	DefaultRefreshInterval   = 5 * time.Minute
	DefaultAssetLimit        = 20
	DefaultFetchConcurrency  = 4
	DefaultSnapshotBatchSize = 500
	DefaultFlushInterval     = 2 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultStatusPort        = 8090
	DefaultLogLevel          = "info"
)

// Transport names accepted in connection.transports.
const (
	TransportWebSocket = "websocket"
	TransportPolling   = "polling"
)

// ApplyDefaults fills every zero-valued optional field.
func (c *TrackerConfig) ApplyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.PollURL == "" {
		c.API.PollURL = pollURLFromWS(c.API.WSURL)
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Connection defaults
	if len(c.Connection.Transports) == 0 {
		c.Connection.Transports = []string{TransportWebSocket, TransportPolling}
	}
	if c.Connection.ReconnectAttempts == 0 {
		c.Connection.ReconnectAttempts = DefaultReconnectAttempts
	}
	if c.Connection.ReconnectDelay == 0 {
		c.Connection.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultBufferSize
	}
	if c.Connection.PollTimeout == 0 {
		c.Connection.PollTimeout = DefaultPollTimeout
	}

	// Sync defaults
	if c.Sync.RefreshInterval == 0 {
		c.Sync.RefreshInterval = DefaultRefreshInterval
	}
	if c.Sync.AssetLimit == 0 {
		c.Sync.AssetLimit = DefaultAssetLimit
	}
	if c.Sync.FetchConcurrency == 0 {
		c.Sync.FetchConcurrency = DefaultFetchConcurrency
	}

	// Snapshot defaults
	if c.Snapshot.BatchSize == 0 {
		c.Snapshot.BatchSize = DefaultSnapshotBatchSize
	}
	if c.Snapshot.FlushInterval == 0 {
		c.Snapshot.FlushInterval = DefaultFlushInterval
	}
	applyDBDefaults(&c.Snapshot.Database)

	if c.Status.Port == 0 {
		c.Status.Port = DefaultStatusPort
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

// pollURLFromWS maps ws://host/ws to http://host/ws/poll.
func pollURLFromWS(ws string) string {
	u := ws
	switch {
	case strings.HasPrefix(u, "wss://"):
		u = "https://" + strings.TrimPrefix(u, "wss://")
	case strings.HasPrefix(u, "ws://"):
		u = "http://" + strings.TrimPrefix(u, "ws://")
	}
	return strings.TrimSuffix(u, "/") + "/poll"
}
