package config

import "time"

// Server defaults
const (
	DefaultPort          = "8080"
	DefaultBaseDir       = "."
	DefaultMaxMemoryMB   = 48
	ServerReadTimeout    = 15 * time.Second
	ServerWriteTimeout   = 60 * time.Second
	ServerShutdownPeriod = 10 * time.Second
)

// Refresh scheduling
const (
	DefaultRefreshSchedule = "@every 15m"
	DefaultRefreshTimeout  = 2 * time.Minute
	RefreshMaxRetries      = 3
	RefreshRetryBaseDelay  = 10 * time.Second
)

// Snapshot storage
const (
	DefaultRetention    = 7 * 24 * time.Hour
	RetentionInterval   = 1 * time.Hour
	BadgerGCInterval    = 10 * time.Minute
	BadgerGCRatio       = 0.5
	SinkTimeout         = 30 * time.Second
	DefaultRowsLimit    = 1000
	MaxRowsLimit        = 10000
	StorageStatsTimeout = 5 * time.Second
)

// Report defaults
const (
	DefaultShelfLifeDays = 4.0
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)
