package ingest

import "time"

// Config tunes the pipeline. Callers start from DefaultConfig and override
// what they need; tests shrink the delays.
type Config struct {
	ChunkTokens    int
	OverlapTokens  int
	BatchSize      int
	BatchDelay     time.Duration
	RetryAttempts  uint
	RetryBaseDelay time.Duration
	PreviewChars   int
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		ChunkTokens:    DefaultChunkTokens,
		OverlapTokens:  DefaultOverlapTokens,
		BatchSize:      10,
		BatchDelay:     time.Second,
		RetryAttempts:  3,
		RetryBaseDelay: time.Second,
		PreviewChars:   10000,
	}
}
