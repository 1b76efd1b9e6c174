package recommend

import "time"

// Config bounds the work done per request.
type Config struct {
	// MaxCandidates caps how many users are scanned per similarity request.
	MaxCandidates int

	// PageSize is the number of users fetched per ListUsers call.
	PageSize int

	// FetchWorkers is the number of concurrent collection reads.
	FetchWorkers int

	// NeighbourLimit is how many similar users feed recommendations.
	NeighbourLimit int

	// TrendingWindow is how far back "trending among similar users" looks.
	TrendingWindow time.Duration
}

// DefaultConfig returns the default recommender configuration.
func DefaultConfig() Config {
	return Config{
		MaxCandidates:  1000,
		PageSize:       200,
		FetchWorkers:   8,
		NeighbourLimit: 20,
		TrendingWindow: 30 * 24 * time.Hour,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = def.MaxCandidates
	}
	if c.PageSize <= 0 {
		c.PageSize = def.PageSize
	}
	if c.PageSize > c.MaxCandidates {
		c.PageSize = c.MaxCandidates
	}
	if c.FetchWorkers <= 0 {
		c.FetchWorkers = def.FetchWorkers
	}
	if c.NeighbourLimit <= 0 {
		c.NeighbourLimit = def.NeighbourLimit
	}
	if c.TrendingWindow <= 0 {
		c.TrendingWindow = def.TrendingWindow
	}
	return c
}
