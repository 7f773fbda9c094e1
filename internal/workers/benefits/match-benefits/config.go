// internal/workers/benefits/match-benefits/config.go
package matchbenefits

import "time"

type Config struct {
	Timeout time.Duration
	// MaxCatalogSize caps an inline catalog; 0 means no cap.
	MaxCatalogSize int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        120 * time.Second,
		MaxCatalogSize: 5000,
	}
}
