package config

import "time"

// Cache configures the in-process read cache placed in front of the store.
type Cache struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	Size    int           `env:"SIZE" envDefault:"1024"`
	TTL     time.Duration `env:"TTL" envDefault:"10m"`
}
