package config

import "time"

type Storage struct {
	URI      string   `env:"URI,expand" envDefault:"sqlite://sectioncache.sqlite"`
	Database Database `envPrefix:"DATABASE_"`
}

type Database struct {
	BusyTimeout time.Duration `env:"BUSY_TIMEOUT" envDefault:"5s"`
}
