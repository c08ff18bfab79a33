package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestParse(t *testing.T) {
	t.Setenv("SECTIONCACHE_STORAGE_URI", "memory://")
	t.Setenv("SECTIONCACHE_LOGGER_LEVEL", "DEBUG")
	t.Setenv("SECTIONCACHE_CACHE_TTL", "30s")

	conf, err := Parse()
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := "memory://", conf.Storage.URI; e != g {
		t.Errorf("conf.Storage.URI: expected '%s', got '%s'", e, g)
	}

	if e, g := slog.LevelDebug, conf.Logger.Level; e != g {
		t.Errorf("conf.Logger.Level: expected '%v', got '%v'", e, g)
	}

	if e, g := 30*time.Second, conf.Cache.TTL; e != g {
		t.Errorf("conf.Cache.TTL: expected '%v', got '%v'", e, g)
	}

	if e, g := 1024, conf.Cache.Size; e != g {
		t.Errorf("conf.Cache.Size: expected %d, got %d", e, g)
	}

	if e, g := 5*time.Second, conf.Storage.Database.BusyTimeout; e != g {
		t.Errorf("conf.Storage.Database.BusyTimeout: expected '%v', got '%v'", e, g)
	}
}
