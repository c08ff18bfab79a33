package section

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestLoadObjects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yml")

	data := []byte("- title: write report\n  status: active\n- title: pay bills\n  status: done\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	objects, err := loadObjects(context.Background(), path)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := 2, len(objects); e != g {
		t.Fatalf("len(objects): expected %d, got %d", e, g)
	}

	status, exists := objects[1].Field("status")
	if !exists {
		t.Fatalf("expected objects[1] to have a status field")
	}

	if e, g := "done", status; e != g {
		t.Errorf("objects[1].status: expected '%s', got '%v'", e, g)
	}
}
