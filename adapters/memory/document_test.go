package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/artpar/immitate/adapters/memory"
	"github.com/artpar/immitate/core/storage"
)

func TestDocument_LoadBeforeSave(t *testing.T) {
	d := memory.NewDocument()
	if _, err := d.Load(context.Background()); !errors.Is(err, storage.ErrNoDocument) {
		t.Errorf("Load() error = %v, want ErrNoDocument", err)
	}
	if d.Snapshot() != nil {
		t.Error("Snapshot should be nil before the first save")
	}
}

func TestDocument_SaveLoad(t *testing.T) {
	ctx := context.Background()
	d := memory.NewDocument()

	doc := storage.Document{"User": {{"id": "1", "name": "Ada"}}}
	if err := d.Save(ctx, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Later changes to the caller's document must not leak in.
	doc["User"][0]["name"] = "changed"

	got, err := d.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got["User"][0]["name"] != "Ada" {
		t.Errorf("name = %v, want Ada", got["User"][0]["name"])
	}
	if d.Saves() != 1 {
		t.Errorf("Saves() = %d, want 1", d.Saves())
	}
}

func TestDocument_Seed(t *testing.T) {
	d := memory.Seed(storage.Document{"Post": {{"id": "p1"}}})
	got, err := d.Load(context.Background())
	if err != nil || len(got["Post"]) != 1 {
		t.Errorf("Load() = %v, %v", got, err)
	}
}

func TestDocument_FailSaves(t *testing.T) {
	ctx := context.Background()
	d := memory.NewDocument()

	d.FailSaves(nil)
	if err := d.Save(ctx, storage.Document{}); !errors.Is(err, memory.ErrSaveFailed) {
		t.Errorf("Save() error = %v, want ErrSaveFailed", err)
	}

	custom := errors.New("disk full")
	d.FailSaves(custom)
	if err := d.Save(ctx, storage.Document{}); !errors.Is(err, custom) {
		t.Errorf("Save() error = %v, want %v", err, custom)
	}

	d.Recover()
	if err := d.Save(ctx, storage.Document{}); err != nil {
		t.Errorf("Save() after Recover: %v", err)
	}
}
