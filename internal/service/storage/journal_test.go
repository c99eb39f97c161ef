package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"alertcam/internal/logger"
	"alertcam/internal/model"
	"alertcam/internal/repository/sqlite"
)

func setupJournal(t *testing.T) (*JournalService, *sqlite.EpisodeRepository, string) {
	t.Helper()

	dir := t.TempDir()
	db, err := sqlite.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewEpisodeRepository(db)
	imagesDir := filepath.Join(dir, "images")
	return NewJournalService(imagesDir, repo, logger.NewConsole(&bytes.Buffer{}, "debug")), repo, imagesDir
}

func testPayload(id string) *model.AlertPayload {
	p := &model.AlertPayload{
		EpisodeID:   id,
		Description: "Cell phone, clock detectado",
		Images: []model.EncodedImage{
			{Data: []byte("first"), Format: "jpg"},
			{Data: []byte("second"), Format: "jpg"},
		},
		CategoryIDs: []string{"1"},
		Labels:      []string{"cell phone", "clock"},
		Categories:  map[string]string{"cell phone": "1", "clock": "1"},
		StartedAt:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		EndedAt:     time.Date(2025, 3, 1, 10, 0, 5, 0, time.UTC),
		Frames:      4,
	}
	return p.WithLocation(&model.Location{Latitude: 57.64911, Longitude: 10.40744})
}

func TestNewEpisode(t *testing.T) {
	ep := NewEpisode(testPayload("ep"), model.Delivery{Status: model.DeliveryFailed, StatusCode: 500, Error: "boom"})

	if ep.Geohash != "u4pruyd" {
		t.Errorf("Expected geohash u4pruyd, got %q", ep.Geohash)
	}
	if ep.ImageCount != 2 || ep.Frames != 4 || ep.Status != model.DeliveryFailed || ep.StatusCode != 500 {
		t.Errorf("Unexpected episode %+v", ep)
	}
	if len(ep.Categories) != 2 || ep.Categories[1].Label != "clock" || ep.Categories[1].CategoryID != "1" {
		t.Errorf("Unexpected categories %+v", ep.Categories)
	}

	noLoc := testPayload("ep2").WithLocation(nil)
	if NewEpisode(noLoc, model.Delivery{}).Geohash != "" {
		t.Error("Expected empty geohash without coordinates")
	}
}

func TestJournal_Write(t *testing.T) {
	journal, repo, imagesDir := setupJournal(t)

	if _, err := journal.Write(testPayload("ep-1"), model.Delivery{Status: model.DeliveryDelivered, StatusCode: 200}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	ep, err := repo.GetByID("ep-1")
	if err != nil || ep == nil {
		t.Fatalf("Expected stored episode, got %v, %v", ep, err)
	}
	if ep.Status != model.DeliveryDelivered || ep.ImageCount != 2 {
		t.Errorf("Unexpected episode %+v", ep)
	}

	images, err := repo.GetImages("ep-1")
	if err != nil {
		t.Fatalf("GetImages failed: %v", err)
	}
	if len(images) != 2 || images[0].Filename != "ep-1_000.jpg" {
		t.Fatalf("Unexpected images %+v", images)
	}
	data, err := os.ReadFile(filepath.Join(imagesDir, "ep-1_001.jpg"))
	if err != nil || string(data) != "second" {
		t.Errorf("Unexpected image file content %q, %v", data, err)
	}
}

func TestJournal_RunDrainsQueue(t *testing.T) {
	journal, repo, _ := setupJournal(t)

	if err := journal.Record(testPayload("queued-1"), model.Delivery{Status: model.DeliveryDelivered}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := journal.Record(testPayload("queued-2"), model.Delivery{Status: model.DeliveryFailed}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	journal.Run(ctx)

	count, err := repo.GetTotalCount(nil)
	if err != nil {
		t.Fatalf("GetTotalCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 journaled episodes after drain, got %d", count)
	}
}

func TestJournal_RecordQueueFull(t *testing.T) {
	journal, _, _ := setupJournal(t)

	for i := 0; i < JournalQueueSize; i++ {
		if err := journal.Record(testPayload("x"), model.Delivery{}); err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}
	if err := journal.Record(testPayload("overflow"), model.Delivery{}); err == nil {
		t.Error("Expected error when the queue is full")
	}
}

func TestJournal_Clear(t *testing.T) {
	journal, repo, imagesDir := setupJournal(t)

	journal.Write(testPayload("ep-1"), model.Delivery{Status: model.DeliveryDelivered})

	if err := journal.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	files, _ := os.ReadDir(imagesDir)
	if len(files) != 0 {
		t.Errorf("Expected empty images dir, got %d files", len(files))
	}
	if count, _ := repo.GetTotalCount(nil); count != 0 {
		t.Errorf("Expected empty journal, got %d", count)
	}
}
