package relay

import (
	"testing"
	"time"

	"github.com/AnshRaj112/connectpro-relay/internal/models"
)

func TestExportPreservesOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []models.MessageRecord{
		{OwnerID: 1, SenderID: 7, Body: "first", Timestamp: base},
		{OwnerID: 1, SenderID: 8, Body: "second", Timestamp: base.Add(time.Minute)},
		{OwnerID: 1, SenderID: 7, Body: "third", Timestamp: base.Add(2 * time.Minute)},
	}

	data, err := EncodeExport(records)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	entries, err := ParseExport(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"first", "second", "third"} {
		if entries[i].Message != want {
			t.Fatalf("entry %d: want %q, got %q", i, want, entries[i].Message)
		}
	}
	if entries[1].UserID != 8 {
		t.Fatalf("entry 1 user id: want 8, got %d", entries[1].UserID)
	}
	if !entries[0].Timestamp.Equal(base) {
		t.Fatalf("timestamp not preserved: %v", entries[0].Timestamp)
	}
}

func TestExportEmptyLogIsEmptyArray(t *testing.T) {
	data, err := EncodeExport(nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("empty log should encode as [], got %q", data)
	}
}
