package relay

import (
	"encoding/json"
	"time"

	"github.com/AnshRaj112/connectpro-relay/internal/models"
)

// ExportEntry is one line of the owner-facing JSON conversation export.
type ExportEntry struct {
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// EncodeExport renders records into the export document, preserving the
// original insertion order.
func EncodeExport(records []models.MessageRecord) ([]byte, error) {
	entries := make([]ExportEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, ExportEntry{
			UserID:    rec.SenderID,
			Message:   rec.Body,
			Timestamp: rec.Timestamp,
		})
	}
	return json.MarshalIndent(entries, "", "  ")
}

// ParseExport is the inverse of EncodeExport.
func ParseExport(data []byte) ([]ExportEntry, error) {
	var entries []ExportEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
