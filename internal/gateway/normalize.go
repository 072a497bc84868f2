package gateway

import (
	"encoding/json"
	"time"

	"github.com/notedapp/noted-sync/internal/domain"
	"github.com/notedapp/noted-sync/pkg/code"
)

// wirePayload is the union of the two historical note file schemas. The
// desktop client wrote {content, last_modified} with an epoch timestamp,
// the mobile client wrote {text, created, modified, note_id} with ISO-8601
// timestamps. All field-name knowledge stays inside this file; nothing past
// the gateway ever sees these names.
type wirePayload struct {
	NoteID       string  `json:"note_id,omitempty"`
	Title        string  `json:"title,omitempty"`
	Content      string  `json:"content,omitempty"`
	Text         string  `json:"text,omitempty"`
	Created      string  `json:"created,omitempty"`
	CreatedAt    float64 `json:"created_at,omitempty"`
	Modified     string  `json:"modified,omitempty"`
	LastModified float64 `json:"last_modified,omitempty"`
	Origin       string  `json:"origin,omitempty"`
}

// normalizeBody picks the canonical body: the first non-empty of the two
// historical field names wins.
func normalizeBody(content, text string) string {
	if content != "" {
		return content
	}
	return text
}

func parseISO(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}

// decodeNote turns a raw note file into the canonical shape.
// summaryModified is the listing's timestamp for the item, used when the
// payload carries no usable timestamp of its own.
func decodeNote(remoteID string, raw []byte, summaryModified int64) (*domain.Note, error) {
	var p wirePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, code.ErrCorruptPayload.WithDetails(err.Error())
	}

	body := normalizeBody(p.Content, p.Text)

	modified := summaryModified
	if p.LastModified > 0 {
		modified = int64(p.LastModified)
	} else if ts, ok := parseISO(p.Modified); ok {
		modified = ts
	}

	created := modified
	if p.CreatedAt > 0 {
		created = int64(p.CreatedAt)
	} else if ts, ok := parseISO(p.Created); ok {
		created = ts
	}

	return &domain.Note{
		ID:         p.NoteID,
		RemoteID:   remoteID,
		Title:      p.Title,
		Body:       body,
		CreatedAt:  created,
		ModifiedAt: modified,
		Origin:     p.Origin,
	}, nil
}

// encodeNote renders the canonical note in a superset of both historical
// schemas, so either older client can still read what this one writes.
func encodeNote(n *domain.Note) ([]byte, error) {
	p := wirePayload{
		NoteID:       n.ID,
		Title:        n.Title,
		Content:      n.Body,
		Text:         n.Body,
		Created:      time.Unix(n.CreatedAt, 0).UTC().Format(time.RFC3339),
		Modified:     time.Unix(n.ModifiedAt, 0).UTC().Format(time.RFC3339),
		LastModified: float64(n.ModifiedAt),
		Origin:       n.Origin,
	}
	return json.Marshal(p)
}
