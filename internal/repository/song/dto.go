package song

import (
	"bytes"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	domsong "github.com/kailas-cloud/songrec/internal/domain/song"
)

// songDoc is the RedisJSON layout of a stored song.
type songDoc struct {
	SongID        string          `json:"song_id"`
	Name          string          `json:"name"`
	Language      string          `json:"language,omitempty"`
	PrimaryArtist string          `json:"primary_artist"`
	AlbumName     string          `json:"album_name,omitempty"`
	Embedding     []float32       `json:"embedding,omitempty"`
	RawData       json.RawMessage `json:"raw_data"`
	CreatedAt     int64           `json:"created_at"` // unix millis
}

func toDoc(rec *domsong.Record) songDoc {
	raw := rec.Raw()
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	return songDoc{
		SongID:        rec.ID(),
		Name:          rec.Name(),
		Language:      rec.Language(),
		PrimaryArtist: rec.PrimaryArtist(),
		AlbumName:     rec.AlbumName(),
		Embedding:     rec.Embedding(),
		RawData:       raw,
		CreatedAt:     rec.CreatedAt().UnixMilli(),
	}
}

func (d *songDoc) toRecord() domsong.Record {
	var created time.Time
	if d.CreatedAt > 0 {
		created = time.UnixMilli(d.CreatedAt).UTC()
	}
	return domsong.Reconstruct(
		d.SongID, d.Name, d.Language, d.PrimaryArtist, d.AlbumName,
		d.Embedding, d.RawData, created,
	)
}

// decodeDoc accepts both the bare document and the JSONPath array form ([{...}]).
func decodeDoc(data []byte) (songDoc, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var docs []songDoc
		if err := json.Unmarshal(data, &docs); err != nil {
			return songDoc{}, fmt.Errorf("decode song document: %w", err)
		}
		if len(docs) == 0 {
			return songDoc{}, fmt.Errorf("decode song document: empty result")
		}
		return docs[0], nil
	}

	var doc songDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return songDoc{}, fmt.Errorf("decode song document: %w", err)
	}
	return doc, nil
}
