package song

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/kailas-cloud/songrec/internal/domain"
)

// UnknownLabel fills missing names, artists and languages.
const UnknownLabel = "Unknown"

// Raw is a read-only view over an upstream song descriptor.
// The original bytes are kept so they can be stored and returned verbatim.
type Raw struct {
	id             string
	name           string
	language       string
	albumName      string
	primaryArtists []string
	payload        json.RawMessage
}

type rawView struct {
	ID       json.RawMessage `json:"id"`
	Name     string          `json:"name"`
	Language string          `json:"language"`
	Album    *struct {
		Name string `json:"name"`
	} `json:"album"`
	Artists *struct {
		Primary []struct {
			Name string `json:"name"`
		} `json:"primary"`
	} `json:"artists"`
}

// ParseRaw projects the fields used for ingestion out of a descriptor.
// A missing id is not an error here; callers check ID().
func ParseRaw(data json.RawMessage) (Raw, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Raw{}, fmt.Errorf("song descriptor must be a JSON object: %w", domain.ErrValidation)
	}

	var v rawView
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return Raw{}, fmt.Errorf("decode song descriptor: %w: %w", domain.ErrValidation, err)
	}

	r := Raw{
		id:       parseID(v.ID),
		name:     strings.TrimSpace(v.Name),
		language: strings.TrimSpace(v.Language),
		payload:  append(json.RawMessage(nil), trimmed...),
	}
	if v.Album != nil {
		r.albumName = strings.TrimSpace(v.Album.Name)
	}
	if v.Artists != nil {
		for _, a := range v.Artists.Primary {
			r.primaryArtists = append(r.primaryArtists, a.Name)
		}
	}
	return r, nil
}

// parseID accepts string and numeric ids. Null, objects and blanks yield "".
func parseID(msg json.RawMessage) string {
	if len(msg) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(msg, &n); err == nil {
		return n.String()
	}
	return ""
}

// ID returns the upstream song id, empty when absent.
func (r Raw) ID() string { return r.id }

// Name returns the song name or UnknownLabel.
func (r Raw) Name() string {
	if r.name == "" {
		return UnknownLabel
	}
	return r.name
}

// Language returns the language tag, empty when absent.
func (r Raw) Language() string { return r.language }

// AlbumName returns the album name, empty when absent.
func (r Raw) AlbumName() string { return r.albumName }

// PrimaryArtist returns the first primary artist or UnknownLabel.
func (r Raw) PrimaryArtist() string {
	if len(r.primaryArtists) == 0 || strings.TrimSpace(r.primaryArtists[0]) == "" {
		return UnknownLabel
	}
	return strings.TrimSpace(r.primaryArtists[0])
}

// Payload returns the descriptor bytes as received.
func (r Raw) Payload() json.RawMessage { return r.payload }

// Description returns the canonical embedding text for the song.
func (r Raw) Description() string {
	return BuildDescription(r.Name(), r.PrimaryArtist(), r.AlbumName(), r.Language())
}

// BuildDescription joins the non-empty fields with single spaces in the order name, artist, album, language.
// The result must stay byte-for-byte stable: stored embeddings depend on it.
func BuildDescription(name, artist, album, language string) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{name, artist, album, language} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// SearchPage is one page of upstream search results. Body is the upstream response as received.
type SearchPage struct {
	Total   int
	Start   int
	Results []json.RawMessage
	Body    json.RawMessage
}
