package saavn

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/kailas-cloud/songrec/internal/domain"
	domsong "github.com/kailas-cloud/songrec/internal/domain/song"
)

// RawSong is an upstream song descriptor kept byte-for-byte.
type RawSong = json.RawMessage

// SearchPage is one page of /search/songs.
type SearchPage = domsong.SearchPage

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(body []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, fmt.Errorf("decode response: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "success=false"
		}
		return envelope{}, fmt.Errorf("upstream: %s: %w", msg, domain.ErrUpstreamUnavailable)
	}
	return env, nil
}

func decodeSearch(body []byte) (SearchPage, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return SearchPage{}, err
	}

	var data struct {
		Total   int               `json:"total"`
		Start   int               `json:"start"`
		Results []json.RawMessage `json:"results"`
	}
	if len(env.Data) > 0 && !isNull(env.Data) {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return SearchPage{}, fmt.Errorf("decode search data: %w: %w", domain.ErrUpstreamUnavailable, err)
		}
	}

	return SearchPage{
		Total:   data.Total,
		Start:   data.Start,
		Results: data.Results,
		Body:    json.RawMessage(body),
	}, nil
}

// decodeSongs normalizes data.song (object or list) and a bare data list into a slice.
func decodeSongs(body []byte) ([]RawSong, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 || isNull(env.Data) {
		return nil, nil
	}

	payload := env.Data
	if trimmed := bytes.TrimSpace(payload); len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapper struct {
			Song json.RawMessage `json:"song"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("decode song data: %w: %w", domain.ErrUpstreamUnavailable, err)
		}
		payload = wrapper.Song
	}
	return objectOrList(payload)
}

func objectOrList(msg json.RawMessage) ([]RawSong, error) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 || isNull(trimmed) {
		return nil, nil
	}
	switch trimmed[0] {
	case '{':
		return []RawSong{RawSong(trimmed)}, nil
	case '[':
		var list []RawSong
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode song list: %w: %w", domain.ErrUpstreamUnavailable, err)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unexpected song payload: %w", domain.ErrUpstreamUnavailable)
	}
}

func isNull(msg []byte) bool { return bytes.Equal(bytes.TrimSpace(msg), []byte("null")) }
