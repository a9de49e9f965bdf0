package model

import (
	"encoding/json"
	"strings"
)

// RawTrack 上游 iTunes Search API 返回的单条记录（只解析用到的字段）
type RawTrack struct {
	TrackID          FlexibleID `json:"trackId"`
	TrackName        string     `json:"trackName"`
	ArtistName       string     `json:"artistName"`
	CollectionName   string     `json:"collectionName"`
	PreviewURL       string     `json:"previewUrl"`
	ArtworkURL100    string     `json:"artworkUrl100"`
	TrackPrice       Price      `json:"trackPrice"`
	TrackTimeMillis  int64      `json:"trackTimeMillis"`
	PrimaryGenreName string     `json:"primaryGenreName"`
}

// SearchResponse is the body shape of both the upstream API and the proxy endpoint.
// Results stay raw so the proxy can pass records through untouched.
type SearchResponse struct {
	ResultCount int               `json:"resultCount"`
	Results     []json.RawMessage `json:"results"`
	Error       string            `json:"error,omitempty"`
}

// Playable reports whether the record carries the fields a catalog entry needs.
func (r RawTrack) Playable() bool {
	return strings.TrimSpace(r.TrackName) != "" && strings.TrimSpace(r.ArtistName) != ""
}

// ToTrack 映射为目录中的 Track，并填充默认值
func (r RawTrack) ToTrack() Track {
	collection := r.CollectionName
	if collection == "" {
		collection = UnknownCollection
	}
	duration := r.TrackTimeMillis
	if duration < 0 {
		duration = 0
	}
	return Track{
		ID:             r.TrackID.String(),
		Name:           r.TrackName,
		Artist:         r.ArtistName,
		Collection:     collection,
		PreviewURL:     r.PreviewURL,
		ArtworkURL:     r.ArtworkURL100,
		Price:          SafePrice(float64(r.TrackPrice)),
		DurationMillis: duration,
		Genre:          r.PrimaryGenreName,
	}
}

// FromTrack converts a catalog entry back into the upstream record shape.
// Snapshot sources use it so their output goes through the same filter as live results.
func FromTrack(t Track) RawTrack {
	return RawTrack{
		TrackID:          FlexibleID(t.ID),
		TrackName:        t.Name,
		ArtistName:       t.Artist,
		CollectionName:   t.Collection,
		PreviewURL:       t.PreviewURL,
		ArtworkURL100:    t.ArtworkURL,
		TrackPrice:       Price(t.Price),
		TrackTimeMillis:  t.DurationMillis,
		PrimaryGenreName: t.Genre,
	}
}
