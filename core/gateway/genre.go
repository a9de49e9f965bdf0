package gateway

import (
	"encoding/json"
	"strings"
)

// AllowedGenres 允许的电子音乐风格，对 primaryGenreName 做不区分大小写的子串匹配
var AllowedGenres = []string{
	"electronic",
	"dance",
	"trance",
	"house",
	"techno",
	"ambient",
	"progressive house",
	"deep house",
	"progressive trance",
}

// IsElectronic reports whether a genre name matches one of AllowedGenres.
func IsElectronic(genre string) bool {
	g := strings.ToLower(genre)
	if g == "" {
		return false
	}
	for _, allowed := range AllowedGenres {
		if strings.Contains(g, allowed) {
			return true
		}
	}
	return false
}

type genreField struct {
	PrimaryGenreName string `json:"primaryGenreName"`
}

// FilterElectronic keeps the raw records whose genre is allowed. Records are
// not re-encoded, so every upstream field survives the proxy.
func FilterElectronic(results []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(results))
	for _, raw := range results {
		var g genreField
		if err := json.Unmarshal(raw, &g); err != nil {
			continue
		}
		if IsElectronic(g.PrimaryGenreName) {
			out = append(out, raw)
		}
	}
	return out
}
