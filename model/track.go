package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// UnknownCollection 专辑名缺失时的占位名称
const UnknownCollection = "Unknown Album"

// Track represents one purchasable track in the catalog.
// Identity is ID only; no other field takes part in dedup or cart matching.
type Track struct {
	ID             string  `json:"trackId"`
	Name           string  `json:"trackName"`
	Artist         string  `json:"artistName"`
	Collection     string  `json:"collectionName"`
	PreviewURL     string  `json:"previewUrl,omitempty"`
	ArtworkURL     string  `json:"artworkUrl100"`
	Price          float64 `json:"trackPrice"`      // 0 表示免费
	DurationMillis int64   `json:"trackTimeMillis"` // 缺失时为 0
	Genre          string  `json:"primaryGenreName,omitempty"`
}

// CardArtwork 返回卡片展示用的大图地址
// 上游的 100x100 缩略图升级为 600x600；缺失时根据 ID 生成稳定的占位图
func (t Track) CardArtwork() string {
	if t.ArtworkURL == "" {
		sum := 0
		for _, r := range t.ID {
			sum += int(r)
		}
		return fmt.Sprintf("https://picsum.photos/600/600?random=%d", sum)
	}
	return UpgradeArtwork(t.ArtworkURL)
}

// PriceLabel returns "Free" for zero-priced tracks, otherwise "$x.xx".
func (t Track) PriceLabel() string {
	p := SafePrice(t.Price)
	if p == 0 {
		return "Free"
	}
	return "$" + decimal.NewFromFloat(p).StringFixed(2)
}

// Summary 生成加入购物车时使用的反规范化快照
func (t Track) Summary() TrackSummary {
	return TrackSummary{
		ID:     t.ID,
		Name:   t.Name,
		Artist: t.Artist,
		Image:  t.CardArtwork(),
		Price:  t.Price,
	}
}

// UpgradeArtwork 将 100x100 的封面地址替换为 600x600
func UpgradeArtwork(url string) string {
	return strings.Replace(url, "100x100", "600x600", 1)
}

// TrackSummary is what a presenter hands to the cart when the user adds a track.
type TrackSummary struct {
	ID     string
	Name   string
	Artist string
	Image  string
	Price  float64
}
