package model

// CartLine 购物车中的一行，按曲目 ID 唯一
// Track 字段是加入时的快照，不要求对应当前目录中的曲目
type CartLine struct {
	ID    string    `json:"id"`
	Track LineTrack `json:"track"`
	Qty   int       `json:"qty"`
}

// LineTrack is the denormalized display snapshot stored with a cart line.
type LineTrack struct {
	TrackID    FlexibleID `json:"trackId"`
	TrackName  string     `json:"trackName"`
	ArtistName string     `json:"artistName"`
	Artwork    string     `json:"artworkUrl100"`
	TrackPrice Price      `json:"trackPrice"`
}

// NewCartLine builds a quantity-1 line from an add-to-cart summary.
func NewCartLine(s TrackSummary) CartLine {
	return CartLine{
		ID: s.ID,
		Track: LineTrack{
			TrackID:    FlexibleID(s.ID),
			TrackName:  s.Name,
			ArtistName: s.Artist,
			Artwork:    s.Image,
			TrackPrice: Price(SafePrice(s.Price)),
		},
		Qty: 1,
	}
}

// UnitPrice 返回单价，非有限正数视为 0
func (l CartLine) UnitPrice() float64 {
	return SafePrice(float64(l.Track.TrackPrice))
}
