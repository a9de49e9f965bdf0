package cart

import "beatflow/model"

// BadgeView 导航栏购物车徽标
type BadgeView struct {
	Count    int  `json:"count"`
	HasItems bool `json:"hasItems"`
}

// PanelLine 购物车面板中的一行
type PanelLine struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Artist string `json:"artist"`
	Image  string `json:"image"`
	Price  string `json:"price"`
	Qty    int    `json:"qty"`
}

// PanelView 购物车侧边面板
type PanelView struct {
	Lines []PanelLine `json:"lines"`
	Count int         `json:"count"`
	Total string      `json:"total"`
	Empty bool        `json:"empty"`
}

// CheckoutLine carries the position so the checkout page can remove by index.
type CheckoutLine struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	Image    string `json:"image"`
	Price    string `json:"price"`
	Qty      int    `json:"qty"`
	Subtotal string `json:"subtotal"`
}

// CheckoutView 结算页摘要
type CheckoutView struct {
	Lines []CheckoutLine `json:"lines"`
	Count int            `json:"count"`
	Total string         `json:"total"`
	Empty bool           `json:"empty"`
}

// Badge 生成徽标视图
func (s State) Badge() BadgeView {
	return BadgeView{Count: s.ItemCount, HasItems: s.ItemCount > 0}
}

// Panel 生成购物车面板视图，封面升级为大图
func (s State) Panel() PanelView {
	v := PanelView{
		Lines: make([]PanelLine, 0, len(s.Lines)),
		Count: s.ItemCount,
		Total: s.Total.StringFixed(2),
		Empty: len(s.Lines) == 0,
	}
	for _, l := range s.Lines {
		v.Lines = append(v.Lines, PanelLine{
			ID:     l.ID,
			Name:   l.Track.TrackName,
			Artist: l.Track.ArtistName,
			Image:  model.UpgradeArtwork(l.Track.Artwork),
			Price:  formatPrice(l),
			Qty:    l.Qty,
		})
	}
	return v
}

// Checkout 生成结算页视图
func (s State) Checkout() CheckoutView {
	v := CheckoutView{
		Lines: make([]CheckoutLine, 0, len(s.Lines)),
		Count: s.ItemCount,
		Total: s.Total.StringFixed(2),
		Empty: len(s.Lines) == 0,
	}
	for i, l := range s.Lines {
		v.Lines = append(v.Lines, CheckoutLine{
			Index:    i,
			ID:       l.ID,
			Name:     l.Track.TrackName,
			Artist:   l.Track.ArtistName,
			Image:    model.UpgradeArtwork(l.Track.Artwork),
			Price:    formatPrice(l),
			Qty:      l.Qty,
			Subtotal: LineSubtotal(l).StringFixed(2),
		})
	}
	return v
}

func formatPrice(l model.CartLine) string {
	return LineSubtotal(model.CartLine{Track: l.Track, Qty: 1}).StringFixed(2)
}
