package cart

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"beatflow/model"
	"beatflow/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingSlot reads fine but refuses every write, like a full quota.
type failingSlot struct {
	*storage.MemorySlot
}

func (failingSlot) Set(ctx context.Context, key, value string) error {
	return storage.ErrSlotUnavailable
}

func summary(id string, price float64) model.TrackSummary {
	return model.TrackSummary{
		ID:     id,
		Name:   "Track " + id,
		Artist: "Artist " + id,
		Image:  "https://is1.example.com/" + id + "/100x100bb.jpg",
		Price:  price,
	}
}

func persisted(t *testing.T, slot storage.Slot) []model.CartLine {
	t.Helper()
	data, ok, err := slot.Get(context.Background(), SlotKey)
	require.NoError(t, err)
	require.True(t, ok)
	var lines []model.CartLine
	require.NoError(t, json.Unmarshal([]byte(data), &lines))
	return lines
}

func TestStore_AddOrIncrement(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, storage.NewMemorySlot(), "")

	for i := 0; i < 5; i++ {
		s.Add(ctx, summary("A", 1.29))
	}
	s.Add(ctx, summary("B", 0.99))

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "A", lines[0].ID)
	assert.Equal(t, 5, lines[0].Qty)
	assert.Equal(t, "B", lines[1].ID)
	assert.Equal(t, 6, s.ItemCount())
}

func TestStore_AddKeepsFirstSnapshot(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, storage.NewMemorySlot(), "")

	s.Add(ctx, summary("A", 1.29))
	changed := summary("A", 9.99)
	changed.Name = "Renamed"
	s.Add(ctx, changed)

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "Track A", lines[0].Track.TrackName)
	assert.Equal(t, "2.58", s.TotalPrice().StringFixed(2))
}

func TestStore_DecrementFloorsAtOne(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, storage.NewMemorySlot(), "")

	s.Add(ctx, summary("A", 1))
	s.Increment(ctx, "A")
	s.Decrement(ctx, "A")
	s.Decrement(ctx, "A")
	s.Decrement(ctx, "A")

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Qty)

	s.Increment(ctx, "missing")
	s.Decrement(ctx, "missing")
	assert.Len(t, s.Lines(), 1)
}

func TestStore_SetQuantity(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, storage.NewMemorySlot(), "")

	s.Add(ctx, summary("A", 1))
	s.Add(ctx, summary("A", 1))
	s.SetQuantity(ctx, "A", "abc")
	assert.Equal(t, 1, s.Lines()[0].Qty)

	s.SetQuantity(ctx, "A", "7")
	assert.Equal(t, 7, s.Lines()[0].Qty)

	s.SetQuantity(ctx, "A", "-3")
	assert.Equal(t, 1, s.Lines()[0].Qty)

	s.SetQuantity(ctx, "missing", "4")
	assert.Len(t, s.Lines(), 1)
}

func TestStore_RemoveAndRemoveAt(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	s := Open(ctx, slot, "")

	s.Add(ctx, summary("A", 1))
	s.Add(ctx, summary("B", 1))
	s.Remove(ctx, "A")

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "B", lines[0].ID)

	s.Remove(ctx, "nope")
	assert.Len(t, s.Lines(), 1)

	s.Add(ctx, summary("C", 1))
	s.RemoveAt(ctx, 5)
	s.RemoveAt(ctx, -1)
	assert.Len(t, s.Lines(), 2)

	s.RemoveAt(ctx, 0)
	lines = s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "C", lines[0].ID)
	assert.Equal(t, "C", persisted(t, slot)[0].ID)
}

func TestStore_ClearPersistsEmpty(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	s := Open(ctx, slot, "")

	s.Add(ctx, summary("A", 1))
	s.Add(ctx, summary("B", 2))
	s.Clear(ctx)

	assert.Equal(t, 0, s.ItemCount())
	assert.True(t, s.TotalPrice().IsZero())
	assert.Empty(t, persisted(t, slot))
}

func TestStore_TotalPriceIgnoresBadPrices(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, storage.NewMemorySlot(), "")

	s.Add(ctx, summary("A", 1.29))
	s.Add(ctx, summary("A", 1.29))
	s.Add(ctx, summary("B", -5))
	s.Add(ctx, summary("C", math.NaN()))
	s.Add(ctx, summary("D", math.Inf(1)))
	s.Add(ctx, summary("E", 0.99))

	assert.Equal(t, "3.57", s.TotalPrice().StringFixed(2))
	assert.False(t, s.TotalPrice().IsNegative())
}

func TestStore_EmptyCart(t *testing.T) {
	s := Open(context.Background(), storage.NewMemorySlot(), "")
	assert.Equal(t, 0, s.ItemCount())
	assert.True(t, s.TotalPrice().IsZero())
	assert.NotNil(t, s.Lines())
}

func TestStore_PersistedShape(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	s := Open(ctx, slot, "")
	s.Add(ctx, summary("42", 1.29))

	data, _, _ := slot.Get(ctx, SlotKey)
	assert.JSONEq(t, `[{
		"id": "42",
		"track": {
			"trackId": "42",
			"trackName": "Track 42",
			"artistName": "Artist 42",
			"artworkUrl100": "https://is1.example.com/42/100x100bb.jpg",
			"trackPrice": 1.29
		},
		"qty": 1
	}]`, data)
}

func TestOpen_RestoresAndNormalizes(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	require.NoError(t, slot.Set(ctx, SlotKey, `[
		{"id":"1","track":{"trackId":1,"trackName":"One","artistName":"X","trackPrice":"1.50"},"qty":2},
		{"id":"2","track":{"trackId":"2","trackName":"Two","artistName":"Y","trackPrice":null},"qty":0},
		{"id":"1","track":{"trackId":1,"trackName":"Dup","artistName":"X"},"qty":3},
		{"track":{"trackId":3,"trackName":"Three","artistName":"Z"},"qty":1},
		{"track":{"trackName":"NoID"},"qty":1}
	]`))

	s := Open(ctx, slot, "")
	lines := s.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "One", lines[0].Track.TrackName)
	assert.Equal(t, 5, lines[0].Qty)
	assert.Equal(t, 1, lines[1].Qty)
	assert.Equal(t, "3", lines[2].ID)
	assert.Equal(t, "7.50", s.TotalPrice().StringFixed(2))
}

func TestOpen_CorruptOrMissing(t *testing.T) {
	ctx := context.Background()

	slot := storage.NewMemorySlot()
	require.NoError(t, slot.Set(ctx, SlotKey, `{not json`))
	assert.Empty(t, Open(ctx, slot, "").Lines())

	assert.Empty(t, Open(ctx, storage.NewMemorySlot(), "").Lines())
}

func TestStore_PersistFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, failingSlot{storage.NewMemorySlot()}, "")

	var renders int
	s.Attach(PresenterFunc(func(State) { renders++ }))

	s.Add(ctx, summary("A", 1))
	s.Add(ctx, summary("A", 1))

	assert.Equal(t, 2, s.ItemCount())
	// one render on attach plus one per mutation
	assert.Equal(t, 3, renders)
}

func TestStore_PresenterSeesPersistedState(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	s := Open(ctx, slot, "")

	var states []State
	detach := s.Attach(PresenterFunc(func(st State) {
		states = append(states, st)
		if st.ItemCount > 0 {
			// persistence happens before render
			assert.Equal(t, st.ItemCount, persisted(t, slot)[0].Qty)
		}
	}))

	s.Add(ctx, summary("A", 2))
	s.Increment(ctx, "A")
	detach()
	s.Increment(ctx, "A")

	require.Len(t, states, 3)
	assert.Equal(t, 0, states[0].ItemCount)
	assert.Equal(t, 2, states[2].ItemCount)
	assert.Equal(t, "4.00", states[2].Total.StringFixed(2))
	assert.Equal(t, 3, s.ItemCount())
}

func TestStore_NoOpSkipsRender(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, storage.NewMemorySlot(), "")

	var renders int
	s.Attach(PresenterFunc(func(State) { renders++ }))
	s.SetQuantity(ctx, "missing", "3")
	s.RemoveAt(ctx, 0)

	assert.Equal(t, 1, renders)
}

func TestEndToEnd_AddTwiceThenGarbageQuantity(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	s := Open(ctx, slot, "")

	s.Add(ctx, summary("A", 1))
	s.Add(ctx, summary("A", 1))
	s.SetQuantity(ctx, "A", "abc")
	assert.Equal(t, 1, s.ItemCount())

	// a fresh store over the same slot sees the same cart
	reopened := Open(ctx, slot, "")
	assert.Equal(t, s.Lines(), reopened.Lines())
}

// flakySlot fails writes while down is set.
type flakySlot struct {
	*storage.MemorySlot
	down bool
}

func (f *flakySlot) Set(ctx context.Context, key, value string) error {
	if f.down {
		return storage.ErrSlotUnavailable
	}
	return f.MemorySlot.Set(ctx, key, value)
}

func TestStore_PersistFailedTracksLastWrite(t *testing.T) {
	ctx := context.Background()
	slot := &flakySlot{MemorySlot: storage.NewMemorySlot(), down: true}
	s := Open(ctx, slot, "")
	assert.False(t, s.PersistFailed())

	s.Add(ctx, summary("A", 1))
	assert.True(t, s.PersistFailed())

	slot.down = false
	s.Increment(ctx, "A")
	assert.False(t, s.PersistFailed())
	assert.Equal(t, 2, persisted(t, slot)[0].Qty)
}

func TestStore_AddIgnoresMissingID(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	s := Open(ctx, slot, "")

	var renders int
	s.Attach(PresenterFunc(func(State) { renders++ }))
	s.Add(ctx, summary("", 1))

	assert.Empty(t, s.Lines())
	assert.Equal(t, 1, renders)
	_, ok, err := slot.Get(ctx, SlotKey)
	require.NoError(t, err)
	assert.False(t, ok)

	// what is in memory is what comes back after a restart
	s.Add(ctx, summary("B", 1))
	assert.Equal(t, s.Lines(), Open(ctx, slot, "").Lines())
}

func TestStore_Checkout(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	s := Open(ctx, slot, "")

	var renders int
	s.Attach(PresenterFunc(func(State) { renders++ }))

	empty := s.Checkout(ctx)
	assert.Equal(t, 0, empty.ItemCount)
	assert.Equal(t, 1, renders)

	s.Add(ctx, summary("A", 1.5))
	s.Add(ctx, summary("A", 1.5))
	s.Add(ctx, summary("B", 2))

	bought := s.Checkout(ctx)
	assert.Equal(t, 3, bought.ItemCount)
	assert.Equal(t, "5.00", bought.Total.StringFixed(2))
	require.Len(t, bought.Lines, 2)

	assert.Equal(t, 0, s.ItemCount())
	assert.Empty(t, persisted(t, slot))
	assert.Equal(t, 5, renders)
}
