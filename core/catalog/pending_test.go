package catalog

import (
	"context"
	"errors"
	"testing"

	"beatflow/config"
	"beatflow/model"
	"beatflow/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenSlot struct{}

func (brokenSlot) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, storage.ErrSlotUnavailable
}
func (brokenSlot) Set(ctx context.Context, key, value string) error { return storage.ErrSlotUnavailable }
func (brokenSlot) Delete(ctx context.Context, key string) error    { return storage.ErrSlotUnavailable }

func TestPendingSearch_Submit(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	p := NewPendingSearch(slot, "")

	_, err := p.Submit(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptySearch)

	_, err = p.Submit(ctx, " a ")
	assert.ErrorIs(t, err, ErrSearchTooShort)

	term, err := p.Submit(ctx, "  deadmau5 ")
	require.NoError(t, err)
	assert.Equal(t, "deadmau5", term)

	v, ok, _ := slot.Get(ctx, PendingSearchKey)
	assert.True(t, ok)
	assert.Equal(t, "deadmau5", v)
}

func TestPendingSearch_TakeClears(t *testing.T) {
	ctx := context.Background()
	p := NewPendingSearch(storage.NewMemorySlot(), "BF_search_query:abc")

	_, ok := p.Take(ctx)
	assert.False(t, ok)

	_, err := p.Submit(ctx, "techno")
	require.NoError(t, err)

	term, ok := p.Peek(ctx)
	assert.True(t, ok)
	assert.Equal(t, "techno", term)

	term, ok = p.Take(ctx)
	assert.True(t, ok)
	assert.Equal(t, "techno", term)

	_, ok = p.Take(ctx)
	assert.False(t, ok)
}

func TestPendingSearch_BrokenSlot(t *testing.T) {
	p := NewPendingSearch(brokenSlot{}, "")
	_, err := p.Submit(context.Background(), "techno")
	assert.True(t, errors.Is(err, storage.ErrSlotUnavailable))

	_, ok := p.Take(context.Background())
	assert.False(t, ok)
}

func TestAggregator_LoadPendingConsumesTerm(t *testing.T) {
	ctx := context.Background()
	fs := newFakeSearcher()
	fs.results["opus"] = []model.RawTrack{raw("1", "Opus", "Dance")}

	pending := NewPendingSearch(storage.NewMemorySlot(), "")
	_, err := pending.Submit(ctx, "opus")
	require.NoError(t, err)

	a := NewAggregator(fs, config.Terms{Featured: []string{"trance"}, Supplementary: []string{"techno"}})
	report := a.LoadPending(ctx, pending)
	assert.Equal(t, "opus", report.Term)
	assert.Equal(t, 1, a.Len())

	// the next load goes back to the curated lists
	report = a.LoadPending(ctx, pending)
	assert.Equal(t, "", report.Term)
	assert.Equal(t, []string{"opus", "trance", "techno"}, fs.called())
}
