package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"beatflow/config"
	"beatflow/core/gateway"
	"beatflow/model"
	"beatflow/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSearcher answers from a per-term table and records what was asked.
type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]model.RawTrack
	errs    map[string]error
	delay   map[string]time.Duration
	calls   []string
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		results: map[string][]model.RawTrack{},
		errs:    map[string]error{},
		delay:   map[string]time.Duration{},
	}
}

func (f *fakeSearcher) Search(ctx context.Context, term string, limit int) ([]model.RawTrack, error) {
	f.mu.Lock()
	f.calls = append(f.calls, term)
	res, err, d := f.results[term], f.errs[term], f.delay[term]
	f.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res, err
}

func (f *fakeSearcher) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func raw(id, name, genre string) model.RawTrack {
	return model.RawTrack{
		TrackID:          model.FlexibleID(id),
		TrackName:        name,
		ArtistName:       "Artist " + id,
		PrimaryGenreName: genre,
	}
}

func rawRange(prefix string, n int) []model.RawTrack {
	out := make([]model.RawTrack, n)
	for i := range out {
		out[i] = raw(fmt.Sprintf("%s%d", prefix, i), "Track", "Electronic")
	}
	return out
}

func testTerms() config.Terms {
	return config.Terms{
		Featured:      []string{"trance", "deep house"},
		Supplementary: []string{"techno"},
	}
}

func noShuffle(n int, swap func(i, j int)) {}

func TestAggregator_DedupFirstSeenWins(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["trance"] = []model.RawTrack{raw("1", "First", "Trance"), raw("2", "Two", "Trance")}
	fs.results["deep house"] = []model.RawTrack{raw("1", "Second", "Deep House"), raw("3", "Three", "Deep House")}

	a := NewAggregator(fs, testTerms())
	report := a.Load(context.Background(), "")

	tracks := a.Tracks()
	require.Len(t, tracks, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{tracks[0].ID, tracks[1].ID, tracks[2].ID})
	assert.Equal(t, "First", tracks[0].Name)
	assert.True(t, report.Applied)
	assert.True(t, report.Supplemented)
	assert.Equal(t, 3, report.Total)
}

func TestAggregator_FiltersGenreAndIncomplete(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["trance"] = []model.RawTrack{
		raw("1", "Keep", "Progressive Trance"),
		raw("2", "Classical", "Classical"),
		raw("3", "", "Trance"),
		{TrackID: "4", TrackName: "No Artist", PrimaryGenreName: "Trance"},
	}

	a := NewAggregator(fs, config.Terms{Featured: []string{"trance"}})
	report := a.Load(context.Background(), "")

	tracks := a.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, "1", tracks[0].ID)
	assert.Equal(t, model.UnknownCollection, tracks[0].Collection)
	assert.Equal(t, 4, report.Fetched)
}

func TestAggregator_CapAndSupplement(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["trance"] = rawRange("t", 300)
	fs.results["deep house"] = rawRange("d", 150)
	fs.results["techno"] = rawRange("x", 400)

	a := NewAggregator(fs, testTerms())
	report := a.Load(context.Background(), "")

	assert.True(t, report.Supplemented)
	assert.Equal(t, MaxCatalogSize, a.Len())
	tracks := a.Tracks()
	assert.Equal(t, "t0", tracks[0].ID)
	assert.Equal(t, "d0", tracks[300].ID)
	assert.Equal(t, "x0", tracks[450].ID)
	assert.Equal(t, "x49", tracks[499].ID)
}

func TestAggregator_NoSupplementWhenFull(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["trance"] = rawRange("t", 600)

	a := NewAggregator(fs, testTerms())
	report := a.Load(context.Background(), "")

	assert.False(t, report.Supplemented)
	assert.Equal(t, MaxCatalogSize, a.Len())
	assert.NotContains(t, fs.called(), "techno")
}

func TestAggregator_SearchTermQueriesOnlyThatTerm(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["daft punk"] = []model.RawTrack{raw("1", "One More Time", "Dance")}

	a := NewAggregator(fs, testTerms())
	report := a.Load(context.Background(), "  daft punk ")

	assert.Equal(t, []string{"daft punk"}, fs.called())
	assert.False(t, report.Supplemented)
	assert.Equal(t, 1, a.Len())
}

func TestAggregator_TermFailuresDegradeToEmpty(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["trance"] = []model.RawTrack{raw("1", "One", "Trance")}
	fs.errs["deep house"] = fmt.Errorf("wrapped: %w", gateway.ErrUpstreamStatus)
	fs.delay["techno"] = time.Second

	a := NewAggregator(fs, testTerms(), WithTimeout(20*time.Millisecond))
	report := a.Load(context.Background(), "")

	assert.Equal(t, 1, a.Len())
	require.Len(t, report.Failures, 2)
	assert.Equal(t, "deep house", report.Failures[0].Term)
	assert.Equal(t, ReasonStatus, report.Failures[0].Reason)
	assert.Equal(t, "techno", report.Failures[1].Term)
	assert.Equal(t, ReasonTimeout, report.Failures[1].Reason)
}

func TestAggregator_StaleLoadDiscarded(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["slow"] = []model.RawTrack{raw("s", "Slow", "House")}
	fs.delay["slow"] = 200 * time.Millisecond
	fs.results["fast"] = []model.RawTrack{raw("f", "Fast", "House")}

	a := NewAggregator(fs, testTerms())

	var slowReport LoadReport
	done := make(chan struct{})
	go func() {
		slowReport = a.Load(context.Background(), "slow")
		close(done)
	}()

	// let the slow load take its generation first
	require.Eventually(t, func() bool { return len(fs.called()) == 1 }, time.Second, time.Millisecond)
	fastReport := a.Load(context.Background(), "fast")
	<-done

	assert.True(t, fastReport.Applied)
	assert.False(t, slowReport.Applied)
	assert.Greater(t, fastReport.Generation, slowReport.Generation)
	assert.Equal(t, fastReport.Generation, a.Generation())
	require.Equal(t, 1, a.Len())
	assert.Equal(t, "f", a.Tracks()[0].ID)
}

func TestAggregator_FeaturedReusesSnapshot(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["trance"] = rawRange("t", 25)

	a := NewAggregator(fs, testTerms(), WithShuffle(noShuffle))

	featured, report := a.Featured(context.Background())
	require.NotNil(t, report)
	assert.False(t, report.Supplemented)
	require.Len(t, featured, FeaturedSize)
	assert.Equal(t, "t0", featured[0].ID)
	callsAfterFirst := len(fs.called())

	featured, report = a.Featured(context.Background())
	assert.Nil(t, report)
	assert.Len(t, featured, FeaturedSize)
	assert.Len(t, fs.called(), callsAfterFirst)
}

func TestAggregator_FeaturedShuffles(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["trance"] = rawRange("t", 12)

	reverse := func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}
	a := NewAggregator(fs, testTerms(), WithShuffle(reverse))

	featured, _ := a.Featured(context.Background())
	require.Len(t, featured, FeaturedSize)
	assert.Equal(t, "t11", featured[0].ID)
	// the shuffle works on a copy
	assert.Equal(t, "t0", a.Tracks()[0].ID)
}

func TestAggregator_FeaturedSmallPool(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["trance"] = rawRange("t", 3)

	a := NewAggregator(fs, testTerms())
	featured, _ := a.Featured(context.Background())
	assert.Len(t, featured, 3)
}

type recordingSink struct {
	mu    sync.Mutex
	snaps []storage.Snapshot
	err   error
}

func (r *recordingSink) Save(ctx context.Context, snap storage.Snapshot) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	return storage.SnapshotKey(snap), r.err
}

func TestAggregator_SnapshotSink(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["trance"] = []model.RawTrack{raw("1", "One", "Trance")}

	sink := &recordingSink{}
	a := NewAggregator(fs, testTerms(), WithSnapshotSink(sink))
	a.Load(context.Background(), "trance")
	a.Load(context.Background(), "nothing")

	require.Len(t, sink.snaps, 1)
	assert.Equal(t, "trance", sink.snaps[0].Term)
	assert.Len(t, sink.snaps[0].Tracks, 1)

	sink.err = errors.New("bucket gone")
	report := a.Load(context.Background(), "trance")
	assert.True(t, report.Applied)
}

func TestAggregator_SetTerms(t *testing.T) {
	fs := newFakeSearcher()
	a := NewAggregator(fs, testTerms())
	a.SetTerms(config.Terms{Featured: []string{"ambient"}})

	a.Load(context.Background(), "")
	assert.Equal(t, []string{"ambient"}, fs.called())
}

func TestMerge(t *testing.T) {
	base := []model.Track{{ID: "a", Name: "A1"}, {ID: "b"}}
	incoming := []model.Track{{ID: "a", Name: "A2"}, {ID: "c"}, {ID: "c"}, {ID: "d"}}

	out := Merge(base, incoming, 3)
	require.Len(t, out, 3)
	assert.Equal(t, "A1", out[0].Name)
	assert.Equal(t, "c", out[2].ID)
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 1, PageCount(0))
	assert.Equal(t, 1, PageCount(30))
	assert.Equal(t, 2, PageCount(31))
	assert.Equal(t, 17, PageCount(500))
}

func TestAggregator_Page(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["trance"] = rawRange("t", 65)

	a := NewAggregator(fs, config.Terms{Featured: []string{"trance"}})

	empty := a.Page(1)
	assert.Equal(t, 1, empty.PageCount)
	assert.Empty(t, empty.Tracks)
	assert.NotNil(t, empty.Tracks)

	a.Load(context.Background(), "")

	seen := map[string]bool{}
	var ordered []string
	for n := 1; n <= a.Page(1).PageCount; n++ {
		p := a.Page(n)
		assert.LessOrEqual(t, len(p.Tracks), PageSize)
		for _, tr := range p.Tracks {
			assert.False(t, seen[tr.ID], "overlap on %s", tr.ID)
			seen[tr.ID] = true
			ordered = append(ordered, tr.ID)
		}
	}
	assert.Equal(t, 3, a.Page(1).PageCount)
	assert.Len(t, ordered, 65)
	assert.Equal(t, "t30", ordered[30])
	assert.Len(t, a.Page(3).Tracks, 5)

	assert.Empty(t, a.Page(0).Tracks)
	assert.Empty(t, a.Page(4).Tracks)
	assert.Empty(t, a.Page(-2).Tracks)
}

func TestAggregator_CurrentTermFollowsAppliedLoad(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["trance"] = []model.RawTrack{raw("c1", "Curated", "Trance")}
	fs.results["opus"] = []model.RawTrack{raw("s1", "Opus", "Dance")}

	a := NewAggregator(fs, testTerms())
	assert.False(t, a.Curated())

	a.Load(context.Background(), "")
	assert.True(t, a.Curated())
	assert.Equal(t, "", a.CurrentTerm())

	a.Load(context.Background(), " opus ")
	assert.False(t, a.Curated())
	assert.Equal(t, "opus", a.CurrentTerm())
}

func TestAggregator_FeaturedReplacesSearchResults(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["trance"] = rawRange("t", 12)
	fs.results["opus"] = []model.RawTrack{raw("s1", "Opus", "Dance")}

	a := NewAggregator(fs, testTerms(), WithShuffle(noShuffle))
	a.Load(context.Background(), "opus")

	featured, report := a.Featured(context.Background())
	require.NotNil(t, report)
	require.Len(t, featured, FeaturedSize)
	assert.Equal(t, "t0", featured[0].ID)
	assert.True(t, a.Curated())
}
