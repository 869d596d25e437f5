package loops

import (
	"errors"
	"reflect"
	"testing"

	"github.com/corona10/goimagehash"
)

func hashOf(bits uint64) *goimagehash.ExtImageHash {
	return goimagehash.NewExtImageHash([]uint64{bits}, goimagehash.PHash, 64)
}

// testOptions mirrors the defaults for 8x8 hashes: max difference 256,
// threshold 192, midpoint guard at 4%.
func testOptions() SearchOptions {
	return DefaultSearchOptions(8, 25)
}

func buildIndex(t *testing.T, stride int, hashes []uint64) *HashIndex {
	t.Helper()
	idx := NewHashIndex()
	for i, h := range hashes {
		if err := idx.Add(FrameHash{FrameIndex: i * stride, Hash: hashOf(h)}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	return idx
}

var pattern = []uint64{
	0x0,
	0xFFFF,
	0xFFFF0000,
	0xFFFF00000000,
	0xFFFF000000000000,
	0x00FF00FF00FF00FF,
	0xFF00FF00FF00FF00,
	0x0F0F0F0F0F0F0F0F,
}

func TestSearchRejectsStaticSpans(t *testing.T) {
	hashes := make([]uint64, 80)
	idx := buildIndex(t, 5, hashes)

	got, err := Search(idx, testOptions())
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates for identical frames, got %d", len(got))
	}
}

func TestSearchWindowGuard(t *testing.T) {
	const (
		far1 = 0xFFFFFFFF
		far2 = 0xFFFFFFFFFFFF
		far3 = 0xFFFFFFFF00000000
	)
	// frame:          0  5  10    15    20     25    30    35
	hashes := []uint64{0, 0, far1, far2, 0xFFF, far3, far3, 0}
	idx := buildIndex(t, 5, hashes)

	opts := testOptions()
	opts.MinLoopFrames = 15
	opts.MaxLoopFrames = 30

	got, err := Search(idx, opts)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	var fromZero *CandidateLoop
	for _, c := range got {
		if c.StartFrame == 0 {
			fromZero = c
		}
	}
	if fromZero == nil {
		t.Fatal("expected a candidate starting at frame 0")
	}
	if fromZero.EndFrame != 20 || fromZero.Score != 12 {
		t.Errorf("expected end 20 score 12, got end %d score %d", fromZero.EndFrame, fromZero.Score)
	}
}

func TestSearchThreshold(t *testing.T) {
	hashes := []uint64{0, 0xFFFF, 0xFFFF0000, 0xFFFFFFFFFFFFFFFF, 0xFFFFFFFFFFFFFFFF}
	idx := buildIndex(t, 5, hashes)

	opts := testOptions()
	opts.SimilarityThreshold = 10

	got, err := Search(idx, opts)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	for _, c := range got {
		if float64(c.Score) >= opts.SimilarityThreshold {
			t.Errorf("candidate %d-%d has score %d above threshold", c.StartFrame, c.EndFrame, c.Score)
		}
	}
}

func TestSearchRanking(t *testing.T) {
	hashes := make([]uint64, 40)
	for i := range hashes {
		hashes[i] = pattern[i%len(pattern)]
	}
	idx := buildIndex(t, 5, hashes)

	got, err := Search(idx, testOptions())
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(got) < 32 {
		t.Fatalf("expected at least 32 candidates, got %d", len(got))
	}

	for i := 1; i < len(got); i++ {
		if got[i].Score < got[i-1].Score {
			t.Fatalf("candidates not sorted at %d: %d after %d", i, got[i].Score, got[i-1].Score)
		}
	}

	// every start with a full period ahead of it loops back with distance 0,
	// ties kept in start order
	for i := 0; i < 32; i++ {
		c := got[i]
		if c.Score != 0 {
			t.Fatalf("candidate %d: expected score 0, got %d", i, c.Score)
		}
		if c.StartFrame != i*5 || c.EndFrame != i*5+40 {
			t.Errorf("candidate %d: expected %d-%d, got %d-%d", i, i*5, i*5+40, c.StartFrame, c.EndFrame)
		}
	}

	if d := got[0].Duration(); d != 40.0/25 {
		t.Errorf("expected duration 1.6s, got %f", d)
	}
}

func TestSearchDeterministic(t *testing.T) {
	hashes := make([]uint64, 60)
	for i := range hashes {
		hashes[i] = pattern[(i*3)%len(pattern)] ^ uint64(i%3)
	}
	idx := buildIndex(t, 5, hashes)

	first, err := Search(idx, testOptions())
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	second, err := Search(idx, testOptions())
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different rankings")
	}
}

func TestSearchOneCandidatePerStart(t *testing.T) {
	hashes := make([]uint64, 40)
	for i := range hashes {
		hashes[i] = pattern[i%len(pattern)]
	}
	idx := buildIndex(t, 5, hashes)

	got, err := Search(idx, testOptions())
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	seen := make(map[int]bool)
	for _, c := range got {
		if seen[c.StartFrame] {
			t.Fatalf("start %d produced more than one candidate", c.StartFrame)
		}
		seen[c.StartFrame] = true
	}
}

func TestSearchInvalidOptions(t *testing.T) {
	idx := buildIndex(t, 5, []uint64{0, 1})
	opts := testOptions()
	opts.Stride = 0
	if _, err := Search(idx, opts); err == nil {
		t.Error("expected error for zero stride")
	}

	opts = testOptions()
	opts.FrameRate = 0
	if _, err := Search(idx, opts); err == nil {
		t.Error("expected error for zero frame rate")
	}
}

func TestHashIndexGet(t *testing.T) {
	idx := buildIndex(t, 5, []uint64{1, 2, 3})

	h, err := idx.Get(3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d, _ := h.Distance(hashOf(2)); d != 0 {
		t.Error("expected lookup of frame 3 to resolve to frame 5")
	}

	if _, err := idx.Get(11); !errors.Is(err, ErrFrameOutOfRange) {
		t.Errorf("expected out of range, got %v", err)
	}

	if err := idx.Add(FrameHash{FrameIndex: 10, Hash: hashOf(4)}); err == nil {
		t.Error("expected error for non-increasing index")
	}

	if frames := idx.Frames(); len(frames) != 3 || frames[2] != 10 {
		t.Errorf("unexpected frames %v", frames)
	}
}

func TestHashIndexDistance(t *testing.T) {
	idx := buildIndex(t, 5, []uint64{0, 0xFF})
	d, err := idx.Distance(0, 5)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if d != 8 {
		t.Errorf("expected 8, got %d", d)
	}
}
