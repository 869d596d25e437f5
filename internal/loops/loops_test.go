package loops

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corona10/goimagehash"
	"github.com/rs/zerolog"
)

func noiseImage(seed int64) image.Image {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

func solidImage(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPerceptualHasher(t *testing.T) {
	if _, err := NewPerceptualHasher(12); err == nil {
		t.Error("expected error for non power of two")
	}

	h, err := NewPerceptualHasher(8)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	a, err := h.Hash(noiseImage(1))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := h.Hash(noiseImage(1))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	c, err := h.Hash(noiseImage(2))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if d, _ := a.Distance(b); d != 0 {
		t.Errorf("identical frames should hash equally, distance %d", d)
	}
	if d, _ := a.Distance(c); d == 0 {
		t.Error("different frames should not hash equally")
	}
}

func TestMaxHashDifference(t *testing.T) {
	if got := MaxHashDifference(16); got != 1024 {
		t.Errorf("got %d", got)
	}
	if got := MaxHashDifference(8); got != 256 {
		t.Errorf("got %d", got)
	}
}

// stubHasher returns a fixed digest and counts calls.
type stubHasher struct {
	calls int
}

func (s *stubHasher) Hash(image.Image) (*goimagehash.ExtImageHash, error) {
	s.calls++
	return hashOf(uint64(s.calls)), nil
}

func TestExtractorSamplesEveryStride(t *testing.T) {
	hasher := &stubHasher{}
	ex := NewExtractor(zerolog.Nop(), hasher, 5, 12)

	var sampled []int
	ex.OnSample(func(frame int, _ image.Image) error {
		sampled = append(sampled, frame)
		return nil
	})

	img := solidImage(color.Black)
	for i := 0; i < 12; i++ {
		if err := ex.Visit(img); err != nil {
			t.Fatalf("visit: %v", err)
		}
	}

	if ex.Frames() != 12 {
		t.Errorf("expected 12 frames, got %d", ex.Frames())
	}
	if hasher.calls != 3 {
		t.Errorf("expected 3 hashes, got %d", hasher.calls)
	}
	want := []int{0, 5, 10}
	got := ex.Index().Frames()
	if len(got) != len(want) {
		t.Fatalf("expected frames %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] || sampled[i] != want[i] {
			t.Errorf("expected frames %v, got %v (sampled %v)", want, got, sampled)
		}
	}
}

func TestExtractorLogsProgressAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)
	ex := NewExtractor(logger, &stubHasher{}, 5, 300)

	img := solidImage(color.Black)
	for i := 0; i < 151; i++ {
		if err := ex.Visit(img); err != nil {
			t.Fatalf("visit: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected progress at frames 0 and 150, got %q", buf.String())
	}
	if !strings.Contains(lines[1], `"level":"info"`) ||
		!strings.Contains(lines[1], `"frame":150`) ||
		!strings.Contains(lines[1], `"percent":50`) {
		t.Errorf("unexpected progress entry %s", lines[1])
	}
}

func TestExtractorSampleError(t *testing.T) {
	ex := NewExtractor(zerolog.Nop(), &stubHasher{}, 5, 0)
	boom := errors.New("boom")
	ex.OnSample(func(int, image.Image) error { return boom })

	if err := ex.Visit(solidImage(color.White)); !errors.Is(err, boom) {
		t.Fatalf("expected sample error, got %v", err)
	}
}

func TestIntervalCheck(t *testing.T) {
	tests := []struct {
		name string
		iv   Interval
		ok   bool
	}{
		{"valid", Interval{Start: 5, End: 25}, true},
		{"empty", Interval{Start: 5, End: 5}, true},
		{"negative start", Interval{Start: -1, End: 5}, false},
		{"reversed", Interval{Start: 10, End: 5}, false},
		{"too long", Interval{Start: 0, End: 601}, false},
		{"max length", Interval{Start: 0, End: 600}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.iv.Check(DefaultMaxSearchSeconds)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidInterval) {
				t.Errorf("expected ErrInvalidInterval, got %v", err)
			}
		})
	}

	if err := (Interval{Start: 31, End: 40}).CheckAgainst(30); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("expected start past duration to fail, got %v", err)
	}
	if err := (Interval{Start: 30, End: 40}).CheckAgainst(30); err != nil {
		t.Errorf("start at duration should pass, got %v", err)
	}
}

func TestNormalizeScore(t *testing.T) {
	tests := []struct {
		score, max int
		want       float64
	}{
		{0, 1024, 1},
		{256, 1024, 0.75},
		{1, 3, 0.667},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := NormalizeScore(tt.score, tt.max); got != tt.want {
			t.Errorf("NormalizeScore(%d, %d) = %v, want %v", tt.score, tt.max, got, tt.want)
		}
	}
}

func TestNewLoopRecord(t *testing.T) {
	c := &CandidateLoop{Score: 0, StartFrame: 250, EndFrame: 300, FrameRate: 25}
	if _, err := NewLoopRecord(c, 1024, 0); err == nil {
		t.Fatal("expected error for unrendered candidate")
	}

	dir := t.TempDir()
	c.Outputs = &RenderOutputs{
		Rank: 1,
		GIF:  filepath.Join(dir, "1.gif"),
		WebM: filepath.Join(dir, "1.webm"),
		MP4:  filepath.Join(dir, "1.mp4"),
	}
	rec, err := NewLoopRecord(c, 1024, 5)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Score != 1 || rec.FrameLength != 50 {
		t.Errorf("unexpected score/length %v/%d", rec.Score, rec.FrameLength)
	}
	if rec.StartSeconds != 15 || rec.Duration != 2 {
		t.Errorf("unexpected timing %v/%v", rec.StartSeconds, rec.Duration)
	}
	if rec.WebMName != "1.webm" || rec.GIFLocation != filepath.Join(dir, "1.gif") {
		t.Errorf("unexpected names %+v", rec)
	}
}
