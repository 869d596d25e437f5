package ffmpeg

import (
	"reflect"
	"testing"
)

func TestFilterBuilder(t *testing.T) {
	fb := NewFilterBuilder()
	filter := fb.Scale(1920, 1080).FPS(30).Build()

	expected := "scale=1920:1080,fps=30"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestFilterBuilderEmpty(t *testing.T) {
	fb := NewFilterBuilder()
	filter := fb.Scale(0, 0).ScaleWidth(0, true).Unsharp("").Build()

	if filter != "" {
		t.Errorf("expected empty string, got %q", filter)
	}
}

func TestFilterBuilderChaining(t *testing.T) {
	filter := NewFilterBuilder().ScaleWidth(500, true).PaletteGen().Build()

	expected := "scale=500:-2:flags=lanczos,palettegen"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestDetectMotionArgs(t *testing.T) {
	got := DetectMotionArgs("/v/in.mp4", "/v/transform_vectors.trf", DefaultStabilizeOptions())
	want := []string{
		"-y", "-threads", "8",
		"-i", "/v/in.mp4",
		"-vf", "vidstabdetect=stepsize=6:shakiness=4:accuracy=5:result=/v/transform_vectors.trf",
		"-f", "null", "-",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestTransformArgs(t *testing.T) {
	got := TransformArgs("/v/in.mp4", "/v/transform_vectors.trf", "/v/STBL_in.mp4", 12.5, 20, DefaultStabilizeOptions())
	want := []string{
		"-threads", "8", "-y",
		"-i", "/v/in.mp4",
		"-ss", "12.5", "-t", "20",
		"-vf", "vidstabtransform=input=/v/transform_vectors.trf:zoom=1:smoothing=30,unsharp=5:5:0.8:3:3:0.4",
		"-vcodec", "libx264", "-acodec", "copy",
		"-preset", "fast", "-tune", "film", "-crf", "17",
		"/v/STBL_in.mp4",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestLoopEncodeArgs(t *testing.T) {
	seg := LoopSegment{Input: "in.mp4", Start: 10, Duration: 2}
	opts := DefaultLoopEncodeOptions()

	tests := []struct {
		name string
		got  []string
		want []string
	}{
		{
			name: "palette",
			got:  GIFPaletteArgs(seg, "frames/palette.png", opts),
			want: []string{"-y", "-ss", "10", "-t", "2", "-i", "in.mp4",
				"-vf", "scale=500:-2:flags=lanczos,palettegen", "frames/palette.png"},
		},
		{
			name: "gif",
			got:  GIFEncodeArgs(seg, "frames/palette.png", "Loops/in-1.gif", opts),
			want: []string{"-y", "-ss", "10", "-t", "2", "-i", "in.mp4",
				"-i", "frames/palette.png",
				"-filter_complex", "fps=25,scale=500:-2:flags=lanczos[x];[x][1:v]paletteuse",
				"Loops/in-1.gif"},
		},
		{
			name: "webm",
			got:  WebMArgs(seg, "Loops/in-1.webm", opts),
			want: []string{"-y", "-ss", "10", "-t", "2", "-i", "in.mp4",
				"-minrate", "1700k", "-b:v", "1800K", "-maxrate", "2000K",
				"-c:v", "libvpx", "-vf", "scale=500:-2", "Loops/in-1.webm"},
		},
		{
			name: "mp4",
			got:  MP4Args(seg, "Loops/in-1.mp4", opts),
			want: []string{"-y", "-ss", "10", "-t", "2", "-i", "in.mp4",
				"-b:v", "1800K", "-c:v", "libx264", "-vf", "scale=500:-2", "Loops/in-1.mp4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("got  %q\nwant %q", tt.got, tt.want)
			}
		})
	}
}

func TestLoopEncodeArgsMuted(t *testing.T) {
	seg := LoopSegment{Input: "in.mp4", Start: 0, Duration: 3.2}
	opts := DefaultLoopEncodeOptions()
	opts.Sound = false

	webm := WebMArgs(seg, "out.webm", opts)
	if webm[7] != "-an" {
		t.Errorf("expected -an after input, got %q", webm)
	}
	mp4 := MP4Args(seg, "out.mp4", opts)
	if mp4[7] != "-an" {
		t.Errorf("expected -an after input, got %q", mp4)
	}
}

func TestProbeArgs(t *testing.T) {
	want := []string{"-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", "in.mp4"}
	if got := DurationArgs("in.mp4"); !reflect.DeepEqual(got, want) {
		t.Errorf("got %q", got)
	}

	want = []string{"-v", "0", "-of", "csv=p=0", "-select_streams", "V:0",
		"-show_entries", "stream=r_frame_rate", "in.mp4"}
	if got := FrameRateArgs("in.mp4"); !reflect.DeepEqual(got, want) {
		t.Errorf("got %q", got)
	}
}

func TestDecodeArgs(t *testing.T) {
	got := DecodeArgs(DecodeRequest{Path: "in.mp4", Trim: true, Start: 4, Length: 0.5}, 320, 180)
	want := []string{"-ss", "4", "-t", "0.5", "-i", "in.mp4", "-an",
		"-vf", "scale=320:180", "-f", "rawvideo", "-pix_fmt", "rgb24", "pipe:1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got  %q\nwant %q", got, want)
	}

	got = DecodeArgs(DecodeRequest{Path: "in.mp4"}, 320, 180)
	if got[0] != "-i" {
		t.Errorf("untrimmed decode should start with input, got %q", got)
	}
}
