package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kikiluvv/loopifi/pkg/util"
)

// ProbeError reports a metadata query that failed or returned output that
// could not be interpreted.
type ProbeError struct {
	Path  string
	Field string
	Err   error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s of %s: %v", e.Field, e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// DurationArgs returns the ffprobe arguments that print the container duration.
func DurationArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
}

// FrameRateArgs returns the ffprobe arguments that print the first video
// stream's r_frame_rate as "num/den".
func FrameRateArgs(path string) []string {
	return []string{
		"-v", "0",
		"-of", "csv=p=0",
		"-select_streams", "V:0",
		"-show_entries", "stream=r_frame_rate",
		path,
	}
}

// ProbeDuration returns the container duration of path in seconds.
func (e *Executor) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := e.probe(ctx, DurationArgs(path))
	if err != nil {
		return 0, &ProbeError{Path: path, Field: "duration", Err: err}
	}
	d, err := parseDuration(out)
	if err != nil {
		return 0, &ProbeError{Path: path, Field: "duration", Err: err}
	}
	return d, nil
}

// ProbeFrameRate returns the frame rate of the first video stream of path.
func (e *Executor) ProbeFrameRate(ctx context.Context, path string) (float64, error) {
	out, err := e.probe(ctx, FrameRateArgs(path))
	if err != nil {
		return 0, &ProbeError{Path: path, Field: "frame rate", Err: err}
	}
	fps, err := util.ParseRational(firstLine(out))
	if err != nil {
		return 0, &ProbeError{Path: path, Field: "frame rate", Err: err}
	}
	return fps, nil
}

// ProbeVideo extracts metadata from a video file
func (e *Executor) ProbeVideo(ctx context.Context, filePath string) (*VideoInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required")
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	output, err := e.probe(ctx, args)
	if err != nil {
		return nil, &ProbeError{Path: filePath, Field: "streams", Err: err}
	}

	info, err := parseProbeJSON(filePath, []byte(output))
	if err != nil {
		return nil, &ProbeError{Path: filePath, Field: "streams", Err: err}
	}
	return info, nil
}

func (e *Executor) probe(ctx context.Context, args []string) (string, error) {
	e.logger.Debug().
		Str("cmd", "ffprobe").
		Strs("args", args).
		Msg("executing ffprobe")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("ffprobe failed: %w: %s", err, lastLine(msg))
		}
		return "", fmt.Errorf("ffprobe failed: %w", err)
	}
	return stdout.String(), nil
}

func parseDuration(out string) (float64, error) {
	s := firstLine(out)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	// csv output may carry a trailing separator
	return strings.TrimSpace(strings.TrimSuffix(s, ","))
}

func parseProbeJSON(filePath string, output []byte) (*VideoInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{
		FilePath: filePath,
	}

	// Parse duration
	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(dur * float64(time.Second))
	}

	seenVideo := false
	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if seenVideo {
				continue
			}
			seenVideo = true
			info.Width = stream.Width
			info.Height = stream.Height
			info.VideoCodec = stream.CodecName
			if stream.RFrameRate != "" {
				info.FPS = util.ParseFrameRate(stream.RFrameRate)
			}
			if n, err := strconv.Atoi(stream.NbFrames); err == nil {
				info.FrameCount = n
			}
		case "audio":
			info.HasAudio = true
			info.AudioCodec = stream.CodecName
		}
	}

	if !seenVideo {
		return nil, fmt.Errorf("no video stream")
	}
	return info, nil
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		NbFrames   string `json:"nb_frames"`
	} `json:"streams"`
}
