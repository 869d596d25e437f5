package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// outputTailLines bounds how much diagnostic output a RunError keeps.
const outputTailLines = 20

// Executor handles all ffmpeg operations with progress streaming
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
}

// New creates a new ffmpeg executor
func New(logger zerolog.Logger, opts Options) (*Executor, error) {
	if opts.BinaryPath == "" {
		opts.BinaryPath = "ffmpeg"
	}
	if opts.ProbePath == "" {
		opts.ProbePath = "ffprobe"
	}

	ffmpegPath, err := findBinary(opts.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	ffprobePath, err := findBinary(opts.ProbePath)
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     opts.Threads,
	}, nil
}

// findBinary resolves name on PATH, then falls back to a copy bundled in
// an assets directory next to the running executable.
func findBinary(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err == nil {
		return path, nil
	}
	if filepath.Base(name) != name {
		return "", err
	}

	exe, exeErr := os.Executable()
	if exeErr != nil {
		return "", err
	}
	bundled := filepath.Join(filepath.Dir(exe), "assets", name)
	if runtime.GOOS == "windows" {
		bundled += ".exe"
	}
	if _, statErr := os.Stat(bundled); statErr != nil {
		return "", err
	}
	return bundled, nil
}

// RunError reports an ffmpeg invocation that exited unsuccessfully.
type RunError struct {
	Binary   string
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Binary, e.ExitCode)
	if e.Output != "" {
		msg += ": " + lastLine(e.Output)
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Run executes ffmpeg with the given arguments and streams progress
func (e *Executor) Run(ctx context.Context, opts RunOptions) error {
	if len(opts.Args) == 0 {
		return fmt.Errorf("no arguments provided")
	}

	args := []string{"-hide_banner", "-nostdin"}
	if e.threads > 0 {
		args = append(args, "-threads", fmt.Sprintf("%d", e.threads))
	}
	if opts.ProgressHandler != nil {
		args = append(args, "-progress", "pipe:2")
	}
	args = append(args, opts.Args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", args).
		Msg("executing ffmpeg")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.ffmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	tail := newTailBuffer(outputTailLines)
	logHandler := func(line string) {
		tail.add(line)
		if opts.LogHandler != nil {
			opts.LogHandler(line)
		}
	}

	var (
		wg         sync.WaitGroup
		consumeErr error
	)
	wg.Add(2)

	// Stream stderr (progress + logs)
	go func() {
		defer wg.Done()
		e.streamOutput(stderr, opts.ProgressHandler, logHandler)
	}()

	// Stream stdout
	go func() {
		defer wg.Done()
		if opts.Stdout != nil {
			if err := opts.Stdout(stdout); err != nil {
				consumeErr = err
				cancel()
			}
			_, _ = io.Copy(io.Discard, stdout)
			return
		}
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			logHandler(scanner.Text())
		}
	}()

	wg.Wait()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if consumeErr != nil {
		return consumeErr
	}
	if waitErr != nil {
		runErr := &RunError{
			Binary:   "ffmpeg",
			Args:     args,
			ExitCode: -1,
			Output:   tail.String(),
			Err:      waitErr,
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			runErr.ExitCode = exitErr.ExitCode()
		}
		return runErr
	}

	e.logger.Debug().Msg("ffmpeg execution completed")
	return nil
}

// streamOutput parses ffmpeg output and calls handlers
func (e *Executor) streamOutput(r io.Reader, progressHandler ProgressFunc, logHandler func(string)) {
	scanner := bufio.NewScanner(r)
	progressData := &Progress{}

	for scanner.Scan() {
		line := scanner.Text()

		// Parse progress lines
		switch {
		case strings.HasPrefix(line, "frame="):
			fmt.Sscanf(line, "frame=%d", &progressData.Frame)
		case strings.HasPrefix(line, "fps="):
			fmt.Sscanf(line, "fps=%f", &progressData.FPS)
		case strings.HasPrefix(line, "bitrate="):
			progressData.Bitrate = valueOf(line)
		case strings.HasPrefix(line, "out_time="):
			progressData.Time = valueOf(line)
		case strings.HasPrefix(line, "speed="):
			progressData.Speed = valueOf(line)
		case strings.HasPrefix(line, "progress="):
			// End of progress block
			if progressHandler != nil && progressData.Frame > 0 {
				progressHandler(progressData)
			}
			progressData = &Progress{}
		default:
			logHandler(line)
		}
	}
}

func valueOf(line string) string {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// tailBuffer keeps the most recent lines written by either output stream.
type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
