package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/kikiluvv/loopifi/pkg/util"
)

// DefaultDecodeWidth is the frame width handed to the hasher. Perceptual
// hashes downscale far below this, so decoding at full size is wasted work.
const DefaultDecodeWidth = 320

// DecodeRequest selects the frames to decode.
type DecodeRequest struct {
	Path string
	// Trim restricts decoding to [Start, Start+Length). Without it the
	// whole stream is decoded.
	Trim   bool
	Start  float64
	Length float64
}

// FrameDecoder streams decoded frames out of ffmpeg as rgb24 rawvideo.
type FrameDecoder struct {
	exec  *Executor
	width int
}

// NewFrameDecoder creates a decoder producing frames width pixels wide.
// A width of zero decodes at the source resolution.
func NewFrameDecoder(exec *Executor, width int) *FrameDecoder {
	return &FrameDecoder{exec: exec, width: width}
}

// ReadFrames decodes every frame selected by req in presentation order and
// calls visit for each. Decoding stops at the first visit error.
func (d *FrameDecoder) ReadFrames(ctx context.Context, req DecodeRequest, visit func(image.Image) error) error {
	info, err := d.exec.ProbeVideo(ctx, req.Path)
	if err != nil {
		return err
	}

	w, h := frameSize(info.Width, info.Height, d.width)
	if w <= 0 || h <= 0 {
		return &ProbeError{Path: req.Path, Field: "dimensions", Err: fmt.Errorf("invalid size %dx%d", info.Width, info.Height)}
	}

	d.exec.logger.Debug().
		Str("path", req.Path).
		Int("width", w).
		Int("height", h).
		Msg("decoding frames")

	return d.exec.Run(ctx, RunOptions{
		Args: DecodeArgs(req, w, h),
		Stdout: func(r io.Reader) error {
			return readRawFrames(r, w, h, visit)
		},
	})
}

// DecodeArgs returns the ffmpeg arguments that write rgb24 frames of w x h
// to stdout.
func DecodeArgs(req DecodeRequest, w, h int) []string {
	var args []string
	if req.Trim {
		args = append(args,
			"-ss", util.FormatSeconds(req.Start),
			"-t", util.FormatSeconds(req.Length),
		)
	}
	return append(args,
		"-i", req.Path,
		"-an",
		"-vf", NewFilterBuilder().Scale(w, h).Build(),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)
}

// frameSize scales srcW x srcH down to width, keeping the height even.
func frameSize(srcW, srcH, width int) (int, int) {
	if width <= 0 || width >= srcW {
		return srcW, srcH
	}
	if srcW <= 0 {
		return 0, 0
	}
	h := srcH * width / srcW
	if h%2 == 1 {
		h++
	}
	if h == 0 {
		h = 2
	}
	return width, h
}

func readRawFrames(r io.Reader, w, h int, visit func(image.Image) error) error {
	buf := make([]byte, w*h*3)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}
		if err := visit(rgbToImage(buf, w, h)); err != nil {
			return err
		}
	}
}

func rgbToImage(buf []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < len(buf); i, j = i+3, j+4 {
		img.Pix[j] = buf[i]
		img.Pix[j+1] = buf[i+1]
		img.Pix[j+2] = buf[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}
