package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterBuilder helps construct complex ffmpeg filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// Scale adds a scale filter
func (fb *FilterBuilder) Scale(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		// Return self without adding filter - allows chaining to continue
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d", width, height))
	return fb
}

// ScaleWidth scales to width keeping the aspect ratio with an even height.
func (fb *FilterBuilder) ScaleWidth(width int, lanczos bool) *FilterBuilder {
	if width <= 0 {
		return fb
	}
	f := fmt.Sprintf("scale=%d:-2", width)
	if lanczos {
		f += ":flags=lanczos"
	}
	fb.filters = append(fb.filters, f)
	return fb
}

// FPS adds an fps filter
func (fb *FilterBuilder) FPS(fps float64) *FilterBuilder {
	if fps <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, "fps="+strconv.FormatFloat(fps, 'f', -1, 64))
	return fb
}

// PaletteGen adds a palettegen filter
func (fb *FilterBuilder) PaletteGen() *FilterBuilder {
	fb.filters = append(fb.filters, "palettegen")
	return fb
}

// VidStabDetect adds the motion analysis pass of vid.stab, writing vectors to result.
func (fb *FilterBuilder) VidStabDetect(stepsize, shakiness, accuracy int, result string) *FilterBuilder {
	fb.filters = append(fb.filters, fmt.Sprintf(
		"vidstabdetect=stepsize=%d:shakiness=%d:accuracy=%d:result=%s",
		stepsize, shakiness, accuracy, result))
	return fb
}

// VidStabTransform adds the vid.stab correction pass reading vectors from input.
func (fb *FilterBuilder) VidStabTransform(input string, zoom, smoothing int) *FilterBuilder {
	fb.filters = append(fb.filters, fmt.Sprintf(
		"vidstabtransform=input=%s:zoom=%d:smoothing=%d", input, zoom, smoothing))
	return fb
}

// Unsharp adds an unsharp filter with raw parameters (e.g. "5:5:0.8:3:3:0.4")
func (fb *FilterBuilder) Unsharp(params string) *FilterBuilder {
	if params == "" {
		return fb
	}
	fb.filters = append(fb.filters, "unsharp="+params)
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}
