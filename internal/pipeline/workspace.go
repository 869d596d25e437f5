package pipeline

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"

	"github.com/kikiluvv/loopifi/pkg/util"
)

// vectorFileName is the vid.stab transform file written next to the source.
const vectorFileName = "transform_vectors.trf"

// Workspace lays out the per-run files around the source video. Everything
// except LoopsDir and the source itself is transient.
type Workspace struct {
	Source     string
	LoopsDir   string
	FramesDir  string
	VectorFile string
	StablePath string
}

// NewWorkspace derives the run layout from the source path
func NewWorkspace(source string) *Workspace {
	dir := filepath.Dir(source)
	return &Workspace{
		Source:     source,
		LoopsDir:   filepath.Join(dir, "Loops"),
		FramesDir:  filepath.Join(dir, "ALL_FRAMES_"+util.Stem(source)),
		VectorFile: filepath.Join(dir, vectorFileName),
		StablePath: filepath.Join(dir, "STBL_"+filepath.Base(source)),
	}
}

// Prepare creates the output and scratch directories
func (w *Workspace) Prepare() error {
	for _, dir := range []string{w.LoopsDir, w.FramesDir} {
		if err := util.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Palette returns the path of the GIF palette for a rendered candidate.
func (w *Workspace) Palette() string {
	return filepath.Join(w.FramesDir, "palette.png")
}

// Output returns the path of the rank-th loop in the given format.
func (w *Workspace) Output(rank int, ext string) string {
	return filepath.Join(w.LoopsDir, fmt.Sprintf("%d.%s", rank, ext))
}

// Cleanup removes every transient artifact. The source and the rendered
// loops are never touched.
func (w *Workspace) Cleanup() error {
	paths := []string{w.FramesDir, w.VectorFile}
	if w.StablePath != w.Source {
		paths = append(paths, w.StablePath)
	}
	return util.CleanupPaths(paths...)
}

// DumpFrame writes a thumbnail of a sampled frame into the frames directory.
func (w *Workspace) DumpFrame(frameIndex int, img image.Image, size uint) error {
	thumb := resize.Thumbnail(size, size, img, resize.Lanczos3)

	path := filepath.Join(w.FramesDir, fmt.Sprintf("frame_%06d.png", frameIndex))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create frame dump: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, thumb); err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", frameIndex, err)
	}
	return nil
}
