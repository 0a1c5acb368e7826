package guard

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/umputun/chat-guard/lib/modcheck"
)

// FrameExtractor turns a video or animated-image byte stream into a bounded set of
// still frames for vision classification. It shells out to ffmpeg/ffprobe for video
// and decodes gifs natively. Extraction failure is not an error to the caller:
// an empty set means "skip media analysis".
type FrameExtractor struct {
	FrameCount int    // number of frames to extract, default 4
	FFMpegBin  string // ffmpeg binary, default "ffmpeg"
	FFProbeBin string // ffprobe binary, default "ffprobe"
}

const defaultFrameCount = 4

// NewFrameExtractor makes a FrameExtractor with defaults applied.
func NewFrameExtractor(frameCount int) *FrameExtractor {
	if frameCount <= 0 {
		frameCount = defaultFrameCount
	}
	return &FrameExtractor{FrameCount: frameCount, FFMpegBin: "ffmpeg", FFProbeBin: "ffprobe"}
}

// Extract returns up to FrameCount jpeg-encoded frames for the given media.
// Never returns an error, an empty result means extraction was impossible.
// All temporary artifacts are removed on every exit path.
func (f *FrameExtractor) Extract(ctx context.Context, kind modcheck.MediaKind, data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}

	switch kind {
	case modcheck.MediaImage:
		return [][]byte{data} // already a single still
	case modcheck.MediaGIF:
		return f.extractGIF(data)
	case modcheck.MediaVideo:
		return f.extractVideo(ctx, data)
	}
	log.Printf("[WARN] unsupported media kind %q, skipping extraction", kind)
	return nil
}

// extractGIF samples every Nth frame of an animated gif. Each paletted frame is
// composited over the previous state so partial-update gifs render correctly.
func (f *FrameExtractor) extractGIF(data []byte) [][]byte {
	img, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		log.Printf("[WARN] can't decode gif: %v", err)
		return nil
	}
	if len(img.Image) == 0 {
		return nil
	}

	step := len(img.Image) / f.FrameCount
	if step < 1 {
		step = 1
	}

	bounds := image.Rect(0, 0, img.Config.Width, img.Config.Height)
	if bounds.Empty() {
		bounds = img.Image[0].Bounds()
	}
	canvas := image.NewRGBA(bounds)

	var frames [][]byte
	for i, frame := range img.Image {
		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		if i%step != 0 || len(frames) >= f.FrameCount {
			continue
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, canvas, nil); err != nil {
			log.Printf("[WARN] can't encode gif frame %d: %v", i, err)
			continue
		}
		frames = append(frames, buf.Bytes())
	}
	return frames
}

// extractVideo samples frames at evenly spaced timestamps across the clip duration.
// If timestamp-based sampling fails it falls back to fixed-interval sampling, wiping
// any partially written frames from the first attempt before starting the second.
func (f *FrameExtractor) extractVideo(ctx context.Context, data []byte) [][]byte {
	dir, err := os.MkdirTemp("", "chat-guard-frames-")
	if err != nil {
		log.Printf("[WARN] can't make temp dir for frames: %v", err)
		return nil
	}
	defer func() {
		if e := os.RemoveAll(dir); e != nil {
			log.Printf("[WARN] can't cleanup frames dir %s: %v", dir, e)
		}
	}()

	src := filepath.Join(dir, "src.bin")
	if err := os.WriteFile(src, data, 0o600); err != nil {
		log.Printf("[WARN] can't write video temp file: %v", err)
		return nil
	}

	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		log.Printf("[WARN] can't make frames output dir: %v", err)
		return nil
	}

	if frames := f.sampleByTimestamps(ctx, src, outDir); len(frames) > 0 {
		return frames
	}

	// fallback to fixed-interval sampling, starting from a clean output dir
	if err := os.RemoveAll(outDir); err != nil {
		log.Printf("[WARN] can't wipe partial frames before fallback: %v", err)
		return nil
	}
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		log.Printf("[WARN] can't recreate frames output dir: %v", err)
		return nil
	}
	return f.sampleByInterval(ctx, src, outDir)
}

func (f *FrameExtractor) sampleByTimestamps(ctx context.Context, src, outDir string) [][]byte {
	duration, err := f.probeDuration(ctx, src)
	if err != nil || duration <= 0 {
		log.Printf("[WARN] can't probe video duration: %v", err)
		return nil
	}

	for i := 0; i < f.FrameCount; i++ {
		// spread grabs across the clip, avoiding the very start and end
		ts := duration * (float64(i) + 0.5) / float64(f.FrameCount)
		out := filepath.Join(outDir, fmt.Sprintf("frame-%03d.jpg", i))
		cmd := exec.CommandContext(ctx, f.FFMpegBin, "-ss", fmt.Sprintf("%.3f", ts),
			"-i", src, "-frames:v", "1", "-q:v", "3", "-y", out)
		if err := cmd.Run(); err != nil {
			log.Printf("[WARN] timestamp frame grab %d failed: %v", i, err)
			return nil // incomplete set, let the caller fall back
		}
	}
	return readFrames(outDir)
}

func (f *FrameExtractor) sampleByInterval(ctx context.Context, src, outDir string) [][]byte {
	duration, _ := f.probeDuration(ctx, src)
	if duration <= 0 {
		duration = float64(f.FrameCount) // assume a second per frame if probing failed
	}
	interval := duration / float64(f.FrameCount)

	cmd := exec.CommandContext(ctx, f.FFMpegBin, "-i", src,
		"-vf", fmt.Sprintf("fps=1/%.3f", interval),
		"-frames:v", strconv.Itoa(f.FrameCount), "-q:v", "3", "-y",
		filepath.Join(outDir, "frame-%03d.jpg"))
	if err := cmd.Run(); err != nil {
		log.Printf("[WARN] interval frame sampling failed: %v", err)
		return nil
	}
	return readFrames(outDir)
}

func (f *FrameExtractor) probeDuration(ctx context.Context, src string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.FFProbeBin, "-v", "error",
		"-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", src)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("can't parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return duration, nil
}

func readFrames(dir string) [][]byte {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("[WARN] can't read frames dir: %v", err)
		return nil
	}

	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jpg") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var frames [][]byte
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name)) //nolint:gosec // path is our own temp dir
		if err != nil {
			log.Printf("[WARN] can't read frame %s: %v", name, err)
			continue
		}
		frames = append(frames, data)
	}
	return frames
}
