package gifenc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	"sync"
	"time"

	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
)

// Encoder assembles an ordered list of still-image buffers into one animated
// GIF. Decoding and quantizing are the expensive part, so they run on a
// small worker pool; assembly writes results back by index so output order
// is exactly input order, never reordered or dropped.
type Encoder struct {
	workers    int
	paletteURL string
	logger     *zap.Logger
}

func NewEncoder(workers int, paletteURL string, logger *zap.Logger) *Encoder {
	if workers < 1 {
		workers = 1
	}
	return &Encoder{workers: workers, paletteURL: paletteURL, logger: logger}
}

type frameJob struct {
	idx  int
	data []byte
}

func (e *Encoder) Encode(ctx context.Context, images [][]byte, frameDelay time.Duration) ([]byte, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no frames to encode")
	}

	pal := sharedPalette(e.paletteURL, e.logger)

	// All frames share one canvas sized from the first frame; stragglers
	// with a different resolution are scaled to fit.
	first, err := decodeImage(images[0])
	if err != nil {
		return nil, fmt.Errorf("decode frame 1: %w", err)
	}
	bounds := first.Bounds()

	jobs := make(chan frameJob)
	paletted := make([]*image.Paletted, len(images))
	errs := make([]error, len(images))

	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				src, err := decodeImage(job.data)
				if err != nil {
					errs[job.idx] = fmt.Errorf("decode frame %d: %w", job.idx+1, err)
					continue
				}
				paletted[job.idx] = quantize(src, bounds, pal)
			}
		}()
	}

	paletted[0] = quantize(first, bounds, pal)
feed:
	for i := 1; i < len(images); i++ {
		select {
		case jobs <- frameJob{idx: i, data: images[i]}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	delay := int(frameDelay / (10 * time.Millisecond)) // GIF delays are 1/100s
	out := &gif.GIF{
		Image: paletted,
		Delay: make([]int, len(paletted)),
	}
	for i := range out.Delay {
		out.Delay[i] = delay
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, out); err != nil {
		return nil, fmt.Errorf("encode gif: %w", err)
	}

	e.logger.Info("gif encoded",
		zap.Int("frames", len(paletted)),
		zap.Duration("frame_delay", frameDelay),
		zap.Int("bytes", buf.Len()),
	)
	return buf.Bytes(), nil
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

func quantize(src image.Image, bounds image.Rectangle, pal color.Palette) *image.Paletted {
	if !src.Bounds().Eq(bounds) {
		scaled := image.NewRGBA(bounds)
		xdraw.ApproxBiLinear.Scale(scaled, bounds, src, src.Bounds(), xdraw.Over, nil)
		src = scaled
	}
	dst := image.NewPaletted(bounds, pal)
	draw.FloydSteinberg.Draw(dst, bounds, src, image.Point{})
	return dst
}
