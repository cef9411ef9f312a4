package gifenc

import (
	"bufio"
	"fmt"
	"image/color"
	"image/color/palette"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// The encoder palette is process-wide state with a lazy-init, no-teardown
// lifecycle: the first caller's fetch is shared with all waiters and the
// result is never re-fetched. A fetch failure degrades to the built-in
// palette instead of failing the encode.
var paletteCache struct {
	once sync.Once
	pal  color.Palette
}

func sharedPalette(url string, logger *zap.Logger) color.Palette {
	paletteCache.once.Do(func() {
		paletteCache.pal = loadPalette(url, logger)
	})
	return paletteCache.pal
}

func loadPalette(url string, logger *zap.Logger) color.Palette {
	if url == "" {
		return palette.Plan9
	}
	pal, err := fetchPalette(url)
	if err != nil {
		logger.Warn("palette fetch failed, using built-in palette",
			zap.String("url", url),
			zap.Error(err),
		)
		return palette.Plan9
	}
	logger.Info("remote palette loaded", zap.String("url", url), zap.Int("colors", len(pal)))
	return pal
}

// fetchPalette expects one RRGGBB hex color per line, up to 256 entries.
func fetchPalette(url string) (color.Palette, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var pal color.Palette
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "#"))
		if line == "" {
			continue
		}
		v, err := strconv.ParseUint(line, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("parse color %q: %w", line, err)
		}
		pal = append(pal, color.RGBA{
			R: uint8(v >> 16),
			G: uint8(v >> 8),
			B: uint8(v),
			A: 0xff,
		})
		if len(pal) == 256 {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(pal) == 0 {
		return nil, fmt.Errorf("palette resource is empty")
	}
	return pal, nil
}
