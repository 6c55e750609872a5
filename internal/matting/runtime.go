// Package matting is the built-in CPU reference implementation of the
// inference runtime: a border-contrast saliency matte. It stands in for the
// real segmentation engine behind the same interface, which keeps the
// lifecycle and queue semantics honest without shipping model weights.
package matting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"

	"rembgd/pkg/types"
)

// warmupDelay approximates the cost of weight upload/compilation so that
// lifecycle state transitions stay observable in tests and demos.
const warmupDelay = 50 * time.Millisecond

// Runtime holds at most one loaded model. The manager serializes Load,
// Remove and Unload, so no internal locking is needed.
type Runtime struct {
	mdl     *types.Model
	backend types.Backend
	log     zerolog.Logger
}

// New constructs an empty runtime.
func New(logger *zerolog.Logger) *Runtime {
	r := &Runtime{}
	if logger != nil {
		r.log = *logger
	} else {
		r.log = zerolog.Nop()
	}
	return r
}

// Load validates the model's weights (when it has any) and installs it as
// the active model, replacing the previous one.
func (r *Runtime) Load(ctx context.Context, mdl types.Model, backend types.Backend) error {
	if mdl.InputSide <= 0 {
		return fmt.Errorf("model %s: invalid input side %d", mdl.ID, mdl.InputSide)
	}
	if mdl.WeightsPath != "" {
		fi, err := os.Stat(mdl.WeightsPath)
		if err != nil {
			return fmt.Errorf("open weights: %w", err)
		}
		if fi.IsDir() || fi.Size() == 0 {
			return fmt.Errorf("open weights: %s is not a weights file", mdl.WeightsPath)
		}
	}
	select {
	case <-time.After(warmupDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	r.mdl = &mdl
	r.backend = backend
	r.log.Debug().Str("model", mdl.ID).Str("backend", string(backend)).Msg("model loaded")
	return nil
}

// Remove decodes the payload, estimates a foreground matte at the model's
// input resolution, scales the matte back up and returns the source image
// re-encoded as PNG with the matte applied to the alpha channel.
func (r *Runtime) Remove(ctx context.Context, payload []byte, mime string) ([]byte, error) {
	if r.mdl == nil {
		return nil, errors.New("no model loaded")
	}
	if mime != "" && !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("unsupported media type %q", mime)
	}
	src, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	side := uint(r.mdl.InputSide)
	small := resize.Resize(side, side, src, resize.Bilinear)
	mask := saliencyMask(small)
	mask = boxBlur(mask, 2)
	if r.mdl.Output == types.OutputAlphaMask {
		threshold(mask, 128)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := src.Bounds()
	full := image.NewGray(b)
	xdraw.ApproxBiLinear.Scale(full, b, mask, mask.Bounds(), xdraw.Over, nil)

	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			cr, cg, cb, _ := src.At(x, y).RGBA()
			i := out.PixOffset(x, y)
			out.Pix[i+0] = uint8(cr >> 8)
			out.Pix[i+1] = uint8(cg >> 8)
			out.Pix[i+2] = uint8(cb >> 8)
			out.Pix[i+3] = full.GrayAt(x, y).Y
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Unload drops the active model. A later Load succeeds.
func (r *Runtime) Unload() error {
	r.mdl = nil
	r.backend = ""
	return nil
}
