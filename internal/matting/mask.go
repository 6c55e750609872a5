package matting

import (
	"image"
	"math"
)

// saliencyMask scores every pixel by its color distance from the average
// border color. Pixels far from the border color are likely foreground.
func saliencyMask(img image.Image) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	// Average color of the 1px frame around the image.
	var sr, sg, sb, n uint64
	sample := func(x, y int) {
		cr, cg, cb, _ := img.At(x, y).RGBA()
		sr += uint64(cr >> 8)
		sg += uint64(cg >> 8)
		sb += uint64(cb >> 8)
		n++
	}
	for x := b.Min.X; x < b.Max.X; x++ {
		sample(x, b.Min.Y)
		sample(x, b.Max.Y-1)
	}
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		sample(b.Min.X, y)
		sample(b.Max.X-1, y)
	}
	if n == 0 {
		return image.NewGray(b)
	}
	br := float64(sr / n)
	bg := float64(sg / n)
	bb := float64(sb / n)

	mask := image.NewGray(b)
	// Max possible distance in RGB space, used to normalize to [0,255].
	const maxDist = 441.673 // sqrt(3 * 255^2)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cr, cg, cb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			dr := float64(cr>>8) - br
			dg := float64(cg>>8) - bg
			db := float64(cb>>8) - bb
			d := math.Sqrt(dr*dr + dg*dg + db*db)
			v := d / maxDist * 3 // steepen so moderate contrast saturates
			if v > 1 {
				v = 1
			}
			mask.Pix[y*mask.Stride+x] = uint8(v * 255)
		}
	}
	return mask
}

// boxBlur smooths the mask with a square kernel of the given radius,
// softening the matte edge.
func boxBlur(src *image.Gray, radius int) *image.Gray {
	if radius <= 0 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum, cnt int
			for dy := -radius; dy <= radius; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -radius; dx <= radius; dx++ {
					xx := x + dx
					if xx < 0 || xx >= w {
						continue
					}
					sum += int(src.Pix[yy*src.Stride+xx])
					cnt++
				}
			}
			dst.Pix[y*dst.Stride+x] = uint8(sum / cnt)
		}
	}
	return dst
}

// threshold hardens the matte into a binary mask in place.
func threshold(m *image.Gray, cut uint8) {
	for i, v := range m.Pix {
		if v >= cut {
			m.Pix[i] = 255
		} else {
			m.Pix[i] = 0
		}
	}
}
