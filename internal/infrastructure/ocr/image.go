package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"
	"slices"
)

const (
	minImageDimension = 100
	minImagePixels    = 10000
	minPixelStdDev    = 10.0
	// maxStatSamples bounds the pixels read for the uniformity check.
	maxStatSamples = 250_000
)

// ErrUnsuitableImage marks images too small or too uniform to hold text.
var ErrUnsuitableImage = errors.New("image unsuitable for OCR")

// CheckImage rejects images below 100x100 pixels and blank images whose gray
// levels barely vary. Formats the standard decoders do not know are accepted
// and left to the OCR engine.
func CheckImage(data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil
		}
		return fmt.Errorf("decode image: %w", err)
	}
	return checkDecoded(img)
}

func checkDecoded(img image.Image) error {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < minImageDimension || h < minImageDimension || w*h < minImagePixels {
		return fmt.Errorf("%w: %dx%d pixels", ErrUnsuitableImage, w, h)
	}

	step := 1
	for (w/step)*(h/step) > maxStatSamples {
		step++
	}
	var sum, sumSq float64
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			v := float64(grayAt(img, x, y))
			sum += v
			sumSq += v * v
			n++
		}
	}
	mean := sum / float64(n)
	if std := math.Sqrt(math.Max(sumSq/float64(n)-mean*mean, 0)); std <= minPixelStdDev {
		return fmt.Errorf("%w: blank content (std %.1f)", ErrUnsuitableImage, std)
	}
	return nil
}

// Preprocess converts an image to grayscale, binarizes it with Otsu's
// threshold, dilates it and removes speckle with a 3x3 median filter. The
// result is PNG encoded. Undecodable formats are returned unchanged.
func Preprocess(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return data, nil
		}
		return nil, fmt.Errorf("decode image: %w", err)
	}

	gray := toGray(img)
	binarize(gray, otsuThreshold(gray))
	gray = filter3x3(gray, maxOf)
	gray = filter3x3(gray, median)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// MeanConfidence averages word confidences, skipping the non-positive values
// the engine reports for non-word boxes.
func MeanConfidence(confidences []float64) float64 {
	var sum float64
	n := 0
	for _, c := range confidences {
		if c > 0 {
			sum += c
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func grayAt(img image.Image, x, y int) uint8 {
	if g, ok := img.(*image.Gray); ok {
		return g.GrayAt(x, y).Y
	}
	r, g, b, _ := img.At(x, y).RGBA()
	// ITU-R 601 luma on 16-bit channels.
	return uint8((19595*r + 38470*g + 7471*b + 1<<15) >> 24)
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = grayAt(img, b.Min.X+x, b.Min.Y+y)
		}
	}
	return out
}

func otsuThreshold(img *image.Gray) uint8 {
	var hist [256]int
	for _, v := range img.Pix {
		hist[v]++
	}
	total := len(img.Pix)
	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i * c)
	}

	var sumBg, bestVar float64
	weightBg := 0
	best := uint8(0)
	for t := 0; t < 256; t++ {
		weightBg += hist[t]
		if weightBg == 0 {
			continue
		}
		weightFg := total - weightBg
		if weightFg == 0 {
			break
		}
		sumBg += float64(t * hist[t])
		meanBg := sumBg / float64(weightBg)
		meanFg := (sumAll - sumBg) / float64(weightFg)
		between := float64(weightBg) * float64(weightFg) * (meanBg - meanFg) * (meanBg - meanFg)
		if between > bestVar {
			bestVar = between
			best = uint8(t)
		}
	}
	return best
}

func binarize(img *image.Gray, threshold uint8) {
	for i, v := range img.Pix {
		if v > threshold {
			img.Pix[i] = 255
		} else {
			img.Pix[i] = 0
		}
	}
}

// filter3x3 applies fn to each pixel's 3x3 neighborhood, clamped at borders.
func filter3x3(img *image.Gray, fn func([]uint8) uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	window := make([]uint8, 0, 9)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			window = window[:0]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					px := clamp(x+dx, b.Min.X, b.Max.X-1)
					py := clamp(y+dy, b.Min.Y, b.Max.Y-1)
					window = append(window, img.Pix[img.PixOffset(px, py)])
				}
			}
			out.Pix[out.PixOffset(x, y)] = fn(window)
		}
	}
	return out
}

func maxOf(window []uint8) uint8 {
	m := window[0]
	for _, v := range window[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func median(window []uint8) uint8 {
	slices.Sort(window)
	return window[len(window)/2]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
