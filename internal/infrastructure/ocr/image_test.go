package ocr

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func blankImage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 250
	}
	return img
}

// textLikeImage draws dark horizontal strokes on a light background.
func textLikeImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 240, G: 240, B: 235, A: 255}
			if y%12 < 6 && x%40 < 30 {
				c = color.RGBA{R: 20, G: 20, B: 30, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCheckImage(t *testing.T) {
	cases := map[string]struct {
		data    []byte
		wantErr bool
	}{
		"text page":      {data: encodePNG(t, textLikeImage(300, 200)), wantErr: false},
		"blank page":     {data: encodePNG(t, blankImage(300, 200)), wantErr: true},
		"thumbnail":      {data: encodePNG(t, textLikeImage(80, 400)), wantErr: true},
		"unknown format": {data: []byte("II*\x00tiff bytes"), wantErr: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := CheckImage(tc.data)
			if tc.wantErr && !errors.Is(err, ErrUnsuitableImage) {
				t.Fatalf("expected ErrUnsuitableImage, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestPreprocessBinarizesToGrayPNG(t *testing.T) {
	out, err := Preprocess(encodePNG(t, textLikeImage(120, 120)))
	if err != nil {
		t.Fatalf("Preprocess() error = %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("expected grayscale output, got %T", img)
	}
	seen := map[uint8]bool{}
	for _, v := range gray.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("expected binary pixels, found %d", v)
		}
		seen[v] = true
	}
	if !seen[0] || !seen[255] {
		t.Fatalf("expected both ink and paper to survive, got %v", seen)
	}
}

func TestPreprocessPassesUnknownFormatsThrough(t *testing.T) {
	raw := []byte("II*\x00tiff bytes")
	out, err := Preprocess(raw)
	if err != nil || !bytes.Equal(out, raw) {
		t.Fatalf("Preprocess() = %q, %v", out, err)
	}
}

func TestOtsuThresholdSplitsBimodalHistogram(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range img.Pix {
		if i%2 == 0 {
			img.Pix[i] = 30
		} else {
			img.Pix[i] = 220
		}
	}
	if got := otsuThreshold(img); got < 30 || got >= 220 {
		t.Fatalf("threshold %d does not separate 30 from 220", got)
	}
}

func TestMeanConfidence(t *testing.T) {
	if got := MeanConfidence([]float64{90, -1, 0, 70}); got != 80 {
		t.Fatalf("MeanConfidence() = %v, want 80", got)
	}
	if got := MeanConfidence(nil); got != 0 {
		t.Fatalf("MeanConfidence(nil) = %v, want 0", got)
	}
}
