// Package quality scores facial-scan images. It is pure computation over a
// byte buffer; all I/O belongs to the callers.
package quality

import (
	"bytes"
	"image"
	"image/color"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/pkg/errors"

	"scan-service/internal/models"
)

// Analyzer computes illumination and sharpness scores for an image buffer.
type Analyzer struct {
	blurThreshold  float64
	lightThreshold float64
}

// NewAnalyzer creates an Analyzer with the given acceptance thresholds.
func NewAnalyzer(blurThreshold, lightThreshold float64) *Analyzer {
	return &Analyzer{
		blurThreshold:  blurThreshold,
		lightThreshold: lightThreshold,
	}
}

// Thresholds returns the configured blur and light thresholds.
func (a *Analyzer) Thresholds() (blur, light float64) {
	return a.blurThreshold, a.lightThreshold
}

// Result holds the quality-analysis outputs for one image.
type Result struct {
	// BlurScore is the population variance of the discrete Laplacian over the
	// image's interior pixels. Higher means sharper.
	BlurScore float64
	// LightScore is the mean grayscale intensity (0..255).
	LightScore float64
	// PoseOK is a capture-acceptability heuristic derived from the two scores
	// above. It is not a facial-orientation measurement.
	PoseOK bool
	// Landmarks are placed at fixed proportional offsets of the frame and
	// carry Estimated=true; they have no geometric meaning.
	Landmarks models.LandmarkSet
}

// Analyze decodes the buffer (png, jpeg or webp) and scores it. Malformed
// buffers return the decode error.
func (a *Analyzer) Analyze(data []byte) (*Result, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}

	gray, w, h := grayscale(img)
	blur := laplacianVariance(gray, w, h)
	light := mean(gray)

	return &Result{
		BlurScore:  blur,
		LightScore: light,
		PoseOK:     blur >= a.blurThreshold && light >= a.lightThreshold,
		Landmarks:  estimateLandmarks(w, h),
	}, nil
}

// grayscale flattens the image into row-major luma samples.
func grayscale(img image.Image) ([]float64, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, 0, w*h)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			out = append(out, float64(g.Y))
		}
	}
	return out, w, h
}

func mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}

// laplacianVariance measures high-frequency content with the 4-neighbor
// discrete Laplacian, skipping a 1-pixel border. A flat image scores 0.
func laplacianVariance(gray []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	var sum, sumSq float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			l := -4*gray[i] + gray[i-1] + gray[i+1] + gray[i-w] + gray[i+w]
			sum += l
			sumSq += l * l
			n++
		}
	}
	m := sum / float64(n)
	return sumSq/float64(n) - m*m
}

// estimateLandmarks places the five named points at fixed proportions of the
// frame. Real landmark detection is a separate concern; these exist so review
// clients have something to anchor overlays on, and are flagged as estimates.
func estimateLandmarks(w, h int) models.LandmarkSet {
	fw, fh := float64(w), float64(h)
	return models.LandmarkSet{
		LeftEye:    models.Landmark{X: fw * 0.30, Y: fh * 0.35},
		RightEye:   models.Landmark{X: fw * 0.70, Y: fh * 0.35},
		Nose:       models.Landmark{X: fw * 0.50, Y: fh * 0.55},
		MouthLeft:  models.Landmark{X: fw * 0.35, Y: fh * 0.75},
		MouthRight: models.Landmark{X: fw * 0.65, Y: fh * 0.75},
		Estimated:  true,
	}
}
