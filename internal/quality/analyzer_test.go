package quality

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatPNG encodes a w*h image of constant gray intensity.
func flatPNG(t *testing.T, w, h int, intensity uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: intensity})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// checkerboardPNG alternates two intensities per pixel, giving maximal
// high-frequency content at the same mean as flat (a+b)/2.
func checkerboardPNG(t *testing.T, w, h int, a, b uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := a
			if (x+y)%2 == 1 {
				v = b
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAnalyzeFlatImage(t *testing.T) {
	a := NewAnalyzer(120, 55)
	res, err := a.Analyze(flatPNG(t, 32, 32, 200))
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.BlurScore)
	assert.InDelta(t, 200.0, res.LightScore, 0.001)
	// Sharp enough? No: zero variance is below any sane blur threshold.
	assert.False(t, res.PoseOK)
}

func TestAnalyzeCheckerboardSharperThanFlatAtEqualMean(t *testing.T) {
	a := NewAnalyzer(120, 55)

	flat, err := a.Analyze(flatPNG(t, 32, 32, 55))
	require.NoError(t, err)
	board, err := a.Analyze(checkerboardPNG(t, 32, 32, 0, 110))
	require.NoError(t, err)

	assert.InDelta(t, flat.LightScore, board.LightScore, 1.0)
	assert.Equal(t, 0.0, flat.BlurScore)
	assert.Greater(t, board.BlurScore, 1000.0)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	a := NewAnalyzer(120, 55)
	data := checkerboardPNG(t, 24, 24, 30, 220)

	first, err := a.Analyze(data)
	require.NoError(t, err)
	second, err := a.Analyze(data)
	require.NoError(t, err)

	assert.Equal(t, first.BlurScore, second.BlurScore)
	assert.Equal(t, first.LightScore, second.LightScore)
	assert.Equal(t, first.PoseOK, second.PoseOK)
	assert.Equal(t, first.Landmarks, second.Landmarks)
}

func TestAnalyzePoseVerdictFollowsThresholds(t *testing.T) {
	data := checkerboardPNG(t, 32, 32, 0, 255)

	permissive := NewAnalyzer(1, 1)
	res, err := permissive.Analyze(data)
	require.NoError(t, err)
	assert.True(t, res.PoseOK)

	// Raise the light bar past the checkerboard's ~127 mean.
	strict := NewAnalyzer(1, 200)
	res, err = strict.Analyze(data)
	require.NoError(t, err)
	assert.False(t, res.PoseOK)
}

func TestAnalyzeLandmarksAreProportionalEstimates(t *testing.T) {
	a := NewAnalyzer(120, 55)
	res, err := a.Analyze(flatPNG(t, 100, 200, 128))
	require.NoError(t, err)

	lm := res.Landmarks
	assert.True(t, lm.Estimated)
	assert.Equal(t, 30.0, lm.LeftEye.X)
	assert.Equal(t, 70.0, lm.RightEye.X)
	assert.Equal(t, lm.LeftEye.Y, lm.RightEye.Y)
	assert.Equal(t, 50.0, lm.Nose.X)
	assert.Equal(t, 110.0, lm.Nose.Y)
	assert.Equal(t, 150.0, lm.MouthLeft.Y)
	assert.Equal(t, lm.MouthLeft.Y, lm.MouthRight.Y)
}

func TestAnalyzeMalformedBytes(t *testing.T) {
	a := NewAnalyzer(120, 55)
	_, err := a.Analyze([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestAnalyzeTinyImageHasZeroBlur(t *testing.T) {
	// No interior pixels to take a Laplacian over.
	a := NewAnalyzer(120, 55)
	res, err := a.Analyze(flatPNG(t, 2, 2, 90))
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.BlurScore)
	assert.InDelta(t, 90.0, res.LightScore, 0.001)
}
