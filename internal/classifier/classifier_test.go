package classifier

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopK(t *testing.T) {
	scores := []float32{0.01, 0.02, 0.5, 0.3, 0.005, 0.1, 0.03, 0.015, 0.01, 0.01}

	preds, err := TopK(scores, CIFAR10Labels, TopN)
	require.NoError(t, err)
	require.Len(t, preds, 4)

	assert.Equal(t, []Prediction{
		{Class: "bird", Probability: 50},
		{Class: "cat", Probability: 30},
		{Class: "dog", Probability: 10},
		{Class: "frog", Probability: 3},
	}, preds)
}

func TestTopK_RoundsAndOrders(t *testing.T) {
	scores := []float32{0.123456, 0.654321, 0.2, 0.022223}
	labels := []string{"a", "b", "c", "d"}

	preds, err := TopK(scores, labels, 4)
	require.NoError(t, err)

	assert.Equal(t, "b", preds[0].Class)
	assert.InDelta(t, 65.43, preds[0].Probability, 1e-9)
	assert.InDelta(t, 12.35, preds[2].Probability, 1e-9)
	assert.InDelta(t, 2.22, preds[3].Probability, 1e-9)
	for i := 1; i < len(preds); i++ {
		assert.GreaterOrEqual(t, preds[i-1].Probability, preds[i].Probability)
	}
}

func TestTopK_TiesKeepModelOrder(t *testing.T) {
	preds, err := TopK([]float32{0.25, 0.25, 0.25, 0.25}, []string{"a", "b", "c", "d"}, 4)
	require.NoError(t, err)
	assert.Equal(t, "a", preds[0].Class)
	assert.Equal(t, "d", preds[3].Class)
}

func TestTopK_Errors(t *testing.T) {
	_, err := TopK([]float32{0.1, 0.9}, []string{"a"}, 1)
	assert.Error(t, err)

	_, err = TopK([]float32{0.1, 0.9}, []string{"a", "b"}, 4)
	assert.Error(t, err)
}

func TestPreprocess(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			src.Set(x, y, color.RGBA{R: 255, G: 0, B: 51, A: 255})
		}
	}

	pixels := Preprocess(src, InputSize, InputSize)
	require.Len(t, pixels, InputSize*InputSize*3)

	assert.InDelta(t, 1.0, pixels[0], 1e-6)
	assert.InDelta(t, 0.0, pixels[1], 1e-6)
	assert.InDelta(t, 0.2, pixels[2], 1e-6)
	for _, v := range pixels {
		assert.True(t, v >= 0 && v <= 1)
	}
}

func TestLoadLabels(t *testing.T) {
	labels, err := LoadLabels("")
	require.NoError(t, err)
	assert.Equal(t, CIFAR10Labels, labels)

	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("cat\n\n dog \n"), 0644))
	labels, err = LoadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog"}, labels)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err = LoadLabels(empty)
	assert.Error(t, err)
}

type constClassifier struct {
	got image.Rectangle
}

func (c *constClassifier) Predict(_ context.Context, img image.Image) ([]Prediction, error) {
	c.got = img.Bounds()
	return []Prediction{{Class: "cat", Probability: 100}}, nil
}

func (c *constClassifier) Labels() []string { return CIFAR10Labels }

func (c *constClassifier) Close() error { return nil }

func TestPredictReader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 5, 3))))

	c := &constClassifier{}
	preds, err := PredictReader(context.Background(), c, &buf)
	require.NoError(t, err)
	assert.Equal(t, "cat", preds[0].Class)
	assert.Equal(t, 5, c.got.Dx())

	_, err = PredictReader(context.Background(), c, strings.NewReader("not an image"))
	assert.ErrorIs(t, err, ErrDecode)
}
