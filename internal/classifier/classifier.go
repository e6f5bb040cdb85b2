package classifier

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
)

// ErrDecode 图片无法解码
var ErrDecode = errors.New("cannot decode image")

// Classifier 图片分类器，实现需并发安全
type Classifier interface {
	Predict(ctx context.Context, img image.Image) ([]Prediction, error)
	Labels() []string
	Close() error
}

// PredictReader 解码后分类
func PredictReader(ctx context.Context, c Classifier, r io.Reader) ([]Prediction, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return c.Predict(ctx, img)
}
