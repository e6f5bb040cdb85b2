package classifier

import (
	"image"

	"golang.org/x/image/draw"
)

// InputSize 模型输入边长
const InputSize = 32

// Preprocess 最近邻缩放到 width×height，输出 HWC 顺序的 RGB 浮点，范围 [0,1]
func Preprocess(src image.Image, width, height int) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := make([]float32, 0, width*height*3)
	for i := 0; i < len(dst.Pix); i += 4 {
		out = append(out,
			float32(dst.Pix[i])/255,
			float32(dst.Pix[i+1])/255,
			float32(dst.Pix[i+2])/255,
		)
	}
	return out
}
