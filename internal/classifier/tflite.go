package classifier

import (
	"context"
	"fmt"
	"image"
	"log"
	"os"
	"sync"

	"github.com/tphakala/go-tflite"
)

// TFLiteClassifier TensorFlow Lite 模型封装
type TFLiteClassifier struct {
	mu          sync.Mutex
	model       *tflite.Model
	interpreter *tflite.Interpreter
	labels      []string
	width       int
	height      int
}

// NewTFLiteClassifier 加载模型并分配张量
func NewTFLiteClassifier(modelPath string, labels []string, threads int) (*TFLiteClassifier, error) {
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", modelPath, err)
	}

	model := tflite.NewModel(data)
	if model == nil {
		return nil, fmt.Errorf("cannot load model from %s", modelPath)
	}

	options := tflite.NewInterpreterOptions()
	defer options.Delete()
	if threads > 0 {
		options.SetNumThread(threads)
	}
	options.SetErrorReporter(func(msg string, _ interface{}) {
		log.Printf("[Classifier] tflite: %s", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, fmt.Errorf("cannot create interpreter")
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, fmt.Errorf("tensor allocation failed: %v", status)
	}

	c := &TFLiteClassifier{
		model:       model,
		interpreter: interpreter,
		labels:      labels,
		width:       InputSize,
		height:      InputSize,
	}

	// 输入形状为 [1, H, W, 3]
	if input := interpreter.GetInputTensor(0); input != nil && input.NumDims() == 4 {
		c.height = input.Dim(1)
		c.width = input.Dim(2)
	}

	output := interpreter.GetOutputTensor(0)
	if output == nil {
		c.Close()
		return nil, fmt.Errorf("cannot get output tensor")
	}
	if n := output.Dim(output.NumDims() - 1); n != len(labels) {
		c.Close()
		return nil, fmt.Errorf("model has %d outputs but %d labels were loaded", n, len(labels))
	}

	log.Printf("[Classifier] Model loaded: %s (input %dx%d, %d classes)", modelPath, c.width, c.height, len(labels))
	return c, nil
}

// Predict 分类一张图片，返回前 TopN 个类别
func (c *TFLiteClassifier) Predict(ctx context.Context, img image.Image) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pixels := Preprocess(img, c.width, c.height)

	c.mu.Lock()
	defer c.mu.Unlock()

	input := c.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}
	copy(input.Float32s(), pixels)

	if status := c.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	output := c.interpreter.GetOutputTensor(0)
	scores := make([]float32, output.Dim(output.NumDims()-1))
	copy(scores, output.Float32s())

	return TopK(scores, c.labels, TopN)
}

// Labels 返回类别列表
func (c *TFLiteClassifier) Labels() []string {
	return c.labels
}

// Close 释放解释器与模型
func (c *TFLiteClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interpreter != nil {
		c.interpreter.Delete()
		c.interpreter = nil
	}
	if c.model != nil {
		c.model.Delete()
		c.model = nil
	}
	return nil
}
