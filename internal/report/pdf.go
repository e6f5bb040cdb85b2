package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"log"
	"strconv"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/draw"

	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/storage"
)

// ErrNoData 没有可导出的记录
var ErrNoData = errors.New("no data available")

const (
	Filename    = "prediction_history.pdf"
	Title       = "Prediction History"
	thumbSize   = 50
	rowSpacing  = 60
	bottomLimit = 100
)

// 表头列位置
var columns = []struct {
	x     float64
	title string
}{
	{20, "S.N"},
	{95, "Image"},
	{225, "Class A"},
	{325, "Probability A"},
	{425, "Class B"},
	{525, "Probability B"},
	{625, "Class C"},
	{725, "Probability C"},
}

// Exporter 生成预测历史 PDF
type Exporter struct {
	storage storage.Provider
}

// NewExporter 创建导出器
func NewExporter(store storage.Provider) *Exporter {
	return &Exporter{storage: store}
}

// page 坐标以页面底部为原点向上计，绘制时再换算成 fpdf 的顶部原点
type page struct {
	pdf    *fpdf.Fpdf
	height float64
}

func (p *page) text(x, y float64, s string) {
	p.pdf.Text(x, p.height-y, s)
}

func (p *page) headers(y float64) {
	p.pdf.SetFont("Helvetica", "B", 12)
	for _, col := range columns {
		p.text(col.x, y, col.title)
	}
	p.pdf.SetFont("Helvetica", "", 12)
}

// Write 将记录按顺序写成 PDF
func (e *Exporter) Write(ctx context.Context, w io.Writer, list []*models.Prediction) error {
	if len(list) == 0 {
		return ErrNoData
	}

	pdf := fpdf.New("L", "pt", "A4", "")
	pdf.SetTitle(Title, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	_, height := pdf.GetPageSize()
	p := &page{pdf: pdf, height: height}

	pdf.SetFont("Helvetica", "B", 16)
	p.text(230, height-50, Title)

	y := height - 100
	p.headers(y)
	y -= 50

	for i, record := range list {
		if err := ctx.Err(); err != nil {
			return err
		}
		if y < bottomLimit {
			pdf.AddPage()
			y = height - 50
			p.headers(y)
			y -= 50
		}
		e.row(ctx, p, i+1, record, y)
		y -= rowSpacing
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func (e *Exporter) row(ctx context.Context, p *page, index int, record *models.Prediction, y float64) {
	p.text(columns[0].x, y, strconv.Itoa(index))

	if record.ImageFile != "" {
		name := fmt.Sprintf("thumb_%d", record.ID)
		data, err := e.thumbnail(ctx, record.ImageFile)
		if err != nil {
			log.Printf("[Report] Error loading image %s: %v", record.ImageFile, err)
			p.text(columns[1].x, y, "[Error: Img]")
		} else {
			opts := fpdf.ImageOptions{ImageType: "PNG"}
			p.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
			p.pdf.ImageOptions(name, columns[1].x, p.height-(y+30), thumbSize, thumbSize, false, opts, 0, "")
		}
	}

	classes := record.Classes()
	probs := record.Probabilities()
	for i := 0; i < 3; i++ {
		p.text(columns[2+i*2].x, y, classes[i])
		p.text(columns[3+i*2].x, y, formatPercent(probs[i]))
	}
}

// thumbnail 读取图片并等比缩到 50 见方以内，输出 PNG
func (e *Exporter) thumbnail(ctx context.Context, key string) ([]byte, error) {
	r, err := e.storage.GetWithContext(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > thumbSize || h > thumbSize {
		if w >= h {
			h = max(1, h*thumbSize/w)
			w = thumbSize
		} else {
			w = max(1, w*thumbSize/h)
			h = thumbSize
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// formatPercent 概率为 0 时留空，整数保留一位小数
func formatPercent(v float64) string {
	if v == 0 {
		return ""
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v == float64(int64(v)) {
		s += ".0"
	}
	return s + "%"
}
