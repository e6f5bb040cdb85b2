package predictions

import (
	"time"

	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/database/repo/accounts"
	"github.com/anoixa/image-predict/internal/prediction"
	"github.com/anoixa/image-predict/internal/report"
	"github.com/anoixa/image-predict/utils"
)

// Handler 预测处理器
type Handler struct {
	service      *prediction.Service
	exporter     *report.Exporter
	accountsRepo *accounts.Repository
	baseURL      string
}

// NewHandler 预测处理器，baseURL 用于生成图片地址，可为空
func NewHandler(service *prediction.Service, exporter *report.Exporter, accountsRepo *accounts.Repository, baseURL string) *Handler {
	return &Handler{
		service:      service,
		exporter:     exporter,
		accountsRepo: accountsRepo,
		baseURL:      baseURL,
	}
}

type classScore struct {
	Class       string  `json:"class"`
	Probability float64 `json:"probability"`
}

type predictionResponse struct {
	ID          uint         `json:"id"`
	ImageFile   string       `json:"image_file"`
	ImageURL    string       `json:"image_url"`
	UploadedAt  time.Time    `json:"uploaded_at"`
	Predictions []classScore `json:"predictions"`
}

func (h *Handler) toResponse(p *models.Prediction) predictionResponse {
	classes := p.Classes()
	probs := p.Probabilities()
	scores := make([]classScore, 0, len(classes))
	for i := range classes {
		scores = append(scores, classScore{Class: classes[i], Probability: probs[i]})
	}

	return predictionResponse{
		ID:          p.ID,
		ImageFile:   p.ImageFile,
		ImageURL:    utils.BuildMediaURL(h.baseURL, p.ImageFile),
		UploadedAt:  p.UploadedAt,
		Predictions: scores,
	}
}
