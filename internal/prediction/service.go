package prediction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/database/repo/predictions"
	"github.com/anoixa/image-predict/internal/classifier"
	"github.com/anoixa/image-predict/internal/ingest"
	"github.com/anoixa/image-predict/internal/metrics"
	"github.com/anoixa/image-predict/storage"
	"github.com/anoixa/image-predict/utils"
)

var (
	ErrNotFound      = errors.New("prediction not found")
	ErrImageNotFound = errors.New("image file not found")
	ErrProcessing    = errors.New("prediction processing failed")
)

// 面向用户的提示
const (
	MsgSubmitted     = "Your prediction has been submitted successfully."
	MsgDeleted       = "Prediction deleted successfully."
	MsgImageNotFound = "The image file was not found."
	MsgProcessing    = "An error occurred while processing the image."
)

// Service 预测提交、历史与删除
type Service struct {
	repo       *predictions.Repository
	ingest     *ingest.Service
	classifier classifier.Classifier
	storage    storage.Provider
	metrics    *metrics.Metrics
}

// NewService 创建预测服务，m 可为 nil
func NewService(repo *predictions.Repository, ing *ingest.Service, clf classifier.Classifier, store storage.Provider, m *metrics.Metrics) *Service {
	return &Service{
		repo:       repo,
		ingest:     ing,
		classifier: clf,
		storage:    store,
		metrics:    m,
	}
}

// Submit 摄取图片、分类并保存结果
func (s *Service) Submit(ctx context.Context, user *models.User, src ingest.Source) (*models.Prediction, error) {
	stored, err := s.ingest.Ingest(ctx, ingest.Owner{ID: user.ID, Username: user.Username}, src)
	if err != nil {
		if ingest.UserMessage(err) != "" {
			s.metrics.ObservePrediction(metrics.OutcomeRejected)
			return nil, err
		}
		s.metrics.ObservePrediction(metrics.OutcomeFailed)
		log.Printf("[Prediction] Failed to store image for user %d: %v", user.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrProcessing, err)
	}

	preds, err := s.classify(ctx, stored.Key)
	if err != nil {
		s.metrics.ObservePrediction(metrics.OutcomeFailed)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, stored.Key)
		}
		log.Printf("[Prediction] Inference failed for %s: %v", stored.Key, err)
		s.removeImage(stored.Key)
		return nil, fmt.Errorf("%w: %v", ErrProcessing, err)
	}

	record := &models.Prediction{
		SubmittedByID: user.ID,
		ImageFile:     stored.Key,
		Class1:        preds[0].Class,
		Prob1:         preds[0].Probability,
		Class2:        preds[1].Class,
		Prob2:         preds[1].Probability,
		Class3:        preds[2].Class,
		Prob3:         preds[2].Probability,
		Class4:        preds[3].Class,
		Prob4:         preds[3].Probability,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		s.metrics.ObservePrediction(metrics.OutcomeFailed)
		log.Printf("[Prediction] Failed to save prediction for %s: %v", stored.Key, err)
		s.removeImage(stored.Key)
		return nil, fmt.Errorf("%w: %v", ErrProcessing, err)
	}

	s.metrics.ObservePrediction(metrics.OutcomeSuccess)
	utils.LogIfDevf("[Prediction] User %d: %s (%.2f%%)", user.ID, record.Class1, record.Prob1)
	return record, nil
}

// classify 从存储读回压缩后的图片再推理
func (s *Service) classify(ctx context.Context, key string) ([]classifier.Prediction, error) {
	r, err := s.storage.GetWithContext(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	start := time.Now()
	preds, err := classifier.PredictReader(ctx, s.classifier, r)
	s.metrics.ObserveInference(time.Since(start))
	if err != nil {
		return nil, err
	}
	if len(preds) < classifier.TopN {
		return nil, fmt.Errorf("classifier returned %d classes, need %d", len(preds), classifier.TopN)
	}
	return preds, nil
}

// removeImage 尽力删除文件，失败只记录日志
func (s *Service) removeImage(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.storage.DeleteWithContext(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("[Prediction] Failed to remove image %s: %v", key, err)
	}
}

// History 用户的预测记录，最新在前
func (s *Service) History(ctx context.Context, userID uint) ([]*models.Prediction, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Delete 删除用户自己的预测及其图片
func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	record, err := s.repo.GetByIDAndUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, predictions.ErrPredictionNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.storage.DeleteWithContext(ctx, record.ImageFile); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("[Prediction] Failed to delete image %s: %v", record.ImageFile, err)
		return fmt.Errorf("delete image: %w", err)
	}

	if err := s.repo.DeleteByIDAndUser(ctx, id, userID); err != nil {
		if errors.Is(err, predictions.ErrPredictionNotFound) {
			return ErrNotFound
		}
		return err
	}

	utils.LogIfDevf("[Prediction] User %d deleted prediction %d", userID, id)
	return nil
}

// Storage 返回媒体存储，供导出读取缩略图
func (s *Service) Storage() storage.Provider {
	return s.storage
}
