package dashboard

import (
	"context"
	"math"
	"time"

	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/database/repo/dashboard"
)

const (
	chartDays        = 7
	recentLimit      = 5
	topUsersLimit    = 5
	noClassAvailable = "N/A"
)

// StatsRepository 统计仓库接口
type StatsRepository interface {
	CountUsers(ctx context.Context) (int64, error)
	CountPredictions(ctx context.Context) (int64, error)
	CountActiveUsers(ctx context.Context) (int64, error)
	MostPredictedClass(ctx context.Context) (string, error)
	RecentPredictions(ctx context.Context, limit int) ([]*models.Prediction, error)
	PredictionTimesSince(ctx context.Context, since time.Time) ([]time.Time, error)
	UsersJoinedSince(ctx context.Context, since time.Time) ([]*models.User, error)
	TopUsers(ctx context.Context, limit int) ([]dashboard.UserPredictionCount, error)
}

// Service 管理后台统计服务，每次请求实时查询
type Service struct {
	repo StatsRepository
	now  func() time.Time
}

// NewService 创建统计服务
func NewService(repo StatsRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// StatsResponse 后台统计响应
type StatsResponse struct {
	TotalUsers            int64                           `json:"total_users"`
	TotalPredictions      int64                           `json:"total_predictions"`
	ActiveUsers           int64                           `json:"active_users"`
	AvgPredictionsPerUser float64                         `json:"avg_predictions_per_user"`
	MostPredictedClass    string                          `json:"most_predicted_class"`
	RecentPredictions     []RecentPrediction              `json:"recent_predictions"`
	Chart                 TrendStats                      `json:"chart"`
	RecentUsers           []RecentUser                    `json:"recent_users"`
	TopUsers              []dashboard.UserPredictionCount `json:"top_users"`
	HasPredictions        bool                            `json:"has_predictions"`
}

// RecentPrediction 最近预测
type RecentPrediction struct {
	ID         uint      `json:"id"`
	Username   string    `json:"username"`
	Class1     string    `json:"class_1"`
	Prob1      float64   `json:"prob_1"`
	ImageFile  string    `json:"image_file"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// RecentUser 最近注册的用户
type RecentUser struct {
	ID         uint      `json:"id"`
	Username   string    `json:"username"`
	DateJoined time.Time `json:"date_joined"`
}

// TrendStats 趋势统计
type TrendStats struct {
	Labels []string `json:"labels"`
	Data   []int64  `json:"data"`
}

// GetStats 获取统计数据
func (s *Service) GetStats(ctx context.Context) (*StatsResponse, error) {
	now := s.now()
	since := now.AddDate(0, 0, -chartDays)

	totalUsers, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	totalPredictions, err := s.repo.CountPredictions(ctx)
	if err != nil {
		return nil, err
	}
	activeUsers, err := s.repo.CountActiveUsers(ctx)
	if err != nil {
		return nil, err
	}

	mostPredicted, err := s.repo.MostPredictedClass(ctx)
	if err != nil {
		return nil, err
	}
	if mostPredicted == "" {
		mostPredicted = noClassAvailable
	}

	recent, err := s.repo.RecentPredictions(ctx, recentLimit)
	if err != nil {
		return nil, err
	}
	times, err := s.repo.PredictionTimesSince(ctx, since)
	if err != nil {
		return nil, err
	}
	joined, err := s.repo.UsersJoinedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	top, err := s.repo.TopUsers(ctx, topUsersLimit)
	if err != nil {
		return nil, err
	}

	resp := &StatsResponse{
		TotalUsers:            totalUsers,
		TotalPredictions:      totalPredictions,
		ActiveUsers:           activeUsers,
		AvgPredictionsPerUser: averagePerUser(totalPredictions, activeUsers),
		MostPredictedClass:    mostPredicted,
		RecentPredictions:     make([]RecentPrediction, 0, len(recent)),
		Chart:                 buildTrendData(times, now, chartDays),
		RecentUsers:           make([]RecentUser, 0, len(joined)),
		TopUsers:              top,
		HasPredictions:        totalPredictions > 0,
	}
	if resp.TopUsers == nil {
		resp.TopUsers = []dashboard.UserPredictionCount{}
	}

	for _, p := range recent {
		resp.RecentPredictions = append(resp.RecentPredictions, RecentPrediction{
			ID:         p.ID,
			Username:   p.SubmittedBy.Username,
			Class1:     p.Class1,
			Prob1:      p.Prob1,
			ImageFile:  p.ImageFile,
			UploadedAt: p.UploadedAt,
		})
	}
	for _, u := range joined {
		resp.RecentUsers = append(resp.RecentUsers, RecentUser{
			ID:         u.ID,
			Username:   u.Username,
			DateJoined: u.CreatedAt,
		})
	}

	return resp, nil
}

// averagePerUser 保留两位小数，没有活跃用户时为 0
func averagePerUser(total, active int64) float64 {
	if active <= 0 {
		return 0
	}
	return math.Round(float64(total)/float64(active)*100) / 100
}

// buildTrendData 构建 today-days 到 today 共 days+1 个日期桶，没有数据的天数补 0
func buildTrendData(times []time.Time, now time.Time, days int) TrendStats {
	loc := now.Location()
	counts := make(map[string]int64)
	for _, t := range times {
		counts[t.In(loc).Format("2006-01-02")]++
	}

	labels := make([]string, 0, days+1)
	data := make([]int64, 0, days+1)
	for i := days; i >= 0; i-- {
		date := now.AddDate(0, 0, -i).Format("2006-01-02")
		labels = append(labels, date)
		data = append(data, counts[date])
	}

	return TrendStats{Labels: labels, Data: data}
}
