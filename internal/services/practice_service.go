package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"voice_eval/internal/models"
)

// StatsCache 练习统计缓存
type StatsCache interface {
	Get(ctx context.Context, userID string) (*models.PracticeStats, error)
	Set(ctx context.Context, userID string, stats *models.PracticeStats) error
	Invalidate(ctx context.Context, userID string) error
}

// PracticeInput 保存练习记录的请求
type PracticeInput struct {
	Type        models.PracticeType `json:"type"`
	Content     string              `json:"content"`
	TotalScore  *float64            `json:"total_score"`
	Accuracy    float64             `json:"accuracy"`
	Fluency     float64             `json:"fluency"`
	Integrity   float64             `json:"integrity"`
	Standard    float64             `json:"standard"`
	WordDetails models.JSONText     `json:"word_details"`
	RawResult   models.JSONText     `json:"raw_result"`
	Duration    *int                `json:"duration"`
	AudioURL    string              `json:"audio_url"`
}

// PracticeService 练习记录和统计
type PracticeService struct {
	practices models.PracticeStore
	cache     StatsCache
	logger    *zap.Logger
	now       func() time.Time
}

// NewPracticeService 创建练习服务，cache 可以为nil
func NewPracticeService(practices models.PracticeStore, cache StatsCache, logger *zap.Logger) *PracticeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PracticeService{practices: practices, cache: cache, logger: logger, now: time.Now}
}

// Save 校验并保存练习记录
func (s *PracticeService) Save(ctx context.Context, userID string, in PracticeInput) (*models.Practice, error) {
	if in.Type == "" || strings.TrimSpace(in.Content) == "" || in.TotalScore == nil || in.Duration == nil {
		return nil, ErrMissingPracticeFields
	}
	if !in.Type.Valid() {
		return nil, ErrInvalidPracticeType
	}

	p := &models.Practice{
		UserID:      userID,
		Type:        in.Type,
		Content:     in.Content,
		TotalScore:  *in.TotalScore,
		Accuracy:    in.Accuracy,
		Fluency:     in.Fluency,
		Integrity:   in.Integrity,
		Standard:    in.Standard,
		WordDetails: in.WordDetails,
		RawResult:   in.RawResult,
		Duration:    *in.Duration,
		AudioURL:    in.AudioURL,
	}
	if err := s.practices.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("保存记录失败: %w", err)
	}
	s.invalidate(ctx, userID)
	return p, nil
}

// SaveResult 保存一次实时评测的结果
func (s *PracticeService) SaveResult(ctx context.Context, userID string, req models.EvaluationRequest, result *models.EvaluationResult, duration time.Duration, raw []byte) (*models.Practice, error) {
	words, err := marshalWords(result)
	if err != nil {
		return nil, err
	}

	score := result.TotalScore
	seconds := int(math.Round(duration.Seconds()))
	return s.Save(ctx, userID, PracticeInput{
		Type:        models.PracticeTypeFor(req.Category),
		Content:     req.ReferenceText,
		TotalScore:  &score,
		Accuracy:    deref(result.AccuracyScore),
		Fluency:     deref(result.FluencyScore),
		Integrity:   deref(result.IntegrityScore),
		Standard:    deref(result.StandardScore),
		WordDetails: words,
		RawResult:   models.JSONText(raw),
		Duration:    &seconds,
	})
}

// List 分页查询练习记录
func (s *PracticeService) List(ctx context.Context, userID string, filter models.PracticeFilter) ([]models.Practice, int64, error) {
	list, total, err := s.practices.List(ctx, userID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("查询记录失败: %w", err)
	}
	return list, total, nil
}

// Stats 查询练习统计，优先读缓存
func (s *PracticeService) Stats(ctx context.Context, userID string) (*models.PracticeStats, error) {
	if s.cache != nil {
		stats, err := s.cache.Get(ctx, userID)
		if err == nil {
			return stats, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("读取统计缓存失败", zap.String("user_id", userID), zap.Error(err))
		}
	}

	practices, err := s.practices.ListAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询统计失败: %w", err)
	}
	stats := CalculateStats(practices, s.now())

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, stats); err != nil {
			s.logger.Warn("写入统计缓存失败", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return stats, nil
}

func (s *PracticeService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("清除统计缓存失败", zap.String("user_id", userID), zap.Error(err))
	}
}

// CalculateStats 计算练习统计，按UTC日期统计最近7天
func CalculateStats(practices []models.Practice, now time.Time) *models.PracticeStats {
	stats := &models.PracticeStats{
		ByType:      make(map[models.PracticeType]models.TypeStats, len(models.PracticeTypes)),
		Recent7Days: []models.DayCount{},
	}
	for _, t := range models.PracticeTypes {
		stats.ByType[t] = models.TypeStats{}
	}
	if len(practices) == 0 {
		return stats
	}

	var sum float64
	best := math.Inf(-1)
	typeSums := make(map[models.PracticeType]float64)
	dayCounts := make(map[string]int)
	for _, p := range practices {
		stats.TotalDuration += p.Duration
		sum += p.TotalScore
		if p.TotalScore > best {
			best = p.TotalScore
		}
		if ts, ok := stats.ByType[p.Type]; ok {
			ts.Count++
			stats.ByType[p.Type] = ts
			typeSums[p.Type] += p.TotalScore
		}
		dayCounts[p.CreatedAt.UTC().Format("2006-01-02")]++
	}

	stats.TotalCount = len(practices)
	stats.AverageScore = round2(sum / float64(len(practices)))
	stats.BestScore = round2(best)
	for t, ts := range stats.ByType {
		if ts.Count > 0 {
			ts.AvgScore = round2(typeSums[t] / float64(ts.Count))
			stats.ByType[t] = ts
		}
	}

	today := now.UTC()
	for i := 6; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format("2006-01-02")
		stats.Recent7Days = append(stats.Recent7Days, models.DayCount{Date: day, Count: dayCounts[day]})
	}
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
