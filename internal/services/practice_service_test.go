package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice_eval/internal/models"
	"voice_eval/internal/store"
)

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int) *int           { return &v }

func TestCalculateStatsEmpty(t *testing.T) {
	stats := CalculateStats(nil, time.Now())
	assert.Equal(t, 0, stats.TotalCount)
	assert.Equal(t, 0.0, stats.AverageScore)
	assert.Len(t, stats.ByType, 3)
	assert.Empty(t, stats.Recent7Days)
	assert.NotNil(t, stats.Recent7Days)
}

func TestCalculateStats(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	practices := []models.Practice{
		{Type: models.PracticeWord, TotalScore: 80, Duration: 5, CreatedAt: now},
		{Type: models.PracticeWord, TotalScore: 91.333, Duration: 7, CreatedAt: now.Add(-time.Hour)},
		{Type: models.PracticeSentence, TotalScore: 70, Duration: 12, CreatedAt: now.AddDate(0, 0, -2)},
		{Type: models.PracticeParagraph, TotalScore: 60, Duration: 30, CreatedAt: now.AddDate(0, 0, -10)},
	}

	stats := CalculateStats(practices, now)
	assert.Equal(t, 4, stats.TotalCount)
	assert.Equal(t, 54, stats.TotalDuration)
	assert.Equal(t, 75.33, stats.AverageScore)
	assert.Equal(t, 91.33, stats.BestScore)
	assert.Equal(t, models.TypeStats{Count: 2, AvgScore: 85.67}, stats.ByType[models.PracticeWord])
	assert.Equal(t, models.TypeStats{Count: 1, AvgScore: 70}, stats.ByType[models.PracticeSentence])
	assert.Equal(t, models.TypeStats{Count: 1, AvgScore: 60}, stats.ByType[models.PracticeParagraph])

	require.Len(t, stats.Recent7Days, 7)
	assert.Equal(t, models.DayCount{Date: "2026-03-04", Count: 0}, stats.Recent7Days[0])
	assert.Equal(t, models.DayCount{Date: "2026-03-08", Count: 1}, stats.Recent7Days[4])
	assert.Equal(t, models.DayCount{Date: "2026-03-10", Count: 2}, stats.Recent7Days[6])
}

func TestPracticeSaveValidation(t *testing.T) {
	svc := NewPracticeService(store.NewMemoryStore().Practices(), nil, nil)
	ctx := context.Background()

	_, err := svc.Save(ctx, "u1", PracticeInput{Type: models.PracticeWord, Content: "hi", Duration: ptrInt(3)})
	assert.ErrorIs(t, err, ErrMissingPracticeFields)

	_, err = svc.Save(ctx, "u1", PracticeInput{Type: "essay", Content: "hi", TotalScore: ptrFloat(1), Duration: ptrInt(3)})
	assert.ErrorIs(t, err, ErrInvalidPracticeType)

	p, err := svc.Save(ctx, "u1", PracticeInput{Type: models.PracticeWord, Content: "hi", TotalScore: ptrFloat(0), Duration: ptrInt(0)})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestPracticeStatsCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache := store.NewStatsCache(client, time.Minute)
	svc := NewPracticeService(store.NewMemoryStore().Practices(), cache, nil)
	ctx := context.Background()

	_, err := svc.Save(ctx, "u1", PracticeInput{Type: models.PracticeWord, Content: "a", TotalScore: ptrFloat(80), Duration: ptrInt(3)})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalCount)

	cached, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, cached.TotalCount)

	_, err = svc.Save(ctx, "u1", PracticeInput{Type: models.PracticeWord, Content: "b", TotalScore: ptrFloat(90), Duration: ptrInt(3)})
	require.NoError(t, err)
	_, err = cache.Get(ctx, "u1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	stats, err = svc.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalCount)
	assert.Equal(t, 85.0, stats.AverageScore)
}

func TestSaveResult(t *testing.T) {
	svc := NewPracticeService(store.NewMemoryStore().Practices(), nil, nil)
	ctx := context.Background()

	result := &models.EvaluationResult{
		TotalScore:    88.5,
		AccuracyScore: ptrFloat(90),
		Sentences: []models.SentenceScore{{
			Content: "hello world",
			Words: []models.WordScore{
				{Content: "hello", TotalScore: 90},
				{Content: "world", TotalScore: 87, ErrorCode: models.DiscrepancyOmission},
			},
		}},
	}
	req := models.EvaluationRequest{Category: models.CategorySentence, ReferenceText: "hello world"}

	p, err := svc.SaveResult(ctx, "u1", req, result, 2600*time.Millisecond, []byte(`{"totalScore":88.5}`))
	require.NoError(t, err)
	assert.Equal(t, models.PracticeSentence, p.Type)
	assert.Equal(t, 88.5, p.TotalScore)
	assert.Equal(t, 90.0, p.Accuracy)
	assert.Equal(t, 0.0, p.Fluency)
	assert.Equal(t, 3, p.Duration)
	assert.Contains(t, string(p.WordDetails), `"dpMessage":16`)
	assert.JSONEq(t, `{"totalScore":88.5}`, string(p.RawResult))
}
