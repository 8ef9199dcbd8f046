package xfyun

import (
	"math"

	"voice_eval/internal/models"
)

// Aggregate 用句子分数补齐缺失或为0的总分和分项分。
// 缺少某一分项的句子不参与该分项的平均。重复调用结果不变。
func Aggregate(r *models.EvaluationResult) {
	if r == nil || len(r.Sentences) == 0 {
		return
	}

	if r.TotalScore == 0 {
		sum := 0.0
		for _, s := range r.Sentences {
			sum += s.TotalScore
		}
		r.TotalScore = round1(sum / float64(len(r.Sentences)))
	}

	fillDimension(&r.AccuracyScore, r.Sentences, func(s models.SentenceScore) *float64 { return s.AccuracyScore })
	fillDimension(&r.FluencyScore, r.Sentences, func(s models.SentenceScore) *float64 { return s.FluencyScore })
	fillDimension(&r.StandardScore, r.Sentences, func(s models.SentenceScore) *float64 { return s.StandardScore })
}

func fillDimension(dst **float64, sentences []models.SentenceScore, get func(models.SentenceScore) *float64) {
	if *dst != nil && **dst != 0 {
		return
	}

	sum, n := 0.0, 0
	for _, s := range sentences {
		if v := get(s); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return
	}
	avg := round1(sum / float64(n))
	*dst = &avg
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
