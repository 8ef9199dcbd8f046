package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category 评测题型
type Category string

const (
	CategoryWord     Category = "word"
	CategorySentence Category = "sentence"
	CategoryChapter  Category = "chapter"
)

// ISECategory 返回讯飞评测接口使用的题型名
func (c Category) ISECategory() string {
	return "read_" + string(c)
}

// Valid 是否为支持的题型
func (c Category) Valid() bool {
	switch c {
	case CategoryWord, CategorySentence, CategoryChapter:
		return true
	}
	return false
}

// ParseCategory 解析题型，兼容 read_ 前缀
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "read_"))
	if !c.Valid() {
		return "", fmt.Errorf("不支持的评测题型: %s", s)
	}
	return c, nil
}

const (
	LanguageEnglish = "en_vip"
	LanguageChinese = "cn_vip"

	DefaultExtraAbility = "multi_dimension"
)

// EvaluationRequest 一次评测的参数，会话开始后不可修改
type EvaluationRequest struct {
	Category      Category `json:"category"`
	ReferenceText string   `json:"text"`
	Language      string   `json:"language,omitempty"`
	ExtraAbility  string   `json:"extraAbility,omitempty"`
}

// Normalize 填充默认值并校验
func (r EvaluationRequest) Normalize() (EvaluationRequest, error) {
	if !r.Category.Valid() {
		return r, fmt.Errorf("不支持的评测题型: %s", r.Category)
	}
	if strings.TrimSpace(r.ReferenceText) == "" {
		return r, fmt.Errorf("评测文本不能为空")
	}
	if r.Language == "" {
		r.Language = LanguageEnglish
	}
	if r.Language != LanguageEnglish && r.Language != LanguageChinese {
		return r, fmt.Errorf("不支持的评测语种: %s", r.Language)
	}
	if r.ExtraAbility == "" {
		r.ExtraAbility = DefaultExtraAbility
	}
	return r, nil
}

// EvaluationResult 评测结果
type EvaluationResult struct {
	TotalScore     float64         `json:"totalScore"`
	AccuracyScore  *float64        `json:"accuracyScore,omitempty"`
	FluencyScore   *float64        `json:"fluencyScore,omitempty"`
	StandardScore  *float64        `json:"standardScore,omitempty"`
	IntegrityScore *float64        `json:"integrityScore,omitempty"`
	IsRejected     bool            `json:"isRejected"`
	ExceptInfo     string          `json:"exceptInfo,omitempty"`
	Sentences      []SentenceScore `json:"sentences"`
}

// SentenceScore 句子得分
type SentenceScore struct {
	Content       string      `json:"content"`
	TotalScore    float64     `json:"totalScore"`
	AccuracyScore *float64    `json:"accuracyScore,omitempty"`
	FluencyScore  *float64    `json:"fluencyScore,omitempty"`
	StandardScore *float64    `json:"standardScore,omitempty"`
	Words         []WordScore `json:"words"`
}

// WordScore 单词得分
type WordScore struct {
	Content     string          `json:"content"`
	TotalScore  float64         `json:"totalScore"`
	ErrorCode   Discrepancy     `json:"dpMessage"`
	StartOffset int             `json:"begPos"`
	EndOffset   int             `json:"endPos"`
	Syllables   []SyllableScore `json:"syllables"`
}

// MarshalJSON 在原始 dpMessage 之外附带差异类型名和中文描述
func (w WordScore) MarshalJSON() ([]byte, error) {
	type plain WordScore
	return json.Marshal(struct {
		plain
		Label       string `json:"dpLabel"`
		Description string `json:"dpDescription"`
	}{
		plain:       plain(w),
		Label:       w.ErrorCode.Label(),
		Description: w.ErrorCode.Description(),
	})
}

// SyllableScore 音节得分
type SyllableScore struct {
	Content      string   `json:"content"`
	Score        *float64 `json:"syllScore,omitempty"`
	ErrorCode    *int     `json:"serrMsg,omitempty"`
	StressMarker *int     `json:"syllAccent,omitempty"`
}

// Words 按阅读顺序返回所有单词
func (r *EvaluationResult) Words() []WordScore {
	var words []WordScore
	for _, s := range r.Sentences {
		words = append(words, s.Words...)
	}
	return words
}

// Discrepancy 单词朗读差异码 (dp_message)
type Discrepancy int

const (
	DiscrepancyNone         Discrepancy = 0
	DiscrepancyOmission     Discrepancy = 16
	DiscrepancyInsertion    Discrepancy = 32
	DiscrepancyRepetition   Discrepancy = 64
	DiscrepancySubstitution Discrepancy = 128
)

// Label 差异类型名，未知的码返回 unknown
func (d Discrepancy) Label() string {
	switch d {
	case DiscrepancyNone:
		return "none"
	case DiscrepancyOmission:
		return "omission"
	case DiscrepancyInsertion:
		return "insertion"
	case DiscrepancyRepetition:
		return "repetition"
	case DiscrepancySubstitution:
		return "substitution"
	default:
		return "unknown"
	}
}

// Description 中文描述
func (d Discrepancy) Description() string {
	switch d {
	case DiscrepancyNone:
		return "正确"
	case DiscrepancyOmission:
		return "漏读"
	case DiscrepancyInsertion:
		return "增读"
	case DiscrepancyRepetition:
		return "回读"
	case DiscrepancySubstitution:
		return "替换"
	default:
		return "未知错误"
	}
}

// ScoreLevel 分数等级
type ScoreLevel struct {
	Level string `json:"level"`
	Label string `json:"label"`
}

// LevelFor 根据总分给出等级
func LevelFor(score float64) ScoreLevel {
	switch {
	case score >= 90:
		return ScoreLevel{Level: "excellent", Label: "优秀"}
	case score >= 80:
		return ScoreLevel{Level: "good", Label: "良好"}
	case score >= 70:
		return ScoreLevel{Level: "pass", Label: "及格"}
	default:
		return ScoreLevel{Level: "fail", Label: "待提高"}
	}
}
