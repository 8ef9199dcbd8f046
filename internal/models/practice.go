package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PracticeType 练习类型
type PracticeType string

const (
	PracticeWord      PracticeType = "word"
	PracticeSentence  PracticeType = "sentence"
	PracticeParagraph PracticeType = "paragraph"
)

// PracticeTypes 所有练习类型
var PracticeTypes = []PracticeType{PracticeWord, PracticeSentence, PracticeParagraph}

// Valid 是否为合法的练习类型
func (t PracticeType) Valid() bool {
	switch t {
	case PracticeWord, PracticeSentence, PracticeParagraph:
		return true
	}
	return false
}

// Category 练习类型对应的评测题型
func (t PracticeType) Category() Category {
	switch t {
	case PracticeSentence:
		return CategorySentence
	case PracticeParagraph:
		return CategoryChapter
	default:
		return CategoryWord
	}
}

// PracticeTypeFor 评测题型对应的练习类型
func PracticeTypeFor(c Category) PracticeType {
	switch c {
	case CategorySentence:
		return PracticeSentence
	case CategoryChapter:
		return PracticeParagraph
	default:
		return PracticeWord
	}
}

// JSONText 以文本列保存的JSON
type JSONText json.RawMessage

// Value 实现 driver.Valuer
func (j JSONText) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan 实现 sql.Scanner
func (j *JSONText) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case string:
		*j = JSONText(v)
	case []byte:
		*j = append((*j)[:0], v...)
	default:
		return fmt.Errorf("无法将 %T 转换为JSONText", src)
	}
	return nil
}

// MarshalJSON 原样输出
func (j JSONText) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON 原样保存
func (j *JSONText) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[:0], data...)
	return nil
}

// Practice 练习记录
type Practice struct {
	ID          string       `gorm:"primaryKey" json:"id"`
	UserID      string       `gorm:"index;not null" json:"user_id"`
	Type        PracticeType `gorm:"index;not null" json:"type"`
	Content     string       `gorm:"not null" json:"content"`
	TotalScore  float64      `json:"total_score"`
	Accuracy    float64      `json:"accuracy"`
	Fluency     float64      `json:"fluency"`
	Integrity   float64      `json:"integrity"`
	Standard    float64      `json:"standard"`
	WordDetails JSONText     `gorm:"type:text" json:"word_details"`
	RawResult   JSONText     `gorm:"type:text" json:"raw_result"`
	Duration    int          `json:"duration"`
	AudioURL    string       `json:"audio_url,omitempty"`
	CreatedAt   time.Time    `gorm:"index" json:"created_at"`
}

// PracticeFilter 练习记录查询条件
type PracticeFilter struct {
	Type   PracticeType
	Limit  int
	Offset int
}

// TypeStats 单一类型统计
type TypeStats struct {
	Count    int     `json:"count"`
	AvgScore float64 `json:"avg_score"`
}

// DayCount 某天的练习次数
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// PracticeStats 练习统计
type PracticeStats struct {
	TotalCount    int                        `json:"total_count"`
	TotalDuration int                        `json:"total_duration"`
	AverageScore  float64                    `json:"average_score"`
	BestScore     float64                    `json:"best_score"`
	ByType        map[PracticeType]TypeStats `json:"by_type"`
	Recent7Days   []DayCount                 `json:"recent_7_days"`
}
