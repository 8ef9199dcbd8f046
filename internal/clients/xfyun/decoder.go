package xfyun

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"voice_eval/internal/models"
)

var rootElements = map[string]bool{
	"read_word":     true,
	"read_sentence": true,
	"read_chapter":  true,
}

// DecodeResult 解码 base64 编码的评测结果xml
func DecodeResult(payload string) (*models.EvaluationResult, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, newError(KindDecode, "评测结果base64解码失败", err)
	}
	return ParseResultXML(raw)
}

// ParseResultXML 解析评测结果xml。
// 根节点是第一个 read_word/read_sentence/read_chapter 元素，讯飞的结果里这类节点会嵌套出现，
// 外层缺少的分数属性从内层补齐。解析失败时不返回部分结果。
func ParseResultXML(data []byte) (*models.EvaluationResult, error) {
	p := &resultParser{sentence: -1, word: -1}
	dec := xml.NewDecoder(bytes.NewReader(data))

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, newError(KindDecode, "评测结果xml格式错误", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := p.start(t); err != nil {
				return nil, err
			}
		case xml.EndElement:
			p.end(t)
		}
	}

	if p.result == nil {
		return nil, newError(KindDecode, "评测结果缺少根节点", nil)
	}
	if p.result.Sentences == nil {
		p.result.Sentences = []models.SentenceScore{}
	}
	return p.result, nil
}

type resultParser struct {
	result    *models.EvaluationResult
	hasTotal  bool
	closed    bool // 根节点已结束
	rootDepth int
	depth     int
	sentence  int // 当前句子下标
	word      int // 当前单词下标
}

func (p *resultParser) start(el xml.StartElement) error {
	p.depth++
	if p.closed {
		return nil
	}
	name := el.Name.Local

	if rootElements[name] {
		if p.result == nil {
			p.result = &models.EvaluationResult{}
			p.rootDepth = p.depth
		}
		return p.fillRoot(el.Attr)
	}
	if p.result == nil {
		return nil
	}

	switch name {
	case "sentence":
		s, err := parseSentence(el.Attr)
		if err != nil {
			return err
		}
		p.result.Sentences = append(p.result.Sentences, s)
		p.sentence = len(p.result.Sentences) - 1
		p.word = -1
	case "word":
		if p.sentence < 0 {
			return nil
		}
		w, err := parseWord(el.Attr)
		if err != nil {
			return err
		}
		s := &p.result.Sentences[p.sentence]
		s.Words = append(s.Words, w)
		p.word = len(s.Words) - 1
	case "syll":
		if p.sentence < 0 || p.word < 0 {
			return nil
		}
		syl, err := parseSyllable(el.Attr)
		if err != nil {
			return err
		}
		w := &p.result.Sentences[p.sentence].Words[p.word]
		w.Syllables = append(w.Syllables, syl)
	}
	return nil
}

func (p *resultParser) end(el xml.EndElement) {
	switch el.Name.Local {
	case "sentence":
		p.sentence = -1
		p.word = -1
	case "word":
		p.word = -1
	}
	if p.result != nil && p.depth == p.rootDepth {
		p.closed = true
	}
	p.depth--
}

// fillRoot 填充根节点分数，只补齐之前未出现过的属性
func (p *resultParser) fillRoot(attrs []xml.Attr) error {
	r := p.result

	if v, err := floatAttr(attrs, "total_score"); err != nil {
		return err
	} else if v != nil && !p.hasTotal {
		r.TotalScore = *v
		p.hasTotal = true
	}

	dims := []struct {
		name string
		dst  **float64
	}{
		{"accuracy_score", &r.AccuracyScore},
		{"fluency_score", &r.FluencyScore},
		{"standard_score", &r.StandardScore},
		{"integrity_score", &r.IntegrityScore},
	}
	for _, d := range dims {
		v, err := floatAttr(attrs, d.name)
		if err != nil {
			return err
		}
		if v != nil && *d.dst == nil {
			*d.dst = v
		}
	}

	if v, ok := attr(attrs, "is_rejected"); ok && v == "true" {
		r.IsRejected = true
	}
	if v, ok := attr(attrs, "except_info"); ok && r.ExceptInfo == "" {
		r.ExceptInfo = v
	}
	return nil
}

func parseSentence(attrs []xml.Attr) (models.SentenceScore, error) {
	s := models.SentenceScore{Words: []models.WordScore{}}
	s.Content, _ = attr(attrs, "content")

	total, err := floatAttr(attrs, "total_score")
	if err != nil {
		return s, err
	}
	if total != nil {
		s.TotalScore = *total
	}
	if s.AccuracyScore, err = floatAttr(attrs, "accuracy_score"); err != nil {
		return s, err
	}
	if s.FluencyScore, err = floatAttr(attrs, "fluency_score"); err != nil {
		return s, err
	}
	if s.StandardScore, err = floatAttr(attrs, "standard_score"); err != nil {
		return s, err
	}
	return s, nil
}

func parseWord(attrs []xml.Attr) (models.WordScore, error) {
	w := models.WordScore{Syllables: []models.SyllableScore{}}
	w.Content, _ = attr(attrs, "content")

	total, err := floatAttr(attrs, "total_score")
	if err != nil {
		return w, err
	}
	if total != nil {
		w.TotalScore = *total
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"beg_pos", &w.StartOffset},
		{"end_pos", &w.EndOffset},
	}
	for _, f := range ints {
		v, err := intAttr(attrs, f.name)
		if err != nil {
			return w, err
		}
		if v != nil {
			*f.dst = *v
		}
	}

	dp, err := intAttr(attrs, "dp_message")
	if err != nil {
		return w, err
	}
	if dp != nil {
		w.ErrorCode = models.Discrepancy(*dp)
	}
	return w, nil
}

func parseSyllable(attrs []xml.Attr) (models.SyllableScore, error) {
	var (
		s   models.SyllableScore
		err error
	)
	s.Content, _ = attr(attrs, "content")
	if s.Score, err = floatAttr(attrs, "syll_score"); err != nil {
		return s, err
	}
	if s.ErrorCode, err = intAttr(attrs, "serr_msg"); err != nil {
		return s, err
	}
	if s.StressMarker, err = intAttr(attrs, "syll_accent"); err != nil {
		return s, err
	}
	return s, nil
}

func attr(attrs []xml.Attr, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func floatAttr(attrs []xml.Attr, name string) (*float64, error) {
	v, ok := attr(attrs, name)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, newError(KindDecode, fmt.Sprintf("属性%s格式错误: %q", name, v), err)
	}
	return &f, nil
}

func intAttr(attrs []xml.Attr, name string) (*int, error) {
	v, ok := attr(attrs, name)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, newError(KindDecode, fmt.Sprintf("属性%s格式错误: %q", name, v), err)
	}
	return &n, nil
}
