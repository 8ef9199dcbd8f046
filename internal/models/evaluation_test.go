package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscrepancyLabel(t *testing.T) {
	cases := map[int]string{
		0:   "none",
		16:  "omission",
		32:  "insertion",
		64:  "repetition",
		128: "substitution",
		999: "unknown",
	}
	for code, want := range cases {
		d := Discrepancy(code)
		assert.Equal(t, want, d.Label(), "dp_message=%d", code)
		// 原始值保留
		assert.Equal(t, code, int(d))
	}
	assert.Equal(t, "未知错误", Discrepancy(999).Description())
	assert.Equal(t, "漏读", DiscrepancyOmission.Description())
}

func TestWordScoreJSONCarriesLabel(t *testing.T) {
	data, err := json.Marshal(WordScore{Content: "apple", TotalScore: 60, ErrorCode: Discrepancy(999)})
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.EqualValues(t, 999, out["dpMessage"])
	assert.Equal(t, "unknown", out["dpLabel"])
	assert.Equal(t, "未知错误", out["dpDescription"])
	assert.Equal(t, "apple", out["content"])

	var back WordScore
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Discrepancy(999), back.ErrorCode)

	data, err = json.Marshal(WordScore{Content: "pear", ErrorCode: DiscrepancyOmission})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"dpLabel":"omission"`)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("read_sentence")
	require.NoError(t, err)
	assert.Equal(t, CategorySentence, c)
	assert.Equal(t, "read_sentence", c.ISECategory())

	c, err = ParseCategory(" Word ")
	require.NoError(t, err)
	assert.Equal(t, CategoryWord, c)

	_, err = ParseCategory("poem")
	assert.Error(t, err)
}

func TestEvaluationRequestNormalize(t *testing.T) {
	req, err := EvaluationRequest{Category: CategoryWord, ReferenceText: "apple"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, LanguageEnglish, req.Language)
	assert.Equal(t, DefaultExtraAbility, req.ExtraAbility)

	_, err = EvaluationRequest{Category: CategoryWord, ReferenceText: "  "}.Normalize()
	assert.Error(t, err)

	_, err = EvaluationRequest{Category: CategoryWord, ReferenceText: "a", Language: "jp"}.Normalize()
	assert.Error(t, err)
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, "excellent", LevelFor(90).Level)
	assert.Equal(t, "good", LevelFor(89.9).Level)
	assert.Equal(t, "pass", LevelFor(70).Level)
	assert.Equal(t, "待提高", LevelFor(12).Label)
}

func TestPracticeTypeCategory(t *testing.T) {
	for _, pt := range PracticeTypes {
		assert.Equal(t, pt, PracticeTypeFor(pt.Category()))
	}
	assert.False(t, PracticeType("poem").Valid())
}

func TestJSONText(t *testing.T) {
	var p Practice
	require.NoError(t, json.Unmarshal([]byte(`{"word_details":[{"w":"a"}],"raw_result":null}`), &p))
	assert.JSONEq(t, `[{"w":"a"}]`, string(p.WordDetails))
	assert.Nil(t, p.RawResult)

	v, err := p.WordDetails.Value()
	require.NoError(t, err)
	assert.Equal(t, `[{"w":"a"}]`, v)

	var j JSONText
	require.NoError(t, j.Scan([]byte(`{"x":1}`)))
	out, err := json.Marshal(j)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(out))
	assert.Error(t, j.Scan(42))
}
