package sentiment

import (
	"log"
	"math"

	"github.com/LJTian/MediaMon/internal/domain"
	"github.com/LJTian/MediaMon/internal/lang"
)

// Polarity 外部情感极性能力，返回 [-1, 1] 之间的值
type Polarity interface {
	Polarity(text string) float64
}

// PolarityFunc 让普通函数满足 Polarity
type PolarityFunc func(text string) float64

func (f PolarityFunc) Polarity(text string) float64 { return f(text) }

// Result /sentiment 接口与文章共用的一组情感字段
type Result struct {
	Language domain.Language `json:"language"`
	Score    float64         `json:"sentiment_score"`
	Label    string          `json:"sentiment_label"`
	Color    string          `json:"sentiment_color"`
}

// Scorer 包装外部极性函数：空文本不调用、异常按中性处理、结果截断并保留两位小数
type Scorer struct {
	polarity Polarity
}

func NewScorer(p Polarity) *Scorer {
	if p == nil {
		p = NewLexicon()
	}
	return &Scorer{polarity: p}
}

func (s *Scorer) Score(text string) float64 {
	if text == "" {
		return 0
	}
	return round2(clamp(s.safePolarity(text)))
}

// Analyze 返回文本的语言、分数、标签与颜色
func (s *Scorer) Analyze(text string) Result {
	language := domain.LangEnglish
	if lang.IsIndonesian(text) {
		language = domain.LangIndonesian
	}
	score := s.Score(text)
	return Result{
		Language: language,
		Score:    score,
		Label:    Label(score, language),
		Color:    Color(score),
	}
}

func (s *Scorer) safePolarity(text string) (v float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("sentiment: polarity panicked: %v", r)
			v = 0
		}
	}()
	return s.polarity.Polarity(text)
}

// Color 分数到展示颜色的映射：>0.3 success，[0, 0.3] info，[-0.3, 0) warning，其余 danger。
// 边界点 0 与 -0.3 归入较温和的一档
func Color(score float64) string {
	switch {
	case score > 0.3:
		return "success"
	case score >= 0:
		return "info"
	case score >= -0.3:
		return "warning"
	default:
		return "danger"
	}
}

// Label 按分数符号给出标签，措辞随语言变化；恰好为 0 视为中性
func Label(score float64, language domain.Language) string {
	id := language == domain.LangIndonesian
	switch {
	case score > 0:
		if id {
			return "Positif"
		}
		return "Positive"
	case score < 0:
		if id {
			return "Negatif"
		}
		return "Negative"
	default:
		if id {
			return "Netral"
		}
		return "Neutral"
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		// 避免 -0 在 JSON 中输出成 -0
		return 0
	}
	return r
}
