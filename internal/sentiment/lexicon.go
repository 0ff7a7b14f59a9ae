package sentiment

import (
	"strings"
	"unicode"
)

// Lexicon 基于词表的默认极性实现：取命中词极性的平均值，否定词翻转并减弱，程度副词放大
type Lexicon struct {
	words       map[string]float64
	negators    map[string]bool
	intensifier map[string]float64
}

func NewLexicon() *Lexicon {
	return &Lexicon{
		words:       defaultWords,
		negators:    defaultNegators,
		intensifier: defaultIntensifiers,
	}
}

func (l *Lexicon) Polarity(text string) float64 {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})

	var sum float64
	var hits int
	for i, tok := range tokens {
		p, ok := l.words[tok]
		if !ok {
			continue
		}
		if i > 0 {
			if m, ok := l.intensifier[tokens[i-1]]; ok {
				p *= m
			}
		}
		if l.negated(tokens, i) {
			p *= -0.5
		}
		sum += p
		hits++
	}
	if hits == 0 {
		return 0
	}
	return clamp(sum / float64(hits))
}

// negated 向前看两个词，跳过程度副词
func (l *Lexicon) negated(tokens []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-2; j-- {
		if l.negators[tokens[j]] {
			return true
		}
		if _, ok := l.intensifier[tokens[j]]; !ok {
			return false
		}
	}
	return false
}

var defaultNegators = map[string]bool{
	"not": true, "no": true, "never": true, "don't": true, "isn't": true, "wasn't": true,
	"tidak": true, "bukan": true, "tak": true, "belum": true, "jangan": true,
}

var defaultIntensifiers = map[string]float64{
	"very": 1.3, "extremely": 1.5, "really": 1.2, "highly": 1.3,
	"sangat": 1.3, "amat": 1.3, "sekali": 1.2, "paling": 1.4,
}

var defaultWords = map[string]float64{
	// English
	"good": 0.7, "great": 0.8, "excellent": 1.0, "best": 1.0, "positive": 0.5,
	"success": 0.6, "successful": 0.7, "win": 0.6, "wins": 0.6, "growth": 0.4,
	"gain": 0.4, "gains": 0.4, "rise": 0.3, "rally": 0.4, "happy": 0.8,
	"strong": 0.4, "improve": 0.5, "improved": 0.5, "record": 0.3, "peace": 0.5,
	"safe": 0.5, "support": 0.3, "boost": 0.5, "love": 0.5, "hope": 0.4,
	"bad": -0.7, "worst": -1.0, "terrible": -1.0, "negative": -0.3, "fail": -0.5,
	"failed": -0.5, "failure": -0.6, "crisis": -0.6, "loss": -0.5, "losses": -0.5,
	"fall": -0.3, "drop": -0.3, "crash": -0.7, "war": -0.6, "attack": -0.6,
	"dead": -0.7, "death": -0.7, "killed": -0.8, "corruption": -0.8, "fraud": -0.8,
	"sad": -0.5, "angry": -0.6, "fear": -0.5, "weak": -0.4, "disaster": -0.9,
	"flood": -0.5, "scandal": -0.7, "protest": -0.3, "threat": -0.5, "poor": -0.4,
	// Indonesian
	"baik": 0.7, "bagus": 0.7, "hebat": 0.8, "sukses": 0.7, "berhasil": 0.6,
	"menang": 0.6, "untung": 0.5, "naik": 0.3, "tumbuh": 0.4, "meningkat": 0.4,
	"senang": 0.8, "bahagia": 0.8, "aman": 0.5, "damai": 0.5, "positif": 0.5,
	"prestasi": 0.6, "dukung": 0.3, "harapan": 0.4, "kuat": 0.4, "juara": 0.8,
	"buruk": -0.7, "gagal": -0.6, "kalah": -0.5, "rugi": -0.5, "turun": -0.3,
	"anjlok": -0.7, "krisis": -0.6, "korupsi": -0.8, "bencana": -0.9, "banjir": -0.5,
	"tewas": -0.8, "meninggal": -0.6, "perang": -0.6, "serangan": -0.6, "negatif": -0.3,
	"sedih": -0.5, "marah": -0.6, "takut": -0.5, "lemah": -0.4, "skandal": -0.7,
	"demo": -0.2, "ancaman": -0.5, "miskin": -0.4, "penipuan": -0.8, "kecelakaan": -0.7,
}
