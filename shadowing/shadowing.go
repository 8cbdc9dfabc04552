// Package shadowing scores a learner's attempt at repeating a
// reference sentence.  Only text is compared; recording and
// transcription happen elsewhere.
package shadowing

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Levels of the built-in corpus.
var Levels = []string{"easy", "normal", "hard"}

// corpus is indexed by language, then level.
var corpus = map[string]map[string][]string{
	"en": {
		"easy": {
			"Hello.",
			"Nice to meet you.",
			"How are you today?",
			"I'm fine, thank you.",
			"Where are you from?",
			"Could you repeat that?",
			"Thank you very much.",
			"Have a nice day.",
		},
		"normal": {
			"I've been studying English more seriously recently.",
			"Could you recommend a good place to eat nearby?",
			"The meeting will start at two in the afternoon.",
			"I'd like to change my reservation if possible.",
			"Let me check the schedule and confirm later.",
			"Could you share the document with me?",
			"I'll send you the summary after the call.",
			"What are the next steps from here?",
		},
		"hard": {
			"We need to evaluate cost-effectiveness from a long-term perspective.",
			"Incorporating user feedback and adjusting priorities is essential.",
			"Without proper data quality controls, metrics become unreliable.",
			"Root-cause analysis should precede any permanent fixes.",
			"Let's define acceptance criteria before development starts.",
			"Quantify trade-offs between latency and accuracy.",
			"Design for failure and graceful degradation.",
			"Document edge cases and fallback behaviors thoroughly.",
		},
	},
	"ko": {
		"easy": {
			"안녕하세요.",
			"처음 뵙겠습니다.",
			"오늘 기분이 어때요?",
			"괜찮아요, 감사합니다.",
			"이름이 뭐예요?",
			"천천히 말씀해 주세요.",
			"정말 감사합니다.",
			"좋은 하루 보내세요.",
		},
		"normal": {
			"요즘 한국어를 더 열심히 공부하고 있어요.",
			"근처에 맛있는 식당을 추천해 주실 수 있나요?",
			"회의는 오후 두 시에 시작할 예정이에요.",
			"가능하다면 예약을 변경하고 싶습니다.",
			"일정을 확인하고 나중에 알려 드릴게요.",
			"문서를 공유해 주실 수 있나요?",
			"기다려 주셔서 감사합니다.",
			"여기서 다음 단계는 무엇일까요?",
		},
		"hard": {
			"장기적인 관점에서 비용 대비 효율을 평가해야 합니다.",
			"예상치 못한 변수들 때문에 일정이 일부 지연되었습니다.",
			"투명하고 측정 가능한 근거에 기반해 의사결정해야 합니다.",
			"위험 요소를 조기에 식별하고 완화 전략을 준비합시다.",
			"개발 전에 수용 기준을 정의합시다.",
			"단계적 롤아웃으로 혼란을 최소화합시다.",
			"지속적 개선을 위한 피드백 루프를 구축하세요.",
			"현지화와 접근성을 초기에 계획하세요.",
		},
	},
}

// Sentences returns the corpus for a language and level.
func Sentences(lang, level string) (sentences []string, err error) {
	levels, ok := corpus[lang]
	if !ok {
		err = fmt.Errorf("no shadowing corpus for language %q", lang)
		return
	}
	sentences, ok = levels[level]
	if !ok {
		err = fmt.Errorf("unknown level %q: want one of %s", level, strings.Join(Levels, ", "))
	}
	return
}

// Pick returns sentence i (modulo the corpus size) for a language and
// level.
func Pick(lang, level string, i int) (sentence string, err error) {
	sentences, err := Sentences(lang, level)
	if err != nil {
		return
	}
	if i < 0 {
		i = -i
	}
	sentence = sentences[i%len(sentences)]
	return
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Score returns the similarity of hyp to ref, from 0 to 1.  Case and
// surrounding whitespace are ignored.
func Score(ref, hyp string) float64 {
	ref, hyp = normalize(ref), normalize(hyp)
	longest := utf8.RuneCountInString(ref)
	if n := utf8.RuneCountInString(hyp); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(ref, hyp, false)
	dist := dmp.DiffLevenshtein(diffs)
	return 1 - float64(dist)/float64(longest)
}

// Diff returns a word-level diff of hyp against ref.  Missing words
// are shown as [-word-] and extra words as {+word+}.
func Diff(ref, hyp string) string {
	dmp := diffmatchpatch.New()
	a, b, words := dmp.DiffLinesToChars(wordLines(ref), wordLines(hyp))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), words)
	var out []string
	for _, d := range diffs {
		for _, w := range strings.Fields(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				out = append(out, "[-"+w+"-]")
			case diffmatchpatch.DiffInsert:
				out = append(out, "{+"+w+"+}")
			default:
				out = append(out, w)
			}
		}
	}
	return strings.Join(out, " ")
}

// wordLines puts each word on its own line so that the line-mode diff
// compares whole words.
func wordLines(s string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	return strings.Join(words, "\n") + "\n"
}
