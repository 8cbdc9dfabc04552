package shadowing

import (
	"testing"

	. "github.com/stevegt/goadapt"
)

func TestScore(t *testing.T) {
	Tassert(t, Score("", "") == 1, "empty strings should match")
	s := Score("Nice to meet you.", "  nice to meet you. ")
	Tassert(t, s == 1, "expected 1, got %v", s)

	s = Score("Nice to meet you.", "Nice to see you.")
	Tassert(t, s > 0.5 && s < 1, "expected partial match, got %v", s)
	s2 := Score("Nice to meet you.", "Good night.")
	Tassert(t, s2 < s, "expected %v < %v", s2, s)
	Tassert(t, Score("abc", "") == 0, "got %v", Score("abc", ""))

	// multibyte text is scored by runes
	s = Score("안녕하세요.", "안녕하세요")
	Tassert(t, s > 0.8 && s < 1, "got %v", s)
}

func TestDiff(t *testing.T) {
	d := Diff("Could you repeat that?", "Could you repeat that?")
	Tassert(t, d == "Could you repeat that?", "got %q", d)

	d = Diff("Could you repeat that?", "Can you repeat that please?")
	Tassert(t, d == "[-Could-] {+Can+} you repeat [-that?-] {+that+} {+please?+}", "got %q", d)

	d = Diff("Thank you very much.", "")
	Tassert(t, d == "[-Thank-] [-you-] [-very-] [-much.-]", "got %q", d)
}

func TestPick(t *testing.T) {
	for _, lang := range []string{"en", "ko"} {
		for _, level := range Levels {
			sentences, err := Sentences(lang, level)
			Tassert(t, err == nil && len(sentences) > 0, "%s/%s: %v", lang, level, err)
			s, err := Pick(lang, level, len(sentences)+1)
			Tassert(t, err == nil && s == sentences[1], "%s/%s: got %q %v", lang, level, s, err)
		}
	}
	_, err := Pick("fr", "easy", 0)
	Tassert(t, err != nil, "expected error for unknown language")
	_, err = Pick("en", "extreme", 0)
	Tassert(t, err != nil, "expected error for unknown level")
}
