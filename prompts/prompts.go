// Package prompts holds the system prompts, languages and roleplay
// scenarios that set up a practice conversation, and the local reply
// shown when the completion service has no answer.
package prompts

import (
	"fmt"
	"os"
	"sort"
	"strings"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/speakstudio/client"
	"gopkg.in/yaml.v3"
)

// Mode is a kind of practice session.
type Mode string

const (
	ModeDaily     Mode = "daily_chat"
	ModeShadowing Mode = "shadowing"
	ModeRoleplay  Mode = "roleplay"
)

// Lang describes a practice language.
type Lang struct {
	Code       string
	Label      string
	PromptName string
}

// Langs are the supported practice languages.
var Langs = map[string]Lang{
	"en": {Code: "en", Label: "English", PromptName: "English"},
	"ko": {Code: "ko", Label: "Korean", PromptName: "Korean"},
}

// DefaultLang is used for unknown language codes.
const DefaultLang = "ko"

// GetLang returns the language for code, or DefaultLang's.
func GetLang(code string) Lang {
	l, ok := Langs[code]
	if !ok {
		return Langs[DefaultLang]
	}
	return l
}

// SystemPromptFor returns the role prompt for a mode and language.
func SystemPromptFor(mode Mode, lang string) string {
	name := GetLang(lang).PromptName
	switch mode {
	case ModeDaily:
		return Spf("You are a friendly %s conversation partner for a Japanese learner. "+
			"Respond only in %s, keep it short and natural.", name, name)
	case ModeRoleplay:
		return Spf("You are a %s roleplay partner. Reply only in %s, short and natural.", name, name)
	}
	return Spf("You are a helpful %s tutor.", name)
}

// SysMsgDaily is the system message for English daily chat.
var SysMsgDaily = "You are a friendly English conversation partner. " +
	"Keep each reply under 120 words. Use simple, natural English. " +
	"At the end, add one short follow-up question. " +
	"After your English reply, add a concise Japanese line starting with 'JP:'."

// replyRules is appended to every English roleplay prompt.
var replyRules = " Keep replies under 120 words. Ask one short follow-up question. " +
	"After the English reply, add a concise Japanese line starting with 'JP:'."

// DailyConversation returns the opening turns of a daily chat.
func DailyConversation(lang string) []client.ChatMsg {
	sysmsg := SysMsgDaily
	if GetLang(lang).Code != "en" {
		sysmsg = SystemPromptFor(ModeDaily, lang)
	}
	return []client.ChatMsg{{Role: client.RoleSystem, Content: sysmsg}}
}

// Tone is the register used by the roleplay partner.
type Tone string

const (
	ToneFormal   Tone = "formal"
	ToneStandard Tone = "standard"
	ToneCasual   Tone = "casual"
)

// ParseTone returns the tone named s.  The empty string means
// ToneStandard.
func ParseTone(s string) (tone Tone, err error) {
	switch Tone(strings.ToLower(s)) {
	case "", ToneStandard:
		return ToneStandard, nil
	case ToneFormal:
		return ToneFormal, nil
	case ToneCasual:
		return ToneCasual, nil
	}
	err = fmt.Errorf("unknown tone %q: want formal, standard or casual", s)
	return
}

// Style returns the prompt sentence for the tone.
func (t Tone) Style() string {
	switch t {
	case ToneFormal:
		return "Use polite expressions and a formal tone."
	case ToneCasual:
		return "Use friendly, casual expressions."
	}
	return "Use a neutral, business-casual tone."
}

// Scenario is a roleplay setup.
type Scenario struct {
	Key          string `yaml:"key"`
	Label        string `yaml:"label"`
	Lang         string `yaml:"lang"`
	SystemPrompt string `yaml:"system_prompt"`
	// Opening is a suggested first line for the learner.
	Opening string `yaml:"opening"`
}

// Prompt returns the full system prompt for the scenario in tone.
func (s *Scenario) Prompt(tone Tone) string {
	p := s.SystemPrompt + " " + tone.Style()
	if GetLang(s.Lang).Code == "en" {
		return p + replyRules
	}
	return p + " Keep each reply to two or three short sentences."
}

// Conversation returns the opening turns of a roleplay.
func (s *Scenario) Conversation(tone Tone) []client.ChatMsg {
	return []client.ChatMsg{{Role: client.RoleSystem, Content: s.Prompt(tone)}}
}

// ConversationKey identifies a roleplay for usage counting.
func ConversationKey(s *Scenario, tone Tone) string {
	return "roleplay::" + s.Key + "::" + string(tone)
}

// Catalog is a set of scenarios indexed by key.
type Catalog struct {
	scenarios map[string]*Scenario
}

// Builtin returns the scenarios that ship with the program.
func Builtin() *Catalog {
	c := &Catalog{scenarios: make(map[string]*Scenario)}
	add := func(key, label, lang, prompt, opening string) {
		c.scenarios[key] = &Scenario{Key: key, Label: label, Lang: lang, SystemPrompt: prompt, Opening: opening}
	}
	add("hotel", "Hotel check-in", "en",
		"You are a hotel front desk staff. Be polite and concise. Ask for the guest's name and reservation details.",
		"Hi, I have a reservation for tonight.")
	add("meeting", "Running a meeting", "en",
		"You are a meeting facilitator at a tech company. Keep the discussion on track and ask clarifying questions.",
		"Shall we get started?")
	add("support", "Customer support", "en",
		"You are a customer support agent. Empathize and guide to solutions step by step.",
		"Hi, my order hasn't arrived yet.")
	add("airport_checkin", "Airport check-in", "ko",
		"You are an airline ground staff member. The whole conversation is in Korean. "+
			"Be polite and concise, keep the dialogue realistic, and support the user's Korean practice.",
		"안녕하세요. 김포행 항공편 체크인하고 싶어요.")
	add("hotel_checkin", "Hotel check-in (Korean)", "ko",
		"You are a hotel front desk clerk. The whole conversation is in Korean. "+
			"Handle check-in, identity confirmation, payment and hotel information appropriately.",
		"안녕하세요. 오늘 체크인 예약했어요.")
	add("biz_meeting", "Business meeting (Korean)", "ko",
		"You are the contact person at a Korean business partner. The whole conversation is in Korean. "+
			"Confirm the meeting's purpose, schedule, required materials and next actions politely.",
		"안녕하세요. 오늘 미팅의 목적과 기대 결과를 먼저 확인하고 싶습니다.")
	return c
}

type catalogFile struct {
	Scenarios []*Scenario `yaml:"scenarios"`
}

// LoadCatalog returns the built-in scenarios, with any scenarios in
// the YAML file at path added or replacing built-ins of the same key.
// An empty path returns Builtin().
func LoadCatalog(path string) (c *Catalog, err error) {
	defer Return(&err)
	c = Builtin()
	if path == "" {
		return
	}
	buf, err := os.ReadFile(path)
	Ck(err)
	var f catalogFile
	err = yaml.Unmarshal(buf, &f)
	Ck(err, "parsing %s", path)
	for i, s := range f.Scenarios {
		if s == nil || s.Key == "" || s.SystemPrompt == "" {
			err = fmt.Errorf("%s: scenario %d needs a key and a system_prompt", path, i)
			return
		}
		if s.Label == "" {
			s.Label = s.Key
		}
		if s.Lang == "" {
			s.Lang = "en"
		}
		Debug("loaded scenario %s from %s", s.Key, path)
		c.scenarios[s.Key] = s
	}
	return
}

// Find returns the scenario with the given key.
func (c *Catalog) Find(key string) (s *Scenario, err error) {
	s, ok := c.scenarios[key]
	if !ok {
		err = fmt.Errorf("scenario %q not found", key)
	}
	return
}

// List returns the scenarios sorted by language and key.
func (c *Catalog) List() (list []*Scenario) {
	for _, s := range c.scenarios {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Lang == list[j].Lang {
			return list[i].Key < list[j].Key
		}
		return list[i].Lang < list[j].Lang
	})
	return
}

// LocalFallbackReply is shown when the completion service gave no
// answer.  It echoes the learner's most recent turn.
func LocalFallbackReply(msgs []client.ChatMsg) string {
	last := client.LastUser(msgs)
	return Spf("(local reply) I understood your message and will keep it short.\n"+
		"You said: %s\n"+
		"JP: あなたの入力は『%s』でした。", last, last)
}
