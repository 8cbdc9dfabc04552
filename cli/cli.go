package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/shlex"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/speakstudio"
	"github.com/stevegt/speakstudio/client"
	conf "github.com/stevegt/speakstudio/config"
	"github.com/stevegt/speakstudio/openai"
	"github.com/stevegt/speakstudio/prompts"
	"github.com/stevegt/speakstudio/shadowing"
	"github.com/stevegt/speakstudio/tokens"
	"github.com/stevegt/speakstudio/transcript"
	"github.com/stevegt/speakstudio/usage"
)

// cliArgs is the kong grammar.  Cli builds a fresh one per call so
// that flag values don't leak between invocations.
type cliArgs struct {
	Chat struct {
		Lang string `short:"l" default:"en" help:"Practice language (en or ko)."`
	} `cmd:"" help:"Start a daily conversation on stdin."`
	Roleplay struct {
		Scenario string `arg:"" help:"Scenario key; see the scenarios command."`
		Tone     string `short:"t" default:"standard" help:"Partner's tone: formal, standard or casual."`
	} `cmd:"" help:"Start a roleplay conversation on stdin."`
	Ask struct {
		Text   []string `arg:"" optional:"" help:"Message to send; '-' or nothing reads stdin."`
		Sysmsg string   `short:"s" help:"System message to send ahead of the text."`
	} `cmd:"" help:"Send one message and print the reply on stdout."`
	Shadow struct {
		Lang  string `short:"l" default:"en" help:"Corpus language (en or ko)."`
		Level string `default:"easy" help:"Corpus level: easy, normal or hard."`
		Index int    `short:"i" default:"-1" help:"First sentence to practice; -1 picks one at random."`
		Count int    `short:"n" default:"1" help:"Number of sentences to practice."`
	} `cmd:"" help:"Type back reference sentences and get a similarity score."`
	Scenarios  struct{} `cmd:"" help:"List the roleplay scenarios."`
	Models     struct{} `cmd:"" help:"List all available models."`
	Tc         struct{} `cmd:"" help:"Calculate the token count of stdin."`
	Usage      struct {
		Reset string `placeholder:"CONVERSATION" help:"Forget the message counter for one conversation."`
	} `cmd:"" help:"Show usage counters."`
	ConfigShow struct{} `cmd:"" name:"config" help:"Show the resolved settings."`
	Version    struct{} `cmd:"" help:"Show version of speakstudio."`

	Model      string `short:"m" help:"Model to use instead of OPENAI_MODEL."`
	Db         string `help:"Usage database path (default $SPEAKSTUDIO_DB or .speakstudio.db)."`
	Transcript string `help:"Transcript path (default $SPEAKSTUDIO_TRANSCRIPT or .speakstudio.log)."`
	NoLog      bool   `help:"Don't record usage counters or the transcript."`
	Verbose    bool   `short:"v" help:"Show debug and progress information on stderr."`
}

// Config contains the configuration for the speakstudio CLI
type Config struct {
	// Name is the name of the program
	Name string
	// Description is a short description of the program
	Description string
	// Version is the version of the program
	Version string
	// Exit is the function to call to exit the program
	Exit   func(int)
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Chat answers chat turns.  nil means openai.Default().
	Chat client.ChatClient
	// Models lists model IDs.  nil means the Chat client's ListModels,
	// if it has one.
	Models func(ctx context.Context) ([]string, error)
	// Settings overrides the environment.  nil means conf.Load().
	Settings *conf.Config
}

// NewConfig returns a new Config struct with default values populated
func NewConfig() *Config {
	return &Config{
		Name:        "speakstudio",
		Description: "Practice conversations with an OpenAI-compatible chat model.",
		Version:     speakstudio.CodeVersion(),
		Exit:        func(i int) { os.Exit(i) },
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// Cli parses the given arguments and then executes the appropriate
// subcommand.
func Cli(args []string, config *Config) (rc int, err error) {
	defer Return(&err)

	var cli cliArgs
	options := []kong.Option{
		kong.Name(config.Name),
		kong.Description(config.Description),
		kong.Exit(config.Exit),
		kong.Writers(config.Stdout, config.Stderr),
		kong.Vars{
			"version": config.Version,
		},
	}

	parser, err := kong.New(&cli, options...)
	Ck(err)
	ctx, err := parser.Parse(args)
	if err != nil {
		Fpf(config.Stderr, "Error: %v\n", err)
		rc = 1
		err = nil
		return
	}

	if cli.Verbose {
		os.Setenv("DEBUG", "1")
	}

	settings := config.Settings
	if settings == nil {
		settings = conf.Load()
	}
	if cli.Db != "" {
		settings.DbPath = cli.Db
	}
	if cli.Transcript != "" {
		settings.Transcript = cli.Transcript
	}

	chat := config.Chat
	if chat == nil {
		chat = openai.Default()
	}

	cmd := ctx.Command()
	Debug("cmd: %s", cmd)
	verb := ""
	if words := strings.Fields(cmd); len(words) > 0 {
		verb = words[0]
	}

	s := &session{
		config:   config,
		settings: settings,
		chat:     chat,
		model:    cli.Model,
	}
	switch verb {
	case "chat", "roleplay", "ask":
		if !cli.NoLog {
			s.open()
			defer s.close()
		}
	}

	switch verb {
	case "":
		// kong printed help
		return
	case "chat":
		s.startDaily(cli.Chat.Lang)
		err = s.repl()
		Ck(err)
	case "roleplay":
		var tone prompts.Tone
		tone, err = prompts.ParseTone(cli.Roleplay.Tone)
		Ck(err)
		err = s.loadCatalog()
		Ck(err)
		var sc *prompts.Scenario
		sc, err = s.catalog.Find(cli.Roleplay.Scenario)
		if err != nil {
			Fpf(config.Stderr, "Error: %v\n", err)
			rc = 1
			err = nil
			return
		}
		s.startRoleplay(sc, tone)
		err = s.repl()
		Ck(err)
	case "ask":
		text := strings.Join(cli.Ask.Text, " ")
		if text == "" || text == "-" {
			var buf []byte
			buf, err = io.ReadAll(config.Stdin)
			Ck(err)
			text = string(buf)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			Fpf(config.Stderr, "Error: ask needs a message\n")
			rc = 1
			return
		}
		var initial []client.ChatMsg
		if cli.Ask.Sysmsg != "" {
			initial = append(initial, client.ChatMsg{Role: client.RoleSystem, Content: cli.Ask.Sysmsg})
		}
		s.reset("ask", initial)
		reply, _ := s.say(text)
		Fpf(config.Stdout, "%s\n", reply)
	case "shadow":
		err = s.shadow(cli.Shadow.Lang, cli.Shadow.Level, cli.Shadow.Index, cli.Shadow.Count)
		if err != nil {
			Fpf(config.Stderr, "Error: %v\n", err)
			rc = 1
			err = nil
			return
		}
	case "scenarios":
		err = s.loadCatalog()
		Ck(err)
		for _, sc := range s.catalog.List() {
			Fpf(config.Stdout, "%-16s %-3s %s\n", sc.Key, sc.Lang, sc.Label)
		}
	case "models":
		lister := config.Models
		if lister == nil {
			oc, ok := chat.(*openai.Client)
			if !ok {
				Fpf(config.Stderr, "Error: this chat client can't list models\n")
				rc = 1
				return
			}
			lister = oc.ListModels
		}
		mctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		var models []string
		models, err = lister(mctx)
		Ck(err)
		for _, model := range models {
			Fpf(config.Stdout, "%s\n", model)
		}
	case "tc":
		// get content from stdin and emit token count on stdout
		var buf []byte
		buf, err = io.ReadAll(config.Stdin)
		Ck(err)
		in := strings.TrimSpace(string(buf))
		var count int
		count, err = tokens.Count(in)
		Ck(err)
		Fpf(config.Stdout, "%d\n", count)
	case "usage":
		var store *usage.Store
		store, err = usage.Open(settings.DbPath)
		Ck(err)
		defer store.Close()
		if cli.Usage.Reset != "" {
			var n uint64
			n, err = store.Reset(cli.Usage.Reset)
			Ck(err)
			Fpf(config.Stdout, "reset %s (was %d messages)\n", cli.Usage.Reset, n)
			return
		}
		err = showUsage(config.Stdout, store)
		Ck(err)
	case "config":
		showSettings(config.Stdout, settings)
	case "version":
		Fpf(config.Stdout, "speakstudio version %s\n", speakstudio.CodeVersion())
		Fpf(config.Stdout, "usage db schema version %d\n", usage.SchemaVersion)
	default:
		Fpf(config.Stderr, "Error: unrecognized command: %s\n", cmd)
		rc = 1
		return
	}

	return
}

func showUsage(w io.Writer, store *usage.Store) (err error) {
	defer Return(&err)
	totals, err := store.Totals()
	Ck(err)
	for _, name := range []string{usage.Calls, usage.Replies, usage.Fallbacks, usage.PromptTokens, usage.ReplyTokens} {
		Fpf(w, "%-14s %d\n", name, totals[name])
	}
	convs, err := store.Conversations()
	Ck(err)
	if len(convs) > 0 {
		Fpf(w, "\nmessages per conversation:\n")
	}
	for _, k := range usage.Sorted(convs) {
		Fpf(w, "  %-32s %d\n", k, convs[k])
	}
	return
}

func showSettings(w io.Writer, s *conf.Config) {
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = "(library default)"
	}
	scenarios := s.Scenarios
	if scenarios == "" {
		scenarios = "(built-in only)"
	}
	Fpf(w, "api key:     %s\n", s.MaskedKey())
	Fpf(w, "model:       %s\n", s.Model)
	Fpf(w, "temperature: %.2f\n", s.Temperature)
	Fpf(w, "base url:    %s\n", baseURL)
	Fpf(w, "usage db:    %s\n", s.DbPath)
	Fpf(w, "transcript:  %s\n", s.Transcript)
	Fpf(w, "scenarios:   %s\n", scenarios)
}

// session is one conversation plus the collaborators that record it.
// store and log are nil when recording is off or unavailable.
type session struct {
	config   *Config
	settings *conf.Config
	chat     client.ChatClient
	model    string

	catalog  *prompts.Catalog
	scenario *prompts.Scenario
	tone     prompts.Tone
	lang     string

	conv    string
	initial []client.ChatMsg
	msgs    []client.ChatMsg

	store *usage.Store
	log   *transcript.Log
}

func (s *session) warn(format string, args ...interface{}) {
	Fpf(s.config.Stderr, "warning: "+format+"\n", args...)
}

// open attaches the usage store and transcript.  Failures only
// disable recording.
func (s *session) open() {
	store, err := usage.Open(s.settings.DbPath)
	if err != nil {
		s.warn("usage counters disabled: %v", err)
	} else {
		s.store = store
	}
	if s.settings.Transcript != "" {
		s.log = transcript.New(s.settings.Transcript)
		Debug("transcript %s session %s", s.log.Path(), s.log.Session)
	}
}

func (s *session) close() {
	if s.store != nil {
		err := s.store.Close()
		if err != nil {
			s.warn("closing usage db: %v", err)
		}
		s.store = nil
	}
}

func (s *session) loadCatalog() (err error) {
	if s.catalog != nil {
		return
	}
	s.catalog, err = prompts.LoadCatalog(s.settings.Scenarios)
	return
}

func (s *session) reset(conv string, initial []client.ChatMsg) {
	s.conv = conv
	s.initial = initial
	s.msgs = append([]client.ChatMsg(nil), initial...)
}

func (s *session) startDaily(lang string) {
	s.lang = prompts.GetLang(lang).Code
	s.scenario = nil
	s.reset("daily::"+s.lang, prompts.DailyConversation(s.lang))
	Fpf(s.config.Stdout, "Daily conversation (%s). Type /help for commands.\n", prompts.GetLang(s.lang).Label)
}

func (s *session) startRoleplay(sc *prompts.Scenario, tone prompts.Tone) {
	s.scenario = sc
	s.tone = tone
	s.lang = prompts.GetLang(sc.Lang).Code
	s.reset(prompts.ConversationKey(sc, tone), sc.Conversation(tone))
	Fpf(s.config.Stdout, "Roleplay: %s (%s). Type /help for commands.\n", sc.Label, tone)
	if sc.Opening != "" {
		Fpf(s.config.Stdout, "Try: %s\n", sc.Opening)
	}
}

// say sends text as the next user turn and returns the reply.  When
// the completion service has no answer the reply is generated locally
// and answered is false.
func (s *session) say(text string) (reply string, answered bool) {
	s.msgs = append(s.msgs, client.ChatMsg{Role: client.RoleUser, Content: text})
	reply, answered = s.chat.Chat(s.msgs, s.model).Get()
	if !answered {
		if oc, ok := s.chat.(*openai.Client); ok {
			Debug("no answer from %s client: %v", oc.State(), oc.LastError())
		}
		reply = prompts.LocalFallbackReply(s.msgs)
	}
	asst := client.ChatMsg{Role: client.RoleAssistant, Content: reply}
	s.record(asst, answered)
	s.msgs = append(s.msgs, asst)
	return
}

// record updates the usage counters and transcript for the turn that
// ends with asst.  s.msgs must not include asst yet.
func (s *session) record(asst client.ChatMsg, answered bool) {
	if s.store != nil {
		turn := usage.Turn{Conversation: s.conv, Answered: answered}
		var err error
		turn.PromptTokens, err = tokens.CountMessages(s.msgs)
		if err == nil && answered {
			turn.ReplyTokens, err = tokens.Count(asst.Content)
		}
		if err != nil {
			Debug("token count: %v", err)
		}
		n, err := s.store.Record(turn)
		if err != nil {
			s.warn("usage: %v", err)
		} else {
			Debug("%s: %d messages", s.conv, n)
		}
	}
	if s.log != nil {
		err := s.log.Append(s.conv, !answered, s.msgs[len(s.msgs)-1], asst)
		if err != nil {
			s.warn("transcript: %v", err)
		}
	}
}

// repl reads user turns from stdin until EOF or /quit.
func (s *session) repl() (err error) {
	scanner := bufio.NewScanner(s.config.Stdin)
	for {
		Fpf(s.config.Stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := s.command(line)
			if err != nil {
				Fpf(s.config.Stderr, "Error: %v\n", err)
			}
			if quit {
				break
			}
			continue
		}
		reply, _ := s.say(line)
		Fpf(s.config.Stdout, "%s\n", reply)
	}
	Fpf(s.config.Stdout, "\n")
	return scanner.Err()
}

const replHelp = `/help                      show this help
/quit, /exit               leave
/reset                     start the conversation over
/model [name]              show or set the model
/daily [lang]              switch to daily conversation
/scenario <key> [tone]     switch to a roleplay scenario
/tone <tone>               restart the roleplay in another tone
/history                   show the conversation so far
/count                     show the message counter for this conversation
`

// command runs a slash-command typed at the prompt.
func (s *session) command(line string) (quit bool, err error) {
	args, err := shlex.Split(line)
	if err != nil {
		return
	}
	if len(args) == 0 {
		return
	}
	out := s.config.Stdout
	switch args[0] {
	case "/quit", "/exit":
		quit = true
	case "/help":
		Fpf(out, "%s", replHelp)
	case "/reset":
		s.reset(s.conv, s.initial)
		Fpf(out, "conversation reset\n")
	case "/model":
		if len(args) > 1 {
			s.model = args[1]
		}
		model := s.model
		if model == "" {
			model = s.settings.Model + " (default)"
		}
		Fpf(out, "model: %s\n", model)
	case "/daily":
		lang := s.lang
		if len(args) > 1 {
			lang = args[1]
		}
		s.startDaily(lang)
	case "/scenario":
		if len(args) < 2 {
			err = fmt.Errorf("usage: /scenario <key> [tone]")
			return
		}
		tone := prompts.ToneStandard
		if len(args) > 2 {
			tone, err = prompts.ParseTone(args[2])
			if err != nil {
				return
			}
		}
		err = s.loadCatalog()
		if err != nil {
			return
		}
		var sc *prompts.Scenario
		sc, err = s.catalog.Find(args[1])
		if err != nil {
			return
		}
		s.startRoleplay(sc, tone)
	case "/tone":
		if s.scenario == nil {
			err = fmt.Errorf("/tone only applies to roleplay")
			return
		}
		if len(args) < 2 {
			Fpf(out, "tone: %s\n", s.tone)
			return
		}
		var tone prompts.Tone
		tone, err = prompts.ParseTone(args[1])
		if err != nil {
			return
		}
		s.startRoleplay(s.scenario, tone)
	case "/history":
		for _, msg := range s.msgs {
			if msg.Role == client.RoleSystem {
				continue
			}
			Fpf(out, "%s: %s\n", msg.Role, msg.Content)
		}
	case "/count":
		if s.store == nil {
			err = fmt.Errorf("usage counters are off")
			return
		}
		var n uint64
		n, err = s.store.Messages(s.conv)
		if err != nil {
			return
		}
		Fpf(out, "%s: %d messages\n", s.conv, n)
	default:
		err = fmt.Errorf("unknown command %s; try /help", args[0])
	}
	return
}

// shadow runs count rounds of shadowing practice, reading one attempt
// per sentence from stdin.
func (s *session) shadow(lang, level string, index, count int) (err error) {
	sentences, err := shadowing.Sentences(lang, level)
	if err != nil {
		return
	}
	if index < 0 {
		index = rand.Intn(len(sentences))
	}
	if count < 1 {
		count = 1
	}
	out := s.config.Stdout
	scanner := bufio.NewScanner(s.config.Stdin)
	var total float64
	var done int
	for i := 0; i < count; i++ {
		ref, err := shadowing.Pick(lang, level, index+i)
		if err != nil {
			return err
		}
		Fpf(out, "say: %s\n> ", ref)
		if !scanner.Scan() {
			Fpf(out, "\n")
			break
		}
		attempt := scanner.Text()
		score := shadowing.Score(ref, attempt)
		total += score
		done++
		Fpf(out, "score: %.0f%%\n", score*100)
		if score < 1 {
			Fpf(out, "diff:  %s\n", shadowing.Diff(ref, attempt))
		}
	}
	if done > 1 {
		Fpf(out, "average: %.0f%% over %d sentences\n", total/float64(done)*100, done)
	}
	return scanner.Err()
}
