// Package conversation provides intent parsing and user notification implementations.
package conversation

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
)

// Compile-time interface check.
var _ domain.IntentParser = (*KeywordParser)(nil)

// KeywordParser matches typed or transcribed commands to intents. Numbers
// may be digits or spoken words ("breathe box four").
type KeywordParser struct {
	log      *logger.Logger
	patterns []patternRule
}

type patternRule struct {
	regex  *regexp.Regexp
	intent domain.IntentType
}

// NewKeywordParser creates a keyword-based intent parser.
func NewKeywordParser(log *logger.Logger) *KeywordParser {
	p := &KeywordParser{log: log}
	// Rules are tried in order. The optional group captures arguments.
	p.patterns = []patternRule{
		{regexp.MustCompile(`^(?:help|h|\?|commands)$`), domain.IntentHelp},
		{regexp.MustCompile(`^(?:list|routines|patterns|ls)$`), domain.IntentList},
		{regexp.MustCompile(`^(?:quick ?calm|calm|panic|sos|calm me down)$`), domain.IntentQuickCalm},
		{regexp.MustCompile(`^(?:breathe|breathing|breath)(?:\s+(.+))?$`), domain.IntentBreathe},
		{regexp.MustCompile(`^(?:triangle gaze|gaze|triangle|eyes)(?:\s+(.+))?$`), domain.IntentGaze},
		{regexp.MustCompile(`^(?:warm ?up|voice warm ?up|hum)$`), domain.IntentWarmup},
		{regexp.MustCompile(`^(?:expose|exposure|micro ?exposure|prompt)(?:\s+(.+))?$`), domain.IntentExposure},
		{regexp.MustCompile(`^(?:practice|rehearse)(?:\s+(.+))?$`), domain.IntentPractice},
		{regexp.MustCompile(`^(?:next line|line|next|give me a line)(?:\s+(.+))?$`), domain.IntentNextLine},
		{regexp.MustCompile(`^(?:repeat|again|say again|say that again|r)$`), domain.IntentRepeatLine},
		{regexp.MustCompile(`^(?:glute|glutes|squeeze)$`), domain.IntentGlute},
		{regexp.MustCompile(`^(?:prep|prepare)(?:\s+(.+))?$`), domain.IntentPrep},
		{regexp.MustCompile(`^(?:timer|countdown|set timer)(?:\s+(.+))?$`), domain.IntentTimer},
		{regexp.MustCompile(`^(?:stop|cancel|end|enough)$`), domain.IntentStop},
		{regexp.MustCompile(`^(?:pause|pause voice|hold on|wait)$`), domain.IntentPauseVoice},
		{regexp.MustCompile(`^(?:resume|unpause|continue|go on)$`), domain.IntentResumeVoice},
		{regexp.MustCompile(`^(?:quiet|hush|shush|shut up|be quiet)$`), domain.IntentQuietVoice},
		{regexp.MustCompile(`^(?:status|where|progress|how long)$`), domain.IntentStatus},
		{regexp.MustCompile(`^(?:log|logs|history|journal)$`), domain.IntentLog},
		{regexp.MustCompile(`^(?:tips?|advice)(?:\s+(.+))?$`), domain.IntentTips},
		{regexp.MustCompile(`^(?:pra|pra card|card)$`), domain.IntentPRA},
		{regexp.MustCompile(`^(?:quit|exit|q|bye|goodbye)$`), domain.IntentQuit},
	}
	return p
}

// Parse converts user input into an intent. session is the running
// session, if any.
func (p *KeywordParser) Parse(ctx context.Context, input string, session *domain.Session) (*domain.Intent, error) {
	trimmed := normalizeInput(input)
	if trimmed == "" {
		return &domain.Intent{Type: domain.IntentUnknown}, nil
	}

	p.log.Debug("parsing input: %q", trimmed)

	for _, rule := range p.patterns {
		m := rule.regex.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		rest := ""
		if len(m) > 1 {
			rest = strings.TrimSpace(m[1])
		}
		intent := buildIntent(rule.intent, rest)
		p.log.Debug("matched intent: %s payload=%q args=%v", intent.Type, intent.Payload, intent.Args)
		return intent, nil
	}

	p.log.Debug("no match, returning unknown intent")
	return &domain.Intent{Type: domain.IntentUnknown, Payload: strings.TrimSpace(input)}, nil
}

// buildIntent splits the captured arguments the way each intent expects.
func buildIntent(t domain.IntentType, rest string) *domain.Intent {
	in := &domain.Intent{Type: t}
	words, nums := splitTrailingNumbers(rest)

	switch t {
	case domain.IntentBreathe:
		// breathe <pattern> [cycles]. Pattern IDs can be all digits ("478").
		in.Payload, in.Args = words, nums
		if words == "" && len(nums) > 0 && len(nums[0]) >= 3 {
			in.Payload, in.Args = nums[0], nil
			if len(nums) > 1 {
				in.Args = nums[1:]
			}
		}
	case domain.IntentPractice:
		// practice <meeting> [seconds] [rounds]
		in.Payload, in.Args = words, nums
	case domain.IntentGaze, domain.IntentExposure, domain.IntentPrep:
		in.Args = nums
		if words != "" {
			in.Payload = words
		}
	case domain.IntentTimer:
		// timer <duration> [label...]
		fields := strings.Fields(rest)
		if len(fields) > 0 {
			in.Payload = fields[0]
			if len(fields) > 1 {
				in.Args = []string{strings.Join(fields[1:], " ")}
			}
		}
	case domain.IntentNextLine, domain.IntentTips:
		in.Payload = rest
	}
	return in
}

// splitTrailingNumbers separates trailing numeric tokens from leading
// words. "box 4" gives ("box", ["4"]).
func splitTrailingNumbers(s string) (string, []string) {
	fields := strings.Fields(s)
	cut := len(fields)
	for cut > 0 && isDigits(fields[cut-1]) {
		cut--
	}
	var nums []string
	if cut < len(fields) {
		nums = append(nums, fields[cut:]...)
	}
	return strings.Join(fields[:cut], " "), nums
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "fifteen": 15, "twenty": 20,
	"thirty": 30, "forty": 40, "forty-five": 45, "sixty": 60, "ninety": 90,
}

// normalizeInput lowercases, strips punctuation that transcription adds,
// and turns spoken numbers into digits.
func normalizeInput(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".!,")
	fields := strings.Fields(s)
	for i, f := range fields {
		f = strings.Trim(f, ".,!")
		if n, ok := numberWords[f]; ok {
			f = strconv.Itoa(n)
		}
		fields[i] = f
	}
	return strings.Join(fields, " ")
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
