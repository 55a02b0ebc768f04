package conversation

import (
	"regexp"
	"strings"

	"github.com/ClareAI/astra-receptionist-service/internal/config"
)

// Classifier reads caller phrasing. PatternClassifier is the regex implementation;
// a model-backed classifier can replace it without touching the machine.
type Classifier interface {
	Intent(text string) string
	WantsHuman(text string) bool
	IsDone(text string) bool
	IsAffirmative(text string) bool
	IsNegative(text string) bool
	IsDecline(text string) bool
	WantsToContinue(text string) bool
}

type intentRule struct {
	intent  string
	pattern *regexp.Regexp
}

// PatternClassifier matches fixed pattern tables
type PatternClassifier struct {
	intents      []intentRule
	human        *regexp.Regexp
	done         *regexp.Regexp
	affirmative  *regexp.Regexp
	negative     *regexp.Regexp
	decline      *regexp.Regexp
	bareNegative *regexp.Regexp
	continuation *regexp.Regexp
}

// NewPatternClassifier compiles the configured pattern tables
func NewPatternClassifier() *PatternClassifier {
	c := &PatternClassifier{
		human:        mustCompile(config.PatternHumanRequest),
		done:         mustCompile(config.PatternDone),
		affirmative:  mustCompile(config.PatternAffirmative),
		negative:     mustCompile(config.PatternNegative),
		decline:      mustCompile(config.PatternDecline),
		bareNegative: mustCompile(config.PatternBareNegative),
		continuation: mustCompile(config.PatternContinuation),
	}
	for _, p := range config.IntentPatterns {
		c.intents = append(c.intents, intentRule{intent: p.Intent, pattern: mustCompile(p.Pattern)})
	}
	return c
}

func mustCompile(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + pattern)
}

func normalize(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "’", "'"))
}

// Intent returns the first matching category, or general
func (c *PatternClassifier) Intent(text string) string {
	text = normalize(text)
	for _, rule := range c.intents {
		if rule.pattern.MatchString(text) {
			return rule.intent
		}
	}
	return config.IntentGeneral
}

func (c *PatternClassifier) WantsHuman(text string) bool {
	return c.human.MatchString(normalize(text))
}

func (c *PatternClassifier) IsDone(text string) bool {
	return c.done.MatchString(normalize(text))
}

func (c *PatternClassifier) IsAffirmative(text string) bool {
	return c.affirmative.MatchString(normalize(text))
}

func (c *PatternClassifier) IsNegative(text string) bool {
	return c.negative.MatchString(normalize(text))
}

// IsDecline is a refusal to go on: an explicit phrase, or a negative that is
// the whole utterance. "No hot water since Monday" is not a decline.
func (c *PatternClassifier) IsDecline(text string) bool {
	text = normalize(text)
	return c.decline.MatchString(text) || c.bareNegative.MatchString(text)
}

func (c *PatternClassifier) WantsToContinue(text string) bool {
	text = normalize(text)
	if c.negative.MatchString(text) {
		return false
	}
	return c.continuation.MatchString(text)
}
