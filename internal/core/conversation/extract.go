package conversation

import (
	"regexp"
	"strings"
	"unicode"
)

// nameLeadIns introduce a name and are always stripped
var nameLeadIns = []string{
	"my name is", "my name's", "the name is", "the name's", "name is", "name's",
	"this is", "it is", "it's", "i am", "i'm", "call me", "you can call me",
}

// nameFillers are stripped from the front of a name answer
var nameFillers = []string{"yes", "yeah", "sure", "ok", "okay", "hi", "hello", "um", "uh"}

// ambiguousFillers are also names ("So Yeon Kim", "Im Ji-ho"); they are only
// stripped when a lead-in follows
var ambiguousFillers = []string{"well", "so", "im"}

var namePrefixes = append(append([]string{}, nameLeadIns...), nameFillers...)

var honorifics = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "miss": true, "dr": true, "doctor": true, "sir": true, "madam": true,
}

// maxNameWords keeps first and last name
const maxNameWords = 2

// ExtractName strips filler phrases and honorifics and keeps the leading words.
// An empty result means no name was heard.
func ExtractName(text string) string {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || r == '\'' || r == '-' {
			return r
		}
		return ' '
	}, cleaned)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	for stripped := true; stripped; {
		stripped = false
		for _, p := range namePrefixes {
			if cleaned == p {
				return ""
			}
			if rest, ok := cutPrefix(cleaned, p); ok {
				cleaned, stripped = rest, true
			}
		}
		for _, p := range ambiguousFillers {
			if rest, ok := cutPrefix(cleaned, p); ok && startsWithLeadIn(rest) {
				cleaned, stripped = rest, true
			}
		}
	}

	var words []string
	for _, w := range strings.Fields(cleaned) {
		if honorifics[w] {
			continue
		}
		if w == "and" || w == "thanks" || w == "thank" {
			break
		}
		words = append(words, titleCase(w))
		if len(words) == maxNameWords {
			break
		}
	}
	return strings.Join(words, " ")
}

func cutPrefix(text, prefix string) (string, bool) {
	if !strings.HasPrefix(text, prefix+" ") {
		return text, false
	}
	return strings.TrimSpace(text[len(prefix):]), true
}

func startsWithLeadIn(text string) bool {
	for _, p := range nameLeadIns {
		if strings.HasPrefix(text, p+" ") {
			return true
		}
	}
	return false
}

func titleCase(w string) string {
	runes := []rune(w)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

var spokenDigits = map[string]string{
	"zero": "0", "oh": "0", "o": "0",
	"one": "1", "two": "2", "to": "2", "too": "2", "three": "3", "four": "4", "for": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
}

// ExtractPhone accepts 10 digits or 11 with a leading 1, written or spoken,
// and returns the E.164 form. An empty result means no valid number was heard.
func ExtractPhone(text string) string {
	if p := normalizePhone(digitsOnly(text)); p != "" {
		return p
	}
	return normalizePhone(spokenToDigits(text))
}

func digitsOnly(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// spokenToDigits reads number words and digit groups in order; "double five" is 55
func spokenToDigits(text string) string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	repeat := 1
	for _, tok := range tokens {
		switch tok {
		case "double":
			repeat = 2
			continue
		case "triple":
			repeat = 3
			continue
		}
		digit, ok := spokenDigits[tok]
		if !ok {
			if d := digitsOnly(tok); d != "" && d == tok {
				digit = d
			} else {
				repeat = 1
				continue
			}
		}
		b.WriteString(strings.Repeat(digit, repeat))
		repeat = 1
	}
	return b.String()
}

func normalizePhone(digits string) string {
	switch {
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits
	}
	return ""
}

var emailPattern = regexp.MustCompile(`(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)

var spokenJoin = regexp.MustCompile(`\s*([@.])\s*`)

var spokenEmail = strings.NewReplacer(" at ", "@", " dot ", ".", " underscore ", "_", " dash ", "-", " hyphen ", "-")

// ExtractEmail finds an address, also in its spoken form ("jane at example dot com")
func ExtractEmail(text string) string {
	if m := emailPattern.FindString(text); m != "" {
		return strings.ToLower(strings.TrimRight(m, "."))
	}
	spoken := spokenEmail.Replace(" " + strings.ToLower(strings.TrimSpace(text)) + " ")
	spoken = spokenJoin.ReplaceAllString(spoken, "$1")
	if m := emailPattern.FindString(spoken); m != "" {
		return strings.TrimRight(m, ".")
	}
	return ""
}
