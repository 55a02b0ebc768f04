package config

// IntentPattern is one keyword category of the intent classifier
type IntentPattern struct {
	Intent  string
	Pattern string
}

// IntentPatterns are tried in order; the first match wins and anything else is general.
var IntentPatterns = []IntentPattern{
	{Intent: "sales", Pattern: `\b(price|prices|pricing|cost|costs|quote|buy|purchase|sign up|estimate|how much|discount)\b`},
	{Intent: "service", Pattern: `\b(appointment|schedule|book|booking|reschedule|cancel|repair|install|installation|visit)\b`},
	{Intent: "support", Pattern: `\b(problem|issue|broken|not working|trouble|error|fix|stopped working)\b`},
	{Intent: "billing", Pattern: `\b(bill|billing|invoice|payment|pay|charge|charged|refund|insurance|balance)\b`},
	{Intent: "info", Pattern: `\b(hours|open|close|closed|location|address|where|directions|parking|website)\b`},
}

// IntentGeneral is the fallback intent
const IntentGeneral = "general"

// Caller phrasing patterns. All are matched case-insensitively against the trimmed utterance.
const (
	PatternHumanRequest = `\b((speak|talk)\s+(to|with)\s+(a\s+|an\s+|the\s+)?(someone|somebody|person|human|representative|agent|operator|manager|receptionist|real person|staff)|representative|operator|live (agent|person)|real person|human being|transfer me|connect me|put me through)\b`
	PatternDone         = `\b(that'?s (all|it|everything)|no,? (thanks|thank you)|nothing else|i'?m (good|done|all set)|all set|goodbye|bye)\b`
	PatternAffirmative  = `^\s*(yes|yeah|yep|yup|sure|correct|right|that'?s (right|correct)|absolutely|of course|ok|okay|please do|uh huh|definitely|sounds good)\b`
	PatternNegative     = `^\s*(no|nope|nah|not really|incorrect|wrong|that'?s (wrong|not right|incorrect))\b`
	PatternDecline      = `\b(no,? thanks|no,? thank you|never ?mind|i'?d rather not|don'?t want to|not interested|forget it|no need)\b`
	PatternBareNegative = `^\s*(no|nope|nah|not really)[\s,.!]*(thanks|thank you)?[\s.!]*$`
	PatternContinuation = `\b(yes|yeah|yep|sure|actually|also|one more|another question|i have a question|i do|there is)\b`
)
