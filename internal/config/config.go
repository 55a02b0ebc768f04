package config

// Call flow defaults shared by the gateway, flow engine and state machine.
const (
	DefaultTimezone          = "America/New_York"
	DefaultGatherTimeout     = 5  // seconds of silence before a gather gives up
	DefaultDialTimeout       = 25 // seconds to ring a transfer target
	DefaultVoicemailMaxSecs  = 120
	DefaultSpeechTimeout     = "auto"
	DefaultSpeechLanguage    = "en-US"
	DefaultMaxStepChain      = 16
	DefaultEmptySpeechRetry  = 1
	DefaultSummaryMaxTurns   = 60
	DefaultAIHistoryMaxTurns = 20
)

// Speaker values used in transcripts
const (
	SpeakerCaller    = "caller"
	SpeakerAssistant = "assistant"
)

// Message roles passed to the completion API
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"
	MessageRoleTool      = "tool"
)
