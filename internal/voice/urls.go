package voice

import (
	"net/url"
	"strconv"
	"strings"
)

// Webhook paths
const (
	PathIncoming        = "/voice/incoming"
	PathGather          = "/voice/gather"
	PathIVR             = "/voice/ivr"
	PathFlowMenu        = "/voice/flow/menu"
	PathFlowStep        = "/voice/flow/step"
	PathTransferStatus  = "/voice/transfer-status"
	PathDialStatus      = "/voice/dial-status"
	PathStatus          = "/voice/status"
	PathRecordingStatus = "/voice/recording-status"
	PathLeadAnswer      = "/voice/lead/answer"
	PathLeadConfirm     = "/voice/lead/confirm"
)

// Query parameters carried on callback URLs
const (
	ParamSeq  = "seq"
	ParamStep = "step"
)

// URLBuilder makes absolute callback URLs. Every URL that expects a caller-facing
// callback carries the session sequence number so a retried delivery can be told
// apart from a new turn.
type URLBuilder struct {
	base string
}

// NewURLBuilder creates a builder rooted at base (scheme and host, no trailing slash needed)
func NewURLBuilder(base string) URLBuilder {
	return URLBuilder{base: strings.TrimRight(base, "/")}
}

// Callback builds path with seq and extra query pairs (key, value, key, value...)
func (b URLBuilder) Callback(path string, seq int, pairs ...string) string {
	q := url.Values{}
	q.Set(ParamSeq, strconv.Itoa(seq))
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			q.Set(pairs[i], pairs[i+1])
		}
	}
	return b.base + path + "?" + q.Encode()
}

// Status builds a status-callback URL. Status callbacks are not caller-facing and carry no seq.
func (b URLBuilder) Status(path string) string {
	return b.base + path
}

// Gather is the AI speech gather action
func (b URLBuilder) Gather(seq int) string {
	return b.Callback(PathGather, seq)
}

// FlowMenu is the menu digit action for step
func (b URLBuilder) FlowMenu(seq int, stepID string) string {
	return b.Callback(PathFlowMenu, seq, ParamStep, stepID)
}

// FlowStep redirects into step
func (b URLBuilder) FlowStep(seq int, stepID string) string {
	return b.Callback(PathFlowStep, seq, ParamStep, stepID)
}

// TransferStatus is the dial action. stepID names the flow step that dialed, if any.
func (b URLBuilder) TransferStatus(seq int, stepID string) string {
	return b.Callback(PathTransferStatus, seq, ParamStep, stepID)
}

// GatherInfo is the speech action of a gather_info step
func (b URLBuilder) GatherInfo(seq int, stepID string) string {
	return b.Callback(PathGather, seq, ParamStep, stepID)
}

// RecordingAction receives the finished voicemail
func (b URLBuilder) RecordingAction(seq int) string {
	return b.Callback(PathRecordingStatus, seq)
}

// LeadAnswer collects the answer to the current lead question
func (b URLBuilder) LeadAnswer(seq int) string {
	return b.Callback(PathLeadAnswer, seq)
}

// LeadConfirm collects the yes/no confirmation of a pending answer
func (b URLBuilder) LeadConfirm(seq int) string {
	return b.Callback(PathLeadConfirm, seq)
}

// ParseSeq reads the seq query value. Missing or malformed values yield -1,
// which callers treat as "not a replay check".
func ParseSeq(raw string) int {
	if raw == "" {
		return -1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return -1
	}
	return n
}
