// Package voice renders provider markup (TwiML) for every caller-facing webhook.
package voice

import (
	"strconv"
	"strings"

	"github.com/ClareAI/astra-receptionist-service/internal/config"
	"github.com/twilio/twilio-go/twiml"
)

// ContentType is the media type of rendered markup
const ContentType = "application/xml"

// apologyMarkup is served when rendering itself fails
const apologyMarkup = `<?xml version="1.0" encoding="UTF-8"?><Response><Say>We are sorry, we are experiencing technical difficulties. Please try your call again later. Goodbye.</Say><Hangup/></Response>`

// Response accumulates verbs in order. The zero value is not usable; call NewResponse.
type Response struct {
	elements []twiml.Element
	spoken   []string
	ended    bool
	language string
}

// NewResponse starts an empty response
func NewResponse() *Response {
	return &Response{language: config.DefaultSpeechLanguage}
}

// Say speaks text. Empty text is skipped.
func (r *Response) Say(text string) *Response {
	if text == "" {
		return r
	}
	r.elements = append(r.elements, &twiml.VoiceSay{Message: text, Language: r.language})
	r.spoken = append(r.spoken, text)
	return r
}

// GatherSpeech speaks prompt inside a speech gather posting to action.
// DTMF is accepted too so a caller can press 0 for a person.
func (r *Response) GatherSpeech(action, prompt string) *Response {
	gather := &twiml.VoiceGather{
		Input:         "speech dtmf",
		Action:        action,
		Method:        "POST",
		Timeout:       strconv.Itoa(config.DefaultGatherTimeout),
		SpeechTimeout: config.DefaultSpeechTimeout,
		NumDigits:     "1",
		Language:      r.language,
	}
	if prompt != "" {
		gather.InnerElements = []twiml.Element{&twiml.VoiceSay{Message: prompt, Language: r.language}}
		r.spoken = append(r.spoken, prompt)
	}
	r.elements = append(r.elements, gather)
	return r
}

// GatherDigits speaks prompt inside a DTMF gather of numDigits posting to action
func (r *Response) GatherDigits(action, prompt string, numDigits int) *Response {
	gather := &twiml.VoiceGather{
		Input:     "dtmf",
		Action:    action,
		Method:    "POST",
		Timeout:   strconv.Itoa(config.DefaultGatherTimeout),
		NumDigits: strconv.Itoa(numDigits),
	}
	if prompt != "" {
		gather.InnerElements = []twiml.Element{&twiml.VoiceSay{Message: prompt, Language: r.language}}
		r.spoken = append(r.spoken, prompt)
	}
	r.elements = append(r.elements, gather)
	return r
}

// Dial rings number. action receives the outcome of the whole dial; statusCallback
// receives per-leg progress events.
func (r *Response) Dial(number, action, statusCallback, callerID string, timeout int) *Response {
	if timeout <= 0 {
		timeout = config.DefaultDialTimeout
	}
	target := &twiml.VoiceNumber{PhoneNumber: number}
	if statusCallback != "" {
		target.StatusCallback = statusCallback
		target.StatusCallbackEvent = "initiated ringing answered completed"
	}
	r.elements = append(r.elements, &twiml.VoiceDial{
		Action:        action,
		Method:        "POST",
		Timeout:       strconv.Itoa(timeout),
		CallerId:      callerID,
		InnerElements: []twiml.Element{target},
	})
	return r
}

// Record captures a voicemail. action receives the recording, transcribeCallback the transcription.
func (r *Response) Record(action, transcribeCallback string, maxLength int) *Response {
	if maxLength <= 0 {
		maxLength = config.DefaultVoicemailMaxSecs
	}
	rec := &twiml.VoiceRecord{
		Action:      action,
		Method:      "POST",
		MaxLength:   strconv.Itoa(maxLength),
		PlayBeep:    "true",
		FinishOnKey: "#",
	}
	if transcribeCallback != "" {
		rec.Transcribe = "true"
		rec.TranscribeCallback = transcribeCallback
	}
	r.elements = append(r.elements, rec)
	return r
}

// Redirect continues the call at url
func (r *Response) Redirect(url string) *Response {
	r.elements = append(r.elements, &twiml.VoiceRedirect{Url: url, Method: "POST"})
	return r
}

// Hangup ends the call. Verbs added afterwards are never reached.
func (r *Response) Hangup() *Response {
	r.elements = append(r.elements, &twiml.VoiceHangup{})
	r.ended = true
	return r
}

// Ends reports whether the response hangs up
func (r *Response) Ends() bool {
	return r.ended
}

// Transcript is every spoken text in order, as the caller hears it
func (r *Response) Transcript() string {
	return strings.Join(r.spoken, " ")
}

// Len is the number of top-level verbs
func (r *Response) Len() int {
	return len(r.elements)
}

// Render serializes the response
func (r *Response) Render() (string, error) {
	return twiml.Voice(r.elements)
}

// MustRender serializes the response and falls back to the static apology
func (r *Response) MustRender() string {
	out, err := r.Render()
	if err != nil {
		return apologyMarkup
	}
	return out
}

// SayAndHangup is the common terminal response
func SayAndHangup(text string) string {
	return NewResponse().Say(text).Hangup().MustRender()
}

// Apology is the response for any internal failure
func Apology() string {
	return SayAndHangup(config.MessageApology)
}
