package voice

import (
	"testing"

	"github.com/ClareAI/astra-receptionist-service/internal/config"
	"github.com/ClareAI/astra-receptionist-service/internal/voice/voicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSayAndHangup(t *testing.T) {
	doc := voicetest.Parse(t, SayAndHangup(config.MessageInvalidSelection))
	assert.Equal(t, []string{"Say", "Hangup"}, doc.Names())
	assert.Equal(t, config.MessageInvalidSelection, doc.Spoken())
	assert.True(t, doc.HangsUp())
}

func TestApologyEscapesText(t *testing.T) {
	doc := voicetest.Parse(t, Apology())
	assert.Equal(t, config.MessageApology, doc.Spoken())
	assert.True(t, doc.HangsUp())
}

func TestGatherSpeechNestsPrompt(t *testing.T) {
	urls := NewURLBuilder("https://voice.example.com/")
	out, err := NewResponse().GatherSpeech(urls.Gather(3), "How can I help?").Redirect(urls.Gather(3)).Render()
	require.NoError(t, err)

	doc := voicetest.Parse(t, out)
	assert.Equal(t, []string{"Gather", "Redirect"}, doc.Names())
	gather := doc.Verbs[0]
	assert.Equal(t, "https://voice.example.com/voice/gather?seq=3", gather.Attr("action"))
	assert.Equal(t, "speech dtmf", gather.Attr("input"))
	assert.Equal(t, "How can I help?", doc.Spoken())
}

func TestDialCarriesStatusCallback(t *testing.T) {
	urls := NewURLBuilder("https://voice.example.com")
	out, err := NewResponse().
		Say(config.MessageTransferConnect).
		Dial("+15551230000", urls.TransferStatus(2, ""), urls.Status(PathDialStatus), "+15550001111", 0).
		Render()
	require.NoError(t, err)

	doc := voicetest.Parse(t, out)
	dial, ok := doc.Find("Dial")
	require.True(t, ok)
	assert.Equal(t, "https://voice.example.com/voice/transfer-status?seq=2", dial.Attr("action"))
	number, ok := doc.Find("Number")
	require.True(t, ok)
	assert.Equal(t, "+15551230000", number.Text)
	assert.Equal(t, "https://voice.example.com/voice/dial-status", number.Attr("statusCallback"))
}

func TestRecordTranscribes(t *testing.T) {
	urls := NewURLBuilder("https://voice.example.com")
	out, err := NewResponse().Record(urls.Status(PathRecordingStatus), urls.Status(PathRecordingStatus), 0).Render()
	require.NoError(t, err)

	rec, ok := voicetest.Parse(t, out).Find("Record")
	require.True(t, ok)
	assert.Equal(t, "true", rec.Attr("transcribe"))
	assert.Equal(t, "120", rec.Attr("maxLength"))
}

func TestCallbackURLs(t *testing.T) {
	urls := NewURLBuilder("https://voice.example.com")
	assert.Equal(t, "https://voice.example.com/voice/flow/menu?seq=1&step=main", urls.FlowMenu(1, "main"))
	assert.Equal(t, "https://voice.example.com/voice/lead/confirm?seq=7", urls.LeadConfirm(7))

	assert.Equal(t, 7, ParseSeq("7"))
	assert.Equal(t, -1, ParseSeq(""))
	assert.Equal(t, -1, ParseSeq("x"))
}

func TestTranscriptFollowsSpokenOrder(t *testing.T) {
	r := NewResponse().
		Say("Hello.").
		GatherDigits("https://voice.example.com/voice/flow/menu?seq=1", "Press 1.", 1).
		GatherSpeech("https://voice.example.com/voice/gather?seq=1", "").
		Hangup()
	assert.Equal(t, "Hello. Press 1.", r.Transcript())
	assert.True(t, r.Ends())
}
