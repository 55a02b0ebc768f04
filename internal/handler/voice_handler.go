package handler

import (
	"context"
	"net/http"

	"github.com/ClareAI/astra-receptionist-service/internal/services/call"
	"github.com/ClareAI/astra-receptionist-service/internal/voice"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CallService is the webhook gateway behind the voice routes
type CallService interface {
	HandleIncoming(ctx context.Context, p call.CallbackParams) string
	HandleGather(ctx context.Context, p call.CallbackParams) string
	HandleIVR(ctx context.Context, p call.CallbackParams) string
	HandleFlowMenu(ctx context.Context, p call.CallbackParams) string
	HandleFlowStep(ctx context.Context, p call.CallbackParams) string
	HandleTransferStatus(ctx context.Context, p call.CallbackParams) string
	HandleLeadAnswer(ctx context.Context, p call.CallbackParams) string
	HandleLeadConfirm(ctx context.Context, p call.CallbackParams) string
	HandleRecording(ctx context.Context, p call.CallbackParams) string
	HandleDialStatus(ctx context.Context, p call.CallbackParams) error
	HandleCallStatus(ctx context.Context, p call.CallbackParams) error
}

// VoiceHandler serves the provider webhooks
type VoiceHandler struct {
	service   CallService
	validator RequestValidator
}

// NewVoiceHandler creates a voice handler. validator may be nil to skip signature checks.
func NewVoiceHandler(service CallService, validator RequestValidator) *VoiceHandler {
	return &VoiceHandler{service: service, validator: validator}
}

type markupFunc func(ctx context.Context, p call.CallbackParams) string

type statusFunc func(ctx context.Context, p call.CallbackParams) error

// SetupRoutes mounts every webhook. Caller-facing routes answer with markup,
// status routes with a bare status code.
func (h *VoiceHandler) SetupRoutes(router *mux.Router) {
	signed := TwilioSignatureMiddleware(h.validator)

	caller := map[string]markupFunc{
		voice.PathIncoming:        h.service.HandleIncoming,
		voice.PathGather:          h.service.HandleGather,
		voice.PathIVR:             h.service.HandleIVR,
		voice.PathFlowMenu:        h.service.HandleFlowMenu,
		voice.PathFlowStep:        h.service.HandleFlowStep,
		voice.PathTransferStatus:  h.service.HandleTransferStatus,
		voice.PathLeadAnswer:      h.service.HandleLeadAnswer,
		voice.PathLeadConfirm:     h.service.HandleLeadConfirm,
		voice.PathRecordingStatus: h.service.HandleRecording,
	}
	for path, fn := range caller {
		router.Handle(path, signed(h.markup(fn))).Methods(http.MethodPost)
	}

	status := map[string]statusFunc{
		voice.PathStatus:     h.service.HandleCallStatus,
		voice.PathDialStatus: h.service.HandleDialStatus,
	}
	for path, fn := range status {
		router.Handle(path, signed(h.status(fn))).Methods(http.MethodPost)
	}
}

func (h *VoiceHandler) markup(fn markupFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			logger.Base().Warn("invalid webhook form", zap.String("path", r.URL.Path), zap.Error(err))
			writeMarkup(w, voice.Apology())
			return
		}
		writeMarkup(w, fn(r.Context(), ParseCallbackParams(r)))
	})
}

func (h *VoiceHandler) status(fn statusFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form body", http.StatusBadRequest)
			return
		}
		p := ParseCallbackParams(r)
		if p.CallSid == "" {
			http.Error(w, "CallSid is required", http.StatusBadRequest)
			return
		}
		if err := fn(r.Context(), p); err != nil {
			http.Error(w, "Status callback failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// ParseCallbackParams reads provider fields from the form body and our own
// seq/step values from the query string. The form must be parsed.
func ParseCallbackParams(r *http.Request) call.CallbackParams {
	form := r.PostForm
	query := r.URL.Query()
	return call.CallbackParams{
		CallSid:       form.Get("CallSid"),
		ParentCallSid: form.Get("ParentCallSid"),
		AccountSid:    form.Get("AccountSid"),
		From:          form.Get("From"),
		To:            form.Get("To"),
		CallStatus:    form.Get("CallStatus"),
		CallDuration:  form.Get("CallDuration"),

		SpeechResult: form.Get("SpeechResult"),
		Confidence:   form.Get("Confidence"),
		Digits:       form.Get("Digits"),

		DialCallStatus:   form.Get("DialCallStatus"),
		DialCallSid:      form.Get("DialCallSid"),
		DialCallDuration: form.Get("DialCallDuration"),

		RecordingURL:        form.Get("RecordingUrl"),
		RecordingSid:        form.Get("RecordingSid"),
		RecordingDuration:   form.Get("RecordingDuration"),
		TranscriptionText:   form.Get("TranscriptionText"),
		TranscriptionStatus: form.Get("TranscriptionStatus"),

		Seq:  voice.ParseSeq(query.Get(voice.ParamSeq)),
		Step: query.Get(voice.ParamStep),
	}
}
