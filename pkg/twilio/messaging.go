package twilio

import (
	"context"
	"fmt"

	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// MessageCreator is the slice of the Twilio REST API the SMS service needs
type MessageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

// SMSService sends notification texts from the service's Twilio number.
// Without credentials it is disabled and Send only logs.
type SMSService struct {
	api     MessageCreator
	from    string
	enabled bool
}

// NewSMSService creates an SMS sender. If accountSID, authToken or from is empty,
// the service is disabled.
func NewSMSService(accountSID, authToken, from string) *SMSService {
	if accountSID == "" || authToken == "" || from == "" {
		logger.Base().Warn("Twilio messaging credentials not provided, SMS notifications disabled")
		return &SMSService{enabled: false}
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken})
	return &SMSService{api: client.Api, from: from, enabled: true}
}

// NewSMSServiceWithCreator builds a sender over any MessageCreator
func NewSMSServiceWithCreator(creator MessageCreator, from string) *SMSService {
	return &SMSService{api: creator, from: from, enabled: creator != nil && from != ""}
}

// Enabled reports whether messages are actually sent
func (s *SMSService) Enabled() bool {
	return s != nil && s.enabled
}

// Send texts body to the given number and returns the message sid.
// A disabled service returns "" and no error.
func (s *SMSService) Send(ctx context.Context, to, body string) (string, error) {
	if !s.Enabled() {
		logger.Debug(ctx, "SMS disabled, dropping message", zap.String("to", to))
		return "", nil
	}
	if to == "" {
		return "", fmt.Errorf("sms recipient is empty")
	}

	params := &api.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send sms: %w", err)
	}
	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	logger.Info(ctx, "SMS sent", zap.String("to", to), zap.String("message_sid", sid))
	return sid, nil
}
