package config

import "time"

// ReceptionistConfig represents configuration for the receptionist webhook gateway
type ReceptionistConfig struct {
	Port string

	// PublicBaseURL is the externally reachable origin Twilio calls back to
	// (e.g. https://voice.example.com). Callback URLs in rendered markup are built from it.
	PublicBaseURL string

	// Twilio configuration
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioFromNumber   string // Sender for SMS notifications
	ValidateSignatures bool

	// OpenAI configuration
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIModel          string
	OpenAIEmbeddingModel string
	AIRequestsPerSecond  float64
	AIBurst              int

	// Semantic search
	RAGPersistPath string // Empty keeps the index in memory only
	RAGTopK        int

	// Google Cloud
	GCSRecordingBucket string
	PubSubProjectID    string
	PubSubTopic        string
	PubSubPubID        string

	// Admin API
	SecretKey string

	// Instance identifier for multi-pod monitoring and routing
	InstanceID string

	// Job worker configuration
	JobPollInterval time.Duration
	JobLease        time.Duration
	JobWorkers      int
}
