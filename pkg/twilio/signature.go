package twilio

import (
	"net/http"
	"strings"

	"github.com/twilio/twilio-go/client"
)

// SignatureHeader carries the provider's HMAC over the callback URL and form body
const SignatureHeader = "X-Twilio-Signature"

// SignatureValidator checks webhook signatures against the account auth token
type SignatureValidator struct {
	validator client.RequestValidator
	publicURL string
}

// NewSignatureValidator creates a validator. publicURL is the scheme and host the
// provider was configured with; requests behind a proxy see a different host.
func NewSignatureValidator(authToken, publicURL string) *SignatureValidator {
	return &SignatureValidator{
		validator: client.NewRequestValidator(authToken),
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// ValidateRequest reports whether r carries a valid signature. The form must
// be parsed already.
func (v *SignatureValidator) ValidateRequest(r *http.Request) bool {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return v.validator.Validate(v.publicURL+r.URL.RequestURI(), params, signature)
}
