package handler

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/voice"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// AdminRole is the role claim required on admin API tokens
const AdminRole = "admin"

// RequestValidator checks a provider webhook signature. The form must be parsed.
type RequestValidator interface {
	ValidateRequest(r *http.Request) bool
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// CORSMiddleware adds CORS headers to all requests
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GlobalLoggingMiddleware logs all HTTP requests
func GlobalLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		logger.Base().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

// RecoveryMiddleware turns a panic into a response. Voice routes still get
// markup so the caller hears an apology instead of dead air.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Base().Error("panic in http handler",
				zap.String("path", r.URL.Path),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			if strings.HasPrefix(r.URL.Path, "/voice/") {
				writeMarkup(w, voice.Apology())
				return
			}
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

// TwilioSignatureMiddleware rejects webhooks whose signature does not match.
// A nil validator disables the check (local development).
func TwilioSignatureMiddleware(validator RequestValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				next.ServeHTTP(w, r)
				return
			}
			if err := r.ParseForm(); err != nil {
				http.Error(w, "Invalid form body", http.StatusBadRequest)
				return
			}
			if !validator.ValidateRequest(r) {
				logger.Base().Warn("rejected webhook with invalid signature",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("call_sid", r.PostForm.Get("CallSid")),
				)
				http.Error(w, "Invalid signature", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// APIKeyMiddleware validates the admin JWT from the X-API-Key header (or a
// bearer Authorization header). An empty secret disables the check.
func APIKeyMiddleware(secretKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip validation if no secret key is configured (for development)
			if secretKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			jwtToken := apiKeyFrom(r)
			if jwtToken == "" {
				logger.Base().Warn("missing api key for api request",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr))
				sendUnauthorizedResponse(w, "missing key")
				return
			}

			token, claims, err := parseAndValidateJWT(jwtToken, secretKey)
			if err != nil || token == nil || !token.Valid || claims == nil {
				logger.Base().Warn("invalid api key",
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				sendUnauthorizedResponse(w, "invalid key")
				return
			}

			if role, _ := claims["role"].(string); role != AdminRole {
				logger.Base().Warn("api key without admin role", zap.String("remote_addr", r.RemoteAddr))
				sendUnauthorizedResponse(w, "insufficient role")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func apiKeyFrom(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func sendUnauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error": %q}`, message)
}

// parseAndValidateJWT parses an HS256 token. Expiry is enforced by the
// library when the exp claim is present.
func parseAndValidateJWT(jwtToken, secretKey string) (*jwt.Token, jwt.MapClaims, error) {
	token, err := jwt.Parse(jwtToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		if alg, ok := token.Header["alg"].(string); !ok || alg != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secretKey), nil
	})
	if err != nil || !token.Valid {
		return token, nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return token, nil, fmt.Errorf("invalid token claims format")
	}
	return token, claims, nil
}

// writeMarkup writes a caller-facing response
func writeMarkup(w http.ResponseWriter, markup string) {
	w.Header().Set("Content-Type", voice.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, markup)
}
