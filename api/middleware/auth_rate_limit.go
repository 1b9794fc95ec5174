package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/medcart-backend/api/responses"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
	"github.com/angelmondragon/medcart-backend/pkg/logger"
)

// RateLimiterStore counts hits for a scope inside a fixed window and reports
// whether the caller is still under limit.
type RateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// AuthRateLimitPolicy throttles one credential endpoint (login, register) by
// client address and by the email in the request body.
type AuthRateLimitPolicy struct {
	Name       string
	Window     time.Duration
	IPLimit    int
	EmailLimit int
}

// NewAuthRateLimitPolicy returns a policy; a zero window or zero limits disable it.
func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{Name: name, Window: window, IPLimit: ipLimit, EmailLimit: emailLimit}
}

func (p AuthRateLimitPolicy) active() bool {
	return p.Window > 0 && (p.IPLimit > 0 || p.EmailLimit > 0)
}

// rateCheck is one counter evaluated for a request.
type rateCheck struct {
	dimension string
	subject   string
	limit     int
}

func (p AuthRateLimitPolicy) scope(c rateCheck) string {
	return p.Name + ":" + c.dimension + ":" + c.subject
}

// AuthRateLimit rejects credential requests with 429 once a client address or
// an email has used up its attempts for the window.
func AuthRateLimit(policy AuthRateLimitPolicy, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || !policy.active() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			checks, err := policy.checksFor(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}

			for _, c := range checks {
				ok, hits, err := store.FixedWindowAllow(ctx, policy.scope(c), int64(c.limit), policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
					return
				}
				if !ok {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"policy":    policy.Name,
							"dimension": c.dimension,
							"subject":   c.subject,
							"hits":      hits,
							"limit":     c.limit,
						}), "auth attempt throttled")
					}
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// checksFor builds the counters that apply to r. The body is buffered and
// restored so handlers can still decode it.
func (p AuthRateLimitPolicy) checksFor(r *http.Request) ([]rateCheck, error) {
	var checks []rateCheck
	if p.IPLimit > 0 {
		if ip := clientIP(r); ip != "" {
			checks = append(checks, rateCheck{dimension: "ip", subject: ip, limit: p.IPLimit})
		}
	}
	if p.EmailLimit <= 0 || r.Body == nil {
		return checks, nil
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if email := strings.ToLower(strings.TrimSpace(body.Email)); email != "" {
			sum := sha256.Sum256([]byte(email))
			checks = append(checks, rateCheck{dimension: "email", subject: hex.EncodeToString(sum[:]), limit: p.EmailLimit})
		}
	}
	return checks, nil
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
