package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"launchpad/internal/domain"
	"launchpad/internal/domain/model"
	"launchpad/internal/infra/logging"
	"launchpad/internal/usecase"
)

// KeyFunc extracts the client part of a rate-limit identifier.
type KeyFunc func(r *http.Request) string

// ClientIP keys on the first X-Forwarded-For hop when trustXFF is set,
// otherwise on the RemoteAddr host.
func ClientIP(trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// RateLimit guards a route with the rule for scope. The identifier is
// scope + ":" + key, so scopes never share a bucket.
func RateLimit(uc usecase.RateLimitUseCase, scope string, rule model.RateLimitRule, keyFn KeyFunc, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := uc.Check(r.Context(), scope+":"+keyFn(r), rule.Limit, rule.Window)
			if err != nil {
				// only a misconfigured rule gets here
				logging.With(r.Context(), logger).Error().Err(err).Str("scope", scope).Msg("rate limit check rejected")
				next.ServeHTTP(w, r)
				return
			}
			setRateLimitHeaders(w, rule.Limit, res)
			if !res.Allowed {
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: errorDetail{
					Code:              domain.CodeRateLimited,
					Message:           "too many requests",
					RetryAfterSeconds: res.RetryAfterSeconds(),
				}})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, limit int, res model.RateLimitResult) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	if !res.Allowed {
		h.Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds()))
	}
}
