package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"launchpad/internal/domain"
	"launchpad/internal/domain/model"
	"launchpad/internal/usecase"
)

// Rate-limit scopes guarding the public routes. ScopeAPI is keyed by client
// address and runs before authentication.
const (
	ScopeAPI         = "api"
	ScopePromoIssue  = "promo-issue"
	ScopePromoVerify = "promo-verify"
	ScopePromoRedeem = "promo-redeem"
	ScopeEngagement  = "engagement"
)

type Deps struct {
	Issue      usecase.PromoIssueUseCase
	Redeem     usecase.PromoRedeemUseCase
	Engagement usecase.EngagementUseCase
	RateLimit  usecase.RateLimitUseCase
	Auth       *AuthManager

	// Rules maps scope to rule; a scope without a rule is not limited.
	Rules              map[string]model.RateLimitRule
	TrustXForwardedFor bool
	RequestTimeout     time.Duration
	Logger             *zerolog.Logger
}

type Server struct {
	d     Deps
	keyFn KeyFunc
}

func NewServer(d Deps) *Server {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 10 * time.Second
	}
	return &Server{d: d, keyFn: ClientIP(d.TrustXForwardedFor)}
}

// Routes builds the full handler including the middleware chain.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.d.Logger), RequestLog(s.d.Logger), Timeout(s.d.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.limit(ScopeAPI), Authenticate(s.d.Auth))

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin())
			r.With(s.limit(ScopePromoIssue)).Post("/promo-codes", s.handleIssue)
			r.Get("/promo-codes", s.handleList)
			r.Post("/promo-codes/{id}/deactivate", s.handleDeactivate)
		})

		r.With(s.limit(ScopePromoVerify)).Post("/promo-codes/verify", s.handleVerify)
		r.With(s.limit(ScopePromoRedeem)).Post("/promo-codes/redeem", s.handleRedeem)
		r.With(s.limit(ScopeEngagement)).Post("/engagements", s.handleEngagement)
		r.With(RequireAdmin()).Post("/ratelimit/check", s.handleRateLimitCheck)
	})
	return r
}

func (s *Server) limit(scope string) func(http.Handler) http.Handler {
	rule, ok := s.d.Rules[scope]
	if !ok {
		return func(next http.Handler) http.Handler { return next }
	}
	return RateLimit(s.d.RateLimit, scope, rule, s.keyFn, s.d.Logger)
}

// ---- promo codes (admin) ----

type promoCodeDTO struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	DiscountAmount float64    `json:"discount_amount"`
	UsageLimit     *int       `json:"usage_limit"`
	UsedCount      int        `json:"used_count"`
	ExpiresAt      *time.Time `json:"expires_at"`
	IsActive       bool       `json:"is_active"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toPromoCodeDTO(p *model.PromoCode) promoCodeDTO {
	return promoCodeDTO{
		ID:             p.ID,
		Code:           p.Code,
		DiscountAmount: p.DiscountAmount,
		UsageLimit:     p.UsageLimit,
		UsedCount:      p.UsedCount,
		ExpiresAt:      p.ExpiresAt,
		IsActive:       p.IsActive,
		CreatedBy:      p.CreatedBy,
		CreatedAt:      p.CreatedAt,
	}
}

func toPromoCodeDTOs(ps []*model.PromoCode) []promoCodeDTO {
	out := make([]promoCodeDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPromoCodeDTO(p))
	}
	return out
}

type issueRequest struct {
	Count          int     `json:"count"`
	Prefix         string  `json:"prefix"`
	DiscountAmount float64 `json:"discount_amount"`
	UsageLimit     *int    `json:"usage_limit"`
	ValidityDays   int     `json:"validity_days"`
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, _ := IdentityFrom(r.Context())
	codes, err := s.d.Issue.Issue(r.Context(), model.IssueRequest{
		Count:          req.Count,
		Prefix:         req.Prefix,
		DiscountAmount: req.DiscountAmount,
		UsageLimit:     req.UsageLimit,
		ValidityDays:   req.ValidityDays,
		CreatedBy:      id.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"items": toPromoCodeDTOs(codes)})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := s.d.Issue.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toPromoCodeDTOs(list)})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	p, err := s.d.Issue.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromoCodeDTO(p))
}

// ---- promo codes (user) ----

type verifyRequest struct {
	Code string `json:"code"`
}

type verifyResponse struct {
	PromoCodeID       string  `json:"promo_code_id"`
	DiscountAmount    float64 `json:"discount_amount"`
	RemainingUses     *int    `json:"remaining_uses"`
	UserRemainingUses int     `json:"user_remaining_uses"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, _ := IdentityFrom(r.Context())
	v, err := s.d.Redeem.Verify(r.Context(), req.Code, id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		PromoCodeID:       v.PromoCodeID,
		DiscountAmount:    v.DiscountAmount,
		RemainingUses:     v.RemainingUses,
		UserRemainingUses: v.UserRemainingUses,
	})
}

type redeemRequest struct {
	Code      string `json:"code"`
	ProjectID string `json:"project_id"`
}

type redeemResponse struct {
	PromoCodeID    string  `json:"promo_code_id"`
	UsageID        string  `json:"usage_id"`
	DiscountAmount float64 `json:"discount_amount"`
	UsedCount      int     `json:"used_count"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, _ := IdentityFrom(r.Context())
	res, err := s.d.Redeem.Redeem(r.Context(), req.Code, id.UserID, req.ProjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redeemResponse{
		PromoCodeID:    res.PromoCodeID,
		UsageID:        res.UsageID,
		DiscountAmount: res.DiscountAmount,
		UsedCount:      res.UsedCount,
	})
}

// ---- engagements ----

type engagementRequest struct {
	SubjectID string `json:"subject_id"`
}

func (s *Server) handleEngagement(w http.ResponseWriter, r *http.Request) {
	var req engagementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, _ := IdentityFrom(r.Context())
	res, err := s.d.Engagement.RecordIfAbsent(r.Context(), id.UserID, req.SubjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]bool{"created": res.Created})
}

// ---- rate limit ----

type rateLimitCheckRequest struct {
	Identifier string `json:"identifier"`
	Limit      int    `json:"limit"`
	WindowMs   int64  `json:"window_ms"`
}

type rateLimitCheckResponse struct {
	Allowed           bool `json:"allowed"`
	Remaining         int  `json:"remaining"`
	RetryAfterSeconds int  `json:"retry_after_seconds"`
	Degraded          bool `json:"degraded,omitempty"`
}

func (s *Server) handleRateLimitCheck(w http.ResponseWriter, r *http.Request) {
	var req rateLimitCheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// bound before converting: a huge window_ms would overflow the duration
	if req.WindowMs <= 0 || req.WindowMs > model.MaxRateLimitWindow.Milliseconds() {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	res, err := s.d.RateLimit.Check(r.Context(), req.Identifier, req.Limit, time.Duration(req.WindowMs)*time.Millisecond)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rateLimitCheckResponse{
		Allowed:           res.Allowed,
		Remaining:         res.Remaining,
		RetryAfterSeconds: res.RetryAfterSeconds(),
		Degraded:          res.Degraded,
	})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.ErrInvalidArgument
	}
	return n, nil
}
