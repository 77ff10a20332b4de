package model

import (
	"math"
	"strings"
	"time"

	"launchpad/internal/domain"
)

const (
	MinIssueCount     = 1
	MaxIssueCount     = 100
	MaxDiscountAmount = 1000
	MaxPrefixLength   = 20

	// DefaultMaxUsesPerUser caps redemptions of a single code by one user.
	DefaultMaxUsesPerUser = 10
)

// PromoCode is a discount voucher. Codes are stored uppercased and are
// never physically deleted; deactivation flips IsActive.
type PromoCode struct {
	ID             string
	Code           string
	DiscountAmount float64
	UsageLimit     *int // nil means unlimited
	UsedCount      int
	ExpiresAt      *time.Time
	IsActive       bool
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PromoCodeUsage is one successful redemption. Rows are append-only.
type PromoCodeUsage struct {
	ID          string
	PromoCodeID string
	UserID      string
	ProjectID   string
	UsedAt      time.Time
}

// NormalizeCode makes code lookups case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizePrefix uppercases prefix and rejects characters outside A-Z and 0-9.
func NormalizePrefix(prefix string) (string, error) {
	p := NormalizeCode(prefix)
	if p == "" || len(p) > MaxPrefixLength {
		return "", domain.ErrInvalidArgument
	}
	for i := 0; i < len(p); i++ {
		c := p[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", domain.ErrInvalidArgument
		}
	}
	return p, nil
}

func (p *PromoCode) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

// Exhausted reports whether the global usage cap has been reached.
func (p *PromoCode) Exhausted() bool {
	return p.UsageLimit != nil && p.UsedCount >= *p.UsageLimit
}

// RemainingUses returns nil for unlimited codes.
func (p *PromoCode) RemainingUses() *int {
	if p.UsageLimit == nil {
		return nil
	}
	left := *p.UsageLimit - p.UsedCount
	if left < 0 {
		left = 0
	}
	return &left
}

// CheckRedeemable applies the ordered rules that do not depend on per-user
// history: active, not expired, global cap not reached.
func (p *PromoCode) CheckRedeemable(now time.Time) error {
	if !p.IsActive {
		return domain.ErrPromoCodeNotFound
	}
	if p.IsExpired(now) {
		return domain.ErrPromoCodeExpired
	}
	if p.Exhausted() {
		return domain.ErrUsageLimitReached
	}
	return nil
}

// IssueRequest describes one batch of promo codes.
type IssueRequest struct {
	Count          int
	Prefix         string
	DiscountAmount float64
	UsageLimit     *int
	ValidityDays   int // 0 means the codes never expire
	CreatedBy      string
}

// Validate checks ranges and returns the normalized prefix.
func (r IssueRequest) Validate() (string, error) {
	if r.Count < MinIssueCount || r.Count > MaxIssueCount {
		return "", domain.ErrInvalidArgument
	}
	if !validDiscount(r.DiscountAmount) {
		return "", domain.ErrInvalidArgument
	}
	if r.UsageLimit != nil && *r.UsageLimit <= 0 {
		return "", domain.ErrInvalidArgument
	}
	if r.ValidityDays < 0 {
		return "", domain.ErrInvalidArgument
	}
	return NormalizePrefix(r.Prefix)
}

// validDiscount accepts whole cents in [0, MaxDiscountAmount]. The comparison
// is written so NaN fails it.
func validDiscount(d float64) bool {
	if !(d >= 0 && d <= MaxDiscountAmount) {
		return false
	}
	cents := d * 100
	return math.Abs(cents-math.Round(cents)) < 1e-6
}

// ExpiresAt computes the shared expiry for a batch issued at now.
func (r IssueRequest) ExpiresAt(now time.Time) *time.Time {
	if r.ValidityDays == 0 {
		return nil
	}
	t := now.AddDate(0, 0, r.ValidityDays)
	return &t
}

// Redemption is the outcome of a successful redeem.
type Redemption struct {
	PromoCodeID    string
	UsageID        string
	DiscountAmount float64
	UsedCount      int
}

// Verification is an advisory snapshot; it does not reserve a use.
type Verification struct {
	PromoCodeID       string
	DiscountAmount    float64
	RemainingUses     *int // nil means unlimited
	UserRemainingUses int
}
