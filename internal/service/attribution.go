package service

import (
	"context"
	"regexp"

	"settlement-service/internal/models"
	"settlement-service/internal/retry"

	"go.uber.org/zap"
)

// affiliateCodePattern is the only shape an affiliate code may take. A code
// failing the check is treated as absent.
var affiliateCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// ValidAffiliateCode reports whether raw is a well-formed affiliate code.
func ValidAffiliateCode(raw string) bool {
	return affiliateCodePattern.MatchString(raw)
}

// ResolveAffiliate turns raw caller-supplied attribution into a valid
// affiliate identifier. Missing, malformed, unknown, and inactive codes all
// degrade silently to the sentinel: bad attribution data must never block a
// signup, contact, or payment.
func (s *AffiliateService) ResolveAffiliate(ctx context.Context, rawCode string) string {
	if rawCode == "" || !ValidAffiliateCode(rawCode) {
		return models.SentinelAffiliateID
	}

	aff, err := retry.DoValue(ctx, retry.Storage(), func(ctx context.Context) (*models.Affiliate, error) {
		return s.store.GetAffiliateByID(ctx, rawCode)
	})
	if err != nil {
		s.logger.Warn("Affiliate lookup failed, attributing to sentinel",
			zap.String("code", rawCode),
			zap.Error(err))
		return models.SentinelAffiliateID
	}

	if aff == nil || aff.Status != models.AffiliateStatusActive {
		return models.SentinelAffiliateID
	}
	return aff.ID
}
