package pricing

import (
	"strings"

	"github.com/lumenspa/bookingflow/internal/domain"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

// promoPercents maps named promo codes to a percentage discount of the base
// price. Codes are matched case-insensitively after trimming.
var promoPercents = map[string]int64{
	"WELCOME20": 20,
	"FIRST10":   10,
}

// Quote is a fully resolved price for a treatment and optional promo code.
// The tax line is informational only: the charged total is base minus
// discount, and tax is never added to it.
type Quote struct {
	BaseCents     int64  `json:"base_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TaxCents      int64  `json:"tax_cents"`
	TotalCents    int64  `json:"total_cents"`
	PromoCode     string `json:"promo_code,omitempty"`
}

// Engine computes prices from the treatment base price, the static promo
// table, and a configured informational tax rate.
type Engine struct {
	taxRateBasisPoints int64
	logger             *logging.Logger
}

// NewEngine constructs a pricing engine. taxRateBasisPoints of 825 means
// 8.25%.
func NewEngine(taxRateBasisPoints int, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{taxRateBasisPoints: int64(taxRateBasisPoints), logger: logger}
}

// Quote resolves the price for a treatment and optional promo code. An
// unmatched code resets the discount to zero and reports InvalidPromoCode;
// the returned quote is still usable, so the caller treats the error as
// guidance rather than a failure.
func (e *Engine) Quote(treatment domain.Treatment, promoCode string) (Quote, error) {
	base := treatment.PriceCents
	q := Quote{
		BaseCents:  base,
		TaxCents:   base * e.taxRateBasisPoints / 10000,
		TotalCents: base,
	}

	code := strings.ToUpper(strings.TrimSpace(promoCode))
	if code == "" {
		return q, nil
	}

	percent, ok := promoPercents[code]
	if !ok {
		e.logger.Info("unknown promo code, discount reset", "code", code)
		return q, &domain.InvalidPromoCode{Code: code}
	}

	q.PromoCode = code
	q.DiscountCents = base * percent / 100
	q.TotalCents = base - q.DiscountCents
	return q, nil
}
