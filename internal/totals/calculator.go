package totals

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tillpoint/tillsync/pkg/db/models"
	"github.com/tillpoint/tillsync/pkg/enums"
	pkgerrors "github.com/tillpoint/tillsync/pkg/errors"
)

// Regional caps on the credit-card surcharge percent. Anything outside the
// mapped regions is uncapped.
const (
	usSurchargeCapPercent = 4.0
	caSurchargeCapPercent = 2.4
)

const (
	labelCreditCardProcessingFee = "Credit Card Processing Fee"
	labelNonCashAdjustment       = "Non-Cash Adjustment"
	labelCreditSurcharge         = "Credit Surcharge"
)

// RewardKind distinguishes how a loyalty reward discounts the subtotal.
type RewardKind string

const (
	RewardKindFixed   RewardKind = "fixed"
	RewardKindPercent RewardKind = "percent"
)

// Reward is an optional loyalty discount applied before the manual discount.
type Reward struct {
	Kind             RewardKind
	ValueCents       int64   // fixed amount, when Kind == fixed
	Percent          float64 // percentage, when Kind == percent
	MaxDiscountCents int64   // cap for percentage rewards; 0 means uncapped
	MinPurchaseCents int64   // reward applies only at or above this subtotal
}

// DualPricing configures the cash/card price split.
type DualPricing struct {
	Enabled            bool
	FlatFeeCents       int64
	CCSurchargePercent float64
	Region             string
	Mode               enums.PricingMode
}

// Settings carries everything beyond the cart that totals depend on.
type Settings struct {
	DiscountPercent float64
	TaxRate         float64
	DualPricing     DualPricing
	Reward          *Reward
}

// Totals is the full monetary breakdown both terminals must agree on.
type Totals struct {
	SubtotalCents       int64
	RewardDiscountCents int64
	DiscountCents       int64
	TaxableCents        int64
	TaxCents            int64
	SurchargeCents      int64
	SurchargeLabel      string
	EBTEligibleCents    int64
	CashTotalCents      int64
	CardTotalCents      int64
}

// Compute derives the totals for a cart. It is pure and deterministic: both
// terminals run it against the same cart and settings and must agree to the
// cent. Negative or non-finite inputs are rejected, never clamped; the single
// exception is the regional surcharge cap.
func Compute(items models.LineItems, settings Settings) (Totals, error) {
	if err := validate(items, settings); err != nil {
		return Totals{}, err
	}
	if len(items) == 0 {
		return Totals{}, nil
	}

	subtotal := decimal.Zero
	ebtEligible := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromInt(item.EffectiveUnitCents()).Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
		if item.EBTEligible {
			ebtEligible = ebtEligible.Add(line)
		}
	}

	rewardDiscount := rewardDiscountFor(subtotal, settings.Reward)
	discounted := subtotal.Sub(rewardDiscount)

	manualDiscount := discounted.
		Mul(decimal.NewFromFloat(settings.DiscountPercent)).
		Div(decimal.NewFromInt(100)).
		Round(0)

	taxable := discounted.Sub(manualDiscount)
	tax := taxable.Mul(decimal.NewFromFloat(settings.TaxRate)).Round(0)

	surcharge := decimal.Zero
	label := ""
	if settings.DualPricing.Enabled {
		surcharge = surchargeFor(taxable, settings.DualPricing)
		label = surchargeLabelFor(settings.DualPricing)
	}

	cashTotal := taxable.Add(tax)
	cardTotal := cashTotal.Add(surcharge)

	return Totals{
		SubtotalCents:       subtotal.IntPart(),
		RewardDiscountCents: rewardDiscount.IntPart(),
		DiscountCents:       manualDiscount.IntPart(),
		TaxableCents:        taxable.IntPart(),
		TaxCents:            tax.IntPart(),
		SurchargeCents:      surcharge.IntPart(),
		SurchargeLabel:      label,
		EBTEligibleCents:    ebtEligible.IntPart(),
		CashTotalCents:      cashTotal.IntPart(),
		CardTotalCents:      cardTotal.IntPart(),
	}, nil
}

// EBTSplit computes the portion of an order total payable by benefit card.
// The split is drawn from the total, never added on top.
func EBTSplit(requestedCents, ebtEligibleCents, totalCents int64) (int64, error) {
	if requestedCents < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "ebt amount cannot be negative")
	}
	split := requestedCents
	if split > ebtEligibleCents {
		split = ebtEligibleCents
	}
	if split > totalCents {
		split = totalCents
	}
	return split, nil
}

func validate(items models.LineItems, settings Settings) error {
	for i, item := range items {
		if item.Quantity < 0 {
			return invalidTotals(fmt.Sprintf("line %d: negative quantity", i))
		}
		if item.UnitPriceCents < 0 || item.EffectiveUnitCents() < 0 {
			return invalidTotals(fmt.Sprintf("line %d: negative price", i))
		}
	}
	for name, value := range map[string]float64{
		"discount_percent":     settings.DiscountPercent,
		"tax_rate":             settings.TaxRate,
		"cc_surcharge_percent": settings.DualPricing.CCSurchargePercent,
	} {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return invalidTotals(fmt.Sprintf("%s is not finite", name))
		}
		if value < 0 {
			return invalidTotals(fmt.Sprintf("%s is negative", name))
		}
	}
	if settings.DualPricing.FlatFeeCents < 0 {
		return invalidTotals("flat fee is negative")
	}
	if r := settings.Reward; r != nil {
		if math.IsNaN(r.Percent) || math.IsInf(r.Percent, 0) || r.Percent < 0 {
			return invalidTotals("reward percent is invalid")
		}
		if r.ValueCents < 0 || r.MaxDiscountCents < 0 || r.MinPurchaseCents < 0 {
			return invalidTotals("reward amounts cannot be negative")
		}
	}
	return nil
}

func invalidTotals(reason string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid totals input").
		WithDetails(map[string]any{"reason": reason})
}

func rewardDiscountFor(subtotal decimal.Decimal, reward *Reward) decimal.Decimal {
	if reward == nil {
		return decimal.Zero
	}
	if subtotal.LessThan(decimal.NewFromInt(reward.MinPurchaseCents)) {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch reward.Kind {
	case RewardKindFixed:
		discount = decimal.NewFromInt(reward.ValueCents)
	case RewardKindPercent:
		discount = subtotal.
			Mul(decimal.NewFromFloat(reward.Percent)).
			Div(decimal.NewFromInt(100)).
			Round(0)
		if reward.MaxDiscountCents > 0 {
			limit := decimal.NewFromInt(reward.MaxDiscountCents)
			if discount.GreaterThan(limit) {
				discount = limit
			}
		}
	default:
		return decimal.Zero
	}

	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return discount
}

func surchargeFor(taxable decimal.Decimal, cfg DualPricing) decimal.Decimal {
	percent := cfg.CCSurchargePercent
	switch strings.ToUpper(strings.TrimSpace(cfg.Region)) {
	case "US":
		percent = math.Min(percent, usSurchargeCapPercent)
	case "CA":
		percent = math.Min(percent, caSurchargeCapPercent)
	}
	variable := taxable.
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return decimal.NewFromInt(cfg.FlatFeeCents).Add(variable)
}

func surchargeLabelFor(cfg DualPricing) string {
	if strings.EqualFold(strings.TrimSpace(cfg.Region), "CA") {
		return labelCreditCardProcessingFee
	}
	if cfg.Mode == enums.PricingModeCashDiscount {
		return labelNonCashAdjustment
	}
	return labelCreditSurcharge
}
