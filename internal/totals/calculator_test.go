package totals

import (
	"math"
	"testing"

	"github.com/tillpoint/tillsync/pkg/db/models"
	"github.com/tillpoint/tillsync/pkg/enums"
	pkgerrors "github.com/tillpoint/tillsync/pkg/errors"
)

func twentyDollarCart() models.LineItems {
	return models.LineItems{
		{Name: "Sandwich", Quantity: 2, UnitPriceCents: 750, Tippable: true},
		{Name: "Soda", Quantity: 1, UnitPriceCents: 500, EBTEligible: true},
	}
}

func TestComputePlainTax(t *testing.T) {
	got, err := Compute(twentyDollarCart(), Settings{TaxRate: 0.08})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got.SubtotalCents != 2000 {
		t.Fatalf("subtotal = %d, want 2000", got.SubtotalCents)
	}
	if got.TaxCents != 160 {
		t.Fatalf("tax = %d, want 160", got.TaxCents)
	}
	if got.CashTotalCents != 2160 || got.CardTotalCents != 2160 {
		t.Fatalf("cash = %d card = %d, want both 2160", got.CashTotalCents, got.CardTotalCents)
	}
	if got.SurchargeCents != 0 || got.SurchargeLabel != "" {
		t.Fatalf("unexpected surcharge %d %q", got.SurchargeCents, got.SurchargeLabel)
	}
	if got.EBTEligibleCents != 500 {
		t.Fatalf("ebt eligible = %d, want 500", got.EBTEligibleCents)
	}
}

func TestComputeDualPricing(t *testing.T) {
	got, err := Compute(twentyDollarCart(), Settings{
		TaxRate: 0.08,
		DualPricing: DualPricing{
			Enabled:            true,
			FlatFeeCents:       30,
			CCSurchargePercent: 3,
			Region:             "US",
		},
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got.SurchargeCents != 90 {
		t.Fatalf("surcharge = %d, want 90", got.SurchargeCents)
	}
	if got.CashTotalCents != 2160 {
		t.Fatalf("cash = %d, want 2160", got.CashTotalCents)
	}
	if got.CardTotalCents != 2250 {
		t.Fatalf("card = %d, want 2250", got.CardTotalCents)
	}
	if got.SurchargeLabel != labelCreditSurcharge {
		t.Fatalf("label = %q, want %q", got.SurchargeLabel, labelCreditSurcharge)
	}
}

func TestComputeRegionalSurchargeCaps(t *testing.T) {
	cases := []struct {
		name          string
		region        string
		percent       float64
		wantSurcharge int64
	}{
		{"us capped at four percent", "US", 10, 80},
		{"canada capped lower", "CA", 5, 48},
		{"unmapped region uncapped", "EU", 10, 200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compute(twentyDollarCart(), Settings{
				DualPricing: DualPricing{
					Enabled:            true,
					CCSurchargePercent: tc.percent,
					Region:             tc.region,
				},
			})
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if got.SurchargeCents != tc.wantSurcharge {
				t.Fatalf("surcharge = %d, want %d", got.SurchargeCents, tc.wantSurcharge)
			}
			if got.CardTotalCents != got.CashTotalCents+got.SurchargeCents {
				t.Fatalf("card %d != cash %d + surcharge %d", got.CardTotalCents, got.CashTotalCents, got.SurchargeCents)
			}
		})
	}
}

func TestComputeSurchargeLabels(t *testing.T) {
	cases := []struct {
		name   string
		region string
		mode   enums.PricingMode
		want   string
	}{
		{"canada label", "CA", enums.PricingModeSurcharge, labelCreditCardProcessingFee},
		{"cash discount label", "US", enums.PricingModeCashDiscount, labelNonCashAdjustment},
		{"default label", "US", enums.PricingModeSurcharge, labelCreditSurcharge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compute(twentyDollarCart(), Settings{
				DualPricing: DualPricing{Enabled: true, Region: tc.region, Mode: tc.mode},
			})
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if got.SurchargeLabel != tc.want {
				t.Fatalf("label = %q, want %q", got.SurchargeLabel, tc.want)
			}
		})
	}
}

func TestComputeManualDiscountAfterReward(t *testing.T) {
	got, err := Compute(twentyDollarCart(), Settings{
		DiscountPercent: 10,
		TaxRate:         0.08,
		Reward:          &Reward{Kind: RewardKindFixed, ValueCents: 500},
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	// 2000 - 500 reward = 1500, minus 10% manual = 1350 taxable
	if got.RewardDiscountCents != 500 {
		t.Fatalf("reward discount = %d, want 500", got.RewardDiscountCents)
	}
	if got.DiscountCents != 150 {
		t.Fatalf("manual discount = %d, want 150", got.DiscountCents)
	}
	if got.TaxableCents != 1350 {
		t.Fatalf("taxable = %d, want 1350", got.TaxableCents)
	}
	if got.TaxCents != 108 {
		t.Fatalf("tax = %d, want 108", got.TaxCents)
	}
}

func TestComputePercentRewardCapAndGate(t *testing.T) {
	reward := &Reward{
		Kind:             RewardKindPercent,
		Percent:          50,
		MaxDiscountCents: 300,
		MinPurchaseCents: 2500,
	}

	// below the minimum purchase the reward does not apply
	got, err := Compute(twentyDollarCart(), Settings{Reward: reward})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got.RewardDiscountCents != 0 {
		t.Fatalf("reward discount = %d, want 0 below minimum", got.RewardDiscountCents)
	}

	items := append(twentyDollarCart(), models.LineItem{Name: "Cake", Quantity: 1, UnitPriceCents: 1000})
	got, err = Compute(items, Settings{Reward: reward})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got.RewardDiscountCents != 300 {
		t.Fatalf("reward discount = %d, want capped 300", got.RewardDiscountCents)
	}
}

func TestComputeModifiersAndOpenItems(t *testing.T) {
	items := models.LineItems{
		{
			Name:           "Burger",
			Quantity:       2,
			UnitPriceCents: 1000,
			Modifiers:      []models.Modifier{{Name: "Cheese", PriceDeltaCents: 150}},
		},
		{Name: "Misc", Quantity: 1, IsOpenItem: true, UnitTotalCents: 499},
	}
	got, err := Compute(items, Settings{})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got.SubtotalCents != 2799 {
		t.Fatalf("subtotal = %d, want 2799", got.SubtotalCents)
	}
}

func TestComputeEmptyCart(t *testing.T) {
	got, err := Compute(nil, Settings{TaxRate: 0.08})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got != (Totals{}) {
		t.Fatalf("expected zero totals, got %+v", got)
	}
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name     string
		items    models.LineItems
		settings Settings
	}{
		{"negative quantity", models.LineItems{{Quantity: -1, UnitPriceCents: 100}}, Settings{}},
		{"negative price", models.LineItems{{Quantity: 1, UnitPriceCents: -100}}, Settings{}},
		{"nan tax rate", twentyDollarCart(), Settings{TaxRate: math.NaN()}},
		{"negative discount", twentyDollarCart(), Settings{DiscountPercent: -5}},
		{"infinite surcharge", twentyDollarCart(), Settings{DualPricing: DualPricing{CCSurchargePercent: math.Inf(1)}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compute(tc.items, tc.settings)
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestEBTSplit(t *testing.T) {
	cases := []struct {
		name                       string
		requested, eligible, total int64
		want                       int64
	}{
		{"requested within bounds", 500, 800, 2000, 500},
		{"clamped to eligible", 1000, 800, 2000, 800},
		{"clamped to total", 1000, 1500, 700, 700},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EBTSplit(tc.requested, tc.eligible, tc.total)
			if err != nil {
				t.Fatalf("EBTSplit: %v", err)
			}
			if got != tc.want {
				t.Fatalf("split = %d, want %d", got, tc.want)
			}
		})
	}

	if _, err := EBTSplit(-1, 100, 100); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for negative request, got %v", err)
	}
}
