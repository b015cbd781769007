package model

import "time"

// PlanType identifies the product a guardian pays for.
type PlanType string

const (
	PlanOneOffClass          PlanType = "one_off_class"
	PlanClassMonthly         PlanType = "class_monthly"
	PlanSubscriptionStandard PlanType = "subscription_standard"
	PlanSubscriptionGold     PlanType = "subscription_gold"
)

// Period is the granularity of a credit usage counter.
type Period string

const (
	PeriodNone  Period = "none"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// PlanScope says whether an entitlement bought with the plan is bound to one
// child or usable for every child of the guardian.
type PlanScope string

const (
	ScopeChild  PlanScope = "child"
	ScopeParent PlanScope = "parent"
)

// ValidityKind drives how long an entitlement created from a plan lasts.
type ValidityKind string

const (
	ValidityOneOff  ValidityKind = "one_off"
	ValidityMonthly ValidityKind = "monthly"
)

// CreditLimits bounds how many occurrences an entitlement may consume per
// usage bucket.
type CreditLimits struct {
	Period    Period `json:"period" bson:"period"`
	Amount    int    `json:"amount" bson:"amount"`
	Unlimited bool   `json:"unlimited,omitempty" bson:"unlimited,omitempty"`
	OneTime   bool   `json:"oneTime,omitempty" bson:"oneTime,omitempty"`
}

// Validity describes the lifetime of an entitlement created from a plan.
// Days overrides the yearly default for non-monthly kinds when positive.
type Validity struct {
	Kind ValidityKind `json:"kind,omitempty" bson:"kind,omitempty"`
	Days int          `json:"days,omitempty" bson:"days,omitempty"`
}

// Plan is a purchasable product.
//
// Fields:
//
//	ID         – plan identifier, also used as its type for the default catalog.
//	Type       – product family.
//	Name       – display name.
//	PriceCents – price in the smallest currency unit.
//	Currency   – ISO currency code.
//	Scope      – child or parent (defaults to child).
//	Limits     – credit limits copied onto created entitlements.
//	Validity   – lifetime of created entitlements.
//	IsActive   – inactive plans cannot be bought or finalized.
type Plan struct {
	ID         string       `json:"id" bson:"_id"`
	Type       PlanType     `json:"type" bson:"type"`
	Name       string       `json:"name" bson:"name"`
	PriceCents int64        `json:"priceCents" bson:"priceCents"`
	Currency   string       `json:"currency" bson:"currency"`
	Scope      PlanScope    `json:"scope,omitempty" bson:"scope,omitempty"`
	Limits     CreditLimits `json:"limits" bson:"limits"`
	Validity   Validity     `json:"validity" bson:"validity"`
	IsActive   bool         `json:"isActive" bson:"isActive"`
	CreatedAt  time.Time    `json:"createdAt" bson:"createdAt"`
}

// Normalize applies the catalog defaults to a plan read from storage.
func (p *Plan) Normalize() {
	if p.Scope == "" {
		p.Scope = ScopeChild
	}
	if p.Currency == "" {
		p.Currency = "PLN"
	}
	if p.Type == "" {
		p.Type = PlanType(p.ID)
	}
	if p.Limits.Period == "" {
		p.Limits.Period = PeriodNone
	}
}

// IsOneOff reports whether finalizing the plan creates reservations only.
func (p *Plan) IsOneOff() bool {
	return p.ID == string(PlanOneOffClass) || p.Type == PlanOneOffClass
}

// DefaultPlans returns the standard catalog in PLN cents.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID: string(PlanOneOffClass), Type: PlanOneOffClass, Name: "Single class",
			PriceCents: 4000, Currency: "PLN", Scope: ScopeChild,
			Limits:   CreditLimits{Period: PeriodNone, Amount: 1, OneTime: true},
			Validity: Validity{Kind: ValidityOneOff}, IsActive: true,
		},
		{
			ID: string(PlanClassMonthly), Type: PlanClassMonthly, Name: "Monthly classes (1x per week)",
			PriceCents: 14000, Currency: "PLN", Scope: ScopeChild,
			Limits:   CreditLimits{Period: PeriodMonth, Amount: 4},
			Validity: Validity{Kind: ValidityMonthly}, IsActive: true,
		},
		{
			ID: string(PlanSubscriptionStandard), Type: PlanSubscriptionStandard, Name: "Standard (2 classes per week)",
			PriceCents: 22000, Currency: "PLN", Scope: ScopeChild,
			Limits:   CreditLimits{Period: PeriodWeek, Amount: 2},
			Validity: Validity{Kind: ValidityMonthly}, IsActive: true,
		},
		{
			ID: string(PlanSubscriptionGold), Type: PlanSubscriptionGold, Name: "Gold (unlimited)",
			PriceCents: 35000, Currency: "PLN", Scope: ScopeParent,
			Limits:   CreditLimits{Period: PeriodMonth, Unlimited: true},
			Validity: Validity{Kind: ValidityMonthly}, IsActive: true,
		},
	}
}
