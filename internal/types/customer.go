package types

// CustomerType distinguishes individual shoppers from business accounts
type CustomerType string

const (
	CustomerTypeIndividual CustomerType = "individual"
	CustomerTypeBusiness   CustomerType = "business"
)

// Segment labels produced by the classification rules. The label set on a
// customer is always a union of rule outputs plus the derived labels.
const (
	SegmentNewCustomer     = "new_customer"
	SegmentFrequentBuyer   = "frequent_buyer"
	SegmentRegularCustomer = "regular_customer"
	SegmentOccasionalBuyer = "occasional_buyer"

	SegmentHighValue   = "high_value"
	SegmentMediumValue = "medium_value"
	SegmentLowValue    = "low_value"

	SegmentHighlyEngaged   = "highly_engaged"
	SegmentEngaged         = "engaged"
	SegmentLowEngagement   = "low_engagement"
	SegmentWhatsAppEnabled = "whatsapp_enabled"

	SegmentNeverPurchased = "never_purchased"
	SegmentActive         = "active"
	SegmentAtRisk         = "at_risk"
	SegmentInactive       = "inactive"

	SegmentBusinessAccount   = "business_account"
	SegmentLoyaltyTierPrefix = "loyalty_"
)
