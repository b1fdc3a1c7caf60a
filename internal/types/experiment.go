package types

// Names of the experiments every abandoned cart is enrolled into
const (
	ExperimentTiming        = "timing"
	ExperimentMessageStyle  = "message_style"
	ExperimentDiscountOffer = "discount_offer"
)

// Variants of the timing experiment
const (
	VariantImmediate = "immediate"
	VariantDelayed   = "delayed"
)

// Variants of the message_style experiment
const (
	VariantPersuasive  = "persuasive"
	VariantInformative = "informative"
	VariantUrgent      = "urgent"
)

// Variants of the discount_offer experiment
const (
	VariantNoDiscount       = "none"
	VariantTenPercentOff    = "ten_percent"
	VariantTwentyPercentOff = "twenty_percent"
)

// TemplateCategoryCartRecovery tags message templates used by the recovery
// orchestrator
const TemplateCategoryCartRecovery = "cart_recovery"
