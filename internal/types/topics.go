package types

// Topics published to the notification bus
const (
	TopicSalesRecorded     = "sales.recorded"
	TopicCartAbandoned     = "cart.abandoned"
	TopicRecoveryAttempt   = "cart.recovery.attempted"
	TopicCartConverted     = "cart.converted"
	TopicSegmentsRefreshed = "customer.segments.refreshed"
)
