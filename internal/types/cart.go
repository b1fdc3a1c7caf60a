package types

// CartStatus is the lifecycle state of a shopping cart
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusAbandoned CartStatus = "abandoned"
	CartStatusConverted CartStatus = "converted"
	CartStatusExpired   CartStatus = "expired"
)

func (s CartStatus) String() string {
	return string(s)
}

// RecoveryResponse is the outcome reported for a single recovery attempt
type RecoveryResponse string

const (
	RecoveryResponseNone      RecoveryResponse = "none"
	RecoveryResponseOpened    RecoveryResponse = "opened"
	RecoveryResponseClicked   RecoveryResponse = "clicked"
	RecoveryResponseConverted RecoveryResponse = "converted"
)

func (r RecoveryResponse) Validate() bool {
	switch r {
	case RecoveryResponseNone, RecoveryResponseOpened, RecoveryResponseClicked, RecoveryResponseConverted:
		return true
	default:
		return false
	}
}
