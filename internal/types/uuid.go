package types

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex cart_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	id := GenerateUUID()
	if prefix == "" {
		return id
	}
	return fmt.Sprintf("%s_%s", prefix, strings.ToLower(id))
}

// Prefixes for unique identifiers of core entities
const (
	UUIDPrefixCustomer        = "cust"
	UUIDPrefixOrder           = "ord"
	UUIDPrefixCart            = "cart"
	UUIDPrefixRecoveryPlan    = "plan"
	UUIDPrefixRecoveryAttempt = "attempt"
	UUIDPrefixScheduledJob    = "job"
	UUIDPrefixTemplate        = "tmpl"
	UUIDPrefixEvent           = "evt"
)
