package types

// CustomerProductStatus tracks the lifecycle of a customer's product instance.
type CustomerProductStatus string

const (
	// CustomerProductStatusActive is a product the customer currently holds.
	CustomerProductStatusActive CustomerProductStatus = "active"

	// CustomerProductStatusScheduled is a product that starts in the future,
	// usually the target of a pending downgrade or renewal.
	CustomerProductStatusScheduled CustomerProductStatus = "scheduled"

	// CustomerProductStatusPastDue is a product whose latest charge failed.
	CustomerProductStatusPastDue CustomerProductStatus = "past_due"

	// CustomerProductStatusExpired is a product that has ended and will not renew.
	CustomerProductStatusExpired CustomerProductStatus = "expired"
)

func (s CustomerProductStatus) String() string {
	return string(s)
}

// Validate returns true for statuses the engine knows how to handle.
func (s CustomerProductStatus) Validate() bool {
	switch s {
	case CustomerProductStatusActive,
		CustomerProductStatusScheduled,
		CustomerProductStatusPastDue,
		CustomerProductStatusExpired:
		return true
	}
	return false
}
