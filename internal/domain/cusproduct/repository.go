package cusproduct

import "context"

// Repository is the store surface for customer products. The engine computes
// plans from a snapshot read through this interface; the caller is expected to
// hold a per-customer lock (or database transaction) across read, compute and
// apply so the one-active-per-group invariant survives concurrent attaches.
type Repository interface {
	// ListByCustomer returns all of the customer's products with their
	// product definitions loaded, in a single consistent read.
	ListByCustomer(ctx context.Context, customerID string) ([]*CustomerProduct, error)

	Get(ctx context.Context, id string) (*CustomerProduct, error)

	// Insert fails with ErrAlreadyExists when the id is taken, which lets
	// retried webhook deliveries apply a plan more than once.
	Insert(ctx context.Context, cp *CustomerProduct) error

	Update(ctx context.Context, patch *Patch) error

	// Delete removes a row outright. Only still-Scheduled rows superseded
	// before execution are ever deleted.
	Delete(ctx context.Context, id string) error
}
