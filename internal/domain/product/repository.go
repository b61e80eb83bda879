package product

import "context"

// Repository is the read surface the engine needs from the product store.
type Repository interface {
	// Get returns the latest version of the product.
	Get(ctx context.Context, id string) (*Product, error)

	// GetVersion returns a specific product version.
	GetVersion(ctx context.Context, id string, version int) (*Product, error)

	// List returns the products with the given ids, in input order.
	List(ctx context.Context, ids []string) ([]*Product, error)
}
