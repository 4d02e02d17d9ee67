package validator

import (
	"context"

	"github.com/amp-labs/purchase-validator/product"
)

// UsernameResolver supplies the application username for a product whose
// additionalData doesn't carry one. ok is false when there is none.
type UsernameResolver interface {
	ApplicationUsername(ctx context.Context, p *product.Product) (username string, ok bool)
}

// UsernameResolverFunc adapts a function to UsernameResolver.
type UsernameResolverFunc func(ctx context.Context, p *product.Product) (string, bool)

func (f UsernameResolverFunc) ApplicationUsername(ctx context.Context, p *product.Product) (string, bool) {
	return f(ctx, p)
}

// Preparer runs before validation, for instance to refresh a receipt.
// It must call done once it's finished; calls after the first are ignored.
type Preparer interface {
	Prepare(ctx context.Context, p *product.Product, done func())
}

// PreparerFunc adapts a function to Preparer.
type PreparerFunc func(ctx context.Context, p *product.Product, done func())

func (f PreparerFunc) Prepare(ctx context.Context, p *product.Product, done func()) {
	f(ctx, p, done)
}
