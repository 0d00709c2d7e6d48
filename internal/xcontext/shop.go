package xcontext

import "context"

type shopDomainKey struct{}

// SetShopDomain records the tenant a request belongs to, so downstream
// logging and handlers can attribute work to a shop.
func SetShopDomain(ctx context.Context, shop string) context.Context {
	return context.WithValue(ctx, shopDomainKey{}, shop)
}

func GetShopDomain(ctx context.Context) (string, bool) {
	shop, ok := ctx.Value(shopDomainKey{}).(string)
	return shop, ok
}
