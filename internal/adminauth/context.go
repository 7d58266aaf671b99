package adminauth

import "context"

type operatorContextKey struct{}
type tokenContextKey struct{}

// ContextWithOperator attaches the authenticated operator to the context.
func ContextWithOperator(ctx context.Context, op *Operator) context.Context {
	if op == nil {
		return ctx
	}
	return context.WithValue(ctx, operatorContextKey{}, op)
}

// OperatorFromContext extracts the authenticated operator from the context.
func OperatorFromContext(ctx context.Context) (*Operator, bool) {
	if ctx == nil {
		return nil, false
	}
	op, ok := ctx.Value(operatorContextKey{}).(*Operator)
	if !ok || op == nil {
		return nil, false
	}
	return op, true
}

// ContextWithToken stores the raw bearer token inside the context so logout
// can revoke the exact credential the request carried.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
