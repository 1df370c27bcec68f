package appctx

import (
	"context"

	"assistbackend/models"
)

type contextKey string

const OperatorContextKey contextKey = "operator"

// SetOperator adds the authenticated operator to the request context
func SetOperator(ctx context.Context, operator *models.Operator) context.Context {
	return context.WithValue(ctx, OperatorContextKey, operator)
}

// GetOperator extracts the authenticated operator from the request context
func GetOperator(ctx context.Context) (*models.Operator, bool) {
	operator, ok := ctx.Value(OperatorContextKey).(*models.Operator)
	return operator, ok
}
