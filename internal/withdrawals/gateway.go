package withdrawals

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway is the payout connector that moves funds to an external address.
type Gateway interface {
	Payout(ctx context.Context, req PayoutRequest) (PayoutDecision, error)
}

// PayoutRequest is sent to the gateway when a withdrawal settles.
type PayoutRequest struct {
	WithdrawalID string
	AccountID    string
	Address      string
	Amount       decimal.Decimal
}

// PayoutDecision captures the gateway's response.
type PayoutDecision struct {
	Reference string
	Approved  bool
	Reason    string
}

// StaticGateway simulates a payout provider that approves everything.
type StaticGateway struct{}

// Payout approves the request with a synthetic reference.
func (StaticGateway) Payout(_ context.Context, _ PayoutRequest) (PayoutDecision, error) {
	return PayoutDecision{Reference: uuid.NewString(), Approved: true}, nil
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, req PayoutRequest) (PayoutDecision, error)

func (f GatewayFunc) Payout(ctx context.Context, req PayoutRequest) (PayoutDecision, error) {
	return f(ctx, req)
}
