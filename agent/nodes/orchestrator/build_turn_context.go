package orchestratornode

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
)

type CustomerLookup interface {
	Get(customerID string) (*domainx.Customer, error)
}

type OrderLookup interface {
	Get(ctx context.Context, orderID string) (*domainx.Order, error)
}

type TurnDefaults struct {
	StoreName      string
	CurrencySymbol string
}

// BuildTurnContext gathers the customer, cart and last order for the turn.
// Missing reference data degrades to a guest context; only store errors fail the turn.
func BuildTurnContext(
	ctx context.Context,
	in *GraphState,
	customers CustomerLookup,
	orders OrderLookup,
	defaults TurnDefaults,
) (*GraphState, error) {
	if err := requireSession(in); err != nil {
		return nil, err
	}
	s := in.Session

	tc := contractx.TurnContext{
		SessionID:      s.SessionID,
		Channel:        s.Channel,
		StoreName:      defaults.StoreName,
		CurrencySymbol: defaults.CurrencySymbol,
		UserMessage:    in.Text,
		Cart:           s.Context.Cart.Clone(),
	}

	if s.CustomerID != "" && customers != nil {
		customer, err := customers.Get(s.CustomerID)
		switch {
		case err == nil:
			tc.Customer = customer
		case errors.Is(err, contractx.ErrCustomerNotFound):
			log.Ctx(ctx).Warn().Str("session_id", s.SessionID).Str("customer_id", s.CustomerID).Msg("customer not in directory, continuing as guest")
		default:
			return nil, err
		}
	}

	if id := s.Context.LastOrderID; id != "" && orders != nil {
		order, err := orders.Get(ctx, id)
		switch {
		case err == nil:
			tc.LastOrder = order
		case errors.Is(err, contractx.ErrOrderNotFound):
			log.Ctx(ctx).Warn().Str("session_id", s.SessionID).Str("order_id", id).Msg("last order missing")
		default:
			return nil, err
		}
	}

	in.Turn = tc
	return in, nil
}
