package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/a-ostretsova/killbill-analytics-plugin/internal/core"
)

// AllRefresher is the catch-all handler: it rebuilds every analytics facet
// for the account, in dependency order.
type AllRefresher struct {
	facets []core.Refresher
}

func NewAllRefresher(db *sqlx.DB) *AllRefresher {
	return &AllRefresher{
		facets: []core.Refresher{
			NewAccountRefresher(db),
			NewSubscriptionRefresher(db),
			NewOverdueRefresher(db),
			NewInvoicePaymentRefresher(db),
			NewFieldRefresher(db),
		},
	}
}

func (r *AllRefresher) Refresh(ctx context.Context, rctx core.RefreshContext) error {
	for _, facet := range r.facets {
		if err := facet.Refresh(ctx, rctx); err != nil {
			return fmt.Errorf("full refresh for account %s: %w", rctx.AccountID, err)
		}
	}
	return nil
}
