package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/a-ostretsova/killbill-analytics-plugin/internal/core"
	"github.com/a-ostretsova/killbill-analytics-plugin/internal/lock"
	"github.com/a-ostretsova/killbill-analytics-plugin/internal/notification"
)

// LockDomain scopes refresh locks on the shared lock backend.
const LockDomain = "analytics-refresh"

// Refreshers bundles the per-group handlers the listener dispatches to.
type Refreshers struct {
	All                core.Refresher
	Subscriptions      core.Refresher
	Overdue            core.Refresher
	Invoices           core.InvoiceRefresher
	InvoiceAndPayments core.Refresher
	Fields             core.Refresher
}

// Listener turns bus events into debounced, deduplicated analytics refreshes.
//
// Ingestion (HandleEvent) classifies an event, drops blacklisted accounts and
// ignored groups, and records a delayed notification unless an overlapping
// one is already scheduled. Firing (HandleReady) re-checks for overlaps
// against the broader future-or-in-processing set, because two events
// ingested concurrently can both pass the ingestion-time check; among
// overlapping notifications the highest record id wins and all others skip.
type Listener struct {
	queue        notification.Queue
	locker       lock.Locker
	resolver     core.RecordIDResolver
	invoices     core.InvoiceLookup
	refreshers   Refreshers
	refreshDelay time.Duration
	lockAttempts int
	blacklist    map[string]struct{}
	ignored      map[Group]struct{}
	now          func() time.Time
	logger       *slog.Logger
}

// Options configures a Listener.
type Options struct {
	// RefreshDelay is how long after an event the refresh runs, letting a
	// burst of causally related events for one account collapse into one run.
	RefreshDelay time.Duration
	// LockAttempts bounds the retries when acquiring the account lock.
	LockAttempts int
	// AccountsBlacklist lists account ids whose events are dropped outright.
	AccountsBlacklist []string
	// IgnoredGroups lists refresh groups that never schedule a job.
	IgnoredGroups []Group
	// Now supplies the clock; defaults to time.Now.
	Now func() time.Time
}

// NewListener wires a listener to its collaborators.
func NewListener(queue notification.Queue, locker lock.Locker, resolver core.RecordIDResolver, invoices core.InvoiceLookup, refreshers Refreshers, opts Options, logger *slog.Logger) *Listener {
	blacklist := make(map[string]struct{}, len(opts.AccountsBlacklist))
	for _, id := range opts.AccountsBlacklist {
		blacklist[id] = struct{}{}
	}
	ignored := make(map[Group]struct{}, len(opts.IgnoredGroups))
	for _, g := range opts.IgnoredGroups {
		ignored[g] = struct{}{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Listener{
		queue:        queue,
		locker:       locker,
		resolver:     resolver,
		invoices:     invoices,
		refreshers:   refreshers,
		refreshDelay: opts.RefreshDelay,
		lockAttempts: opts.LockAttempts,
		blacklist:    blacklist,
		ignored:      ignored,
		now:          now,
		logger:       logger,
	}
}

// HandleEvent is the ingestion path. It never returns an error: ingestion
// failures are logged and swallowed, since a lost refresh is caught up by the
// next event for the same account and the event bus must never see a failure.
func (l *Listener) HandleEvent(ctx context.Context, event core.BusEvent) {
	// Fleet- or tenant-wide events carry no account and are out of scope.
	if event.AccountID == uuid.Nil {
		return
	}

	if l.isAccountBlacklisted(event.AccountID) {
		return
	}

	job := l.reclassify(ctx, core.JobFromEvent(event))

	if _, skip := l.ignored[GroupFor(job)]; skip {
		return
	}

	accountKey, tenantKey := l.resolveSearchKeys(ctx, job)

	// Duplicate check. Because multiple ingestion goroutines run in parallel,
	// this can miss a racing enqueue; HandleReady checks again before running.
	if accountKey != nil && l.futureOverlappingJobScheduled(ctx, job, accountKey, tenantKey) {
		l.logger.Debug("skipping already scheduled refresh", "job", job.String())
		return
	}

	token := uuid.New()
	effective := l.now().Add(l.refreshDelay)
	if err := l.queue.RecordFuture(ctx, effective, job, token, accountKey, tenantKey); err != nil {
		l.logger.Warn("unable to record refresh notification", "job", job.String(), "error", err)
	}
}

// HandleReady is the firing path, invoked by the poller once a notification's
// delay has elapsed.
func (l *Listener) HandleReady(ctx context.Context, n notification.Notification) error {
	run, err := l.shouldRun(ctx, n)
	if err != nil {
		return fmt.Errorf("checking for superseding refresh: %w", err)
	}
	if !run {
		l.logger.Debug("skipping superseded refresh", "record_id", n.RecordID, "job", n.Job.String())
		return nil
	}
	return l.runJob(ctx, n.Job)
}

// reclassify upgrades an invoice job to a payment-success job when the
// invoice carries credit and already has payments: a credit applied to a paid
// invoice changes computed payment-application amounts, so payment-derived
// rows must also be refreshed. A failed lookup keeps the original job.
func (l *Listener) reclassify(ctx context.Context, job core.Job) core.Job {
	if GroupFor(job) != GroupInvoices {
		return job
	}

	summary, err := l.invoices.InvoiceSummary(ctx, job.ObjectID, job.AccountID, job.TenantID)
	if err != nil {
		l.logger.Warn("unable to retrieve invoice state, payment data might be stale",
			"invoice_id", job.ObjectID, "error", err)
		return job
	}

	if summary.CreditedAmount != 0 && summary.PaymentCount > 0 {
		job.EventType = core.PaymentSuccess
	}
	return job
}

func (l *Listener) isAccountBlacklisted(accountID uuid.UUID) bool {
	_, blacklisted := l.blacklist[accountID.String()]
	return blacklisted
}

func (l *Listener) resolveSearchKeys(ctx context.Context, job core.Job) (accountKey, tenantKey *int64) {
	if l.resolver == nil {
		l.logger.Warn("no record id resolver configured, duplicate check degraded")
		return nil, nil
	}

	account, err := l.resolver.RecordID(ctx, job.AccountID, core.ObjectAccount)
	if err != nil {
		l.logger.Warn("unable to resolve account record id, duplicate check degraded",
			"account_id", job.AccountID, "error", err)
		return nil, nil
	}
	tenant, err := l.resolver.RecordID(ctx, job.TenantID, core.ObjectTenant)
	if err != nil {
		l.logger.Warn("unable to resolve tenant record id, duplicate check degraded",
			"tenant_id", job.TenantID, "error", err)
		return &account, nil
	}
	return &account, &tenant
}

// futureOverlappingJobScheduled reports whether a still-future notification
// overlaps the new job. In-processing notifications are ignored on purpose: a
// refresh that already started may not observe this event's state, so a new
// notification must still be recorded.
func (l *Listener) futureOverlappingJobScheduled(ctx context.Context, job core.Job, accountKey, tenantKey *int64) bool {
	scheduled, err := l.queue.FutureForSearchKeys(ctx, accountKey, tenantKey)
	if err != nil {
		l.logger.Warn("unable to query scheduled refreshes, recording anyway", "error", err)
		return false
	}
	return len(overlapping(job, scheduled)) > 0
}

// shouldRun decides whether this claimed notification is still the winner.
// The most recently recorded overlapping notification wins; everyone else
// cedes to it. Record id ordering is the sole tie-break, because scheduled
// times can collide.
func (l *Listener) shouldRun(ctx context.Context, n notification.Notification) (bool, error) {
	scheduled, err := l.queue.FutureOrInProcessingForSearchKeys(ctx, n.AccountSearchKey, n.TenantSearchKey)
	if err != nil {
		return false, err
	}

	var winner *notification.Notification
	for _, candidate := range overlapping(n.Job, scheduled) {
		if winner == nil || candidate.RecordID > winner.RecordID {
			c := candidate
			winner = &c
		}
	}
	return winner == nil || winner.FutureUserToken == n.FutureUserToken, nil
}

// runJob acquires the account lock and dispatches to the group handler. Lock
// exhaustion is fatal for this invocation; the lock is released on every exit
// path.
func (l *Listener) runJob(ctx context.Context, job core.Job) error {
	held, err := l.locker.Acquire(ctx, LockDomain, job.AccountID.String(), l.lockAttempts)
	if err != nil {
		return fmt.Errorf("acquiring refresh lock for account %s: %w", job.AccountID, err)
	}
	defer func() {
		if err := held.Release(ctx); err != nil {
			l.logger.Error("failed to release refresh lock", "account_id", job.AccountID, "error", err)
		}
	}()

	return l.dispatch(ctx, job)
}

func (l *Listener) dispatch(ctx context.Context, job core.Job) error {
	if job.EventType == "" {
		return nil
	}

	rctx := core.NewRefreshContext(job, l.now())
	group := GroupFor(job)
	l.logger.Info("starting analytics refresh", "group", group, "account_id", job.AccountID)

	var err error
	switch group {
	case GroupAll:
		err = l.refreshers.All.Refresh(ctx, rctx)
	case GroupSubscriptions:
		err = l.refreshers.Subscriptions.Refresh(ctx, rctx)
	case GroupOverdue:
		err = l.refreshers.Overdue.Refresh(ctx, rctx)
	case GroupInvoices:
		err = l.refreshers.Invoices.RefreshInvoice(ctx, job.ObjectID, rctx)
	case GroupInvoiceAndPayments:
		err = l.refreshers.InvoiceAndPayments.Refresh(ctx, rctx)
	case GroupFields:
		err = l.refreshers.Fields.Refresh(ctx, rctx)
	case GroupOther:
		return nil
	}
	if err != nil {
		return &core.RefreshError{Job: job, Err: err}
	}

	l.logger.Info("finished analytics refresh", "group", group, "account_id", job.AccountID)
	return nil
}
