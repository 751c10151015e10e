package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/a-ostretsova/killbill-analytics-plugin/internal/core"
)

// PostgresQueue stores notifications in the analytics_notifications table.
// record_id is a BIGSERIAL, which gives the monotonically increasing
// insertion sequence the execution-time duplicate check relies on. Claiming
// uses FOR UPDATE SKIP LOCKED so concurrent pollers never hand the same
// notification to two workers.
type PostgresQueue struct {
	db *sqlx.DB
}

// NewPostgresQueue creates a queue backed by the given database.
func NewPostgresQueue(db *sqlx.DB) *PostgresQueue {
	return &PostgresQueue{db: db}
}

type notificationRow struct {
	RecordID        int64     `db:"record_id"`
	EventType       string    `db:"event_type"`
	ObjectType      string    `db:"object_type"`
	ObjectID        uuid.UUID `db:"object_id"`
	AccountID       uuid.UUID `db:"account_id"`
	TenantID        uuid.UUID `db:"tenant_id"`
	EffectiveDate   time.Time `db:"effective_date"`
	FutureUserToken uuid.UUID `db:"future_user_token"`
	SearchKey1      *int64    `db:"search_key1"`
	SearchKey2      *int64    `db:"search_key2"`
	ProcessingState string    `db:"processing_state"`
}

func (r notificationRow) toNotification() Notification {
	return Notification{
		RecordID: r.RecordID,
		Job: core.Job{
			EventType:  core.EventType(r.EventType),
			ObjectType: core.ObjectType(r.ObjectType),
			ObjectID:   r.ObjectID,
			AccountID:  r.AccountID,
			TenantID:   r.TenantID,
		},
		EffectiveDate:    r.EffectiveDate,
		FutureUserToken:  r.FutureUserToken,
		AccountSearchKey: r.SearchKey1,
		TenantSearchKey:  r.SearchKey2,
		State:            ProcessingState(r.ProcessingState),
	}
}

const notificationColumns = `record_id, event_type, object_type, object_id, account_id, tenant_id,
	effective_date, future_user_token, search_key1, search_key2, processing_state`

func (q *PostgresQueue) RecordFuture(ctx context.Context, effectiveDate time.Time, job core.Job, token uuid.UUID, accountKey, tenantKey *int64) error {
	query := `INSERT INTO analytics_notifications
		(event_type, object_type, object_id, account_id, tenant_id, effective_date, future_user_token, search_key1, search_key2, processing_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := q.db.ExecContext(ctx, query,
		string(job.EventType), string(job.ObjectType), job.ObjectID, job.AccountID, job.TenantID,
		effectiveDate.UTC(), token, accountKey, tenantKey, string(StateFuture))
	if err != nil {
		return fmt.Errorf("recording future notification: %w", err)
	}
	return nil
}

func (q *PostgresQueue) FutureForSearchKeys(ctx context.Context, accountKey, tenantKey *int64) ([]Notification, error) {
	return q.queryByKeys(ctx, accountKey, tenantKey, string(StateFuture))
}

func (q *PostgresQueue) FutureOrInProcessingForSearchKeys(ctx context.Context, accountKey, tenantKey *int64) ([]Notification, error) {
	return q.queryByKeys(ctx, accountKey, tenantKey, string(StateFuture), string(StateInProcessing))
}

func (q *PostgresQueue) queryByKeys(ctx context.Context, accountKey, tenantKey *int64, states ...string) ([]Notification, error) {
	// A NULL search key only matches rows recorded without that key, which
	// happens when the record id resolver was unavailable at enqueue time.
	query := fmt.Sprintf(`SELECT %s FROM analytics_notifications
		WHERE processing_state = ANY($1)
		  AND ((search_key1 IS NULL AND $2::bigint IS NULL) OR search_key1 = $2::bigint)
		  AND ((search_key2 IS NULL AND $3::bigint IS NULL) OR search_key2 = $3::bigint)
		ORDER BY record_id`, notificationColumns)

	rows, err := q.db.QueryxContext(ctx, query, pq.Array(states), keyArg(accountKey), keyArg(tenantKey))
	if err != nil {
		return nil, fmt.Errorf("querying notifications by search keys: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var r notificationRow
		if err := rows.StructScan(&r); err != nil {
			return nil, fmt.Errorf("scanning notification row: %w", err)
		}
		out = append(out, r.toNotification())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notification rows: %w", err)
	}
	return out, nil
}

func (q *PostgresQueue) ClaimReady(ctx context.Context, now time.Time, limit int) ([]Notification, error) {
	query := fmt.Sprintf(`UPDATE analytics_notifications
		SET processing_state = $1
		WHERE record_id IN (
			SELECT record_id FROM analytics_notifications
			WHERE processing_state = $2 AND effective_date <= $3
			ORDER BY effective_date, record_id
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, notificationColumns)

	rows, err := q.db.QueryxContext(ctx, query, string(StateInProcessing), string(StateFuture), now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("claiming ready notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var r notificationRow
		if err := rows.StructScan(&r); err != nil {
			return nil, fmt.Errorf("scanning claimed notification: %w", err)
		}
		out = append(out, r.toNotification())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating claimed notifications: %w", err)
	}
	return out, nil
}

func (q *PostgresQueue) Done(ctx context.Context, recordID int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM analytics_notifications WHERE record_id = $1`, recordID); err != nil {
		return fmt.Errorf("removing notification %d: %w", recordID, err)
	}
	return nil
}

func keyArg(key *int64) interface{} {
	if key == nil {
		return nil
	}
	return *key
}
