package pg

import (
	"context"
	"database/sql"

	"paperbase.org/internal/webhook"
)

// WebhookStore implements webhook.Source over the webhook_endpoints table.
// An endpoint's events column is a comma-separated list of subscribed event
// names, or '*' for all events.
type WebhookStore struct {
	db *sql.DB
}

var _ webhook.Source = (*WebhookStore)(nil)

func (w *WebhookStore) ListEndpoints(ctx context.Context, organizationID, event string) ([]webhook.Endpoint, error) {
	rows, err := w.db.QueryContext(ctx, `
		select url, secret from webhook_endpoints
		where organization_id = $1
		  and (events = '*' or $2 = any(string_to_array(events, ',')))
		order by url asc
	`, organizationID, event)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []webhook.Endpoint
	for rows.Next() {
		var ep webhook.Endpoint
		if err := rows.Scan(&ep.URL, &ep.Secret); err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, rows.Err()
}

// Register inserts an endpoint subscription.
func (w *WebhookStore) Register(ctx context.Context, organizationID, url, secret, events string) error {
	_, err := w.db.ExecContext(ctx, `
		insert into webhook_endpoints(organization_id, url, secret, events)
		values ($1,$2,$3,$4)
		on conflict (organization_id, url) do update set secret = $3, events = $4
	`, organizationID, url, secret, events)
	return err
}
