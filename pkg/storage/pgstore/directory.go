package pgstore

import (
	"context"
	"time"

	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/pg"
)

// GetProfile implements delivery.Directory.
func (s *Store) GetProfile(ctx context.Context, recipientID string) (*delivery.Profile, error) {
	var p delivery.Profile
	err := s.db.QueryRow(ctx, `
		SELECT id, display_name, email, phone, push_tokens
		FROM recipients
		WHERE id = $1`, recipientID,
	).Scan(&p.ID, &p.DisplayName, &p.Email, &p.Phone, &p.PushTokens)
	if pg.IsNotFoundError(err) {
		return nil, delivery.ErrRecipientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetSettings implements delivery.Directory.
func (s *Store) GetSettings(ctx context.Context, recipientID string) (*delivery.Settings, error) {
	var st delivery.Settings
	err := s.db.QueryRow(ctx, `
		SELECT email_notifications, sms_notifications, push_notifications, categories, priority, quiet_hours
		FROM notification_settings
		WHERE recipient_id = $1`, recipientID,
	).Scan(&st.EmailNotifications, &st.SMSNotifications, &st.PushNotifications,
		&st.Categories, &st.Priority, &st.QuietHours)
	if pg.IsNotFoundError(err) {
		return nil, delivery.ErrSettingsNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveNotification stores or refreshes a notification's expiry so the
// retention sweep can remove it later.
func (s *Store) SaveNotification(ctx context.Context, id, title string, expiresAt *time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (id, title, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, expires_at = EXCLUDED.expires_at`,
		id, title, expiresAt)
	return err
}
