package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/dmitrymomot/courier/pkg/delivery"
)

// GetProfile implements delivery.Directory.
func (s *Store) GetProfile(ctx context.Context, recipientID string) (*delivery.Profile, error) {
	var d recipientDoc
	err := s.recipients.FindOne(ctx, bson.D{{Key: "_id", Value: recipientID}}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, delivery.ErrRecipientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &delivery.Profile{
		ID:          d.ID,
		DisplayName: d.DisplayName,
		Email:       d.Email,
		Phone:       d.Phone,
		PushTokens:  plain(d.PushTokens),
	}, nil
}

// GetSettings implements delivery.Directory.
func (s *Store) GetSettings(ctx context.Context, recipientID string) (*delivery.Settings, error) {
	var d settingsDoc
	err := s.settings.FindOne(ctx, bson.D{{Key: "_id", Value: recipientID}}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, delivery.ErrSettingsNotFound
	}
	if err != nil {
		return nil, err
	}
	return &delivery.Settings{
		EmailNotifications: d.EmailNotifications,
		SMSNotifications:   d.SMSNotifications,
		PushNotifications:  d.PushNotifications,
		Categories:         d.Categories,
		Priority:           d.Priority,
		QuietHours:         d.QuietHours,
	}, nil
}
