package delivery

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dmitrymomot/courier/pkg/logger"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-()]+$`)
)

// Directory is the read-only recipient store.
type Directory interface {
	// GetProfile returns ErrRecipientNotFound for unknown recipients.
	GetProfile(ctx context.Context, recipientID string) (*Profile, error)
	// GetSettings returns ErrSettingsNotFound when the recipient has none stored.
	GetSettings(ctx context.Context, recipientID string) (*Settings, error)
}

// ContactResolver turns directory entries into validated destinations.
type ContactResolver struct {
	dir    Directory
	logger *slog.Logger
}

// NewContactResolver creates a resolver over dir.
func NewContactResolver(dir Directory, log *slog.Logger) *ContactResolver {
	if log == nil {
		log = slog.Default()
	}
	return &ContactResolver{dir: dir, logger: log}
}

// Resolve loads the recipient and drops every destination that fails
// validation. It fails only when the recipient cannot be loaded.
func (r *ContactResolver) Resolve(ctx context.Context, recipientID string) (ContactInfo, error) {
	p, err := r.dir.GetProfile(ctx, recipientID)
	if err != nil {
		if errors.Is(err, ErrRecipientNotFound) {
			return ContactInfo{}, err
		}
		return ContactInfo{}, errors.Join(ErrFailedToLoadContact, err)
	}
	if p == nil {
		return ContactInfo{}, ErrRecipientNotFound
	}

	info := ContactInfo{
		DisplayName: strings.TrimSpace(p.DisplayName),
		PushTokens:  normalizeTokens(p.PushTokens),
	}
	if email := strings.TrimSpace(p.Email); ValidEmail(email) {
		info.Email = email
	} else if email != "" {
		r.logger.DebugContext(ctx, "dropping invalid email", logger.RecipientID(recipientID))
	}
	if phone := strings.TrimSpace(p.Phone); ValidPhone(phone) {
		info.Phone = phone
	} else if phone != "" {
		r.logger.DebugContext(ctx, "dropping invalid phone", logger.RecipientID(recipientID))
	}
	return info, nil
}

// Preferences returns the recipient's settings, or DefaultSettings when none
// are stored.
func (r *ContactResolver) Preferences(ctx context.Context, recipientID string) (Settings, error) {
	s, err := r.dir.GetSettings(ctx, recipientID)
	if errors.Is(err, ErrSettingsNotFound) || (err == nil && s == nil) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, errors.Join(ErrFailedToLoadSettings, err)
	}
	return *s, nil
}

// ValidEmail reports whether s looks like local@domain.tld.
func ValidEmail(s string) bool {
	return s != "" && emailPattern.MatchString(s)
}

// ValidPhone reports whether s contains only digits, spaces, dashes and
// parentheses with an optional leading plus.
func ValidPhone(s string) bool {
	return s != "" && phonePattern.MatchString(s)
}

// normalizeTokens keeps the non-blank strings of a list value.
func normalizeTokens(v any) []string {
	tokens := []string{}
	switch list := v.(type) {
	case []string:
		for _, t := range list {
			if t = strings.TrimSpace(t); t != "" {
				tokens = append(tokens, t)
			}
		}
	case []any:
		for _, item := range list {
			if t, ok := item.(string); ok {
				if t = strings.TrimSpace(t); t != "" {
					tokens = append(tokens, t)
				}
			}
		}
	}
	return tokens
}
