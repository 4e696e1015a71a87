package repository

import (
	"context"

	"github.com/ammar0144/socialcache/pkg/model"
)

// Version columns of the user record.
const (
	userInfoVersion     = "version"
	userSocialVersion   = "social_version"
	userSettingsVersion = "settings_version"
)

// CreateAuth stores the credential record once.
func (s *Store) CreateAuth(ctx context.Context, auth *model.Auth) (bool, error) {
	return s.Auth.CreateIfAbsent(ctx, auth)
}

// CreateUser stores the profile record once.
func (s *Store) CreateUser(ctx context.Context, user *model.User) (bool, error) {
	if user.Blocked == nil {
		user.Blocked = []string{}
	}
	if user.BlockedBy == nil {
		user.BlockedBy = []string{}
	}
	return s.Users.CreateIfAbsent(ctx, user)
}

// GetUser returns the stored profile, or nil.
func (s *Store) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.Users.FindByID(ctx, userID)
}

// GetUsers pages through profiles, newest first, leaving out excludeID.
func (s *Store) GetUsers(ctx context.Context, skip, limit int, excludeID string) ([]model.User, error) {
	return s.Users.Page(ctx, Page{Skip: skip, Limit: limit, Order: "created_at DESC"}, "id <> ?", excludeID)
}

// CountUsers returns the number of stored profiles.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	return s.Users.Count(ctx, nil)
}

// UpdateBasicInfo is a last-writer-wins update of the free-text profile.
func (s *Store) UpdateBasicInfo(ctx context.Context, userID string, info model.BasicInfo, version int64) error {
	return s.Users.UpdateVersioned(ctx, userID, userInfoVersion, version, map[string]interface{}{
		"quote":    info.Quote,
		"work":     info.Work,
		"school":   info.School,
		"location": info.Location,
	})
}

// UpdateSocialLinks is a last-writer-wins update of the social links.
func (s *Store) UpdateSocialLinks(ctx context.Context, userID string, links model.SocialLinks, version int64) error {
	encoded, err := jsonColumn(links)
	if err != nil {
		return err
	}
	return s.Users.UpdateVersioned(ctx, userID, userSocialVersion, version, map[string]interface{}{
		"social": encoded,
	})
}

// UpdateNotificationSettings is a last-writer-wins update of the settings.
func (s *Store) UpdateNotificationSettings(ctx context.Context, userID string, settings model.NotificationSettings, version int64) error {
	encoded, err := jsonColumn(settings)
	if err != nil {
		return err
	}
	return s.Users.UpdateVersioned(ctx, userID, userSettingsVersion, version, map[string]interface{}{
		"notifications": encoded,
	})
}
