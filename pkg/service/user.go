package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/queue"
)

// SignUpInput is a new account. The password arrives hashed by the
// authentication layer.
type SignUpInput struct {
	Username     string
	Email        string
	PasswordHash string
	AvatarColor  string
}

// SignUp creates the credential and profile records. The profile is readable
// from the cache as soon as SignUp returns.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*model.User, error) {
	if err := required("username", in.Username, "email", in.Email, "password", in.PasswordHash, "avatarColor", in.AvatarColor); err != nil {
		return nil, err
	}
	if !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	existing, err := s.store.Auth.First(ctx, "username = ? OR email = ?", in.Username, strings.ToLower(in.Email))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: username or email already taken", ErrValidation)
	}

	now := time.Now().UTC()
	auth := model.Auth{
		ID:          model.NewID(),
		UID:         model.NewUID(),
		Username:    in.Username,
		Email:       strings.ToLower(in.Email),
		Password:    in.PasswordHash,
		AvatarColor: in.AvatarColor,
		CreatedAt:   now,
	}
	user := &model.User{
		ID:            model.NewID(),
		AuthID:        auth.ID,
		UID:           auth.UID,
		Username:      auth.Username,
		Email:         auth.Email,
		AvatarColor:   auth.AvatarColor,
		Blocked:       []string{},
		BlockedBy:     []string{},
		Notifications: model.DefaultNotificationSettings(),
		CreatedAt:     now,
	}

	if err := s.cache.Users.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	s.enqueue(ctx, queue.AddAuthUser{Value: auth})
	s.enqueue(ctx, queue.AddUser{Value: *user})
	return user, nil
}

// GetUser returns the profile from the cache, or from the store on a miss.
// It returns nil without error when neither has it.
func (s *Service) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, _, err := s.findUser(ctx, userID)
	return user, err
}

// findUser also reports whether the user came from the cache.
func (s *Service) findUser(ctx context.Context, userID string) (*model.User, bool, error) {
	if err := required("userId", userID); err != nil {
		return nil, false, err
	}
	user, err := s.cache.Users.GetUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		return user, true, nil
	}
	user, err = s.store.GetUser(ctx, userID)
	return user, false, err
}

// UserPage is one page of profiles with the total count.
type UserPage struct {
	Users []model.User `json:"users"`
	Total int64        `json:"totalUsers"`
}

// GetUsers pages through profiles other than the current user's.
func (s *Service) GetUsers(ctx context.Context, current model.CurrentUser, skip, limit int) (*UserPage, error) {
	if err := pageArgs(skip, limit); err != nil {
		return nil, err
	}
	users, err := s.cache.Users.GetUsers(ctx, skip, limit, current.UserID)
	if err != nil {
		return nil, err
	}
	if len(users) > 0 {
		total, err := s.cache.Users.TotalUsers(ctx)
		if err != nil {
			return nil, err
		}
		return &UserPage{Users: users, Total: total}, nil
	}

	if users, err = s.store.GetUsers(ctx, skip, limit, current.UserID); err != nil {
		return nil, err
	}
	total, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: users, Total: total}, nil
}

// UpdateBasicInfo overwrites the profile's free-text fields.
func (s *Service) UpdateBasicInfo(ctx context.Context, current model.CurrentUser, info model.BasicInfo) (*model.User, error) {
	user, err := s.updateProfile(ctx, current, func() (*model.User, error) {
		return s.cache.Users.UpdateFields(ctx, current.UserID, map[string]string{
			"quote":    info.Quote,
			"work":     info.Work,
			"school":   info.School,
			"location": info.Location,
		})
	})
	if err != nil {
		return nil, err
	}
	s.enqueue(ctx, queue.UpdateBasicInfo{Key: current.UserID, Value: info, Version: model.NextVersion()})
	return user, nil
}

// UpdateSocialLinks overwrites the profile's external links.
func (s *Service) UpdateSocialLinks(ctx context.Context, current model.CurrentUser, links model.SocialLinks) (*model.User, error) {
	user, err := s.updateProfile(ctx, current, func() (*model.User, error) {
		return s.cache.Users.UpdateField(ctx, current.UserID, "social", links)
	})
	if err != nil {
		return nil, err
	}
	s.enqueue(ctx, queue.UpdateSocialLinks{Key: current.UserID, Value: links, Version: model.NextVersion()})
	return user, nil
}

// UpdateNotificationSettings overwrites which events notify the user.
func (s *Service) UpdateNotificationSettings(ctx context.Context, current model.CurrentUser, settings model.NotificationSettings) (*model.User, error) {
	user, err := s.updateProfile(ctx, current, func() (*model.User, error) {
		return s.cache.Users.UpdateField(ctx, current.UserID, "notifications", settings)
	})
	if err != nil {
		return nil, err
	}
	s.enqueue(ctx, queue.UpdateNotificationSettings{Key: current.UserID, Value: settings, Version: model.NextVersion()})
	return user, nil
}

// updateProfile writes to the cache only when the profile is cached, so a
// miss never leaves a partial record behind. An uncached profile is still
// updated in the store through the queue.
func (s *Service) updateProfile(ctx context.Context, current model.CurrentUser, write func() (*model.User, error)) (*model.User, error) {
	if err := validCurrent(current); err != nil {
		return nil, err
	}
	user, cached, err := s.findUser(ctx, current.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, current.UserID)
	}
	if !cached {
		return user, nil
	}
	return write()
}

// PasswordChanged mails the user a confirmation.
func (s *Service) PasswordChanged(ctx context.Context, current model.CurrentUser) error {
	if err := required("email", current.Email, "username", current.Username); err != nil {
		return err
	}
	body, err := renderEmail(emailData{Username: current.Username, Message: "Your password has been changed."})
	if err != nil {
		return err
	}
	s.enqueue(ctx, queue.ChangePasswordEmail{EmailContent: queue.EmailContent{
		ReceiverEmail: current.Email, Subject: "Password reset confirmation", Template: body,
	}})
	return nil
}

// ForgotPassword mails a reset link to the account holder, if any. It does
// not reveal whether the email is registered.
func (s *Service) ForgotPassword(ctx context.Context, email, resetLink string) error {
	if err := required("email", email, "resetLink", resetLink); err != nil {
		return err
	}
	auth, err := s.store.Auth.First(ctx, "email = ?", strings.ToLower(email))
	if err != nil || auth == nil {
		return err
	}
	body, err := renderEmail(emailData{Username: auth.Username, Message: "Use the link below to reset your password.", Link: resetLink})
	if err != nil {
		return err
	}
	s.enqueue(ctx, queue.ForgotPasswordEmail{EmailContent: queue.EmailContent{
		ReceiverEmail: auth.Email, Subject: "Reset your password", Template: body,
	}})
	return nil
}
