package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ammar0144/socialcache/pkg/bus"
	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/queue"
)

// UpdateProfilePicture sets the current user's picture. imgID is empty when
// the picture is not an uploaded image.
func (s *Service) UpdateProfilePicture(ctx context.Context, current model.CurrentUser, url, imgID, imgVersion string) (*model.User, error) {
	if err := required("url", url); err != nil {
		return nil, err
	}
	user, err := s.updateProfile(ctx, current, func() (*model.User, error) {
		return s.cache.Users.UpdateField(ctx, current.UserID, "profilePicture", url)
	})
	if err != nil {
		return nil, err
	}
	user.ProfilePicture = url
	s.emit(ctx, bus.EventUpdateUser, user)
	s.enqueue(ctx, queue.AddUserProfileImage{Key: current.UserID, Value: url, ImgID: imgID, ImgVersion: imgVersion})
	return user, nil
}

// UpdateBackgroundImage sets the current user's profile background.
func (s *Service) UpdateBackgroundImage(ctx context.Context, current model.CurrentUser, imgID, imgVersion string) (*model.User, error) {
	if err := required("imgId", imgID); err != nil {
		return nil, err
	}
	user, err := s.updateProfile(ctx, current, func() (*model.User, error) {
		return s.cache.Users.UpdateFields(ctx, current.UserID, map[string]string{
			"bgImageId":      imgID,
			"bgImageVersion": imgVersion,
		})
	})
	if err != nil {
		return nil, err
	}
	user.BgImageID, user.BgImageVersion = imgID, imgVersion
	s.emit(ctx, bus.EventUpdateUser, user)
	s.enqueue(ctx, queue.UpdateBGImage{Key: current.UserID, ImgID: imgID, ImgVersion: imgVersion})
	return user, nil
}

// AddImage records an uploaded image against the current user. Images have
// no cache shape and go straight to the queue.
func (s *Service) AddImage(ctx context.Context, current model.CurrentUser, imgID, imgVersion string) (*model.Image, error) {
	if err := validCurrent(current); err != nil {
		return nil, err
	}
	if err := required("imgId", imgID); err != nil {
		return nil, err
	}
	image := &model.Image{
		ID:         imgID,
		UserID:     current.UserID,
		ImgID:      imgID,
		ImgVersion: imgVersion,
		CreatedAt:  time.Now().UTC(),
	}
	s.enqueue(ctx, queue.AddImage{Key: current.UserID, ImgID: imgID, ImgVersion: imgVersion})
	return image, nil
}

// DeleteImage removes one of the current user's images.
func (s *Service) DeleteImage(ctx context.Context, current model.CurrentUser, imageID string) error {
	if err := validCurrent(current); err != nil {
		return err
	}
	if err := required("imageId", imageID); err != nil {
		return err
	}
	image, err := s.store.Images.FindByID(ctx, imageID)
	if err != nil {
		return err
	}
	if image != nil && image.UserID != current.UserID {
		return fmt.Errorf("%w: image %s", ErrForbidden, imageID)
	}
	s.emit(ctx, bus.EventDeleteImage, map[string]string{"imageId": imageID, "userId": current.UserID})
	s.enqueue(ctx, queue.RemoveImage{ImageID: imageID})
	return nil
}

// GetImages lists a user's images from the store.
func (s *Service) GetImages(ctx context.Context, userID string) ([]model.Image, error) {
	if err := required("userId", userID); err != nil {
		return nil, err
	}
	return s.store.GetImages(ctx, userID)
}
