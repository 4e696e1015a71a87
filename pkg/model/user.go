package model

import "time"

// NotificationSettings controls which events notify a user.
type NotificationSettings struct {
	Messages  bool `json:"messages"`
	Reactions bool `json:"reactions"`
	Comments  bool `json:"comments"`
	Follows   bool `json:"follows"`
}

// DefaultNotificationSettings enables every notification.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{Messages: true, Reactions: true, Comments: true, Follows: true}
}

// SocialLinks are the profile's external links.
type SocialLinks struct {
	Facebook  string `json:"facebook"`
	Instagram string `json:"instagram"`
	Twitter   string `json:"twitter"`
	Youtube   string `json:"youtube"`
}

// BasicInfo is the editable free-text part of a profile.
type BasicInfo struct {
	Quote    string `json:"quote"`
	Work     string `json:"work"`
	School   string `json:"school"`
	Location string `json:"location"`
}

// User is a profile document.
type User struct {
	ID             string               `json:"_id" gorm:"primaryKey;size:64"`
	AuthID         string               `json:"authId" gorm:"size:64;index"`
	UID            string               `json:"uId" gorm:"size:32;index"`
	Username       string               `json:"username" gorm:"size:64;index"`
	Email          string               `json:"email" gorm:"size:255"`
	AvatarColor    string               `json:"avatarColor" gorm:"size:32"`
	PostsCount     int64                `json:"postsCount"`
	FollowersCount int64                `json:"followersCount"`
	FollowingCount int64                `json:"followingCount"`
	Blocked        []string             `json:"blocked" gorm:"serializer:json"`
	BlockedBy      []string             `json:"blockedBy" gorm:"serializer:json"`
	Notifications  NotificationSettings `json:"notifications" gorm:"serializer:json"`
	Social         SocialLinks          `json:"social" gorm:"serializer:json"`
	ProfilePicture string               `json:"profilePicture"`
	Work           string               `json:"work"`
	School         string               `json:"school"`
	Location       string               `json:"location"`
	Quote          string               `json:"quote"`
	BgImageVersion string               `json:"bgImageVersion" gorm:"size:64"`
	BgImageID      string               `json:"bgImageId" gorm:"size:255"`
	CreatedAt      time.Time            `json:"createdAt"`
	Version        int64                `json:"version"`

	// Store-side clocks of the independently updated profile parts.
	SocialVersion   int64 `json:"-"`
	SettingsVersion int64 `json:"-"`
}

func (User) TableName() string { return "users" }

func (u User) GetPrimaryKeyValue() interface{} { return u.ID }

// Auth is the credential record behind a user.
type Auth struct {
	ID          string    `json:"_id" gorm:"primaryKey;size:64"`
	UID         string    `json:"uId" gorm:"size:32;uniqueIndex"`
	Username    string    `json:"username" gorm:"size:64;uniqueIndex"`
	Email       string    `json:"email" gorm:"size:255;uniqueIndex"`
	Password    string    `json:"-" gorm:"size:255"`
	AvatarColor string    `json:"avatarColor" gorm:"size:32"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Auth) TableName() string { return "auth" }

func (a Auth) GetPrimaryKeyValue() interface{} { return a.ID }

// CurrentUser is the verified identity attached to a request.
type CurrentUser struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	AvatarColor string `json:"avatarColor"`
	Email       string `json:"email"`
	UID         string `json:"uId"`
}

// Counter names maintained on a user record.
const (
	FieldPostsCount     = "postsCount"
	FieldFollowersCount = "followersCount"
	FieldFollowingCount = "followingCount"
)

// Blocked list names on a user record.
const (
	FieldBlocked   = "blocked"
	FieldBlockedBy = "blockedBy"
)
