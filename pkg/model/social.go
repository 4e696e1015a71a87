package model

import "time"

// Follower is a follower -> followee edge in the system of record. An
// unfollow keeps the row as a tombstone holding the version of the last
// change.
type Follower struct {
	ID         string    `json:"_id" gorm:"primaryKey;size:96"`
	FollowerID string    `json:"followerId" gorm:"size:64;uniqueIndex:idx_follow_edge"`
	FolloweeID string    `json:"followeeId" gorm:"size:64;uniqueIndex:idx_follow_edge;index"`
	Removed    bool      `json:"-" gorm:"index"`
	Version    int64     `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (Follower) TableName() string { return "followers" }

func (f Follower) GetPrimaryKeyValue() interface{} { return f.ID }

// FollowerData is the listing projection of a followed or following user.
type FollowerData struct {
	ID             string `json:"_id"`
	Username       string `json:"username"`
	AvatarColor    string `json:"avatarColor"`
	PostCount      int64  `json:"postCount"`
	FollowersCount int64  `json:"followersCount"`
	FollowingCount int64  `json:"followingCount"`
	ProfilePicture string `json:"profilePicture"`
	UID            string `json:"uId"`
	UserProfile    *User  `json:"userProfile,omitempty"`
}

// NewFollowerData projects a user into a follower listing entry.
func NewFollowerData(u *User) FollowerData {
	return FollowerData{
		ID:             u.ID,
		Username:       u.Username,
		AvatarColor:    u.AvatarColor,
		PostCount:      u.PostsCount,
		FollowersCount: u.FollowersCount,
		FollowingCount: u.FollowingCount,
		ProfilePicture: u.ProfilePicture,
		UID:            u.UID,
		UserProfile:    u,
	}
}

// Block is a blocker -> blocked relation in the system of record, kept as a
// tombstone after an unblock like Follower.
type Block struct {
	ID        string    `json:"_id" gorm:"primaryKey;size:96"`
	BlockerID string    `json:"blockerId" gorm:"size:64;uniqueIndex:idx_block_pair"`
	BlockedID string    `json:"blockedId" gorm:"size:64;uniqueIndex:idx_block_pair"`
	Removed   bool      `json:"-"`
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Block) TableName() string { return "blocks" }

func (b Block) GetPrimaryKeyValue() interface{} { return b.ID }

// BlockAction is the direction of a block update.
type BlockAction string

const (
	ActionBlock   BlockAction = "block"
	ActionUnblock BlockAction = "unblock"
)

// Image is an uploaded image record.
type Image struct {
	ID             string    `json:"_id" gorm:"primaryKey;size:64"`
	UserID         string    `json:"userId" gorm:"size:64;index"`
	BgImageVersion string    `json:"bgImageVersion" gorm:"size:64"`
	BgImageID      string    `json:"bgImageId" gorm:"size:255"`
	ImgVersion     string    `json:"imgVersion" gorm:"size:64"`
	ImgID          string    `json:"imgId" gorm:"size:255"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (Image) TableName() string { return "images" }

func (i Image) GetPrimaryKeyValue() interface{} { return i.ID }

// NotificationType classifies what produced a notification.
type NotificationType string

const (
	NotificationComment  NotificationType = "comments"
	NotificationReaction NotificationType = "reactions"
	NotificationFollow   NotificationType = "follows"
	NotificationMessage  NotificationType = "messages"
)

// Notification is a user-facing notice of another user's action.
type Notification struct {
	ID               string           `json:"_id" gorm:"primaryKey;size:64"`
	UserTo           string           `json:"userTo" gorm:"size:64;index"`
	UserFrom         string           `json:"userFrom" gorm:"size:64"`
	Username         string           `json:"username" gorm:"size:64"`
	AvatarColor      string           `json:"avatarColor" gorm:"size:32"`
	ProfilePicture   string           `json:"profilePicture"`
	Message          string           `json:"message" gorm:"type:text"`
	NotificationType NotificationType `json:"notificationType" gorm:"size:32"`
	EntityID         string           `json:"entityId" gorm:"size:64"`
	CreatedItemID    string           `json:"createdItemId" gorm:"size:96"`
	Comment          string           `json:"comment" gorm:"type:text"`
	Reaction         string           `json:"reaction" gorm:"size:16"`
	Post             string           `json:"post" gorm:"type:text"`
	ImgID            string           `json:"imgId" gorm:"size:255"`
	ImgVersion       string           `json:"imgVersion" gorm:"size:64"`
	GifURL           string           `json:"gifUrl"`
	Read             bool             `json:"read"`
	CreatedAt        time.Time        `json:"createdAt"`
}

func (Notification) TableName() string { return "notifications" }

func (n Notification) GetPrimaryKeyValue() interface{} { return n.ID }

// Allows reports whether settings permit a notification of type t.
func (s NotificationSettings) Allows(t NotificationType) bool {
	switch t {
	case NotificationComment:
		return s.Comments
	case NotificationReaction:
		return s.Reactions
	case NotificationFollow:
		return s.Follows
	case NotificationMessage:
		return s.Messages
	}
	return false
}
