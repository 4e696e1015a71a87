package queue

import (
	"fmt"

	"github.com/ammar0144/socialcache/pkg/model"
)

// Domain names one durable queue.
type Domain string

const (
	DomainAuth         Domain = "auth"
	DomainUser         Domain = "user"
	DomainPost         Domain = "post"
	DomainComment      Domain = "comment"
	DomainReaction     Domain = "reaction"
	DomainFollower     Domain = "follower"
	DomainChat         Domain = "chat"
	DomainNotification Domain = "notification"
	DomainImage        Domain = "image"
	DomainEmail        Domain = "email"
)

// Domains lists every queue in startup order.
var Domains = []Domain{
	DomainAuth, DomainUser, DomainPost, DomainComment, DomainReaction,
	DomainFollower, DomainChat, DomainNotification, DomainImage, DomainEmail,
}

// Name identifies a job type.
type Name string

const (
	JobAddAuthUser Name = "addAuthUserToDB"

	JobAddUser                    Name = "addUserToDB"
	JobUpdateBasicInfo            Name = "updateBasicInfoInDB"
	JobUpdateSocialLinks          Name = "updateSocialLinksInDB"
	JobUpdateNotificationSettings Name = "updateNotificationSettings"

	JobAddPost    Name = "addPostToDB"
	JobUpdatePost Name = "updatePostInDB"
	JobDeletePost Name = "deletePostFromDB"

	JobAddComment Name = "addCommentToDB"

	JobAddReaction    Name = "addReactionToDB"
	JobRemoveReaction Name = "removeReactionFromDB"

	JobAddFollower       Name = "addFollowerToDB"
	JobRemoveFollower    Name = "removeFollowerFromDB"
	JobAddBlockedUser    Name = "addBlockedUserToDB"
	JobRemoveBlockedUser Name = "removeBlockedUserFromDB"

	JobAddChatMessage        Name = "addChatMessageToDB"
	JobMarkMessageDeleted    Name = "markMessageAsDeletedInDB"
	JobMarkMessagesRead      Name = "markMessageAsReadInDB"
	JobUpdateMessageReaction Name = "updateMessageReaction"

	JobAddNotification    Name = "addNotificationToDB"
	JobUpdateNotification Name = "updateNotification"
	JobDeleteNotification Name = "deleteNotification"

	JobAddUserProfileImage Name = "addUserProfileImageToDB"
	JobUpdateBGImage       Name = "updateBGImageInDB"
	JobAddImage            Name = "addImageToDB"
	JobRemoveImage         Name = "removeImageFromDB"

	JobChangePasswordEmail Name = "changePassword"
	JobForgotPasswordEmail Name = "forgotPasswordEmail"
	JobCommentsEmail       Name = "commentsEmail"
	JobFollowersEmail      Name = "followersEmail"
	JobReactionsEmail      Name = "reactionsEmail"
	JobDirectMessageEmail  Name = "directMessageEmail"
)

// catalogue is the closed set of job names and the queue owning each.
var catalogue = map[Name]Domain{
	JobAddAuthUser: DomainAuth,

	JobAddUser:                    DomainUser,
	JobUpdateBasicInfo:            DomainUser,
	JobUpdateSocialLinks:          DomainUser,
	JobUpdateNotificationSettings: DomainUser,

	JobAddPost:    DomainPost,
	JobUpdatePost: DomainPost,
	JobDeletePost: DomainPost,

	JobAddComment: DomainComment,

	JobAddReaction:    DomainReaction,
	JobRemoveReaction: DomainReaction,

	JobAddFollower:       DomainFollower,
	JobRemoveFollower:    DomainFollower,
	JobAddBlockedUser:    DomainFollower,
	JobRemoveBlockedUser: DomainFollower,

	JobAddChatMessage:        DomainChat,
	JobMarkMessageDeleted:    DomainChat,
	JobMarkMessagesRead:      DomainChat,
	JobUpdateMessageReaction: DomainChat,

	JobAddNotification:    DomainNotification,
	JobUpdateNotification: DomainNotification,
	JobDeleteNotification: DomainNotification,

	JobAddUserProfileImage: DomainImage,
	JobUpdateBGImage:       DomainImage,
	JobAddImage:            DomainImage,
	JobRemoveImage:         DomainImage,

	JobChangePasswordEmail: DomainEmail,
	JobForgotPasswordEmail: DomainEmail,
	JobCommentsEmail:       DomainEmail,
	JobFollowersEmail:      DomainEmail,
	JobReactionsEmail:      DomainEmail,
	JobDirectMessageEmail:  DomainEmail,
}

// DomainOf returns the queue owning a job name.
func DomainOf(name Name) (Domain, error) {
	domain, ok := catalogue[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return domain, nil
}

// NamesOf lists the job names owned by a queue.
func NamesOf(domain Domain) []Name {
	var names []Name
	for name, d := range catalogue {
		if d == domain {
			names = append(names, name)
		}
	}
	return names
}

// Payload is one variant of the job union. Each variant is a distinct type
// bound to exactly one job name and validated before it is stored.
type Payload interface {
	JobName() Name
	Validate() error
}

func required(name Name, fields ...string) error {
	for i := 0; i < len(fields); i += 2 {
		if fields[i+1] == "" {
			return fmt.Errorf("%w: %s requires %s", ErrInvalidPayload, name, fields[i])
		}
	}
	return nil
}

// ============================================================================
// AUTH / USER
// ============================================================================

type AddAuthUser struct {
	Value model.Auth `msgpack:"value"`
}

func (AddAuthUser) JobName() Name { return JobAddAuthUser }
func (p AddAuthUser) Validate() error {
	return required(p.JobName(), "value._id", p.Value.ID, "value.username", p.Value.Username)
}

type AddUser struct {
	Value model.User `msgpack:"value"`
}

func (AddUser) JobName() Name { return JobAddUser }
func (p AddUser) Validate() error {
	return required(p.JobName(), "value._id", p.Value.ID, "value.uId", p.Value.UID)
}

type UpdateBasicInfo struct {
	Key     string          `msgpack:"key"`
	Value   model.BasicInfo `msgpack:"value"`
	Version int64           `msgpack:"version"`
}

func (UpdateBasicInfo) JobName() Name     { return JobUpdateBasicInfo }
func (p UpdateBasicInfo) Validate() error { return versioned(p.JobName(), p.Key, p.Version) }

type UpdateSocialLinks struct {
	Key     string            `msgpack:"key"`
	Value   model.SocialLinks `msgpack:"value"`
	Version int64             `msgpack:"version"`
}

func (UpdateSocialLinks) JobName() Name     { return JobUpdateSocialLinks }
func (p UpdateSocialLinks) Validate() error { return versioned(p.JobName(), p.Key, p.Version) }

type UpdateNotificationSettings struct {
	Key     string                     `msgpack:"key"`
	Value   model.NotificationSettings `msgpack:"value"`
	Version int64                      `msgpack:"version"`
}

func (UpdateNotificationSettings) JobName() Name { return JobUpdateNotificationSettings }
func (p UpdateNotificationSettings) Validate() error {
	return versioned(p.JobName(), p.Key, p.Version)
}

func versioned(name Name, key string, version int64) error {
	if err := required(name, "key", key); err != nil {
		return err
	}
	if version <= 0 {
		return fmt.Errorf("%w: %s requires a positive version", ErrInvalidPayload, name)
	}
	return nil
}

// ============================================================================
// POST / COMMENT / REACTION
// ============================================================================

type AddPost struct {
	Key   string     `msgpack:"key"`
	Value model.Post `msgpack:"value"`
}

func (AddPost) JobName() Name { return JobAddPost }
func (p AddPost) Validate() error {
	return required(p.JobName(), "key", p.Key, "value._id", p.Value.ID)
}

type UpdatePost struct {
	Key     string     `msgpack:"key"`
	Value   model.Post `msgpack:"value"`
	Version int64      `msgpack:"version"`
}

func (UpdatePost) JobName() Name     { return JobUpdatePost }
func (p UpdatePost) Validate() error { return versioned(p.JobName(), p.Key, p.Version) }

type DeletePost struct {
	KeyOne string `msgpack:"keyOne"` // post id
	KeyTwo string `msgpack:"keyTwo"` // author id
}

func (DeletePost) JobName() Name { return JobDeletePost }
func (p DeletePost) Validate() error {
	return required(p.JobName(), "keyOne", p.KeyOne, "keyTwo", p.KeyTwo)
}

type AddComment struct {
	PostID   string        `msgpack:"postId"`
	UserTo   string        `msgpack:"userTo"`
	UserFrom string        `msgpack:"userFrom"`
	Username string        `msgpack:"username"`
	Comment  model.Comment `msgpack:"comment"`
}

func (AddComment) JobName() Name { return JobAddComment }
func (p AddComment) Validate() error {
	return required(p.JobName(), "postId", p.PostID, "comment._id", p.Comment.ID, "username", p.Username)
}

type AddReaction struct {
	PostID           string             `msgpack:"postId"`
	UserTo           string             `msgpack:"userTo"`
	UserFrom         string             `msgpack:"userFrom"`
	Username         string             `msgpack:"username"`
	Type             model.ReactionType `msgpack:"type"`
	PreviousReaction model.ReactionType `msgpack:"previousReaction"`
	ReactionObject   model.Reaction     `msgpack:"reactionObject"`
	Version          int64              `msgpack:"version"`
}

func (AddReaction) JobName() Name { return JobAddReaction }
func (p AddReaction) Validate() error {
	if err := required(p.JobName(), "postId", p.PostID, "username", p.Username); err != nil {
		return err
	}
	if _, err := model.ParseReactionType(string(p.Type)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return versioned(p.JobName(), p.PostID, p.Version)
}

type RemoveReaction struct {
	PostID           string             `msgpack:"postId"`
	Username         string             `msgpack:"username"`
	PreviousReaction model.ReactionType `msgpack:"previousReaction"`
	Version          int64              `msgpack:"version"`
}

func (RemoveReaction) JobName() Name { return JobRemoveReaction }
func (p RemoveReaction) Validate() error {
	if err := required(p.JobName(), "postId", p.PostID, "username", p.Username); err != nil {
		return err
	}
	return versioned(p.JobName(), p.PostID, p.Version)
}

// ============================================================================
// FOLLOWER / BLOCK
// ============================================================================

// AddFollower makes KeyOne follow KeyTwo. Follow and unfollow of the same
// edge are ordered by Version, whichever queue slot runs first.
type AddFollower struct {
	KeyOne             string `msgpack:"keyOne"` // follower id
	KeyTwo             string `msgpack:"keyTwo"` // followee id
	Username           string `msgpack:"username"`
	FollowerDocumentID string `msgpack:"followerDocumentId"`
	Version            int64  `msgpack:"version"`
}

func (AddFollower) JobName() Name     { return JobAddFollower }
func (p AddFollower) Validate() error { return pair(p.JobName(), p.KeyOne, p.KeyTwo, p.Version) }

// RemoveFollower tombstones the KeyOne -> KeyTwo edge at Version.
type RemoveFollower struct {
	KeyOne  string `msgpack:"keyOne"`
	KeyTwo  string `msgpack:"keyTwo"`
	Version int64  `msgpack:"version"`
}

func (RemoveFollower) JobName() Name     { return JobRemoveFollower }
func (p RemoveFollower) Validate() error { return pair(p.JobName(), p.KeyOne, p.KeyTwo, p.Version) }

// AddBlockedUser blocks KeyTwo for KeyOne, ordered by Version against unblocks.
type AddBlockedUser struct {
	KeyOne  string `msgpack:"keyOne"` // blocker id
	KeyTwo  string `msgpack:"keyTwo"` // blocked id
	Version int64  `msgpack:"version"`
}

func (AddBlockedUser) JobName() Name     { return JobAddBlockedUser }
func (p AddBlockedUser) Validate() error { return pair(p.JobName(), p.KeyOne, p.KeyTwo, p.Version) }

// RemoveBlockedUser lifts the block at Version.
type RemoveBlockedUser struct {
	KeyOne  string `msgpack:"keyOne"`
	KeyTwo  string `msgpack:"keyTwo"`
	Version int64  `msgpack:"version"`
}

func (RemoveBlockedUser) JobName() Name     { return JobRemoveBlockedUser }
func (p RemoveBlockedUser) Validate() error { return pair(p.JobName(), p.KeyOne, p.KeyTwo, p.Version) }

// pair validates an edge between two distinct users. The edge state is
// last-writer-wins, so the version is required.
func pair(name Name, one, two string, version int64) error {
	if err := required(name, "keyOne", one, "keyTwo", two); err != nil {
		return err
	}
	if one == two {
		return fmt.Errorf("%w: %s keys must differ", ErrInvalidPayload, name)
	}
	return versioned(name, one, version)
}

// ============================================================================
// CHAT
// ============================================================================

type AddChatMessage struct {
	Value model.Message `msgpack:"value"`
}

func (AddChatMessage) JobName() Name { return JobAddChatMessage }
func (p AddChatMessage) Validate() error {
	return required(p.JobName(), "value._id", p.Value.ID, "value.conversationId", p.Value.ConversationID,
		"value.senderId", p.Value.SenderID, "value.receiverId", p.Value.ReceiverID)
}

type MarkMessageDeleted struct {
	MessageID string           `msgpack:"messageId"`
	Type      model.DeleteType `msgpack:"type"`
}

func (MarkMessageDeleted) JobName() Name { return JobMarkMessageDeleted }
func (p MarkMessageDeleted) Validate() error {
	if p.Type != model.DeleteForMe && p.Type != model.DeleteForEveryone {
		return fmt.Errorf("%w: %s unknown delete type %q", ErrInvalidPayload, p.JobName(), p.Type)
	}
	return required(p.JobName(), "messageId", p.MessageID)
}

type MarkMessagesRead struct {
	SenderID   string `msgpack:"senderId"`
	ReceiverID string `msgpack:"receiverId"`
}

func (MarkMessagesRead) JobName() Name { return JobMarkMessagesRead }
func (p MarkMessagesRead) Validate() error {
	return required(p.JobName(), "senderId", p.SenderID, "receiverId", p.ReceiverID)
}

type UpdateMessageReaction struct {
	MessageID  string               `msgpack:"messageId"`
	SenderName string               `msgpack:"senderName"`
	Reaction   string               `msgpack:"reaction"`
	Type       model.ReactionAction `msgpack:"type"`
}

func (UpdateMessageReaction) JobName() Name { return JobUpdateMessageReaction }
func (p UpdateMessageReaction) Validate() error {
	if p.Type != model.ReactionAdd && p.Type != model.ReactionRemove {
		return fmt.Errorf("%w: %s unknown reaction action %q", ErrInvalidPayload, p.JobName(), p.Type)
	}
	return required(p.JobName(), "messageId", p.MessageID, "senderName", p.SenderName)
}

// ============================================================================
// NOTIFICATION
// ============================================================================

type AddNotification struct {
	Value model.Notification `msgpack:"value"`
}

func (AddNotification) JobName() Name { return JobAddNotification }
func (p AddNotification) Validate() error {
	return required(p.JobName(), "value._id", p.Value.ID, "value.userTo", p.Value.UserTo)
}

type UpdateNotification struct {
	Key string `msgpack:"key"`
}

func (UpdateNotification) JobName() Name     { return JobUpdateNotification }
func (p UpdateNotification) Validate() error { return required(p.JobName(), "key", p.Key) }

type DeleteNotification struct {
	Key string `msgpack:"key"`
}

func (DeleteNotification) JobName() Name     { return JobDeleteNotification }
func (p DeleteNotification) Validate() error { return required(p.JobName(), "key", p.Key) }

// ============================================================================
// IMAGE
// ============================================================================

type AddUserProfileImage struct {
	Key        string `msgpack:"key"`   // user id
	Value      string `msgpack:"value"` // picture url
	ImgID      string `msgpack:"imgId"`
	ImgVersion string `msgpack:"imgVersion"`
}

func (AddUserProfileImage) JobName() Name { return JobAddUserProfileImage }
func (p AddUserProfileImage) Validate() error {
	return required(p.JobName(), "key", p.Key, "value", p.Value)
}

type UpdateBGImage struct {
	Key        string `msgpack:"key"`
	ImgID      string `msgpack:"imgId"`
	ImgVersion string `msgpack:"imgVersion"`
}

func (UpdateBGImage) JobName() Name { return JobUpdateBGImage }
func (p UpdateBGImage) Validate() error {
	return required(p.JobName(), "key", p.Key, "imgId", p.ImgID)
}

type AddImage struct {
	Key        string `msgpack:"key"`
	ImgID      string `msgpack:"imgId"`
	ImgVersion string `msgpack:"imgVersion"`
}

func (AddImage) JobName() Name { return JobAddImage }
func (p AddImage) Validate() error {
	return required(p.JobName(), "key", p.Key, "imgId", p.ImgID)
}

type RemoveImage struct {
	ImageID string `msgpack:"imageId"`
}

func (RemoveImage) JobName() Name     { return JobRemoveImage }
func (p RemoveImage) Validate() error { return required(p.JobName(), "imageId", p.ImageID) }

// ============================================================================
// EMAIL
// ============================================================================

// EmailContent is the rendered message carried by every email job.
type EmailContent struct {
	ReceiverEmail string `msgpack:"receiverEmail"`
	Subject       string `msgpack:"subject"`
	Template      string `msgpack:"template"`
}

func (e EmailContent) Content() EmailContent { return e }

func (e EmailContent) validate(name Name) error {
	return required(name, "receiverEmail", e.ReceiverEmail, "subject", e.Subject)
}

type ChangePasswordEmail struct{ EmailContent }

func (ChangePasswordEmail) JobName() Name     { return JobChangePasswordEmail }
func (p ChangePasswordEmail) Validate() error { return p.validate(p.JobName()) }

type ForgotPasswordEmail struct{ EmailContent }

func (ForgotPasswordEmail) JobName() Name     { return JobForgotPasswordEmail }
func (p ForgotPasswordEmail) Validate() error { return p.validate(p.JobName()) }

type CommentsEmail struct{ EmailContent }

func (CommentsEmail) JobName() Name     { return JobCommentsEmail }
func (p CommentsEmail) Validate() error { return p.validate(p.JobName()) }

type FollowersEmail struct{ EmailContent }

func (FollowersEmail) JobName() Name     { return JobFollowersEmail }
func (p FollowersEmail) Validate() error { return p.validate(p.JobName()) }

type ReactionsEmail struct{ EmailContent }

func (ReactionsEmail) JobName() Name     { return JobReactionsEmail }
func (p ReactionsEmail) Validate() error { return p.validate(p.JobName()) }

type DirectMessageEmail struct{ EmailContent }

func (DirectMessageEmail) JobName() Name     { return JobDirectMessageEmail }
func (p DirectMessageEmail) Validate() error { return p.validate(p.JobName()) }
