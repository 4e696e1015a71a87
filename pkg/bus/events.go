package bus

import "encoding/json"

// Event names understood by clients.
const (
	EventMessageReceived    = "message received"
	EventChatList           = "chat list"
	EventMessageReaction    = "message reaction"
	EventMessageRead        = "message read"
	EventUpdateNotification = "update notification"
	EventDeleteNotification = "delete notification"
	EventInsertNotification = "insert notification"
	EventUpdateUser         = "update user"
	EventDeleteImage        = "delete image"
	EventAddChatUsers       = "add chat users"
	EventAddPost            = "add post"
	EventUpdatePost         = "update post"
	EventDeletePost         = "delete post"
	EventAddFollower        = "add follower"
	EventRemoveFollower     = "remove follower"
	EventAddReaction        = "add reaction"
	EventAddComment         = "add comment"
)

// Envelope is the unit published on the backbone and written to clients.
// Origin identifies the publishing process and is cleared for clients.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Origin  string          `json:"origin,omitempty"`
}
