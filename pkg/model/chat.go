package model

import "time"

// MessageReaction is one user's reaction on a chat message.
type MessageReaction struct {
	SenderName string `json:"senderName"`
	Type       string `json:"type"`
}

// Message is a chat message.
type Message struct {
	ID                     string            `json:"_id" gorm:"primaryKey;size:64"`
	ConversationID         string            `json:"conversationId" gorm:"size:96;index"`
	SenderID               string            `json:"senderId" gorm:"size:64;index"`
	SenderUsername         string            `json:"senderUsername" gorm:"size:64"`
	SenderAvatarColor      string            `json:"senderAvatarColor" gorm:"size:32"`
	SenderProfilePicture   string            `json:"senderProfilePicture"`
	ReceiverID             string            `json:"receiverId" gorm:"size:64;index"`
	ReceiverUsername       string            `json:"receiverUsername" gorm:"size:64"`
	ReceiverAvatarColor    string            `json:"receiverAvatarColor" gorm:"size:32"`
	ReceiverProfilePicture string            `json:"receiverProfilePicture"`
	Body                   string            `json:"body" gorm:"type:text"`
	GifURL                 string            `json:"gifUrl"`
	SelectedImage          string            `json:"selectedImage"`
	IsRead                 bool              `json:"isRead"`
	DeleteForMe            bool              `json:"deleteForMe"`
	DeleteForEveryone      bool              `json:"deleteForEveryone"`
	Reaction               []MessageReaction `json:"reaction" gorm:"serializer:json"`
	CreatedAt              time.Time         `json:"createdAt"`
}

func (Message) TableName() string { return "messages" }

func (m Message) GetPrimaryKeyValue() interface{} { return m.ID }

// Conversation pairs the two participants of a chat.
type Conversation struct {
	ID         string    `json:"_id" gorm:"primaryKey;size:96"`
	SenderID   string    `json:"senderId" gorm:"size:64;index"`
	ReceiverID string    `json:"receiverId" gorm:"size:64;index"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (Conversation) TableName() string { return "conversations" }

func (c Conversation) GetPrimaryKeyValue() interface{} { return c.ID }

// ChatListItem is one entry of a user's conversation list in the cache.
type ChatListItem struct {
	ReceiverID     string `json:"receiverId"`
	ConversationID string `json:"conversationId"`
}

// ChatUsers records two users currently viewing a chat with each other.
type ChatUsers struct {
	UserOne string `json:"userOne"`
	UserTwo string `json:"userTwo"`
}

// DeleteType selects whom a message deletion applies to.
type DeleteType string

const (
	DeleteForMe       DeleteType = "deleteForMe"
	DeleteForEveryone DeleteType = "deleteForEveryone"
)

// ReactionAction adds or removes a chat message reaction.
type ReactionAction string

const (
	ReactionAdd    ReactionAction = "add"
	ReactionRemove ReactionAction = "remove"
)

// ApplyReaction replaces senderName's reaction on m; remove drops it.
func (m *Message) ApplyReaction(senderName, reaction string, action ReactionAction) {
	kept := m.Reaction[:0]
	for _, r := range m.Reaction {
		if r.SenderName != senderName {
			kept = append(kept, r)
		}
	}
	m.Reaction = kept
	if action == ReactionAdd {
		m.Reaction = append(m.Reaction, MessageReaction{SenderName: senderName, Type: reaction})
	}
}

// ApplyDelete marks m deleted per the delete type.
func (m *Message) ApplyDelete(t DeleteType) {
	switch t {
	case DeleteForMe:
		m.DeleteForMe = true
	case DeleteForEveryone:
		m.DeleteForMe = true
		m.DeleteForEveryone = true
	}
}
