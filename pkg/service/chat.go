package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ammar0144/socialcache/pkg/bus"
	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/queue"
)

// MessageInput is a chat message from the current user.
type MessageInput struct {
	ReceiverID             string `json:"receiverId"`
	ReceiverUsername       string `json:"receiverUsername"`
	ReceiverAvatarColor    string `json:"receiverAvatarColor"`
	ReceiverProfilePicture string `json:"receiverProfilePicture"`
	SenderProfilePicture   string `json:"senderProfilePicture"`
	Body                   string `json:"body"`
	GifURL                 string `json:"gifUrl"`
	SelectedImage          string `json:"selectedImage"`
}

// SendMessage appends a message to the conversation with the receiver. The
// receiver is notified unless they are viewing the conversation.
func (s *Service) SendMessage(ctx context.Context, current model.CurrentUser, in MessageInput) (*model.Message, error) {
	if err := validCurrent(current); err != nil {
		return nil, err
	}
	if err := required("receiverId", in.ReceiverID, "receiverUsername", in.ReceiverUsername); err != nil {
		return nil, err
	}
	if in.ReceiverID == current.UserID {
		return nil, fmt.Errorf("%w: cannot message yourself", ErrValidation)
	}
	if in.Body == "" && in.GifURL == "" && in.SelectedImage == "" {
		return nil, fmt.Errorf("%w: message has no content", ErrValidation)
	}
	receiver, err := s.GetUser(ctx, in.ReceiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, in.ReceiverID)
	}

	conversationID := model.ConversationID(current.UserID, in.ReceiverID)
	message := &model.Message{
		ID:                     model.NewID(),
		ConversationID:         conversationID,
		SenderID:               current.UserID,
		SenderUsername:         current.Username,
		SenderAvatarColor:      current.AvatarColor,
		SenderProfilePicture:   in.SenderProfilePicture,
		ReceiverID:             in.ReceiverID,
		ReceiverUsername:       in.ReceiverUsername,
		ReceiverAvatarColor:    in.ReceiverAvatarColor,
		ReceiverProfilePicture: in.ReceiverProfilePicture,
		Body:                   in.Body,
		GifURL:                 in.GifURL,
		SelectedImage:          in.SelectedImage,
		Reaction:               []model.MessageReaction{},
		CreatedAt:              time.Now().UTC(),
	}

	if err := s.cache.Messages.AddChatListEntry(ctx, current.UserID, in.ReceiverID, conversationID); err != nil {
		return nil, err
	}
	if err := s.cache.Messages.AddChatListEntry(ctx, in.ReceiverID, current.UserID, conversationID); err != nil {
		return nil, err
	}
	if err := s.cache.Messages.AddChatMessage(ctx, message); err != nil {
		return nil, err
	}

	s.emit(ctx, bus.EventMessageReceived, message)
	s.emit(ctx, bus.EventChatList, message)
	s.enqueue(ctx, queue.AddChatMessage{Value: *message})

	viewing, err := s.inChat(ctx, in.ReceiverID, current.UserID)
	if err != nil {
		s.log.Error().Err(err).Str("conversation_id", conversationID).Msg("chat users lookup failed")
	}
	if !viewing {
		s.notify(ctx, receiver, &model.Notification{
			UserFrom:         current.UserID,
			Username:         current.Username,
			AvatarColor:      current.AvatarColor,
			ProfilePicture:   in.SenderProfilePicture,
			Message:          fmt.Sprintf("You have a new message from %s.", current.Username),
			NotificationType: model.NotificationMessage,
			EntityID:         conversationID,
			CreatedItemID:    message.ID,
		}, func(c queue.EmailContent) queue.Payload { return queue.DirectMessageEmail{EmailContent: c} }, "Direct message notification")
	}
	return message, nil
}

// inChat reports whether viewer currently has the chat with other open.
func (s *Service) inChat(ctx context.Context, viewer, other string) (bool, error) {
	pairs, err := s.cache.Messages.GetChatUsers(ctx)
	if err != nil {
		return false, err
	}
	for _, pair := range pairs {
		if pair.UserOne == viewer && pair.UserTwo == other {
			return true, nil
		}
	}
	return false, nil
}

// GetConversationList returns the last message of each of the current
// user's conversations.
func (s *Service) GetConversationList(ctx context.Context, current model.CurrentUser) ([]model.Message, error) {
	if err := validCurrent(current); err != nil {
		return nil, err
	}
	list, err := s.cache.Messages.GetConversationList(ctx, current.UserID)
	if err != nil || len(list) > 0 {
		return list, err
	}
	return s.store.GetConversationList(ctx, current.UserID)
}

// GetMessages returns the conversation with receiverID, oldest first.
func (s *Service) GetMessages(ctx context.Context, current model.CurrentUser, receiverID string) ([]model.Message, error) {
	if err := validCurrent(current); err != nil {
		return nil, err
	}
	if err := required("receiverId", receiverID); err != nil {
		return nil, err
	}
	conversationID := model.ConversationID(current.UserID, receiverID)
	messages, err := s.cache.Messages.GetChatMessages(ctx, conversationID)
	if err != nil || len(messages) > 0 {
		return messages, err
	}
	return s.store.GetChatMessages(ctx, conversationID)
}

// DeleteMessage marks a message of the conversation with receiverID deleted.
func (s *Service) DeleteMessage(ctx context.Context, current model.CurrentUser, receiverID, messageID string, deleteType model.DeleteType) (*model.Message, error) {
	if deleteType != model.DeleteForMe && deleteType != model.DeleteForEveryone {
		return nil, fmt.Errorf("%w: unknown delete type %q", ErrValidation, deleteType)
	}
	message, err := s.updateMessage(ctx, current, receiverID, messageID,
		func(conversationID string) (*model.Message, error) {
			return s.cache.Messages.MarkMessageDeleted(ctx, conversationID, messageID, deleteType)
		},
		func(m *model.Message) { m.ApplyDelete(deleteType) })
	if err != nil {
		return nil, err
	}
	s.emit(ctx, bus.EventMessageRead, message)
	s.enqueue(ctx, queue.MarkMessageDeleted{MessageID: messageID, Type: deleteType})
	return message, nil
}

// ReactToMessage adds or removes the current user's reaction on a message.
func (s *Service) ReactToMessage(ctx context.Context, current model.CurrentUser, receiverID, messageID, reaction string, action model.ReactionAction) (*model.Message, error) {
	switch action {
	case model.ReactionAdd:
		if err := required("reaction", reaction); err != nil {
			return nil, err
		}
	case model.ReactionRemove:
	default:
		return nil, fmt.Errorf("%w: unknown reaction action %q", ErrValidation, action)
	}
	message, err := s.updateMessage(ctx, current, receiverID, messageID,
		func(conversationID string) (*model.Message, error) {
			return s.cache.Messages.UpdateMessageReaction(ctx, conversationID, messageID, current.Username, reaction, action)
		},
		func(m *model.Message) { m.ApplyReaction(current.Username, reaction, action) })
	if err != nil {
		return nil, err
	}
	s.emit(ctx, bus.EventMessageReaction, message)
	s.enqueue(ctx, queue.UpdateMessageReaction{MessageID: messageID, SenderName: current.Username, Reaction: reaction, Type: action})
	return message, nil
}

// updateMessage applies a change to the cached message, or to a copy of the
// stored one when the conversation is not cached.
func (s *Service) updateMessage(ctx context.Context, current model.CurrentUser, receiverID, messageID string,
	cached func(conversationID string) (*model.Message, error), mutate func(*model.Message)) (*model.Message, error) {
	if err := validCurrent(current); err != nil {
		return nil, err
	}
	if err := required("receiverId", receiverID, "messageId", messageID); err != nil {
		return nil, err
	}
	conversationID := model.ConversationID(current.UserID, receiverID)
	message, err := cached(conversationID)
	if err != nil || message != nil {
		return message, err
	}
	message, err = s.store.Messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message == nil || message.ConversationID != conversationID {
		return nil, fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}
	mutate(message)
	return message, nil
}

// MarkMessagesRead marks every message senderID sent the current user as
// read. It returns the conversation's last message, nil when it has none.
func (s *Service) MarkMessagesRead(ctx context.Context, current model.CurrentUser, senderID string) (*model.Message, error) {
	if err := validCurrent(current); err != nil {
		return nil, err
	}
	if err := required("senderId", senderID); err != nil {
		return nil, err
	}
	last, err := s.cache.Messages.MarkMessagesRead(ctx, model.ConversationID(current.UserID, senderID), current.UserID)
	if err != nil {
		return nil, err
	}
	if last != nil {
		s.emit(ctx, bus.EventMessageRead, last)
		s.emit(ctx, bus.EventChatList, last)
	}
	s.enqueue(ctx, queue.MarkMessagesRead{SenderID: senderID, ReceiverID: current.UserID})
	return last, nil
}

// AddChatUsers records that users.UserOne has the chat with users.UserTwo
// open. Chat presence lives in the cache only.
func (s *Service) AddChatUsers(ctx context.Context, users model.ChatUsers) ([]model.ChatUsers, error) {
	if err := required("userOne", users.UserOne, "userTwo", users.UserTwo); err != nil {
		return nil, err
	}
	all, err := s.cache.Messages.AddChatUsers(ctx, users)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, bus.EventAddChatUsers, all)
	return all, nil
}

// RemoveChatUsers records that the chat page was closed.
func (s *Service) RemoveChatUsers(ctx context.Context, users model.ChatUsers) ([]model.ChatUsers, error) {
	if err := required("userOne", users.UserOne, "userTwo", users.UserTwo); err != nil {
		return nil, err
	}
	all, err := s.cache.Messages.RemoveChatUsers(ctx, users)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, bus.EventAddChatUsers, all)
	return all, nil
}
