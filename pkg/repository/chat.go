package repository

import (
	"context"
	"fmt"

	"github.com/ammar0144/socialcache/pkg/model"
)

// AddMessage stores a message once and creates its conversation on first use.
func (s *Store) AddMessage(ctx context.Context, message *model.Message) (bool, error) {
	var inserted bool
	err := s.transaction(ctx, func(tx *Store) error {
		if _, err := tx.Conversations.CreateIfAbsent(ctx, &model.Conversation{
			ID:         message.ConversationID,
			SenderID:   message.SenderID,
			ReceiverID: message.ReceiverID,
			CreatedAt:  message.CreatedAt,
		}); err != nil {
			return err
		}
		var err error
		inserted, err = tx.Messages.CreateIfAbsent(ctx, message)
		return err
	})
	return inserted, err
}

// MarkMessageDeleted flags one message deleted for the sender or everyone.
func (s *Store) MarkMessageDeleted(ctx context.Context, messageID string, deleteType model.DeleteType) error {
	return s.updateMessage(ctx, messageID, func(m *model.Message) (map[string]interface{}, error) {
		m.ApplyDelete(deleteType)
		return map[string]interface{}{
			"delete_for_me":       m.DeleteForMe,
			"delete_for_everyone": m.DeleteForEveryone,
		}, nil
	})
}

// UpdateMessageReaction adds or replaces senderName's reaction on a message,
// or removes it.
func (s *Store) UpdateMessageReaction(ctx context.Context, messageID, senderName, reaction string, action model.ReactionAction) error {
	return s.updateMessage(ctx, messageID, func(m *model.Message) (map[string]interface{}, error) {
		m.ApplyReaction(senderName, reaction, action)
		encoded, err := jsonColumn(m.Reaction)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"reaction": encoded}, nil
	})
}

func (s *Store) updateMessage(ctx context.Context, messageID string, mutate func(*model.Message) (map[string]interface{}, error)) error {
	return s.transaction(ctx, func(tx *Store) error {
		message, err := tx.Messages.FindByID(ctx, messageID)
		if err != nil {
			return err
		}
		if message == nil {
			return fmt.Errorf("%w: messages %s", ErrNotFound, messageID)
		}
		updates, err := mutate(message)
		if err != nil {
			return err
		}
		return tx.Messages.UpdateFields(ctx, messageID, updates)
	})
}

// MarkMessagesRead marks every unread message from senderID to receiverID
// as read and returns how many changed.
func (s *Store) MarkMessagesRead(ctx context.Context, senderID, receiverID string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", senderID, receiverID, false).
		UpdateColumn("is_read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("messages: mark read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetChatMessages returns a conversation's messages, oldest first.
func (s *Store) GetChatMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	return s.Messages.Page(ctx, Page{Limit: maxListing, Order: "created_at ASC"}, "conversation_id = ?", conversationID)
}

// GetConversationList returns the latest message of each of userID's
// conversations.
func (s *Store) GetConversationList(ctx context.Context, userID string) ([]model.Message, error) {
	conversations, err := s.Conversations.FindWhere(ctx, "sender_id = ? OR receiver_id = ?", userID, userID)
	if err != nil {
		return nil, err
	}
	latest := make([]model.Message, 0, len(conversations))
	for _, c := range conversations {
		page, err := s.Messages.Page(ctx, Page{Limit: 1, Order: "created_at DESC"}, "conversation_id = ?", c.ID)
		if err != nil {
			return nil, err
		}
		latest = append(latest, page...)
	}
	return latest, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}
