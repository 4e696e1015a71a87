package cache

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/redis"
)

// MessageCache holds chat state: per-user conversation lists
// "chatList:<userId>", per-conversation message lists
// "messages:<conversationId>" (oldest first) and the "chatUsers" list of
// users currently viewing a chat with each other.
type MessageCache struct {
	store Store
	log   zerolog.Logger
}

// NewMessageCache creates the chat adapter
func NewMessageCache(store Store, log zerolog.Logger) *MessageCache {
	return &MessageCache{store: store, log: log}
}

// AddChatListEntry records that userID has a conversation with receiverID.
// An existing entry for the same receiver is kept.
func (c *MessageCache) AddChatListEntry(ctx context.Context, userID, receiverID, conversationID string) error {
	key := chatListKey(userID)
	encoded, err := encodeJSON(model.ChatListItem{ReceiverID: receiverID, ConversationID: conversationID})
	if err != nil {
		return err
	}
	return c.store.Transact(ctx, func(tx *goredis.Tx) error {
		items, err := tx.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return err
		}
		for _, raw := range items {
			var item model.ChatListItem
			if err := decodeJSON(raw, &item); err != nil {
				return err
			}
			if item.ReceiverID == receiverID {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.RPush(ctx, key, encoded)
			return nil
		})
		return err
	}, key)
}

// GetChatList returns the conversation entries of userID.
func (c *MessageCache) GetChatList(ctx context.Context, userID string) ([]model.ChatListItem, error) {
	raw, err := c.store.LRange(ctx, chatListKey(userID), 0, -1)
	if err != nil {
		return nil, err
	}
	items := make([]model.ChatListItem, 0, len(raw))
	for _, r := range raw {
		var item model.ChatListItem
		if err := decodeJSON(r, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// AddChatMessage appends a message to its conversation.
func (c *MessageCache) AddChatMessage(ctx context.Context, message *model.Message) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	encoded, err := encodeJSON(message)
	if err != nil {
		return err
	}
	return c.store.RPush(ctx, messagesKey(message.ConversationID), encoded)
}

// GetConversationList returns the last message of every conversation of
// userID. Conversations without cached messages are skipped.
func (c *MessageCache) GetConversationList(ctx context.Context, userID string) ([]model.Message, error) {
	items, err := c.GetChatList(ctx, userID)
	if err != nil {
		return nil, err
	}
	messages := make([]model.Message, 0, len(items))
	for _, item := range items {
		raw, err := c.store.LIndex(ctx, messagesKey(item.ConversationID), -1)
		if redis.IsKeyNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var m model.Message
		if err := decodeJSON(raw, &m); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// GetChatMessages returns every message of a conversation, oldest first.
func (c *MessageCache) GetChatMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	raw, err := c.store.LRange(ctx, messagesKey(conversationID), 0, -1)
	if err != nil {
		return nil, err
	}
	messages := make([]model.Message, 0, len(raw))
	for _, r := range raw {
		var m model.Message
		if err := decodeJSON(r, &m); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// MarkMessageDeleted flags one message deleted and returns it, or nil when
// the message is not cached.
func (c *MessageCache) MarkMessageDeleted(ctx context.Context, conversationID, messageID string, deleteType model.DeleteType) (*model.Message, error) {
	return c.updateMessage(ctx, conversationID, messageID, func(m *model.Message) {
		m.ApplyDelete(deleteType)
	})
}

// UpdateMessageReaction adds or removes senderName's reaction on a message.
func (c *MessageCache) UpdateMessageReaction(ctx context.Context, conversationID, messageID, senderName, reaction string, action model.ReactionAction) (*model.Message, error) {
	return c.updateMessage(ctx, conversationID, messageID, func(m *model.Message) {
		m.ApplyReaction(senderName, reaction, action)
	})
}

// MarkMessagesRead marks every unread message addressed to receiverID in the
// conversation as read and returns the last message, or nil when the
// conversation has none.
func (c *MessageCache) MarkMessagesRead(ctx context.Context, conversationID, receiverID string) (*model.Message, error) {
	key := messagesKey(conversationID)
	var last *model.Message
	err := c.store.Transact(ctx, func(tx *goredis.Tx) error {
		items, err := tx.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return err
		}
		last = nil
		updates := make(map[int64]string)
		for i, raw := range items {
			var m model.Message
			if err := decodeJSON(raw, &m); err != nil {
				return err
			}
			if m.ReceiverID == receiverID && !m.IsRead {
				m.IsRead = true
				encoded, err := encodeJSON(&m)
				if err != nil {
					return err
				}
				updates[int64(i)] = encoded
			}
			last = &m
		}
		if len(updates) == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			for index, encoded := range updates {
				pipe.LSet(ctx, key, index, encoded)
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return last, nil
}

// AddChatUsers records a pair of users viewing a chat and returns all pairs.
func (c *MessageCache) AddChatUsers(ctx context.Context, users model.ChatUsers) ([]model.ChatUsers, error) {
	all, err := c.GetChatUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, pair := range all {
		if pair == users {
			return all, nil
		}
	}
	encoded, err := encodeJSON(users)
	if err != nil {
		return nil, err
	}
	if err := c.store.RPush(ctx, chatUsersKey, encoded); err != nil {
		return nil, err
	}
	return append(all, users), nil
}

// RemoveChatUsers drops a pair and returns the remaining pairs.
func (c *MessageCache) RemoveChatUsers(ctx context.Context, users model.ChatUsers) ([]model.ChatUsers, error) {
	encoded, err := encodeJSON(users)
	if err != nil {
		return nil, err
	}
	if err := c.store.LRem(ctx, chatUsersKey, 0, encoded); err != nil {
		return nil, err
	}
	return c.GetChatUsers(ctx)
}

// GetChatUsers returns every pair currently in a chat page.
func (c *MessageCache) GetChatUsers(ctx context.Context) ([]model.ChatUsers, error) {
	raw, err := c.store.LRange(ctx, chatUsersKey, 0, -1)
	if err != nil {
		return nil, err
	}
	pairs := make([]model.ChatUsers, 0, len(raw))
	for _, r := range raw {
		var pair model.ChatUsers
		if err := decodeJSON(r, &pair); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// updateMessage rewrites one message in place under WATCH.
func (c *MessageCache) updateMessage(ctx context.Context, conversationID, messageID string, mutate func(*model.Message)) (*model.Message, error) {
	key := messagesKey(conversationID)
	var updated *model.Message
	err := c.store.Transact(ctx, func(tx *goredis.Tx) error {
		items, err := tx.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return err
		}
		for i, raw := range items {
			var m model.Message
			if err := decodeJSON(raw, &m); err != nil {
				return err
			}
			if m.ID != messageID {
				continue
			}
			mutate(&m)
			encoded, err := encodeJSON(&m)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.LSet(ctx, key, int64(i), encoded)
				return nil
			})
			updated = &m
			return err
		}
		return redis.ErrKeyNotFound
	}, key)
	if errors.Is(err, redis.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}
