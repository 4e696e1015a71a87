package cache

import (
	"fmt"
	"strconv"
)

// Entity namespaces. Every cache key starts with exactly one of them.
const (
	NamespaceUsers             = "users"
	NamespacePosts             = "posts"
	NamespaceComments          = "comments"
	NamespaceReactions         = "reactions"
	NamespaceFollowing         = "following"
	NamespaceFollowers         = "followers"
	NamespaceChatList          = "chatList"
	NamespaceMessages          = "messages"
	NamespaceNotifications     = "notifications"
	NamespaceUserNotifications = "userNotifications"
)

// Ordered index keys.
const (
	userIndexKey = "user"
	postIndexKey = "post"
	chatUsersKey = "chatUsers"
	keySeparator = ":"
)

// Key is the composite cache key of one entity record or collection.
type Key struct {
	Namespace string
	ID        string
}

// String joins namespace and id as "<namespace>:<id>".
func (k Key) String() string {
	return k.Namespace + keySeparator + k.ID
}

func userKey(id string) string              { return Key{NamespaceUsers, id}.String() }
func postKey(id string) string              { return Key{NamespacePosts, id}.String() }
func commentsKey(postID string) string      { return Key{NamespaceComments, postID}.String() }
func reactionsKey(postID string) string     { return Key{NamespaceReactions, postID}.String() }
func followingKey(userID string) string     { return Key{NamespaceFollowing, userID}.String() }
func followersKey(userID string) string     { return Key{NamespaceFollowers, userID}.String() }
func chatListKey(userID string) string      { return Key{NamespaceChatList, userID}.String() }
func messagesKey(convID string) string      { return Key{NamespaceMessages, convID}.String() }
func notificationKey(id string) string      { return Key{NamespaceNotifications, id}.String() }
func userNotificationsKey(id string) string { return Key{NamespaceUserNotifications, id}.String() }

// parseScore turns a numeric external id (uId) into a sorted-set score.
func parseScore(uID string) (float64, error) {
	n, err := strconv.ParseInt(uID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("uId %q is not numeric: %w", uID, err)
	}
	return float64(n), nil
}

// pageBounds converts skip/limit into inclusive range indexes.
// ok is false when the page is empty by construction.
func pageBounds(skip, limit int) (start, stop int64, ok bool) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		return 0, 0, false
	}
	return int64(skip), int64(skip + limit - 1), true
}
