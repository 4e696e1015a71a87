package model

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

const idHashLength = 16

// NewID returns a fresh random identifier for a new entity.
func NewID() string {
	return uuid.NewString()
}

// NewUID returns a random 12 digit public user number. Users are ordered by
// it in the cache.
func NewUID() string {
	return fmt.Sprintf("%012d", xxhash.Sum64String(uuid.NewString())%uidModulus)
}

const uidModulus = 1_000_000_000_000

// naturalID derives a stable identifier from the parts that make an entity
// unique, so a redelivered job targets the same record.
func naturalID(kind string, parts ...string) string {
	hash := xxhash.Sum64String(kind + "\x00" + strings.Join(parts, "\x00"))
	return fmt.Sprintf("%s-%0*x", kind, idHashLength, hash)
}

// ReactionID identifies the single reaction a user may hold on a post.
func ReactionID(postID, username string) string {
	return naturalID("reaction", postID, strings.ToLower(username))
}

// FollowerEdgeID identifies the follower -> followee edge.
func FollowerEdgeID(followerID, followeeID string) string {
	return naturalID("follow", followerID, followeeID)
}

// BlockID identifies the blocker -> blocked relation.
func BlockID(blockerID, blockedID string) string {
	return naturalID("block", blockerID, blockedID)
}

// ConversationID is symmetric in its participants.
func ConversationID(userOne, userTwo string) string {
	if userTwo < userOne {
		userOne, userTwo = userTwo, userOne
	}
	return naturalID("conversation", userOne, userTwo)
}

var lastVersion atomic.Int64

// NextVersion returns a strictly increasing version stamp based on the wall
// clock, used for last-writer-wins comparison in the system of record.
func NextVersion() int64 {
	for {
		now := time.Now().UnixNano()
		last := lastVersion.Load()
		if now <= last {
			now = last + 1
		}
		if lastVersion.CompareAndSwap(last, now) {
			return now
		}
	}
}
