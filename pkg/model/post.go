package model

import (
	"fmt"
	"time"
)

// ReactionType is one of the fixed post reactions.
type ReactionType string

const (
	ReactionLike  ReactionType = "like"
	ReactionLove  ReactionType = "love"
	ReactionHappy ReactionType = "happy"
	ReactionWow   ReactionType = "wow"
	ReactionSad   ReactionType = "sad"
	ReactionAngry ReactionType = "angry"
)

// ReactionTypes lists every reaction in display order.
var ReactionTypes = []ReactionType{ReactionLike, ReactionLove, ReactionHappy, ReactionWow, ReactionSad, ReactionAngry}

// ParseReactionType validates a reaction name. The empty string is not valid.
func ParseReactionType(s string) (ReactionType, error) {
	for _, t := range ReactionTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown reaction type %q", s)
}

// Reactions holds the per-type counters of a post.
type Reactions struct {
	Like  int64 `json:"like"`
	Love  int64 `json:"love"`
	Happy int64 `json:"happy"`
	Wow   int64 `json:"wow"`
	Sad   int64 `json:"sad"`
	Angry int64 `json:"angry"`
}

func (r *Reactions) counter(t ReactionType) *int64 {
	switch t {
	case ReactionLike:
		return &r.Like
	case ReactionLove:
		return &r.Love
	case ReactionHappy:
		return &r.Happy
	case ReactionWow:
		return &r.Wow
	case ReactionSad:
		return &r.Sad
	case ReactionAngry:
		return &r.Angry
	}
	return nil
}

// Get returns the counter for t, zero for unknown types.
func (r Reactions) Get(t ReactionType) int64 {
	if c := r.counter(t); c != nil {
		return *c
	}
	return 0
}

// Add adjusts the counter for t; unknown types are ignored.
func (r *Reactions) Add(t ReactionType, delta int64) {
	if c := r.counter(t); c != nil {
		*c += delta
	}
}

// Total sums all counters.
func (r Reactions) Total() int64 {
	var total int64
	for _, t := range ReactionTypes {
		total += r.Get(t)
	}
	return total
}

// ReactionDeltas is the counter change of moving one user's reaction from
// prev to next. An empty prev only increments; an empty next only decrements.
// The deltas always sum to the change in the number of reactions.
func ReactionDeltas(prev, next ReactionType) map[ReactionType]int64 {
	if prev == next {
		return nil
	}
	deltas := make(map[ReactionType]int64, 2)
	if prev != "" {
		deltas[prev]--
	}
	if next != "" {
		deltas[next]++
	}
	return deltas
}

// Post is a feed entry.
type Post struct {
	ID             string    `json:"_id" gorm:"primaryKey;size:64"`
	UserID         string    `json:"userId" gorm:"size:64;index"`
	Username       string    `json:"username" gorm:"size:64"`
	Email          string    `json:"email" gorm:"size:255"`
	AvatarColor    string    `json:"avatarColor" gorm:"size:32"`
	ProfilePicture string    `json:"profilePicture"`
	Post           string    `json:"post" gorm:"type:text"`
	BgColor        string    `json:"bgColor" gorm:"size:32"`
	Feelings       string    `json:"feelings" gorm:"size:64"`
	Privacy        string    `json:"privacy" gorm:"size:32"`
	GifURL         string    `json:"gifUrl"`
	CommentsCount  int64     `json:"commentsCount"`
	ImgVersion     string    `json:"imgVersion" gorm:"size:64"`
	ImgID          string    `json:"imgId" gorm:"size:255"`
	VideoVersion   string    `json:"videoVersion" gorm:"size:64"`
	VideoID        string    `json:"videoId" gorm:"size:255"`
	Reactions      Reactions `json:"reactions" gorm:"embedded;embeddedPrefix:reactions_"`
	CreatedAt      time.Time `json:"createdAt"`
	Version        int64     `json:"version"`
}

func (Post) TableName() string { return "posts" }

func (p Post) GetPrimaryKeyValue() interface{} { return p.ID }

// HasImage reports whether the post carries an image or gif.
func (p Post) HasImage() bool {
	return p.ImgID != "" || p.GifURL != ""
}

// HasVideo reports whether the post carries a video.
func (p Post) HasVideo() bool {
	return p.VideoID != ""
}

// Counter names maintained on a post record.
const FieldCommentsCount = "commentsCount"

// Comment is a post comment.
type Comment struct {
	ID             string    `json:"_id" gorm:"primaryKey;size:64"`
	PostID         string    `json:"postId" gorm:"size:64;index"`
	Username       string    `json:"username" gorm:"size:64"`
	AvatarColor    string    `json:"avatarColor" gorm:"size:32"`
	ProfilePicture string    `json:"profilePicture"`
	Comment        string    `json:"comment" gorm:"type:text"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (Comment) TableName() string { return "comments" }

func (c Comment) GetPrimaryKeyValue() interface{} { return c.ID }

// CommentNames is the distinct set of commenters on a post.
type CommentNames struct {
	Count int64    `json:"count"`
	Names []string `json:"names"`
}

// Reaction is the single reaction of one user on one post.
type Reaction struct {
	ID             string       `json:"_id" gorm:"primaryKey;size:96"`
	PostID         string       `json:"postId" gorm:"size:64;index"`
	Type           ReactionType `json:"type" gorm:"size:16"`
	Username       string       `json:"username" gorm:"size:64;index"`
	AvatarColor    string       `json:"avatarColor" gorm:"size:32"`
	ProfilePicture string       `json:"profilePicture"`
	CreatedAt      time.Time    `json:"createdAt"`
	Version        int64        `json:"version"`
	Removed        bool         `json:"removed,omitempty"`
}

func (Reaction) TableName() string { return "reactions" }

func (r Reaction) GetPrimaryKeyValue() interface{} { return r.ID }
