package cache

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/redis"
)

// record reads typed values out of a hash record, keeping the first error.
type record struct {
	fields map[string]string
	err    error
}

func (r *record) str(name string) string {
	return r.fields[name]
}

func (r *record) int(name string) int64 {
	raw, ok := r.fields[name]
	if !ok || raw == "" || r.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		r.err = fmt.Errorf("%w: field %s: %v", redis.ErrSerializationFailed, name, err)
	}
	return n
}

func (r *record) bool(name string) bool {
	raw, ok := r.fields[name]
	if !ok || raw == "" || r.err != nil {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		r.err = fmt.Errorf("%w: field %s: %v", redis.ErrSerializationFailed, name, err)
	}
	return b
}

func (r *record) time(name string) time.Time {
	raw, ok := r.fields[name]
	if !ok || raw == "" || r.err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		r.err = fmt.Errorf("%w: field %s: %v", redis.ErrSerializationFailed, name, err)
	}
	return t
}

func (r *record) json(name string, target interface{}) {
	raw, ok := r.fields[name]
	if !ok || raw == "" || raw == "null" || r.err != nil {
		return
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		r.err = fmt.Errorf("%w: field %s: %v", redis.ErrSerializationFailed, name, err)
	}
}

func formatInt(n int64) string { return strconv.FormatInt(n, 10) }

func formatBool(b bool) string { return strconv.FormatBool(b) }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func encodeJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", redis.ErrSerializationFailed, err)
	}
	return string(data), nil
}

func decodeJSON(raw string, target interface{}) error {
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("%w: %v", redis.ErrSerializationFailed, err)
	}
	return nil
}

// ============================================================================
// USER
// ============================================================================

func encodeUser(u *model.User) (map[string]string, error) {
	blocked, err := encodeJSON(nonNil(u.Blocked))
	if err != nil {
		return nil, err
	}
	blockedBy, err := encodeJSON(nonNil(u.BlockedBy))
	if err != nil {
		return nil, err
	}
	notifications, err := encodeJSON(u.Notifications)
	if err != nil {
		return nil, err
	}
	social, err := encodeJSON(u.Social)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"_id":                     u.ID,
		"authId":                  u.AuthID,
		"uId":                     u.UID,
		"username":                u.Username,
		"email":                   u.Email,
		"avatarColor":             u.AvatarColor,
		"createdAt":               formatTime(u.CreatedAt),
		model.FieldPostsCount:     formatInt(u.PostsCount),
		model.FieldFollowersCount: formatInt(u.FollowersCount),
		model.FieldFollowingCount: formatInt(u.FollowingCount),
		model.FieldBlocked:        blocked,
		model.FieldBlockedBy:      blockedBy,
		"notifications":           notifications,
		"social":                  social,
		"profilePicture":          u.ProfilePicture,
		"work":                    u.Work,
		"location":                u.Location,
		"school":                  u.School,
		"quote":                   u.Quote,
		"bgImageVersion":          u.BgImageVersion,
		"bgImageId":               u.BgImageID,
		"version":                 formatInt(u.Version),
	}, nil
}

func decodeUser(fields map[string]string) (*model.User, error) {
	r := &record{fields: fields}
	u := &model.User{
		ID:             r.str("_id"),
		AuthID:         r.str("authId"),
		UID:            r.str("uId"),
		Username:       r.str("username"),
		Email:          r.str("email"),
		AvatarColor:    r.str("avatarColor"),
		CreatedAt:      r.time("createdAt"),
		PostsCount:     r.int(model.FieldPostsCount),
		FollowersCount: r.int(model.FieldFollowersCount),
		FollowingCount: r.int(model.FieldFollowingCount),
		ProfilePicture: r.str("profilePicture"),
		Work:           r.str("work"),
		Location:       r.str("location"),
		School:         r.str("school"),
		Quote:          r.str("quote"),
		BgImageVersion: r.str("bgImageVersion"),
		BgImageID:      r.str("bgImageId"),
		Version:        r.int("version"),
	}
	r.json(model.FieldBlocked, &u.Blocked)
	r.json(model.FieldBlockedBy, &u.BlockedBy)
	r.json("notifications", &u.Notifications)
	r.json("social", &u.Social)
	if r.err != nil {
		return nil, r.err
	}
	return u, nil
}

// userFieldKinds lists the user hash fields that may be updated one at a
// time, and whether the value is stored as a JSON blob.
var userFieldKinds = map[string]bool{
	"username":       false,
	"email":          false,
	"avatarColor":    false,
	"profilePicture": false,
	"work":           false,
	"location":       false,
	"school":         false,
	"quote":          false,
	"bgImageVersion": false,
	"bgImageId":      false,
	"notifications":  true,
	"social":         true,
}

// userCounterFields are the integer fields adjusted with HINCRBY.
var userCounterFields = map[string]bool{
	model.FieldPostsCount:     true,
	model.FieldFollowersCount: true,
	model.FieldFollowingCount: true,
}

// ============================================================================
// POST
// ============================================================================

const reactionFieldPrefix = "reactions."

func reactionField(t model.ReactionType) string {
	return reactionFieldPrefix + string(t)
}

func encodePost(p *model.Post) map[string]string {
	fields := map[string]string{
		"_id":                    p.ID,
		"userId":                 p.UserID,
		"username":               p.Username,
		"email":                  p.Email,
		"avatarColor":            p.AvatarColor,
		"profilePicture":         p.ProfilePicture,
		"post":                   p.Post,
		"bgColor":                p.BgColor,
		"feelings":               p.Feelings,
		"privacy":                p.Privacy,
		"gifUrl":                 p.GifURL,
		model.FieldCommentsCount: formatInt(p.CommentsCount),
		"imgVersion":             p.ImgVersion,
		"imgId":                  p.ImgID,
		"videoVersion":           p.VideoVersion,
		"videoId":                p.VideoID,
		"createdAt":              formatTime(p.CreatedAt),
		"version":                formatInt(p.Version),
	}
	for _, t := range model.ReactionTypes {
		fields[reactionField(t)] = formatInt(p.Reactions.Get(t))
	}
	return fields
}

// editablePostFields is what an update may overwrite; counters are excluded.
func editablePostFields(p *model.Post) map[string]string {
	return map[string]string{
		"post":           p.Post,
		"bgColor":        p.BgColor,
		"feelings":       p.Feelings,
		"privacy":        p.Privacy,
		"gifUrl":         p.GifURL,
		"profilePicture": p.ProfilePicture,
		"imgVersion":     p.ImgVersion,
		"imgId":          p.ImgID,
		"videoVersion":   p.VideoVersion,
		"videoId":        p.VideoID,
		"version":        formatInt(p.Version),
	}
}

func decodePost(fields map[string]string) (*model.Post, error) {
	r := &record{fields: fields}
	p := &model.Post{
		ID:             r.str("_id"),
		UserID:         r.str("userId"),
		Username:       r.str("username"),
		Email:          r.str("email"),
		AvatarColor:    r.str("avatarColor"),
		ProfilePicture: r.str("profilePicture"),
		Post:           r.str("post"),
		BgColor:        r.str("bgColor"),
		Feelings:       r.str("feelings"),
		Privacy:        r.str("privacy"),
		GifURL:         r.str("gifUrl"),
		CommentsCount:  r.int(model.FieldCommentsCount),
		ImgVersion:     r.str("imgVersion"),
		ImgID:          r.str("imgId"),
		VideoVersion:   r.str("videoVersion"),
		VideoID:        r.str("videoId"),
		CreatedAt:      r.time("createdAt"),
		Version:        r.int("version"),
	}
	for _, t := range model.ReactionTypes {
		p.Reactions.Add(t, r.int(reactionField(t)))
	}
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

// ============================================================================
// NOTIFICATION
// ============================================================================

func encodeNotification(n *model.Notification) map[string]string {
	return map[string]string{
		"_id":              n.ID,
		"userTo":           n.UserTo,
		"userFrom":         n.UserFrom,
		"username":         n.Username,
		"avatarColor":      n.AvatarColor,
		"profilePicture":   n.ProfilePicture,
		"message":          n.Message,
		"notificationType": string(n.NotificationType),
		"entityId":         n.EntityID,
		"createdItemId":    n.CreatedItemID,
		"comment":          n.Comment,
		"reaction":         n.Reaction,
		"post":             n.Post,
		"imgId":            n.ImgID,
		"imgVersion":       n.ImgVersion,
		"gifUrl":           n.GifURL,
		"read":             formatBool(n.Read),
		"createdAt":        formatTime(n.CreatedAt),
	}
}

func decodeNotification(fields map[string]string) (*model.Notification, error) {
	r := &record{fields: fields}
	n := &model.Notification{
		ID:               r.str("_id"),
		UserTo:           r.str("userTo"),
		UserFrom:         r.str("userFrom"),
		Username:         r.str("username"),
		AvatarColor:      r.str("avatarColor"),
		ProfilePicture:   r.str("profilePicture"),
		Message:          r.str("message"),
		NotificationType: model.NotificationType(r.str("notificationType")),
		EntityID:         r.str("entityId"),
		CreatedItemID:    r.str("createdItemId"),
		Comment:          r.str("comment"),
		Reaction:         r.str("reaction"),
		Post:             r.str("post"),
		ImgID:            r.str("imgId"),
		ImgVersion:       r.str("imgVersion"),
		GifURL:           r.str("gifUrl"),
		Read:             r.bool("read"),
		CreatedAt:        r.time("createdAt"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return n, nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
