package posts

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gobbs/gobbs/models"
)

// NotificationParams is the payload handed to the mail collaborator when a
// reply lands on someone else's thread.
type NotificationParams struct {
	Subject   string `json:"subject"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	Title     string `json:"title"`
	PID       int64  `json:"pid"`
	TID       int64  `json:"tid"`
	TopicSlug string `json:"topicSlug"`
	Username  string `json:"username"`
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases a thread title and collapses every non-alphanumeric run
// into a single hyphen.
func Slugify(title string) string {
	return slugRe.ReplaceAllString(strings.ToLower(title), "-")
}

func buildNotification(post *models.Post, meta ThreadMeta, username string) NotificationParams {
	return NotificationParams{
		Subject:   fmt.Sprintf("New reply to your topic: %q", meta.Title),
		Type:      "reply",
		Content:   post.Content,
		Title:     meta.Title,
		PID:       post.PID,
		TID:       post.TID,
		TopicSlug: Slugify(meta.Title),
		Username:  username,
	}
}

// notify emails the thread author about a reply from someone else. Delivery
// is best effort: every failure path is logged and swallowed, post creation
// must succeed even when the mail side is down entirely.
func (c *Creator) notify(ctx context.Context, post *models.Post, meta ThreadMeta, actor int64) {
	if post.TID == 0 || meta.UID == 0 || actor == meta.UID {
		return
	}

	email, err := c.users.GetField(ctx, meta.UID, "email")
	if err != nil || email == "" {
		c.log.Warnf("skipping reply notification for post %d: no email for uid %d: %v", post.PID, meta.UID, err)
		return
	}
	username, err := c.users.GetField(ctx, meta.UID, "username")
	if err != nil {
		c.log.Warnf("skipping reply notification for post %d: no username for uid %d: %v", post.PID, meta.UID, err)
		return
	}

	params := buildNotification(post, meta, username)
	if err := c.mailer.SendNotification(ctx, "notification", email, "en-GB", params); err != nil {
		c.log.Errorf("failed to send reply notification for topic %q: %v", meta.Title, err)
	}
}
