package utils

import (
	"context"
	"fmt"
	"strings"

	"github.com/gobbs/gobbs/config"
	"github.com/gobbs/gobbs/posts"
)

// NotificationMailer adapts SendMail to the pipeline's mail contract. Only
// the "notification" template and plain-text English rendering exist today.
type NotificationMailer struct{}

// SendNotification renders a reply notification and dispatches it over SMTP.
func (NotificationMailer) SendNotification(ctx context.Context, template, to, locale string, params posts.NotificationParams) error {
	if template != "notification" {
		return fmt.Errorf("unknown mail template %q", template)
	}

	cfg := config.Get()
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", params.Username)
	fmt.Fprintf(&b, "There is a new reply to your topic %q:\n\n", params.Title)
	fmt.Fprintf(&b, "%s\n\n", params.Content)
	fmt.Fprintf(&b, "Read it here: %s/topic/%d/%s#%d\n", cfg.SiteURL, params.TID, params.TopicSlug, params.PID)

	return SendMail(to, params.Subject, b.String())
}
