package posts

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gobbs/gobbs/hooks"
	"github.com/gobbs/gobbs/models"
)

// Counter and index keys used against the key-value collaborator. They mirror
// the record keys so that edges and counters stay discoverable per entity.
const (
	counterGlobal    = "global"
	fieldNextPid     = "nextPid"
	fieldPostCount   = "postCount"
	indexPostsByTime = "posts:pid"

	// CapabilityViewDeleted gates visibility of soft-deleted posts.
	CapabilityViewDeleted = "posts:view_deleted"
)

func repliesIndex(pid int64) string {
	return fmt.Sprintf("post:%d:replies", pid)
}

// Database exposes the atomic key-value primitives the pipeline relies on.
// All counters only ever move forward; the pipeline never read-modify-writes.
type Database interface {
	AllocateID(ctx context.Context, counter string) (int64, error)
	AddToTimeIndex(ctx context.Context, index string, timestamp, pid int64) error
	IncrementCounter(ctx context.Context, key, field string) (int64, error)
}

// PostFields is the subset of a post read during parent validation. A zero
// PID means the post does not exist.
type PostFields struct {
	PID     int64
	Deleted bool
}

// PostStore owns the canonical post records.
type PostStore interface {
	Insert(ctx context.Context, post *models.Post) error
	GetFields(ctx context.Context, pid int64) (PostFields, error)
	IncrementReplies(ctx context.Context, pid int64) error
}

// UserStore is the identity collaborator.
type UserStore interface {
	GetField(ctx context.Context, uid int64, field string) (string, error)
	OnNewPost(ctx context.Context, post *models.Post) error
}

// ThreadMeta is the denormalized thread state consumed by fan-out.
type ThreadMeta struct {
	CID    int64
	Pinned bool
	UID    int64
	Title  string
}

// ThreadStore supplies thread context and receives the thread-side fan-out.
type ThreadStore interface {
	GetMeta(ctx context.Context, tid int64) (ThreadMeta, error)
	OnNewPost(ctx context.Context, post *models.Post) error
}

// CategoryStore receives the category-side fan-out.
type CategoryStore interface {
	OnNewPost(ctx context.Context, cid int64, pinned bool, post *models.Post) error
}

// GroupStore receives the group-activity fan-out.
type GroupStore interface {
	OnNewPost(ctx context.Context, post *models.Post) error
}

// Privileges answers capability checks; only the yes/no answer is consumed.
type Privileges interface {
	Can(ctx context.Context, capability string, pid, uid int64) (bool, error)
}

// Uploads links pending attachment references to a written post.
type Uploads interface {
	Sync(ctx context.Context, pid int64) error
}

// Mailer delivers reply notifications. Failures are non-fatal by contract.
type Mailer interface {
	SendNotification(ctx context.Context, template, to, locale string, params NotificationParams) error
}

// CreateRequest is a normalized post submission. A zero Timestamp defaults to
// the current time; a zero ToPID means the post is not a reply to a post.
type CreateRequest struct {
	Author    Identity
	TID       int64
	Content   string
	Timestamp int64
	IsMain    bool
	Anonymous bool
	ToPID     int64
	IP        string
	Handle    string
}

// PostView is the canonical post plus the transient main-post flag.
type PostView struct {
	models.Post
	IsMain bool `json:"isMain"`
}

// Creator orchestrates post creation: validate and normalize, run the
// pre-persist filter, write the canonical record, then fan out the dependent
// updates concurrently. Once the canonical write succeeds the post exists;
// later failures only mean secondary state may lag.
type Creator struct {
	db         Database
	posts      PostStore
	users      UserStore
	threads    ThreadStore
	categories CategoryStore
	groups     GroupStore
	privileges Privileges
	uploads    Uploads
	mailer     Mailer
	hooks      *hooks.Registry
	trackIP    bool
	now        func() time.Time
	log        *zap.SugaredLogger
}

// Deps collects the collaborators a Creator needs.
type Deps struct {
	Database   Database
	Posts      PostStore
	Users      UserStore
	Threads    ThreadStore
	Categories CategoryStore
	Groups     GroupStore
	Privileges Privileges
	Uploads    Uploads
	Mailer     Mailer
	Hooks      *hooks.Registry

	// TrackIPPerPost stores the submitter IP on the record when supplied.
	TrackIPPerPost bool
	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
	Log   *zap.SugaredLogger
}

// NewCreator wires a Creator from its collaborators.
func NewCreator(d Deps) *Creator {
	c := &Creator{
		db:         d.Database,
		posts:      d.Posts,
		users:      d.Users,
		threads:    d.Threads,
		categories: d.Categories,
		groups:     d.Groups,
		privileges: d.Privileges,
		uploads:    d.Uploads,
		mailer:     d.Mailer,
		hooks:      d.Hooks,
		trackIP:    d.TrackIPPerPost,
		now:        d.Clock,
		log:        d.Log,
	}
	if c.hooks == nil {
		c.hooks = hooks.New(d.Log)
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = zap.NewNop().Sugar()
	}
	return c
}

// Create runs the full creation pipeline and returns the hook-processed view.
// Validation failures surface before any durable write; a FanOutError means
// the post was written but some secondary state may be stale.
func (c *Creator) Create(ctx context.Context, req CreateRequest) (*PostView, error) {
	if !req.Author.Known() {
		return nil, ErrInvalidUID
	}
	uid := req.Author.UID()

	timestamp := req.Timestamp
	if timestamp == 0 {
		timestamp = c.now().UnixMilli()
	}

	if req.ToPID != 0 {
		if err := c.checkParent(ctx, req.ToPID, uid); err != nil {
			return nil, err
		}
	}

	meta, err := c.threads.GetMeta(ctx, req.TID)
	if err != nil {
		return nil, fmt.Errorf("thread %d: %w", req.TID, err)
	}

	pid, err := c.db.AllocateID(ctx, fieldNextPid)
	if err != nil {
		return nil, fmt.Errorf("allocate pid: %w", err)
	}

	post := &models.Post{
		PID:       pid,
		UID:       uid,
		TID:       req.TID,
		CID:       meta.CID,
		Content:   req.Content,
		Timestamp: timestamp,
	}
	if req.Anonymous {
		post.UID = 0
	}
	if req.ToPID != 0 {
		post.ToPID = req.ToPID
	}
	if req.IP != "" && c.trackIP {
		post.IP = req.IP
	}
	if req.Handle != "" && req.Author.IsGuest() {
		post.Handle = req.Handle
	}

	payload := hooks.Payload{Post: post, UID: uid}
	if err := c.hooks.ApplyFilters(ctx, hooks.FilterPostCreate, &payload); err != nil {
		return nil, err
	}
	post = payload.Post

	if err := c.posts.Insert(ctx, post); err != nil {
		return nil, fmt.Errorf("write post %d: %w", post.PID, err)
	}

	// The post is committed from here on; fan-out failures no longer mean
	// "not created".
	if err := c.fanOut(ctx, post, meta, uid); err != nil {
		return nil, &FanOutError{PID: post.PID, Err: err}
	}

	result := hooks.Payload{Post: post, UID: uid}
	if err := c.hooks.ApplyFilters(ctx, hooks.FilterPostGet, &result); err != nil {
		return nil, err
	}
	result.IsMain = req.IsMain

	c.hooks.FireActions(ctx, hooks.ActionPostSave, result)

	return &PostView{Post: *result.Post, IsMain: result.IsMain}, nil
}

// checkParent validates an optional parent reference. The existence read and
// the privilege check are independent and run concurrently; the decision is
// made only after both settle.
func (c *Creator) checkParent(ctx context.Context, toPid, uid int64) error {
	var (
		parent  PostFields
		canView bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		parent, err = c.posts.GetFields(gctx, toPid)
		return err
	})
	g.Go(func() error {
		var err error
		canView, err = c.privileges.Can(gctx, CapabilityViewDeleted, toPid, uid)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if parent.PID == 0 || (parent.Deleted && !canView) {
		return ErrInvalidPID
	}
	return nil
}

// fanOut issues the dependent updates as independent concurrent units and
// waits for all of them. Units are unordered relative to each other; each
// depends only on the already-committed canonical post. The notification task
// rides along but its failure is swallowed inside notify.
func (c *Creator) fanOut(ctx context.Context, post *models.Post, meta ThreadMeta, actor int64) error {
	var g errgroup.Group
	g.Go(func() error {
		return c.db.AddToTimeIndex(ctx, indexPostsByTime, post.Timestamp, post.PID)
	})
	g.Go(func() error {
		_, err := c.db.IncrementCounter(ctx, counterGlobal, fieldPostCount)
		return err
	})
	g.Go(func() error { return c.users.OnNewPost(ctx, post) })
	g.Go(func() error { return c.threads.OnNewPost(ctx, post) })
	g.Go(func() error { return c.categories.OnNewPost(ctx, meta.CID, meta.Pinned, post) })
	g.Go(func() error { return c.groups.OnNewPost(ctx, post) })
	g.Go(func() error { return c.addReplyTo(ctx, post) })
	g.Go(func() error { return c.uploads.Sync(ctx, post.PID) })
	g.Go(func() error {
		c.notify(ctx, post, meta, actor)
		return nil
	})
	return g.Wait()
}

// addReplyTo records the reply-graph edge and bumps the parent reply counter
// as a concurrent pair. No-op when the post has no parent.
func (c *Creator) addReplyTo(ctx context.Context, post *models.Post) error {
	if post.ToPID == 0 {
		return nil
	}
	var g errgroup.Group
	g.Go(func() error {
		return c.db.AddToTimeIndex(ctx, repliesIndex(post.ToPID), post.Timestamp, post.PID)
	})
	g.Go(func() error {
		return c.posts.IncrementReplies(ctx, post.ToPID)
	})
	return g.Wait()
}
