package posts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gobbs/gobbs/hooks"
	"github.com/gobbs/gobbs/models"
)

type fakeDB struct {
	mu       sync.Mutex
	nextID   int64
	counters map[string]int64
	indexes  map[string][]indexEntry
	indexErr error
}

type indexEntry struct {
	timestamp int64
	pid       int64
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		counters: map[string]int64{},
		indexes:  map[string][]indexEntry{},
	}
}

func (f *fakeDB) AllocateID(ctx context.Context, counter string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID, nil
}

func (f *fakeDB) AddToTimeIndex(ctx context.Context, index string, timestamp, pid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexErr != nil {
		return f.indexErr
	}
	f.indexes[index] = append(f.indexes[index], indexEntry{timestamp: timestamp, pid: pid})
	return nil
}

func (f *fakeDB) IncrementCounter(ctx context.Context, key, field string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key + "/" + field
	f.counters[k]++
	return f.counters[k], nil
}

func (f *fakeDB) counter(key, field string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters[key+"/"+field]
}

func (f *fakeDB) index(name string) []indexEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]indexEntry(nil), f.indexes[name]...)
}

type fakePosts struct {
	mu        sync.Mutex
	rows      map[int64]*models.Post
	parents   map[int64]PostFields
	replies   map[int64]int64
	insertErr error
}

func newFakePosts() *fakePosts {
	return &fakePosts{
		rows:    map[int64]*models.Post{},
		parents: map[int64]PostFields{},
		replies: map[int64]int64{},
	}
}

func (f *fakePosts) Insert(ctx context.Context, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	clone := *post
	f.rows[post.PID] = &clone
	return nil
}

func (f *fakePosts) GetFields(ctx context.Context, pid int64) (PostFields, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parents[pid], nil
}

func (f *fakePosts) IncrementReplies(ctx context.Context, pid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[pid]++
	return nil
}

func (f *fakePosts) stored(pid int64) *models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[pid]
}

func (f *fakePosts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeUsers struct {
	mu     sync.Mutex
	fields map[int64]map[string]string
	onNew  []int64
}

func (f *fakeUsers) GetField(ctx context.Context, uid int64, field string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields[uid][field], nil
}

func (f *fakeUsers) OnNewPost(ctx context.Context, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onNew = append(f.onNew, post.PID)
	return nil
}

type fakeThreads struct {
	mu    sync.Mutex
	meta  ThreadMeta
	err   error
	onNew []int64
}

func (f *fakeThreads) GetMeta(ctx context.Context, tid int64) (ThreadMeta, error) {
	return f.meta, f.err
}

func (f *fakeThreads) OnNewPost(ctx context.Context, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onNew = append(f.onNew, post.PID)
	return nil
}

type categoryCall struct {
	cid    int64
	pinned bool
	pid    int64
}

type fakeCategories struct {
	mu    sync.Mutex
	err   error
	calls []categoryCall
}

func (f *fakeCategories) OnNewPost(ctx context.Context, cid int64, pinned bool, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, categoryCall{cid: cid, pinned: pinned, pid: post.PID})
	return nil
}

type fakeGroups struct {
	mu    sync.Mutex
	calls []int64
}

func (f *fakeGroups) OnNewPost(ctx context.Context, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, post.PID)
	return nil
}

type fakePrivileges struct {
	mu         sync.Mutex
	allow      bool
	capability string
}

func (f *fakePrivileges) Can(ctx context.Context, capability string, pid, uid int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capability = capability
	return f.allow, nil
}

type fakeUploads struct {
	mu     sync.Mutex
	err    error
	synced []int64
}

func (f *fakeUploads) Sync(ctx context.Context, pid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.synced = append(f.synced, pid)
	return nil
}

type sentMail struct {
	template string
	to       string
	locale   string
	params   NotificationParams
}

type fakeMailer struct {
	mu    sync.Mutex
	err   error
	sends []sentMail
}

func (f *fakeMailer) SendNotification(ctx context.Context, template, to, locale string, params NotificationParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sentMail{template: template, to: to, locale: locale, params: params})
	return f.err
}

func (f *fakeMailer) sent() []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMail(nil), f.sends...)
}

// env bundles a creator with all its fakes for inspection.
type env struct {
	creator    *Creator
	db         *fakeDB
	posts      *fakePosts
	users      *fakeUsers
	threads    *fakeThreads
	categories *fakeCategories
	groups     *fakeGroups
	privileges *fakePrivileges
	uploads    *fakeUploads
	mailer     *fakeMailer
	registry   *hooks.Registry
}

var fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newEnv(tweak func(*Deps, *env)) *env {
	e := &env{
		db:         newFakeDB(),
		posts:      newFakePosts(),
		users:      &fakeUsers{fields: map[int64]map[string]string{1: {"email": "owner@example.com", "username": "owner"}}},
		threads:    &fakeThreads{meta: ThreadMeta{CID: 4, Pinned: false, UID: 1, Title: "My Topic!"}},
		categories: &fakeCategories{},
		groups:     &fakeGroups{},
		privileges: &fakePrivileges{},
		uploads:    &fakeUploads{},
		mailer:     &fakeMailer{},
		registry:   hooks.New(nil),
	}
	deps := Deps{
		Database:       e.db,
		Posts:          e.posts,
		Users:          e.users,
		Threads:        e.threads,
		Categories:     e.categories,
		Groups:         e.groups,
		Privileges:     e.privileges,
		Uploads:        e.uploads,
		Mailer:         e.mailer,
		Hooks:          e.registry,
		TrackIPPerPost: false,
		Clock:          func() time.Time { return fixedTime },
	}
	if tweak != nil {
		tweak(&deps, e)
	}
	e.creator = NewCreator(deps)
	return e
}

func TestCreateSuccess(t *testing.T) {
	e := newEnv(nil)

	view, err := e.creator.Create(context.Background(), CreateRequest{
		Author:  Authenticated(5),
		TID:     9,
		Content: "hello",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.PID != 1 {
		t.Fatalf("expected pid 1, got %d", view.PID)
	}
	if view.UID != 5 {
		t.Fatalf("expected uid 5, got %d", view.UID)
	}
	if view.CID != 4 {
		t.Fatalf("expected denormalized cid 4, got %d", view.CID)
	}
	if view.Timestamp != fixedTime.UnixMilli() {
		t.Fatalf("expected default timestamp %d, got %d", fixedTime.UnixMilli(), view.Timestamp)
	}
	if view.IsMain {
		t.Fatal("expected isMain false by default")
	}

	stored := e.posts.stored(1)
	if stored == nil {
		t.Fatal("expected canonical record written")
	}
	if stored.Content != "hello" {
		t.Fatalf("expected stored content hello, got %q", stored.Content)
	}

	if got := e.db.counter("global", "postCount"); got != 1 {
		t.Fatalf("expected global post count 1, got %d", got)
	}
	if entries := e.db.index("posts:pid"); len(entries) != 1 || entries[0].pid != 1 {
		t.Fatalf("expected one time index entry for pid 1, got %v", entries)
	}
	if len(e.users.onNew) != 1 || len(e.threads.onNew) != 1 || len(e.groups.calls) != 1 {
		t.Fatal("expected user, thread and group fan-out exactly once")
	}
	if len(e.categories.calls) != 1 {
		t.Fatalf("expected one category fan-out, got %d", len(e.categories.calls))
	}
	if call := e.categories.calls[0]; call.cid != 4 || call.pinned {
		t.Fatalf("unexpected category call %+v", call)
	}
	if len(e.uploads.synced) != 1 || e.uploads.synced[0] != 1 {
		t.Fatalf("expected upload sync for pid 1, got %v", e.uploads.synced)
	}

	sends := e.mailer.sent()
	if len(sends) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(sends))
	}
	mail := sends[0]
	if mail.to != "owner@example.com" || mail.locale != "en-GB" || mail.template != "notification" {
		t.Fatalf("unexpected notification envelope %+v", mail)
	}
	if mail.params.TopicSlug != "my-topic-" {
		t.Fatalf("expected slug my-topic-, got %q", mail.params.TopicSlug)
	}
	if mail.params.Subject != `New reply to your topic: "My Topic!"` {
		t.Fatalf("unexpected subject %q", mail.params.Subject)
	}
	if mail.params.Username != "owner" {
		t.Fatalf("expected recipient username owner, got %q", mail.params.Username)
	}
}

func TestCreateUnknownIdentity(t *testing.T) {
	e := newEnv(nil)

	_, err := e.creator.Create(context.Background(), CreateRequest{
		TID:     9,
		Content: "hello",
	})
	if !errors.Is(err, ErrInvalidUID) {
		t.Fatalf("expected ErrInvalidUID, got %v", err)
	}
	if e.posts.count() != 0 {
		t.Fatal("no record may be written for an unknown identity")
	}
	if e.db.counter("global", "postCount") != 0 {
		t.Fatal("no counter may move for an unknown identity")
	}
}

func TestCreateGuestIdentity(t *testing.T) {
	e := newEnv(nil)

	view, err := e.creator.Create(context.Background(), CreateRequest{
		Author:  Guest(),
		TID:     9,
		Content: "hi from a guest",
		Handle:  "drifter",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.UID != 0 {
		t.Fatalf("expected guest uid 0, got %d", view.UID)
	}
	if view.Handle != "drifter" {
		t.Fatalf("expected guest handle kept, got %q", view.Handle)
	}
}

func TestHandleIgnoredForAuthenticated(t *testing.T) {
	e := newEnv(nil)

	view, err := e.creator.Create(context.Background(), CreateRequest{
		Author:  Authenticated(5),
		TID:     9,
		Content: "hello",
		Handle:  "impostor",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.Handle != "" {
		t.Fatalf("handle must be dropped for authenticated actors, got %q", view.Handle)
	}
}

func TestCreateAnonymous(t *testing.T) {
	e := newEnv(nil)

	view, err := e.creator.Create(context.Background(), CreateRequest{
		Author:    Authenticated(7),
		TID:       9,
		Content:   "hush",
		Anonymous: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.UID != 0 {
		t.Fatalf("anonymous post must store uid 0, got %d", view.UID)
	}
	// self-notification check uses the real actor, not the anonymized uid
	if len(e.mailer.sent()) != 1 {
		t.Fatal("expected notification to the thread author")
	}
}

func TestTrackIPPerPost(t *testing.T) {
	tests := []struct {
		name   string
		track  bool
		ip     string
		wantIP string
	}{
		{name: "tracked and supplied", track: true, ip: "203.0.113.7", wantIP: "203.0.113.7"},
		{name: "tracking disabled", track: false, ip: "203.0.113.7", wantIP: ""},
		{name: "tracked but missing", track: true, ip: "", wantIP: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(func(d *Deps, _ *env) { d.TrackIPPerPost = tc.track })
			view, err := e.creator.Create(context.Background(), CreateRequest{
				Author:  Authenticated(5),
				TID:     9,
				Content: "hello",
				IP:      tc.ip,
			})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if got := e.posts.stored(view.PID).IP; got != tc.wantIP {
				t.Fatalf("expected stored ip %q, got %q", tc.wantIP, got)
			}
		})
	}
}

func TestParentMissing(t *testing.T) {
	e := newEnv(nil)

	_, err := e.creator.Create(context.Background(), CreateRequest{
		Author:  Authenticated(5),
		TID:     9,
		Content: "reply",
		ToPID:   404,
	})
	if !errors.Is(err, ErrInvalidPID) {
		t.Fatalf("expected ErrInvalidPID, got %v", err)
	}
	if e.posts.count() != 0 {
		t.Fatal("no record may be written for an invalid parent")
	}
}

func TestParentDeletedNeedsPrivilege(t *testing.T) {
	tests := []struct {
		name    string
		allow   bool
		wantErr bool
	}{
		{name: "without view-deleted", allow: false, wantErr: true},
		{name: "with view-deleted", allow: true, wantErr: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(func(_ *Deps, e *env) {
				e.posts.parents[3] = PostFields{PID: 3, Deleted: true}
				e.privileges.allow = tc.allow
			})
			view, err := e.creator.Create(context.Background(), CreateRequest{
				Author:  Authenticated(5),
				TID:     9,
				Content: "reply",
				ToPID:   3,
			})
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidPID) {
					t.Fatalf("expected ErrInvalidPID, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if e.privileges.capability != CapabilityViewDeleted {
				t.Fatalf("expected view-deleted capability check, got %q", e.privileges.capability)
			}
			if view.ToPID != 3 {
				t.Fatalf("expected parent reference kept, got %d", view.ToPID)
			}
		})
	}
}

func TestReplyEdgeAndCounter(t *testing.T) {
	e := newEnv(func(_ *Deps, e *env) {
		e.posts.parents[3] = PostFields{PID: 3}
	})

	view, err := e.creator.Create(context.Background(), CreateRequest{
		Author:  Authenticated(5),
		TID:     9,
		Content: "reply",
		ToPID:   3,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := e.posts.replies[3]; got != 1 {
		t.Fatalf("expected parent reply counter 1, got %d", got)
	}
	edges := e.db.index("post:3:replies")
	if len(edges) != 1 {
		t.Fatalf("expected exactly one reply edge, got %d", len(edges))
	}
	if edges[0].pid != view.PID || edges[0].timestamp != view.Timestamp {
		t.Fatalf("unexpected reply edge %+v", edges[0])
	}
}

func TestConcurrentCreatesGetUniqueIDs(t *testing.T) {
	e := newEnv(nil)

	const n = 32
	pids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := e.creator.Create(context.Background(), CreateRequest{
				Author:  Authenticated(int64(i + 2)),
				TID:     9,
				Content: fmt.Sprintf("post %d", i),
			})
			if err != nil {
				t.Errorf("create %d: %v", i, err)
				return
			}
			pids <- view.PID
		}(i)
	}
	wg.Wait()
	close(pids)

	seen := map[int64]bool{}
	for pid := range pids {
		if seen[pid] {
			t.Fatalf("pid %d assigned twice", pid)
		}
		seen[pid] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d posts, got %d", n, len(seen))
	}
}

func TestCreateFilterRunsBeforeWrite(t *testing.T) {
	e := newEnv(nil)
	e.registry.RegisterFilter(hooks.FilterPostCreate, func(ctx context.Context, p *hooks.Payload) error {
		p.Post.Content = p.Post.Content + " [filtered]"
		return nil
	})
	e.registry.RegisterFilter(hooks.FilterPostCreate, func(ctx context.Context, p *hooks.Payload) error {
		p.Post.Content = p.Post.Content + " [again]"
		return nil
	})

	view, err := e.creator.Create(context.Background(), CreateRequest{
		Author:  Authenticated(5),
		TID:     9,
		Content: "raw",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := "raw [filtered] [again]"
	if got := e.posts.stored(view.PID).Content; got != want {
		t.Fatalf("expected stored content %q, got %q", want, got)
	}
}

func TestCreateFilterErrorFailsBeforeWrite(t *testing.T) {
	e := newEnv(nil)
	boom := errors.New("rejected by extension")
	e.registry.RegisterFilter(hooks.FilterPostCreate, func(ctx context.Context, p *hooks.Payload) error {
		return boom
	})

	_, err := e.creator.Create(context.Background(), CreateRequest{
		Author:  Authenticated(5),
		TID:     9,
		Content: "raw",
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected filter error, got %v", err)
	}
	if e.posts.count() != 0 {
		t.Fatal("filter rejection must prevent the canonical write")
	}
}

func TestGetFilterShapesViewOnly(t *testing.T) {
	e := newEnv(nil)
	e.registry.RegisterFilter(hooks.FilterPostGet, func(ctx context.Context, p *hooks.Payload) error {
		p.Post.Content = "rendered"
		return nil
	})

	view, err := e.creator.Create(context.Background(), CreateRequest{
		Author:  Authenticated(5),
		TID:     9,
		Content: "raw",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.Content != "rendered" {
		t.Fatalf("expected filtered view content, got %q", view.Content)
	}
	if got := e.posts.stored(view.PID).Content; got != "raw" {
		t.Fatalf("post-get filter must not touch the stored record, got %q", got)
	}
}

func TestActionHookCannotLeakOrFail(t *testing.T) {
	e := newEnv(nil)
	var got hooks.Payload
	e.registry.RegisterAction(hooks.ActionPostSave, func(ctx context.Context, p hooks.Payload) error {
		got = p
		p.Post.Content = "mutated by action"
		return errors.New("action blew up")
	})

	view, err := e.creator.Create(context.Background(), CreateRequest{
		Author:  Authenticated(5),
		TID:     9,
		Content: "hello",
	})
	if err != nil {
		t.Fatalf("create must not fail on action errors: %v", err)
	}
	if view.Content != "hello" {
		t.Fatalf("action mutation leaked into the view: %q", view.Content)
	}
	if got.Post == nil || got.Post.PID != view.PID {
		t.Fatal("action hook did not receive the final post")
	}
}

func TestFanOutFailureIsComposite(t *testing.T) {
	e := newEnv(func(_ *Deps, e *env) {
		e.categories.err = errors.New("category store down")
	})

	_, err := e.creator.Create(context.Background(), CreateRequest{
		Author:  Authenticated(5),
		TID:     9,
		Content: "hello",
	})
	var fanOut *FanOutError
	if !errors.As(err, &fanOut) {
		t.Fatalf("expected FanOutError, got %v", err)
	}
	if fanOut.PID != 1 {
		t.Fatalf("expected pid 1 in fan-out error, got %d", fanOut.PID)
	}
	// the canonical write already happened: post exists, state may be stale
	if e.posts.stored(1) == nil {
		t.Fatal("post must remain written after a fan-out failure")
	}
}

func TestNotificationFailureIsInvisible(t *testing.T) {
	e := newEnv(func(_ *Deps, e *env) {
		e.mailer.err = errors.New("smtp down")
	})

	view, err := e.creator.Create(context.Background(), CreateRequest{
		Author:  Authenticated(5),
		TID:     9,
		Content: "hello",
	})
	if err != nil {
		t.Fatalf("create must succeed despite delivery failure: %v", err)
	}
	if view == nil || view.PID == 0 {
		t.Fatal("expected a valid post view")
	}
	if len(e.mailer.sent()) != 1 {
		t.Fatal("expected the delivery attempt to have happened")
	}
}

func TestNoSelfNotification(t *testing.T) {
	e := newEnv(nil)

	_, err := e.creator.Create(context.Background(), CreateRequest{
		Author:  Authenticated(1), // same as the thread author
		TID:     9,
		Content: "talking to myself",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(e.mailer.sent()) != 0 {
		t.Fatal("expected no notification for a self-reply")
	}
}

func TestSuppliedTimestampKept(t *testing.T) {
	e := newEnv(nil)

	view, err := e.creator.Create(context.Background(), CreateRequest{
		Author:    Authenticated(5),
		TID:       9,
		Content:   "hello",
		Timestamp: 1234567890123,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.Timestamp != 1234567890123 {
		t.Fatalf("expected caller timestamp kept, got %d", view.Timestamp)
	}
	entries := e.db.index("posts:pid")
	if len(entries) != 1 || entries[0].timestamp != 1234567890123 {
		t.Fatalf("time index must use the post timestamp, got %v", entries)
	}
}

func TestIsMainFlagOnView(t *testing.T) {
	e := newEnv(nil)
	var actionSawMain bool
	e.registry.RegisterAction(hooks.ActionPostSave, func(ctx context.Context, p hooks.Payload) error {
		actionSawMain = p.IsMain
		return nil
	})

	view, err := e.creator.Create(context.Background(), CreateRequest{
		Author:  Authenticated(5),
		TID:     9,
		Content: "opening post",
		IsMain:  true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !view.IsMain {
		t.Fatal("expected isMain on the returned view")
	}
	// the action payload and the returned view share the same flag
	if actionSawMain != view.IsMain {
		t.Fatalf("action payload isMain = %v, view = %v", actionSawMain, view.IsMain)
	}
	// transient flag: never part of the canonical record
	stored := e.posts.stored(view.PID)
	if stored == nil {
		t.Fatal("expected canonical record written")
	}
}
