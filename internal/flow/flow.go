// Package flow drives the four-step session page: source text, topic
// selection, question configuration and question discovery.
//
// A page holds only what the user picked on it (selected topics and the active
// topic). Everything else is derived from the session aggregate every time the
// page is viewed.
package flow

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quesgenie/internal/domain"
	"github.com/victornm/quesgenie/internal/errors"
	"github.com/victornm/quesgenie/internal/session"
)

const defaultPageTTL = 30 * time.Minute

// Sessions is the part of the session service a page needs.
type Sessions interface {
	GetFullSession(ctx context.Context, req session.GetFullSessionRequest) (*domain.FullSession, error)
	DeleteQuestionConfig(ctx context.Context, req session.DeleteQuestionConfigRequest) error
	DeleteAllQuestionConfigsForTopic(ctx context.Context, req session.DeleteAllQuestionConfigsRequest) error
}

type Config struct {
	Sessions Sessions
	// PageTTL is how long an untouched page is kept.
	PageTTL time.Duration
}

type Controller struct {
	sessions Sessions
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	pages map[string]*Page
}

// Page is one open session page. Selected keeps the order topics were picked in.
type Page struct {
	ID            string
	SessionID     string
	UserID        string
	Selected      []string
	ActiveTopicID string

	lastSeen time.Time
}

func (p *Page) selected(topicID string) bool {
	return slices.Contains(p.Selected, topicID)
}

func NewController(c Config) *Controller {
	if c.PageTTL <= 0 {
		c.PageTTL = defaultPageTTL
	}

	return &Controller{
		sessions: c.Sessions,
		ttl:      c.PageTTL,
		now:      time.Now,
		pages:    make(map[string]*Page),
	}
}

type OpenPageRequest struct {
	UserID    string
	SessionID string
}

// OpenPage starts a page with nothing selected. The session must be readable by
// the user.
func (c *Controller) OpenPage(ctx context.Context, req OpenPageRequest) (*View, error) {
	fs, err := c.sessions.GetFullSession(ctx, session.GetFullSessionRequest{UserID: req.UserID, SessionID: req.SessionID})
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Internal(err)
	}

	p := &Page{
		ID:        id.String(),
		SessionID: req.SessionID,
		UserID:    req.UserID,
		lastSeen:  c.now(),
	}

	c.mu.Lock()
	c.pages[p.ID] = p
	snapshot := *p
	c.mu.Unlock()

	return buildView(&snapshot, fs, nil), nil
}

type PageRequest struct {
	UserID string
	PageID string
}

// View derives every step from the current aggregate. A failed fetch puts
// every step in an error state instead of failing the call.
func (c *Controller) View(ctx context.Context, req PageRequest) (*View, error) {
	p, err := c.page(req.UserID, req.PageID, nil)
	if err != nil {
		return nil, err
	}

	return c.view(ctx, p), nil
}

func (c *Controller) view(ctx context.Context, p *Page) *View {
	fs, err := c.sessions.GetFullSession(ctx, session.GetFullSessionRequest{UserID: p.UserID, SessionID: p.SessionID})
	if err != nil {
		slog.ErrorContext(ctx, "flow: fetch session failed", "page_id", p.ID, "session_id", p.SessionID, "error", err)
		return buildView(p, nil, errors.Convert(err))
	}

	return buildView(p, fs, nil)
}

// page returns a copy of the page after applying mutate to it. Expired pages
// and pages of other users are not found.
func (c *Controller) page(userID, pageID string, mutate func(p *Page)) (*Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	p, ok := c.pages[pageID]
	if ok && now.Sub(p.lastSeen) > c.ttl {
		delete(c.pages, pageID)
		ok = false
	}
	if !ok || p.UserID != userID {
		return nil, errors.NotFound("page", pageID)
	}

	p.lastSeen = now
	if mutate != nil {
		mutate(p)
	}

	cp := *p
	cp.Selected = slices.Clone(p.Selected)
	return &cp, nil
}

type ToggleTopicRequest struct {
	UserID  string
	PageID  string
	TopicID string
}

// ToggleTopic selects a topic, or deselects it and deletes all of its configs.
// Deselection is destructive and the topic stays deselected even when the
// delete fails.
func (c *Controller) ToggleTopic(ctx context.Context, req ToggleTopicRequest) (*View, error) {
	p, err := c.page(req.UserID, req.PageID, nil)
	if err != nil {
		return nil, err
	}

	if p.selected(req.TopicID) {
		p, err = c.page(req.UserID, req.PageID, func(p *Page) {
			p.Selected = slices.DeleteFunc(p.Selected, func(id string) bool { return id == req.TopicID })
			if p.ActiveTopicID == req.TopicID {
				p.ActiveTopicID = ""
			}
		})
		if err != nil {
			return nil, err
		}

		err = c.sessions.DeleteAllQuestionConfigsForTopic(ctx, session.DeleteAllQuestionConfigsRequest{
			UserID:    req.UserID,
			SessionID: p.SessionID,
			TopicID:   req.TopicID,
		})
		if err != nil {
			return nil, err
		}

		return c.view(ctx, p), nil
	}

	fs, err := c.sessions.GetFullSession(ctx, session.GetFullSessionRequest{UserID: req.UserID, SessionID: p.SessionID})
	if err != nil {
		return nil, err
	}
	if !fs.HasTopic(req.TopicID) {
		return nil, errors.NotFound("topic", req.TopicID)
	}

	p, err = c.page(req.UserID, req.PageID, func(p *Page) {
		if !p.selected(req.TopicID) {
			p.Selected = append(p.Selected, req.TopicID)
		}
	})
	if err != nil {
		return nil, err
	}

	return buildView(p, fs, nil), nil
}

type ActivateTopicRequest struct {
	UserID  string
	PageID  string
	TopicID string
}

// ActivateTopic picks the selected topic whose configs are being edited.
func (c *Controller) ActivateTopic(ctx context.Context, req ActivateTopicRequest) (*View, error) {
	var selected bool
	p, err := c.page(req.UserID, req.PageID, func(p *Page) {
		if selected = p.selected(req.TopicID); selected {
			p.ActiveTopicID = req.TopicID
		}
	})
	if err != nil {
		return nil, err
	}
	if !selected {
		return nil, errors.FailedPrecondition("topic %s is not selected", req.TopicID)
	}

	return c.view(ctx, p), nil
}

type DeleteConfigRequest struct {
	UserID   string
	PageID   string
	TopicID  string
	ConfigID string
}

// DeleteConfig deletes one config of a topic. The last config of a topic can
// only go away by deselecting the topic.
func (c *Controller) DeleteConfig(ctx context.Context, req DeleteConfigRequest) (*View, error) {
	p, err := c.page(req.UserID, req.PageID, nil)
	if err != nil {
		return nil, err
	}

	fs, err := c.sessions.GetFullSession(ctx, session.GetFullSessionRequest{UserID: req.UserID, SessionID: p.SessionID})
	if err != nil {
		return nil, err
	}
	if len(fs.Configs[req.TopicID]) <= 1 {
		return nil, errors.FailedPrecondition("the last config of a topic can not be deleted")
	}

	err = c.sessions.DeleteQuestionConfig(ctx, session.DeleteQuestionConfigRequest{
		UserID:    req.UserID,
		SessionID: p.SessionID,
		TopicID:   req.TopicID,
		ID:        req.ConfigID,
	})
	if err != nil {
		return nil, err
	}

	return c.view(ctx, p), nil
}

// ClosePage forgets the page.
func (c *Controller) ClosePage(_ context.Context, req PageRequest) error {
	if _, err := c.page(req.UserID, req.PageID, nil); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.pages, req.PageID)
	c.mu.Unlock()

	return nil
}

// Sweep drops pages that were not touched within the TTL and returns how many
// were dropped.
func (c *Controller) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now, n := c.now(), 0
	for id, p := range c.pages {
		if now.Sub(p.lastSeen) > c.ttl {
			delete(c.pages, id)
			n++
		}
	}
	return n
}

// Run sweeps expired pages until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	t := time.NewTicker(c.ttl / 2)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := c.Sweep(); n > 0 {
				slog.DebugContext(ctx, "flow: expired pages dropped", "count", n)
			}
		}
	}
}
