package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain/entities"
	"github.com/Suraj127-git/medchat/domain/repositories"
)

const (
	DefaultTTL = 6 * time.Second
	DefaultMax = 20
)

// Config tunes the notice center
type Config struct {
	TTL time.Duration
	Max int
}

// Center is the single place user-facing failures are reported. It keeps the
// most recent notices and streams new ones without ever blocking the caller.
type Center struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	notices []entities.Notice
	events  chan entities.Notice
}

var _ repositories.Notifier = (*Center)(nil)

// NewCenter creates a new notice center
func NewCenter(cfg Config, logger *zap.Logger) *Center {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultMax
	}
	return &Center{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		events: make(chan entities.Notice, cfg.Max),
	}
}

// Notify implements repositories.Notifier
func (c *Center) Notify(kind entities.NoticeKind, channel entities.NoticeChannel, text string) {
	notice := entities.Notice{
		ID:        uuid.NewString(),
		Kind:      kind,
		Channel:   channel,
		Text:      text,
		CreatedAt: c.now(),
	}

	c.mu.Lock()
	c.notices = append(c.notices, notice)
	if over := len(c.notices) - c.cfg.Max; over > 0 {
		c.notices = append([]entities.Notice(nil), c.notices[over:]...)
	}
	c.mu.Unlock()

	c.logger.Warn("Notice raised",
		zap.String("kind", string(kind)),
		zap.String("channel", string(channel)),
		zap.String("text", text))

	select {
	case c.events <- notice:
	default:
		c.logger.Debug("Notice channel full, dropping event", zap.String("id", notice.ID))
	}
}

// Active returns the notices still displayed at now, oldest first
func (c *Center) Active(now time.Time) []entities.Notice {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []entities.Notice
	for _, n := range c.notices {
		if !n.ExpiredAt(now, c.cfg.TTL) {
			out = append(out, n)
		}
	}
	return out
}

// Recent returns every retained notice, oldest first
func (c *Center) Recent() []entities.Notice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]entities.Notice(nil), c.notices...)
}

// Dismiss removes a notice before its TTL expires
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.notices {
		if n.ID == id {
			c.notices = append(c.notices[:i], c.notices[i+1:]...)
			return true
		}
	}
	return false
}

// Events returns the stream of new notices
func (c *Center) Events() <-chan entities.Notice {
	return c.events
}

// TTL returns how long a notice stays displayed
func (c *Center) TTL() time.Duration {
	return c.cfg.TTL
}
