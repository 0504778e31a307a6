package route

import (
	"context"
	"sync"

	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"github.com/xela07ax/shuma-dashboard/internal/store"
	"go.uber.org/zap"
)

type Refresher interface {
	RefreshTab(ctx context.Context, tab domain.Tab, reason domain.RefreshReason) error
	Abort(tab domain.Tab)
}

type PollingScheduler interface {
	SchedulePolling(reason domain.PollingReason)
}

// Options: параметры ApplyActiveTab.
type Options struct {
	Reason      domain.RefreshReason
	SyncHash    bool
	ReplaceHash bool
	Force       bool
}

// Controller: единственный источник истины об активной вкладке, синхронизированный с фрагментом URL.
type Controller struct {
	store     *store.Store
	loc       Location
	refresher Refresher
	scheduler PollingScheduler
	logger    *zap.Logger

	wg sync.WaitGroup
}

func NewController(st *store.Store, loc Location, refresher Refresher, scheduler PollingScheduler, logger *zap.Logger) *Controller {
	return &Controller{
		store:     st,
		loc:       loc,
		refresher: refresher,
		scheduler: scheduler,
		logger:    logger.Named("route"),
	}
}

func NormalizeTab(raw string) domain.Tab {
	return domain.NormalizeTab(raw)
}

// ApplyActiveTab делает вкладку активной. Та же вкладка без Force только пересинхронизирует фрагмент.
// Иначе: запись в стор, отмена обновления предыдущей вкладки, обновление новой и перепланирование поллинга.
func (c *Controller) ApplyActiveTab(ctx context.Context, raw string, opts Options) domain.Tab {
	tab := domain.NormalizeTab(raw)
	prev := c.store.GetState().ActiveTab()

	if tab == prev && !opts.Force {
		if opts.SyncHash {
			c.syncHash(tab, opts.ReplaceHash)
		}
		return tab
	}

	reason := opts.Reason
	if reason == "" {
		reason = domain.ReasonTabChange
	}

	c.store.Dispatch(store.SetActiveTab(tab))
	if opts.SyncHash {
		c.syncHash(tab, opts.ReplaceHash)
	}
	if prev != tab {
		c.refresher.Abort(prev)
	}

	c.logger.Debug("active tab applied",
		zap.String("tab", string(tab)),
		zap.String("previous", string(prev)),
		zap.String("reason", string(reason)))

	if c.store.GetState().Authenticated() {
		c.refreshAsync(ctx, tab, reason)
	}
	c.scheduler.SchedulePolling(domain.ResumeTabChange)
	return tab
}

// SyncFromHash читает фрагмент, переписывает невалидный (replace) и применяет вкладку без повторной записи фрагмента.
func (c *Controller) SyncFromHash(ctx context.Context, opts Options) domain.Tab {
	raw := c.loc.Hash()
	tab := domain.NormalizeTab(raw)
	if raw != tab.Hash() {
		c.loc.SetHash(tab.Hash(), true)
	}
	if opts.Reason == "" {
		opts.Reason = domain.ReasonHashChange
	}
	opts.SyncHash = false
	return c.ApplyActiveTab(ctx, string(tab), opts)
}

// Wait ждет запущенные контроллером обновления.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// CurrentPath: путь страницы для параметра next.
func (c *Controller) CurrentPath() string {
	return c.loc.Path()
}

func (c *Controller) refreshAsync(ctx context.Context, tab domain.Tab, reason domain.RefreshReason) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.refresher.RefreshTab(ctx, tab, reason); err != nil {
			c.logger.Debug("tab refresh finished with error", zap.String("tab", string(tab)), zap.Error(err))
		}
	}()
}

func (c *Controller) syncHash(tab domain.Tab, replace bool) {
	if c.loc.Hash() == tab.Hash() {
		return
	}
	c.loc.SetHash(tab.Hash(), replace)
}

// KeyNavTarget возвращает вкладку для клавиши навигации в циклическом порядке.
// Поддерживаются имена клавиш браузера (ArrowRight) и терминала (right). ok=false для прочих клавиш.
func KeyNavTarget(current domain.Tab, key string) (domain.Tab, bool) {
	tabs := domain.Tabs()
	idx := domain.NormalizeTab(string(current)).Index()
	if idx < 0 {
		idx = 0
	}

	switch key {
	case "ArrowRight", "right":
		return tabs[(idx+1)%len(tabs)], true
	case "ArrowLeft", "left":
		return tabs[(idx-1+len(tabs))%len(tabs)], true
	case "Home", "home":
		return tabs[0], true
	case "End", "end":
		return tabs[len(tabs)-1], true
	}
	return current, false
}
