// Package controller drives enrichment and reconciliation from tab
// lifecycle events and UI commands arriving over the extension link.
package controller

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lotas/tabkartei/internal/applog"
	"github.com/lotas/tabkartei/internal/enrich"
	"github.com/lotas/tabkartei/internal/registry"
	"github.com/lotas/tabkartei/internal/server"
	"github.com/lotas/tabkartei/internal/types"
)

// UI request actions (extension popup → agent).
const (
	ReqGetTabData       = "getTabData"
	ReqAnalyzeSingleTab = "analyzeSingleTab"
	ReqAnalyzeAllTabs   = "analyzeAllTabs"
	ReqCloseTabs        = "closeTabs"
)

// Defaults per the agent's operating model.
const (
	ReconcileInterval = 5 * time.Minute
	BatchSize         = 5
	BatchPause        = 100 * time.Millisecond
	ListTimeout       = 5 * time.Second
)

// Controller owns the event loop. One instance runs per process.
type Controller struct {
	srv    *server.Server
	reg    *registry.Registry
	engine *enrich.Engine

	reconcileEvery time.Duration
	batchSize      int
	batchPause     time.Duration

	bulkRunning atomic.Bool
}

// New creates a Controller with default intervals.
func New(srv *server.Server, reg *registry.Registry, engine *enrich.Engine) *Controller {
	return &Controller{
		srv:            srv,
		reg:            reg,
		engine:         engine,
		reconcileEvery: ReconcileInterval,
		batchSize:      BatchSize,
		batchPause:     BatchPause,
	}
}

// Run consumes extension messages and the reconcile ticker until ctx
// is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.reconcileEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.srv.Messages():
			c.handle(ctx, msg)
		case <-ticker.C:
			go c.Reconcile(ctx)
		}
	}
}

func (c *Controller) handle(ctx context.Context, msg server.IncomingMsg) {
	switch msg.Type {
	case server.TypeTabCreated:
		tab, err := server.ParseTab(msg.Tab)
		if err != nil {
			applog.Error("event.created", err)
			return
		}
		go func() {
			c.enrichAndFlush(ctx, tab)
			c.Reconcile(ctx)
		}()

	case server.TypeTabUpdated:
		// Only navigation/load-complete updates trigger re-enrichment;
		// in-page state changes are noise.
		if msg.Status != "complete" {
			return
		}
		tab, err := server.ParseTab(msg.Tab)
		if err != nil {
			applog.Error("event.updated", err)
			return
		}
		urlChanged := msg.URLChanged
		go func() {
			c.enrichAndFlush(ctx, tab)
			if urlChanged {
				c.Reconcile(ctx)
			}
		}()

	case server.TypeTabActivated:
		tab, err := server.ParseTab(msg.Tab)
		if err != nil {
			applog.Error("event.activated", err)
			return
		}
		c.reg.TouchAccessed(tab.ID, time.Now())
		go func() {
			c.enrichAndFlush(ctx, tab)
			c.Reconcile(ctx)
		}()

	case server.TypeTabRemoved:
		if c.reg.Remove(msg.TabID) {
			c.reg.Flush()
			applog.Info("event.removed", "tab", msg.TabID)
		}

	case server.TypeTabList:
		// Pushed by the extension on connect: reconcile against it
		// without a round trip.
		live, err := server.ParseTabList(msg)
		if err != nil {
			applog.Error("event.tablist", err)
			return
		}
		go c.reconcileWith(ctx, live)

	case server.TypeRequest:
		c.handleRequest(ctx, msg)
	}
}

func (c *Controller) handleRequest(ctx context.Context, msg server.IncomingMsg) {
	switch msg.Action {
	case ReqGetTabData:
		c.respond(msg.ID, server.OutgoingMsg{
			Action:  server.ActionResponse,
			TabData: c.snapshotKeyed(),
			Success: boolPtr(true),
		})

	case ReqAnalyzeSingleTab:
		tabID := msg.TabID
		reqID := msg.ID
		go func() {
			err := c.AnalyzeOne(ctx, tabID)
			out := server.OutgoingMsg{Action: server.ActionResponse, Success: boolPtr(err == nil)}
			if err != nil {
				out.Error = err.Error()
			}
			c.respond(reqID, out)
		}()

	case ReqAnalyzeAllTabs:
		c.respond(msg.ID, server.OutgoingMsg{
			Action:  server.ActionResponse,
			Success: boolPtr(true),
			Status:  "started",
		})
		go c.AnalyzeAll(ctx)

	case ReqCloseTabs:
		tabIDs := msg.TabIDs
		reqID := msg.ID
		go func() {
			err := c.CloseTabs(tabIDs)
			out := server.OutgoingMsg{Action: server.ActionResponse, Success: boolPtr(err == nil)}
			if err != nil {
				out.Error = err.Error()
			}
			c.respond(reqID, out)
		}()

	default:
		c.respond(msg.ID, server.OutgoingMsg{
			Action:  server.ActionResponse,
			Success: boolPtr(false),
			Error:   "unknown action " + msg.Action,
		})
	}
}

// respond sends a request response; best-effort like every send.
func (c *Controller) respond(id string, out server.OutgoingMsg) {
	out.ID = id
	if err := c.srv.Send(out); err != nil {
		applog.Error("respond", err, "id", id)
	}
}

// enrichAndFlush runs one enrichment and persists the result.
func (c *Controller) enrichAndFlush(ctx context.Context, tab types.Tab) {
	if _, ok := c.engine.Enrich(ctx, tab); ok {
		c.reg.Flush()
	}
}

// Reconcile fetches the live tab list and aligns the registry with it.
// Newly-seen tabs are enriched asynchronously so reconciliation never
// blocks on content fetches.
func (c *Controller) Reconcile(ctx context.Context) {
	live, err := c.listTabs(ctx)
	if err != nil {
		applog.Error("reconcile.list", err)
		return
	}
	c.reconcileWith(ctx, live)
}

func (c *Controller) reconcileWith(ctx context.Context, live []types.Tab) {
	added, _ := c.reg.Reconcile(live)
	for _, tab := range added {
		tab := tab
		go c.enrichAndFlush(ctx, tab)
	}
}

func (c *Controller) listTabs(ctx context.Context) ([]types.Tab, error) {
	ctx, cancel := context.WithTimeout(ctx, ListTimeout)
	defer cancel()
	reply, err := c.srv.Request(ctx, server.OutgoingMsg{Action: server.ActionListTabs})
	if err != nil {
		return nil, err
	}
	return server.ParseTabList(reply)
}

// AnalyzeOne enriches a single tab by id, independent of any running
// bulk analysis.
func (c *Controller) AnalyzeOne(ctx context.Context, tabID int) error {
	tab, err := c.resolveTab(ctx, tabID)
	if err != nil {
		return err
	}
	c.enrichAndFlush(ctx, tab)
	return nil
}

// resolveTab finds a tab's URL and title, preferring the registry and
// falling back to a live list.
func (c *Controller) resolveTab(ctx context.Context, tabID int) (types.Tab, error) {
	if rec, ok := c.reg.Get(tabID); ok {
		return types.Tab{ID: rec.ID, URL: rec.URL, Title: rec.Title}, nil
	}
	live, err := c.listTabs(ctx)
	if err != nil {
		return types.Tab{}, err
	}
	for _, tab := range live {
		if tab.ID == tabID {
			return tab, nil
		}
	}
	return types.Tab{}, &UnknownTabError{ID: tabID}
}

// BulkRunning reports whether a bulk analysis is in flight.
func (c *Controller) BulkRunning() bool {
	return c.bulkRunning.Load()
}

// AnalyzeAll re-enriches every open tab in throttled batches. The live
// list is snapshotted once; a failing tab never aborts the run; the
// registry is flushed once at the end and exactly one completion
// notification goes out.
func (c *Controller) AnalyzeAll(ctx context.Context) {
	if !c.bulkRunning.CompareAndSwap(false, true) {
		applog.Info("bulk.already_running")
		return
	}
	defer c.bulkRunning.Store(false)

	live, err := c.listTabs(ctx)
	if err != nil {
		// Fatal enumeration failure: abort cleanly with an explicit
		// error status instead of a silent partial result.
		applog.Error("bulk.list", err)
		c.srv.Send(server.OutgoingMsg{
			Action: server.ActionTabDataUpdated,
			Status: "error",
			Error:  err.Error(),
		})
		return
	}

	applog.Info("bulk.start", "tabs", len(live))
	for start := 0; start < len(live); start += c.batchSize {
		end := start + c.batchSize
		if end > len(live) {
			end = len(live)
		}

		var wg sync.WaitGroup
		for _, tab := range live[start:end] {
			tab := tab
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.engine.Enrich(ctx, tab)
			}()
		}
		wg.Wait()

		if end < len(live) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.batchPause):
			}
		}
	}

	c.reg.Flush()
	c.srv.Send(server.OutgoingMsg{
		Action:  server.ActionTabDataUpdated,
		TabData: c.snapshotKeyed(),
		Status:  "complete",
	})
	applog.Info("bulk.done", "records", c.reg.Len())
}

// CloseTabs asks the extension to close the tabs and drops their
// records.
func (c *Controller) CloseTabs(tabIDs []int) error {
	if err := c.srv.Send(server.OutgoingMsg{
		Action: server.ActionCloseTabs,
		TabIDs: tabIDs,
	}); err != nil {
		return err
	}
	changed := false
	for _, id := range tabIDs {
		if c.reg.Remove(id) {
			changed = true
		}
	}
	if changed {
		c.reg.Flush()
	}
	applog.Info("tabs.closed", "count", len(tabIDs))
	return nil
}

// FocusTab asks the extension to activate a tab.
func (c *Controller) FocusTab(tabID int) error {
	return c.srv.Send(server.OutgoingMsg{
		Action: server.ActionFocusTab,
		TabID:  tabID,
	})
}

func (c *Controller) snapshotKeyed() map[string]*types.TabRecord {
	snapshot := c.reg.Snapshot()
	keyed := make(map[string]*types.TabRecord, len(snapshot))
	for id, rec := range snapshot {
		keyed[strconv.Itoa(id)] = rec
	}
	return keyed
}

// UnknownTabError reports an analyze request for a tab the browser no
// longer has.
type UnknownTabError struct {
	ID int
}

func (e *UnknownTabError) Error() string {
	return "tab " + strconv.Itoa(e.ID) + " not found"
}

func boolPtr(b bool) *bool { return &b }
