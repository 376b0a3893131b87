package handler

import (
	"io"
	"sync"

	"clickearn/internal/app"
	"clickearn/internal/model"
	"clickearn/internal/service"
)

// TaskHandler handles the task list, ad clicks and the countdown.
type TaskHandler struct {
	app *app.App
	// out receives countdown updates between commands.
	out io.Writer
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(a *app.App, out io.Writer) *TaskHandler {
	return &TaskHandler{app: a, out: out}
}

// HandleTasks lists every task.
func (h *TaskHandler) HandleTasks(c *Context) error {
	views, err := h.app.GetAllTaskStates(c.Context())
	if err != nil {
		return c.Reply(Describe(err))
	}
	for _, v := range views {
		if err := c.Reply(FormatTask(v)); err != nil {
			return err
		}
	}
	return nil
}

// HandleTask handles task <id>.
func (h *TaskHandler) HandleTask(c *Context) error {
	if len(c.Args()) < 1 {
		return c.Reply("Usage: task <id>")
	}
	v, err := h.app.GetTaskState(c.Context(), c.Arg(0))
	if err != nil {
		return c.Reply(Describe(err))
	}
	if err := c.Reply(FormatTask(v)); err != nil {
		return err
	}
	if v.Entry.Description != "" {
		return c.Reply("  " + v.Entry.Description)
	}
	return nil
}

// HandleClick handles click <task> <ad>, where ad counts from 1.
func (h *TaskHandler) HandleClick(c *Context) error {
	if len(c.Args()) < 2 {
		return c.Reply("Usage: click <task> <ad>")
	}
	idx, err := parseAdIndex(c.Arg(1))
	if err != nil {
		return c.Reply("❌ " + err.Error())
	}

	url, err := h.app.ClickAdSlot(c.Context(), c.Arg(0), idx)
	if err != nil {
		return c.Reply(Describe(err))
	}
	if url == "" {
		return c.Replyf("🔁 %s was interrupted before its reward, finishing it", c.Arg(0))
	}
	return c.Replyf("🔗 Opened %s\n   Stay at least %s, then type 'back'.",
		url, formatDuration(h.app.MinDwell()))
}

// HandleBack tells the verifier the user is back from the ad. Outcomes are
// printed by the dwell notifier; this only reports slots still waiting.
func (h *TaskHandler) HandleBack(c *Context) error {
	events := h.app.FocusReturned(c.Context())
	pending := h.app.PendingDwells()
	if len(events) == 0 && len(pending) == 0 {
		return c.Reply("No ads open")
	}
	for _, p := range pending {
		if err := c.Replyf("⏳ %s ad %d needs %s more",
			p.Key.TaskID, p.Key.AdIndex+1, formatDuration(p.Remaining)); err != nil {
			return err
		}
	}
	return nil
}

// HandleWatch starts the countdown. Each task is reported when its status
// changes.
func (h *TaskHandler) HandleWatch(c *Context) error {
	p := &countdownPrinter{out: h.out, last: make(map[string]model.TaskStatus)}
	if err := h.app.StartCountdown(c.Context(), p.render); err != nil {
		return c.Reply(Describe(err))
	}
	return c.Reply("Watching task cooldowns, 'unwatch' to stop")
}

// HandleUnwatch stops the countdown.
func (h *TaskHandler) HandleUnwatch(c *Context) error {
	if !h.app.CountdownRunning() {
		return c.Reply("Not watching")
	}
	h.app.StopCountdown()
	return c.Reply("Stopped watching")
}

// HandleRenew handles renew <task>, a shortcut that ends a cooldown now.
func (h *TaskHandler) HandleRenew(c *Context) error {
	if len(c.Args()) < 1 {
		return c.Reply("Usage: renew <task>")
	}
	if _, err := h.app.ForceRenewTask(c.Context(), c.Arg(0)); err != nil {
		return c.Reply(Describe(err))
	}
	return c.Replyf("🔄 %s renewed", c.Arg(0))
}

type countdownPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	last map[string]model.TaskStatus
}

func (p *countdownPrinter) render(views []service.TaskView) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, v := range views {
		if prev, ok := p.last[v.Entry.ID]; ok && prev == v.Status {
			continue
		}
		p.last[v.Entry.ID] = v.Status
		_, _ = io.WriteString(p.out, FormatTask(v)+"\n")
	}
}
