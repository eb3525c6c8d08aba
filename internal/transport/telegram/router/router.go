package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	rtsup "schedulebot/internal/runtime/supervisor"
	kit "schedulebot/internal/transport"
	logx "schedulebot/pkg/logx"
	"schedulebot/pkg/tgui"
)

const (
	defaultTimeout = 30 * time.Second
	jobQueueSize   = 256
)

// Router turns updates into handler calls on a bounded worker pool.
//
// Messages are matched in order: slash command, exact button text, fallback
// text handler. Callbacks are matched by the scope and action of their data.
type Router struct {
	log     logx.Logger
	adapter kit.Adapter

	mu        sync.RWMutex
	cmds      []Command
	byName    map[string]Command
	texts     map[string]HandlerFunc
	fallback  HandlerFunc
	callbacks map[string]CallbackRoute
	owners    map[int64]bool
	onErr     func(ctx context.Context, req *Request, err error)
	timeout   time.Duration

	jobs chan func()
}

func New(log logx.Logger, adapter kit.Adapter) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		log:       log,
		adapter:   adapter,
		byName:    map[string]Command{},
		texts:     map[string]HandlerFunc{},
		callbacks: map[string]CallbackRoute{},
		owners:    map[int64]bool{},
		jobs:      make(chan func(), jobQueueSize),
	}
}

// Handle registers a slash command and its aliases.
func (r *Router) Handle(c Command) {
	if c.Handle == nil || strings.TrimSpace(c.Name) == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, c)
	r.byName[strings.ToLower(c.Name)] = c
	for _, a := range c.Aliases {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			r.byName[a] = c
		}
	}
}

// HandleText registers a handler for messages whose whole text equals text,
// which is how reply keyboard buttons arrive.
func (r *Router) HandleText(text string, h HandlerFunc) {
	r.mu.Lock()
	r.texts[strings.TrimSpace(text)] = h
	r.mu.Unlock()
}

// Fallback handles any other non-command text.
func (r *Router) Fallback(h HandlerFunc) {
	r.mu.Lock()
	r.fallback = h
	r.mu.Unlock()
}

func (r *Router) HandleCallback(route CallbackRoute) {
	if route.Handle == nil {
		return
	}
	r.mu.Lock()
	r.callbacks[route.Scope+":"+route.Action] = route
	r.mu.Unlock()
}

// OnError sets the hook run when a handler fails.
func (r *Router) OnError(fn func(ctx context.Context, req *Request, err error)) {
	r.mu.Lock()
	r.onErr = fn
	r.mu.Unlock()
}

// SetHandlerTimeout sets the deadline of handlers that do not set their own.
func (r *Router) SetHandlerTimeout(d time.Duration) {
	r.mu.Lock()
	r.timeout = d
	r.mu.Unlock()
}

// SetOwners replaces the owner list. Safe during config reload.
func (r *Router) SetOwners(ids []int64) {
	m := make(map[int64]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	r.mu.Lock()
	r.owners = m
	r.mu.Unlock()
}

func (r *Router) isOwner(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owners[id]
}

// Commands returns the registered commands in registration order.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Command(nil), r.cmds...)
}

// PublishMenu pushes the public command list to the adapter when supported.
func (r *Router) PublishMenu(ctx context.Context) error {
	up, ok := r.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return up.UpdateMenuCommands(cctx, buildMenu(r.Commands()))
}

// DispatchLoop consumes updates until ctx is done or updates is closed.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := max(2, runtime.NumCPU())
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(r.log.Component("telegram.router")),
		rtsup.WithCancelOnError(false),
	)
	r.log.Info("dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(r.jobs)))

	for i := 0; i < workers; i++ {
		idx := i
		sup.GoRestart("worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-r.jobs:
					r.runJob(idx, job)
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.Route(ctx, up)
		}
	}
}

func (r *Router) runJob(worker int, job func()) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("panic in job", logx.Int("worker", worker), logx.Any("panic", p), logx.Stack(string(debug.Stack())))
		}
	}()
	job()
}

// Route resolves one update and queues its handler.
func (r *Router) Route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			r.routeMessage(ctx, up)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			r.routeCallback(ctx, up)
		}
	}
}

func (r *Router) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	req := &Request{
		Update:    up,
		Chat:      kit.ChatTarget{ChatID: msg.ChatID},
		FromID:    msg.FromID,
		Text:      text,
		MessageID: msg.ID,
	}

	if strings.HasPrefix(text, "/") {
		fields := strings.Fields(text)
		name := strings.TrimPrefix(fields[0], "/")
		if i := strings.IndexByte(name, '@'); i >= 0 {
			name = name[:i]
		}
		r.mu.RLock()
		cmd, ok := r.byName[strings.ToLower(name)]
		r.mu.RUnlock()
		if !ok {
			r.dispatchFallback(ctx, req)
			return
		}
		if cmd.Access == AccessOwnerOnly && !r.isOwner(msg.FromID) {
			return
		}
		req.Command = cmd.Name
		req.Args = fields[1:]
		r.enqueue(ctx, req, cmd.Handle, cmd.Timeout)
		return
	}

	r.mu.RLock()
	h, ok := r.texts[text]
	r.mu.RUnlock()
	if ok {
		req.Command = "text:" + text
		r.enqueue(ctx, req, h, 0)
		return
	}
	r.dispatchFallback(ctx, req)
}

func (r *Router) dispatchFallback(ctx context.Context, req *Request) {
	r.mu.RLock()
	h := r.fallback
	r.mu.RUnlock()
	if h == nil {
		return
	}
	req.Command = "text"
	r.enqueue(ctx, req, h, 0)
}

func (r *Router) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	scope, action, payload := tgui.ParseData(cb.Data)

	r.mu.RLock()
	route, ok := r.callbacks[scope+":"+action]
	r.mu.RUnlock()
	if !ok {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	if route.Access == AccessOwnerOnly && !r.isOwner(cb.FromID) {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "forbidden")
		return
	}
	req := &Request{
		Update:    up,
		Chat:      kit.ChatTarget{ChatID: cb.ChatID},
		FromID:    cb.FromID,
		Command:   "cb:" + scope + ":" + action,
		Payload:   payload,
		MessageID: cb.MessageID,
	}
	h := func(c context.Context, req *Request) error {
		err := route.Handle(c, req)
		// Stop the client's loading indicator.
		_ = r.adapter.AnswerCallback(c, cb.ID, "")
		return err
	}
	r.enqueue(ctx, req, h, route.Timeout)
}

func (r *Router) enqueue(ctx context.Context, req *Request, h HandlerFunc, timeout time.Duration) {
	r.mu.RLock()
	onErr := r.onErr
	if timeout <= 0 {
		timeout = r.timeout
	}
	r.mu.RUnlock()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	req.ReqID = uuid.NewString()
	req.Adapter = r.adapter
	req.Logger = r.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("chat_id", req.Chat.ChatID),
		logx.Int64("from_id", req.FromID),
	)

	final := Chain(h,
		MWErrorReply(onErr),
		MWRequestLog(),
		MWPanicRecover(),
		MWTimeout(timeout),
	)
	select {
	case r.jobs <- func() { _ = final(ctx, req) }:
	default:
		r.log.Warn("job queue full, update dropped", logx.String("cmd", req.Command))
	}
}
