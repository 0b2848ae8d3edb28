// Package-level dispatch for streaming lifecycle hooks: register handlers
// per event type, fire them with bounded concurrency, never let a slow or
// failing hook stall the broadcast/pacer goroutines that trigger it.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// HookManager dispatches lifecycle events to registered hooks. Dispatch is
// fire-and-forget from the caller's perspective: TriggerEvent never blocks;
// each hook runs on its own goroutine, which waits for a slot in the
// concurrency semaphore before executing.
type HookManager struct {
	mu    sync.RWMutex
	hooks map[EventType][]Hook

	sem chan struct{} // bounds concurrent Execute calls
	wg  sync.WaitGroup

	logger *slog.Logger
}

// NewHookManager creates a manager with the given config. A nil logger
// falls back to slog.Default.
func NewHookManager(config HookConfig, logger *slog.Logger) *HookManager {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := time.ParseDuration(config.Timeout); err != nil {
		logger.Warn("invalid hook timeout, using default", "timeout", config.Timeout, "error", err)
	}
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	return &HookManager{
		hooks:  make(map[EventType][]Hook),
		sem:    make(chan struct{}, concurrency),
		logger: logger,
	}
}

// BuildManager parses event_type=target assignment strings (as accepted by
// the server CLI's -hook-script/-hook-webhook flags) and returns a manager
// with every well-formed hook registered, each using timeout as its
// execution timeout (30s if timeout is not a positive duration). Malformed
// assignments are logged and skipped rather than rejected outright, so one
// bad flag doesn't prevent the stream from starting.
func BuildManager(scripts, webhooks []string, timeout string, concurrency int, logger *slog.Logger) *HookManager {
	manager := NewHookManager(HookConfig{Timeout: timeout, Concurrency: concurrency}, logger)
	hookTimeout := 30 * time.Second
	if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
		hookTimeout = d
	}

	for i, assignment := range scripts {
		eventType, target, ok := splitAssignment(assignment)
		if !ok {
			manager.logger.Warn("invalid shell hook format, skipping", "value", assignment)
			continue
		}
		h := NewShellHook(fmt.Sprintf("shell_%d", i), target, hookTimeout)
		if err := manager.RegisterHook(eventType, h); err != nil {
			manager.logger.Error("failed to register shell hook", "error", err)
		}
	}
	for i, assignment := range webhooks {
		eventType, target, ok := splitAssignment(assignment)
		if !ok {
			manager.logger.Warn("invalid webhook hook format, skipping", "value", assignment)
			continue
		}
		h := NewWebhookHook(fmt.Sprintf("webhook_%d", i), target, hookTimeout)
		if err := manager.RegisterHook(eventType, h); err != nil {
			manager.logger.Error("failed to register webhook hook", "error", err)
		}
	}
	return manager
}

func splitAssignment(s string) (EventType, string, bool) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return EventType(parts[0]), parts[1], true
}

// RegisterHook adds hook to the handler list for eventType.
func (hm *HookManager) RegisterHook(eventType EventType, hook Hook) error {
	if hook == nil {
		return fmt.Errorf("cannot register nil hook")
	}
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.hooks[eventType] = append(hm.hooks[eventType], hook)
	hm.logger.Info("hook registered", "event_type", eventType, "hook_type", hook.Type(), "hook_id", hook.ID())
	return nil
}

// TriggerEvent fires every hook registered for event.Type on its own
// goroutine, gated by the manager's concurrency semaphore. It is safe to
// call on a nil *HookManager (no-op), so callers that never configured
// hooks don't need to guard every call site.
func (hm *HookManager) TriggerEvent(ctx context.Context, event Event) {
	if hm == nil {
		return
	}
	hm.mu.RLock()
	targets := append([]Hook(nil), hm.hooks[event.Type]...)
	hm.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	hm.logger.Debug("triggering event", "event_type", event.Type, "hook_count", len(targets), "event", event.String())
	for _, h := range targets {
		hm.wg.Add(1)
		go hm.run(ctx, h, event)
	}
}

func (hm *HookManager) run(ctx context.Context, h Hook, event Event) {
	defer hm.wg.Done()
	hm.sem <- struct{}{}
	defer func() { <-hm.sem }()

	start := time.Now()
	err := h.Execute(ctx, event)
	elapsed := time.Since(start)
	if err != nil {
		hm.logger.Error("hook execution failed", "hook_type", h.Type(), "hook_id", h.ID(),
			"event_type", event.Type, "duration_ms", elapsed.Milliseconds(), "error", err)
		return
	}
	hm.logger.Debug("hook executed", "hook_type", h.Type(), "hook_id", h.ID(),
		"event_type", event.Type, "duration_ms", elapsed.Milliseconds())
}

// Close waits for in-flight hook executions to finish. Safe to call on nil.
func (hm *HookManager) Close() error {
	if hm == nil {
		return nil
	}
	hm.wg.Wait()
	hm.logger.Info("hook manager closed")
	return nil
}
