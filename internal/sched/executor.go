package sched

import (
	"context"
	"fmt"
	"time"

	"lockstep/internal/protocol"
	"lockstep/internal/world"
)

// Mutation is a deferred world-state change. Executors may run in parallel,
// but mutations are applied only by the scheduler's single-threaded
// result-application step, in deterministic order.
type Mutation func(st *world.State) error

// Executor is one category capability. Execute computes the outcome and
// returns the mutation to apply; it must not touch world state directly.
type Executor interface {
	Category() string
	Execute(ctx context.Context, act Action) (Mutation, error)
}

// execError carries a protocol code alongside the message.
type execError struct {
	code string
	msg  string
}

func (e *execError) Error() string { return e.msg }

func execErrorf(code, format string, args ...any) error {
	return &execError{code: code, msg: fmt.Sprintf(format, args...)}
}

func errCode(err error) string {
	if ee, ok := err.(*execError); ok {
		return ee.code
	}
	return protocol.ErrInternal
}

func validateExecutors(executors map[string]Executor) error {
	return validateDispatchMap("executors", executors, supportedCategories)
}

func validateDispatchMap[T any](name string, handlers map[string]T, supported []string) error {
	allowed := make(map[string]struct{}, len(supported))
	for _, k := range supported {
		if k == "" {
			return fmt.Errorf("%s: empty supported key", name)
		}
		if _, ok := allowed[k]; ok {
			return fmt.Errorf("%s: duplicate supported key %q", name, k)
		}
		allowed[k] = struct{}{}
	}
	if len(handlers) != len(allowed) {
		return fmt.Errorf("%s size mismatch: got=%d want=%d", name, len(handlers), len(allowed))
	}
	for k := range handlers {
		if _, ok := allowed[k]; !ok {
			return fmt.Errorf("%s has unsupported key %q", name, k)
		}
	}
	for k := range allowed {
		if _, ok := handlers[k]; !ok {
			return fmt.Errorf("%s missing key %q", name, k)
		}
	}
	return nil
}

// runExecutor bounds one execution by timeout and isolates panics. A timeout
// or panic fails the action, never the tick.
func runExecutor(ctx context.Context, exec Executor, act Action, timeout time.Duration) (Mutation, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		mut Mutation
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: execErrorf(protocol.ErrInternal, "executor panic: %v", r)}
			}
		}()
		mut, err := exec.Execute(ctx, act)
		done <- outcome{mut: mut, err: err}
	}()

	select {
	case out := <-done:
		return out.mut, out.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, execErrorf(protocol.ErrTimeout, "%s executor exceeded %s", act.Category, timeout)
		}
		return nil, execErrorf(protocol.ErrInternal, "execution canceled")
	}
}
