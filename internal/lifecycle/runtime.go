package lifecycle

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Component is anything with a managed lifetime: the restriction sweep, the
// metrics endpoint, the rules scheduler.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runtime starts components in registration order and stops them in reverse,
// so consumers go down before the things they depend on.
type Runtime struct {
	components []Component
	logger     *log.Entry
}

func NewRuntime(components ...Component) *Runtime {
	return &Runtime{
		components: components,
		logger:     log.WithField("context", "lifecycle"),
	}
}

func (r *Runtime) Register(component Component) {
	if component == nil {
		return
	}
	r.components = append(r.components, component)
}

// Start brings every component up. A failure unwinds the components already
// started before the error is returned.
func (r *Runtime) Start(ctx context.Context) error {
	for i, component := range r.components {
		if component == nil {
			continue
		}
		if err := component.Start(ctx); err != nil {
			r.logger.WithField("component", i).Error("cant start component, unwinding")
			_ = r.stop(ctx, i)
			return errors.WithMessage(err, "cant start component")
		}
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	return r.stop(ctx, len(r.components))
}

// stop shuts down components[:n] in reverse order. Every component gets its
// Stop call even when an earlier one fails; the first failure is returned.
func (r *Runtime) stop(ctx context.Context, n int) error {
	var stopErr error
	for i := n - 1; i >= 0; i-- {
		component := r.components[i]
		if component == nil {
			continue
		}
		if err := component.Stop(ctx); err != nil {
			r.logger.WithFields(log.Fields{"component": i, "error": err.Error()}).Error("cant stop component")
			if stopErr == nil {
				stopErr = errors.WithMessage(err, "cant stop component")
			}
		}
	}
	return stopErr
}
