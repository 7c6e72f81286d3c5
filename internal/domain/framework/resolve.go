package framework

import (
	"errors"

	"go.uber.org/zap"
)

type mark int

const (
	white mark = iota
	grey
	black
)

// frame is one entry of the resolution worklist.
type frame struct {
	bundle *Bundle
	next   int // index of the next dependency to visit
}

// resolve resolves b and its whole dependency closure. Nothing changes state
// unless the closure is complete and acyclic.
func (l *Loader) resolve(b *Bundle) error {
	l.resolveMu.Lock()
	defer l.resolveMu.Unlock()

	if b.State() != Installed {
		return nil
	}

	order, err := l.resolutionOrder(b)
	if err != nil {
		l.logger.Warn("Bundle resolution failed", zap.String("bundle", b.SymbolicName()), zap.Error(err))
		return err
	}

	for _, dep := range order {
		if dep.State() != Installed {
			continue
		}
		dep.setState(Resolved)
		l.logger.Debug("Bundle resolved", zap.String("bundle", dep.SymbolicName()))
		l.emit(BundleResolved, dep)
	}
	return nil
}

// resolutionOrder walks the dependency graph below root depth-first with an
// explicit stack and returns the bundles that still need resolving,
// dependencies before dependents. Already resolved bundles are not entered.
func (l *Loader) resolutionOrder(root *Bundle) ([]*Bundle, error) {
	marks := map[*Bundle]mark{root: grey}
	stack := []*frame{{bundle: root}}
	var order []*Bundle

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		deps := top.bundle.Dependencies()

		if top.next == len(deps) {
			marks[top.bundle] = black
			order = append(order, top.bundle)
			stack = stack[:len(stack)-1]
			continue
		}

		name := deps[top.next]
		top.next++

		dep := l.FindBundle(name)
		if dep == nil {
			return nil, &ResolutionError{Bundle: root.SymbolicName(), Missing: name, Chain: chainOf(stack)}
		}
		if dep.State() >= Resolved {
			continue
		}

		switch marks[dep] {
		case black:
		case grey:
			return nil, &ResolutionError{Bundle: root.SymbolicName(), Cycle: cycleOf(stack, dep)}
		default:
			marks[dep] = grey
			stack = append(stack, &frame{bundle: dep})
		}
	}
	return order, nil
}

func chainOf(stack []*frame) []string {
	chain := make([]string, len(stack))
	for i, f := range stack {
		chain[i] = f.bundle.SymbolicName()
	}
	return chain
}

// cycleOf returns the path from dep back to itself along the stack.
func cycleOf(stack []*frame, dep *Bundle) []string {
	start := 0
	for i, f := range stack {
		if f.bundle == dep {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		cycle = append(cycle, f.bundle.SymbolicName())
	}
	return append(cycle, dep.SymbolicName())
}

// ResolveAllBundles resolves every loaded bundle in install order. A bundle
// that cannot be resolved is logged and left INSTALLED; the joined failures
// are returned.
func (l *Loader) ResolveAllBundles() error {
	var errs []error
	for _, b := range l.Bundles() {
		if err := b.Resolve(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
