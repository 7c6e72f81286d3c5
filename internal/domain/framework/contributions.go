package framework

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ReadAllContributions reads the contribution file of every loaded bundle,
// dependencies first. Failures are logged and joined.
func (l *Loader) ReadAllContributions() error {
	visited := make(map[*Bundle]bool)

	var errs []error
	for _, b := range l.Bundles() {
		if err := l.readContributions(b, visited); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReadContributions reads the contribution file of b after those of its
// dependencies. A bundle is read at most once.
func (l *Loader) ReadContributions(b *Bundle) error {
	return l.readContributions(b, make(map[*Bundle]bool))
}

// ReadDependentContributions reads the contribution files of the bundles b
// requires.
func (l *Loader) ReadDependentContributions(b *Bundle) error {
	return l.readDependentContributions(b, map[*Bundle]bool{b: true})
}

func (l *Loader) readDependentContributions(b *Bundle, visited map[*Bundle]bool) error {
	var errs []error
	for _, name := range b.Dependencies() {
		dep := l.FindBundle(name)
		if dep == nil {
			continue
		}
		if err := l.readContributions(dep, visited); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Loader) readContributions(b *Bundle, visited map[*Bundle]bool) error {
	if visited[b] {
		return nil
	}
	visited[b] = true

	name := b.SymbolicName()
	if l.extensions.HasContribution(name) {
		return nil
	}

	depErr := l.readDependentContributions(b, visited)

	if !b.HasResource(l.contributionFile) {
		return depErr
	}

	rc, err := b.GetResource(l.contributionFile)
	if err != nil {
		return errors.Join(depErr, fmt.Errorf("bundle %s: %w", name, err))
	}
	defer rc.Close()

	if err := l.extensions.AddContribution(rc, name); err != nil {
		l.logger.Warn("Failed to read contributions",
			zap.String("bundle", name),
			zap.String("file", l.contributionFile),
			zap.Error(err))
		return errors.Join(depErr, fmt.Errorf("bundle %s: %w", name, err))
	}
	return depErr
}
