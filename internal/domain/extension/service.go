package extension

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/platform/internal/infrastructure/monitoring"
)

const (
	elemExtensionPoint = "extension-point"
	elemExtension      = "extension"
)

// ClassLoader instantiates a named class from a bundle.
type ClassLoader interface {
	CreateInstance(bundle, class string) (any, error)
}

// Service is the extension registry.
type Service struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics
	loader  ClassLoader

	mu          sync.RWMutex
	points      map[string]*ExtensionPoint
	extensions  map[string]*Extension
	contributed map[string]*contribution
	pending     map[string][]*Extension // undeclared point id -> waiting extensions
}

// contribution records what one bundle added.
type contribution struct {
	points     []*ExtensionPoint
	extensions []*Extension
}

// NewService creates an empty registry. loader may be nil if no executable
// extensions are created.
func NewService(loader ClassLoader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:      logger,
		loader:      loader,
		points:      make(map[string]*ExtensionPoint),
		extensions:  make(map[string]*Extension),
		contributed: make(map[string]*contribution),
		pending:     make(map[string][]*Extension),
	}
}

// WithMetrics adds metrics tracking to the service
func (s *Service) WithMetrics(metrics *monitoring.Metrics) *Service {
	s.metrics = metrics
	return s
}

// SetClassLoader replaces the loader used for executable extensions.
func (s *Service) SetClassLoader(loader ClassLoader) {
	s.mu.Lock()
	s.loader = loader
	s.mu.Unlock()
}

func (s *Service) classLoader() ClassLoader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loader
}

// qualify prefixes ids without a dot with the contributor's namespace.
func qualify(contributor, id string) string {
	if strings.Contains(id, ".") {
		return id
	}
	return contributor + "." + id
}

// HasContribution reports whether contributor's file was already read.
func (s *Service) HasContribution(contributor string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.contributed[contributor]
	return ok
}

// AddContribution reads a contribution document of contributor. A second
// contribution from the same bundle is ignored. Malformed XML is an error and
// leaves the registry unchanged; problems with single elements are logged and
// the element is skipped.
func (s *Service) AddContribution(r io.Reader, contributor string) error {
	if contributor == "" {
		return fmt.Errorf("contributor cannot be empty")
	}
	if s.HasContribution(contributor) {
		s.logger.Debug("Contribution already read", zap.String("bundle", contributor))
		return nil
	}

	root, err := parseDocument(r)
	if err != nil {
		s.metrics.RecordContribution(err)
		return fmt.Errorf("%s: %w", contributor, err)
	}

	s.mu.Lock()
	if _, ok := s.contributed[contributor]; ok {
		s.mu.Unlock()
		return nil
	}
	c := &contribution{}
	s.contributed[contributor] = c

	// Points first, so extensions in the same file can plug into them
	for _, n := range xmlquery.Find(root, elemExtensionPoint) {
		s.addPoint(c, n, contributor)
	}
	for _, n := range xmlquery.Find(root, elemExtension) {
		s.addExtension(c, n, contributor)
	}
	points, extensions, pending := s.countsLocked()
	s.mu.Unlock()

	s.metrics.RecordContribution(nil)
	s.metrics.SetExtensionCounts(points, extensions, pending)
	s.logger.Info("Contribution read",
		zap.String("bundle", contributor),
		zap.Int("extension_points", len(c.points)),
		zap.Int("extensions", len(c.extensions)))
	return nil
}

// addPoint declares an extension point. Callers hold s.mu.
func (s *Service) addPoint(c *contribution, n *xmlquery.Node, contributor string) {
	simpleID, _ := attr(n, "id")
	simpleID = strings.TrimSpace(simpleID)
	if simpleID == "" {
		s.logger.Warn("Skipping extension point without id", zap.String("bundle", contributor))
		return
	}

	uniqueID := qualify(contributor, simpleID)
	if existing, ok := s.points[uniqueID]; ok {
		s.logger.Warn("Skipping duplicate extension point",
			zap.String("extension_point", uniqueID),
			zap.String("bundle", contributor),
			zap.String("declared_by", existing.contributor))
		return
	}

	label, _ := attr(n, "name")
	schema, _ := attr(n, "schema")
	p := &ExtensionPoint{
		uniqueID:    uniqueID,
		simpleID:    simpleID,
		label:       label,
		schema:      schema,
		contributor: contributor,
	}
	s.points[uniqueID] = p
	c.points = append(c.points, p)

	if waiting := s.pending[uniqueID]; len(waiting) > 0 {
		p.extensions = append(p.extensions, waiting...)
		delete(s.pending, uniqueID)
		s.logger.Info("Attached pending extensions",
			zap.String("extension_point", uniqueID),
			zap.Int("count", len(waiting)))
	}
}

// addExtension builds an extension and attaches it to its point, or parks
// it until the point is declared. Callers hold s.mu.
func (s *Service) addExtension(c *contribution, n *xmlquery.Node, contributor string) {
	point, _ := attr(n, "point")
	point = strings.TrimSpace(point)
	if point == "" {
		s.logger.Warn("Skipping extension without point attribute", zap.String("bundle", contributor))
		return
	}

	simpleID, _ := attr(n, "id")
	simpleID = strings.TrimSpace(simpleID)
	label, _ := attr(n, "name")

	ext := &Extension{
		simpleID:    simpleID,
		label:       label,
		pointID:     qualify(contributor, point),
		contributor: contributor,
		service:     s,
	}
	if simpleID != "" {
		ext.uniqueID = qualify(contributor, simpleID)
		if _, dup := s.extensions[ext.uniqueID]; dup {
			s.logger.Warn("Skipping duplicate extension",
				zap.String("extension", ext.uniqueID),
				zap.String("bundle", contributor))
			return
		}
	}
	children := childElements(n)
	adopt(children)
	for _, child := range children {
		ext.elements = append(ext.elements, newElement(child, nil, ext))
	}

	if ext.uniqueID != "" {
		s.extensions[ext.uniqueID] = ext
	}
	c.extensions = append(c.extensions, ext)

	if p, ok := s.points[ext.pointID]; ok {
		p.extensions = append(p.extensions, ext)
		return
	}
	s.pending[ext.pointID] = append(s.pending[ext.pointID], ext)
	s.logger.Info("Extension point not declared yet, holding extension",
		zap.String("extension_point", ext.pointID),
		zap.String("extension", ext.uniqueID),
		zap.String("bundle", contributor))
}

func (s *Service) countsLocked() (points, extensions, pending int) {
	for _, p := range s.points {
		extensions += len(p.extensions)
	}
	for _, waiting := range s.pending {
		pending += len(waiting)
	}
	return len(s.points), extensions, pending
}

// GetConfigurationElementsFor flattens the top-level elements of every
// extension of a point, in the order the extensions were added.
func (s *Service) GetConfigurationElementsFor(pointID string) []*ConfigurationElement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.points[pointID]
	if !ok {
		return nil
	}
	var out []*ConfigurationElement
	for _, ext := range p.extensions {
		out = append(out, ext.elements...)
	}
	return out
}

// GetExtension returns an extension by qualified id. Extensions whose point
// is not declared are not returned.
func (s *Service) GetExtension(id string) *Extension {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ext, ok := s.extensions[id]
	if !ok {
		return nil
	}
	if _, declared := s.points[ext.pointID]; !declared {
		return nil
	}
	return ext
}

// GetExtensionPoint returns the point with the given unique id, or nil.
func (s *Service) GetExtensionPoint(id string) *ExtensionPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.points[id]
}

// Extensions returns the extensions attached to a point.
func (s *Service) Extensions(pointID string) ([]*Extension, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.points[pointID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExtensionPoint, pointID)
	}
	return append([]*Extension(nil), p.extensions...), nil
}

// GetExtensions returns the attached extensions contributed by a bundle.
func (s *Service) GetExtensions(contributor string) []*Extension {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contributed[contributor]
	if !ok {
		return nil
	}
	var out []*Extension
	for _, ext := range c.extensions {
		if _, declared := s.points[ext.pointID]; declared {
			out = append(out, ext)
		}
	}
	return out
}

// GetExtensionPoints returns the points declared by a bundle.
func (s *Service) GetExtensionPoints(contributor string) []*ExtensionPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contributed[contributor]
	if !ok {
		return nil
	}
	return append([]*ExtensionPoint(nil), c.points...)
}

// AllExtensionPoints returns every declared point sorted by id.
func (s *Service) AllExtensionPoints() []*ExtensionPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ExtensionPoint, 0, len(s.points))
	for _, p := range s.points {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].uniqueID < out[j].uniqueID })
	return out
}

// PendingExtensions returns extensions still waiting for their point,
// ordered by point id and then arrival.
func (s *Service) PendingExtensions() []*Extension {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*Extension
	for _, id := range ids {
		out = append(out, s.pending[id]...)
	}
	return out
}

// Contributors returns the sorted names of bundles whose contributions were
// read.
func (s *Service) Contributors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.contributed))
	for name := range s.contributed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns registry statistics
func (s *Service) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points, extensions, pending := s.countsLocked()
	return map[string]interface{}{
		"extension_points": points,
		"extensions":       extensions,
		"pending":          pending,
		"contributors":     len(s.contributed),
	}
}
