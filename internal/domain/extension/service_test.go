package extension

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const coreContribution = `<?xml version="1.0" encoding="UTF-8"?>
<plugin>
  <extension-point id="editors" name="Editors" schema="schema/editors.exsd"/>
  <extension-point id="org.example.shared.views" name="Views"/>
  <extension point="editors" id="builtin">
    <editor id="txt" class="TextEditor" default="true">
      Plain text
      <extension-pattern>*.txt</extension-pattern>
      <extension-pattern>*.log</extension-pattern>
    </editor>
  </extension>
</plugin>`

const featureContribution = `<plugin>
  <extension point="core.editors" id="markdown" name="Markdown">
    <editor id="md" class="MarkdownEditor" default="no"/>
    <editor id="broken"/>
  </extension>
  <extension point="org.example.shared.views">
    <view id="outline"/>
  </extension>
</plugin>`

type fakeLoader struct {
	calls []string
	fail  error
}

type TextEditor struct{ bundle string }

func (l *fakeLoader) CreateInstance(bundle, class string) (any, error) {
	l.calls = append(l.calls, bundle+"/"+class)
	if l.fail != nil {
		return nil, l.fail
	}
	return &TextEditor{bundle: bundle}, nil
}

func newService(t *testing.T, loader ClassLoader) (*Service, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return NewService(loader, zap.New(core)), logs
}

func addAll(t *testing.T, s *Service, contributions map[string]string, order ...string) {
	t.Helper()
	for _, contributor := range order {
		require.NoError(t, s.AddContribution(strings.NewReader(contributions[contributor]), contributor))
	}
}

var contributions = map[string]string{
	"core":    coreContribution,
	"feature": featureContribution,
}

func TestAddContribution(t *testing.T) {
	s, _ := newService(t, nil)
	addAll(t, s, contributions, "core", "feature")

	p := s.GetExtensionPoint("core.editors")
	require.NotNil(t, p)
	assert.Equal(t, "editors", p.SimpleID())
	assert.Equal(t, "Editors", p.Label())
	assert.Equal(t, "schema/editors.exsd", p.Schema())
	assert.Equal(t, "core", p.Contributor())

	// Dotted ids are taken as they are
	assert.NotNil(t, s.GetExtensionPoint("org.example.shared.views"))
	assert.Nil(t, s.GetExtensionPoint("core.org.example.shared.views"))

	ext := s.GetExtension("feature.markdown")
	require.NotNil(t, ext)
	assert.Equal(t, "Markdown", ext.Label())
	assert.Equal(t, "core.editors", ext.ExtensionPointID())
	assert.Equal(t, "feature", ext.Contributor())

	elements := s.GetConfigurationElementsFor("core.editors")
	require.Len(t, elements, 3)
	var ids []string
	for _, e := range elements {
		id, _ := e.GetAttribute("id")
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"txt", "md", "broken"}, ids)

	assert.Len(t, s.GetExtensions("feature"), 2)
	assert.Len(t, s.GetExtensionPoints("core"), 2)
	assert.Empty(t, s.GetExtensionPoints("feature"))
	assert.Equal(t, []string{"core", "feature"}, s.Contributors())

	all := s.AllExtensionPoints()
	require.Len(t, all, 2)
	assert.Equal(t, "core.editors", all[0].UniqueID())

	extensions, err := s.Extensions("core.editors")
	require.NoError(t, err)
	assert.Len(t, extensions, 2)
	_, err = s.Extensions("nope")
	assert.ErrorIs(t, err, ErrUnknownExtensionPoint)
}

func TestContributionOrderDoesNotMatter(t *testing.T) {
	s, logs := newService(t, nil)
	addAll(t, s, contributions, "feature")

	// The point is unknown so far: nothing is visible
	assert.Nil(t, s.GetExtension("feature.markdown"))
	assert.Empty(t, s.GetExtensions("feature"))
	assert.Len(t, s.PendingExtensions(), 2)
	assert.Equal(t, 2, logs.FilterMessage("Extension point not declared yet, holding extension").Len())

	addAll(t, s, contributions, "core")

	assert.Empty(t, s.PendingExtensions())
	assert.NotNil(t, s.GetExtension("feature.markdown"))
	elements := s.GetConfigurationElementsFor("core.editors")
	require.Len(t, elements, 3)

	// Pending extensions come before those read with the declaring bundle
	id, _ := elements[0].GetAttribute("id")
	assert.Equal(t, "md", id)
}

func TestUndeclaredPointIsNeverVisible(t *testing.T) {
	s, _ := newService(t, nil)
	err := s.AddContribution(strings.NewReader(`<plugin>
  <extension point="ghost" id="lost"><item/></extension>
</plugin>`), "orphan")
	require.NoError(t, err)

	assert.Nil(t, s.GetExtension("orphan.lost"))
	assert.Nil(t, s.GetConfigurationElementsFor("orphan.ghost"))
	for _, p := range s.AllExtensionPoints() {
		assert.Empty(t, s.GetConfigurationElementsFor(p.UniqueID()))
	}
	require.Len(t, s.PendingExtensions(), 1)
	assert.Equal(t, "orphan.ghost", s.PendingExtensions()[0].ExtensionPointID())
}

func TestContributionIsReadOnce(t *testing.T) {
	s, _ := newService(t, nil)
	addAll(t, s, contributions, "core", "core")

	assert.True(t, s.HasContribution("core"))
	assert.False(t, s.HasContribution("feature"))
	assert.Len(t, s.GetConfigurationElementsFor("core.editors"), 1)
}

func TestMalformedContribution(t *testing.T) {
	s, _ := newService(t, nil)

	err := s.AddContribution(strings.NewReader("<plugin><extension"), "bad")
	assert.Error(t, err)
	assert.False(t, s.HasContribution("bad"))

	err = s.AddContribution(strings.NewReader(""), "empty")
	assert.Error(t, err)

	assert.Error(t, s.AddContribution(strings.NewReader("<plugin/>"), ""))
}

func TestInvalidElementsAreSkipped(t *testing.T) {
	s, logs := newService(t, nil)
	err := s.AddContribution(strings.NewReader(`<plugin>
  <extension-point name="no id"/>
  <extension-point id="p"/>
  <extension-point id="p"/>
  <extension id="noPoint"/>
  <extension point="p" id="dup"/>
  <extension point="p" id="dup"/>
</plugin>`), "b")
	require.NoError(t, err)

	assert.Len(t, s.AllExtensionPoints(), 1)
	ext, err := s.Extensions("b.p")
	require.NoError(t, err)
	assert.Len(t, ext, 1)
	assert.Equal(t, 1, logs.FilterMessage("Skipping extension point without id").Len())
	assert.Equal(t, 1, logs.FilterMessage("Skipping duplicate extension point").Len())
	assert.Equal(t, 1, logs.FilterMessage("Skipping extension without point attribute").Len())
	assert.Equal(t, 1, logs.FilterMessage("Skipping duplicate extension").Len())
}

func TestConfigurationElementAccessors(t *testing.T) {
	s, _ := newService(t, nil)
	addAll(t, s, contributions, "core", "feature")

	editor := s.GetConfigurationElementsFor("core.editors")[0]
	assert.Equal(t, "editor", editor.GetName())
	assert.Equal(t, "Plain text", editor.GetValue())
	assert.Equal(t, []string{"id", "class", "default"}, editor.AttributeNames())
	assert.Equal(t, "core", editor.Contributor())
	assert.Equal(t, "core.builtin", editor.Extension().UniqueID())
	assert.Nil(t, editor.Parent())

	value, ok := editor.GetBoolAttribute("default")
	assert.True(t, ok)
	assert.True(t, value)

	_, ok = s.GetConfigurationElementsFor("core.editors")[1].GetBoolAttribute("default")
	assert.False(t, ok, "'no' is not a boolean")

	missing := "unchanged"
	if v, ok := editor.GetAttribute("missing"); ok {
		missing = v
	}
	assert.Equal(t, "unchanged", missing)

	patterns := editor.GetChildren("extension-pattern")
	require.Len(t, patterns, 2)
	assert.Equal(t, "*.log", patterns[1].GetValue())
	assert.Equal(t, editor, patterns[0].Parent())
	assert.Len(t, editor.GetChildren(), 2)
	assert.Empty(t, editor.GetChildren("other"))
}

func TestCreateExecutableExtension(t *testing.T) {
	loader := &fakeLoader{}
	s, _ := newService(t, loader)
	addAll(t, s, contributions, "core", "feature")
	elements := s.GetConfigurationElementsFor("core.editors")

	obj, err := elements[1].CreateExecutableExtension("class")
	require.NoError(t, err)
	assert.Equal(t, "feature", obj.(*TextEditor).bundle)
	assert.Equal(t, []string{"feature/MarkdownEditor"}, loader.calls)

	typed, err := CreateExecutableExtension[*TextEditor](elements[0], "class")
	require.NoError(t, err)
	assert.Equal(t, "core", typed.bundle)

	_, err = CreateExecutableExtension[fmt.Stringer](elements[0], "class")
	assert.ErrorIs(t, err, ErrIncompatibleType)

	_, err = elements[2].CreateExecutableExtension("class")
	assert.ErrorIs(t, err, ErrMissingAttribute)

	loader.fail = errors.New("class not exported")
	_, err = elements[0].CreateExecutableExtension("class")
	assert.ErrorContains(t, err, "class not exported")
}

func TestCreateExecutableExtensionWithoutLoader(t *testing.T) {
	s, _ := newService(t, nil)
	addAll(t, s, contributions, "core")

	_, err := s.GetConfigurationElementsFor("core.editors")[0].CreateExecutableExtension("class")
	assert.ErrorIs(t, err, ErrNoClassLoader)

	s.SetClassLoader(&fakeLoader{})
	_, err = s.GetConfigurationElementsFor("core.editors")[0].CreateExecutableExtension("class")
	assert.NoError(t, err)
}

func TestStats(t *testing.T) {
	s, _ := newService(t, nil)
	addAll(t, s, contributions, "feature")

	stats := s.Stats()
	assert.Equal(t, 0, stats["extension_points"])
	assert.Equal(t, 2, stats["pending"])

	addAll(t, s, contributions, "core")
	stats = s.Stats()
	assert.Equal(t, 2, stats["extension_points"])
	assert.Equal(t, 3, stats["extensions"])
	assert.Equal(t, 0, stats["pending"])
	assert.Equal(t, 2, stats["contributors"])
}
