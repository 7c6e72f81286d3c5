package extension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(elements []*ConfigurationElement) []string {
	out := make([]string, 0, len(elements))
	for _, e := range elements {
		id, _ := e.GetAttribute("id")
		if id == "" {
			id = e.GetName()
		}
		out = append(out, id)
	}
	return out
}

func TestServiceSelect(t *testing.T) {
	s, _ := newService(t, nil)
	addAll(t, s, contributions, "core", "feature")

	tests := []struct {
		expr string
		want []string
	}{
		{"/editor", []string{"txt", "md", "broken"}},
		{"//editor[@class]", []string{"txt", "md"}},
		{"//editor[@default='true']", []string{"txt"}},
		{"//editor[extension-pattern='*.log']", []string{"txt"}},
		{"//extension-pattern", []string{"extension-pattern", "extension-pattern"}},
		{"//editor[last()]", []string{"broken"}},
		{"//editor/@id", []string{"txt", "md", "broken"}},
		{"//nothing", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := s.Select("core.editors", tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	_, err := s.Select("core.editors", "//editor[")
	assert.ErrorIs(t, err, ErrInvalidXPath)

	_, err = s.Select("unknown.point", "//editor")
	assert.ErrorIs(t, err, ErrUnknownExtensionPoint)
}

func TestElementSelectAndEvaluate(t *testing.T) {
	s, _ := newService(t, nil)
	addAll(t, s, contributions, "core")
	editor := s.GetConfigurationElementsFor("core.editors")[0]

	patterns, err := editor.Select("extension-pattern")
	require.NoError(t, err)
	require.Len(t, patterns, 2)
	assert.Equal(t, "*.txt", patterns[0].GetValue())

	parent, err := patterns[1].Select("..")
	require.NoError(t, err)
	assert.Equal(t, []*ConfigurationElement{editor}, parent)

	count, err := editor.Evaluate("count(extension-pattern)")
	require.NoError(t, err)
	assert.Equal(t, float64(2), count)

	class, err := editor.Evaluate("string(@class)")
	require.NoError(t, err)
	assert.Equal(t, "TextEditor", class)

	nodes, err := editor.Evaluate("//editor")
	require.NoError(t, err)
	assert.Equal(t, []*ConfigurationElement{editor}, nodes)
}

func TestElementQueriesStayInsideExtension(t *testing.T) {
	s, _ := newService(t, nil)
	addAll(t, s, map[string]string{"ui": `<plugin>
  <extension-point id="views"/>
  <extension point="views" id="left">
    <View ID="Explorer"><Toolbar/></View>
  </extension>
  <extension point="views" id="right">
    <View ID="Outline"><![CDATA[a < b]]></View>
  </extension>
</plugin>`}, "ui")

	elements := s.GetConfigurationElementsFor("ui.views")
	require.Len(t, elements, 2)

	// Element and attribute names keep their case
	explorer := elements[0]
	assert.Equal(t, "View", explorer.GetName())
	id, ok := explorer.GetAttribute("ID")
	assert.True(t, ok)
	assert.Equal(t, "Explorer", id)
	assert.Len(t, explorer.GetChildren("Toolbar"), 1)
	assert.Equal(t, "a < b", elements[1].GetValue())

	views, err := explorer.Select("//View")
	require.NoError(t, err)
	assert.Equal(t, []*ConfigurationElement{explorer}, views)

	views, err = s.Select("ui.views", "//View")
	require.NoError(t, err)
	assert.Equal(t, elements, views)

	outline, err := s.Select("ui.views", "/View[@ID='Outline']")
	require.NoError(t, err)
	assert.Equal(t, []*ConfigurationElement{elements[1]}, outline)
}
