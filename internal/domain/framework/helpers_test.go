package framework_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/codecache"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/framework"
	"github.com/GriffinCanCode/AgentOS/platform/internal/testutil"
)

type fixture struct {
	dir     string
	cache   *codecache.Cache
	catalog *framework.Catalog
	loader  *framework.Loader
	logs    *observer.ObservedLogs
	events  *testutil.Recorder
}

func newFixture(t *testing.T, mutate ...func(*framework.Options)) *fixture {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	cache, err := codecache.New(filepath.Join(t.TempDir(), "cache"), logger)
	require.NoError(t, err)

	catalog := framework.NewCatalog()
	opts := framework.Options{Cache: cache, Libraries: catalog, Logger: logger}
	for _, fn := range mutate {
		fn(&opts)
	}

	loader, err := framework.NewLoader(opts)
	require.NoError(t, err)
	t.Cleanup(func() { loader.Close() })

	events := &testutil.Recorder{}
	loader.AddBundleListener(events.Bundle)

	return &fixture{
		dir:     t.TempDir(),
		cache:   cache,
		catalog: catalog,
		loader:  loader,
		logs:    logs,
		events:  events,
	}
}

func (f *fixture) load(t *testing.T, b testutil.Bundle) *framework.Bundle {
	t.Helper()
	bundle, err := f.loader.LoadBundlePath(testutil.WriteBundle(t, f.dir, b))
	require.NoError(t, err)
	return bundle
}

// activated declares a bundle whose activator lives in its own library.
func (f *fixture) activated(name string, act framework.Activator, requires ...string) testutil.Bundle {
	f.catalog.Register(name, "Activator", func() any { return act })
	return testutil.Bundle{
		Name:      name,
		Requires:  requires,
		Activator: "Activator",
		Libraries: []string{name},
	}
}

// eventsOf returns the recorded bundle events of one type.
func (f *fixture) eventsOf(eventType framework.BundleEventType) []string {
	var out []string
	for _, e := range f.events.BundleEvents() {
		if strings.HasPrefix(e, eventType.String()+" ") {
			out = append(out, strings.TrimPrefix(e, eventType.String()+" "))
		}
	}
	return out
}
