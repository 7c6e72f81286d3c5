package framework_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/framework"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/service"
	"github.com/GriffinCanCode/AgentOS/platform/internal/testutil"
)

type Greeter interface {
	Greet(name string) string
}

type greeter struct{ prefix string }

func (g greeter) Greet(name string) string { return g.prefix + name }

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(call string) func(mock.Arguments) {
	return func(mock.Arguments) {
		c.mu.Lock()
		c.calls = append(c.calls, call)
		c.mu.Unlock()
	}
}

func (c *callLog) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func TestStartAllBundlesStartsDependenciesFirst(t *testing.T) {
	f := newFixture(t)
	calls := &callLog{}

	core := testutil.NewMockActivator(t)
	core.On("Start", mock.Anything).Run(calls.add("core")).Return(nil).Once()
	feature := testutil.NewMockActivator(t)
	feature.On("Start", mock.Anything).Run(calls.add("feature")).Return(nil).Once()

	// Installed in reverse so install order alone would start feature first
	featureBundle := f.load(t, f.activated("org.example.feature", feature, "org.example.core"))
	coreBundle := f.load(t, f.activated("org.example.core", core))

	require.NoError(t, f.loader.ResolveAllBundles())
	require.NoError(t, f.loader.StartAllBundles())

	assert.Equal(t, []string{"core", "feature"}, calls.get())
	assert.True(t, coreBundle.IsActive())
	assert.True(t, featureBundle.IsActive())
	assert.Equal(t, []string{"org.example.core", "org.example.feature"}, f.eventsOf(framework.BundleStarted))

	// A second start is a no-op
	require.NoError(t, f.loader.StartBundle(coreBundle))
}

func TestStartRequiresResolvedState(t *testing.T) {
	f := newFixture(t)
	act := testutil.NewMockActivator(t)
	b := f.load(t, f.activated("org.example.core", act))

	err := b.Start()
	require.Error(t, err)
	assert.True(t, errors.Is(err, framework.ErrInvalidState))

	var stateErr *framework.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, framework.Installed, stateErr.State)
	act.AssertNotCalled(t, "Start", mock.Anything)
}

func TestActivatorReceivesContext(t *testing.T) {
	f := newFixture(t)
	var seen *framework.Context

	act := framework.ActivatorFuncs{OnStart: func(ctx *framework.Context) error {
		seen = ctx
		_, err := service.Register[Greeter](ctx.Services(), ctx, greeter{prefix: "hello "}, nil)
		return err
	}}
	b := f.load(t, f.activated("org.example.core", act))
	require.NoError(t, b.Resolve())
	require.NoError(t, b.Start())

	require.NotNil(t, seen)
	assert.Same(t, seen, f.loader.GetContextForBundle(b))
	assert.Equal(t, "org.example.core", seen.SymbolicName())
	assert.Equal(t, "ACTIVE", seen.Bundle().State)
	assert.NotEmpty(t, seen.Property(framework.PropFrameworkUUID))

	info, ok := seen.FindBundle(framework.SystemBundleName)
	require.True(t, ok)
	assert.True(t, info.System)

	g, ref, err := service.Get[Greeter](f.loader.Registry(), seen)
	require.NoError(t, err)
	assert.Equal(t, "hello world", g.Greet("world"))
	assert.Equal(t, "org.example.core", ref.Bundle())
}

func TestFailedStartRevertsAndCleansUp(t *testing.T) {
	f := newFixture(t)

	act := framework.ActivatorFuncs{OnStart: func(ctx *framework.Context) error {
		if _, err := service.Register[Greeter](ctx.Services(), ctx, greeter{}, nil); err != nil {
			return err
		}
		ctx.AddBundleListener(func(framework.BundleEvent) {})
		return errors.New("database unreachable")
	}}
	b := f.load(t, f.activated("org.example.core", act))
	require.NoError(t, b.Resolve())

	err := b.Start()
	require.Error(t, err)
	assert.True(t, errors.Is(err, framework.ErrActivatorFailed))
	assert.Contains(t, err.Error(), "database unreachable")

	assert.Equal(t, framework.Resolved, b.State())
	assert.Nil(t, f.loader.Registry().GetServiceReference(f.loader.GetContextForBundle(b), service.NameOf[Greeter]()))
	assert.Empty(t, f.eventsOf(framework.BundleStarted))
	assert.Equal(t, 1, f.logs.FilterMessage("Bundle failed to start").Len())
}

func TestPanickingActivatorIsRecovered(t *testing.T) {
	f := newFixture(t)
	act := framework.ActivatorFuncs{OnStart: func(*framework.Context) error { panic("boom") }}
	b := f.load(t, f.activated("org.example.core", act))
	require.NoError(t, b.Resolve())

	var err error
	assert.NotPanics(t, func() { err = b.Start() })
	require.Error(t, err)
	assert.True(t, errors.Is(err, framework.ErrActivatorFailed))
	assert.Equal(t, framework.Resolved, b.State())
}

func TestDependentFailsWhenDependencyFails(t *testing.T) {
	f := newFixture(t)

	core := testutil.NewMockActivator(t)
	core.On("Start", mock.Anything).Return(errors.New("no config")).Once()
	feature := testutil.NewMockActivator(t)

	f.load(t, f.activated("org.example.core", core))
	featureBundle := f.load(t, f.activated("org.example.feature", feature, "org.example.core"))
	require.NoError(t, featureBundle.Resolve())

	err := featureBundle.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "org.example.core")
	assert.Equal(t, framework.Resolved, featureBundle.State())
	feature.AssertNotCalled(t, "Start", mock.Anything)
}

func TestFailedDependencyStartsOncePerPass(t *testing.T) {
	f := newFixture(t)

	core := testutil.NewMockActivator(t)
	core.On("Start", mock.Anything).Return(errors.New("no config")).Once()
	a := testutil.NewMockActivator(t)
	b := testutil.NewMockActivator(t)

	aBundle := f.load(t, f.activated("org.example.a", a, "org.example.core"))
	bBundle := f.load(t, f.activated("org.example.b", b, "org.example.core"))
	coreBundle := f.load(t, f.activated("org.example.core", core))

	require.NoError(t, f.loader.ResolveAllBundles())
	err := f.loader.StartAllBundles()
	require.Error(t, err)
	assert.True(t, errors.Is(err, framework.ErrActivatorFailed))

	core.AssertNumberOfCalls(t, "Start", 1)
	a.AssertNotCalled(t, "Start", mock.Anything)
	b.AssertNotCalled(t, "Start", mock.Anything)
	for _, bundle := range []*framework.Bundle{aBundle, bBundle, coreBundle} {
		assert.Equal(t, framework.Resolved, bundle.State(), bundle.SymbolicName())
	}
	assert.Equal(t, []string{"org.example.core"}, f.eventsOf(framework.BundleStarting))
	assert.Equal(t, 1, f.logs.FilterMessage("Bundle failed to start").Len())

	// A later call is a new attempt
	core.On("Start", mock.Anything).Return(nil).Once()
	a.On("Start", mock.Anything).Return(nil).Once()
	require.NoError(t, aBundle.Start())
	assert.True(t, coreBundle.IsActive())
	assert.True(t, aBundle.IsActive())
}

func TestLifecycleCallsFromActivatorAreRejected(t *testing.T) {
	f := newFixture(t)

	other := f.load(t, f.activated("org.example.other", framework.ActivatorFuncs{}))
	var startErr, stopErr error
	var stats map[string]interface{}
	act := framework.ActivatorFuncs{
		OnStart: func(*framework.Context) error {
			startErr = f.loader.StartBundle(other)
			stats = f.loader.Stats()
			return nil
		},
		OnStop: func(*framework.Context) error {
			stopErr = f.loader.StopBundle(other)
			return nil
		},
	}
	b := f.load(t, f.activated("org.example.core", act))
	require.NoError(t, f.loader.ResolveAllBundles())

	require.NoError(t, b.Start())
	require.Error(t, startErr)
	assert.True(t, errors.Is(startErr, framework.ErrLifecycleBusy))
	assert.Contains(t, startErr.Error(), "org.example.core")
	assert.Equal(t, framework.Resolved, other.State())
	assert.Equal(t, 3, stats["bundles"])

	require.NoError(t, other.Start())
	require.NoError(t, b.Stop())
	require.Error(t, stopErr)
	assert.True(t, errors.Is(stopErr, framework.ErrLifecycleBusy))
	assert.True(t, other.IsActive())

	// The guard is cleared once the hook returns
	require.NoError(t, other.Stop())
	assert.Equal(t, framework.Resolved, other.State())
}

func TestLazyBundlesStartOnlyAsDependencies(t *testing.T) {
	f := newFixture(t)

	lazyAct := testutil.NewMockActivator(t)
	lazyBundle := f.activated("org.example.lazy", lazyAct)
	lazyBundle.Lazy = true
	lazy := f.load(t, lazyBundle)

	require.NoError(t, f.loader.ResolveAllBundles())
	require.NoError(t, f.loader.StartAllBundles())
	assert.Equal(t, framework.Resolved, lazy.State())

	lazyAct.On("Start", mock.Anything).Return(nil).Once()
	user := f.load(t, testutil.Bundle{Name: "org.example.user", Requires: []string{"org.example.lazy"}})
	require.NoError(t, user.Resolve())
	require.NoError(t, user.Start())

	assert.True(t, lazy.IsActive())
	assert.True(t, user.IsActive())
}

func TestStopStopsDependentsFirst(t *testing.T) {
	f := newFixture(t)
	calls := &callLog{}

	core := testutil.NewMockActivator(t)
	core.On("Start", mock.Anything).Return(nil)
	core.On("Stop", mock.Anything).Run(calls.add("core")).Return(nil).Once()
	feature := testutil.NewMockActivator(t)
	feature.On("Start", mock.Anything).Return(nil)
	feature.On("Stop", mock.Anything).Run(calls.add("feature")).Return(nil).Once()

	coreBundle := f.load(t, f.activated("org.example.core", core))
	featureBundle := f.load(t, f.activated("org.example.feature", feature, "org.example.core"))
	require.NoError(t, f.loader.ResolveAllBundles())
	require.NoError(t, f.loader.StartAllBundles())

	require.NoError(t, coreBundle.Stop())

	assert.Equal(t, []string{"feature", "core"}, calls.get())
	assert.Equal(t, framework.Resolved, coreBundle.State())
	assert.Equal(t, framework.Resolved, featureBundle.State())
	assert.Equal(t, []string{"org.example.feature", "org.example.core"}, f.eventsOf(framework.BundleStopped))

	err := coreBundle.Stop()
	assert.True(t, errors.Is(err, framework.ErrInvalidState))
}

func TestStopReleasesServices(t *testing.T) {
	f := newFixture(t)
	name := service.NameOf[Greeter]()

	provider := framework.ActivatorFuncs{OnStart: func(ctx *framework.Context) error {
		_, err := service.Register[Greeter](ctx.Services(), ctx, greeter{}, nil)
		return err
	}}
	b := f.load(t, f.activated("org.example.core", provider))
	require.NoError(t, b.Resolve())
	require.NoError(t, b.Start())

	ctx := f.loader.GetContextForBundle(b)
	require.NotNil(t, ctx.GetServiceReference(name))

	require.NoError(t, b.Stop())
	assert.Nil(t, ctx.GetServiceReference(name))
}

func TestStopAllBundlesReverseStartOrder(t *testing.T) {
	f := newFixture(t)
	calls := &callLog{}

	mocks := map[string]*testutil.MockActivator{}
	for _, name := range []string{"a", "b", "c"} {
		m := testutil.NewMockActivator(t)
		m.On("Start", mock.Anything).Return(nil)
		m.On("Stop", mock.Anything).Run(calls.add(name)).Return(nil).Once()
		mocks[name] = m
	}
	f.load(t, f.activated("a", mocks["a"]))
	f.load(t, f.activated("b", mocks["b"], "a"))
	f.load(t, f.activated("c", mocks["c"]))

	require.NoError(t, f.loader.StartSystemBundle())
	require.NoError(t, f.loader.ResolveAllBundles())
	require.NoError(t, f.loader.StartAllBundles())

	require.NoError(t, f.loader.StopAllBundles())
	assert.Equal(t, []string{"c", "b", "a"}, calls.get())
	assert.Equal(t, framework.Resolved, f.loader.SystemBundle().State())
	assert.Equal(t, framework.BundleStopped.String()+" "+framework.SystemBundleName,
		f.events.BundleEvents()[len(f.events.BundleEvents())-1])
}

func TestStopErrorIsReturnedAfterCleanup(t *testing.T) {
	f := newFixture(t)
	act := testutil.NewMockActivator(t)
	act.On("Start", mock.Anything).Return(nil)
	act.On("Stop", mock.Anything).Return(errors.New("flush failed"))

	b := f.load(t, f.activated("org.example.core", act))
	require.NoError(t, b.Resolve())
	require.NoError(t, b.Start())

	err := b.Stop()
	require.Error(t, err)
	assert.True(t, errors.Is(err, framework.ErrActivatorFailed))
	assert.Equal(t, framework.Resolved, b.State())
}
