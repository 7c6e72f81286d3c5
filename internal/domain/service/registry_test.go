package service

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type Greeter interface {
	Greet(name string) string
}

type Closer interface {
	Close() error
}

type greeter struct {
	prefix string
}

func (g *greeter) Greet(name string) string { return g.prefix + " " + name }

type testContext struct {
	id   string
	name string
}

func (c testContext) ContextID() string    { return c.id }
func (c testContext) SymbolicName() string { return c.name }

var (
	coreCtx    = testContext{id: "ctx_core", name: "core"}
	featureCtx = testContext{id: "ctx_feature", name: "feature"}
	otherCtx   = testContext{id: "ctx_other", name: "other"}
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(zaptest.NewLogger(t))
	_, err := DeclareType[Greeter](r)
	require.NoError(t, err)
	_, err = DeclareType[Closer](r)
	require.NoError(t, err)
	return r
}

var greeterName = NameOf[Greeter]()

func TestRegisterValidation(t *testing.T) {
	r := newRegistry(t)

	_, err := r.RegisterService(coreCtx, []string{greeterName}, nil, nil)
	assert.ErrorIs(t, err, ErrNilService)

	var nilGreeter *greeter
	_, err = r.RegisterService(coreCtx, []string{greeterName}, nilGreeter, nil)
	assert.ErrorIs(t, err, ErrNilService)

	_, err = r.RegisterService(coreCtx, []string{greeterName, NameOf[Closer]()}, &greeter{}, nil)
	assert.ErrorIs(t, err, ErrNotAnInstance)

	_, err = r.RegisterService(coreCtx, []string{"undeclared.Name"}, &greeter{}, nil)
	assert.ErrorIs(t, err, ErrUnknownInterface)

	_, err = r.RegisterService(coreCtx, nil, &greeter{}, nil)
	assert.ErrorIs(t, err, ErrUnknownInterface)

	assert.Error(t, r.Declare("x", reflect.TypeOf((*greeter)(nil)).Elem()))
	assert.Error(t, r.Declare(greeterName, reflect.TypeOf((*Closer)(nil)).Elem()))
	assert.Equal(t, 0, r.Stats()["total_services"])
}

func TestRegistryOwnsReservedProperties(t *testing.T) {
	r := newRegistry(t)

	reg, err := r.RegisterService(coreCtx, []string{greeterName}, &greeter{}, Properties{
		"Service.ID":      int64(999),
		"objectClass":     []string{"bogus"},
		"service.ranking": "7",
		"lang":            "en",
	})
	require.NoError(t, err)

	ref := reg.Reference()
	id, _ := ref.Property("service.id")
	assert.Equal(t, ref.ID(), id)
	classes, _ := ref.Property("OBJECTCLASS")
	assert.Equal(t, []string{greeterName}, classes)
	assert.Equal(t, 7, ref.Ranking())
	ranking, _ := ref.Property("service.ranking")
	assert.Equal(t, 7, ranking)
	assert.Equal(t, []string{"lang", "objectclass", "service.id", "service.ranking"}, ref.PropertyKeys())
	assert.Equal(t, "core", ref.Bundle())
}

func TestServiceIDsIncrease(t *testing.T) {
	r := newRegistry(t)

	var last int64
	for i := 0; i < 5; i++ {
		reg, err := r.RegisterService(coreCtx, []string{greeterName}, &greeter{}, nil)
		require.NoError(t, err)
		assert.Greater(t, reg.Reference().ID(), last)
		last = reg.Reference().ID()
	}
}

func TestRankingOrder(t *testing.T) {
	r := newRegistry(t)

	low, err := r.RegisterService(coreCtx, []string{greeterName}, &greeter{prefix: "low"}, Properties{"service.ranking": 5})
	require.NoError(t, err)
	high, err := r.RegisterService(coreCtx, []string{greeterName}, &greeter{prefix: "high"}, Properties{"service.ranking": 10})
	require.NoError(t, err)

	assert.Equal(t, high.Reference(), r.GetServiceReference(featureCtx, greeterName))

	// Equal rankings: the older registration wins
	first, err := r.RegisterService(coreCtx, []string{greeterName}, &greeter{prefix: "first"}, Properties{"service.ranking": 20})
	require.NoError(t, err)
	_, err = r.RegisterService(coreCtx, []string{greeterName}, &greeter{prefix: "second"}, Properties{"service.ranking": 20})
	require.NoError(t, err)
	assert.Equal(t, first.Reference(), r.GetServiceReference(featureCtx, greeterName))

	refs, err := r.GetServiceReferences(featureCtx, greeterName, "")
	require.NoError(t, err)
	require.Len(t, refs, 4)
	assert.Equal(t, []int{20, 20, 10, 5}, []int{refs[0].Ranking(), refs[1].Ranking(), refs[2].Ranking(), refs[3].Ranking()})
	assert.Equal(t, low.Reference(), refs[3])
}

func TestGetServiceReferencesFilter(t *testing.T) {
	r := newRegistry(t)

	_, err := r.RegisterService(coreCtx, []string{greeterName}, &greeter{prefix: "hello"}, Properties{"lang": "en"})
	require.NoError(t, err)
	_, err = r.RegisterService(coreCtx, []string{greeterName}, &greeter{prefix: "hallo"}, Properties{"lang": "de"})
	require.NoError(t, err)

	refs, err := r.GetServiceReferences(featureCtx, greeterName, "(lang=de)")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	svc, err := r.GetService(featureCtx, refs[0])
	require.NoError(t, err)
	assert.Equal(t, "hallo world", svc.(Greeter).Greet("world"))

	all, err := r.GetServiceReferences(featureCtx, "", "(objectclass="+greeterName+")")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = r.GetServiceReferences(featureCtx, greeterName, "(lang=")
	assert.ErrorIs(t, err, ErrInvalidFilter)

	assert.Nil(t, r.GetServiceReference(featureCtx, NameOf[Closer]()))
}

func TestGetUngetUseCounts(t *testing.T) {
	r := newRegistry(t)

	reg, err := r.RegisterService(coreCtx, []string{greeterName}, &greeter{}, nil)
	require.NoError(t, err)
	ref := reg.Reference()

	for i := 0; i < 3; i++ {
		_, err := r.GetService(featureCtx, ref)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, r.UseCount(featureCtx, ref))
	assert.Equal(t, []string{"feature"}, ref.UsingBundles())
	assert.Equal(t, []*Reference{ref}, r.InUseBy(featureCtx))

	for i := 0; i < 3; i++ {
		assert.True(t, r.UngetService(featureCtx, ref))
	}
	assert.Equal(t, 0, r.UseCount(featureCtx, ref))
	assert.Empty(t, ref.UsingBundles())

	// Extra unget is a no-op
	assert.False(t, r.UngetService(featureCtx, ref))
	assert.Equal(t, 0, r.UseCount(featureCtx, ref))
}

type countingFactory struct {
	mu       sync.Mutex
	gets     map[string]int
	ungets   map[string]int
	produced []*greeter
	fail     error
}

func newCountingFactory() *countingFactory {
	return &countingFactory{gets: map[string]int{}, ungets: map[string]int{}}
}

func (f *countingFactory) GetService(ctx BundleContext, reg *Registration) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.gets[ctx.ContextID()]++
	g := &greeter{prefix: "for " + ctx.SymbolicName()}
	f.produced = append(f.produced, g)
	return g, nil
}

func (f *countingFactory) UngetService(ctx BundleContext, reg *Registration, svc any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ungets[ctx.ContextID()]++
}

func TestFactoryPerContextObjects(t *testing.T) {
	r := newRegistry(t)
	factory := newCountingFactory()

	reg, err := RegisterFactory[Greeter](r, coreCtx, factory, nil)
	require.NoError(t, err)
	ref := reg.Reference()

	a1, err := r.GetService(featureCtx, ref)
	require.NoError(t, err)
	a2, err := r.GetService(featureCtx, ref)
	require.NoError(t, err)
	b, err := r.GetService(otherCtx, ref)
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.Equal(t, 1, factory.gets[featureCtx.id])
	assert.Equal(t, "for feature x", a1.(Greeter).Greet("x"))

	assert.True(t, r.UngetService(featureCtx, ref))
	assert.Equal(t, 0, factory.ungets[featureCtx.id])
	assert.True(t, r.UngetService(featureCtx, ref))
	assert.Equal(t, 1, factory.ungets[featureCtx.id])

	// A new use gets a fresh object
	a3, err := r.GetService(featureCtx, ref)
	require.NoError(t, err)
	assert.NotSame(t, a1, a3)
	assert.Equal(t, 2, factory.gets[featureCtx.id])

	// Unregistration releases every cached object
	require.NoError(t, reg.Unregister())
	assert.Equal(t, 2, factory.ungets[featureCtx.id])
	assert.Equal(t, 1, factory.ungets[otherCtx.id])
	assert.Equal(t, 0, r.Stats()["factory_objects"])
}

func TestFactoryFailures(t *testing.T) {
	r := newRegistry(t)

	factory := newCountingFactory()
	factory.fail = errors.New("boom")
	reg, err := RegisterFactory[Greeter](r, coreCtx, factory, nil)
	require.NoError(t, err)

	_, err = r.GetService(featureCtx, reg.Reference())
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, 0, r.UseCount(featureCtx, reg.Reference()))

	wrong, err := RegisterFactory[Closer](r, coreCtx, FactoryFunc(func(BundleContext, *Registration) (any, error) {
		return &greeter{}, nil
	}), nil)
	require.NoError(t, err)

	_, err = r.GetService(featureCtx, wrong.Reference())
	assert.ErrorIs(t, err, ErrNotAnInstance)
	assert.Equal(t, 0, r.UseCount(featureCtx, wrong.Reference()))
}

func TestUnregister(t *testing.T) {
	r := newRegistry(t)

	reg, err := r.RegisterService(coreCtx, []string{greeterName}, &greeter{}, nil)
	require.NoError(t, err)
	ref := reg.Reference()
	_, err = r.GetService(featureCtx, ref)
	require.NoError(t, err)

	require.NoError(t, reg.Unregister())
	assert.False(t, ref.IsAvailable())
	assert.Nil(t, r.GetServiceReference(featureCtx, greeterName))

	_, err = r.GetService(featureCtx, ref)
	assert.ErrorIs(t, err, ErrUnregistered)
	assert.False(t, r.UngetService(featureCtx, ref))

	assert.ErrorIs(t, reg.Unregister(), ErrUnregistered)
	assert.ErrorIs(t, reg.SetProperties(nil), ErrUnregistered)
}

func TestBulkCleanup(t *testing.T) {
	r := newRegistry(t)

	for i := 0; i < 3; i++ {
		_, err := r.RegisterService(coreCtx, []string{greeterName}, &greeter{}, nil)
		require.NoError(t, err)
	}
	published, err := r.RegisterService(featureCtx, []string{greeterName}, &greeter{}, nil)
	require.NoError(t, err)
	assert.Len(t, r.RegisteredBy(coreCtx), 3)

	factory := newCountingFactory()
	freg, err := RegisterFactory[Greeter](r, otherCtx, factory, nil)
	require.NoError(t, err)

	_, err = r.GetService(featureCtx, freg.Reference())
	require.NoError(t, err)
	_, err = r.GetService(featureCtx, freg.Reference())
	require.NoError(t, err)

	r.UnregisterServices(coreCtx)
	assert.Empty(t, r.RegisteredBy(coreCtx))
	refs, err := r.GetServiceReferences(otherCtx, greeterName, "")
	require.NoError(t, err)
	assert.Equal(t, []*Reference{published.Reference(), freg.Reference()}, refs)

	r.ReleaseServicesInUse(featureCtx)
	assert.Equal(t, 0, r.UseCount(featureCtx, freg.Reference()))
	assert.Equal(t, 1, factory.ungets[featureCtx.id])
	assert.Empty(t, r.InUseBy(featureCtx))
}

func TestSetPropertiesResorts(t *testing.T) {
	r := newRegistry(t)

	a, err := r.RegisterService(coreCtx, []string{greeterName}, &greeter{}, Properties{"service.ranking": 1})
	require.NoError(t, err)
	b, err := r.RegisterService(coreCtx, []string{greeterName}, &greeter{}, Properties{"service.ranking": 2})
	require.NoError(t, err)
	assert.Equal(t, b.Reference(), r.GetServiceReference(coreCtx, greeterName))

	var events []Event
	_, err = r.AddServiceListener(coreCtx, func(e Event) { events = append(events, e) }, "")
	require.NoError(t, err)

	require.NoError(t, a.SetProperties(Properties{"service.ranking": 3, "service.id": 42}))
	assert.Equal(t, a.Reference(), r.GetServiceReference(coreCtx, greeterName))
	id, _ := a.Reference().Property("service.id")
	assert.Equal(t, a.Reference().ID(), id)

	require.Len(t, events, 1)
	assert.Equal(t, Modified, events[0].Type)
}

func TestListeners(t *testing.T) {
	r := newRegistry(t)

	var (
		all    []string
		onlyEn []string
	)
	_, err := r.AddServiceListener(featureCtx, func(e Event) {
		all = append(all, fmt.Sprintf("%s:%d", e.Type, e.Reference.ID()))
	}, "")
	require.NoError(t, err)
	enID, err := r.AddServiceListener(otherCtx, func(e Event) {
		onlyEn = append(onlyEn, e.Type.String())
	}, "(lang=en)")
	require.NoError(t, err)

	_, err = r.AddServiceListener(otherCtx, func(Event) {}, "(lang=")
	assert.ErrorIs(t, err, ErrInvalidFilter)

	en, err := r.RegisterService(coreCtx, []string{greeterName}, &greeter{}, Properties{"lang": "en"})
	require.NoError(t, err)
	_, err = r.RegisterService(coreCtx, []string{greeterName}, &greeter{}, Properties{"lang": "de"})
	require.NoError(t, err)
	require.NoError(t, en.Unregister())

	assert.Equal(t, []string{"REGISTERED:1", "REGISTERED:2", "UNREGISTERING:1"}, all)
	assert.Equal(t, []string{"REGISTERED", "UNREGISTERING"}, onlyEn)

	assert.False(t, r.RemoveServiceListener(featureCtx, enID))
	assert.True(t, r.RemoveServiceListener(otherCtx, enID))
	assert.Equal(t, 1, r.RemoveAllServiceListeners(featureCtx))
	assert.Equal(t, 0, r.ListenerCount())
}

func TestListenerMayCallBackIntoRegistry(t *testing.T) {
	r := newRegistry(t)

	var greeting string
	_, err := r.AddServiceListener(featureCtx, func(e Event) {
		if e.Type != Registered {
			return
		}
		svc, err := r.GetService(featureCtx, e.Reference)
		if err == nil {
			greeting = svc.(Greeter).Greet("listener")
			r.UngetService(featureCtx, e.Reference)
		}
	}, "")
	require.NoError(t, err)

	_, err = r.RegisterService(coreCtx, []string{greeterName}, &greeter{prefix: "hi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi listener", greeting)
}

func TestPanickingListenerIsIsolated(t *testing.T) {
	r := newRegistry(t)

	var delivered bool
	_, err := r.AddServiceListener(featureCtx, func(Event) { panic("listener bug") }, "")
	require.NoError(t, err)
	_, err = r.AddServiceListener(otherCtx, func(Event) { delivered = true }, "")
	require.NoError(t, err)

	_, err = r.RegisterService(coreCtx, []string{greeterName}, &greeter{}, nil)
	require.NoError(t, err)
	assert.True(t, delivered)
}

func TestGenericHelpers(t *testing.T) {
	r := NewRegistry(nil)

	assert.Contains(t, NameOf[Greeter](), "/domain/service.Greeter")

	_, _, err := Get[Greeter](r, featureCtx)
	assert.ErrorIs(t, err, ErrUnregistered)

	_, err = Register[Greeter](r, coreCtx, &greeter{prefix: "hey"}, nil)
	require.NoError(t, err)

	g, ref, err := Get[Greeter](r, featureCtx)
	require.NoError(t, err)
	assert.Equal(t, "hey you", g.Greet("you"))
	assert.True(t, r.UngetService(featureCtx, ref))

	refs, err := References[Greeter](r, featureCtx, "")
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestConcurrentRegistration(t *testing.T) {
	r := newRegistry(t)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := testContext{id: fmt.Sprintf("ctx_%d", i), name: fmt.Sprintf("b%d", i)}
			reg, err := r.RegisterService(ctx, []string{greeterName}, &greeter{}, Properties{"service.ranking": i % 3})
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := r.GetService(ctx, reg.Reference()); err != nil {
				t.Error(err)
			}
			r.UngetService(ctx, reg.Reference())
		}(i)
	}
	wg.Wait()

	refs, err := r.GetServiceReferences(coreCtx, greeterName, "")
	require.NoError(t, err)
	require.Len(t, refs, workers)
	for i := 1; i < len(refs); i++ {
		prev, cur := refs[i-1], refs[i]
		ordered := prev.Ranking() > cur.Ranking() || (prev.Ranking() == cur.Ranking() && prev.ID() < cur.ID())
		assert.True(t, ordered, "references out of order at %d", i)
	}
}
