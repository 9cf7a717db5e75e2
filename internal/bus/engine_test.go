package bus

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scoreChanged struct {
	Value int
}

type gameReset struct{}

// hud declares its own capabilities.
type hud struct {
	score  int
	resets int
}

func (h *hud) Reactions() []Capability {
	return []Capability{
		On(h.onScore),
		On(h.onReset, WithPriority(-10)),
	}
}

func (h *hud) onScore(m scoreChanged) { h.score += m.Value }
func (h *hud) onReset(gameReset)      { h.resets++; h.score = 0 }

// boxed is comparable by type but not by every value it can hold.
type boxed struct {
	v any
}

type saver interface {
	Save()
}

type document struct {
	saves int
}

func (d *document) Save() { d.saves++ }

func TestNew_Defaults(t *testing.T) {
	e := New()

	_, err := uuid.Parse(e.ID())
	require.NoError(t, err)
	assert.Equal(t, "engine-"+e.ID()[:8], e.Name())
	assert.Equal(t, e.Name(), e.String())
	assert.Equal(t, DefaultPriority, e.Priority())
	assert.False(t, e.Strict())
	assert.NotEqual(t, e.ID(), New().ID())
}

func TestNew_Options(t *testing.T) {
	e := New(
		WithEngineName("ui"),
		WithStrict(true),
		WithEnginePriority(3),
		WithPoolCapacity(16),
	)

	assert.Equal(t, "ui", e.Name())
	assert.True(t, e.Strict())
	assert.Equal(t, 3, e.Priority())
	assert.Equal(t, 16, e.Stats().PoolSize)
	assert.Equal(t, 16, e.Stats().PoolFree)
}

func TestEngine_RegisterReactor(t *testing.T) {
	e := quietEngine()
	h := &hud{}

	require.NoError(t, e.Register(h))
	assert.True(t, e.IsRegistered(h))
	assert.Equal(t, 2, e.Stats().Subscribers)
	assert.Equal(t, 2, e.Stats().Keys)

	Send(e, scoreChanged{Value: 5})
	Send(e, scoreChanged{Value: 2})
	assert.Equal(t, 7, h.score)

	Send(e, gameReset{})
	assert.Equal(t, 0, h.score)
	assert.Equal(t, 1, h.resets)

	assert.True(t, e.Unregister(h))
	Send(e, scoreChanged{Value: 5})
	assert.Equal(t, 0, h.score)
	assert.Equal(t, 0, e.Stats().Subscribers)
}

func TestEngine_RegisterErrors(t *testing.T) {
	e := quietEngine()

	tests := []struct {
		name  string
		owner any
		caps  []Capability
		want  error
	}{
		{"nil owner", nil, []Capability{On(func(*tick) {})}, ErrNilOwner},
		{"non-comparable owner", []int{1}, []Capability{On(func(*tick) {})}, ErrInvalidOwner},
		{"unhashable field", boxed{v: []int{1}}, []Capability{On(func(*tick) {})}, ErrInvalidOwner},
		{"unhashable nested field", boxed{v: boxed{v: map[string]int{}}}, []Capability{On(func(*tick) {})}, ErrInvalidOwner},
		{"no capabilities", newOwner("bare", 0), nil, ErrNoCapabilities},
		{"nil capability", newOwner("nil-cap", 0), []Capability{nil}, ErrNoCapabilities},
		{"nil reaction", newOwner("nil-fn", 0), []Capability{On[*tick](nil)}, ErrNoCapabilities},
		{"listener mismatch", newOwner("mismatch", 0), []Capability{Listens[*tick]()}, ErrCapabilityMismatch},
		{"handles mismatch", newOwner("not-saver", 0), []Capability{Handles[saver]()}, ErrCapabilityMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Register(tt.owner, tt.caps...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, e.Stats().Subscribers)
}

func TestEngine_UnhashableOwner(t *testing.T) {
	e := quietEngine()
	owner := boxed{v: []int{1}}

	assert.NotPanics(t, func() {
		assert.False(t, e.Unregister(owner))
		assert.False(t, e.IsRegistered(owner))
	})

	hashable := boxed{v: "ok"}
	require.NoError(t, e.Register(hashable, On(func(*tick) {})))
	assert.True(t, e.IsRegistered(hashable))
	assert.True(t, e.Unregister(hashable))
}

func TestEngine_RegisterDuplicate(t *testing.T) {
	e := quietEngine()
	a := newOwner("a", 0)
	mustRegister(e, a)

	err := e.Register(a, On(a.visit))
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Contains(t, err.Error(), "a")
	assert.Equal(t, 1, e.Stats().Subscribers)
}

func TestEngine_RegisterIsAtomic(t *testing.T) {
	e := quietEngine()
	a := newOwner("a", 0)

	// The second capability repeats the key of the first.
	err := e.Register(a, On(func(scoreChanged) {}), On(a.visit), On(func(scoreChanged) {}))
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.False(t, e.IsRegistered(a))
	assert.Equal(t, 0, e.Stats().Subscribers)

	// A mismatch after a valid capability leaves nothing behind either.
	err = e.Register(a, On(a.visit), Listens[*tick]())
	assert.ErrorIs(t, err, ErrCapabilityMismatch)
	assert.False(t, e.IsRegistered(a))
}

func TestEngine_UnregisterUnknown(t *testing.T) {
	e := quietEngine()
	a := newOwner("a", 0)

	assert.False(t, e.Unregister(a))
	assert.False(t, e.Unregister(nil))
	assert.False(t, e.Unregister([]int{1}))

	mustRegister(e, a)
	assert.True(t, e.Unregister(a))
	assert.False(t, e.Unregister(a))
}

func TestEngine_Cancel(t *testing.T) {
	e := quietEngine()
	a := newOwner("a", 0)

	var ticks int
	require.NoError(t, e.Register(a, On(a.visit)))
	h, err := Subscribe(e, "ticker", func(*tick) { ticks++ })
	require.NoError(t, err)
	require.False(t, h.IsZero())

	assert.True(t, e.Cancel(h))
	assert.False(t, e.Cancel(h))
	assert.False(t, e.Cancel(Handle{}))

	Send(e, &tick{})
	assert.Zero(t, ticks)
	assert.True(t, e.IsRegistered(a))
}

func TestEngine_CancelOneOfSeveral(t *testing.T) {
	e := quietEngine()
	owner := newOwner("multi", 0)

	var ticks, probes int
	h, err := Subscribe(e, owner, func(*tick) { ticks++ })
	require.NoError(t, err)
	_, err = Subscribe(e, owner, func(*probe) { probes++ })
	require.NoError(t, err)

	require.True(t, e.Cancel(h))
	Send(e, &tick{})
	Send(e, &probe{})

	assert.Equal(t, 0, ticks)
	assert.Equal(t, 1, probes)
	assert.True(t, e.IsRegistered(owner))
}

func TestEngine_SubscribeDefaultsFromOwner(t *testing.T) {
	e := quietEngine(WithDefaultPriority(7))

	_, err := Subscribe(e, "plain", func(*tick) {})
	require.NoError(t, err)
	_, err = Subscribe(e, newOwner("ranked", -3), func(*tick) {})
	require.NoError(t, err)
	_, err = Subscribe(e, newOwner("renamed", 0), func(*tick) {}, WithName("custom"), WithPriority(9))
	require.NoError(t, err)

	infos := e.Subscribers()
	require.Len(t, infos, 3)

	assert.Equal(t, "ranked", infos[0].Name)
	assert.Equal(t, -3, infos[0].Priority)
	assert.Equal(t, "string", infos[1].Name)
	assert.Equal(t, 7, infos[1].Priority)
	assert.Equal(t, "custom", infos[2].Name)
	assert.Equal(t, 9, infos[2].Priority)
}

func TestEngine_Subscribers(t *testing.T) {
	e := quietEngine()
	child := quietEngine(WithEngineName("child"))

	a := newOwner("a", 1)
	b := newOwner("b", 0)
	mustRegister(e, a)
	mustRegister(e, b)
	require.NoError(t, e.RegisterChild(child))

	infos := e.Subscribers()
	require.Len(t, infos, 3)

	assert.Equal(t, "b", infos[0].Name)
	assert.Equal(t, KeyOf[*probe](), infos[0].Key)
	assert.Same(t, b, infos[0].Owner)
	assert.Equal(t, "a", infos[1].Name)
	assert.Less(t, infos[0].Index, infos[1].Index)

	assert.True(t, infos[2].Child)
	assert.Equal(t, "child", infos[2].Name)
	assert.True(t, infos[2].Key.IsZero())
	assert.Same(t, child, infos[2].Owner)
}

func TestEngine_RegisterChildErrors(t *testing.T) {
	e := quietEngine()
	child := quietEngine()

	assert.ErrorIs(t, e.RegisterChild(nil), ErrNilEngine)
	assert.ErrorIs(t, e.RegisterChild(e), ErrSelfChild)

	require.NoError(t, e.RegisterChild(child))
	assert.ErrorIs(t, e.RegisterChild(child), ErrAlreadyRegistered)
	assert.Equal(t, 1, e.Stats().Children)

	assert.True(t, e.UnregisterChild(child))
	assert.False(t, e.UnregisterChild(child))
	assert.False(t, e.UnregisterChild(nil))
	assert.Equal(t, 0, e.Stats().Children)
}

func TestEngine_DetachedChildStopsReceiving(t *testing.T) {
	parent := quietEngine()
	child := quietEngine()
	mustRegister(child, newOwner("child", 0))
	require.NoError(t, parent.RegisterChild(child))

	p := &probe{}
	Send(parent, p)
	require.Equal(t, []string{"child"}, p.Visits)

	require.True(t, parent.UnregisterChild(child))
	p = &probe{}
	Send(parent, p)
	assert.Empty(t, p.Visits)

	// The child still works on its own.
	Send(child, p)
	assert.Equal(t, []string{"child"}, p.Visits)
}

func TestEngine_ChildSharedByParents(t *testing.T) {
	left := quietEngine()
	right := quietEngine()
	shared := quietEngine()
	mustRegister(shared, newOwner("shared", 0))

	require.NoError(t, left.RegisterChild(shared))
	require.NoError(t, right.RegisterChild(shared))

	p := &probe{}
	Send(left, p)
	Send(right, p)
	assert.Equal(t, []string{"shared", "shared"}, p.Visits)
}

func TestEngine_Close(t *testing.T) {
	e := quietEngine()
	child := quietEngine()
	a := newOwner("a", 0)
	mustRegister(e, a)
	require.NoError(t, e.RegisterChild(child))

	e.Close()
	e.Close()

	assert.False(t, e.IsRegistered(a))
	assert.Equal(t, 0, e.Stats().Subscribers)
	assert.Equal(t, 0, e.Stats().Children)
	assert.ErrorIs(t, e.Register(a, On(a.visit)), ErrEngineClosed)
	assert.ErrorIs(t, e.RegisterChild(child), ErrEngineClosed)

	p := &probe{}
	assert.NotPanics(t, func() { Send(e, p) })
	assert.Empty(t, p.Visits)
}

func TestEngine_CloseFromReaction(t *testing.T) {
	e := quietEngine()

	var got []string
	_, err := Subscribe(e, "closer", func(*tick) {
		got = append(got, "closer")
		e.Close()
	})
	require.NoError(t, err)
	_, err = Subscribe(e, "after", func(*tick) { got = append(got, "after") })
	require.NoError(t, err)

	assert.NotPanics(t, func() { Send(e, &tick{}) })
	assert.Equal(t, []string{"closer"}, got)
}

func TestEngine_Stats(t *testing.T) {
	e := quietEngine()
	child := quietEngine()
	mustRegister(e, newOwner("a", 0))
	mustRegister(child, newOwner("b", 0))
	require.NoError(t, e.RegisterChild(child))

	Send(e, &probe{})
	Send(e, &probe{})

	st := e.Stats()
	assert.Equal(t, uint64(2), st.Dispatches)
	assert.Equal(t, uint64(2), st.Deliveries)
	assert.Equal(t, uint64(0), st.Failures)
	assert.Equal(t, 1, st.Subscribers)
	assert.Equal(t, 1, st.Children)
	assert.Equal(t, 1, st.Keys)
	assert.Equal(t, 2, st.PoolSize)
	assert.Equal(t, 0, st.PoolFree)

	assert.Equal(t, uint64(2), child.Stats().Deliveries)
}

func TestEngine_SkippedTargetsAreNotDelivered(t *testing.T) {
	e := quietEngine()
	a, b := newOwner("a", 0), newOwner("b", 1)
	mustRegister(e, a)
	mustRegister(e, b)

	SendWith(e, &probe{}, FilteredInvoker{Accept: ExcludeOwner(a)})
	SendWith(e, &probe{}, FilteredInvoker{Accept: FilterByName("nobody")})

	st := e.Stats()
	assert.Equal(t, uint64(2), st.Dispatches)
	assert.Equal(t, uint64(1), st.Deliveries)
}

func TestSendEvent_Payload(t *testing.T) {
	e := quietEngine()

	type key string
	var got []any
	_, err := Subscribe(e, "reader", func(ev Event[key]) {
		got = append(got, ev.Key, ev.Data)
	})
	require.NoError(t, err)

	SendEvent(e, key("saved"))
	SendEvent(e, key("moved"), 42)
	SendEvent(e, key("both"), "x", 1)

	assert.Equal(t, []any{
		key("saved"), nil,
		key("moved"), 42,
		key("both"), []any{"x", 1},
	}, got)
}

func TestGetData(t *testing.T) {
	ev := Event[string]{Key: "moved", Data: 42}

	n, ok := TryGetData[int](ev)
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = TryGetData[string](ev)
	assert.False(t, ok)
	_, ok = TryGetData[int](&tick{})
	assert.False(t, ok)

	assert.Equal(t, "", GetData[string](ev))
	assert.Equal(t, 42, GetData[int](&Request[string]{Data: 42}))
}

func TestGetData_MultiValue(t *testing.T) {
	ev := Event[string]{Key: "moved", Data: packData([]any{"cursor", 3, true})}

	name, line, ok := TryGetData2[string, int](ev)
	assert.True(t, ok)
	assert.Equal(t, "cursor", name)
	assert.Equal(t, 3, line)

	name, line, visible := GetData3[string, int, bool](ev)
	assert.Equal(t, "cursor", name)
	assert.Equal(t, 3, line)
	assert.True(t, visible)

	tests := []struct {
		name string
		msg  any
	}{
		{"wrong type", Event[string]{Data: []any{"cursor", "3"}}},
		{"too short", Event[string]{Data: []any{"cursor"}}},
		{"single value", Event[string]{Data: "cursor"}},
		{"no payload", &tick{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b, ok := TryGetData2[string, int](tt.msg)
			assert.False(t, ok)
			assert.Zero(t, a)
			assert.Zero(t, b)
		})
	}

	_, _, _, ok = TryGetData3[string, int, string](ev)
	assert.False(t, ok)
	_, ok = TryGetDataAt[int](ev, -1)
	assert.False(t, ok)
}

// eventLog records events handed to it directly.
type eventLog struct {
	got []Event[string]
}

func (l *eventLog) React(ev Event[string]) {
	l.got = append(l.got, ev)
}

func TestEventTo(t *testing.T) {
	l := &eventLog{}

	EventTo[string](l, "saved")
	EventTo[string](l, "moved", 1, 2)

	assert.Equal(t, []Event[string]{
		{Key: "saved"},
		{Key: "moved", Data: []any{1, 2}},
	}, l.got)
}

func TestMessage_String(t *testing.T) {
	assert.Equal(t, "saved", Event[string]{Key: "saved"}.String())
	assert.Equal(t, "moved 42", Event[string]{Key: "moved", Data: 42}.String())
	assert.Equal(t, "request pause", (&Request[string]{Key: "pause"}).String())
	assert.Equal(t, "request pause 1", (&Request[string]{Key: "pause", Data: 1}).String())
}

func TestKey(t *testing.T) {
	assert.Equal(t, KeyOf[*tick](), KeyOf[*tick]())
	assert.NotEqual(t, KeyOf[*tick](), KeyOf[tick]())
	assert.NotEqual(t, KeyOf[Event[string]](), KeyOf[Event[int]]())
	assert.True(t, Key{}.IsZero())
	assert.False(t, KeyOf[int]().IsZero())
	assert.Equal(t, "int", KeyOf[int]().String())
	assert.Equal(t, "*bus.tick", KeyOf[*tick]().String())
	assert.Equal(t, "<none>", Key{}.String())
}

func TestSendAction(t *testing.T) {
	e := quietEngine()

	a := &document{}
	b := &document{}
	require.NoError(t, e.Register(a, Handles[saver]()))
	require.NoError(t, e.Register(b, Handles[saver](WithPriority(-1))))

	var order []*document
	SendAction(e, func(s saver) {
		s.Save()
		order = append(order, s.(*document))
	})

	assert.Equal(t, 1, a.saves)
	assert.Equal(t, 1, b.saves)
	assert.Equal(t, []*document{b, a}, order)

	SendAction[saver](e, nil)
	assert.Equal(t, 1, a.saves)
}

func TestListen(t *testing.T) {
	e := quietEngine()
	g := &gatekeeper{name: "g", allow: true}

	h, err := Listen[*Request[doorKey]](e, g, WithPriority(4))
	require.NoError(t, err)
	assert.False(t, h.IsZero())
	assert.Equal(t, 4, e.Subscribers()[0].Priority)

	_, err = Listen[*Request[doorKey]](e, g)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	require.NoError(t, quietEngine().Register(g, Listens[*Request[doorKey]]()))
}

func TestEngine_DefaultFailureLog(t *testing.T) {
	var buf bytes.Buffer
	e := New(
		WithEngineName("logged"),
		WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))),
	)

	_, err := Subscribe(e, newOwner("boom", 0), func(*tick) { panic(errors.New("bad tick")) })
	require.NoError(t, err)
	Send(e, &tick{})

	out := buf.String()
	assert.Contains(t, out, `"msg":"subscriber failed"`)
	assert.Contains(t, out, `"engine":"logged"`)
	assert.Contains(t, out, `"subscriber":"boom"`)
	assert.Contains(t, out, `"key":"*bus.tick"`)
}

func TestSubscriberError(t *testing.T) {
	cause := errors.New("bad tick")
	err := &SubscriberError{Engine: "e", Subscriber: "s", Key: KeyOf[*tick](), Value: cause}

	assert.ErrorIs(t, err, ErrSubscriberPanic)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "subscriber s failed on *bus.tick in engine e: bad tick", err.Error())

	plain := &SubscriberError{Value: "text"}
	assert.NoError(t, plain.Unwrap())
}

// countingRecorder implements Recorder for tests.
type countingRecorder struct {
	mu          sync.Mutex
	dispatched  map[string]int
	delivered   map[string]int
	failed      map[string]int
	subscribers map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		dispatched:  map[string]int{},
		delivered:   map[string]int{},
		failed:      map[string]int{},
		subscribers: map[string]int{},
	}
}

func (r *countingRecorder) Dispatched(engine string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatched[engine]++
}

func (r *countingRecorder) Delivered(engine string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered[engine]++
}

func (r *countingRecorder) Failed(engine string, key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[engine+"/"+key.String()]++
}

func (r *countingRecorder) Subscribers(engine string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[engine] = count
}

func TestEngine_Recorder(t *testing.T) {
	rec := newCountingRecorder()
	e := quietEngine(WithEngineName("rec"), WithRecorder(rec))

	_, err := Subscribe(e, "ok", func(*tick) {})
	require.NoError(t, err)
	h, err := Subscribe(e, "boom", func(*tick) { panic("boom") })
	require.NoError(t, err)
	assert.Equal(t, 2, rec.subscribers["rec"])

	Send(e, &tick{})
	assert.Equal(t, 1, rec.dispatched["rec"])
	assert.Equal(t, 1, rec.delivered["rec"])
	assert.Equal(t, 1, rec.failed["rec/*bus.tick"])

	require.True(t, e.Cancel(h))
	assert.Equal(t, 1, rec.subscribers["rec"])

	e.Close()
	assert.Equal(t, 0, rec.subscribers["rec"])
}
