// Package bus provides the in-process dispatch engine for Cascade.
//
// An Engine keeps a registry of subscribers keyed by message type and a list
// of attached child engines. Sending a message walks the subscribers of that
// message type and the children as one sequence ordered by priority, ties
// broken by registration order. Children repeat the walk against their own
// registries, so an engine tree behaves like one flat, priority-sorted list.
//
//	                 ┌──────────────────────────────┐
//	  Send(msg) ───▶ │ Engine                        │
//	                 │  registry                     │
//	                 │   Key ─▶ [sub p=0] [sub p=5]  │
//	                 │   children [engine p=0]       │
//	                 └──────────────┬───────────────┘
//	                                │ merge by (priority, index)
//	                                ▼
//	                 sub p=0 ─▶ engine p=0 ─▶ sub p=5
//
// # Capabilities
//
// An owner registers one capability per message type it handles:
//
//	type HUD struct{ score int }
//
//	func (h *HUD) Reactions() []bus.Capability {
//		return []bus.Capability{
//			bus.On(h.onScore),
//			bus.On(h.onReset, bus.WithPriority(-10)),
//		}
//	}
//
//	engine := bus.New(bus.WithEngineName("ui"))
//	if err := engine.Register(hud); err != nil {
//		return err
//	}
//	defer engine.Unregister(hud)
//
//	bus.Send(engine, ScoreChanged{Value: 10})
//
// # Requests and actions
//
// SendRequest stops as soon as a subscriber approves the request:
//
//	granted := bus.SendRequest(engine, "pause")
//
// SendAction calls a function on every owner registered with Handles[H]:
//
//	bus.SendAction(engine, func(s Saver) { s.Save() })
//
// # Reentrancy
//
// Dispatch is synchronous. A reaction may send, register or unregister while
// a walk is in progress: new registrations are not visited by the current
// walk, removed ones are skipped. Engine cycles are not detected.
//
// # Failures
//
// A panicking subscriber is recovered, reported to the FailureHandler (by
// default logged through slog) and the walk continues. Strict engines let the
// panic propagate.
//
// # Thread Safety
//
// An Engine is not safe for concurrent use. Drive each engine tree from one
// goroutine or serialize access externally.
package bus
