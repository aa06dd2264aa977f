package authsession

import (
	"testing"
)

func TestRegistryDeliversInSubscriptionOrder(t *testing.T) {
	r := newRegistry(NopLogger())

	var got []string
	r.subscribe(func(s AuthState) { got = append(got, "a:"+s.Status.String()) }, initialState())
	r.subscribe(func(s AuthState) { got = append(got, "b:"+s.Status.String()) }, initialState())
	r.publish(AuthState{Status: StatusInitializing, IsLoading: true})
	r.drain()

	want := []string{"a:uninitialized", "b:uninitialized", "a:initializing", "b:initializing"}
	if len(got) != len(want) {
		t.Fatalf("got %v, expected %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivery %d = %s, expected %s", i, got[i], want[i])
		}
	}
}

func TestRegistryLateSubscriberSkipsQueuedTransitions(t *testing.T) {
	r := newRegistry(NopLogger())
	r.publish(AuthState{Status: StatusInitializing, IsLoading: true})

	var got []Status
	r.subscribe(func(s AuthState) { got = append(got, s.Status) }, AuthState{Status: StatusInitializing, IsLoading: true})
	r.drain()

	if len(got) != 1 {
		t.Fatalf("expected only the initial snapshot, got %v", got)
	}
}

func TestRegistryUnsubscribeIsIdempotent(t *testing.T) {
	r := newRegistry(NopLogger())

	unsubscribeA := r.subscribe(func(AuthState) {}, initialState())
	r.subscribe(func(AuthState) {}, initialState())
	r.drain()

	unsubscribeA()
	unsubscribeA()

	if n := r.len(); n != 1 {
		t.Fatalf("expected 1 listener, got %d", n)
	}
}

func TestRegistryNestedDrainIsDeferred(t *testing.T) {
	r := newRegistry(NopLogger())

	var got []Status
	r.subscribe(func(s AuthState) {
		got = append(got, s.Status)
		if s.Status == StatusUninitialized {
			r.publish(AuthState{Status: StatusUnauthenticated})
			r.drain()
			if len(got) != 1 {
				t.Errorf("nested drain delivered re-entrantly")
			}
		}
	}, initialState())
	r.drain()

	if len(got) != 2 || got[1] != StatusUnauthenticated {
		t.Fatalf("got %v", got)
	}
}
