package core_test

import (
	"testing"

	"github.com/aretw0/orbit/pkg/core"
)

func TestStateSequencing(t *testing.T) {
	st := core.NewState()
	st.SetSession(core.Session{Identity: core.NewIdentity("alice-1"), Mode: core.ModeSimulated})

	first := st.BeginFetch()
	second := st.BeginFetch()

	fresh := []core.Dweet{{ID: 2, Message: "fresh"}}
	stale := []core.Dweet{{ID: 1, Message: "stale"}}

	if !st.ApplyTimeline(second, fresh) {
		t.Fatal("expected newest response to apply")
	}
	if st.ApplyTimeline(first, stale) {
		t.Fatal("expected stale response to be discarded")
	}
	got := st.Timeline()
	if len(got) != 1 || got[0].Message != "fresh" {
		t.Errorf("cache overwritten by stale response: %+v", got)
	}
}

func TestStateSessionChangeInvalidatesInflight(t *testing.T) {
	st := core.NewState()
	st.SetSession(core.Session{Identity: core.NewIdentity("alice-1"), Mode: core.ModeSimulated})
	seq := st.BeginFetch()

	st.SetSession(core.Session{Identity: core.NewIdentity("bob-2"), Mode: core.ModeSimulated})
	if st.ApplyTimeline(seq, []core.Dweet{{ID: 1}}) {
		t.Error("fetch issued for alice must not populate bob's cache")
	}

	st.ClearSession()
	if _, ok := st.Session(); ok {
		t.Error("expected no session after clear")
	}
	if !st.Identity().IsZero() {
		t.Error("expected NoIdentity after clear")
	}
}

func TestTimelineReturnsCopy(t *testing.T) {
	st := core.NewState()
	st.ApplyTimeline(st.BeginFetch(), []core.Dweet{{ID: 1, Message: "a"}})
	got := st.Timeline()
	got[0].Message = "mutated"
	if st.Timeline()[0].Message != "a" {
		t.Error("Timeline leaked its backing array")
	}
}
