package protocol

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	var called []string
	reg.Register(TypeJoin, []SessionState{StateConnected}, func(sess any, msg *Inbound) {
		called = append(called, sess.(string)+":"+msg.Type)
	})

	if err := reg.Dispatch("s1", StateConnected, &Inbound{Type: TypeJoin}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(called) != 1 || called[0] != "s1:join" {
		t.Errorf("called = %v", called)
	}

	err := reg.Dispatch("s1", StateJoined, &Inbound{Type: TypeJoin})
	if !errors.Is(err, ErrStateNotAllowed) {
		t.Errorf("wrong-state err = %v", err)
	}
	err = reg.Dispatch("s1", StateJoined, &Inbound{Type: "warp"})
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("unknown-type err = %v", err)
	}
	if len(called) != 1 {
		t.Error("handler ran for a rejected message")
	}
}

func TestRegistryRecoversPanics(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Register(TypeFire, []SessionState{StateJoined}, func(any, *Inbound) {
		panic("boom")
	})
	if err := reg.Dispatch(nil, StateJoined, &Inbound{Type: TypeFire}); err == nil {
		t.Error("expected an error from a panicking handler")
	}
}
