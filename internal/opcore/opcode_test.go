package opcore

import "testing"

func TestOpcodeWriteSide(t *testing.T) {
	cases := map[Opcode]bool{
		OpConnect:   true,
		OpAccept:    false,
		OpRead:      false,
		OpWrite:     true,
		OpReadMsg:   false,
		OpWriteMsg:  true,
		OpUserEvent: false,
		OpMonitor:   false,
	}
	for op, want := range cases {
		if got := op.WriteSide(); got != want {
			t.Errorf("%s.WriteSide() = %v, want %v", op, got, want)
		}
	}
}

func TestOpcodeString(t *testing.T) {
	if OpRead.String() != "read" {
		t.Errorf("OpRead.String() = %q, want %q", OpRead.String(), "read")
	}
	if Opcode(99).String() != "unknown" {
		t.Errorf("unknown opcode should stringify to \"unknown\"")
	}
}

func TestFlagsHas(t *testing.T) {
	f := FlagWaitAll | FlagRealtime
	if !f.Has(FlagWaitAll) {
		t.Error("expected Has(FlagWaitAll) to be true")
	}
	if !f.Has(FlagWaitAll | FlagRealtime) {
		t.Error("expected Has of the full combination to be true")
	}
	if f.Has(FlagNoCopy) {
		t.Error("expected Has(FlagNoCopy) to be false")
	}
}

func TestActionString(t *testing.T) {
	if ActionStart.String() != "start" {
		t.Errorf("ActionStart.String() = %q", ActionStart.String())
	}
	if Action(99).String() != "unknown" {
		t.Error("unknown action should stringify to \"unknown\"")
	}
}
