package wire

import "testing"

func TestCommandValid(t *testing.T) {
	valid := []Command{CmdChallenge, CmdAuth, CmdDisconnect, CmdMap, CmdReduce, CmdMapDone, CmdReduceDone}
	for _, c := range valid {
		if !c.Valid() {
			t.Errorf("expected %q to be valid", c)
		}
	}
	if Command("bogus").Valid() {
		t.Error("expected bogus command to be invalid")
	}
}

func TestCommandAllowedUnauthenticated(t *testing.T) {
	allowed := map[Command]bool{
		CmdChallenge:  true,
		CmdAuth:       true,
		CmdDisconnect: true,
		CmdMap:        false,
		CmdReduce:     false,
		CmdMapDone:    false,
		CmdReduceDone: false,
	}
	for cmd, want := range allowed {
		if got := cmd.AllowedUnauthenticated(); got != want {
			t.Errorf("%q.AllowedUnauthenticated() = %v, want %v", cmd, got, want)
		}
	}
}

func TestCommandHasPayload(t *testing.T) {
	for _, cmd := range []Command{CmdMap, CmdReduce, CmdMapDone, CmdReduceDone} {
		if !cmd.HasPayload() {
			t.Errorf("%q should carry a payload", cmd)
		}
	}
	for _, cmd := range []Command{CmdChallenge, CmdAuth, CmdDisconnect} {
		if cmd.HasPayload() {
			t.Errorf("%q should not carry a payload", cmd)
		}
	}
}
