package ir

import "testing"

func TestModuleJSONRoundTrip(t *testing.T) {
	f := buildSimpleIf()
	mod := &Module{Name: "m", Functions: []*Function{f}, Externals: map[string]*Function{}, Globals: []string{"g"}}

	data, err := EncodeModule(mod)
	if err != nil {
		t.Fatalf("EncodeModule: %v", err)
	}

	got, err := DecodeModule(data)
	if err != nil {
		t.Fatalf("DecodeModule: %v", err)
	}

	if got.Name != mod.Name || len(got.Functions) != 1 {
		t.Fatalf("unexpected module shape: %+v", got)
	}
	gf := got.Functions[0]
	if gf.Name != "f" || len(gf.Blocks) != 3 || len(gf.Params) != 3 {
		t.Fatalf("unexpected function shape: %+v", gf)
	}
	if gf.Entry != f.Entry || gf.Exit != f.Exit {
		t.Fatalf("entry/exit not preserved: got %d/%d want %d/%d", gf.Entry, gf.Exit, f.Entry, f.Exit)
	}
	join := gf.Block(gf.Exit)
	if len(join.Phis) != 1 || len(join.Phis[0].Inputs) != 2 {
		t.Fatalf("phi inputs not preserved: %+v", join.Phis)
	}
	if _, ok := join.Term.(*Return); !ok {
		t.Fatalf("terminator kind not preserved: %T", join.Term)
	}
}
