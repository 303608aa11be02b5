package module

import "testing"

type pingPort interface{ Ping() string }

type pinger struct{}

func (pinger) Ping() string { return "pong" }

type portsBundle struct {
	P pingPort
}

type fakeModule struct{ ports any }

func (f fakeModule) Ports() any   { return f.ports }
func (f fakeModule) Name() string { return "fake" }

func TestRegisterAndPortsAs(t *testing.T) {
	Reset()
	Register("collect", portsBundle{P: pinger{}})
	got, ok := PortsAs[portsBundle]("collect")
	if !ok || got.P.Ping() != "pong" {
		t.Fatalf("PortsAs = %+v %v", got, ok)
	}
	if _, ok := PortsAs[portsBundle]("missing"); ok {
		t.Fatal("missing name must report !ok")
	}
	Reset()
	if _, ok := PortsAs[portsBundle]("collect"); ok {
		t.Fatal("Reset should clear the registry")
	}
}

func TestPortsOfDirectAndField(t *testing.T) {
	direct := fakeModule{ports: pinger{}}
	if v, ok := PortsOf[pingPort](direct); !ok || v.Ping() != "pong" {
		t.Fatal("direct ports lookup failed")
	}
	nested := fakeModule{ports: portsBundle{P: pinger{}}}
	if v, ok := PortsOf[pingPort](nested); !ok || v.Ping() != "pong" {
		t.Fatal("struct field ports lookup failed")
	}
	empty := fakeModule{}
	if _, ok := PortsOf[pingPort](empty); ok {
		t.Fatal("nil ports must report !ok")
	}
}

func TestMustPortsOfPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustPortsOf[pingPort](fakeModule{})
}
