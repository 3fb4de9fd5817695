package parser

import (
	"net"
	"reflect"
	"testing"

	tc "github.com/florianl/go-tc"
	"github.com/vishvananda/netlink"

	"github.com/nlmon/frr-converge/internal/events"
)

func TestParseRoute_Fields(t *testing.T) {
	_, dst, err := net.ParseCIDR("2001:db8::/64")
	if err != nil {
		t.Fatalf("ParseCIDR() error = %v", err)
	}

	route := netlink.Route{
		Dst:       dst,
		LinkIndex: 999999, // no such interface in any test environment
		Table:     254,
		Protocol:  netlink.RouteProtocol(4), // RTPROT_STATIC
		Scope:     netlink.SCOPE_UNIVERSE,
		Type:      1, // RTN_UNICAST
	}

	p := New()
	ev := p.ParseRoute(events.RouteDel, route, 50)

	if ev.Kind != events.RouteDel {
		t.Errorf("Kind = %v, want RouteDel", ev.Kind)
	}
	if ev.Attrs[events.AttrDestination] != "2001:db8::/64" {
		t.Errorf("destination = %q, want %q", ev.Attrs[events.AttrDestination], "2001:db8::/64")
	}
	if ev.Attrs[events.AttrGateway] != events.SentinelNA {
		t.Errorf("gateway = %q, want sentinel N/A", ev.Attrs[events.AttrGateway])
	}
	if ev.Attrs[events.AttrInterface] != "if999999" {
		t.Errorf("interface = %q, want fallback if999999", ev.Attrs[events.AttrInterface])
	}
	if ev.Attrs[events.AttrProtocol] != "static" {
		t.Errorf("protocol = %q, want static", ev.Attrs[events.AttrProtocol])
	}
	if ev.Attrs[events.AttrScope] != "universe" {
		t.Errorf("scope = %q, want universe", ev.Attrs[events.AttrScope])
	}
	if ev.Attrs[events.AttrType] != "unicast" {
		t.Errorf("type = %q, want unicast", ev.Attrs[events.AttrType])
	}
}

func TestParseRoute_NoDestinationDefaultsToDefault(t *testing.T) {
	p := New()
	ev := p.ParseRoute(events.RouteAdd, netlink.Route{}, 0)

	if ev.Attrs[events.AttrDestination] != events.SentinelDefault {
		t.Errorf("destination = %q, want sentinel default", ev.Attrs[events.AttrDestination])
	}
	if ev.Attrs[events.AttrInterface] != events.SentinelNA {
		t.Errorf("interface = %q, want sentinel N/A", ev.Attrs[events.AttrInterface])
	}
}

func TestParseRoute_UnknownCodePassesThroughAsDecimal(t *testing.T) {
	p := New()
	ev := p.ParseRoute(events.RouteAdd, netlink.Route{Protocol: netlink.RouteProtocol(199)}, 0)

	if ev.Attrs[events.AttrProtocol] != "199" {
		t.Errorf("protocol = %q, want decimal passthrough 199", ev.Attrs[events.AttrProtocol])
	}
}

func TestParseRoute_Deterministic(t *testing.T) {
	_, dst, _ := net.ParseCIDR("10.0.0.0/24")
	route := netlink.Route{Dst: dst, Gw: net.ParseIP("10.0.0.1"), LinkIndex: 2, Table: 254}

	p := New()
	a := p.ParseRoute(events.RouteAdd, route, 100)
	b := p.ParseRoute(events.RouteAdd, route, 100)

	if !reflect.DeepEqual(a.Attrs, b.Attrs) {
		t.Errorf("parsing the same route twice produced different attrs:\n%v\n%v", a.Attrs, b.Attrs)
	}
}

func TestParseQdisc_IsNetem(t *testing.T) {
	p := New()
	obj := tc.Object{}
	obj.Ifindex = 888888
	obj.Handle = 1
	obj.Parent = 0xffffffff
	obj.Kind = "netem"

	ev := p.ParseQdisc(events.QdiscAdd, obj, 0)

	if !ev.IsNetem {
		t.Error("IsNetem = false, want true for kind=netem")
	}
	if ev.Attrs[events.AttrIsNetem] != "true" {
		t.Errorf("attrs[is_netem] = %q, want true", ev.Attrs[events.AttrIsNetem])
	}
	if ev.Interface != "if888888" {
		t.Errorf("Interface = %q, want fallback if888888", ev.Interface)
	}
}

func TestParseQdisc_MissingKindDefaultsToNA(t *testing.T) {
	p := New()
	ev := p.ParseQdisc(events.QdiscDel, tc.Object{}, 0)

	if ev.Attrs[events.AttrKind] != events.SentinelNA {
		t.Errorf("kind = %q, want sentinel N/A", ev.Attrs[events.AttrKind])
	}
	if ev.IsNetem {
		t.Error("IsNetem = true, want false when kind is absent")
	}
}

func TestIsNoqueue(t *testing.T) {
	noqueue := tc.Object{}
	noqueue.Kind = "noqueue"
	if !IsNoqueue(noqueue) {
		t.Error("IsNoqueue() = false, want true for kind=noqueue")
	}

	netem := tc.Object{}
	netem.Kind = "netem"
	if IsNoqueue(netem) {
		t.Error("IsNoqueue() = true, want false for kind=netem")
	}
}
