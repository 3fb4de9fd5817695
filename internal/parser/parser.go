// Package parser decodes netlink route messages and go-tc qdisc objects
// into the flat events.Attrs maps the Session Engine consumes. It is the
// only place interface-index lookups, protocol/scope/type code tables, and
// IPv4/IPv6 textual rendering happen, so the mapping stays byte-for-byte
// stable across runs.
package parser

import (
	"fmt"
	"net"
	"sync"

	tc "github.com/florianl/go-tc"
	"github.com/vishvananda/netlink"

	"github.com/nlmon/frr-converge/internal/events"
)

// Parser resolves interface indices to names with a small cache, since the
// kernel delivers events with an ifindex but not a name and LinkByIndex is a
// netlink round-trip we do not want on every event.
type Parser struct {
	mu    sync.Mutex
	names map[int]string
}

func New() *Parser {
	return &Parser{names: make(map[int]string)}
}

// interfaceName resolves ifindex to a name, falling back to "if<index>" on
// lookup failure A failed lookup is not cached, so a later
// event for the same interface (e.g. after it comes up) can resolve.
func (p *Parser) interfaceName(ifindex int) string {
	if ifindex <= 0 {
		return events.SentinelNA
	}

	p.mu.Lock()
	if name, ok := p.names[ifindex]; ok {
		p.mu.Unlock()
		return name
	}
	p.mu.Unlock()

	link, err := netlink.LinkByIndex(ifindex)
	if err != nil {
		return fmt.Sprintf("if%d", ifindex)
	}

	name := link.Attrs().Name
	p.mu.Lock()
	p.names[ifindex] = name
	p.mu.Unlock()
	return name
}

// ParseRoute decodes a kernel route into the destination/gateway/interface/
// family/protocol/scope/type attrs described
func (p *Parser) ParseRoute(kind events.RouteKind, route netlink.Route, timestamp int64) events.RouteEvent {
	attrs := events.Attrs{}

	if route.Dst != nil {
		attrs[events.AttrDestination] = route.Dst.String()
	} else {
		attrs[events.AttrDestination] = events.SentinelDefault
	}

	if route.Gw != nil {
		attrs[events.AttrGateway] = route.Gw.String()
	} else {
		attrs[events.AttrGateway] = events.SentinelNA
	}

	if route.Src != nil {
		attrs[events.AttrPrefSrc] = route.Src.String()
	} else {
		attrs[events.AttrPrefSrc] = events.SentinelNA
	}

	if route.LinkIndex > 0 {
		attrs[events.AttrInterface] = p.interfaceName(route.LinkIndex)
		attrs[events.AttrIfindex] = fmt.Sprintf("%d", route.LinkIndex)
	} else {
		attrs[events.AttrInterface] = events.SentinelNA
		attrs[events.AttrIfindex] = "0"
	}

	attrs[events.AttrFamily] = familyToken(route)
	attrs[events.AttrTable] = fmt.Sprintf("%d", route.Table)
	attrs[events.AttrProtocol] = protocolToken(route.Protocol)
	attrs[events.AttrScope] = scopeToken(route.Scope)
	attrs[events.AttrType] = typeToken(route.Type)

	if route.Priority > 0 {
		attrs[events.AttrPriority] = fmt.Sprintf("%d", route.Priority)
	} else {
		attrs[events.AttrPriority] = events.SentinelNA
	}

	return events.RouteEvent{
		Timestamp: timestamp,
		Kind:      kind,
		Attrs:     attrs,
	}
}

// familyToken infers the address family from whichever of Dst/Gw is set,
// since the version of netlink.Route vendored here does not expose Family.
func familyToken(route netlink.Route) string {
	var ip net.IP
	switch {
	case route.Dst != nil:
		ip = route.Dst.IP
	case route.Gw != nil:
		ip = route.Gw
	default:
		return "0"
	}
	if ip.To4() != nil {
		return "2" // AF_INET
	}
	return "10" // AF_INET6
}

// ParseQdisc decodes a go-tc object into the interface/handle/parent/kind/
// is_netem attrs described
func (p *Parser) ParseQdisc(kind events.QdiscKind, obj tc.Object, timestamp int64) events.QdiscEvent {
	attrs := events.Attrs{}

	ifindex := int(obj.Ifindex)
	iface := p.interfaceName(ifindex)
	attrs[events.AttrInterface] = iface
	attrs[events.AttrIfindex] = fmt.Sprintf("%d", ifindex)
	attrs[events.AttrHandle] = fmt.Sprintf("%d", obj.Handle)
	attrs[events.AttrParent] = fmt.Sprintf("%d", obj.Parent)

	kindStr := obj.Kind
	if kindStr == "" {
		kindStr = events.SentinelNA
	}
	attrs[events.AttrKind] = kindStr

	isNetem := kindStr == "netem"
	attrs[events.AttrIsNetem] = fmt.Sprintf("%t", isNetem)

	return events.QdiscEvent{
		Timestamp: timestamp,
		Kind:      kind,
		Attrs:     attrs,
		Interface: iface,
		IsNetem:   isNetem,
	}
}

// IsNoqueue reports whether a raw qdisc object should be discarded before
// any further processing,'s discard policy.
func IsNoqueue(obj tc.Object) bool {
	return obj.Kind == "noqueue"
}
