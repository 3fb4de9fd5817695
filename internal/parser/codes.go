package parser

import (
	"strconv"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// protocolNames maps the well-known RTPROT_* route protocol codes to the
// stable string tokens iproute2 uses. Codes with no entry here pass through
// as their decimal string form.
var protocolNames = map[int]string{
	unix.RTPROT_UNSPEC:   "unspec",
	unix.RTPROT_REDIRECT: "redirect",
	unix.RTPROT_KERNEL:   "kernel",
	unix.RTPROT_BOOT:     "boot",
	unix.RTPROT_STATIC:   "static",
	unix.RTPROT_RA:       "ra",
	unix.RTPROT_MRT:      "mrt",
	unix.RTPROT_ZEBRA:    "zebra",
	unix.RTPROT_BIRD:     "bird",
	unix.RTPROT_DHCP:     "dhcp",
	unix.RTPROT_NTK:      "ntk",
	unix.RTPROT_MROUTED:  "mrouted",
	unix.RTPROT_BABEL:    "babel",
}

// scopeNames maps netlink.Scope values to the tokens described
var scopeNames = map[netlink.Scope]string{
	netlink.SCOPE_UNIVERSE: "universe",
	netlink.SCOPE_SITE:     "site",
	netlink.SCOPE_LINK:     "link",
	netlink.SCOPE_HOST:     "host",
	netlink.SCOPE_NOWHERE:  "nowhere",
}

// typeNames maps RTN_* route type codes to stable string tokens.
var typeNames = map[int]string{
	unix.RTN_UNSPEC:      "unspec",
	unix.RTN_UNICAST:     "unicast",
	unix.RTN_LOCAL:       "local",
	unix.RTN_BROADCAST:   "broadcast",
	unix.RTN_ANYCAST:     "anycast",
	unix.RTN_MULTICAST:   "multicast",
	unix.RTN_BLACKHOLE:   "blackhole",
	unix.RTN_UNREACHABLE: "unreachable",
	unix.RTN_PROHIBIT:    "prohibit",
}

func protocolToken(proto netlink.RouteProtocol) string {
	if name, ok := protocolNames[int(proto)]; ok {
		return name
	}
	return strconv.Itoa(int(proto))
}

func scopeToken(scope netlink.Scope) string {
	if name, ok := scopeNames[scope]; ok {
		return name
	}
	return strconv.Itoa(int(scope))
}

func typeToken(t int) string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return strconv.Itoa(t)
}
