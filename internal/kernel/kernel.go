// Package kernel implements the Kernel Subscriber: it opens
// the routing-socket subscriptions for IPv4/IPv6 route changes and
// traffic-control qdisc changes, filters and decodes them through the Event
// Parser, and forwards the result to the Session Engine.
//
// This is the split design: one netlink socket for routes,
// one go-tc handle for qdiscs, each with its own reader goroutine. Shutdown
// is a context cancellation that both readers observe at their next I/O
// wait boundary.
package kernel

import (
	"context"
	stderrors "errors"
	"sync"
	"syscall"
	"time"

	tc "github.com/florianl/go-tc"
	"github.com/pkg/errors"
	"github.com/vishvananda/netlink"

	"github.com/nlmon/frr-converge/internal/events"
	"github.com/nlmon/frr-converge/internal/parser"
	"github.com/nlmon/frr-converge/pkg/logging"
)

// Monitor is the narrow dependency the subscriber needs from the Session
// Engine: deliver a fully-decoded event for classification.
type Monitor interface {
	IngestRoute(ev events.RouteEvent)
	IngestQdisc(ev events.QdiscEvent)
}

// monitorDeadline is the read deadline passed to MonitorWithErrorFunc, which
// go-tc requires. runQdiscReader makes that call once with the subscriber's
// ctx; Stop cancels ctx and then closes the tc handle.
const monitorDeadline = time.Hour

// Subscriber owns the two kernel readers. Start/Stop are idempotent, with
// the same lifecycle shape as the rest of the process: Start() error,
// Stop() error.
type Subscriber struct {
	parser  *parser.Parser
	monitor Monitor

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	tcHandle *tc.Tc
}

// New constructs a Subscriber that decodes with p and forwards to m.
func New(p *parser.Parser, m Monitor) *Subscriber {
	return &Subscriber{parser: p, monitor: m}
}

// Start opens the route and TC subscriptions and begins forwarding events.
// Idempotent: a second call while running is a no-op.
func (s *Subscriber) Start() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	tcHandle, err := tc.Open(&tc.Config{})
	if err != nil {
		s.mu.Unlock()
		return errors.Wrap(err, "open tc connection")
	}

	s.cancel = cancel
	s.tcHandle = tcHandle
	s.mu.Unlock()

	routeUpdates := make(chan netlink.RouteUpdate)
	routeDone := make(chan struct{})
	if err := netlink.RouteSubscribeWithOptions(routeUpdates, routeDone, netlink.RouteSubscribeOptions{
		ErrorCallback: func(err error) {
			logging.Errorf("route subscription error: %v", err)
		},
	}); err != nil {
		tcHandle.Close()
		s.mu.Lock()
		s.cancel = nil
		s.tcHandle = nil
		s.mu.Unlock()
		return errors.Wrap(err, "subscribe to route updates")
	}

	s.wg.Add(2)
	go s.runRouteReader(ctx, routeUpdates, routeDone)
	go s.runQdiscReader(ctx)

	return nil
}

// Stop cancels both readers and joins them before returning. Idempotent.
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	tcHandle := s.tcHandle
	s.cancel = nil
	s.tcHandle = nil
	s.mu.Unlock()

	s.wg.Wait()

	if tcHandle != nil {
		return tcHandle.Close()
	}
	return nil
}

func (s *Subscriber) runRouteReader(ctx context.Context, updates chan netlink.RouteUpdate, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.handleRouteUpdate(update)
		}
	}
}

func (s *Subscriber) handleRouteUpdate(update netlink.RouteUpdate) {
	var kind events.RouteKind
	switch update.Type {
	case syscall.RTM_NEWROUTE:
		kind = events.RouteAdd
	case syscall.RTM_DELROUTE:
		kind = events.RouteDel
	default:
		return // all other message types are ignored silently
	}

	now := time.Now().UnixMilli()
	ev := s.parser.ParseRoute(kind, update.Route, now)
	s.monitor.IngestRoute(ev)
}

// qdiscHook builds the go-tc hook function: filter noqueue, map the
// action code to a QdiscKind, decode, and forward. Split out from
// runQdiscReader so it can be exercised without opening a real tc handle.
func (s *Subscriber) qdiscHook() func(action uint16, obj tc.Object) int {
	return func(action uint16, obj tc.Object) int {
		if parser.IsNoqueue(obj) {
			return 0
		}

		var kind events.QdiscKind
		switch action {
		case syscall.RTM_NEWQDISC:
			kind = events.QdiscAdd
		case syscall.RTM_DELQDISC:
			kind = events.QdiscDel
		case syscall.RTM_GETQDISC:
			kind = events.QdiscChange // GET folds into Change, never a trigger
		default:
			return 0
		}

		now := time.Now().UnixMilli()
		ev := s.parser.ParseQdisc(kind, obj, now)
		s.monitor.IngestQdisc(ev)
		return 0
	}
}

func (s *Subscriber) runQdiscReader(ctx context.Context) {
	defer s.wg.Done()

	hook := s.qdiscHook()

	onError := func(err error) int {
		if err == nil {
			return 0
		}
		if stderrors.Is(err, syscall.EINTR) || stderrors.Is(err, syscall.EAGAIN) {
			return 0 // transient, retried by MonitorWithErrorFunc itself
		}
		logging.Errorf("tc monitor error: %v", err)
		return 0
	}

	s.mu.Lock()
	tcHandle := s.tcHandle
	s.mu.Unlock()
	if tcHandle == nil {
		return
	}

	if err := tcHandle.MonitorWithErrorFunc(ctx, monitorDeadline, hook, onError); err != nil && ctx.Err() == nil {
		logging.Errorf("tc monitor exited: %v", err)
	}
}
