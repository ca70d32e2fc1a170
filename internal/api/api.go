// Package api implements the control plane's request dispatch surface
// (C8): a map from request-kind to handler, registered once at process
// init, with no dynamic unregister. Handlers here wire together the
// component packages (ifaceregistry, portmgr, vlanmgr, nht, routetable)
// into the named request table, and record each request to the audit
// log and event bus.
package api

import (
	"net"
	"time"

	"routerd/internal/auditlog"
	"routerd/internal/ctlerr"
	"routerd/internal/eventbus"
	"routerd/internal/ifaceregistry"
	"routerd/internal/nht"
	"routerd/internal/portmgr"
	"routerd/internal/routetable"
	"routerd/internal/vlanmgr"
)

// Kind identifies a request in the dispatch table.
type Kind string

const (
	PortAdd     Kind = "port.add"
	PortDel     Kind = "port.del"
	PortGet     Kind = "port.get"
	PortList    Kind = "port.list"
	PortStats   Kind = "port.stats"
	IfaceAdd    Kind = "iface.add"
	IfaceSet    Kind = "iface.set"
	IfaceDel    Kind = "iface.del"
	IfaceStats  Kind = "iface.stats"
	NHAdd       Kind = "ip4.nh.add"
	NHDel       Kind = "ip4.nh.del"
	NHList      Kind = "ip4.nh.list"
	RouteAdd    Kind = "ip4.route.add"
	RouteDel    Kind = "ip4.route.del"
	RouteGet    Kind = "ip4.route.get"
)

// Handler processes one request kind's opaque request value and
// returns an opaque response value: the wire protocol's "opaque
// request buffer / optional response buffer" shape, Go's equivalent
// being a typed request struct in, any out.
type Handler func(req any) (resp any, err error)

// Dispatcher is the process-wide request-kind -> Handler map. Handler
// registration happens once at construction (New); there is no
// unregister.
type Dispatcher struct {
	handlers map[Kind]Handler
	audit    *auditlog.Logger
	events   *eventbus.Hub
}

// Deps bundles every component the dispatcher's handlers call into.
type Deps struct {
	Registry *ifaceregistry.Registry
	Ports    *portmgr.Manager
	Vlans    *vlanmgr.Manager
	NextHops *nht.Table
	Routes   *routetable.Table
	Audit    *auditlog.Logger
	Events   *eventbus.Hub
}

// New builds a Dispatcher with every request handler registered.
func New(d Deps) *Dispatcher {
	disp := &Dispatcher{handlers: make(map[Kind]Handler), audit: d.Audit, events: d.Events}

	disp.handlers[PortAdd] = portAddHandler(d)
	disp.handlers[PortDel] = portDelHandler(d)
	disp.handlers[PortGet] = portGetHandler(d)
	disp.handlers[PortList] = portListHandler(d)
	disp.handlers[PortStats] = portStatsHandler(d)
	disp.handlers[IfaceAdd] = ifaceAddHandler(d)
	disp.handlers[IfaceSet] = ifaceSetHandler(d)
	disp.handlers[IfaceDel] = ifaceDelHandler(d)
	disp.handlers[IfaceStats] = ifaceStatsHandler(d)
	disp.handlers[NHAdd] = nhAddHandler(d)
	disp.handlers[NHDel] = nhDelHandler(d)
	disp.handlers[NHList] = nhListHandler(d)
	disp.handlers[RouteAdd] = routeAddHandler(d)
	disp.handlers[RouteDel] = routeDelHandler(d)
	disp.handlers[RouteGet] = routeGetHandler(d)

	return disp
}

// Dispatch looks up the handler for kind and runs it, recording the
// outcome to the audit log and publishing a best-effort event bus
// notification. target is a short human label (name/id/prefix) for the
// audit record.
func (d *Dispatcher) Dispatch(kind Kind, target string, req any) (any, error) {
	h, ok := d.handlers[kind]
	if !ok {
		return nil, ctlerr.Invalid(string(kind), "unknown request kind")
	}

	start := time.Now()
	resp, err := h(req)
	dur := time.Since(start)

	if d.audit != nil {
		if err != nil {
			d.audit.Failure(string(kind), target, dur, err)
		} else {
			d.audit.Success(string(kind), target, dur)
		}
	}
	if d.events != nil && err == nil {
		d.events.Publish(kindToEvent(kind), map[string]any{"kind": kind, "target": target})
	}
	return resp, err
}

func kindToEvent(k Kind) eventbus.Kind {
	switch k {
	case PortAdd:
		return eventbus.KindPortAdded
	case PortDel:
		return eventbus.KindPortDeleted
	case IfaceAdd:
		return eventbus.KindIfaceAdded
	case IfaceSet:
		return eventbus.KindIfaceChanged
	case IfaceDel:
		return eventbus.KindIfaceDeleted
	case RouteAdd:
		return eventbus.KindRouteAdded
	case RouteDel:
		return eventbus.KindRouteDeleted
	default:
		return eventbus.KindIfaceChanged
	}
}

// ── port.* ──

// PortAddRequest is the port.add request shape.
type PortAddRequest struct {
	Name    string
	DevArgs string
	Flags   ifaceregistry.Flags
	MTU     uint16
	VRF     uint16
	RxqSize int
	TxqSize int
}

func portAddHandler(d Deps) Handler {
	return func(raw any) (any, error) {
		req := raw.(PortAddRequest)
		id, err := d.Ports.Add(req.Name, req.Flags, req.MTU, req.VRF, portmgr.AddParams{
			DevArgs: req.DevArgs, RxqSize: req.RxqSize, TxqSize: req.TxqSize,
		})
		if err != nil {
			return nil, err
		}
		return id, nil
	}
}

func portDelHandler(d Deps) Handler {
	return func(raw any) (any, error) {
		name := raw.(string)
		return nil, d.Ports.Delete(name)
	}
}

func portGetHandler(d Deps) Handler {
	return func(raw any) (any, error) {
		name := raw.(string)
		iface, ok := d.Registry.ByName(ifaceregistry.TypePort, name)
		if !ok {
			return nil, ctlerr.NoDevice("port.get", "no such port: "+name)
		}
		return toAPI(d, iface), nil
	}
}

func portListHandler(d Deps) Handler {
	return func(raw any) (any, error) {
		var views []any
		for cursor := ifaceregistry.InvalidID; ; {
			iface, ok := d.Registry.Next(ifaceregistry.TypePort, cursor)
			if !ok {
				break
			}
			cursor = iface.ID
			views = append(views, toAPI(d, iface))
		}
		return views, nil
	}
}

func toAPI(d Deps, iface *ifaceregistry.Iface) any {
	return d.Registry.ToAPI(iface)
}

func portStatsHandler(d Deps) Handler {
	return func(raw any) (any, error) {
		name := raw.(string)
		return d.Ports.Stats(name)
	}
}

// ── iface.* (port or vlan) ──

// IfaceAddRequest is the iface.add request shape; Type selects which
// descriptor handles it. PortParams/VlanParams are mutually exclusive
// depending on Type.
type IfaceAddRequest struct {
	Type       ifaceregistry.Type
	Name       string
	Flags      ifaceregistry.Flags
	MTU        uint16
	VRF        uint16
	PortParams portmgr.AddParams
	VlanParams vlanmgr.AddParams
}

func ifaceAddHandler(d Deps) Handler {
	return func(raw any) (any, error) {
		req := raw.(IfaceAddRequest)
		switch req.Type {
		case ifaceregistry.TypePort:
			return d.Ports.Add(req.Name, req.Flags, req.MTU, req.VRF, req.PortParams)
		case ifaceregistry.TypeVlan:
			return d.Vlans.Add(req.Name, req.Flags, req.MTU, req.VRF, req.VlanParams)
		default:
			return nil, ctlerr.Invalid("iface.add", "unknown interface type")
		}
	}
}

// IfaceSetRequest is the iface.set request shape.
type IfaceSetRequest struct {
	ID    ifaceregistry.ID
	Mask  ifaceregistry.SetMask
	Flags ifaceregistry.Flags
	MTU   uint16
	VRF   uint16
	Info  any
}

func ifaceSetHandler(d Deps) Handler {
	return func(raw any) (any, error) {
		req := raw.(IfaceSetRequest)
		return nil, d.Registry.Set(req.ID, req.Mask, req.Flags, req.MTU, req.VRF, req.Info)
	}
}

func ifaceDelHandler(d Deps) Handler {
	return func(raw any) (any, error) {
		id := raw.(ifaceregistry.ID)
		return nil, d.Registry.Del(id)
	}
}

// IfaceStatsView is the generic counter shape reported by iface.stats
// for any interface type. Port interfaces carry a queue/pool detail
// block (portmgr.Stats); Vlan interfaces have none beyond state.
type IfaceStatsView struct {
	ID    ifaceregistry.ID
	Name  string
	Type  ifaceregistry.Type
	State ifaceregistry.State
	Flags ifaceregistry.Flags
	Queue any
}

func ifaceStatsHandler(d Deps) Handler {
	return func(raw any) (any, error) {
		id := raw.(ifaceregistry.ID)
		iface, ok := d.Registry.FromID(id)
		if !ok {
			return nil, ctlerr.NoDevice("iface.stats", "no such interface")
		}
		view := IfaceStatsView{ID: iface.ID, Name: iface.Name, Type: iface.Type, State: iface.State, Flags: iface.Flags}
		if iface.Type == ifaceregistry.TypePort {
			if stats, err := d.Ports.Stats(iface.Name); err == nil {
				view.Queue = stats
			}
		}
		return view, nil
	}
}

// ── ip4.nh.* ──

// NHAddRequest is the ip4.nh.add request shape.
type NHAddRequest struct {
	Host    uint32
	IfaceID ifaceregistry.ID
	MAC     net.HardwareAddr
	ExistOk bool
}

func nhAddHandler(d Deps) Handler {
	return func(raw any) (any, error) {
		req := raw.(NHAddRequest)
		return nil, d.NextHops.Add(time.Now(), d.Routes, req.Host, req.IfaceID, req.MAC, req.ExistOk)
	}
}

// NHDelRequest is the ip4.nh.del request shape.
type NHDelRequest struct {
	Host      uint32
	MissingOk bool
}

func nhDelHandler(d Deps) Handler {
	return func(raw any) (any, error) {
		req := raw.(NHDelRequest)
		return nil, d.NextHops.Del(d.Routes, req.Host, req.MissingOk)
	}
}

func nhListHandler(d Deps) Handler {
	return func(raw any) (any, error) {
		return d.NextHops.List(time.Now()), nil
	}
}

// ── ip4.route.* ──

// RouteAddRequest is the ip4.route.add request shape.
type RouteAddRequest struct {
	PrefixAddr uint32
	PrefixLen  int
	GatewayIP  uint32
	ExistOk    bool
}

func routeAddHandler(d Deps) Handler {
	return func(raw any) (any, error) {
		req := raw.(RouteAddRequest)
		nhIdx := d.NextHops.Lookup(req.GatewayIP)
		if nhIdx == nht.NotFound {
			if !req.ExistOk {
				return nil, ctlerr.NoEnt("ip4.route.add", "gateway has no next-hop")
			}
			nhIdx = d.NextHops.LookupOrInsert(req.GatewayIP)
		}
		return nil, d.Routes.RouteInsert(req.PrefixAddr, req.PrefixLen, nhIdx, req.ExistOk)
	}
}

// RouteDelRequest is the ip4.route.del request shape.
type RouteDelRequest struct {
	PrefixAddr uint32
	PrefixLen  int
	MissingOk  bool
}

func routeDelHandler(d Deps) Handler {
	return func(raw any) (any, error) {
		req := raw.(RouteDelRequest)
		err := d.Routes.RouteDelete(req.PrefixAddr, req.PrefixLen)
		if err != nil && req.MissingOk {
			var ce *ctlerr.Error
			if asCtlErr(err, &ce) && ce.Kind == ctlerr.NotFound {
				return nil, nil
			}
		}
		return nil, err
	}
}

func routeGetHandler(d Deps) Handler {
	return func(raw any) (any, error) {
		addr := raw.(uint32)
		idx := d.Routes.RouteLookup(addr)
		if idx == nht.NotFound {
			return nil, ctlerr.Unreachable("ip4.route.get", "no route to address")
		}
		return d.NextHops.Get(idx), nil
	}
}

func asCtlErr(err error, target **ctlerr.Error) bool {
	ce, ok := err.(*ctlerr.Error)
	if ok {
		*target = ce
	}
	return ok
}
