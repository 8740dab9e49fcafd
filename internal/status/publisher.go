// Package status publishes the aggregate daily change to other local
// processes over the D-Bus session bus.
package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	"github.com/rs/zerolog"
)

// ErrNameTaken means another process owns the well-known name. Callers keep
// running without serving.
var ErrNameTaken = errors.New("bus name already owned")

const (
	propertiesIface = "org.freedesktop.DBus.Properties"
	introspectIface = "org.freedesktop.DBus.Introspectable"
	statusJSONProp  = "StatusJson"
	activateMethod  = "Activate"
	errUnknownIface = "org.freedesktop.DBus.Error.UnknownInterface"
	errUnknownProp  = "org.freedesktop.DBus.Error.UnknownProperty"
	errPropReadOnly = "org.freedesktop.DBus.Error.PropertyReadOnly"
)

type BusConfig struct {
	Name      string
	Path      string
	Interface string
}

// Publisher owns the Aggregate and serves it as the StatusJson property.
type Publisher struct {
	cfg       BusConfig
	agg       *Aggregate
	activator Activator
	log       zerolog.Logger
}

// NewPublisher returns a publisher with a zero aggregate. activator may be
// nil, in which case Activate does nothing.
func NewPublisher(cfg BusConfig, activator Activator, log zerolog.Logger) *Publisher {
	return &Publisher{
		cfg:       cfg,
		agg:       &Aggregate{},
		activator: activator,
		log:       log.With().Str("component", "publisher").Logger(),
	}
}

// Aggregate is the handle the refresh engine writes to.
func (p *Publisher) Aggregate() *Aggregate {
	return p.agg
}

func (p *Publisher) Status() Payload {
	return Render(p.agg.Load())
}

func (p *Publisher) Activate(ctx context.Context) error {
	if p.activator == nil {
		p.log.Debug().Msg("activate ignored, no activator")
		return nil
	}
	return p.activator.Activate(ctx)
}

// Serve claims the bus name and answers calls until ctx is done. It
// returns ErrNameTaken when the name is owned by someone else.
func (p *Publisher) Serve(ctx context.Context) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}
	defer conn.Close()

	if err := p.export(conn); err != nil {
		return err
	}
	reply, err := conn.RequestName(p.cfg.Name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request name %s: %w", p.cfg.Name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("%s: %w", p.cfg.Name, ErrNameTaken)
	}
	p.log.Info().Str("name", p.cfg.Name).Str("path", p.cfg.Path).Msg("serving status on session bus")

	<-ctx.Done()
	if _, err := conn.ReleaseName(p.cfg.Name); err != nil {
		p.log.Warn().Err(err).Msg("release bus name failed")
	}
	return nil
}

func (p *Publisher) export(conn *dbus.Conn) error {
	path := dbus.ObjectPath(p.cfg.Path)
	if err := conn.Export(busObject{p}, path, p.cfg.Interface); err != nil {
		return fmt.Errorf("export %s: %w", p.cfg.Interface, err)
	}
	if err := conn.Export(properties{p}, path, propertiesIface); err != nil {
		return fmt.Errorf("export properties: %w", err)
	}
	node := &introspect.Node{
		Name: p.cfg.Path,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:    p.cfg.Interface,
				Methods: []introspect.Method{{Name: activateMethod}},
				Properties: []introspect.Property{
					{Name: statusJSONProp, Type: "s", Access: "read"},
				},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), path, introspectIface); err != nil {
		return fmt.Errorf("export introspectable: %w", err)
	}
	return nil
}

// busObject carries the methods of the status interface.
type busObject struct {
	p *Publisher
}

func (o busObject) Activate() *dbus.Error {
	if err := o.p.Activate(context.Background()); err != nil {
		o.p.log.Warn().Err(err).Msg("activate failed")
		return dbus.MakeFailedError(err)
	}
	return nil
}

// properties computes StatusJson on every read.
type properties struct {
	p *Publisher
}

func (o properties) Get(iface, name string) (dbus.Variant, *dbus.Error) {
	if iface != o.p.cfg.Interface {
		return dbus.Variant{}, dbus.NewError(errUnknownIface, []interface{}{iface})
	}
	if name != statusJSONProp {
		return dbus.Variant{}, dbus.NewError(errUnknownProp, []interface{}{name})
	}
	return dbus.MakeVariant(o.p.Status().JSON()), nil
}

func (o properties) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != o.p.cfg.Interface {
		return nil, dbus.NewError(errUnknownIface, []interface{}{iface})
	}
	return map[string]dbus.Variant{
		statusJSONProp: dbus.MakeVariant(o.p.Status().JSON()),
	}, nil
}

func (o properties) Set(iface, name string, _ dbus.Variant) *dbus.Error {
	if iface != o.p.cfg.Interface {
		return dbus.NewError(errUnknownIface, []interface{}{iface})
	}
	if name != statusJSONProp {
		return dbus.NewError(errUnknownProp, []interface{}{name})
	}
	return dbus.NewError(errPropReadOnly, []interface{}{name})
}
