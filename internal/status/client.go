package status

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Client reads the published status of a running instance.
type Client struct {
	conn  *dbus.Conn
	obj   dbus.BusObject
	iface string
}

func Dial(cfg BusConfig) (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &Client{
		conn:  conn,
		obj:   conn.Object(cfg.Name, dbus.ObjectPath(cfg.Path)),
		iface: cfg.Interface,
	}, nil
}

func (c *Client) Status(ctx context.Context) (Payload, error) {
	var v dbus.Variant
	err := c.obj.CallWithContext(ctx, propertiesIface+".Get", 0, c.iface, statusJSONProp).Store(&v)
	if err != nil {
		return Payload{}, fmt.Errorf("get %s: %w", statusJSONProp, err)
	}
	raw, ok := v.Value().(string)
	if !ok {
		return Payload{}, fmt.Errorf("%s has signature %s, want s", statusJSONProp, v.Signature())
	}
	var out Payload
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Payload{}, fmt.Errorf("decode %s: %w", statusJSONProp, err)
	}
	return out, nil
}

func (c *Client) Activate(ctx context.Context) error {
	if err := c.obj.CallWithContext(ctx, c.iface+"."+activateMethod, 0).Err; err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
