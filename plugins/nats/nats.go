// Package natsplugin publishes every rendered table on NATS and lets
// remote clients ask for a refresh or for the current table.
package natsplugin

import (
	"errors"
	"fmt"

	"github.com/cdwhistler/netscan/device"
	"github.com/cdwhistler/netscan/logger"
	"github.com/cdwhistler/netscan/plugins"
	"github.com/nats-io/nats.go"
)

var log = logger.GetLogger("plugins/nats")

// Plugin wraps plugin registration information
var Plugin = plugins.Plugin{
	Name:  "nats",
	Setup: setupNATS,
}

func init() {
	if err := plugins.RegisterPlugin(&Plugin); err != nil {
		log.Fatalf("%v", err)
	}
}

type publisher interface {
	Publish(subject string, v interface{}) error
}

type NATSController struct {
	nc  publisher
	ctl plugins.Controller
	ec  *nats.EncodedConn
}

func NewNATSController(nc publisher, ctl plugins.Controller) *NATSController {
	return &NATSController{nc: nc, ctl: ctl}
}

func setupNATS(ctl plugins.Controller, args ...string) (plugins.Sink, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("invalid number of arguments, want: 1 (server url), got: %d", len(args))
	}
	if args[0] == "" {
		return nil, errors.New("server url cannot be empty")
	}
	conn, err := nats.Connect(args[0], nats.Name("netscan"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", args[0], err)
	}
	ec, err := nats.NewEncodedConn(conn, nats.JSON_ENCODER)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("encoded connection: %w", err)
	}
	controller := NewNATSController(ec, ctl)
	controller.ec = ec
	if err := controller.Subscribe(); err != nil {
		ec.Close()
		return nil, err
	}
	log.Printf("Publishing device table on %s at %s", TableTopic, args[0])
	return controller, nil
}

func (controller *NATSController) Subscribe() error {
	_, err := controller.ec.Subscribe(RefreshTopic, controller.handleRefresh)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", RefreshTopic, err)
	}
	_, err = controller.ec.Subscribe(FindAllTopic, controller.handleFindAll)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", FindAllTopic, err)
	}
	return nil
}

// Render publishes devices on the table subject.
func (controller *NATSController) Render(devices []device.Device) error {
	if devices == nil {
		devices = []device.Device{}
	}
	if err := controller.nc.Publish(TableTopic, devices); err != nil {
		return fmt.Errorf("publish %s: %w", TableTopic, err)
	}
	return nil
}

func (controller *NATSController) Close() error {
	if controller.ec != nil {
		controller.ec.Close()
	}
	return nil
}

func (controller *NATSController) handleRefresh(msg *nats.Msg) {
	log.Debugf("Received message on subject %s", msg.Subject)
	controller.ctl.Refresh()
	if msg.Reply == "" {
		return
	}
	if err := controller.nc.Publish(msg.Reply, "accepted"); err != nil {
		log.Errorf("publish refresh reply: %v", err)
	}
}

func (controller *NATSController) handleFindAll(msg *nats.Msg) {
	log.Debugf("Received message on subject %s", msg.Subject)
	if msg.Reply == "" {
		return
	}
	if err := controller.nc.Publish(msg.Reply, controller.ctl.Snapshot()); err != nil {
		log.Errorf("publish all devices: %v", err)
	}
}
