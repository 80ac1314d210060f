package env

import (
	"fmt"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/rsbus/pkg/feedback"
	fx "github.com/robotalks/rsbus/pkg/framework"
	"github.com/robotalks/rsbus/pkg/mqtt"
	"github.com/robotalks/rsbus/pkg/rsbus"
	"github.com/robotalks/rsbus/pkg/rsbus/edge"
	"github.com/robotalks/rsbus/pkg/rsbus/uart"
)

// Device is an RS-bus device assembled from Config.
type Device struct {
	Config   *Config
	Source   rsbus.PulseSource
	Bus      *rsbus.Bus
	Feedback *feedback.Announcer
	// Runners are the IO goroutines, e.g. the transmitter and edge bridge.
	Runners  []fx.Runnable
	Reporter *mqtt.Reporter
}

// NewDevice creates the Device. Serial ports and connections are opened here,
// the broker is connected when the loop runs.
func (c *Config) NewDevice() (*Device, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	addrs, _ := c.ParseAddresses()
	typ, _ := rsbus.ParseDeviceType(c.Type)
	opts, _ := c.BusOptions()
	src, _ := c.NewPulseSource()

	d := &Device{Config: c, Source: src}
	var sink rsbus.ByteSink
	if c.TxPort != "" {
		s, err := uart.Open(c.TxPort, c.TxBaud)
		if err != nil {
			return nil, fmt.Errorf("open transmitter %s error: %v", c.TxPort, err)
		}
		sink = s
		d.Runners = append(d.Runners, s)
	} else {
		glog.Warning("no transmitter port, frames are discarded")
	}

	bus, err := rsbus.New(src, sink, opts...)
	if err != nil {
		return nil, err
	}
	d.Bus = bus
	for _, addr := range addrs {
		if _, err := bus.Connect(addr, typ, c.FEC); err != nil {
			return nil, err
		}
	}
	d.Feedback = feedback.New(bus)

	if c.EdgesURL != "" {
		conn, err := edge.Open(c.EdgesURL)
		if err != nil {
			return nil, fmt.Errorf("open edges %s error: %v", c.EdgesURL, err)
		}
		d.Runners = append(d.Runners, edge.NewBridge(src, conn))
	} else {
		glog.Warning("no edges URL, the bus is never polled")
	}

	if c.MQTTBrokerURL != "" {
		if d.Reporter, err = mqtt.NewReporter(c.MQTTBrokerURL, c.ID, bus); err != nil {
			return nil, err
		}
		d.Reporter.Feedback = d.Feedback
		d.Reporter.Interval = c.ReportInterval
	}
	glog.Infof("RS-bus device %s: addresses %v, type %s, counter %s", c.ID, addrs, typ, c.Counter)
	return d, nil
}

// MustNewDevice creates Device and fails on error.
func (c *Config) MustNewDevice() *Device {
	d, err := c.NewDevice()
	if err != nil {
		log.Fatalln(err)
	}
	return d
}

// AddToLoop implements framework.LoopAdder.
func (d *Device) AddToLoop(l *fx.Loop) {
	l.Add(d.Bus, d.Feedback)
	l.AddRunnable(d.Runners...)
	if d.Reporter != nil {
		l.Add(d.Reporter)
	}
}
