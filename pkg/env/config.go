// Package env sets up an RS-bus device from flags and environment.
package env

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robotalks/rsbus/pkg/mqtt"
	"github.com/robotalks/rsbus/pkg/rsbus"
	"github.com/robotalks/rsbus/pkg/rsbus/uart"
)

// Pulse counter backends.
const (
	CounterEdge  = "edge"
	CounterEvent = "event"
)

// Config provides the options of an RS-bus device.
type Config struct {
	// Addresses is a comma separated list of RS-bus addresses, e.g. 5,6.
	Addresses string
	// Type is the device type reported in every frame: switch or feedback.
	Type string
	// FEC is the number of extra copies sent of every frame.
	FEC int

	ParityPolicy string
	PulsePolicy  string

	// Counter selects the pulse counter backend: edge or event.
	Counter string
	// Timer ticks the classifier from a dedicated timer.
	Timer bool

	// EdgesURL is where bus transitions are read from.
	// e.g. serial:///dev/ttyACM0?baud=115200, tcp://host:port, ws://host/path
	EdgesURL string
	// TxPort is the serial port of the transmitter, empty discards frames.
	TxPort string
	TxBaud int

	// MQTTBrokerURL specifies the MQTT broker to use, empty disables it.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL  string
	ID             string
	ReportInterval time.Duration
}

var defaultConfig = Config{
	Addresses:      "1",
	Type:           rsbus.Switch.String(),
	ParityPolicy:   rsbus.DefaultParityPolicy.String(),
	PulsePolicy:    rsbus.DefaultPulseCountPolicy.String(),
	Counter:        CounterEdge,
	TxBaud:         uart.DefaultBaudRate,
	MQTTBrokerURL:  "mqtt://localhost:1883/rsbus/",
	ReportInterval: mqtt.DefaultReportInterval,
}

func init() {
	LoadEnv(&defaultConfig, os.Getenv)
	if defaultConfig.ID == "" {
		defaultConfig.ID = MachineID()
	}
}

// LoadEnv overrides conf with the RSBUS_* variables found by getenv.
// Malformed numbers are ignored.
func LoadEnv(conf *Config, getenv func(string) string) {
	strs := map[string]*string{
		"RSBUS_ADDRESSES":     &conf.Addresses,
		"RSBUS_TYPE":          &conf.Type,
		"RSBUS_PARITY_POLICY": &conf.ParityPolicy,
		"RSBUS_PULSE_POLICY":  &conf.PulsePolicy,
		"RSBUS_COUNTER":       &conf.Counter,
		"RSBUS_EDGES":         &conf.EdgesURL,
		"RSBUS_TX_PORT":       &conf.TxPort,
		"RSBUS_MQTT_URL":      &conf.MQTTBrokerURL,
		"RSBUS_ID":            &conf.ID,
	}
	for key, ptr := range strs {
		if val := getenv(key); val != "" {
			*ptr = val
		}
	}
	if val, err := strconv.Atoi(getenv("RSBUS_FEC")); err == nil {
		conf.FEC = val
	}
	if val, err := strconv.Atoi(getenv("RSBUS_TX_BAUD")); err == nil {
		conf.TxBaud = val
	}
	if val, err := strconv.ParseBool(getenv("RSBUS_TIMER")); err == nil {
		conf.Timer = val
	}
	if val, err := time.ParseDuration(getenv("RSBUS_REPORT")); err == nil {
		conf.ReportInterval = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	c := &defaultConfig
	flag.StringVar(&c.Addresses, "addresses", c.Addresses, "RS-bus addresses, comma separated")
	flag.StringVar(&c.Type, "type", c.Type, "Device type: switch or feedback")
	flag.IntVar(&c.FEC, "fec", c.FEC, "Extra copies sent of every frame")
	flag.StringVar(&c.ParityPolicy, "parity-policy", c.ParityPolicy, "Retransmit on parity errors: never, if-sent or always")
	flag.StringVar(&c.PulsePolicy, "pulse-policy", c.PulsePolicy, "Retransmit on pulse count errors: never, if-sent or always")
	flag.StringVar(&c.Counter, "counter", c.Counter, "Pulse counter: edge or event")
	flag.BoolVar(&c.Timer, "timer", c.Timer, "Tick the bus classifier from a dedicated timer")
	flag.StringVar(&c.EdgesURL, "edges", c.EdgesURL, "URL to read bus transitions from")
	flag.StringVar(&c.TxPort, "tx", c.TxPort, "Serial port of the transmitter")
	flag.IntVar(&c.TxBaud, "tx-baud", c.TxBaud, "Baud rate of the transmitter")
	flag.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&c.ID, "id", c.ID, "Device ID")
	flag.DurationVar(&c.ReportInterval, "report", c.ReportInterval, "Status report interval")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// ParseAddresses returns the sorted list of configured addresses.
func (c *Config) ParseAddresses() ([]int, error) {
	var addrs []int
	seen := make(map[int]bool)
	for _, s := range strings.Split(c.Addresses, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		addr, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		if addr < rsbus.MinAddress || addr > rsbus.MaxAddress {
			return nil, &rsbus.AddressError{Address: addr}
		}
		if seen[addr] {
			return nil, fmt.Errorf("duplicated address %d", addr)
		}
		seen[addr] = true
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("at least one address is required")
	}
	sort.Ints(addrs)
	return addrs, nil
}

// BusOptions converts the policies and ticking mode into Bus options.
func (c *Config) BusOptions() ([]rsbus.Option, error) {
	parity, err := rsbus.ParseRetransmitPolicy(c.ParityPolicy)
	if err != nil {
		return nil, fmt.Errorf("parity policy: %v", err)
	}
	pulse, err := rsbus.ParseRetransmitPolicy(c.PulsePolicy)
	if err != nil {
		return nil, fmt.Errorf("pulse policy: %v", err)
	}
	opts := []rsbus.Option{
		rsbus.WithParityPolicy(parity),
		rsbus.WithPulseCountPolicy(pulse),
	}
	if c.Timer {
		opts = append(opts, rsbus.WithTimerTick(rsbus.TickPeriod))
	}
	return opts, nil
}

// NewPulseSource creates the configured pulse counter.
func (c *Config) NewPulseSource() (rsbus.PulseSource, error) {
	switch c.Counter {
	case CounterEdge, "":
		return rsbus.NewEdgeCounter(), nil
	case CounterEvent:
		return rsbus.NewEventCounter(), nil
	}
	return nil, fmt.Errorf("unknown pulse counter %q", c.Counter)
}

// Validate checks all options without opening anything.
func (c *Config) Validate() error {
	if _, err := c.ParseAddresses(); err != nil {
		return err
	}
	if _, err := rsbus.ParseDeviceType(c.Type); err != nil {
		return err
	}
	if c.FEC < 0 {
		return fmt.Errorf("invalid fec %d", c.FEC)
	}
	if _, err := c.BusOptions(); err != nil {
		return err
	}
	if _, err := c.NewPulseSource(); err != nil {
		return err
	}
	if c.TxPort != "" && c.TxBaud <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.TxBaud)
	}
	if c.MQTTBrokerURL != "" && c.ID == "" {
		return fmt.Errorf("device id must be specified")
	}
	return nil
}
