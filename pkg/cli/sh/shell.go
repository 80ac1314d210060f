// Package sh is the interactive console of RS-bus devices.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/rsbus/pkg/mqtt"
	"github.com/robotalks/rsbus/pkg/msgs"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Client *mqtt.Client
	Device string
}

const (
	shellKey       = "$shell"
	noDevicePrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	brokerURL  = "mqtt://localhost:1883/rsbus/"
	deviceID   string

	// commands
	commands = []*ishell.Cmd{
		&DevicesCmd,
		&UseCmd,
		&StatusCmd,
		&FeedbackCmd,
		&NibbleCmd,
	}
)

func init() {
	if val := os.Getenv("RSBUS_MQTT_URL"); val != "" {
		brokerURL = val
	}
	deviceID = os.Getenv("RSBUS_ID")
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.StringVar(&brokerURL, "mqtt", brokerURL, "MQTT broker URL.")
	flag.StringVar(&deviceID, "id", deviceID, "Device to use.")
}

// New creates a new shell.
func New(client *mqtt.Client) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Client: client,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(noDevicePrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustUseDevice wraps command func requires a selected device.
func MustUseDevice(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Device == "" {
			c.Err(fmt.Errorf("no device selected"))
			return
		}
		fn(c)
	}
}

// Use selects the device commands are sent to.
func (s *Shell) Use(id string) {
	s.Device = id
	if id == "" {
		s.Shell.SetPrompt(noDevicePrompt)
		return
	}
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", id))
}

// SendFeedback sends a FeedbackCommand to the selected device.
func (s *Shell) SendFeedback(cmd *msgs.FeedbackCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	return s.Client.Send(s.Device, cmd)
}

// FormatStatus prints Status into friendly string for display.
func FormatStatus(st *msgs.Status) string {
	var w strings.Builder
	signal := "lost"
	if st.SignalOk {
		signal = "ok"
	}
	fmt.Fprintf(&w, "%s: signal %s, cycles %d, parity errors %d, pulse count errors %d, transmitted %d",
		st.DeviceId, signal, st.Cycles, st.ParityErrors, st.PulseCountErrors, st.Transmitted)
	for _, c := range st.Connections {
		fmt.Fprintf(&w, "\n  %3d %-8s %-16s queued %d feedback 0x%02x",
			c.Address, c.Type, c.State, c.Queued, c.Feedback)
		if c.FeedbackRequested {
			w.WriteString(" (requested)")
		}
	}
	return w.String()
}

func (s *Shell) print(c *ishell.Context, v interface{}, text string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func parseUint8(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return uint32(v), nil
}

func parseFeedbackArgs(args []string) (*msgs.FeedbackCommand, error) {
	cmd := &msgs.FeedbackCommand{}
	var err error
	switch len(args) {
	case 2:
	case 3:
		cmd.Nibble = args[1]
		args = []string{args[0], args[2]}
	default:
		return nil, fmt.Errorf("invalid arguments")
	}
	if cmd.Address, err = parseUint8(args[0]); err != nil {
		return nil, err
	}
	if cmd.Value, err = parseUint8(args[1]); err != nil {
		return nil, err
	}
	return cmd, cmd.Validate()
}

var (
	// DevicesCmd lists devices online.
	DevicesCmd = ishell.Cmd{
		Name:    "devices",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			ids := s.Client.Devices()
			if len(ids) == 0 && !s.OutputJSON {
				c.Println("No devices found")
				return
			}
			if ids == nil {
				ids = []string{}
			}
			s.print(c, ids, strings.Join(ids, "\n"))
		},
	}

	// UseCmd selects a device.
	UseCmd = ishell.Cmd{
		Name:    "use",
		Aliases: []string{"u"},
		Help:    "ID",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) == 1 {
				s.Use(c.Args[0])
				return
			}
			ids := s.Client.Devices()
			switch {
			case len(ids) == 0:
				c.Err(fmt.Errorf("no device found"))
			case len(ids) == 1:
				s.Use(ids[0])
			case !s.Interactive:
				c.Err(fmt.Errorf("more than 1 devices found in non-interactive mode"))
			default:
				s.Use(ids[s.Shell.MultiChoice(ids, "Which one to use?")])
			}
		},
	}

	// StatusCmd queries the status of the selected device.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"s"},
		Help:    "",
		Func: MustUseDevice(func(c *ishell.Context) {
			s := ShellFrom(c)
			st, err := s.Client.Query(s.Device)
			if err != nil {
				c.Err(err)
				return
			}
			s.print(c, st, FormatStatus(st))
		}),
	}

	// FeedbackCmd sets all 8 feedback bits of an address.
	FeedbackCmd = ishell.Cmd{
		Name:    "feedback",
		Aliases: []string{"fb"},
		Help:    "ADDR VALUE",
		Func: MustUseDevice(func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("ADDR VALUE expected"))
				return
			}
			cmd, err := parseFeedbackArgs(c.Args)
			if err == nil {
				err = ShellFrom(c).SendFeedback(cmd)
			}
			if err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// NibbleCmd sets 4 feedback bits of an address.
	NibbleCmd = ishell.Cmd{
		Name: "nibble",
		Help: "ADDR low|high VALUE",
		Func: MustUseDevice(func(c *ishell.Context) {
			if len(c.Args) != 3 {
				c.Err(fmt.Errorf("ADDR low|high VALUE expected"))
				return
			}
			cmd, err := parseFeedbackArgs(c.Args)
			if err == nil {
				err = ShellFrom(c).SendFeedback(cmd)
			}
			if err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	client, err := mqtt.NewClient(brokerURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err := client.Connect(); err != nil {
		log.Fatalf("connect %s failed: %v", brokerURL, err)
	}
	defer client.Close()
	s := New(client)
	s.Use(deviceID)
	s.Run(flag.Args()...)
}
