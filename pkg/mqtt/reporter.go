package mqtt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/rsbus/pkg/feedback"
	fx "github.com/robotalks/rsbus/pkg/framework"
	"github.com/robotalks/rsbus/pkg/msgs"
	"github.com/robotalks/rsbus/pkg/rsbus"
)

// DefaultReportInterval is the period of status publishing.
const DefaultReportInterval = 5 * time.Second

// StatusTopic is the retained topic a device publishes its Status on.
func StatusTopic(deviceID string) string {
	return deviceID + "/status"
}

// CommandTopic is the topic a device receives commands on.
func CommandTopic(deviceID string) string {
	return deviceID + "/cmd"
}

// Publisher publishes payloads.
type Publisher interface {
	PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token
}

// Reporter publishes the Status of a device periodically and whenever the
// signal changes, and forwards received commands into the main loop.
type Reporter struct {
	Queue     *Queue
	Publisher Publisher
	DeviceID  string
	Bus       *rsbus.Bus
	Feedback  *feedback.Announcer
	Loop      *fx.Loop
	Interval  time.Duration

	lastReport time.Time
	lastSignal bool
}

// NewReporter creates a Reporter connecting to the broker.
func NewReporter(brokerURL, deviceID string, bus *rsbus.Bus) (*Reporter, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT URL: %v", err)
	}
	// an empty retained status tells consoles the device is gone
	opts.SetBinaryWill(topicPrefix+StatusTopic(deviceID), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("rsbus:" + deviceID)
	}
	q := NewQueue(opts, topicPrefix)
	return &Reporter{
		Queue:     q,
		Publisher: q,
		DeviceID:  deviceID,
		Bus:       bus,
		Interval:  DefaultReportInterval,
	}, nil
}

// Name implements framework.Named.
func (r *Reporter) Name() string {
	return "mqtt-reporter"
}

// AddToLoop implements framework.LoopAdder.
func (r *Reporter) AddToLoop(l *fx.Loop) {
	if r.Loop == nil {
		r.Loop = l
	}
	l.AddController(fx.PrLvReport, r)
}

// Run implements framework.Runnable.
func (r *Reporter) Run(ctx context.Context) error {
	sub := r.Queue.Sub(CommandTopic(r.DeviceID), CommandHandler(fx.LoopCtlFrom(ctx)))
	defer sub.Close()
	if token := r.Queue.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect error: %v", token.Error())
	}
	<-ctx.Done()
	r.Queue.PubWith(StatusTopic(r.DeviceID), nil, 1, true).WaitTimeout(time.Second)
	r.Queue.Close()
	return ctx.Err()
}

// CommandHandler decodes received messages and posts them to the loop.
func CommandHandler(lc fx.LoopControl) Handler {
	return func(topic string, payload []byte) {
		typed, err := msgs.DecodeTyped(payload)
		if err != nil {
			glog.Warningf("%s: bad message: %v", topic, err)
			return
		}
		if !typed.IsCommand() {
			return
		}
		msg, err := typed.Decode()
		if err != nil {
			glog.Warningf("%s: decode error: (type_id=%x) %v", topic, typed.TypeId, err)
			return
		}
		lc.PostMessage(msg)
		lc.TriggerNext()
	}
}

// Control implements framework.Controller.
func (r *Reporter) Control(cc fx.ControlContext) error {
	var query bool
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		if _, ok := mc.CurrentMessage().(*msgs.StatusQuery); ok {
			query = true
			mc.MessageTaken()
		}
	}))
	now := cc.Time()
	signal := r.Bus.SignalOK()
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	if !query && signal == r.lastSignal && now.Sub(r.lastReport) < interval {
		return nil
	}
	r.lastReport, r.lastSignal = now, signal
	return r.publish()
}

// Status builds the current Status message.
func (r *Reporter) Status() *msgs.Status {
	st := msgs.NewStatus(r.DeviceID, r.Bus.Stats())
	if r.Feedback != nil {
		for _, c := range st.Connections {
			if v, ok := r.Feedback.Value(uint8(c.Address)); ok {
				c.Feedback = uint32(v)
			}
		}
	}
	if r.Loop != nil {
		st.LoopOverruns = r.Loop.Stats().Overruns
	}
	return st
}

func (r *Reporter) publish() error {
	data, err := msgs.Encode(r.Status())
	if err != nil {
		return err
	}
	r.Publisher.PubWith(StatusTopic(r.DeviceID), data, 0, true)
	return nil
}
