package mqtt

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rsbus/pkg/msgs"
)

// ErrTimeout indicates no reply from the device in time.
var ErrTimeout = errors.New("timeout")

// Client is used by consoles to watch devices and send commands.
type Client struct {
	Queue   *Queue
	Timeout time.Duration

	lock    sync.Mutex
	devices map[string]*msgs.Status
	waiters map[string][]chan *msgs.Status
}

// NewClient creates a Client.
func NewClient(brokerURL string) (*Client, error) {
	q, err := NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT URL: %v", err)
	}
	return &Client{
		Queue:   q,
		Timeout: time.Second,
		devices: make(map[string]*msgs.Status),
		waiters: make(map[string][]chan *msgs.Status),
	}, nil
}

// Connect connects to the broker and watches all device status.
func (c *Client) Connect() error {
	c.Queue.Sub(StatusTopic("+"), c.HandleStatus)
	token := c.Queue.Connect()
	if !token.WaitTimeout(c.Timeout) {
		return ErrTimeout
	}
	return token.Error()
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	return c.Queue.Close()
}

// HandleStatus is the Handler of status topics.
func (c *Client) HandleStatus(topic string, payload []byte) {
	id := strings.TrimSuffix(topic, "/status")
	c.lock.Lock()
	defer c.lock.Unlock()
	if len(payload) == 0 {
		delete(c.devices, id)
		return
	}
	msg, err := msgs.DecodeMessage(payload)
	if err != nil {
		glog.Warningf("%s: %v", topic, err)
		return
	}
	st, ok := msg.(*msgs.Status)
	if !ok {
		return
	}
	c.devices[id] = st
	for _, ch := range c.waiters[id] {
		ch <- st
	}
	delete(c.waiters, id)
}

// Devices returns the IDs of all devices online.
func (c *Client) Devices() []string {
	c.lock.Lock()
	ids := make([]string, 0, len(c.devices))
	for id := range c.devices {
		ids = append(ids, id)
	}
	c.lock.Unlock()
	sort.Strings(ids)
	return ids
}

// Status returns the last Status of a device.
func (c *Client) Status(id string) *msgs.Status {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.devices[id]
}

// Send sends a command to a device.
func (c *Client) Send(id string, cmd msgs.SerializableMessage) error {
	data, err := msgs.Encode(cmd)
	if err != nil {
		return err
	}
	token := c.Queue.Pub(CommandTopic(id), data)
	if !token.WaitTimeout(c.Timeout) {
		return ErrTimeout
	}
	return token.Error()
}

// Query asks a device for a fresh Status and waits for it.
func (c *Client) Query(id string) (*msgs.Status, error) {
	ch := make(chan *msgs.Status, 1)
	c.lock.Lock()
	c.waiters[id] = append(c.waiters[id], ch)
	c.lock.Unlock()
	if err := c.Send(id, &msgs.StatusQuery{}); err != nil {
		return nil, err
	}
	select {
	case st := <-ch:
		return st, nil
	case <-time.After(c.Timeout):
		return nil, ErrTimeout
	}
}
