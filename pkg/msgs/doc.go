// Package msgs defines the messages exchanged between RS-bus devices and
// their remote consoles over MQTT.
package msgs

// Every message travels wrapped in a Typed envelope carrying its type ID.
//
// Events are published by the device:  <id>/status
// Commands are received by the device: <id>/cmd
