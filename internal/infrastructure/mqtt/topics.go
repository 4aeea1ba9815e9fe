package mqtt

import "fmt"

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "devicemgr"

// Topics provides builders for devicemgr MQTT topics under a common prefix.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{Prefix: "home"}
//	stateTopic := topics.DeviceState(3)
//	// Returns: "home/state/3"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// DeviceState returns the retained state topic for a device id.
//
// Example: devicemgr/state/3
func (t Topics) DeviceState(id int) string {
	return fmt.Sprintf("%s/state/%d", t.prefix(), id)
}

// Event returns the topic for registry change events of one kind.
//
// Example: devicemgr/event/state_set
func (t Topics) Event(op string) string {
	return fmt.Sprintf("%s/event/%s", t.prefix(), op)
}

// SystemStatus returns the client status topic used for online/offline
// announcements and the Last Will.
//
// Example: devicemgr/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// AllStates returns a pattern matching every device state topic.
//
// Pattern: devicemgr/state/+
func (t Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+", t.prefix())
}

// AllEvents returns a pattern matching every change event.
//
// Pattern: devicemgr/event/+
func (t Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", t.prefix())
}

// AllTopics returns a pattern matching everything under the prefix.
//
// Pattern: devicemgr/#
func (t Topics) AllTopics() string {
	return t.prefix() + "/#"
}
