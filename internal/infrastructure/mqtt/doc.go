// Package mqtt provides MQTT client connectivity for devicemgr.
//
// The registry publishes every change through a Client, and the watch
// command subscribes to the event topics. Paho handles reconnects; the
// Client replays its subscriptions afterwards and reports link changes to
// the handler set with SetOnConnectionChange. A retained Last Will marks
// the client offline if it dies without calling Close.
//
// # Topics
//
// Every topic lives under the configured prefix (default "devicemgr"):
//
//	{prefix}/state/{id}       retained JSON snapshot of the device record
//	{prefix}/event/{op}       one message per registry change
//	{prefix}/system/status    online/offline status and Last Will
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) for brokers outside the local host
//   - Set credentials through DEVICEMGR_MQTT_USERNAME / DEVICEMGR_MQTT_PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        fmt.Printf("%s %s\n", topic, payload)
//	        return nil
//	    })
package mqtt
