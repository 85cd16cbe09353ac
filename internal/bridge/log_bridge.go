package bridge

import (
	"github.com/normanking/guardavatar/internal/bus"
	"github.com/normanking/guardavatar/internal/logging"
)

// ForwardEvents broadcasts every bus event to clients.
func ForwardEvents(eventBus *bus.EventBus, hub *Hub) {
	eventBus.SubscribeMultiple(bus.AllEventTypes, func(e bus.Event) {
		if hub.Clients() == 0 {
			return
		}
		hub.Broadcast(Message{Type: MsgEvent, Name: string(e.Type), Data: e.Data})
	})
}

// ForwardLogs streams log entries to clients and records log messages that
// clients send. The bridge's own entries are not streamed so a full client
// buffer cannot feed on its own warnings.
func ForwardLogs(logger *logging.Logger, hub *Hub) {
	logger.SetOnLog(func(entry logging.LogEntry) {
		if entry.Component == "bridge" || hub.Clients() == 0 {
			return
		}
		hub.Broadcast(Message{Type: MsgLog, Data: entry})
	})

	hub.OnMessage(MsgLog, func(clientID string, msg Message) {
		component := msg.Name
		if component == "" {
			component = "client"
		}
		data := map[string]interface{}{"client": clientID}

		switch msg.Level {
		case "debug":
			logger.Debug(component, msg.Text, data)
		case "warn":
			logger.Warn(component, msg.Text, data)
		case "error":
			logger.Error(component, msg.Text, nil, data)
		default:
			logger.Info(component, msg.Text, data)
		}
	})
}
