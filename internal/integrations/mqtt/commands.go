package mqtt

import (
	"strings"

	"attendance-kiosk/internal/wire"

	log "github.com/sirupsen/logrus"
)

// Commander is the part of the kiosk session remote commands drive.
type Commander interface {
	Start() (bool, error)
	Continue() error
	SetMode(next wire.Mode) error
}

// CommandHandler maps command payloads to session calls:
// "start", "continue" and "mode <name>".
type CommandHandler struct {
	session Commander
}

// NewCommandHandler creates a handler for the command topic.
func NewCommandHandler(session Commander) *CommandHandler {
	return &CommandHandler{session: session}
}

// HandleMessage implements MessageHandler.
func (h *CommandHandler) HandleMessage(topic string, payload []byte) {
	fields := strings.Fields(strings.ToLower(string(payload)))
	if len(fields) == 0 {
		return
	}
	logger := log.WithFields(log.Fields{"topic": topic, "command": fields[0]})

	var err error
	switch fields[0] {
	case "start":
		_, err = h.session.Start()
	case "continue":
		err = h.session.Continue()
	case "mode":
		if len(fields) < 2 {
			logger.Warn("MQTT mode command without a mode")
			return
		}
		var mode wire.Mode
		if mode, err = wire.ParseMode(fields[1]); err == nil {
			err = h.session.SetMode(mode)
		}
	default:
		logger.Warn("Unknown MQTT command")
		return
	}
	if err != nil {
		logger.WithError(err).Warn("MQTT command failed")
		return
	}
	logger.Info("MQTT command applied")
}
