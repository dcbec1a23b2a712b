package hook

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/mordenhost/whm2bunny/pkg/config"
	"github.com/mordenhost/whm2bunny/pkg/delivery"
)

// Dispatcher parses one hook invocation, maps the event, and performs one
// delivery sequence.
type Dispatcher struct {
	client *delivery.Client
	logger *logrus.Logger
	stdin  io.Reader
}

// NewDispatcher creates a dispatcher. stdin supplies event data when the
// invocation omits the JSON argument.
func NewDispatcher(settings config.HookSettings, logger *logrus.Logger, stdin io.Reader) *Dispatcher {
	return &Dispatcher{
		client: delivery.NewClient(settings, logger),
		logger: logger,
		stdin:  stdin,
	}
}

// Run executes one invocation: args[0] is the event type, args[1] (or stdin)
// the raw JSON event data. The returned code is the process exit code: 0 on
// delivered, 1 on any failure. Unexpected panics are logged and map to 1.
func (d *Dispatcher) Run(ctx context.Context, args []string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorf("Fatal error: %v", r)
			code = 1
		}
	}()

	if len(args) < 1 {
		d.logger.Error("Usage: whm2bunny-hook <event_type> [data_json]")
		d.logger.Error("Event types: createacct, addaddondomain, parksubdomain, killacct")
		return 1
	}
	eventType := args[0]

	raw, ok := d.readData(args)
	if !ok {
		return 1
	}

	payload, err := MapEvent(eventType, raw)
	if err != nil {
		var unknown *UnknownEventTypeError
		if errors.As(err, &unknown) {
			d.logger.Errorf("Unknown event type: %s", unknown.Type)
		} else {
			d.logger.Errorf("%v", err)
		}
		return 1
	}

	d.logAccepted(payload)

	outcome := d.client.Deliver(ctx, payload)
	if outcome.Kind == delivery.Delivered {
		return 0
	}
	return 1
}

// readData returns the raw JSON event data from the second argument or from
// standard input, validating that it parses as JSON.
func (d *Dispatcher) readData(args []string) ([]byte, bool) {
	var raw []byte
	if len(args) >= 2 {
		raw = []byte(args[1])
	} else {
		data, err := io.ReadAll(d.stdin)
		if err != nil {
			d.logger.Errorf("Failed to read event data from stdin: %v", err)
			return nil, false
		}
		raw = data
	}

	if !json.Valid(raw) {
		d.logger.Errorf("Invalid JSON data: %s", raw)
		return nil, false
	}
	return raw, true
}

func (d *Dispatcher) logAccepted(p delivery.Payload) {
	get := func(key string) string {
		if v := p.Fields[key]; v != nil {
			return *v
		}
		return ""
	}

	switch p.Event {
	case EventAccountCreated:
		d.logger.Infof("Account created: %s (user: %s)", get("domain"), get("user"))
	case EventAddonCreated:
		d.logger.Infof("Addon domain added: %s (user: %s)", get("domain"), get("user"))
	case EventSubdomainCreated:
		d.logger.Infof("Subdomain created: %s.%s (user: %s)", get("subdomain"), get("parent_domain"), get("user"))
	case EventAccountDeleted:
		d.logger.Infof("Account terminated: %s (user: %s)", get("domain"), get("user"))
	}
}
