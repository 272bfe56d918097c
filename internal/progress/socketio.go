package progress

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/specialistvlad/pacforge/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// EventName is the socket.io event carrying batch transitions.
const EventName = "batch"

// SocketIOConfig locates the socket.io endpoint events are pushed to.
type SocketIOConfig struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// SocketIOSink pushes events to a socket.io server, for dashboards that
// follow long builds remotely.
type SocketIOSink struct {
	emit  func(event string, data any)
	close func()
}

// DialSocketIO connects to the configured server and waits for the connect
// event.
func DialSocketIO(ctx context.Context, cfg SocketIOConfig) (*SocketIOSink, error) {
	logger := ctxlog.FromContext(ctx).With("sink", "socketio", "url", cfg.URL)
	logger.Info("Connecting progress sink...")

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Progress sink connected", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		connectChan <- connectError(errs...)
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}

	return &SocketIOSink{
		emit: func(event string, data any) {
			io.Emit(event, data)
		},
		close: func() { io.Disconnect() },
	}, nil
}

// Publish emits the event. Delivery is best effort.
func (s *SocketIOSink) Publish(ctx context.Context, ev Event) {
	ctxlog.FromContext(ctx).Debug("Emitting progress event", "event", EventName, "batch", ev.Batch, "state", ev.State)
	s.emit(EventName, map[string]any{
		"run_id": ev.RunID,
		"batch":  ev.Batch,
		"label":  ev.Label,
		"state":  ev.State,
		"error":  ev.Error,
		"time":   ev.Time.Format(time.RFC3339Nano),
	})
}

// Close disconnects from the server.
func (s *SocketIOSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

// connectError turns the arguments of a connect_error event into an error.
// The result is never nil.
func connectError(args ...any) error {
	if len(args) == 0 {
		return errors.New("connect_error without details")
	}
	if err, ok := args[0].(error); ok && err != nil {
		return err
	}
	return fmt.Errorf("%v", args[0])
}
