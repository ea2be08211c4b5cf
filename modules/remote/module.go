// Package remote binds a device slot to an instrument server reachable over
// Socket.IO. The engine only ever exercises the two capability operations:
// ApplySettings emits a "settings" event and awaits its ack, Probe emits
// "probe" and awaits a "data" event. Everything else about the instrument
// stays on the far side of the socket.
package remote

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/ctxlog"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/device"
	"github.com/pitt-diamond-qtech/pittqlabsys-sub000/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// defaultTimeout bounds every remote round trip when the configuration does
// not specify one.
const defaultTimeout = 10 * time.Second

// Instrument is a device capability proxied over a Socket.IO connection.
type Instrument struct {
	io      *socket.Socket
	timeout time.Duration

	connected atomic.Bool
	connectCh chan error
	ackCh     chan any
	dataCh    chan any
}

// NewInstrument dials nothing yet; the connection is established on the
// first operation so composing an experiment stays side-effect free.
func NewInstrument(rawURL, namespace string, timeout time.Duration, insecureSkipVerify bool) (*Instrument, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("remote: failed to parse URL: %w", err)
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if insecureSkipVerify {
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	d := &Instrument{
		io:        io,
		timeout:   timeout,
		connectCh: make(chan error, 1),
		ackCh:     make(chan any, 1),
		dataCh:    make(chan any, 1),
	}

	io.On(types.EventName("connect"), func(...any) {
		d.connected.Store(true)
		select {
		case d.connectCh <- nil:
		default:
		}
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("remote: connection error")
		}
		select {
		case d.connectCh <- err:
		default:
		}
	})
	io.On(types.EventName("settings_ack"), func(args ...any) {
		select {
		case d.ackCh <- first(args):
		default:
		}
	})
	io.On(types.EventName("data"), func(args ...any) {
		select {
		case d.dataCh <- first(args):
		default:
		}
	})

	return d, nil
}

// ApplySettings pushes a settings snapshot and waits for the server ack.
func (d *Instrument) ApplySettings(ctx context.Context, settings cty.Value) error {
	logger := ctxlog.FromContext(ctx).With("driver", "remote")
	_, err := d.roundTrip(ctx, "settings", ctyToNative(settings), d.ackCh)
	if err != nil {
		return fmt.Errorf("remote: apply settings: %w", err)
	}
	logger.Debug("Remote settings acknowledged.")
	return nil
}

// Probe requests one read and waits for the data event.
func (d *Instrument) Probe(ctx context.Context) (map[string]any, error) {
	payload, err := d.roundTrip(ctx, "probe", nil, d.dataCh)
	if err != nil {
		return nil, fmt.Errorf("remote: probe: %w", err)
	}
	data, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("remote: probe returned %T, want an object", payload)
	}
	return data, nil
}

// Close disconnects the socket.
func (d *Instrument) Close() {
	d.io.Disconnect()
}

// ensure establishes the connection once, bounded by the operation timeout.
func (d *Instrument) ensure(ctx context.Context) error {
	if d.connected.Load() {
		return nil
	}
	opCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	d.io.Connect()
	select {
	case err := <-d.connectCh:
		return err
	case <-opCtx.Done():
		return fmt.Errorf("timed out while waiting for initial connection")
	}
}

// roundTrip emits an event and waits for its reply channel.
func (d *Instrument) roundTrip(ctx context.Context, event string, payload any, reply chan any) (any, error) {
	if err := d.ensure(ctx); err != nil {
		return nil, err
	}

	// Drain a stale reply from a previously timed-out operation.
	select {
	case <-reply:
	default:
	}

	opCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if payload != nil {
		d.io.Emit(event, payload)
	} else {
		d.io.Emit(event)
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-opCtx.Done():
		return nil, fmt.Errorf("timed out while waiting for reply to %q", event)
	}
}

func first(args []any) any {
	if len(args) > 0 {
		return args[0]
	}
	return nil
}

// Register registers the remote instrument driver.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterInstrument("remote", func(_ context.Context, cfg cty.Value) (device.Instrument, error) {
		if !cfg.Type().IsObjectType() || !cfg.Type().HasAttribute("url") {
			return nil, fmt.Errorf("remote: settings must provide a 'url'")
		}
		rawURL := cfg.GetAttr("url").AsString()

		namespace := "/"
		if cfg.Type().HasAttribute("namespace") {
			namespace = cfg.GetAttr("namespace").AsString()
		}

		timeout := defaultTimeout
		if cfg.Type().HasAttribute("timeout") {
			parsed, err := time.ParseDuration(cfg.GetAttr("timeout").AsString())
			if err != nil {
				return nil, fmt.Errorf("remote: invalid timeout: %w", err)
			}
			timeout = parsed
		}

		insecure := false
		if cfg.Type().HasAttribute("insecure_skip_verify") {
			insecure = cfg.GetAttr("insecure_skip_verify").True()
		}

		return NewInstrument(rawURL, namespace, timeout, insecure)
	})
}
