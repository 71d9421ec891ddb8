package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/noachFrank/DriverApp-sub001/core/model"
	"github.com/noachFrank/DriverApp-sub001/infra/logger"
)

// DriverConn is the driver side of the dispatch channel. It subscribes to the
// shared events topic and the driver's own results topic and exposes both as
// channels for the event-reaction loop.
type DriverConn struct {
	cli      pahoClient
	cfg      Config
	driverID string
	logger   logger.Logger

	events      chan model.CallEvent
	results     chan model.ClaimResult
	reconnected chan struct{}

	maxRetries int
	backoff    time.Duration
	closeOnce  sync.Once
}

// NewDriverConn connects driverID to the broker. Every successful connect,
// including reconnects after an outage, re-subscribes and signals on the
// Reconnected channel so the owner can refresh its view.
func NewDriverConn(cfg Config, driverID string) (*DriverConn, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "driver-" + driverID
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_driver")
	retries, backoff := cfg.retrySettings()
	dc := &DriverConn{
		cfg:         cfg,
		driverID:    driverID,
		logger:      log,
		events:      make(chan model.CallEvent, 64),
		results:     make(chan model.ClaimResult, 16),
		reconnected: make(chan struct{}, 1),
		maxRetries:  retries,
		backoff:     backoff,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected driver_id=%s", driverID)
		if token := c.Subscribe(EventsTopic, cfg.qosFor("events"), dc.onEvent); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe events error: %v", token.Error())
		}
		if token := c.Subscribe(ResultsTopic(driverID), cfg.qosFor("results"), dc.onResult); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe results error: %v", token.Error())
		}
		select {
		case dc.reconnected <- struct{}{}:
		default:
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	dc.cli = c
	return dc, nil
}

func (d *DriverConn) onEvent(_ paho.Client, msg paho.Message) {
	ev, err := model.DecodeEvent(msg.Payload())
	if err != nil {
		d.logger.Errorf("failed to decode event: %v", err)
		return
	}
	select {
	case d.events <- ev:
	default:
		// The cache is rebuilt on the next refresh, so dropping under
		// backpressure is safe.
		d.logger.Warnf("event queue full, dropping %s", ev.Kind())
	}
}

func (d *DriverConn) onResult(_ paho.Client, msg paho.Message) {
	var res model.ClaimResult
	if err := json.Unmarshal(msg.Payload(), &res); err != nil {
		d.logger.Errorf("failed to decode result: %v", err)
		return
	}
	select {
	case d.results <- res:
	default:
		d.logger.Warnf("result queue full, dropping request_id=%s", res.RequestID)
	}
}

// SendClaim publishes a claim request on the shared claims topic.
func (d *DriverConn) SendClaim(_ context.Context, req model.ClaimRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	var publishErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		token := d.cli.Publish(ClaimsTopic, d.cfg.qosFor("claims"), false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		d.logger.Errorf("claim publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(d.backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

func (d *DriverConn) Events() <-chan model.CallEvent    { return d.events }
func (d *DriverConn) Results() <-chan model.ClaimResult { return d.results }
func (d *DriverConn) Reconnected() <-chan struct{}      { return d.reconnected }

// Close disconnects from the broker and closes the outbound channels, which
// terminates the owner's event loop.
func (d *DriverConn) Close() error {
	d.closeOnce.Do(func() {
		if d.cli != nil && d.cli.IsConnected() {
			d.cli.Disconnect(250)
		}
		close(d.events)
		close(d.results)
	})
	return nil
}
