package mqtt

import (
	"context"
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/noachFrank/DriverApp-sub001/core/model"
	"github.com/noachFrank/DriverApp-sub001/infra/logger"
)

// ClaimHandler decides the outcome of an incoming claim and pushes the result
// back through the notifier. The arbiter implements it.
type ClaimHandler interface {
	HandleClaim(ctx context.Context, req model.ClaimRequest)
}

// DispatcherConn is the server side of the dispatch channel. It subscribes to
// the shared claims topic and publishes call events and per-driver results.
type DispatcherConn struct {
	cli        pahoClient
	cfg        Config
	logger     logger.Logger
	handler    ClaimHandler
	maxRetries int
	backoff    time.Duration
}

// NewDispatcherConn connects to the broker and subscribes to the claims topic.
// Claims are handed to the handler on their own goroutine so a slow decision
// never blocks the paho receive loop.
func NewDispatcherConn(cfg Config, handler ClaimHandler) (*DispatcherConn, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_dispatcher")
	retries, backoff := cfg.retrySettings()
	dc := &DispatcherConn{
		cfg:        cfg,
		logger:     log,
		handler:    handler,
		maxRetries: retries,
		backoff:    backoff,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(ClaimsTopic, cfg.qosFor("claims"), dc.onClaim); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
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

func (d *DispatcherConn) onClaim(_ paho.Client, msg paho.Message) {
	var req model.ClaimRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		d.logger.Errorf("failed to decode claim: %v", err)
		return
	}
	if req.RequestID == "" || req.RideID == "" || req.DriverID == "" {
		d.logger.Warnf("dropping incomplete claim request_id=%s ride_id=%s driver_id=%s",
			req.RequestID, req.RideID, req.DriverID)
		return
	}
	go d.handler.HandleClaim(context.Background(), req)
}

// Broadcast publishes a call event to every connected driver.
func (d *DispatcherConn) Broadcast(_ context.Context, ev model.CallEvent) error {
	payload, err := model.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return d.publish(EventsTopic, d.cfg.qosFor("events"), payload)
}

// Reply publishes a claim result to the driver's direct topic.
func (d *DispatcherConn) Reply(_ context.Context, driverID string, res model.ClaimResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return d.publish(ResultsTopic(driverID), d.cfg.qosFor("results"), payload)
}

func (d *DispatcherConn) publish(topic string, qos byte, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		token := d.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		d.logger.Errorf("publish to %s attempt %d failed: %v", topic, attempt+1, publishErr)
		time.Sleep(d.backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// Close gracefully disconnects from the broker.
func (d *DispatcherConn) Close() error {
	if d.cli != nil && d.cli.IsConnected() {
		d.cli.Disconnect(250)
	}
	return nil
}
