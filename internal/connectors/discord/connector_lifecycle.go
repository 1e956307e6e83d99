package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// Gateway opcodes, see https://discord.com/developers/docs/topics/opcodes-and-status-codes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
)

// A session that stayed up this long resets the reconnect backoff.
const stableSession = time.Minute

func (c *Connector) Start(ctx context.Context) error {
	if c.token == "" {
		c.logger.Info("connector disabled, token missing")
		<-ctx.Done()
		return nil
	}
	if c.policy == nil || c.runner == nil {
		c.logger.Info("connector disabled, dependencies missing")
		<-ctx.Done()
		return nil
	}
	defer c.runs.Wait()

	reconnect := backoff.NewExponentialBackOff()
	reconnect.InitialInterval = c.reconnectDelay
	reconnect.MaxInterval = 2 * time.Minute
	reconnect.MaxElapsedTime = 0

	c.logger.Info("connector started", "mode", "gateway", "user_token", c.userToken)
	for {
		started := time.Now()
		err := c.runSession(ctx)
		if ctx.Err() != nil {
			c.logger.Info("connector stopped")
			return nil
		}
		if time.Since(started) >= stableSession {
			reconnect.Reset()
		}
		wait := reconnect.NextBackOff()
		c.logger.Error("discord session ended, reconnecting", "error", err, "wait", wait.String())
		select {
		case <-ctx.Done():
			c.logger.Info("connector stopped")
			return nil
		case <-time.After(wait):
		}
	}
}

func (c *Connector) runSession(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.gatewayURL, nil)
	if err != nil {
		return fmt.Errorf("dial discord gateway: %w", err)
	}
	defer conn.Close()

	// ReadMessage does not watch ctx.
	stopClose := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopClose()

	interval, err := readHello(conn)
	if err != nil {
		return err
	}

	var (
		writeMu  sync.Mutex
		sequence atomic.Int64
	)
	if err := c.sendIdentify(conn, &writeMu); err != nil {
		return err
	}

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go c.heartbeatLoop(heartbeatCtx, conn, &writeMu, &sequence, interval)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read gateway message: %w", err)
		}
		var envelope gatewayEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.logger.Error("decode gateway envelope failed", "error", err)
			continue
		}
		if envelope.S != nil {
			sequence.Store(*envelope.S)
		}

		switch envelope.Op {
		case opDispatch:
			c.handleDispatch(ctx, envelope)
		case opHeartbeat:
			if err := c.sendHeartbeat(conn, &writeMu, sequence.Load()); err != nil {
				return err
			}
		case opReconnect:
			return fmt.Errorf("gateway requested reconnect")
		case opInvalidSession:
			return fmt.Errorf("gateway invalid session")
		}
	}
}

// readHello skips frames until the hello and returns the heartbeat interval it announces.
func readHello(conn *websocket.Conn) (time.Duration, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("read hello: %w", err)
		}
		var envelope gatewayEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return 0, fmt.Errorf("decode hello payload: %w", err)
		}
		if envelope.Op != opHello {
			continue
		}
		var hello discordHello
		if err := json.Unmarshal(envelope.D, &hello); err != nil {
			return 0, fmt.Errorf("decode hello body: %w", err)
		}
		return time.Duration(hello.HeartbeatIntervalMS) * time.Millisecond, nil
	}
}

func (c *Connector) handleDispatch(ctx context.Context, envelope gatewayEnvelope) {
	switch envelope.T {
	case "READY":
		var ready discordReady
		if err := json.Unmarshal(envelope.D, &ready); err != nil {
			c.logger.Error("decode ready failed", "error", err)
			return
		}
		c.setSelfID(ready.User.ID)
		c.logger.Info("discord session ready", "user_id", ready.User.ID, "username", ready.User.Username)
	case "MESSAGE_CREATE":
		var message discordMessage
		if err := json.Unmarshal(envelope.D, &message); err != nil {
			c.logger.Error("decode message create failed", "error", err)
			return
		}
		c.handleMessageCreate(ctx, message)
	}
}

func (c *Connector) heartbeatLoop(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, seq *atomic.Int64, interval time.Duration) {
	if interval < time.Second {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sendHeartbeat(conn, writeMu, seq.Load()); err != nil {
				c.logger.Error("heartbeat failed", "error", err)
				return
			}
		}
	}
}

type identifyPayload struct {
	Token      string             `json:"token"`
	Intents    int                `json:"intents"`
	Properties identifyProperties `json:"properties"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

func (c *Connector) sendIdentify(conn *websocket.Conn, writeMu *sync.Mutex) error {
	return c.writeFrame(conn, writeMu, opIdentify, identifyPayload{
		Token:   c.token,
		Intents: discordIntentGuilds | discordIntentGuildMessages | discordIntentMessageContents,
		Properties: identifyProperties{
			OS:      "linux",
			Browser: "chronicler",
			Device:  "chronicler",
		},
	})
}

// sendHeartbeat reports the last sequence seen. Sequences start at 1, so zero
// means no dispatch arrived yet and the gateway expects null.
func (c *Connector) sendHeartbeat(conn *websocket.Conn, writeMu *sync.Mutex, seq int64) error {
	var data any
	if seq > 0 {
		data = seq
	}
	return c.writeFrame(conn, writeMu, opHeartbeat, data)
}

func (c *Connector) writeFrame(conn *websocket.Conn, writeMu *sync.Mutex, op int, data any) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteJSON(map[string]any{"op": op, "d": data}); err != nil {
		return fmt.Errorf("send gateway op %d: %w", op, err)
	}
	return nil
}
