package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatACK   = 11
)

// Gateway intents: guilds (for GUILD_DELETE), guild messages, and the
// message content needed for keyword matching.
const intents = 1<<0 | 1<<9 | 1<<15

// payload is a raw gateway frame.
type payload struct {
	Op       int             `json:"op"`
	Data     json.RawMessage `json:"d,omitempty"`
	Sequence *int64          `json:"s,omitempty"`
	Type     string          `json:"t,omitempty"`
}

// Handlers holds the event callbacks the bot registers before connecting.
// Handlers run on the gateway read loop; they should hand long work off.
type Handlers struct {
	OnReady         func(ReadyEvent)
	OnMessageCreate func(Message)
	OnGuildDelete   func(UnavailableGuild)
}

// GatewayConfig contains configuration for the gateway connection.
type GatewayConfig struct {
	// Token is the bot token.
	Token string

	// URL is the gateway websocket URL (from GetGatewayURL).
	URL string

	// ReconnectBaseDelay is the initial reconnect backoff.
	ReconnectBaseDelay time.Duration

	// ReconnectMaxDelay caps the reconnect backoff.
	ReconnectMaxDelay time.Duration

	// Logger for structured logging.
	Logger zerolog.Logger
}

// Gateway maintains the websocket session that delivers message and guild
// events.
type Gateway struct {
	config   GatewayConfig
	handlers Handlers
	logger   zerolog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	sequence int64
}

// NewGateway creates a gateway client.
func NewGateway(config GatewayConfig, handlers Handlers) *Gateway {
	if config.ReconnectBaseDelay <= 0 {
		config.ReconnectBaseDelay = time.Second
	}
	if config.ReconnectMaxDelay <= 0 {
		config.ReconnectMaxDelay = time.Minute
	}
	return &Gateway{
		config:   config,
		handlers: handlers,
		logger:   config.Logger.With().Str("component", "discord.gateway").Logger(),
	}
}

// Run connects and processes events until the context is cancelled,
// reconnecting with backoff after connection loss.
func (g *Gateway) Run(ctx context.Context) error {
	delay := g.config.ReconnectBaseDelay

	for {
		err := g.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		g.logger.Warn().Err(err).Dur("reconnect_in", delay).Msg("gateway session ended")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if delay *= 2; delay > g.config.ReconnectMaxDelay {
			delay = g.config.ReconnectMaxDelay
		}
	}
}

// session runs one connect/identify/read cycle.
func (g *Gateway) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.config.URL+"?v=10&encoding=json", nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close()

	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()

	// The first frame must be HELLO with the heartbeat interval.
	var hello payload
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var helloData struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.Data, &helloData); err != nil {
		return fmt.Errorf("decode hello: %w", err)
	}

	if err := g.identify(); err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		g.heartbeatLoop(sessionCtx, time.Duration(helloData.HeartbeatInterval)*time.Millisecond)
	}()
	defer wg.Wait()

	for {
		var frame payload
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		switch frame.Op {
		case opDispatch:
			if frame.Sequence != nil {
				g.mu.Lock()
				g.sequence = *frame.Sequence
				g.mu.Unlock()
			}
			g.dispatch(frame)
		case opHeartbeat:
			if err := g.sendHeartbeat(); err != nil {
				return err
			}
		case opReconnect, opInvalidSession:
			return errors.New("gateway requested reconnect")
		case opHeartbeatACK:
			// nothing to do
		}
	}
}

func (g *Gateway) identify() error {
	return g.send(payload{
		Op: opIdentify,
		Data: mustMarshal(map[string]any{
			"token":   g.config.Token,
			"intents": intents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "course-herald",
				"device":  "course-herald",
			},
		}),
	})
}

func (g *Gateway) dispatch(frame payload) {
	switch frame.Type {
	case "READY":
		var ev ReadyEvent
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			g.logger.Error().Err(err).Msg("decode READY")
			return
		}
		if g.handlers.OnReady != nil {
			g.handlers.OnReady(ev)
		}
	case "MESSAGE_CREATE":
		var msg Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			g.logger.Error().Err(err).Msg("decode MESSAGE_CREATE")
			return
		}
		if g.handlers.OnMessageCreate != nil {
			g.handlers.OnMessageCreate(msg)
		}
	case "GUILD_DELETE":
		var guild UnavailableGuild
		if err := json.Unmarshal(frame.Data, &guild); err != nil {
			g.logger.Error().Err(err).Msg("decode GUILD_DELETE")
			return
		}
		// Unavailable guilds are outages, not removals.
		if guild.Unavailable {
			return
		}
		if g.handlers.OnGuildDelete != nil {
			g.handlers.OnGuildDelete(guild)
		}
	}
}

func (g *Gateway) heartbeatLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.sendHeartbeat(); err != nil {
				g.logger.Warn().Err(err).Msg("heartbeat send failed")
				return
			}
		}
	}
}

func (g *Gateway) sendHeartbeat() error {
	g.mu.Lock()
	seq := g.sequence
	g.mu.Unlock()

	data, _ := json.Marshal(seq)
	return g.send(payload{Op: opHeartbeat, Data: data})
}

func (g *Gateway) send(p payload) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return errors.New("gateway not connected")
	}
	return g.conn.WriteJSON(p)
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err) // static payloads only
	}
	return data
}
