package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumora-app/lumora-api/internal/apperr"
	"github.com/lumora-app/lumora-api/internal/dto"
	"github.com/lumora-app/lumora-api/internal/models"
	"github.com/lumora-app/lumora-api/internal/observability"
)

const gatewaySendBuffer = 32

// Gateway maintains the bidirectional realtime channel: one authenticated
// connection per client, grouped for broadcast, with chat events dispatched
// by name. Handler failures are emitted as socket-error events to the caller
// only; the connection always survives.
type Gateway struct {
	chats       ChatService
	notifier    NotificationService
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	hub         *gatewayHub
	nodeID      string
}

type gatewayHub struct {
	mu     sync.RWMutex
	groups map[string]map[*gatewayClient]struct{}
	log    zerolog.Logger
}

type gatewayClient struct {
	conn     *websocket.Conn
	send     chan dto.EventFrame
	identity Identity
	gateway  *Gateway
	closed   chan struct{}
	once     sync.Once
	baseCtx  context.Context
}

// gatewayEvent is the cross-node mirror envelope published to redis/NATS so
// every node delivers group broadcasts to its own connections.
type gatewayEvent struct {
	Source string          `json:"source"`
	Group  string          `json:"group,omitempty"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	SentAt time.Time       `json:"sent_at"`
}

// NewGateway constructs the realtime gateway. Redis and NATS connections are
// optional; when absent, broadcasts stay node-local.
func NewGateway(chats ChatService, notifier NotificationService, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) *Gateway {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":gateway"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".gateway"
	}

	gateway := &Gateway{
		chats:       chats,
		notifier:    notifier,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		validator:   validate,
		logger:      logger.With().Str("component", "gateway").Logger(),
		tracer:      otel.Tracer("github.com/lumora-app/lumora-api/internal/service/gateway"),
		hub: &gatewayHub{
			groups: make(map[string]map[*gatewayClient]struct{}),
			log:    logger.With().Str("component", "gateway_hub").Logger(),
		},
		nodeID: uuid.NewString(),
	}

	notifier.SetBroadcaster(gateway)

	return gateway
}

// Start launches the cross-node event consumers.
func (g *Gateway) Start(ctx context.Context) {
	if g.redis != nil && g.redisStream != "" {
		go g.consumeRedis(ctx)
	}
	if g.nats != nil && g.natsSubject != "" {
		go g.consumeNATS(ctx)
	}
}

// ServeConnection joins an authenticated connection to its broadcast group
// and blocks until the client disconnects.
func (g *Gateway) ServeConnection(conn *websocket.Conn, identity Identity, baseCtx context.Context) {
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := &gatewayClient{
		conn:     conn,
		send:     make(chan dto.EventFrame, gatewaySendBuffer),
		identity: identity,
		gateway:  g,
		closed:   make(chan struct{}),
		baseCtx:  baseCtx,
	}

	g.hub.register(client)
	observability.WSConnectionsActive().Inc()

	go client.writer()
	client.reader()
}

// ToGroup delivers an event to every local member of a group and mirrors it
// to the other nodes.
func (g *Gateway) ToGroup(group, event string, data any) {
	g.hub.toGroup(group, dto.EventFrame{Event: event, Data: data})
	g.publish(group, event, data)
}

// ToAll delivers an event to every connected client across all groups.
func (g *Gateway) ToAll(event string, data any) {
	g.hub.toAll(dto.EventFrame{Event: event, Data: data})
	g.publish("", event, data)
}

func (g *Gateway) dispatch(ctx context.Context, client *gatewayClient, frame dto.InboundFrame) {
	ctx, span := g.tracer.Start(ctx, "gateway.dispatch", trace.WithAttributes(
		attribute.String("gateway.event", frame.Event),
		attribute.String("gateway.group", client.identity.Group()),
	))
	defer span.End()

	var err error
	switch frame.Event {
	case dto.EventCreateChat:
		err = g.handleCreateChat(ctx, client, frame.Data)
	case dto.EventGetChatList:
		err = g.handleGetChatList(ctx, client, frame.Data)
	case dto.EventGetChatMessages:
		err = g.handleGetChatMessages(ctx, client, frame.Data)
	case dto.EventSendMessage:
		err = g.handleSendMessage(ctx, client, frame.Data)
	case dto.EventCloseChat:
		err = g.handleCloseChat(ctx, client, frame.Data)
	default:
		err = apperr.Validation(fmt.Sprintf("unknown event %q", frame.Event))
	}

	if err != nil {
		span.RecordError(err)
		g.logger.Warn().Err(err).
			Str("event", frame.Event).
			Uint("user_id", client.identity.UserID).
			Msg("gateway event failed")
		client.emitError(err)
	}
}

func (g *Gateway) handleCreateChat(ctx context.Context, client *gatewayClient, raw json.RawMessage) error {
	var payload dto.CreateChatEvent
	if err := decodeEvent(raw, &payload); err != nil {
		return err
	}

	targetUser := client.identity.UserID
	if client.identity.Role.IsAdmin() && payload.UserID != 0 {
		targetUser = payload.UserID
	}

	chat, _, err := g.chats.CreateChat(ctx, targetUser)
	if err != nil {
		return err
	}

	g.ToAll(dto.EventCreateChat, chat)
	return nil
}

func (g *Gateway) handleGetChatList(ctx context.Context, client *gatewayClient, raw json.RawMessage) error {
	var query dto.ChatListQuery
	if err := decodeEvent(raw, &query); err != nil {
		return err
	}

	list, err := g.chats.ListChats(ctx, client.identity, query)
	if err != nil {
		return err
	}

	if len(list.Chats) == 0 {
		client.emit(dto.EventGetChatList, map[string]string{"message": "no chats found"})
		return nil
	}

	client.emit(dto.EventGetChatList, list)
	return nil
}

func (g *Gateway) handleGetChatMessages(ctx context.Context, client *gatewayClient, raw json.RawMessage) error {
	var payload dto.ChatMessagesEvent
	if err := decodeEvent(raw, &payload); err != nil {
		return err
	}

	query := dto.MessagePageQuery{ChatID: payload.ChatID, Page: payload.Page, Limit: payload.Limit}
	page, unread, err := g.chats.GetMessages(ctx, client.identity, query)
	if err != nil {
		return err
	}

	client.emit(chatEventName(dto.EventUnreadCount, payload.ChatID), unread)
	client.emit(chatEventName(dto.EventGetChatMessages, payload.ChatID), page)
	return nil
}

func (g *Gateway) handleSendMessage(ctx context.Context, client *gatewayClient, raw json.RawMessage) error {
	var payload dto.SendMessageEvent
	if err := decodeEvent(raw, &payload); err != nil {
		return err
	}

	result, err := g.chats.SendMessage(ctx, client.identity, dto.MessageSendRequest{
		ChatID: payload.ChatID,
		Text:   payload.Text,
		Media:  payload.Media,
	})
	if err != nil {
		return err
	}

	chatID := result.Chat.ID
	ownerID := result.Chat.User.ID

	if result.ChatCreated {
		g.ToAll(dto.EventCreateChat, result.Chat)
	}
	g.ToAll(chatEventName(dto.EventSendMessage, chatID), result.Message)

	// The opposing side learns how much of the sender's traffic it has not
	// read yet.
	if client.identity.Role.IsAdmin() {
		g.ToGroup(UserGroup(ownerID), chatEventName(dto.EventUnreadCount, chatID), dto.UnreadCountResponse{
			ChatID: chatID,
			Role:   string(RoleAdmin),
			Count:  result.UnreadForUser,
		})
	} else {
		g.ToGroup(AdminsGroup, chatEventName(dto.EventUnreadCount, chatID), dto.UnreadCountResponse{
			ChatID: chatID,
			Role:   string(RoleUser),
			Count:  result.UnreadForAdmins,
		})
	}

	g.notifySupportMessage(ctx, client.identity, result)
	return nil
}

func (g *Gateway) handleCloseChat(ctx context.Context, client *gatewayClient, raw json.RawMessage) error {
	var payload dto.CloseChatEvent
	if err := decodeEvent(raw, &payload); err != nil {
		return err
	}
	if err := g.validator.Struct(payload); err != nil {
		return apperr.Validation(err.Error())
	}

	chat, err := g.chats.CloseChat(ctx, payload.ChatID)
	if err != nil {
		return err
	}

	g.ToAll(chatEventName(dto.EventCloseChat, chat.ID), chat)
	return nil
}

// notifySupportMessage fans the persisted message out to the opposing party's
// notification inbox and devices. Failures are logged, never surfaced.
func (g *Gateway) notifySupportMessage(ctx context.Context, sender Identity, result SendMessageResult) {
	body := result.Message.Text
	if body == "" && len(result.Message.Media) > 0 {
		body = "sent an attachment"
	}

	senderID := sender.UserID
	chatID := result.Chat.ID
	input := NotifyInput{
		SenderID: &senderID,
		Type:     models.NotificationTypeSupportMessage,
		Body:     body,
		ChatID:   &chatID,
	}
	if sender.Role.IsAdmin() {
		ownerID := result.Chat.User.ID
		input.ReceiverID = &ownerID
	} else {
		input.IsReceiverAdmin = true
	}

	if _, err := g.notifier.Notify(ctx, input); err != nil {
		g.logger.Warn().Err(err).Uint("chat_id", chatID).Msg("support message notification failed")
	}
}

func (g *Gateway) publish(group, event string, data any) {
	if (g.redis == nil || g.redisStream == "") && (g.nats == nil || g.natsSubject == "") {
		return
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		g.logger.Warn().Err(err).Msg("failed to marshal gateway event for mirroring")
		return
	}

	payload, err := json.Marshal(gatewayEvent{
		Source: g.nodeID,
		Group:  group,
		Event:  event,
		Data:   encoded,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		g.logger.Warn().Err(err).Msg("failed to marshal gateway mirror envelope")
		return
	}

	if g.redis != nil && g.redisStream != "" {
		if err := g.redis.Publish(context.Background(), g.redisStream, payload).Err(); err != nil {
			g.logger.Warn().Err(err).Msg("failed to mirror gateway event via redis")
		}
	}

	if g.nats != nil && g.natsSubject != "" {
		if err := g.nats.Publish(g.natsSubject, payload); err != nil {
			g.logger.Warn().Err(err).Msg("failed to mirror gateway event via nats")
		}
	}
}

func (g *Gateway) consumeRedis(ctx context.Context) {
	pubsub := g.redis.Subscribe(ctx, g.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			g.logger.Error().Err(err).Msg("gateway redis subscription closed")
			return
		}
		g.handleMirror([]byte(msg.Payload))
	}
}

func (g *Gateway) consumeNATS(ctx context.Context) {
	sub, err := g.nats.QueueSubscribe(g.natsSubject, "lumora-gateway", func(msg *nats.Msg) {
		g.handleMirror(msg.Data)
	})
	if err != nil {
		g.logger.Error().Err(err).Msg("failed to subscribe to nats gateway subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			g.logger.Warn().Err(err).Msg("failed to drain gateway nats subscription")
		}
	}()
}

func (g *Gateway) handleMirror(payload []byte) {
	var event gatewayEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		g.logger.Warn().Err(err).Msg("invalid gateway mirror event")
		return
	}

	if event.Source == g.nodeID {
		return
	}

	frame := dto.EventFrame{Event: event.Event, Data: event.Data}
	if event.Group == "" {
		g.hub.toAll(frame)
		return
	}
	g.hub.toGroup(event.Group, frame)
}

func (h *gatewayHub) register(client *gatewayClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group := client.identity.Group()
	if _, exists := h.groups[group]; !exists {
		h.groups[group] = make(map[*gatewayClient]struct{})
	}
	h.groups[group][client] = struct{}{}
	h.log.Debug().Str("group", group).Uint("user_id", client.identity.UserID).Msg("gateway client connected")
}

func (h *gatewayHub) unregister(client *gatewayClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group := client.identity.Group()
	if clients, ok := h.groups[group]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.groups, group)
		}
	}
	h.log.Debug().Str("group", group).Uint("user_id", client.identity.UserID).Msg("gateway client disconnected")
}

func (h *gatewayHub) toGroup(group string, frame dto.EventFrame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.groups[group] {
		client.push(frame)
	}
}

func (h *gatewayHub) toAll(frame dto.EventFrame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.groups {
		for client := range clients {
			client.push(frame)
		}
	}
}

func (c *gatewayClient) reader() {
	defer c.close()

	for {
		var frame dto.InboundFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.gateway.logger.Debug().Err(err).Msg("gateway read loop ended")
			return
		}

		c.gateway.dispatch(c.baseCtx, c, frame)
	}
}

func (c *gatewayClient) writer() {
	defer c.close()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				c.gateway.logger.Debug().Err(err).Msg("gateway write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.gateway.logger.Debug().Err(err).Msg("gateway ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *gatewayClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.gateway.hub.unregister(c)
		observability.WSConnectionsActive().Dec()
		_ = c.conn.Close()
	})
}

func (c *gatewayClient) emit(event string, data any) {
	c.push(dto.EventFrame{Event: event, Data: data})
}

func (c *gatewayClient) emitError(err error) {
	c.push(dto.EventFrame{
		Event: dto.EventSocketError,
		Data: dto.SocketError{
			StatusCode: apperr.StatusOf(err),
			Message:    apperr.MessageOf(err),
		},
	})
}

func (c *gatewayClient) push(frame dto.EventFrame) {
	select {
	case c.send <- frame:
	default:
		c.gateway.logger.Warn().
			Uint("user_id", c.identity.UserID).
			Str("event", frame.Event).
			Msg("dropping gateway event for slow client")
	}
}

func chatEventName(base string, chatID uint) string {
	return fmt.Sprintf("%s-%d", base, chatID)
}

func decodeEvent(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return apperr.Validation("malformed event payload")
	}
	return nil
}
