package handler

import (
	"encoding/json"
	"os"
	"time"

	"fieldops-notify-be/internal/dto"
	"fieldops-notify-be/internal/model"
	"fieldops-notify-be/internal/pkg/logger"
	"fieldops-notify-be/internal/pkg/serverutils"
	"fieldops-notify-be/internal/repository/contract"
	"fieldops-notify-be/internal/service"
	internalWS "fieldops-notify-be/internal/websocket"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	sender      *service.SendService
	store       *service.NotificationService
	dispatcher  *service.DispatchService
	preferences *service.PreferenceService
	queue       *gochannel.GoChannel
	queueTopic  string
	hub         *internalWS.Hub
	validate    *validator.Validate
	logger      logger.ILogger
}

func NewNotificationHandler(
	sender *service.SendService,
	store *service.NotificationService,
	dispatcher *service.DispatchService,
	preferences *service.PreferenceService,
	queue *gochannel.GoChannel,
	queueTopic string,
	hub *internalWS.Hub,
	log logger.ILogger,
) *NotificationHandler {
	return &NotificationHandler{
		sender:      sender,
		store:       store,
		dispatcher:  dispatcher,
		preferences: preferences,
		queue:       queue,
		queueTopic:  queueTopic,
		hub:         hub,
		validate:    validator.New(),
		logger:      log,
	}
}

// Send creates and synchronously delivers one notification.
func (h *NotificationHandler) Send(c *fiber.Ctx) error {
	var req dto.SendNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	n, err := h.sender.Send(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": n})
}

// Queue enqueues a notification for asynchronous processing and returns
// immediately. The consumer drains the internal queue.
func (h *NotificationHandler) Queue(c *fiber.Ctx) error {
	var req dto.QueuedNotificationMessage
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.Send == nil && req.Bulk == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "send or bulk payload required"})
	}
	if req.Send != nil {
		if err := h.validate.Struct(*req.Send); err != nil {
			return err
		}
	}
	if req.Bulk != nil {
		if err := h.validate.Struct(*req.Bulk); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := h.queue.Publish(h.queueTopic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "queued"})
}

// SendBulk fans one notification intent out to many recipients.
func (h *NotificationHandler) SendBulk(c *fiber.Ctx) error {
	var req dto.BulkSendNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	result := h.sender.SendBulk(c.UserContext(), req)
	return c.JSON(fiber.Map{"data": result})
}

// List returns a filtered page of the caller's notifications.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, ok := serverutils.UserIDFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var query dto.ListNotificationsQuery
	if err := c.QueryParser(&query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	filter, err := buildFilter(query)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	notifications, total, err := h.store.List(c.UserContext(), userID, filter, query.Limit, query.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data":   notifications,
		"total":  total,
		"limit":  query.Limit,
		"offset": query.Offset,
	})
}

// UnreadCount returns the caller's unread total.
func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	userID, ok := serverutils.UserIDFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	count, err := h.store.UnreadCount(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"count": count})
}

// MarkAsRead marks one notification as read for its recipient.
func (h *NotificationHandler) MarkAsRead(c *fiber.Ctx) error {
	userID, ok := serverutils.UserIDFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid ID"})
	}

	n, err := h.store.MarkRead(c.UserContext(), id, userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": n})
}

// MarkAllAsRead marks every unread notification of the caller as read
// and reports how many were affected.
func (h *NotificationHandler) MarkAllAsRead(c *fiber.Ctx) error {
	userID, ok := serverutils.UserIDFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	count, err := h.store.MarkAllRead(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"marked": count})
}

// RetryChannel re-attempts one failed channel, appending a new outcome.
func (h *NotificationHandler) RetryChannel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid ID"})
	}
	ch := model.Channel(c.Params("channel"))

	n, err := h.dispatcher.RetryChannel(c.UserContext(), id, ch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": n})
}

// GetPreferences returns the caller's resolved preferences, defaults
// included when nothing is stored yet.
func (h *NotificationHandler) GetPreferences(c *fiber.Ctx) error {
	userID, ok := serverutils.UserIDFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	prefs, err := h.preferences.Resolve(c.UserContext(), userID)
	if err != nil {
		// Defaults came back; surface them rather than failing the read.
		h.logger.Warn("NotificationHandler", "Serving default preferences", map[string]interface{}{
			"user_id": userID, "error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"data": prefs})
}

// UpdatePreferences replaces the caller's stored preferences.
func (h *NotificationHandler) UpdatePreferences(c *fiber.Ctx) error {
	userID, ok := serverutils.UserIDFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req dto.UpdatePreferencesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	prefs, err := h.preferences.Update(c.UserContext(), userID, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": prefs})
}

// ServeWs authenticates the handshake and upgrades to a websocket
// session on the hub. Browsers cannot set headers on the WS handshake,
// so a token query param is accepted alongside the Authorization header.
func (h *NotificationHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token (Query 'token' or Header 'Authorization')"})
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		h.logger.Warn("NotificationHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}
	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing user_id"})
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID format in token"})
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("NotificationHandler", "Starting WebSocket session", map[string]interface{}{"user_id": userID})
			internalWS.ServeWs(h.hub, conn, userID)
			h.logger.Info("NotificationHandler", "WebSocket session ended", map[string]interface{}{"user_id": userID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// RegisterRoutes registers the notification routes.
func (h *NotificationHandler) RegisterRoutes(router fiber.Router) {
	notif := router.Group("/notifications")
	notif.Use(serverutils.JwtMiddleware)
	notif.Post("/", h.Send)
	notif.Post("/queue", h.Queue)
	notif.Post("/bulk", h.SendBulk)
	notif.Get("/", h.List)
	notif.Get("/unread-count", h.UnreadCount) // specific routes before :id
	notif.Get("/preferences", h.GetPreferences)
	notif.Put("/preferences", h.UpdatePreferences)
	notif.Patch("/read-all", h.MarkAllAsRead)
	notif.Patch("/:id/read", h.MarkAsRead)
	notif.Post("/:id/retry/:channel", h.RetryChannel)

	// WebSocket
	router.Get("/ws", h.ServeWs)
}

func buildFilter(query dto.ListNotificationsQuery) (contract.NotificationFilter, error) {
	var filter contract.NotificationFilter

	if query.Type != "" {
		t := model.NotificationType(query.Type)
		filter.Type = &t
	}
	if query.Priority != "" {
		p := model.Priority(query.Priority)
		filter.Priority = &p
	}
	if query.Status != "" {
		s := model.Status(query.Status)
		filter.Status = &s
	}
	if query.Channel != "" {
		ch := model.Channel(query.Channel)
		filter.Channel = &ch
	}
	if query.Unread != nil {
		isRead := !*query.Unread
		filter.IsRead = &isRead
	}
	filter.EntityType = query.EntityType
	filter.EntityID = query.EntityID

	if query.From != "" {
		from, err := time.Parse(time.RFC3339, query.From)
		if err != nil {
			return filter, err
		}
		filter.CreatedAfter = &from
	}
	if query.To != "" {
		to, err := time.Parse(time.RFC3339, query.To)
		if err != nil {
			return filter, err
		}
		filter.CreatedBefore = &to
	}

	return filter, nil
}
