package notification

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jwalitptl/helpdesk-api/internal/model"
	"github.com/jwalitptl/helpdesk-api/internal/repository"
	"github.com/jwalitptl/helpdesk-api/internal/service/router"
	apperrors "github.com/jwalitptl/helpdesk-api/pkg/errors"
)

// eventTypeRe matches the domain.action shape of event types.
var eventTypeRe = regexp.MustCompile(`^[a-z][a-z0-9_]*\.[a-z][a-z0-9_]*$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
			return eventTypeRe.MatchString(fl.Field().String())
		})
	}
}

type Handler struct {
	router   *router.Service
	attempts repository.AttemptRepository
}

func NewHandler(routerSvc *router.Service, attempts repository.AttemptRepository) *Handler {
	return &Handler{router: routerSvc, attempts: attempts}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/events", h.RouteEvent)
	r.GET("/events/:id/attempts", h.ListAttempts)
	r.POST("/conversations/:id/messages/notify", h.NotifyNewMessage)
}

type actorRequest struct {
	Type      string     `json:"type" binding:"required,oneof=system user visitor bot"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	VisitorID *uuid.UUID `json:"visitor_id,omitempty"`
}

type entityRequest struct {
	ConversationID    *uuid.UUID `json:"conversation_id,omitempty"`
	TicketID          *uuid.UUID `json:"ticket_id,omitempty"`
	OutboundMessageID *uuid.UUID `json:"outbound_message_id,omitempty"`
	CampaignID        *uuid.UUID `json:"campaign_id,omitempty"`
}

type routeEventRequest struct {
	EventType   string                 `json:"event_type" binding:"required,event_type"`
	Domain      string                 `json:"domain" binding:"required,oneof=chat ticket outbound campaign"`
	Audience    string                 `json:"audience" binding:"required,oneof=agent visitor both"`
	WorkspaceID uuid.UUID              `json:"workspace_id" binding:"required"`
	Actor       actorRequest           `json:"actor" binding:"required"`
	Entity      entityRequest          `json:"entity"`
	Title       string                 `json:"title" binding:"required"`
	Body        string                 `json:"body"`
	Data        map[string]interface{} `json:"data"`
	AgentIDs    []uuid.UUID            `json:"agent_ids"`
	VisitorIDs  []uuid.UUID            `json:"visitor_ids"`
	Excludes    []uuid.UUID            `json:"excludes"`
	EventKey    string                 `json:"event_key"`
}

func (h *Handler) RouteEvent(c *gin.Context) {
	var req routeEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.BadRequest(err.Error(), err))
		return
	}

	result, err := h.router.RouteEvent(c.Request.Context(), router.Descriptor{
		EventType:   req.EventType,
		Domain:      model.EventDomain(req.Domain),
		Audience:    model.Audience(req.Audience),
		WorkspaceID: req.WorkspaceID,
		Actor: model.Actor{
			Type:      model.ActorType(req.Actor.Type),
			UserID:    req.Actor.UserID,
			VisitorID: req.Actor.VisitorID,
		},
		Entity: model.EntityRef{
			ConversationID:    req.Entity.ConversationID,
			TicketID:          req.Entity.TicketID,
			OutboundMessageID: req.Entity.OutboundMessageID,
			CampaignID:        req.Entity.CampaignID,
		},
		Title:      req.Title,
		Body:       req.Body,
		Data:       req.Data,
		AgentIDs:   req.AgentIDs,
		VisitorIDs: req.VisitorIDs,
		Excludes:   req.Excludes,
		EventKey:   req.EventKey,
	})
	if err != nil {
		c.Error(wrap(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": result})
}

type notifyMessageRequest struct {
	Content    string     `json:"content" binding:"required"`
	SenderType string     `json:"sender_type" binding:"required,oneof=visitor agent bot"`
	MessageID  *uuid.UUID `json:"message_id,omitempty"`
	SenderID   *uuid.UUID `json:"sender_id,omitempty"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	Channel    *string    `json:"channel,omitempty" binding:"omitempty,oneof=push web widget email"`
	Mode       *string    `json:"mode,omitempty" binding:"omitempty,oneof=member_email visitor_email"`
}

func (h *Handler) NotifyNewMessage(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.BadRequest("invalid conversation ID", err))
		return
	}

	var req notifyMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.BadRequest(err.Error(), err))
		return
	}

	in := router.NewMessageInput{
		ConversationID: conversationID,
		Content:        req.Content,
		SenderType:     model.SenderType(req.SenderType),
		MessageID:      req.MessageID,
		SenderID:       req.SenderID,
		SentAt:         req.SentAt,
	}
	if req.Channel != nil {
		ch := model.Channel(*req.Channel)
		in.Channel = &ch
	}
	if req.Mode != nil {
		mode := model.DigestMode(*req.Mode)
		in.Mode = &mode
	}

	result, err := h.router.NotifyNewMessage(c.Request.Context(), in)
	if err != nil {
		c.Error(wrap(err))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "success", "data": result})
}

func (h *Handler) ListAttempts(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.BadRequest("invalid event ID", err))
		return
	}

	attempts, err := h.attempts.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		c.Error(wrap(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": attempts})
}

// wrap passes AppErrors through and hides everything else behind a 500.
func wrap(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Internal(err)
}
