package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"yard-anpr-service/internal/domain/anpr"
	"yard-anpr-service/internal/domain/yard"
	"yard-anpr-service/internal/poller"
	"yard-anpr-service/internal/printer"
	"yard-anpr-service/internal/service"
)

// Detector is the serialised entry point for manual detections.
type Detector interface {
	Inject(ctx context.Context, plate string, direction anpr.Direction) (bool, error)
	ProcessManual(ctx context.Context, d anpr.Detection) (service.Outcome, error)
	Status() poller.Status
}

type TicketFinder interface {
	FindTicket(ctx context.Context, number string) (*yard.ParkingTicket, error)
}

type EventStream interface {
	ServeWS(w http.ResponseWriter, r *http.Request) error
}

type Handler struct {
	detector Detector
	tickets  TicketFinder
	stream   EventStream
	log      zerolog.Logger
}

func NewHandler(
	detector Detector,
	tickets TicketFinder,
	stream EventStream,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		detector: detector,
		tickets:  tickets,
		stream:   stream,
		log:      log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/health", h.health)

	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.GET("/anpr/status", h.status)
		public.GET("/anpr/events/ws", h.events)
		public.GET("/parking-tickets/:number/slip", h.ticketSlip)
	}

	// Operator endpoints
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/anpr/inject", h.inject)
		protected.POST("/anpr/detections", h.uploadDetection)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.detector.Status()))
}

type injectRequest struct {
	Plate     string `json:"plate" binding:"required"`
	Direction string `json:"direction" binding:"required"`
}

func (h *Handler) inject(c *gin.Context) {
	var req injectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	direction, err := anpr.ParseDirection(req.Direction)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	processed, err := h.detector.Inject(c.Request.Context(), req.Plate, direction)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.log.Info().
		Str("plate", req.Plate).
		Str("direction", string(direction)).
		Str("operator", c.GetString(subjectKey)).
		Bool("processed", processed).
		Msg("manual detection injected")
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}

type uploadRequest struct {
	Plate      string     `json:"plate" binding:"required"`
	Direction  string     `json:"direction" binding:"required"`
	SiteID     *int       `json:"site_id"`
	DetectedAt *time.Time `json:"detected_at"`
	CameraType string     `json:"camera_type"`
}

func (h *Handler) uploadDetection(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	direction, err := anpr.ParseDirection(req.Direction)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if req.SiteID != nil && *req.SiteID <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse("site_id must be positive"))
		return
	}

	d := anpr.Detection{
		Plate:      strings.TrimSpace(req.Plate),
		Direction:  direction,
		SiteID:     req.SiteID,
		CameraType: req.CameraType,
		Method:     anpr.MethodManualUpload,
	}
	if req.DetectedAt != nil {
		d.DetectedAt = *req.DetectedAt
	}

	out, err := h.detector.ProcessManual(c.Request.Context(), d)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.log.Info().
		Str("plate", d.Plate).
		Str("direction", string(direction)).
		Str("operator", c.GetString(subjectKey)).
		Str("kind", string(out.Kind)).
		Msg("manual detection uploaded")

	code := http.StatusOK
	if out.Processed {
		code = http.StatusCreated
	}
	c.JSON(code, successResponse(out))
}

func (h *Handler) ticketSlip(c *gin.Context) {
	number := strings.TrimSpace(c.Param("number"))
	ticket, err := h.tickets.FindTicket(c.Request.Context(), number)
	if err != nil {
		h.handleError(c, err)
		return
	}

	pdf, err := printer.TicketSlip(*ticket)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", ticket.TicketNumber+".pdf"))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *Handler) events(c *gin.Context) {
	if err := h.stream.ServeWS(c.Writer, c.Request); err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, errorResponse("timed out"))
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
