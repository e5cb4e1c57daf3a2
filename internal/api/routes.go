package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/domain"
	"github.com/satriahrh/talking-avatar/domain/entities"
	"github.com/satriahrh/talking-avatar/domain/repositories"
	"github.com/satriahrh/talking-avatar/internal/websocket"
)

const (
	serviceName = "talking-avatar"

	// uploadField is the multipart field carrying a recording
	uploadField = "audio"

	maxUploadBytes = 25 << 20
)

// Conversation turns chat input and recordings into voiced replies
type Conversation interface {
	Chat(ctx context.Context, message string) ([]entities.ReplyMessage, error)
	ProcessAudio(ctx context.Context, upload []byte) (*entities.ReplyMessage, error)
	Configured() bool
}

// Knowledge answers retrieval queries
type Knowledge interface {
	Query(ctx context.Context, text string) (*entities.KnowledgeResult, error)
}

// Dependencies are the services the routes delegate to. Voices may be nil
// when speech synthesis is not configured.
type Dependencies struct {
	Conversation Conversation
	Knowledge    Knowledge
	Voices       repositories.VoiceCatalog
	Hub          *websocket.Hub
}

type handler struct {
	deps   Dependencies
	logger *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies, logger *zap.Logger) {
	h := &handler{deps: deps, logger: logger}

	e.Validator = NewRequestValidator()
	e.HTTPErrorHandler = NewErrorHandler(logger)

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Hello World!")
	})
	e.GET("/health", h.health)
	e.GET("/voices", h.voices)
	e.POST("/process-audio", h.processAudio)
	e.POST("/getKnowledgeBase", h.knowledge)
	e.POST("/chat", h.chat)

	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(deps.Hub, c, logger)
	})
}

func (h *handler) health(c echo.Context) error {
	resp := HealthResponse{
		Status:     "ok",
		Service:    serviceName,
		Configured: h.deps.Conversation.Configured(),
	}
	if h.deps.Hub != nil {
		resp.Clients = h.deps.Hub.ClientCount()
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *handler) voices(c echo.Context) error {
	if h.deps.Voices == nil {
		return fmt.Errorf("voice catalog: %w", domain.ErrNotConfigured)
	}

	voices, err := h.deps.Voices.GetAvailableVoices(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, VoicesResponse{Voices: voices})
}

func (h *handler) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	messages, err := h.deps.Conversation.Chat(c.Request().Context(), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessagesResponse{Messages: messages})
}

func (h *handler) processAudio(c echo.Context) error {
	file, err := c.FormFile(uploadField)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("multipart field %q is required", uploadField))
	}
	if file.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "recording is too large")
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	upload, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}

	h.logger.Info("Processing recording",
		zap.String("filename", file.Filename),
		zap.Int("bytes", len(upload)))

	message, err := h.deps.Conversation.ProcessAudio(c.Request().Context(), upload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessagesResponse{Messages: []entities.ReplyMessage{*message}})
}

func (h *handler) knowledge(c echo.Context) error {
	var req KnowledgeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.deps.Knowledge.Query(c.Request().Context(), req.Query)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, KnowledgeResponse{QueryResponse: result})
}
