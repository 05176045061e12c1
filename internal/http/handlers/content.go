package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/adstudio-backend/internal/domain/content"
	"github.com/yungbote/adstudio-backend/internal/http/response"
	"github.com/yungbote/adstudio-backend/internal/platform/ctxutil"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
	"github.com/yungbote/adstudio-backend/internal/realtime"
	"github.com/yungbote/adstudio-backend/internal/services"
)

type ContentHandler struct {
	log        *logger.Logger
	generation services.GenerationService
	intent     services.IntentClassifier
}

func NewContentHandler(log *logger.Logger, generation services.GenerationService, intent services.IntentClassifier) *ContentHandler {
	return &ContentHandler{
		log:        log.With("handler", "ContentHandler"),
		generation: generation,
		intent:     intent,
	}
}

// contentBody is the shared request shape of the generation endpoints.
// Fields that do not apply to an endpoint are ignored.
type contentBody struct {
	content.Product
	content.Target

	RegenerateType     string     `json:"regenerate_type"`
	CustomRequest      string     `json:"custom_request"`
	CustomPrompt       string     `json:"customPrompt"`
	SelectedStrategyID int        `json:"selected_strategy_id"`
	CopyTone           string     `json:"copy_tone"`
	SaveToDB           *bool      `json:"save_to_db"`
	ImageProvider      string     `json:"image_provider"`
	AspectRatio        string     `json:"aspect_ratio"`
	ProjectID          *uuid.UUID `json:"project_id"`
	ParentContentID    *uuid.UUID `json:"parent_content_id"`

	SelectedStrategy *content.Strategy `json:"selected_strategy"`
	StrategyName     string            `json:"strategy_name"`
	CoreMessage      string            `json:"core_message"`
	Copy             *content.Copy     `json:"copy"`
	Image            *content.Image    `json:"image"`
	ImagePrompt      string            `json:"image_prompt"`
}

func (b *contentBody) custom() string {
	if s := strings.TrimSpace(b.CustomRequest); s != "" {
		return s
	}
	return strings.TrimSpace(b.CustomPrompt)
}

func (b *contentBody) save() bool {
	return b.SaveToDB == nil || *b.SaveToDB
}

// strategy prefers an explicit object and otherwise rebuilds one from the
// flat strategy_name/core_message pair.
func (b *contentBody) strategy() *content.Strategy {
	if b.SelectedStrategy != nil && strings.TrimSpace(b.SelectedStrategy.Name) != "" {
		st := *b.SelectedStrategy
		return &st
	}
	if strings.TrimSpace(b.StrategyName) == "" && strings.TrimSpace(b.CoreMessage) == "" {
		return nil
	}
	return &content.Strategy{ID: 1, Name: b.StrategyName, CoreMessage: b.CoreMessage}
}

func (b *contentBody) generateRequest(userID uuid.UUID) services.GenerateRequest {
	req := services.GenerateRequest{
		UserID:          userID,
		ProjectID:       b.ProjectID,
		ParentContentID: b.ParentContentID,
		Product:         b.Product,
		Target:          b.Target,
		RegenerateType:  b.RegenerateType,
		CustomRequest:   b.custom(),
		StrategyID:      b.SelectedStrategyID,
		CopyTone:        b.CopyTone,
		SaveToDB:        b.save(),
		ImageProvider:   b.ImageProvider,
		AspectRatio:     b.AspectRatio,
		Strategy:        b.strategy(),
		PreviousCopy:    b.Copy,
		PreviousImage:   b.Image,
	}
	req.PreviousImagePrompt = b.ImagePrompt
	if req.PreviousImagePrompt == "" && b.Image != nil {
		req.PreviousImagePrompt = b.Image.Prompt
	}
	return req
}

var errProductName = errors.New("product_name is required")

func (h *ContentHandler) bind(c *gin.Context) (*contentBody, bool) {
	var body contentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return nil, false
	}
	if strings.TrimSpace(body.Product.Name) == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errProductName)
		return nil, false
	}
	return &body, true
}

func currentUser(c *gin.Context) uuid.UUID {
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		return rd.UserID
	}
	return uuid.Nil
}

// POST /api/content/generate
func (h *ContentHandler) Generate(c *gin.Context) {
	body, ok := h.bind(c)
	if !ok {
		return
	}
	res, err := h.generation.Generate(c.Request.Context(), body.generateRequest(currentUser(c)))
	if err != nil {
		response.RespondAPIError(c, err, "generation_failed")
		return
	}
	response.RespondOK(c, gin.H{"success": true, "data": res})
}

// POST /api/content/generate-stream
// Streams progress as SSE frames. The pipeline keeps running if the client
// disconnects; writes stop at that point.
func (h *ContentHandler) GenerateStream(c *gin.Context) {
	body, ok := h.bind(c)
	if !ok {
		return
	}
	flusher, ok := realtime.PrepareStream(c.Writer)
	if !ok {
		response.RespondError(c, http.StatusInternalServerError, "streaming_unsupported", errors.New("streaming unsupported"))
		return
	}
	c.Status(http.StatusOK)

	done := c.Request.Context().Done()
	sink := services.ProgressSinkFunc(func(ev services.ProgressEvent) {
		select {
		case <-done:
			return
		default:
		}
		if err := realtime.WriteEvent(c.Writer, string(ev.Type), ev); err != nil {
			h.log.Debug("Stream write failed", "error", err)
			return
		}
		flusher.Flush()
	})
	if err := h.generation.GenerateStream(c.Request.Context(), body.generateRequest(currentUser(c)), sink); err != nil {
		_ = c.Error(err)
	}
}

// POST /api/content/regenerate-image
func (h *ContentHandler) RegenerateImage(c *gin.Context) {
	body, ok := h.bind(c)
	if !ok {
		return
	}
	st := body.strategy()
	if st == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("strategy is required"))
		return
	}
	req := services.RegenerateImageRequest{
		UserID:          currentUser(c),
		ProjectID:       body.ProjectID,
		ParentContentID: body.ParentContentID,
		Product:         body.Product,
		Target:          body.Target,
		Strategy:        *st,
		ImagePrompt:     body.ImagePrompt,
		CustomRequest:   body.custom(),
		SaveToDB:        body.save(),
		ImageProvider:   body.ImageProvider,
		AspectRatio:     body.AspectRatio,
	}
	if body.Copy != nil {
		req.Copy = *body.Copy
	}
	if req.ImagePrompt == "" && body.Image != nil {
		req.ImagePrompt = body.Image.Prompt
	}
	res, err := h.generation.RegenerateImage(c.Request.Context(), req)
	if err != nil {
		response.RespondAPIError(c, err, "regenerate_image_failed")
		return
	}
	response.RespondOK(c, gin.H{"success": true, "data": res})
}

// POST /api/content/regenerate-copy
func (h *ContentHandler) RegenerateCopy(c *gin.Context) {
	body, ok := h.bind(c)
	if !ok {
		return
	}
	st := body.strategy()
	if st == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("strategy is required"))
		return
	}
	req := services.RegenerateCopyRequest{
		UserID:          currentUser(c),
		ProjectID:       body.ProjectID,
		ParentContentID: body.ParentContentID,
		Product:         body.Product,
		Target:          body.Target,
		Strategy:        *st,
		CopyTone:        body.CopyTone,
		SaveToDB:        body.save(),
	}
	if body.Image != nil {
		req.Image = *body.Image
	}
	res, err := h.generation.RegenerateCopy(c.Request.Context(), req)
	if err != nil {
		response.RespondAPIError(c, err, "regenerate_copy_failed")
		return
	}
	response.RespondOK(c, gin.H{"success": true, "data": res})
}

// POST /api/content/intent
// body: { "text": "make the background blue" }
func (h *ContentHandler) ClassifyIntent(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	intent := h.intent.ClassifyIntent(c.Request.Context(), req.Text)
	response.RespondOK(c, gin.H{"success": true, "data": intent})
}
