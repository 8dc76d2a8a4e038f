// Package http is the thin HTTP facade over the bus. Handlers bind the
// request, dispatch a command or query, and translate AppError codes to
// status codes; all behavior lives behind the bus.
package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	chatapp "github.com/nutrisnap/v2/internal/application/chat"
	mealapp "github.com/nutrisnap/v2/internal/application/meal"
	suggestionapp "github.com/nutrisnap/v2/internal/application/suggestion"
	userapp "github.com/nutrisnap/v2/internal/application/user"
	"github.com/nutrisnap/v2/internal/bus"
	"github.com/nutrisnap/v2/internal/domain/meal"
	"github.com/nutrisnap/v2/internal/domain/user"
	apperrors "github.com/nutrisnap/v2/pkg/errors"
)

const maxImageBytes = 10 << 20

type handlers struct {
	bus *bus.Bus
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the structured error fields.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func fail(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewInternal("internal error")
	}
	c.JSON(appErr.StatusCode(), ErrorResponse{Error: ErrorBody{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	}})
}

func badRequest(c *gin.Context, details string) {
	fail(c, apperrors.NewInvalidInput(details))
}

func withActor(c *gin.Context) (uuid.UUID, bool) {
	id, ok := actorID(c)
	if !ok {
		badRequest(c, "missing or malformed X-User-ID header")
	}
	return id, ok
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, name+" must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

// --- users ---

type createUserRequest struct {
	Email    string `json:"email"`
	Timezone string `json:"timezone"`
	Language string `json:"language"`
}

func (h *handlers) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := h.bus.Send(c.Request.Context(), userapp.CreateUserCommand{
		UserID:   uuid.New(),
		Email:    req.Email,
		Timezone: req.Timezone,
		Language: req.Language,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *handlers) completeOnboarding(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	var profile userapp.ProfileInput
	if err := c.ShouldBindJSON(&profile); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := h.bus.Send(c.Request.Context(), userapp.CompleteOnboardingCommand{
		UserID:  userID,
		Profile: profile,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) updateProfile(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	var profile userapp.ProfileInput
	if err := c.ShouldBindJSON(&profile); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := h.bus.Send(c.Request.Context(), userapp.UpdateProfileCommand{
		UserID:  userID,
		Profile: profile,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) getUser(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	h.ask(c, userapp.GetUserQuery{UserID: userID})
}

func (h *handlers) getProfile(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	h.ask(c, userapp.GetProfileQuery{UserID: userID})
}

func (h *handlers) getNotificationPrefs(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	h.ask(c, userapp.GetNotificationPrefsQuery{UserID: userID})
}

func (h *handlers) updateNotificationPrefs(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	var prefs user.NotificationPrefs
	if err := c.ShouldBindJSON(&prefs); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := h.bus.Send(c.Request.Context(), userapp.UpdateNotificationPrefsCommand{
		UserID: userID,
		Prefs:  prefs,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type registerTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (h *handlers) registerFcmToken(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	var req registerTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := h.bus.Send(c.Request.Context(), userapp.RegisterFcmTokenCommand{
		UserID:   userID,
		Token:    req.Token,
		Platform: req.Platform,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// --- meals ---

func (h *handlers) uploadMealImage(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		badRequest(c, "image file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		badRequest(c, "failed to read image")
		return
	}
	if len(data) > maxImageBytes {
		badRequest(c, "image exceeds 10MB")
		return
	}

	consumedAt := time.Now().UTC()
	if raw := c.PostForm("consumed_at"); raw != "" {
		consumedAt, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "consumed_at must be RFC3339")
			return
		}
	}

	hints, err := parseAnalysisHints(
		c.PostForm("portion_hint"),
		c.PostForm("description"),
		c.PostForm("ingredients"),
		c.PostForm("total_weight_g"),
	)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	cmd := mealapp.UploadMealImageCommand{
		UserID:      userID,
		Image:       data,
		ContentType: header.Header.Get("Content-Type"),
		MealType:    c.PostForm("meal_type"),
		ConsumedAt:  consumedAt,
		Hints:       hints,
	}
	result, err := h.bus.Send(c.Request.Context(), cmd)
	if err != nil {
		fail(c, err)
		return
	}
	// Analysis continues in the background; the id is usable immediately.
	c.JSON(http.StatusAccepted, result)
}

// parseAnalysisHints maps the optional upload form fields to analysis
// hints. Ingredients arrive comma-separated.
func parseAnalysisHints(portion, description, ingredients, totalWeight string) (meal.AnalysisHints, error) {
	hints := meal.AnalysisHints{
		PortionHint: portion,
		Description: description,
	}
	for _, raw := range strings.Split(ingredients, ",") {
		if name := strings.TrimSpace(raw); name != "" {
			hints.Ingredients = append(hints.Ingredients, name)
		}
	}
	if totalWeight != "" {
		weight, err := strconv.ParseFloat(totalWeight, 64)
		if err != nil || weight <= 0 {
			return meal.AnalysisHints{}, errors.New("total_weight_g must be a positive number")
		}
		hints.TotalWeightG = weight
	}
	return hints, nil
}

type createManualMealRequest struct {
	DishName   string                    `json:"dish_name"`
	MealType   string                    `json:"meal_type"`
	ConsumedAt *time.Time                `json:"consumed_at"`
	Items      []mealapp.ManualItemInput `json:"items"`
}

func (h *handlers) createManualMeal(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	var req createManualMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	consumedAt := time.Now().UTC()
	if req.ConsumedAt != nil {
		consumedAt = *req.ConsumedAt
	}
	result, err := h.bus.Send(c.Request.Context(), mealapp.CreateManualMealCommand{
		UserID:     userID,
		DishName:   req.DishName,
		Items:      req.Items,
		MealType:   req.MealType,
		ConsumedAt: consumedAt,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type editMealRequest struct {
	Kind     string         `json:"kind"`
	ItemID   uuid.UUID      `json:"item_id"`
	Item     *meal.FoodItem `json:"item"`
	Quantity float64        `json:"quantity"`
}

func (h *handlers) editMeal(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	mealID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req editMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	edit := meal.Edit{
		Kind:     meal.EditKind(req.Kind),
		ItemID:   req.ItemID,
		Quantity: req.Quantity,
	}
	if req.Item != nil {
		edit.Item = *req.Item
		if edit.Item.ID == uuid.Nil {
			edit.Item.ID = uuid.New()
		}
	}

	result, err := h.bus.Send(c.Request.Context(), mealapp.EditMealCommand{
		UserID: userID,
		MealID: mealID,
		Edit:   edit,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) deleteMeal(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	mealID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if _, err := h.bus.Send(c.Request.Context(), mealapp.DeleteMealCommand{
		UserID: userID,
		MealID: mealID,
	}); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) getMeal(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	mealID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	h.ask(c, mealapp.GetMealQuery{UserID: userID, MealID: mealID})
}

func (h *handlers) listMealsByDate(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	date := c.Query("date")
	if date == "" {
		badRequest(c, "date query parameter is required")
		return
	}
	h.ask(c, mealapp.ListMealsByDateQuery{UserID: userID, Date: date})
}

func (h *handlers) getDailySummary(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	date := c.Query("date")
	if date == "" {
		badRequest(c, "date query parameter is required")
		return
	}
	h.ask(c, mealapp.GetDailySummaryQuery{UserID: userID, Date: date})
}

// --- suggestions ---

type generateSuggestionsRequest struct {
	Language string `json:"language"`
}

func (h *handlers) generateSuggestions(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	var req generateSuggestionsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	result, err := h.bus.Send(c.Request.Context(), suggestionapp.GenerateSuggestionsCommand{
		UserID:   userID,
		Language: req.Language,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *handlers) regenerateSuggestions(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(c, "sessionID")
	if !ok {
		return
	}
	result, err := h.bus.Send(c.Request.Context(), suggestionapp.RegenerateSuggestionsCommand{
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type acceptSuggestionRequest struct {
	SuggestionID uuid.UUID `json:"suggestion_id"`
	Multiplier   int       `json:"multiplier"`
	MealType     string    `json:"meal_type"`
}

func (h *handlers) acceptSuggestion(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(c, "sessionID")
	if !ok {
		return
	}
	var req acceptSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := h.bus.Send(c.Request.Context(), suggestionapp.AcceptSuggestionCommand{
		UserID:       userID,
		SessionID:    sessionID,
		SuggestionID: req.SuggestionID,
		Multiplier:   req.Multiplier,
		MealType:     req.MealType,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type rejectSuggestionRequest struct {
	SuggestionID uuid.UUID `json:"suggestion_id"`
	Reason       string    `json:"reason"`
}

func (h *handlers) rejectSuggestion(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(c, "sessionID")
	if !ok {
		return
	}
	var req rejectSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := h.bus.Send(c.Request.Context(), suggestionapp.RejectSuggestionCommand{
		UserID:       userID,
		SessionID:    sessionID,
		SuggestionID: req.SuggestionID,
		Reason:       req.Reason,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) discardSession(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(c, "sessionID")
	if !ok {
		return
	}
	if _, err := h.bus.Send(c.Request.Context(), suggestionapp.DiscardSessionCommand{
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) getSession(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(c, "sessionID")
	if !ok {
		return
	}
	h.ask(c, suggestionapp.GetSessionQuery{UserID: userID, SessionID: sessionID})
}

func (h *handlers) getSessionHistory(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(c, "sessionID")
	if !ok {
		return
	}
	h.ask(c, suggestionapp.GetSessionHistoryQuery{UserID: userID, SessionID: sessionID})
}

// --- chat ---

type sendMessageRequest struct {
	ThreadID uuid.UUID `json:"thread_id"`
	Content  string    `json:"content"`
}

func (h *handlers) sendChatMessage(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := h.bus.Send(c.Request.Context(), chatapp.SendMessageCommand{
		UserID:   userID,
		ThreadID: req.ThreadID,
		Content:  req.Content,
	})
	if err != nil {
		fail(c, err)
		return
	}
	// A reply cut short mid-stream is persisted but flagged partial.
	if mr, ok := result.(chatapp.MessageResult); ok && mr.Interrupted {
		c.JSON(http.StatusPartialContent, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) archiveThread(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	threadID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.bus.Send(c.Request.Context(), chatapp.ArchiveThreadCommand{
		UserID:   userID,
		ThreadID: threadID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) getThread(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	threadID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	h.ask(c, chatapp.GetThreadQuery{UserID: userID, ThreadID: threadID})
}

func (h *handlers) listThreads(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}
	h.ask(c, chatapp.ListThreadsQuery{UserID: userID})
}

func (h *handlers) ask(c *gin.Context, q bus.Query) {
	result, err := h.bus.Ask(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
