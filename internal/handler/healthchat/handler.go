package healthchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/zhouzirui/serene-care/backend/internal/model/chat"
	aiService "github.com/zhouzirui/serene-care/backend/internal/service/ai"
	"github.com/zhouzirui/serene-care/backend/pkg/utils"
)

// Route is the public path of the completion proxy.
const Route = "/functions/v1/healthchat"

// maxBodyBytes caps the request body. Larger bodies are refused with 413
// rather than forwarded with their history dropped.
const maxBodyBytes = 1 << 20

// Completer is the part of the AI service the handler needs.
type Completer interface {
	Complete(ctx context.Context, turns []chat.Turn) (string, error)
}

// Handler 健康问答代理的HTTP处理器
type Handler struct {
	completer Completer
}

// New 创建代理处理器
func New(completer Completer) *Handler {
	return &Handler{completer: completer}
}

// RegisterRoutes 注册代理路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post(Route, h.handleComplete)
}

// handleComplete 转发对话历史并返回回复
func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("[healthchat] recovered panic: %v", rec)
			utils.RespondErrorDetails(w, http.StatusInternalServerError, "Unexpected error", fmt.Sprint(rec))
		}
	}()

	turns, err := decodeTurns(w, r)
	if err != nil {
		log.WithError(err).Warn("[healthchat] request body too large")
		utils.RespondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}

	reply, err := h.completer.Complete(r.Context(), turns)
	if err != nil {
		respondCompletionError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, chat.CompletionResponse{Content: reply})
}

// decodeTurns treats an absent or malformed body as no history. It only
// fails when the body exceeds maxBodyBytes.
func decodeTurns(w http.ResponseWriter, r *http.Request) ([]chat.Turn, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return []chat.Turn{}, nil
	}

	var payload chat.CompletionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		log.WithError(err).Debug("[healthchat] unreadable body, treating as empty history")
		return []chat.Turn{}, nil
	}
	if payload.Messages == nil {
		return []chat.Turn{}, nil
	}
	return payload.Messages, nil
}

func respondCompletionError(w http.ResponseWriter, err error) {
	var configErr *aiService.ConfigError
	if errors.As(err, &configErr) {
		utils.RespondError(w, http.StatusBadRequest, configErr.Error())
		return
	}

	var upstreamErr *aiService.UpstreamError
	if errors.As(err, &upstreamErr) {
		utils.RespondErrorDetails(w, http.StatusInternalServerError, "Upstream error", upstreamErr.Body)
		return
	}

	utils.RespondErrorDetails(w, http.StatusInternalServerError, "Unexpected error", err.Error())
}
