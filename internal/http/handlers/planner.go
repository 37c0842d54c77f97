package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/travelplanner-backend/internal/http/response"
	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
	"github.com/yungbote/travelplanner-backend/internal/platform/apierr"
	"github.com/yungbote/travelplanner-backend/internal/platform/ctxutil"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
	"github.com/yungbote/travelplanner-backend/internal/services"
	"github.com/yungbote/travelplanner-backend/internal/sse"
)

// SchemaVersion tags synchronous report responses.
const SchemaVersion = "planner-report/v1"

type PlannerHandler struct {
	log       *logger.Logger
	planner   services.PlannerService
	heartbeat time.Duration
	now       func() time.Time
}

func NewPlannerHandler(log *logger.Logger, planner services.PlannerService, heartbeat time.Duration) *PlannerHandler {
	return &PlannerHandler{
		log:       log.With("handler", "PlannerHandler"),
		planner:   planner,
		heartbeat: heartbeat,
		now:       time.Now,
	}
}

type generateResponse struct {
	SchemaVersion string                 `json:"schemaVersion"`
	GeneratedAt   string                 `json:"generatedAt"`
	Report        contract.PlannerReport `json:"report"`
	Mode          contract.Mode          `json:"mode"`
}

func decodeRequest(c *gin.Context) (contract.GenerateRequest, error) {
	req, err := contract.DecodeRequest(c.Request.Body)
	if err != nil {
		return req, apierr.BadRequest(err)
	}
	return req, nil
}

// POST /api/planner/generate
func (h *PlannerHandler) Generate(c *gin.Context) {
	req, err := decodeRequest(c)
	if err != nil {
		response.RespondProblem(c, err)
		return
	}
	gen, err := h.planner.Generate(c.Request.Context(), req)
	if err != nil {
		if c.Request.Context().Err() != nil {
			// Client went away; nobody is left to read a response.
			c.Abort()
			return
		}
		response.RespondProblem(c, err)
		return
	}
	response.RespondOK(c, generateResponse{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   h.now().UTC().Format(time.RFC3339),
		Report:        gen.Result.Report,
		Mode:          gen.Result.Mode,
	})
}

// POST /api/planner/stream
func (h *PlannerHandler) Stream(c *gin.Context) {
	req, err := decodeRequest(c)
	if err != nil {
		response.RespondProblem(c, err)
		return
	}
	w, err := sse.NewWriter(c.Writer)
	if err != nil {
		response.RespondProblem(c, apierr.Internal(err))
		return
	}

	stop := make(chan struct{})
	defer close(stop)
	go w.Heartbeat(h.heartbeat, stop)

	if err := h.planner.Stream(c.Request.Context(), req, w); err != nil {
		h.log.Debug("stream ended with error event",
			"request_id", ctxutil.RequestID(c.Request.Context()),
			"frames", w.Frames(),
			"error", err,
		)
		return
	}
	h.log.Debug("stream closed",
		"request_id", ctxutil.RequestID(c.Request.Context()),
		"frames", w.Frames(),
	)
}
