package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/hiddenhill/api/internal/model"
	"github.com/hiddenhill/api/internal/service"
	ws "github.com/hiddenhill/api/internal/websocket"
)

const initialEventKey = "initialEvent"

// StreamHandler serves live progress of one job over a websocket
type StreamHandler struct {
	jobs *service.JobService
	hub  *ws.Hub
}

func NewStreamHandler(jobs *service.JobService, hub *ws.Hub) *StreamHandler {
	return &StreamHandler{
		jobs: jobs,
		hub:  hub,
	}
}

// Upgrade rejects non-websocket requests and unknown jobs before the
// connection is upgraded, and snapshots the current state of the job.
func (h *StreamHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	job, err := h.jobs.GetJob(c.UserContext(), c.Params("job_id"))
	if err != nil {
		return writeError(c, err)
	}

	ev := model.NewProgressEvent(job)
	c.Locals(initialEventKey, &ev)
	return c.Next()
}

// Serve handles GET /ws/videos/:job_id once upgraded
func (h *StreamHandler) Serve(c *websocket.Conn) {
	initial, _ := c.Locals(initialEventKey).(*model.ProgressEvent)
	h.hub.HandleConnection(c, c.Params("job_id"), initial)
}
