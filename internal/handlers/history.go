package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/textor-gateway/internal/lifecycle"
	"github.com/codebuildervaibhav/textor-gateway/internal/provider"
	"github.com/codebuildervaibhav/textor-gateway/internal/storage"
	"github.com/codebuildervaibhav/textor-gateway/internal/store"
)

// HistoryHandler serves the partitioned job listing and the per-job
// operations built on top of it.
type HistoryHandler struct {
	manager *lifecycle.Manager
	store   *store.Store
	client  *provider.Client
	cache   *storage.TranscriptDB
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(manager *lifecycle.Manager, st *store.Store, client *provider.Client, cache *storage.TranscriptDB) *HistoryHandler {
	return &HistoryHandler{
		manager: manager,
		store:   st,
		client:  client,
		cache:   cache,
	}
}

// Handle refreshes the history and returns the store's view. A failed
// refresh never clears known jobs: the stale snapshot is served with
// the error surfaced alongside it.
func (h *HistoryHandler) Handle(c *fiber.Ctx) error {
	page := c.QueryInt("page")
	status := c.Query("status")

	refreshErr := h.manager.Refresh(c.UserContext(), page, status)
	if refreshErr != nil {
		log.Printf("History refresh failed, serving retained snapshot: %v", refreshErr)
	}

	currentPage, totalPages := h.store.Pages()
	resp := fiber.Map{
		"transcriptions": h.store.Partition(),
		"status_counts":  h.store.Counts(),
		"current_page":   currentPage,
		"total_pages":    totalPages,
	}
	if status != "" && status != "all" {
		resp["filtered"] = h.store.Filtered(status)
	}
	if refreshErr != nil {
		resp["error"] = refreshErr.Error()
	}
	return c.JSON(resp)
}

// HandleSubmission reports the submission machine and the active job.
func (h *HistoryHandler) HandleSubmission(c *fiber.Ctx) error {
	resp := fiber.Map{
		"state":  h.manager.State(),
		"counts": h.store.Counts(),
	}
	if active, ok := h.store.Active(); ok {
		resp["active"] = active
	}
	if lastError := h.manager.LastError(); lastError != "" {
		resp["error"] = lastError
	}
	return c.JSON(resp)
}

// HandleCancel stops the active submission's polling loop.
func (h *HistoryHandler) HandleCancel(c *fiber.Ctx) error {
	h.manager.Cancel()
	return c.JSON(fiber.Map{"state": h.manager.State()})
}

// HandleDelete removes a job at the provider, then drops it from the
// local view and the transcript cache.
func (h *HistoryHandler) HandleDelete(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.client.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}

	h.store.Remove(id)
	if h.cache != nil {
		if err := h.cache.Delete(id); err != nil {
			log.Printf("Failed to drop cached transcript %s: %v", id, err)
		}
	}
	return c.JSON(fiber.Map{"deleted": id})
}

// HandleCached lists locally cached completed transcripts.
func (h *HistoryHandler) HandleCached(c *fiber.Ctx) error {
	if h.cache == nil {
		return c.JSON(fiber.Map{"transcripts": []interface{}{}})
	}

	limit := c.QueryInt("limit", 50)
	jobs, err := h.cache.List(limit)
	if err != nil {
		log.Printf("Failed to list cached transcripts: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read transcript cache",
			"code":  "ERR_CACHE",
		})
	}
	return c.JSON(fiber.Map{"transcripts": jobs})
}
