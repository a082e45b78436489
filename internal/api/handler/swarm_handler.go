package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/huntswarm/huntswarm/internal/api/dto"
	"github.com/huntswarm/huntswarm/internal/export"
	"github.com/huntswarm/huntswarm/internal/hunter"
	"github.com/huntswarm/huntswarm/internal/store"
	"github.com/huntswarm/huntswarm/internal/swarm"
)

// DeploySwarm handles POST /api/v1/swarm/deploy
// Deploys hunter agents according to the requested target distribution
func (h *SwarmHandler) DeploySwarm(c *gin.Context) {
	var req dto.DeploySwarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	targets := make(map[hunter.AgentType]int, len(req.Targets))
	for typ, target := range req.Targets {
		targets[hunter.AgentType(typ)] = target
	}

	if err := h.coordinator.Start(c.Request.Context(), targets); err != nil {
		if errors.Is(err, swarm.ErrInvalidTarget) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": err.Error(),
			})
			return
		}
		h.logger.Error("Failed to deploy swarm", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to deploy swarm",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "deployed",
		"targets": req.Targets,
	})
}

// StopSwarm handles POST /api/v1/swarm/stop
// Idles every hunting agent; their queued jobs are dropped on delivery
func (h *SwarmHandler) StopSwarm(c *gin.Context) {
	if err := h.coordinator.StopSwarm(c.Request.Context()); err != nil {
		h.logger.Error("Failed to stop swarm", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to stop swarm",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "stopped",
	})
}

// GetProgress handles GET /api/v1/swarm/progress
// Returns collection progress aggregated across all agents
func (h *SwarmHandler) GetProgress(c *gin.Context) {
	progress, err := h.coordinator.GetProgress(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get progress", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get progress",
		})
		return
	}

	resp := dto.ProgressResponse{
		Collected:    progress.Collected,
		Enriched:     progress.Enriched,
		Validated:    progress.Validated,
		TotalTarget:  progress.TotalTarget,
		Percentage:   progress.Percentage,
		ActiveAgents: progress.ActiveAgents,
	}
	if !progress.EstimatedCompletion.IsZero() {
		resp.EstimatedCompletion = progress.EstimatedCompletion.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}

// GetHealth handles GET /api/v1/swarm/health
// Returns the aggregated system health report
func (h *SwarmHandler) GetHealth(c *gin.Context) {
	health, err := h.coordinator.GetSystemHealth(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get system health", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get system health",
		})
		return
	}

	c.JSON(http.StatusOK, dto.HealthResponse{
		State:        string(health.State),
		ActiveAgents: health.ActiveAgents,
		IdleAgents:   health.IdleAgents,
		FailedAgents: health.FailedAgents,
		QueueDepth:   health.QueueDepth,
	})
}

// ListHunters handles GET /api/v1/swarm/hunters
// Lists every hunter agent with its per-agent status
func (h *SwarmHandler) ListHunters(c *gin.Context) {
	statuses, err := h.coordinator.GetHunterStatus(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list hunters", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list hunters",
		})
		return
	}

	hunters := make([]dto.HunterDTO, len(statuses))
	for i, status := range statuses {
		hunters[i] = dto.HunterDTO{
			ID:             status.ID,
			Type:           status.Type,
			Status:         string(status.Status),
			AssignedTarget: status.AssignedTarget,
			Collected:      status.Collected,
			Enriched:       status.Enriched,
			Validated:      status.Validated,
			StartedAt:      status.StartedAt.Format(time.RFC3339),
			LastActivityAt: status.LastActivityAt.Format(time.RFC3339),
			Errors:         status.Errors,
		}
	}

	c.JSON(http.StatusOK, dto.ListHuntersResponse{Hunters: hunters})
}

// ScaleHunters handles POST /api/v1/swarm/hunters/scale
// Adjusts the number of active hunters for an agent type
func (h *SwarmHandler) ScaleHunters(c *gin.Context) {
	var req dto.ScaleHuntersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if err := h.coordinator.ScaleHunters(c.Request.Context(), hunter.AgentType(req.Type), *req.Count); err != nil {
		h.logger.Error("Failed to scale hunters",
			slog.String("agent_type", req.Type),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "scaled",
		"type":   req.Type,
		"count":  *req.Count,
	})
}

// PauseHunter handles POST /api/v1/swarm/hunters/:agent_id/pause
// Pauses a hunting agent
func (h *SwarmHandler) PauseHunter(c *gin.Context) {
	agentID := c.Param("agent_id")
	if _, err := uuid.Parse(agentID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "agent_id must be a valid UUID",
		})
		return
	}

	if err := h.coordinator.PauseHunter(c.Request.Context(), agentID); err != nil {
		if errors.Is(err, store.ErrAgentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "agent not found",
			})
			return
		}
		h.logger.Error("Failed to pause hunter",
			slog.String("agent_id", agentID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "paused",
		"agent_id": agentID,
	})
}

// RestartHunter handles POST /api/v1/swarm/hunters/:agent_id/restart
// Restarts an idle or failed agent and re-enqueues its remaining target
func (h *SwarmHandler) RestartHunter(c *gin.Context) {
	agentID := c.Param("agent_id")
	if _, err := uuid.Parse(agentID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "agent_id must be a valid UUID",
		})
		return
	}

	if err := h.coordinator.RestartHunter(c.Request.Context(), agentID); err != nil {
		if errors.Is(err, store.ErrAgentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "agent not found",
			})
			return
		}
		h.logger.Error("Failed to restart hunter",
			slog.String("agent_id", agentID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "restarted",
		"agent_id": agentID,
	})
}

// ExportBusinesses handles GET /api/v1/swarm/export
// Serializes discovered businesses as JSON or CSV
func (h *SwarmHandler) ExportBusinesses(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}
	if req.Format == "" {
		req.Format = "json"
	}

	data, err := h.coordinator.ExportBusinesses(c.Request.Context(), req.Format, export.Filters{
		Source:   req.Source,
		Region:   req.Region,
		Category: req.Category,
	})
	if err != nil {
		if errors.Is(err, export.ErrUnknownFormat) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		h.logger.Error("Failed to export businesses", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to export businesses",
		})
		return
	}

	contentType := "application/json"
	if req.Format == "csv" {
		contentType = "text/csv"
	}
	c.Data(http.StatusOK, contentType, data)
}
