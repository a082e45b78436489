package dto

type DeploySwarmRequest struct {
	Targets map[string]int `json:"targets" binding:"required"`
}

type ScaleHuntersRequest struct {
	Type  string `json:"type" binding:"required"`
	Count *int   `json:"count" binding:"required"`
}

type ExportRequest struct {
	Format   string `form:"format"`
	Source   string `form:"source"`
	Region   string `form:"region"`
	Category string `form:"category"`
}

type HunterDTO struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Status         string   `json:"status"`
	AssignedTarget int      `json:"assigned_target"`
	Collected      int      `json:"collected"`
	Enriched       int      `json:"enriched"`
	Validated      int      `json:"validated"`
	StartedAt      string   `json:"started_at"`
	LastActivityAt string   `json:"last_activity_at"`
	Errors         []string `json:"errors,omitempty"`
}

type ListHuntersResponse struct {
	Hunters []HunterDTO `json:"hunters"`
}

type ProgressResponse struct {
	Collected           int     `json:"collected"`
	Enriched            int     `json:"enriched"`
	Validated           int     `json:"validated"`
	TotalTarget         int     `json:"total_target"`
	Percentage          float64 `json:"percentage"`
	ActiveAgents        int     `json:"active_agents"`
	EstimatedCompletion string  `json:"estimated_completion,omitempty"`
}

type HealthResponse struct {
	State        string `json:"state"`
	ActiveAgents int    `json:"active_agents"`
	IdleAgents   int    `json:"idle_agents"`
	FailedAgents int    `json:"failed_agents"`
	QueueDepth   int    `json:"queue_depth"`
}
