package models

// BatchRequest is the payload for POST /api/v1/batch/reviews.
type BatchRequest struct {
	// Properties is the list of properties to look up. Required.
	Properties []BatchProperty `json:"properties" binding:"required,min=1,max=50,dive"`

	// Options contains shared settings applied to all properties.
	Options BatchOptions `json:"options"`

	// WebhookURL receives a batch.completed event when the job finishes.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// BatchProperty identifies one property in a batch.
type BatchProperty struct {
	Name     string `json:"name" binding:"required"`
	Location string `json:"location" binding:"required"`
}

// BatchOptions are the shared settings applied to every property in a batch.
type BatchOptions struct {
	MaxResults   int      `json:"max_results,omitempty" binding:"omitempty,min=1,max=500"`
	TimeBudgetMs int      `json:"time_budget_ms,omitempty" binding:"omitempty,min=1000"`
	Sources      []string `json:"sources,omitempty"`
}

// BatchResponse is the immediate response for POST /api/v1/batch/reviews.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"`
	Completed int                `json:"completed"`
	Total     int                `json:"total"`
	Results   []*ReviewsResponse `json:"results,omitempty"`
}

// BatchJob tracks an in-progress batch operation.
type BatchJob struct {
	ID        string
	Status    string // "processing", "completed", "failed", "partial"
	Total     int
	Completed int
	Results   []*ReviewsResponse
	CreatedAt int64 // unix timestamp
}
