package transport

import (
	"encoding/json"
	"time"
)

// =============================================================================
// /clients
// =============================================================================

type CreateClientRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"omitempty,email,max=254"`
	Phone string `json:"phone" validate:"omitempty,e164ish"`
	Stage string `json:"stage" validate:"omitempty,client_stage"`
}

type CreateClientResponse struct {
	ID string `json:"id"`
}

// UpdateClientRequest uses pointers so absent keys leave the client untouched.
type UpdateClientRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=255"`
	Email    *string `json:"email" validate:"omitempty,max=254"`
	Phone    *string `json:"phone" validate:"omitempty,e164ish"`
	Stage    *string `json:"stage"`
	AssignTo *string `json:"assign_to"`
	Remarks  string  `json:"remarks" validate:"max=2000"`
}

type ClientListItem struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone"`
	Stage      string          `json:"stage"`
	AssignedTo *string         `json:"assigned_to"`
	Context    json.RawMessage `json:"context"`
}

type ClientListResponse struct {
	Clients []ClientListItem  `json:"clients"`
	Stages  map[string]string `json:"stages"`
}

type ClientBody struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Phone   string          `json:"phone"`
	Stage   string          `json:"stage"`
	Context json.RawMessage `json:"context"`
}

type HistoryItem struct {
	From *string   `json:"from"`
	To   string    `json:"to"`
	By   *string   `json:"by"`
	At   time.Time `json:"at"`
}

type ClientDetailResponse struct {
	Client  ClientBody        `json:"client"`
	History []HistoryItem     `json:"history"`
	Stages  map[string]string `json:"stages"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// =============================================================================
// /dashboard
// =============================================================================

type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type AdminClientItem struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone"`
	Stage        string       `json:"stage"`
	StageDisplay string       `json:"stage_display"`
	AssignedTo   *UserSummary `json:"assigned_to"`
	CreatedAt    time.Time    `json:"created_at"`
}

type AdminClientsResponse struct {
	Clients []AdminClientItem `json:"clients"`
}

type CSMUsersResponse struct {
	CSMUsers []UserSummary `json:"csm_users"`
}

// AssignRequest is bound leniently so missing ids get the dashboard's own message.
type AssignRequest struct {
	ClientID string `json:"client_id"`
	CSMID    string `json:"csm_id"`
}

type DashboardClient struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone"`
	Stage        string          `json:"stage"`
	StageDisplay string          `json:"stage_display"`
	Context      json.RawMessage `json:"context"`
	CreatedAt    time.Time       `json:"created_at"`
}

type CSMClientsResponse struct {
	Clients []DashboardClient `json:"clients"`
}

type StageHistoryItem struct {
	FromStage *string   `json:"from_stage"`
	ToStage   string    `json:"to_stage"`
	ChangedBy *string   `json:"changed_by"`
	Remarks   string    `json:"remarks"`
	CreatedAt time.Time `json:"created_at"`
}

type DashboardDetailResponse struct {
	Client        DashboardClient    `json:"client"`
	StageHistory  []StageHistoryItem `json:"stage_history"`
	StageChoices  map[string]string  `json:"stage_choices"`
	TranscriptURL string             `json:"transcript_url,omitempty"`
}

type ChangeStageRequest struct {
	NewStage string `json:"new_stage"`
	Remarks  string `json:"remarks" validate:"max=2000"`
}

type ChangeStageResponse struct {
	Message string `json:"message"`
	Stage   string `json:"stage"`
}
