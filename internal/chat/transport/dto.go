package transport

import "time"

type SendMessageRequest struct {
	SessionID  string `json:"session_id" validate:"required"`
	Message    string `json:"message" validate:"required,max=5000"`
	SenderType string `json:"sender_type" validate:"omitempty,oneof=bot client"`
	DataType   string `json:"data_type" validate:"omitempty,oneof=message name email phone"`
}

type MessageResponse struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Message    string    `json:"message"`
	SenderType string    `json:"sender_type"`
	DataType   string    `json:"data_type"`
	SentAt     time.Time `json:"sent_at"`
}

type HistoryResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []MessageResponse `json:"messages"`
}
