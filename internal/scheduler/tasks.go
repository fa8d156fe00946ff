package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskSummarizeChat = "clients.summarize_chat"

const TaskArchiveTranscript = "chat.archive_transcript"

// ClientSessionPayload identifies an initialized client and the chat session it came from.
type ClientSessionPayload struct {
	ClientID  string `json:"clientId"`
	SessionID string `json:"sessionId"`
}

func (p ClientSessionPayload) ids() (uuid.UUID, uuid.UUID, error) {
	clientID, err := uuid.Parse(p.ClientID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("client id: %w", err)
	}
	sessionID, err := uuid.Parse(p.SessionID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("session id: %w", err)
	}
	return clientID, sessionID, nil
}

func NewSummarizeChatTask(payload ClientSessionPayload) (*asynq.Task, error) {
	return newClientSessionTask(TaskSummarizeChat, payload)
}

func NewArchiveTranscriptTask(payload ClientSessionPayload) (*asynq.Task, error) {
	return newClientSessionTask(TaskArchiveTranscript, payload)
}

func newClientSessionTask(typename string, payload ClientSessionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, data), nil
}

func ParseClientSessionPayload(task *asynq.Task) (ClientSessionPayload, error) {
	var payload ClientSessionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ClientSessionPayload{}, err
	}
	return payload, nil
}
