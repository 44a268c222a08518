package models

import "time"

type Course struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Document struct {
	DocID      string    `json:"doc_id"`
	Course     string    `json:"course"`
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
	FailReason string    `json:"fail_reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type IngestRun struct {
	RunID       string    `json:"run_id"`
	Course      string    `json:"course"`
	Status      string    `json:"status"`
	ChunkCount  int       `json:"chunk_count"`
	VectorCount int       `json:"vector_count"`
	FailStage   string    `json:"fail_stage,omitempty"`
	FailReason  string    `json:"fail_reason,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
