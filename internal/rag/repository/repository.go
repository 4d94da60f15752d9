// Package repository implements the ChatRepository port (spec §6): the
// durable side-effects a pipeline run produces (finalizing the
// assistant's message, persisting citations, and job status/event
// bookkeeping), grounded on the teacher's
// internal/application/repository/message.go GORM patterns.
package repository

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/yuewanzhe/ragpipeline/internal/rag/pipeline"
)

func marshalPayload(payload map[string]any) (string, error) {
	if len(payload) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ChatRepository is the durable persistence port a pipeline run writes to.
type ChatRepository interface {
	FinalizeAssistantMessage(ctx context.Context, sessionID, messageID, content string) error
	SaveMessageCitations(ctx context.Context, messageID string, citations []pipeline.Citation) error
	AppendJobEvent(ctx context.Context, jobID, name string, payload map[string]any) error
	UpdateJobStatus(ctx context.Context, jobID string, status pipeline.Status, errMsg string) error
}

// messageRow and citationRow mirror the teacher's types.Message /
// types.KnowledgeReference GORM row shape, narrowed to this domain.
type messageRow struct {
	ID        string `gorm:"primaryKey"`
	SessionID string
	Role      string
	Content   string
	UpdatedAt time.Time
}

func (messageRow) TableName() string { return "rag_messages" }

type citationRow struct {
	ID          uint `gorm:"primaryKey;autoIncrement"`
	MessageID   string
	SourceID    string
	Title       string
	FileName    string
	URI         string
	ChunkID     string
	Page        *int
	Snippet     string
	RerankScore *float64
	Score       *float64
	CreatedAt   time.Time
}

func (citationRow) TableName() string { return "rag_citations" }

type jobEventRow struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	JobID     string
	Name      string
	Payload   string
	CreatedAt time.Time
}

func (jobEventRow) TableName() string { return "rag_job_events" }

type jobRow struct {
	ID        string `gorm:"primaryKey"`
	Status    string
	Error     string
	UpdatedAt time.Time
}

func (jobRow) TableName() string { return "rag_jobs" }

// GormRepository persists to Postgres via GORM, adapted from the
// teacher's messageRepository.
type GormRepository struct {
	DB *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{DB: db}
}

func (r *GormRepository) FinalizeAssistantMessage(ctx context.Context, sessionID, messageID, content string) error {
	row := messageRow{ID: messageID, SessionID: sessionID, Role: "assistant", Content: content, UpdatedAt: time.Now()}
	return r.DB.WithContext(ctx).Save(&row).Error
}

func (r *GormRepository) SaveMessageCitations(ctx context.Context, messageID string, citations []pipeline.Citation) error {
	rows := make([]citationRow, 0, len(citations))
	for _, c := range citations {
		rows = append(rows, citationRow{
			MessageID:   messageID,
			SourceID:    c.SourceID,
			Title:       c.Title,
			FileName:    c.FileName,
			URI:         c.URI,
			ChunkID:     c.ChunkID,
			Page:        c.Page,
			Snippet:     c.Snippet,
			RerankScore: c.RerankScore,
			Score:       c.Score,
			CreatedAt:   time.Now(),
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Create(&rows).Error
}

func (r *GormRepository) AppendJobEvent(ctx context.Context, jobID, name string, payload map[string]any) error {
	b, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	row := jobEventRow{JobID: jobID, Name: name, Payload: b, CreatedAt: time.Now()}
	return r.DB.WithContext(ctx).Create(&row).Error
}

func (r *GormRepository) UpdateJobStatus(ctx context.Context, jobID string, status pipeline.Status, errMsg string) error {
	row := jobRow{ID: jobID, Status: string(status), Error: errMsg, UpdatedAt: time.Now()}
	return r.DB.WithContext(ctx).Save(&row).Error
}

// Memory is an in-process ChatRepository, used by cmd/ragworker and tests.
type Memory struct {
	Messages  map[string]string
	Citations map[string][]pipeline.Citation
	JobEvents map[string][]string
	JobStatus map[string]pipeline.Status
}

func NewMemory() *Memory {
	return &Memory{
		Messages:  map[string]string{},
		Citations: map[string][]pipeline.Citation{},
		JobEvents: map[string][]string{},
		JobStatus: map[string]pipeline.Status{},
	}
}

func (m *Memory) FinalizeAssistantMessage(_ context.Context, _, messageID, content string) error {
	m.Messages[messageID] = content
	return nil
}

func (m *Memory) SaveMessageCitations(_ context.Context, messageID string, citations []pipeline.Citation) error {
	m.Citations[messageID] = citations
	return nil
}

func (m *Memory) AppendJobEvent(_ context.Context, jobID, name string, _ map[string]any) error {
	m.JobEvents[jobID] = append(m.JobEvents[jobID], name)
	return nil
}

func (m *Memory) UpdateJobStatus(_ context.Context, jobID string, status pipeline.Status, _ string) error {
	m.JobStatus[jobID] = status
	return nil
}
