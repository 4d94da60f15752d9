// Package main runs the RAG pipeline as an asynq background task
// handler (SPEC_FULL.md §2.2 domain stack), grounded on the teacher's
// internal/common/asyncq.go asynq.Server/ServeMux wiring.
package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/dig"

	"github.com/yuewanzhe/ragpipeline/internal/common"
	"github.com/yuewanzhe/ragpipeline/internal/config"
	"github.com/yuewanzhe/ragpipeline/internal/rag/container"
	"github.com/yuewanzhe/ragpipeline/internal/rag/llmport"
	"github.com/yuewanzhe/ragpipeline/internal/rag/pipeline"
	"github.com/yuewanzhe/ragpipeline/internal/rag/repository"
	"github.com/yuewanzhe/ragpipeline/internal/tracing"
)

const TaskTypeRAGRun = "rag:run"

// RAGRunPayload is the asynq task payload for one pipeline run.
type RAGRunPayload struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Query     string `json:"query"`
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	t, err := tracing.InitTracer()
	if err != nil {
		log.Fatalf("init tracer: %v", err)
	}
	defer func() {
		if err := t.Cleanup(context.Background()); err != nil {
			log.Printf("tracer cleanup: %v", err)
		}
	}()

	c := container.Build(dig.New())

	err = c.Invoke(func(cfg *config.Config, coord *pipeline.Coordinator) error {
		repo := repository.NewMemory()
		chat := &llmport.Fake{Responses: []string{"queued pipeline answer"}}

		common.RegisterHandlerFunc(TaskTypeRAGRun, func(ctx context.Context, t *asynq.Task) error {
			var payload RAGRunPayload
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return err
			}
			jobID := uuid.NewString()
			_ = repo.UpdateJobStatus(ctx, jobID, pipeline.Retrieving, "")

			st, answer, err := pipeline.Generate(ctx, coord, chat, jobID, payload.UserID, payload.SessionID, payload.Query)
			if err != nil {
				_ = repo.UpdateJobStatus(ctx, jobID, pipeline.Failed, err.Error())
				return err
			}

			if err := repo.FinalizeAssistantMessage(ctx, payload.SessionID, payload.MessageID, answer); err != nil {
				return err
			}
			if err := repo.SaveMessageCitations(ctx, payload.MessageID, st.Citations); err != nil {
				return err
			}
			return repo.UpdateJobStatus(ctx, jobID, pipeline.Done, "")
		})

		return common.InitAsyncq(cfg)
	})
	if err != nil {
		log.Fatalf("ragworker startup failed: %v", err)
	}

	select {}
}
