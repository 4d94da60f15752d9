// Package main is a demo binary that exercises the RAG pipeline
// end-to-end in-process; it is not an HTTP surface (spec §1), grounded
// on the teacher's cmd/server/main.go dig-container bootstrap idiom.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"go.uber.org/dig"

	"github.com/yuewanzhe/ragpipeline/internal/config"
	"github.com/yuewanzhe/ragpipeline/internal/rag/container"
	"github.com/yuewanzhe/ragpipeline/internal/rag/llmport"
	"github.com/yuewanzhe/ragpipeline/internal/rag/pipeline"
	"github.com/yuewanzhe/ragpipeline/internal/tracing"
)

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

	query := "what is retrieval augmented generation?"
	if len(os.Args) > 1 {
		query = os.Args[1]
	}

	c := container.Build(dig.New())

	err = c.Invoke(func(cfg *config.Config, coord *pipeline.Coordinator) error {
		chat := &llmport.Fake{Responses: []string{"This is a demo answer grounded in the retrieved context."}}
		jobID := uuid.NewString()
		st, answer, err := pipeline.Generate(context.Background(), coord, chat, jobID, "demo-user", "demo-session", query)
		if err != nil {
			return fmt.Errorf("pipeline run failed: %w", err)
		}
		fmt.Printf("status: %s\ndocs kept: %d\nanswer: %s\n", st.Status, len(st.Docs), answer)
		for _, cit := range st.Citations {
			fmt.Printf("  [%s] %s %s\n", cit.SourceID, cit.Title, cit.URI)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("demo run failed: %v", err)
	}
}
