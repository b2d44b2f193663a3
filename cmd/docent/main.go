// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/docent"
	"github.com/poiesic/docent/ai"
	"github.com/poiesic/docent/indexer"
	"github.com/urfave/cli/v2"
)

var aiFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "host",
		Usage: "OpenAI-compatible service host URL for all AI services",
		Value: "http://localhost:11434/v1",
	},
	&cli.StringFlag{
		Name:  "embedding-model",
		Usage: "Embedding model name",
		Value: "embeddinggemma",
	},
	&cli.StringFlag{
		Name:  "chat-model",
		Usage: "Generation model name",
		Value: "qwen2.5:3b",
	},
	&cli.StringFlag{
		Name:  "rerank-host",
		Usage: "Rerank service host URL (defaults to --host)",
	},
	&cli.StringFlag{
		Name:  "rerank-model",
		Usage: "Rerank model name",
		Value: "ms-marco-MiniLM-L-6-v2",
	},
	&cli.DurationFlag{
		Name:  "timeout",
		Usage: "Per-call timeout for AI service requests",
		Value: 60 * time.Second,
	},
}

func main() {
	dbFlag := &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to BadgerDB database directory",
		Required: true,
	}

	app := &cli.App{
		Name:  "docent",
		Usage: "Question answering over a private document corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Index pre-chunked text files into the corpus",
				ArgsUsage: "FILE...",
				Action:    indexCommand,
				Flags:     append([]cli.Flag{dbFlag}, aiFlags...),
			},
			{
				Name:      "ask",
				Usage:     "Ask a question within a session",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: append([]cli.Flag{
					dbFlag,
					&cli.StringFlag{
						Name:    "session",
						Aliases: []string{"s"},
						Usage:   "Session identifier",
						Value:   "default",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of contexts to retrieve",
						Value: 5,
					},
					&cli.BoolFlag{
						Name:  "show-contexts",
						Usage: "Print the retrieved contexts after the answer",
					},
				}, aiFlags...),
			},
			{
				Name:   "history",
				Usage:  "Print a session's full transcript",
				Action: historyCommand,
				Flags: append([]cli.Flag{
					dbFlag,
					&cli.StringFlag{
						Name:    "session",
						Aliases: []string{"s"},
						Usage:   "Session identifier",
						Value:   "default",
					},
				}, aiFlags...),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogger(c *cli.Context) error {
	var level slog.Level
	switch strings.ToLower(c.String("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level: %s", c.String("log-level"))
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}

func aiConfigFromFlags(c *cli.Context) *ai.Config {
	rerankHost := c.String("rerank-host")
	if rerankHost == "" {
		rerankHost = c.String("host")
	}
	return ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithRerankHost(rerankHost),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithChatModel(c.String("chat-model")),
		ai.WithRerankModel(c.String("rerank-model")),
		ai.WithRequestTimeout(c.Duration("timeout")),
	)
}

func openEngine(c *cli.Context, opts ...docent.EngineOption) (*docent.Engine, error) {
	opts = append(opts, docent.WithAIConfig(aiConfigFromFlags(c)))
	engine, err := docent.NewEngine(c.String("db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

// indexCommand reads each argument file, splits it into chunks on blank
// lines, and indexes the result.
func indexCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one input file is required")
	}

	var docs []indexer.Document
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		source := filepath.Base(path)
		for _, block := range strings.Split(string(data), "\n\n") {
			text := strings.TrimSpace(block)
			if text == "" {
				continue
			}
			docs = append(docs, indexer.Document{
				Text:     text,
				Metadata: map[string]string{"source": source},
			})
		}
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	stored, err := engine.IndexDocuments(context.Background(), docs)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Indexed %d chunks from %d files\n", stored, c.NArg())
	return nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	engine, err := openEngine(c, docent.WithTopK(c.Int("top-k")))
	if err != nil {
		return err
	}
	defer engine.Close()

	answer, err := engine.Ask(context.Background(), c.String("session"), question)
	if err != nil {
		return fmt.Errorf("failed to answer question: %w", err)
	}

	fmt.Println(answer.Text)
	if answer.Source == docent.SourceCached {
		fmt.Fprintln(os.Stderr, "(served from cache)")
	}
	if c.Bool("show-contexts") && len(answer.Contexts) > 0 {
		fmt.Fprintln(os.Stderr, "\nContexts:")
		for i, context := range answer.Contexts {
			fmt.Fprintf(os.Stderr, "%d. %s\n", i+1, context)
		}
	}
	return nil
}

func historyCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	messages, err := engine.History(context.Background(), c.String("session"))
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	for _, message := range messages {
		fmt.Printf("[%s] %s: %s\n", message.Timestamp.Format("2006-01-02 15:04"), message.Role, message.Content)
	}
	return nil
}
