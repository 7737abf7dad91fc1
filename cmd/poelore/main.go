// Copyright 2025 Kadir Pekel
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

// Command poelore serves natural-language answers about Path of Exile
// 2 items.
//
// Usage:
//
//	poelore serve --config config.yaml
//	poelore ingest --config config.yaml
//	poelore search "bows with chain chance" --config config.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/poelore/internal/httpclient"
	"github.com/kadirpekel/poelore/pkg/config"
	"github.com/kadirpekel/poelore/pkg/embedder"
	"github.com/kadirpekel/poelore/pkg/ingest"
	"github.com/kadirpekel/poelore/pkg/logger"
	"github.com/kadirpekel/poelore/pkg/model/gemini"
	"github.com/kadirpekel/poelore/pkg/orchestrator"
	"github.com/kadirpekel/poelore/pkg/rag"
	"github.com/kadirpekel/poelore/pkg/server"
	"github.com/kadirpekel/poelore/pkg/tool/mcptoolset"
	"github.com/kadirpekel/poelore/pkg/vector"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP server."`
	Ingest  IngestCmd  `cmd:"" help:"Ingest item data into the vector store."`
	Search  SearchCmd  `cmd:"" help:"Run a diagnostic similarity search."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"config.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (text, json)." default:"text"`
	LogFile   string `help:"Log file path (empty = stderr)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(*CLI) error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("poelore version %s\n", version)
	return nil
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port int `help:"Override the configured port."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	llm, err := gemini.New(cfg.LLM)
	if err != nil {
		return err
	}
	defer llm.Close()

	emb, err := embedder.NewGemini(cfg.Embedder)
	if err != nil {
		return err
	}
	defer emb.Close()

	provider, err := vector.NewProvider(&cfg.Vector.ProviderConfig)
	if err != nil {
		return err
	}
	defer provider.Close()

	search, err := rag.NewSearchService(emb, provider, cfg.Vector.Collection)
	if err != nil {
		return err
	}
	graph, err := rag.NewGraph(llm, search)
	if err != nil {
		return err
	}

	factory, err := mcptoolset.NewFactory(cfg.MCP)
	if err != nil {
		return err
	}
	orch, err := orchestrator.New(llm, factory)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv, err := server.New(addr, orch, graph)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	return srv.Start(ctx)
}

// IngestCmd populates the vector store from the RePoE feeds.
type IngestCmd struct{}

func (c *IngestCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	emb, err := embedder.NewGemini(cfg.Embedder)
	if err != nil {
		return err
	}
	defer emb.Close()

	provider, err := vector.NewProvider(&cfg.Vector.ProviderConfig)
	if err != nil {
		return err
	}
	defer provider.Close()

	source := ingest.NewSource(httpclient.New(), cfg.Ingest.BaseItemsURL, cfg.Ingest.ModsURL)
	pipeline, err := ingest.NewPipeline(source, emb, provider, cfg.Vector.Collection)
	if err != nil {
		return err
	}

	count, err := pipeline.Run(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %d items into %q\n", count, cfg.Vector.Collection)
	return nil
}

// SearchCmd runs an ad hoc similarity search against the store.
type SearchCmd struct {
	Query string `arg:"" help:"Search query."`
	K     int    `short:"k" help:"Number of results." default:"5"`
}

func (c *SearchCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	emb, err := embedder.NewGemini(cfg.Embedder)
	if err != nil {
		return err
	}
	defer emb.Close()

	provider, err := vector.NewProvider(&cfg.Vector.ProviderConfig)
	if err != nil {
		return err
	}
	defer provider.Close()

	search, err := rag.NewSearchService(emb, provider, cfg.Vector.Collection)
	if err != nil {
		return err
	}

	chunks, err := search.SimilaritySearch(context.Background(), c.Query, c.K)
	if err != nil {
		return err
	}

	for i, chunk := range chunks {
		fmt.Printf("--- %d (%s)\n%s\n", i+1, chunk.Metadata["name"], chunk.Text)
	}
	return nil
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("poelore"),
		kong.Description("Path of Exile 2 item knowledge service"),
		kong.UsageOnError(),
	)

	cleanup, err := logger.Setup(cli.LogLevel, cli.LogFormat, cli.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
