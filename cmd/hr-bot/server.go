package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/mohammed-elhaj/hr-bot/internal/agent"
	"github.com/mohammed-elhaj/hr-bot/internal/answer"
	"github.com/mohammed-elhaj/hr-bot/internal/api"
	"github.com/mohammed-elhaj/hr-bot/internal/config"
	"github.com/mohammed-elhaj/hr-bot/internal/docindex"
	"github.com/mohammed-elhaj/hr-bot/internal/history"
	"github.com/mohammed-elhaj/hr-bot/internal/llm"
	"github.com/mohammed-elhaj/hr-bot/internal/ticket"
	"github.com/mohammed-elhaj/hr-bot/internal/vacation"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the hr-bot server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running hr-bot server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hr-bot system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "hr-bot.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "hr-bot version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Refuse to start twice. The health endpoint is the source of truth; a
	// stale PID file alone does not block startup.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("hr-bot is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("hr-bot is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	llmClient := llm.New(cfg.LLM.BaseURL)
	if !llmClient.IsRunning(ctx) {
		printWarning("LLM service not reachable at %s, chat and ingest will fail until it is up", cfg.LLM.BaseURL)
	}

	ledger := vacation.NewLedger(cfg.VacationsFile())
	tickets := ticket.NewRegistry(cfg.TicketsFile(), cfg.SupportTicketsFile())
	historyStore := history.NewStore(cfg.HistoryDir())

	chunker := docindex.NewChunker(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	embedder := docindex.NewEmbedder(llmClient, cfg.LLM.EmbedModel)
	registry := docindex.NewRegistry(cfg.CollectionsDir(), cfg.DocumentsFile(), chunker, embedder)
	if err := registry.Load(); err != nil {
		return fmt.Errorf("loading document collections: %w", err)
	}
	defer func() {
		if err := registry.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing collections: %v\n", err)
		}
	}()

	answerer := answer.New(llmClient, embedder, registry,
		cfg.LLM.ChatModel, cfg.Retrieval.PerCollection, cfg.Retrieval.ContextLimit)
	orchestrator := agent.New(llmClient, cfg.LLM.ChatModel, answerer, ledger, tickets, historyStore)

	handler := api.NewAppHandler(api.AppDeps{
		Agent:     orchestrator,
		Registry:  registry,
		Ledger:    ledger,
		Tickets:   tickets,
		History:   historyStore,
		UploadDir: cfg.UploadDir(),
		Token:     cfg.Server.AdminToken,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP stdio transport runs alongside the HTTP server.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Policy:  answerer,
		Ledger:  ledger,
		Tickets: tickets,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "hr-bot listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("hr-bot is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop hr-bot (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to hr-bot (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	llmResp, err := client.Get(cfg.LLM.BaseURL + "/api/tags")
	if err != nil {
		printStatus("LLM service", "not running")
	} else {
		llmResp.Body.Close()
		printStatus("LLM service", "running at %s", cfg.LLM.BaseURL)
	}

	printStatus("Chat model", "%s", cfg.LLM.ChatModel)
	printStatus("Embed model", "%s", cfg.LLM.EmbedModel)

	if running {
		apiCl := &apiClient{
			baseURL:    serverURL,
			token:      cfg.Server.AdminToken,
			httpClient: client,
		}
		docsResp, err := apiCl.get(context.Background(), "/api/admin/documents")
		if err == nil {
			var listed struct {
				Documents []struct{} `json:"documents"`
				Active    []string   `json:"active"`
			}
			if decodeJSON(docsResp, &listed) == nil {
				printStatus("Documents", "%d indexed, %d active", len(listed.Documents), len(listed.Active))
			}
		}
		ticketsResp, err := apiCl.get(context.Background(), "/api/admin/tickets")
		if err == nil {
			var listed struct {
				VacationTickets []struct{} `json:"vacation_tickets"`
				SupportTickets  []struct{} `json:"support_tickets"`
			}
			if decodeJSON(ticketsResp, &listed) == nil {
				printStatus("Tickets", "%d vacation, %d support", len(listed.VacationTickets), len(listed.SupportTickets))
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
