// Roundtable runs a multi-agent role-played discussion service. Four
// persona agents debate a topic over rotating LLM backends, with humans
// able to join over the HTTP API or the interactive console.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"dev.roundtable.agent/internal/config"
	"dev.roundtable.agent/internal/discussion"
	"dev.roundtable.agent/internal/handlers"
	"dev.roundtable.agent/internal/llm"
	"dev.roundtable.agent/internal/llm/providers"
	"dev.roundtable.agent/internal/observability/metrics"
	"dev.roundtable.agent/internal/research"
	"dev.roundtable.agent/internal/storage"
)

func main() {
	var (
		cliMode = flag.Bool("cli", false, "run an interactive console discussion instead of the HTTP server")
		topic   = flag.String("topic", "", "discussion topic for -cli mode")
		rounds  = flag.Int("rounds", 0, "override the maximum number of rounds")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()
	if *rounds > 0 {
		cfg.Discussion.MaxRounds = *rounds
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Monitoring.LogLevel); err == nil {
		log.SetLevel(level)
	}

	manager, collector, err := buildManager(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize discussion manager")
	}

	if *cliMode {
		runConsole(manager, *topic, cfg.Discussion.MaxRounds, log)
		return
	}

	runServer(cfg, manager, collector, log)
}

func buildManager(cfg *config.Config, log *logrus.Logger) (*discussion.Manager, *metrics.Collector, error) {
	collector := metrics.NewCollector()

	var agents map[string]discussion.Agent
	var usage discussion.UsageReporter
	if cfg.Discussion.DemoMode {
		log.Info("demo mode enabled, using template agents")
		agents = discussion.NewTemplateAgents(time.Now().UnixNano())
	} else {
		provs := providers.FromConfig(cfg.LLM)
		router := llm.NewRouter(cfg.LLM, provs, log, collector)
		agents = discussion.NewProviderAgents(router, cfg.Discussion.ContextWindow, log)
		usage = router
	}

	store, err := storage.New(cfg.Storage.Dir, cfg.Storage.Formats, log)
	if err != nil {
		return nil, nil, err
	}

	var researcher discussion.Researcher
	if rc := research.New(cfg.Research, log); rc.IsConfigured() {
		researcher = rc
	}

	manager := discussion.NewManager(discussion.Options{
		Agents:            agents,
		Usage:             usage,
		Store:             store,
		Researcher:        researcher,
		MaxRounds:         cfg.Discussion.MaxRounds,
		MaxAgentsPerRound: cfg.Discussion.MaxAgentsPerRound,
		ContextWindow:     cfg.Discussion.ContextWindow,
		Log:               log,
		Metrics:           collector,
	})
	return manager, collector, nil
}

func runServer(cfg *config.Config, manager *discussion.Manager, collector *metrics.Collector, log *logrus.Logger) {
	gin.SetMode(cfg.Server.Mode)
	engine := handlers.NewEngine(manager, collector, log)

	srv := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           engine,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("starting roundtable server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
}

func runConsole(manager *discussion.Manager, topic string, maxRounds int, log *logrus.Logger) {
	reader := bufio.NewReader(os.Stdin)
	ctx := context.Background()

	if topic == "" {
		fmt.Print("Discussion topic: ")
		line, _ := reader.ReadString('\n')
		topic = strings.TrimSpace(line)
	}
	if topic == "" {
		fmt.Println("no topic given")
		os.Exit(1)
	}

	session := manager.StartDiscussion(ctx, topic, "")
	fmt.Printf("Session %s started on %q (up to %d rounds)\n", session.ID(), topic, maxRounds)
	fmt.Println("Commands: <enter> next round, 'say <text>' to contribute, 'end' to finish")

loop:
	for manager.ShouldContinue() {
		if _, err := manager.AdvanceRound(); err != nil {
			break
		}
		for _, msg := range manager.GenerateAgentResponses(ctx, nil) {
			fmt.Printf("\n%s:\n%s\n", msg.Speaker, msg.Content)
		}

		fmt.Print("\n> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "end":
			break loop
		case strings.HasPrefix(line, "say "):
			if _, err := manager.AddHumanMessage("human", strings.TrimPrefix(line, "say ")); err != nil {
				fmt.Printf("could not add message: %v\n", err)
			}
		}
	}

	summary, err := manager.EndDiscussion()
	if err != nil {
		log.WithError(err).Error("failed to end discussion")
		return
	}
	fmt.Printf("\n%s\n", summary.Summary)
	for format, path := range summary.SavedFiles {
		fmt.Printf("saved %s: %s\n", format, path)
	}

	usage, costs, _ := manager.UsageReport()
	if usage.TotalRequests > 0 {
		fmt.Printf("\nAPI usage: %d requests, %d failures, est. $%.4f today\n",
			usage.TotalRequests, usage.TotalFailures, costs.TotalDailyCost)
	}
}
