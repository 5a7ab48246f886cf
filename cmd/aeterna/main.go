package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kikokikok/aeterna-sub004/internal/contextarchitect"
	contextfake "github.com/kikokikok/aeterna-sub004/internal/contextarchitect/fake"
	"github.com/kikokikok/aeterna-sub004/internal/governance"
	"github.com/kikokikok/aeterna-sub004/internal/httpserver"
	"github.com/kikokikok/aeterna-sub004/internal/httpserver/auth"
	"github.com/kikokikok/aeterna-sub004/internal/knowledge"
	"github.com/kikokikok/aeterna-sub004/internal/memory"
	memoryfake "github.com/kikokikok/aeterna-sub004/internal/memory/fake"
	"github.com/kikokikok/aeterna-sub004/internal/metrics"
	"github.com/kikokikok/aeterna-sub004/internal/storage/commitstore"
	"github.com/kikokikok/aeterna-sub004/internal/storage/fsknowledge"
	"github.com/kikokikok/aeterna-sub004/internal/storage/relstore"
	"github.com/kikokikok/aeterna-sub004/internal/syncbridge"
	"github.com/kikokikok/aeterna-sub004/pkg/env"
	"github.com/kikokikok/aeterna-sub004/pkg/ports"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "aeterna",
		Short: "aeterna is the memory-and-knowledge substrate for AI agents",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newConfigCmd())
	return root
}

func newConfigCmd() *cobra.Command {
	var component, format string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect aeterna's environment-variable configuration surface",
	}
	describe := &cobra.Command{
		Use:   "describe",
		Short: "Print every registered environment variable, its default, and its purpose",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "json":
				fmt.Println(env.ExportJSON(component))
			default:
				fmt.Println(env.ExportMarkdown(component))
			}
			return nil
		},
	}
	describe.Flags().StringVar(&component, "component", "all", "Restrict output to one component (memory, knowledge, governance, sync, context, storage, server, testing)")
	describe.Flags().StringVar(&format, "format", "markdown", "Output format: markdown or json")
	cmd.AddCommand(describe)
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the aeterna HTTP operation surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("AETERNA_DEV_LOGGING") == "true" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// staticUnitResolver is the default governance.MemoryHookConfig: it never
// resolves a governing unit, so memory writes are accepted unconditionally
// until a deployment wires a real tenant-path-to-unit mapping.
type staticUnitResolver struct{}

func (staticUnitResolver) UnitForTenantPath(string) (string, bool) { return "", false }

// truncatingSummarizer is a dependency-free stopgap ports.Summarizer: no
// summarization-model client exists anywhere in the retrieved pack, so it
// truncates to a depth-appropriate length rather than calling out to a model.
// A real deployment supplies its own Summarizer via contextarchitect.TierSelector.
type truncatingSummarizer struct{}

func (truncatingSummarizer) Summarize(_ context.Context, text string, depth ports.SummaryDepth, personalizationContext string) (*ports.LayerSummary, error) {
	limit := map[ports.SummaryDepth]int{
		ports.DepthSentence:  140,
		ports.DepthParagraph: 600,
		ports.DepthDetailed:  2000,
	}[depth]
	if limit == 0 {
		limit = 600
	}
	content := text
	if len(content) > limit {
		content = content[:limit]
	}
	sum := sha256.Sum256([]byte(text))
	return &ports.LayerSummary{
		Depth:        depth,
		Content:      strings.TrimSpace(content),
		TokenCount:   len(strings.Fields(content)),
		SourceHash:   hex.EncodeToString(sum[:]),
		Personalized: personalizationContext != "",
	}, nil
}

func embeddingDimension() int { return env.EmbeddingDimension.Get() }

func buildArchitect(log *zap.Logger) *contextarchitect.Architect {
	summarizer := truncatingSummarizer{}
	tiers := contextarchitect.TierSelector{Expensive: summarizer, Cheap: summarizer}
	breaker := contextarchitect.NewCircuitBreaker(5, time.Minute, 5*time.Minute)
	generator := contextarchitect.NewGenerator(contextfake.NewSummaryStore(), tiers, breaker)
	tenantID := env.DefaultTenantID.Get()
	budget := contextarchitect.SummarizationBudget{TenantID: tenantID, DailyTokens: env.DailyTokenBudget.Get(), HourlyTokens: env.HourlyTokenBudget.Get()}
	onAlert := func(pct int) {
		metrics.BudgetAlertsTotal.WithLabelValues(tenantID, strconv.Itoa(pct)).Inc()
		log.Warn("summarization budget threshold crossed", zap.String("tenant_id", tenantID), zap.Int("pct", pct))
	}
	tracker := contextarchitect.NewBudgetTracker(budget, onAlert)
	return contextarchitect.NewArchitect(memoryfake.NewEmbedder(embeddingDimension()), contextfake.NewSummaryStore(), generator, tracker, 5*time.Second)
}

func buildAuthorizer() auth.Authorizer {
	endpoint := os.Getenv("AETERNA_EXTERNAL_AUTHZ_ENDPOINT")
	if endpoint == "" {
		return &auth.NoopAuthorizer{}
	}
	provider, err := auth.ProviderByName(os.Getenv("AETERNA_AUTHZ_PROVIDER"))
	if err != nil {
		return &auth.NoopAuthorizer{}
	}
	return &auth.ExternalAuthorizer{Endpoint: endpoint, Provider: provider, Client: &http.Client{Timeout: 5 * time.Second}}
}

func serve(ctx context.Context) error {
	viper.SetEnvPrefix("AETERNA")
	viper.AutomaticEnv()

	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("aeterna: build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	manager, err := relstore.Open(relstore.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("aeterna: open database: %w", err)
	}
	defer manager.Close() //nolint:errcheck

	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("aeterna: initialize schema: %w", err)
	}

	// knowledge.Repository's CommitStore field is not tenant-parameterized at
	// call sites, so a single process serves a single tenant's commit log;
	// multi-tenant deployments run one aeterna process per tenant today.
	commits := commitstore.New(manager.DB(), env.DefaultTenantID.Get())
	if err := commits.Migrate(context.Background()); err != nil {
		return fmt.Errorf("aeterna: migrate commit log: %w", err)
	}

	eventLog := governance.NewEventLog()
	governanceEngine := governance.NewEngine(
		relstore.NewUnitStore(manager),
		relstore.NewRoleStore(manager),
		eventLog,
		governance.WithPolicyStore(relstore.NewPolicyStore(manager)),
	)

	memoryHook := governance.MemoryHook{Engine: governanceEngine, Units: staticUnitResolver{}}
	memoryEngine := memory.NewEngine(
		relstore.NewMemoryStore(manager),
		memoryfake.NewEmbedder(embeddingDimension()),
		memory.WithGovernance(memoryHook),
		memory.WithLogger(log),
		memory.WithDimension(embeddingDimension()),
	)

	var knowledgeStore knowledge.ItemStore = relstore.NewKnowledgeStore(manager)
	if root := env.KnowledgeMirrorRoot.Get(); root != "" {
		knowledgeStore = fsknowledge.New(knowledgeStore, root, env.DefaultTenantID.Get(), log)
	}
	knowledgeRepo := knowledge.NewRepository(
		knowledgeStore,
		commits,
		knowledge.WithConstraintEvaluator(governanceEngine),
	)

	bridge := syncbridge.NewBridge(
		memoryEngine, knowledgeRepo,
		relstore.NewSyncStateStore(manager),
		map[string]syncbridge.ConflictPolicy{},
		syncbridge.WithLogger(log),
	)

	router := httpserver.NewRouter(httpserver.Dependencies{
		Log:          log,
		MemoryEngine: memoryEngine,
		Knowledge:    knowledgeRepo,
		Governance:   governanceEngine,
		Suppressions: relstore.NewDriftSuppressionStore(manager),
		SyncBridge:   bridge,
		Architect:    buildArchitect(log),
		Authorizer:   buildAuthorizer(),
		AuditLog:     httpserver.AuditLogConfig{Enabled: env.AuditLogEnabled.Get()},
	})

	return runServer(ctx, log, router)
}

func runServer(ctx context.Context, log *zap.Logger, handler http.Handler) error {
	srv := &http.Server{Addr: env.ServerAddr.Get(), Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		log.Info("aeterna: listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	select {
	case err := <-errCh:
		return err
	case <-stop.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	log.Info("aeterna: shutting down")
	return srv.Shutdown(shutdownCtx)
}
