package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/supportflow/conversation-router/pkg/api"
	"github.com/supportflow/conversation-router/pkg/audit"
	"github.com/supportflow/conversation-router/pkg/config"
	"github.com/supportflow/conversation-router/pkg/conversation"
	"github.com/supportflow/conversation-router/pkg/matcher"
	"github.com/supportflow/conversation-router/pkg/observability"
	"github.com/supportflow/conversation-router/pkg/redaction"
	"github.com/supportflow/conversation-router/pkg/store"
)

// envFeatureGate reads the per-organization AI-matching gate from the
// environment, the deployment surface the platform's feature system writes
// to. ORG_AI_MATCHING_DISABLED holds a comma-separated list of org ids.
type envFeatureGate struct {
	disabled map[string]struct{}
}

func newEnvFeatureGate() *envFeatureGate {
	gate := &envFeatureGate{disabled: make(map[string]struct{})}
	for _, org := range strings.Split(os.Getenv("ORG_AI_MATCHING_DISABLED"), ",") {
		if org = strings.TrimSpace(org); org != "" {
			gate.disabled[org] = struct{}{}
		}
	}
	return gate
}

func (g *envFeatureGate) AIMatchingEnabled(_ context.Context, orgID string) (bool, error) {
	_, off := g.disabled[orgID]
	return !off, nil
}

func main() {
	var (
		configPath  = flag.String("config", "config/config.yaml", "Path to the configuration file")
		apiAddr     = flag.String("api-addr", ":8080", "Address for the conversation API")
		metricsAddr = flag.String("metrics-addr", ":9190", "Address for Prometheus metrics")
	)
	flag.Parse()

	if _, err := observability.InitLoggerFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
	}

	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		observability.Fatalf("Config file not found: %s", *configPath)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		observability.Fatalf("Failed to load config: %v", err)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		observability.Infof("Starting metrics server on %s", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			observability.Errorf("Metrics server error: %v", err)
		}
	}()

	st, err := store.New(cfg.Store)
	if err != nil {
		observability.Fatalf("Failed to open conversation store: %v", err)
	}
	defer st.Close()

	auditStore, err := audit.NewStoreFromConfig(cfg.Audit)
	if err != nil {
		observability.Fatalf("Failed to open audit store: %v", err)
	}
	defer auditStore.Close()
	auditWriter := audit.NewAsyncWriter(auditStore, audit.AsyncWriterConfig{})
	auditWriter.Start()
	defer auditWriter.Stop()

	eligibility, err := conversation.NewStartEligibility(cfg.Eligibility.AllowedSenders)
	if err != nil {
		observability.Fatalf("Invalid eligibility configuration: %v", err)
	}

	chat := matcher.NewChatCompletionClient(matcher.NewChatCompletionClientOptions{
		Endpoint: cfg.Matcher.Endpoint,
	})
	policy := redaction.NewPolicyChecker(cfg.Redaction.AllowUnredacted)

	m := matcher.New(st, newEnvFeatureGate(), chat, policy, eligibility,
		matcher.ConfigFrom(cfg), matcher.WithAuditWriter(auditWriter))

	server := api.NewServer(m, st, auditStore, cfg)
	if err := server.Start(*apiAddr); err != nil {
		observability.Fatalf("API server error: %v", err)
	}
}
