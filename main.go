package main

import (
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
	"txmanager/pkg/config"
	"txmanager/pkg/debug/ui"
	"txmanager/pkg/log"
	"txmanager/pkg/logging"
	"txmanager/pkg/metrics"
	"txmanager/pkg/storage/object"
	"txmanager/pkg/txmanager"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Configuration struct {
	ConfigPath    string
	AuditPath     string
	MetricsListen string
	LogLevel      string
	Quiet         bool
}

func main() {
	flags := parseArguments()

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError(err))
		os.Exit(1)
	}

	if err := logging.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flags.Quiet); err != nil {
		logging.Error("run failed", zap.Error(err))
		_ = logging.Close()
		os.Exit(1)
	}
}

// parseArguments processes command-line flags
func parseArguments() Configuration {
	var flags Configuration

	flag.StringVar(&flags.ConfigPath, "config", "", "YAML run description (objects, workload, sinks)")
	flag.StringVar(&flags.AuditPath, "audit", "", "Audit log path, overrides audit_log.path; - for stdout")
	flag.StringVar(&flags.MetricsListen, "metrics", "", "Address for the /metrics endpoint, overrides metrics.listen")
	flag.StringVar(&flags.LogLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR, overrides logging.level")
	flag.BoolVar(&flags.Quiet, "quiet", false, "Skip the banner and the final summary")

	flag.Parse()
	return flags
}

func loadConfig(flags Configuration) (*config.Config, error) {
	cfg := config.Default()
	if flags.ConfigPath != "" {
		loaded, err := config.Load(flags.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flags.AuditPath != "" {
		cfg.Audit.Path = flags.AuditPath
	}
	if flags.MetricsListen != "" {
		cfg.Metrics.Listen = flags.MetricsListen
	}
	if flags.LogLevel != "" {
		cfg.Logging.Level = logging.LogLevel(strings.ToUpper(flags.LogLevel))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, quiet bool) error {
	if !quiet {
		showBanner()
	}

	audit, err := openAudit(cfg.Audit)
	if err != nil {
		return err
	}
	defer audit.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	var srv *http.Server
	if cfg.Metrics.Listen != "" {
		srv = serveMetrics(cfg.Metrics.Listen, reg)
		defer shutdown(srv)
	}

	store := object.NewStoreFromValues(cfg.InitialValues())
	manager := txmanager.NewManager(store, txmanager.ManagerConfig{
		AuditLog:  audit,
		Metrics:   m,
		DelayUnit: cfg.Delay(),
	})

	if err := audit.LogRunHeader(manager.RunID(), time.Now()); err != nil {
		return err
	}

	ops, err := txmanager.BuildWorkload(cfg.Workload)
	if err != nil {
		return err
	}

	logging.Info("workload starting",
		zap.String("run_id", manager.RunID()),
		zap.Int("objects", store.Len()),
		zap.Int("operations", len(ops)),
		zap.Duration("delay_unit", cfg.Delay()))

	started := time.Now()
	report, runErr := manager.Run(ctx, ops)
	elapsed := time.Since(started)

	if err := audit.Flush(); err != nil {
		logging.Warn("audit flush failed", zap.Error(err))
	}

	for _, failed := range report.Failed {
		logging.Warn("operation failed", zap.Stringer("op", failed.Op), zap.Error(failed.Err))
	}
	logging.Info("workload finished",
		zap.Int("submitted", report.Submitted),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("elapsed", elapsed))

	if !quiet {
		printSummary(manager, report, elapsed)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	if srv != nil && runErr == nil {
		logging.Info("serving metrics until interrupted", zap.String("listen", cfg.Metrics.Listen))
		<-ctx.Done()
	}
	return nil
}

func openAudit(cfg config.AuditConfig) (*log.AuditLog, error) {
	if cfg.Path == "" || cfg.Path == "-" {
		return log.NewAuditLog(os.Stdout, cfg.BufferSize), nil
	}
	return log.OpenAuditLog(cfg.Path, cfg.BufferSize)
}

func serveMetrics(listen string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server failed", zap.String("listen", listen), zap.Error(err))
		}
	}()
	return srv
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("metrics server shutdown", zap.Error(err))
	}
}

func showBanner() {
	banner := `
╔══════════════════════════════════════════════╗
║   txmanager · strict 2PL over integer cells  ║
╚══════════════════════════════════════════════╝`

	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true)

	fmt.Fprintln(os.Stderr, style.Render(banner))
}

// printSummary renders the final object table and what is left in the registry
func printSummary(manager *txmanager.Manager, report *txmanager.Report, elapsed time.Duration) {
	snapshot := manager.Snapshot()
	rows := make([][]string, 0, len(snapshot))
	for i, v := range snapshot {
		rows = append(rows, []string{fmt.Sprintf("%d", i), fmt.Sprintf("%d", v)})
	}

	var b strings.Builder
	b.WriteString(ui.RenderTitle("📦", "Final object values") + "\n")
	b.WriteString(ui.RenderTable([]string{"Object", "Value"}, rows, -1))

	live := manager.Transactions()
	status := ui.SuccessStyle.Render(fmt.Sprintf("registry empty · %d operations in %s", report.Submitted, elapsed.Round(time.Microsecond)))
	if len(live) > 0 {
		ids := make([]string, len(live))
		for i, tid := range live {
			ids[i] = tid.String()
		}
		status = ui.ErrorStyle.Render(fmt.Sprintf("%d transactions still registered: %s", len(live), strings.Join(ids, ", ")))
	}
	b.WriteString("\n" + status + "\n")

	if len(report.Failed) > 0 {
		b.WriteString(ui.RenderHeaderWithCount("failed operations", len(report.Failed)) + "\n")
		for _, f := range report.Failed {
			b.WriteString(ui.ItemStyle.Render(ui.TruncateString(f.Error(), 120)) + "\n")
		}
	}

	fmt.Fprintln(os.Stderr, b.String())
}
