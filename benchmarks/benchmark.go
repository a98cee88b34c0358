package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"
	"txmanager/pkg/concurrency/transaction"
	"txmanager/pkg/log"
	"txmanager/pkg/logging"
	"txmanager/pkg/primitives"
	"txmanager/pkg/storage/object"
	"txmanager/pkg/txmanager"

	"go.uber.org/zap"
)

// BenchmarkResult captures latency and throughput of one contention scenario.
type BenchmarkResult struct {
	Scenario          string        `json:"scenario"`
	Transactions      int           `json:"transactions"`
	OpsPerTransaction int           `json:"ops_per_transaction"`
	Concurrent        int           `json:"concurrent"`
	TotalDuration     time.Duration `json:"total_duration_ns"`
	AvgDuration       time.Duration `json:"avg_duration_ns"`
	MinDuration       time.Duration `json:"min_duration_ns"`
	MaxDuration       time.Duration `json:"max_duration_ns"`
	MedianDuration    time.Duration `json:"median_duration_ns"`
	P95Duration       time.Duration `json:"p95_duration_ns"`
	P99Duration       time.Duration `json:"p99_duration_ns"`
	TxPerSecond       float64       `json:"tx_per_second"`
	ErrorCount        int           `json:"error_count"`
	ErrorSamples      []string      `json:"error_samples"`
	FinalValues       []int64       `json:"final_values"`
}

type BenchmarkReport struct {
	StartTime     time.Time         `json:"start_time"`
	EndTime       time.Time         `json:"end_time"`
	TotalDuration time.Duration     `json:"total_duration"`
	Objects       int               `json:"objects"`
	Results       []BenchmarkResult `json:"results"`
}

// scenario decides which objects transaction i touches and how.
// Objects must come back in ascending order so concurrent transactions
// cannot form a wait cycle.
type scenario struct {
	name  string
	kind  transaction.Kind
	write bool
	pick  func(i, ops, objects int) []primitives.ObjectID
}

func disjoint(i, ops, objects int) []primitives.ObjectID {
	start := (i * ops) % objects
	out := make([]primitives.ObjectID, 0, ops)
	for j := 0; j < ops && start+j < objects; j++ {
		out = append(out, primitives.ObjectID(start+j))
	}
	return out
}

func hot(_, ops, _ int) []primitives.ObjectID {
	out := make([]primitives.ObjectID, ops)
	for j := range out {
		out[j] = primitives.ObjectID(j)
	}
	return out
}

// main runs every scenario and writes a JSON report.
//
// Environment variables:
//   - BENCHMARK_OUTPUT: Directory for the report (default: ./benchmark-results)
//   - BENCHMARK_TRANSACTIONS: Transactions per scenario (default: 1000)
//   - BENCHMARK_CONCURRENT: Transactions in flight (default: 16)
//   - BENCHMARK_OPS: Reads or writes per transaction (default: 4)
//   - BENCHMARK_OBJECTS: Size of the object table (default: 256)
func main() {
	logging.InitDefault()
	defer logging.Close()

	outputDir := filepath.Clean(os.Getenv("BENCHMARK_OUTPUT"))
	if outputDir == "." {
		outputDir = "./benchmark-results"
	}
	transactions := envInt("BENCHMARK_TRANSACTIONS", 1000)
	concurrent := envInt("BENCHMARK_CONCURRENT", 16)
	ops := envInt("BENCHMARK_OPS", 4)
	objects := envInt("BENCHMARK_OBJECTS", 256)

	_ = os.MkdirAll(outputDir, 0o750) // #nosec G703

	logging.Info("starting benchmark suite",
		zap.Int("transactions", transactions), zap.Int("concurrent", concurrent),
		zap.Int("ops", ops), zap.Int("objects", objects))

	scenarios := []scenario{
		{name: "disjoint writers", kind: transaction.ReadWrite, write: true, pick: disjoint},
		{name: "shared readers on hot objects", kind: transaction.ReadOnly, pick: hot},
		{name: "writers on hot objects", kind: transaction.ReadWrite, write: true, pick: hot},
	}

	report := BenchmarkReport{StartTime: time.Now(), Objects: objects}
	for _, s := range scenarios {
		result := runScenario(s, transactions, ops, concurrent, objects)
		report.Results = append(report.Results, result)
		printBenchmarkResult(result)
	}
	report.EndTime = time.Now()
	report.TotalDuration = report.EndTime.Sub(report.StartTime)

	jsonFile := filepath.Join(outputDir, fmt.Sprintf("benchmark_report_%s.json", time.Now().Format("20060102_150405")))
	saveJSONReport(report, jsonFile)
}

func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// runScenario drives each transaction from its own goroutine, with at most
// concurrent transactions in flight at once.
func runScenario(s scenario, transactions, ops, concurrent, objects int) BenchmarkResult {
	manager := txmanager.NewManager(object.NewStore(objects, 0), txmanager.ManagerConfig{
		AuditLog: log.Discard(),
	})

	durations := make([]time.Duration, 0, transactions)
	errorSamples := make([]string, 0, 5)
	errorCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup

	sem := make(chan struct{}, concurrent)
	startTime := time.Now()

	for i := range transactions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			txStart := time.Now()
			err := runTransaction(manager, s, primitives.TransactionID(i+1), s.pick(i, ops, objects))
			d := time.Since(txStart)

			mu.Lock()
			durations = append(durations, d)
			if err != nil {
				errorCount++
				if len(errorSamples) < 5 {
					errorSamples = append(errorSamples, err.Error())
				}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	total := time.Since(startTime)

	slices.Sort(durations)
	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return BenchmarkResult{
		Scenario:          s.name,
		Transactions:      transactions,
		OpsPerTransaction: ops,
		Concurrent:        concurrent,
		TotalDuration:     total,
		AvgDuration:       sum / time.Duration(len(durations)),
		MinDuration:       durations[0],
		MaxDuration:       durations[len(durations)-1],
		MedianDuration:    durations[len(durations)/2],
		P95Duration:       durations[int(float64(len(durations))*0.95)],
		P99Duration:       durations[int(float64(len(durations))*0.99)],
		TxPerSecond:       float64(transactions) / total.Seconds(),
		ErrorCount:        errorCount,
		ErrorSamples:      errorSamples,
		FinalValues:       manager.Snapshot()[:min(objects, 8)],
	}
}

func runTransaction(m *txmanager.Manager, s scenario, tid primitives.TransactionID, objects []primitives.ObjectID) error {
	if err := m.Begin(tid, s.kind, 0); err != nil {
		return err
	}
	for _, obj := range objects {
		var err error
		if s.write {
			err = m.Write(tid, obj)
		} else {
			err = m.Read(tid, obj)
		}
		if err != nil {
			_ = m.Abort(tid)
			return err
		}
	}
	return m.Commit(tid)
}

// formatDuration formats a duration in a human-readable way with appropriate units.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

func printBenchmarkResult(r BenchmarkResult) {
	logging.Info("scenario finished",
		zap.String("scenario", r.Scenario),
		zap.String("total", formatDuration(r.TotalDuration)),
		zap.String("avg", formatDuration(r.AvgDuration)),
		zap.String("p50", formatDuration(r.MedianDuration)),
		zap.String("p95", formatDuration(r.P95Duration)),
		zap.String("p99", formatDuration(r.P99Duration)),
		zap.String("max", formatDuration(r.MaxDuration)),
		zap.Float64("tx_per_sec", r.TxPerSecond),
		zap.Int("errors", r.ErrorCount))
}

func saveJSONReport(report BenchmarkReport, filename string) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logging.Error("failed to marshal report", zap.Error(err))
		return
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil { // #nosec G703
		logging.Error("failed to write report", zap.String("file", filename), zap.Error(err))
		return
	}
	logging.Info("report saved", zap.String("file", filename))
}
