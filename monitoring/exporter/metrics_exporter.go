package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"
	"txmanager/pkg/concurrency/transaction"
	"txmanager/pkg/log"
	"txmanager/pkg/logging"
	"txmanager/pkg/metrics"
	"txmanager/pkg/primitives"
	"txmanager/pkg/storage/object"
	"txmanager/pkg/txmanager"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Simulator drives a synthetic workload through one manager so the exporter
// always has lock traffic to report.
type Simulator struct {
	manager  *txmanager.Manager
	objects  int
	txPerRun int
	opsPerTx int
	nextTID  atomic.Int64
	rng      *rand.Rand
	rounds   prometheus.Counter
}

func NewSimulator(manager *txmanager.Manager, objects, txPerRun, opsPerTx int, reg prometheus.Registerer) *Simulator {
	rounds := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "txmanager",
		Subsystem: "exporter",
		Name:      "rounds_total",
		Help:      "Synthetic workload rounds completed.",
	})
	reg.MustRegister(rounds)

	return &Simulator{
		manager:  manager,
		objects:  objects,
		txPerRun: txPerRun,
		opsPerTx: opsPerTx,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		rounds:   rounds,
	}
}

// workload builds one round. Every transaction touches its objects in
// ascending order, so rounds cannot deadlock.
func (s *Simulator) workload() []txmanager.Operation {
	var ops []txmanager.Operation

	for i := 0; i < s.txPerRun; i++ {
		tid := primitives.TransactionID(s.nextTID.Add(1))
		kind := transaction.ReadWrite
		if s.rng.Intn(3) == 0 {
			kind = transaction.ReadOnly
		}

		seq := primitives.Sequence(0)
		ops = append(ops, txmanager.Operation{Kind: txmanager.OpBegin, TID: tid, Seq: seq, TxKind: kind, Delay: int64(s.rng.Intn(50))})

		start := s.rng.Intn(s.objects)
		for j := 0; j < s.opsPerTx && start+j < s.objects; j++ {
			seq++
			op := txmanager.OpRead
			if kind == transaction.ReadWrite && s.rng.Intn(2) == 0 {
				op = txmanager.OpWrite
			}
			ops = append(ops, txmanager.Operation{Kind: op, TID: tid, Seq: seq, Object: primitives.ObjectID(start + j)})
		}

		seq++
		end := txmanager.OpCommit
		if s.rng.Intn(10) == 0 {
			end = txmanager.OpAbort
		}
		ops = append(ops, txmanager.Operation{Kind: end, TID: tid, Seq: seq})
	}
	return ops
}

func (s *Simulator) Start(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report, err := s.manager.Run(ctx, s.workload())
				if err != nil {
					logging.Warn("simulation round failed", zap.Error(err))
					continue
				}
				s.rounds.Inc()
				logging.Debug("simulation round", zap.Int("submitted", report.Submitted), zap.Int("failed", len(report.Failed)))
			}
		}
	}()
}

func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func main() {
	logging.InitDefault()
	defer logging.Close()

	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		metricsPort = "8080"
	}
	objects := envInt("OBJECTS", 16)
	txPerRun := envInt("TX_PER_ROUND", 8)
	opsPerTx := envInt("OPS_PER_TX", 3)

	logging.Info("starting txmanager metrics exporter",
		zap.String("port", metricsPort), zap.Int("objects", objects),
		zap.Int("tx_per_round", txPerRun), zap.Int("ops_per_tx", opsPerTx))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.MustNew(reg)

	manager := txmanager.NewManager(object.NewStore(objects, 0), txmanager.ManagerConfig{
		AuditLog: log.Discard(),
		Metrics:  m,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	NewSimulator(manager, objects, txPerRun, opsPerTx, reg).Start(ctx, 5*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	srv := &http.Server{
		Addr:         ":" + metricsPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logging.Info("metrics available", zap.String("url", "http://localhost:"+metricsPort+"/metrics"))
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("metrics server stopped", zap.Error(err))
	}
}
