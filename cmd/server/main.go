// Package main implements the TaskIndex HTTP API server. It exposes the
// in-memory priority index over REST and, when enabled, runs the task
// dispatcher in the same process so it shares the index directly.
//
// API Endpoints:
//
//	POST   /tasks           - Submit a task ({"priority": 5, "description": "..."})
//	GET    /tasks?priority= - Look up the task stored at a priority
//	DELETE /tasks?priority= - Remove the task stored at a priority
//	GET    /tasks/all       - All tasks in ascending priority order
//	GET    /tasks/range     - Tasks with priority in [min, max] (?min=&max=)
//	GET    /stats           - Index statistics (count, height, balance check)
//	POST   /schedule        - Register a recurring task (cron spec)
//	POST   /reset           - Drop every task
//	GET    /metrics         - Prometheus metrics
//
// Usage:
//
//	go run cmd/server/main.go -config config.yaml
//
// Submission is throttled through a Redis-backed token bucket; set
// redis_addr in the config (default localhost:6379).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guido-cesarano/taskindex/pkg/config"
	"github.com/guido-cesarano/taskindex/pkg/dispatch"
	"github.com/guido-cesarano/taskindex/pkg/gate"
	"github.com/guido-cesarano/taskindex/pkg/index"
	"github.com/guido-cesarano/taskindex/pkg/logger"
	"github.com/guido-cesarano/taskindex/pkg/tasks"
)

// authMiddleware wraps an http.HandlerFunc and enforces API Key authentication.
func authMiddleware(next http.HandlerFunc, requiredKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// If no key is configured, allow all (dev mode)
		if requiredKey == "" {
			next(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey != requiredKey {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

// enableCORS wraps an http.HandlerFunc and adds CORS headers. It is applied
// outside auth so preflight OPTIONS requests do not fail the key check.
func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-API-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// priorityParam parses the required ?priority= query parameter.
func priorityParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("priority")
	if raw == "" {
		return 0, fmt.Errorf("missing priority parameter")
	}
	return strconv.Atoi(raw)
}

// setupRouter configures the HTTP handlers and returns the mux.
func setupRouter(idx *index.Tree, limiter *gate.Limiter, sched *dispatch.Scheduler, cfg config.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// taskHandler multiplexes the /tasks endpoint on method: submit,
	// lookup and delete all address a single priority key.
	mux.HandleFunc("/tasks", enableCORS(authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			// Admission check before touching the index.
			allowed, err := limiter.Allow(r.Context(), "ratelimit:submit", cfg.RateLimit.Rate, cfg.RateLimit.Burst)
			if err != nil {
				// Fail open: a broken limiter should not take task
				// submission down with it.
				log := logger.For("server")
				log.Error().Err(err).Msg("Rate limit check failed")
			} else if !allowed {
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			var req struct {
				Priority    int    `json:"priority"`
				Description string `json:"description"`
				AssignedTo  string `json:"assigned_to"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			t := tasks.New(req.Priority, req.Description)
			if req.AssignedTo != "" {
				t.Assign(req.AssignedTo)
			}
			if err := idx.Insert(t); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(t)

		case http.MethodGet:
			p, err := priorityParam(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			t, ok := idx.Search(p)
			if !ok {
				http.Error(w, "Task not found", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(t)

		case http.MethodDelete:
			p, err := priorityParam(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if !idx.Delete(p) {
				http.Error(w, "Task not found", http.StatusNotFound)
				return
			}
			fmt.Fprintf(w, "Task deleted: priority %d\n", p)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}, cfg.APIKey)))

	// allHandler returns every task in ascending priority order.
	mux.HandleFunc("/tasks/all", enableCORS(authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(idx.InOrderTraversal())
	}, cfg.APIKey)))

	// rangeHandler returns tasks with priority in [min, max].
	mux.HandleFunc("/tasks/range", enableCORS(authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		min, err1 := strconv.Atoi(r.URL.Query().Get("min"))
		max, err2 := strconv.Atoi(r.URL.Query().Get("max"))
		if err1 != nil || err2 != nil {
			http.Error(w, "min and max must be integers", http.StatusBadRequest)
			return
		}
		result, err := idx.RangeQuery(min, max)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}, cfg.APIKey)))

	// statsHandler returns the index statistics snapshot.
	mux.HandleFunc("/stats", enableCORS(authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(idx.Statistics())
	}, cfg.APIKey)))

	// scheduleHandler registers a recurring task.
	mux.HandleFunc("/schedule", enableCORS(authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Spec        string `json:"spec"` // Cron expression (e.g. "@every 1m")
			Priority    int    `json:"priority"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		entryID, err := sched.Add(req.Spec, req.Priority, req.Description)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid cron spec: %v", err), http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, "Job scheduled with EntryID: %d\n", entryID)
	}, cfg.APIKey)))

	// resetHandler drops every task atomically.
	mux.HandleFunc("/reset", enableCORS(authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		idx.Reset()
		fmt.Fprintln(w, "Index reset")
	}, cfg.APIKey)))

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// main loads configuration, wires the index, gate, scheduler and optional
// dispatcher, and serves the HTTP API until interrupted.
func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	log := logger.For("server")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	idx := index.New()
	limiter := gate.New(cfg.RedisAddr)
	defer limiter.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := limiter.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable; rate limiting will fail open")
	}

	sched := dispatch.NewScheduler(idx)
	sched.Start()
	defer sched.Stop()

	if cfg.APIKey == "" {
		log.Warn().Msg("API_KEY not set. Authentication disabled.")
	} else {
		log.Info().Msg("API Authentication enabled.")
	}

	if cfg.DispatchEnabled {
		d := dispatch.New(idx, executeTask, dispatch.Options{
			Workers:    cfg.Workers,
			MaxRetries: cfg.MaxRetries,
			RetryBase:  cfg.RetryBase.Std(),
		})
		go d.Run(ctx)
		log.Info().Int("workers", cfg.Workers).Msg("In-process dispatcher enabled")
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Shutting down...")
		cancel()
		os.Exit(0)
	}()

	mux := setupRouter(idx, limiter, sched, cfg)

	log.Info().Str("addr", cfg.ListenAddr).Msg("Server listening")
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// executeTask is the default task handler for the in-process dispatcher.
// Tasks carry no executable payload in this service, so completion is a
// matter of logging and letting the status transition happen.
func executeTask(ctx context.Context, t *tasks.Task) error {
	log := logger.For("dispatch")
	log.Info().
		Str("task_id", t.ID).
		Int("priority", t.Priority).
		Str("description", t.Description).
		Str("assigned_to", t.AssignedTo).
		Msg("Processing task")
	return nil
}
