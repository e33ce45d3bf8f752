// Package server exposes the query surface over gRPC (health,
// reflection) and HTTP/JSON via a gRPC-Gateway mux.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"rangevault/internal/ingestion"
	"rangevault/internal/observability"
	"rangevault/internal/persistence"
	"rangevault/internal/projection"
	"rangevault/internal/query"
)

// GRPCServer wraps the gRPC server and the HTTP/JSON mux.
type GRPCServer struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	grpcAddr   string
	httpAddr   string
	deps       *ServerDeps
}

// ServerDeps holds all dependencies needed by the API handlers.
type ServerDeps struct {
	DB            *sql.DB
	QueryService  *query.QueryService
	Activity      *projection.HolderActivity
	Injector      *ingestion.AdminInjector
	SnapshotMgr   *persistence.SnapshotManager
	StartTime     time.Time
	HealthChecker *observability.HealthChecker
}

// NewGRPCServer creates the server pair. The gRPC side carries health
// and reflection; the query surface itself is HTTP/JSON.
func NewGRPCServer(grpcAddr, httpAddr string, deps *ServerDeps) *GRPCServer {
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// Reflection for grpcurl / grpcui
	reflection.Register(grpcServer)

	return &GRPCServer{
		grpcServer: grpcServer,
		grpcAddr:   grpcAddr,
		httpAddr:   httpAddr,
		deps:       deps,
	}
}

// StartGRPC starts the gRPC server (blocking).
func (s *GRPCServer) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: gRPC server shutting down...")
		s.grpcServer.GracefulStop()
	}()

	log.Printf("INFO: gRPC server listening on %s", s.grpcAddr)
	return s.grpcServer.Serve(lis)
}

// StartHTTP starts the HTTP/JSON API (blocking). Serves the query
// endpoints plus /healthz, /readyz and /metrics.
func (s *GRPCServer) StartHTTP(ctx context.Context) error {
	mux := runtime.NewServeMux()
	if err := s.registerRoutes(mux); err != nil {
		return fmt.Errorf("register routes: %w", err)
	}

	httpMux := http.NewServeMux()
	if s.deps.HealthChecker != nil {
		httpMux.HandleFunc("/healthz", s.deps.HealthChecker.LivenessHandler)
		httpMux.HandleFunc("/readyz", s.deps.HealthChecker.ReadinessHandler)
	}
	httpMux.Handle("/metrics", promhttp.Handler())
	httpMux.Handle("/", mux)

	s.httpServer = &http.Server{
		Addr:    s.httpAddr,
		Handler: httpMux,
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: HTTP server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("INFO: HTTP server listening on %s", s.httpAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *GRPCServer) registerRoutes(mux *runtime.ServeMux) error {
	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{"GET", "/v1/vaults", s.handleListVaults},
		{"GET", "/v1/vaults/{vault_id}", s.handleGetVault},
		{"GET", "/v1/vaults/{vault_id}/holders", s.handleListHolders},
		{"GET", "/v1/vaults/{vault_id}/holders/{holder}", s.handleGetHolder},
		{"GET", "/v1/vaults/{vault_id}/events", s.handleVaultEvents},
		{"GET", "/v1/holders/{holder}/vaults", s.handleHolderVaults},
		{"GET", "/v1/holders/{holder}/activity", s.handleHolderActivity},
		{"POST", "/v1/admin/prices", s.handleInjectPrice},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.handler); err != nil {
			return fmt.Errorf("route %s %s: %w", r.method, r.pattern, err)
		}
	}
	return nil
}

// ============================================================================
// Handlers
// ============================================================================

func (s *GRPCServer) handleListVaults(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	limit := intParam(r, "limit", 100)
	vaults, err := s.deps.QueryService.ListVaults(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]interface{}{"vaults": vaults})
}

func (s *GRPCServer) handleGetVault(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	vaultID, err := uuid.Parse(pathParams["vault_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid vault_id: %w", err))
		return
	}
	state, err := s.deps.QueryService.GetVaultState(r.Context(), vaultID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, state)
}

func (s *GRPCServer) handleListHolders(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	vaultID, err := uuid.Parse(pathParams["vault_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid vault_id: %w", err))
		return
	}

	var after *uuid.UUID
	if v := r.URL.Query().Get("after"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid after cursor: %w", err))
			return
		}
		after = &id
	}

	holders, err := s.deps.QueryService.ListHolders(r.Context(), vaultID, intParam(r, "limit", 100), after)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]interface{}{"holders": holders})
}

func (s *GRPCServer) handleGetHolder(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	vaultID, err := uuid.Parse(pathParams["vault_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid vault_id: %w", err))
		return
	}
	holder, err := uuid.Parse(pathParams["holder"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid holder: %w", err))
		return
	}

	stake, err := s.deps.QueryService.GetHolder(r.Context(), vaultID, holder)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, stake)
}

func (s *GRPCServer) handleVaultEvents(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	vaultID, err := uuid.Parse(pathParams["vault_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid vault_id: %w", err))
		return
	}

	var before *int64
	if v := r.URL.Query().Get("before"); v != "" {
		seq, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid before cursor: %w", err))
			return
		}
		before = &seq
	}

	events, err := s.deps.QueryService.GetVaultEvents(r.Context(), vaultID, intParam(r, "limit", 100), before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]interface{}{"events": events})
}

func (s *GRPCServer) handleHolderVaults(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	holder, err := uuid.Parse(pathParams["holder"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid holder: %w", err))
		return
	}
	stakes, err := s.deps.QueryService.GetHolderVaults(r.Context(), holder)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]interface{}{"vaults": stakes})
}

func (s *GRPCServer) handleHolderActivity(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	holder, err := uuid.Parse(pathParams["holder"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid holder: %w", err))
		return
	}
	if s.deps.Activity == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("activity view not enabled"))
		return
	}
	entries := s.deps.Activity.QueryByHolder(holder, intParam(r, "limit", 50))
	writeJSON(w, map[string]interface{}{"activity": entries})
}

type injectPriceRequest struct {
	Asset  string `json:"asset"`
	Answer string `json:"answer"`
}

func (s *GRPCServer) handleInjectPrice(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if s.deps.Injector == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("price injection not enabled"))
		return
	}

	var req injectPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	answer, err := uint256.FromDecimal(req.Answer)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid answer: %w", err))
		return
	}
	if err := s.deps.Injector.InjectPrice(req.Asset, answer); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, map[string]interface{}{"accepted": true})
}

// ============================================================================
// Helpers
// ============================================================================

func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
