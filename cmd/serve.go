package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/provider-verify/internal/auth"
	"github.com/sells-group/provider-verify/internal/model"
	"github.com/sells-group/provider-verify/internal/monitoring"
	"github.com/sells-group/provider-verify/internal/registry"
	"github.com/sells-group/provider-verify/internal/service"
	"github.com/sells-group/provider-verify/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the verification API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		svc := newService(st)
		verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		collector := monitoring.NewCollector(st)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(svc, st, verifier, collector, cfg.Monitoring.LookbackWindowHours),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
		}

		return g.Wait()
	},
}

// buildRouter wires the HTTP surface. Everything under /api/v1 requires a
// bearer token; health and metrics do not.
func buildRouter(svc *service.Service, st store.Store, verifier auth.Verifier, collector *monitoring.Collector, lookbackHours int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status := "ok"
		code := http.StatusOK
		if err := st.Ping(req.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{"status": status})
	})

	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		hours := lookbackHours
		if hours <= 0 {
			hours = 24
		}
		snap, err := collector.Collect(req.Context(), hours)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireAuth(verifier))

		r.Get("/providers/search", handleSearch(svc))
		r.Post("/providers/validate", handleValidate(svc))
		r.Post("/providers/save", handleSave(svc))
		r.Get("/providers/resolve/{identifier}", handleResolve(svc))
		r.Get("/providers", handleListProviders(svc))
		r.Get("/history", handleHistory(svc))
	})

	return r
}

// requireAuth resolves the bearer token to a caller identity and stores it on
// the request context. Requests without a valid token get 401.
func requireAuth(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			header := req.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, auth.ErrUnauthorized)
				return
			}
			id, err := verifier.Verify(token)
			if err != nil {
				writeError(w, auth.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, req.WithContext(auth.WithIdentity(req.Context(), id)))
		})
	}
}

func handleSearch(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		country, err := parseCountry(q.Get("country"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err))
			return
		}
		limit, _ := strconv.Atoi(q.Get("limit"))

		results, err := svc.Search(req.Context(), auth.FromContext(req.Context()), model.SearchParams{
			Country:    country,
			NPI:        q.Get("npi"),
			ProviderID: q.Get("provider_id"),
			FirstName:  q.Get("first_name"),
			LastName:   q.Get("last_name"),
			Name:       q.Get("name"),
			City:       q.Get("city"),
			State:      q.Get("state"),
			PostalCode: q.Get("postal_code"),
			Limit:      limit,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		if results == nil {
			results = []model.NormalizedProvider{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
	}
}

// lookupRequest is the body for validate.
type lookupRequest struct {
	Country    string                 `json:"country"`
	NPI        string                 `json:"npi,omitempty"`
	ProviderID string                 `json:"provider_id,omitempty"`
	UserData   model.UserProviderData `json:"user_data"`
}

func (lr lookupRequest) searchParams() (model.SearchParams, error) {
	country, err := parseCountry(lr.Country)
	if err != nil {
		return model.SearchParams{}, err
	}
	return model.SearchParams{
		Country:    country,
		NPI:        lr.NPI,
		ProviderID: lr.ProviderID,
		Name:       lr.UserData.Name,
		FirstName:  lr.UserData.FirstName,
		LastName:   lr.UserData.LastName,
	}, nil
}

func handleValidate(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var lr lookupRequest
		if err := json.NewDecoder(req.Body).Decode(&lr); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(eris.New("invalid request body")))
			return
		}
		params, err := lr.searchParams()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err))
			return
		}

		result, err := svc.Validate(req.Context(), auth.FromContext(req.Context()), params, lr.UserData)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// saveRequest is the body for save: a registry record the caller already
// holds (from a prior search or validate), plus the score that validate
// computed for it, if any. No registry call happens on this path.
type saveRequest struct {
	Country          string                   `json:"country"`
	Provider         model.NormalizedProvider `json:"provider"`
	CorrectnessScore *int                     `json:"correctness_score,omitempty"`
}

func handleSave(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var sr saveRequest
		if err := json.NewDecoder(req.Body).Decode(&sr); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(eris.New("invalid request body")))
			return
		}
		country, err := parseCountry(sr.Country)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err))
			return
		}

		result, err := svc.Save(req.Context(), auth.FromContext(req.Context()), country, sr.Provider, sr.CorrectnessScore)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleResolve(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		country, err := parseCountry(q.Get("country"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err))
			return
		}
		identifier := chi.URLParam(req, "identifier")
		refresh, _ := strconv.ParseBool(q.Get("refresh"))

		result, err := svc.Resolve(req.Context(), auth.FromContext(req.Context()), country, identifier, refresh)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleListProviders(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		var filter store.ProviderFilter
		if c := q.Get("country"); c != "" {
			country, err := parseCountry(c)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody(err))
				return
			}
			filter.Country = country
		}
		filter.Limit, _ = strconv.Atoi(q.Get("limit"))

		records, err := svc.ListProviders(req.Context(), auth.FromContext(req.Context()), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		if records == nil {
			records = []model.SavedProvider{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"providers": records, "count": len(records)})
	}
}

func handleHistory(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

		entries, err := svc.History(req.Context(), auth.FromContext(req.Context()), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if entries == nil {
			entries = []model.AuditEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": entries, "count": len(entries)})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("serve: write response", zap.Error(err))
	}
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

// writeError maps service errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var ue *registry.UpstreamError

	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, service.ErrCountryUnsupported), errors.Is(err, service.ErrMissingIdentifier):
		code = http.StatusBadRequest
	case errors.Is(err, registry.ErrRateLimited):
		code = http.StatusTooManyRequests
	case errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	case errors.As(err, &ue):
		code = http.StatusBadGateway
	}

	if code == http.StatusInternalServerError {
		zap.L().Error("serve: request failed", zap.Error(err))
	}
	writeJSON(w, code, errorBody(err))
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
