package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/punchamoorthee/scooterledger/internal/models"
	"github.com/punchamoorthee/scooterledger/internal/service"
	"go.uber.org/zap"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scooterledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scooterledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

type Handler struct {
	service *service.Service
	log     *zap.Logger
}

func NewHandler(svc *service.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: svc, log: log}
}

// Router registers every route on a new mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(instrument)
	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/accounts", h.RegisterHandler).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{id:[0-9]+}", h.GetAccountHandler).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{id:[0-9]+}/entries", h.GetEntriesHandler).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{id:[0-9]+}/reconcile", h.ReconcileHandler).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{id:[0-9]+}/referrals", h.ReferralSummaryHandler).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{id:[0-9]+}/holdings", h.HoldingsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{id:[0-9]+}/overview", h.OverviewHandler).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{id:[0-9]+}/purchases", h.PurchaseHandler).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{id:[0-9]+}/claims", h.ClaimHandler).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{id:[0-9]+}/reports", h.ReportsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{id:[0-9]+}/reports/{date}", h.ReportHandler).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{id:[0-9]+}/withdrawals", h.WithdrawalHandler).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{id:[0-9]+}/deposits", h.DepositHandler).Methods(http.MethodPost)
	v1.HandleFunc("/levels", h.LevelsHandler).Methods(http.MethodGet)

	admin := v1.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/purchases", h.ListPurchasesHandler).Methods(http.MethodGet)
	admin.HandleFunc("/purchases/approve", h.ApprovePurchasesHandler).Methods(http.MethodPost)
	admin.HandleFunc("/purchases/{rid:[0-9]+}/reject", h.RejectPurchaseHandler).Methods(http.MethodPost)
	admin.HandleFunc("/withdrawals", h.ListWithdrawalsHandler).Methods(http.MethodGet)
	admin.HandleFunc("/withdrawals/{rid:[0-9]+}", h.TransitionWithdrawalHandler).Methods(http.MethodPost)
	admin.HandleFunc("/deposits", h.ListDepositsHandler).Methods(http.MethodGet)
	admin.HandleFunc("/deposits/{rid:[0-9]+}", h.TransitionDepositHandler).Methods(http.MethodPost)
	admin.HandleFunc("/accounts/{id:[0-9]+}/adjustments", h.AdjustBalanceHandler).Methods(http.MethodPost)
	admin.HandleFunc("/accounts/{id:[0-9]+}/referrer", h.AssignReferrerHandler).Methods(http.MethodPost)
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument records request count and latency labeled by route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		timer.ObserveDuration()
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pathID reads a numeric route variable. The route regexp already
// guarantees digits, so a parse failure means overflow.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, domain.Invalid(name, "must be a positive integer")
	}
	return id, nil
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Invalid("", "malformed JSON body")
	}
	return nil
}

// respondWithServiceError maps the domain error taxonomy to HTTP statuses.
func (h *Handler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *domain.ValidationError
		ce *domain.CooldownError
		pe *domain.PreconditionError
		ie *domain.IntegrityError
	)
	switch {
	case errors.As(err, &ve):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &ce):
		w.Header().Set("Retry-After", strconv.FormatInt(retrySeconds(ce.Remaining), 10))
		respondWithJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{Error: err.Error(), RetryAfter: retrySeconds(ce.Remaining)})
	case errors.As(err, &pe):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &ie):
		h.log.Error("integrity violation",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	case domain.IsNotFound(err):
		respondWithError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func retrySeconds(d time.Duration) int64 {
	s := int64(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, models.ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
