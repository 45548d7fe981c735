package api

import (
	"net/http"
	"strconv"

	"github.com/punchamoorthee/scooterledger/internal/catalog"
	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/punchamoorthee/scooterledger/internal/models"
)

func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decode(r, &req); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	acc, err := h.service.Register(r.Context(), req.Email, req.ReferralCode)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/accounts/"+strconv.FormatInt(acc.ID, 10))
	respondWithJSON(w, http.StatusCreated, acc)
}

func (h *Handler) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	acc, err := h.service.Account(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, acc)
}

func (h *Handler) GetEntriesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			h.respondWithServiceError(w, r, domain.Invalid("limit", "must be a non-negative integer"))
			return
		}
	}
	entries, err := h.service.Entries(r.Context(), id, limit)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	respondWithJSON(w, http.StatusOK, entries)
}

func (h *Handler) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	rec, err := h.service.Reconcile(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rec)
}

func (h *Handler) ReferralSummaryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	sum, err := h.service.ReferralSummary(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.ReferralSummaryResponse{
		ReferralCode: sum.ReferralCode,
		Levels:       sum.Levels,
		Total:        sum.Total,
		Earnings:     sum.Earnings,
	})
}

func (h *Handler) HoldingsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	holdings, err := h.service.Holdings(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	if holdings == nil {
		holdings = []domain.Holding{}
	}
	respondWithJSON(w, http.StatusOK, holdings)
}

func (h *Handler) OverviewHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	ov, err := h.service.Overview(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	resp := models.OverviewResponse{
		Account:       ov.Account,
		ScooterCount:  ov.ScooterCount,
		HighestLevel:  ov.HighestLevel,
		TotalEarnings: ov.TotalEarnings,
		Investment:    ov.Investment,
		Recent:        ov.RecentEntries,
	}
	if ov.LastClaimEntry != nil {
		resp.LastClaimAt = &ov.LastClaimEntry.CreatedAt
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) LevelsHandler(w http.ResponseWriter, r *http.Request) {
	levels, err := h.service.Levels(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	out := make([]models.Level, 0, len(levels))
	for _, l := range levels {
		days, _ := catalog.ROIDays(l)
		out = append(out, models.Level{Level: l, ROIDays: days})
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (h *Handler) PurchaseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	var req models.PurchaseRequest
	if err := decode(r, &req); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	if req.LevelID <= 0 {
		h.respondWithServiceError(w, r, domain.Invalid("level_id", "is required"))
		return
	}
	buy, err := h.service.Purchase(r.Context(), id, req.LevelID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, buy)
}

func (h *Handler) ClaimHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	res, err := h.service.ClaimDailyYield(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.ClaimResponse{
		Status:    string(res.Status),
		Balance:   res.Balance,
		Timestamp: res.Entry.CreatedAt,
		Report:    res.Report,
		Scooters:  res.Stats,
	})
}

func (h *Handler) ReportsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	reports, err := h.service.DailyReports(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	if reports == nil {
		reports = []domain.DailyReport{}
	}
	respondWithJSON(w, http.StatusOK, reports)
}

func (h *Handler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	report, stats, err := h.service.DailyReport(r.Context(), id, muxVar(r, "date"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	if stats == nil {
		stats = []domain.ScooterStat{}
	}
	respondWithJSON(w, http.StatusOK, models.DailyReportResponse{Report: *report, Scooters: stats})
}

func (h *Handler) WithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	var req models.WithdrawalRequest
	if err := decode(r, &req); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	wr, err := h.service.RequestWithdrawal(r.Context(), id, req.Amount, req.WalletAddress)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, wr)
}

func (h *Handler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	var req models.DepositRequest
	if err := decode(r, &req); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	dr, err := h.service.RequestDeposit(r.Context(), id, req.Amount, req.WalletAddress, req.TxHash)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, dr)
}
