package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/punchamoorthee/scooterledger/internal/models"
	"github.com/punchamoorthee/scooterledger/internal/service"
	"go.uber.org/zap"
)

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func statusFilter(r *http.Request) (domain.RequestStatus, error) {
	s := domain.RequestStatus(r.URL.Query().Get("status"))
	switch s {
	case "", domain.StatusPending, domain.StatusApproved, domain.StatusRejected:
		return s, nil
	}
	return "", domain.Invalid("status", "must be pending, approved or rejected")
}

func (h *Handler) ListPurchasesHandler(w http.ResponseWriter, r *http.Request) {
	status, err := statusFilter(r)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	reqs, err := h.service.BuyRequests(r.Context(), status)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []domain.BuyRequest{}
	}
	respondWithJSON(w, http.StatusOK, reqs)
}

// ApprovePurchasesHandler settles each request independently and reports
// per-item outcomes; the response is 200 even when some items fail.
func (h *Handler) ApprovePurchasesHandler(w http.ResponseWriter, r *http.Request) {
	var req models.BatchApprovalRequest
	if err := decode(r, &req); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	if len(req.RequestIDs) == 0 {
		h.respondWithServiceError(w, r, domain.Invalid("request_ids", "must not be empty"))
		return
	}

	results := h.service.ApprovePurchases(r.Context(), req.RequestIDs)
	resp := models.BatchApprovalResponse{Results: make([]models.BatchApprovalItem, 0, len(results))}
	for _, res := range results {
		item := models.BatchApprovalItem{RequestID: res.RequestID, Approved: res.Err == nil}
		if res.Err != nil {
			item.Error = res.Err.Error()
			resp.Failed++
		} else {
			item.Settlement = settlementResponse(res.Settlement)
			resp.Approved++
		}
		resp.Results = append(resp.Results, item)
	}
	h.log.Info("batch purchase approval", zap.Int("approved", resp.Approved), zap.Int("failed", resp.Failed))
	respondWithJSON(w, http.StatusOK, resp)
}

func settlementResponse(s *service.PurchaseSettlement) *models.PurchaseSettlementResponse {
	out := &models.PurchaseSettlementResponse{
		Request: s.Request,
		Holding: s.Holding,
		Entry:   s.Entry,
		Payouts: make([]models.Payout, 0, len(s.Payouts)),
	}
	for _, p := range s.Payouts {
		out.Payouts = append(out.Payouts, models.Payout{AccountID: p.AccountID, Depth: p.Depth, Amount: p.Amount})
	}
	return out
}

func (h *Handler) RejectPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	rid, err := pathID(r, "rid")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	req, err := h.service.RejectPurchase(r.Context(), rid)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, req)
}

func (h *Handler) ListWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	status, err := statusFilter(r)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	reqs, err := h.service.Withdrawals(r.Context(), status)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []domain.WithdrawalRequest{}
	}
	respondWithJSON(w, http.StatusOK, reqs)
}

func (h *Handler) TransitionWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	rid, err := pathID(r, "rid")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	var req models.TransitionRequest
	if err := decode(r, &req); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	wr, err := h.service.TransitionWithdrawal(r.Context(), rid, req.Status)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, wr)
}

func (h *Handler) ListDepositsHandler(w http.ResponseWriter, r *http.Request) {
	status, err := statusFilter(r)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	reqs, err := h.service.Deposits(r.Context(), status)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []domain.DepositRequest{}
	}
	respondWithJSON(w, http.StatusOK, reqs)
}

func (h *Handler) TransitionDepositHandler(w http.ResponseWriter, r *http.Request) {
	rid, err := pathID(r, "rid")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	var req models.TransitionRequest
	if err := decode(r, &req); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	dr, err := h.service.TransitionDeposit(r.Context(), rid, req.Status)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, dr)
}

func (h *Handler) AdjustBalanceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	var req models.AdjustmentRequest
	if err := decode(r, &req); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	entry, err := h.service.AdjustBalance(r.Context(), id, req.Amount, req.Comment)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, entry)
}

func (h *Handler) AssignReferrerHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	var req models.AssignReferrerRequest
	if err := decode(r, &req); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	acc, err := h.service.AssignReferrer(r.Context(), id, req.ReferrerID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, acc)
}
