package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/repository"
	"health-insurance-portal/internal/infra/logging"
	"health-insurance-portal/internal/infra/metrics"
	red "health-insurance-portal/internal/infra/redis"
	"health-insurance-portal/internal/usecase"
)

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, body := errorResponse(err)
	if code >= http.StatusInternalServerError {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, code, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Server) listPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := s.deps.Packages.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if pkgs == nil {
		pkgs = []*model.SubscriptionPackage{}
	}
	writeJSON(w, http.StatusOK, pkgs)
}

type quoteRequest struct {
	Plan string `json:"plan"`
}

func (s *Server) createQuote(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	var req quoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	q, err := s.deps.Quotes.Create(r.Context(), claims.UserID(), req.Plan)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

type subscriptionRequest struct {
	PackageID string `json:"package_id"`
	Cadence   string `json:"cadence"`
}

func (s *Server) selectSubscription(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	var req subscriptionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sub, err := s.deps.Subscriptions.Select(r.Context(), claims.UserID(), req.PackageID, req.Cadence)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

type checkoutRequest struct {
	PayableType string `json:"payable_type"`
	PayableID   string `json:"payable_id"`
	Gateway     string `json:"gateway"`
	SuccessURL  string `json:"success_url,omitempty"`
	CancelURL   string `json:"cancel_url,omitempty"`
}

type checkoutResponse struct {
	Reference    string `json:"reference"`
	Gateway      string `json:"gateway"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	RedirectURL  string `json:"redirect_url,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := ClaimsFrom(ctx)

	if s.deps.CheckoutLimiter != nil {
		ok, err := s.deps.CheckoutLimiter.Allow(ctx, red.UserActionKey(claims.UserID(), "checkout"), s.http.CheckoutPerMin, time.Minute)
		if err != nil {
			// fail open: the limiter protects gateways, not the ledger
			l := logging.With(ctx, s.log)
			l.Warn().Err(err).Msg("checkout limiter unavailable")
		} else if !ok {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many checkout attempts, try again in a minute"})
			return
		}
	}

	var req checkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	co, err := s.deps.Reconcile.Initiate(ctx, usecase.InitiateCommand{
		UserID:      claims.UserID(),
		Email:       claims.Email,
		PayableType: req.PayableType,
		PayableID:   req.PayableID,
		Gateway:     req.Gateway,
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t := co.Transaction
	writeJSON(w, http.StatusCreated, checkoutResponse{
		Reference:    t.Reference,
		Gateway:      string(t.Gateway),
		Status:       string(t.Status),
		Amount:       t.Amount.Amount,
		Currency:     t.Amount.Currency,
		RedirectURL:  co.RedirectURL,
		ClientSecret: co.ClientSecret,
	})
}

func (s *Server) myTransactions(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	limit, offset := pagination(r)
	list, err := s.deps.Transactions.ListByUser(r.Context(), claims.UserID(), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*model.Transaction{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) myQuotes(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	list, err := s.deps.Quotes.ListByUser(r.Context(), claims.UserID())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*model.Quote{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) mySubscriptions(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	list, err := s.deps.Subscriptions.ListByUser(r.Context(), claims.UserID())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*model.UserSubscription{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) adminTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pagination(r)
	f := repository.TransactionFilter{UserID: q.Get("user_id"), Limit: limit, Offset: offset}

	if v := q.Get("status"); v != "" {
		switch st := model.TransactionStatus(v); st {
		case model.TransactionStatusPending, model.TransactionStatusSuccess, model.TransactionStatusFailed, model.TransactionStatusRefunded:
			f.Status = st
		default:
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: map[string]string{"status": "must be pending, success, failed or refunded"}})
			return
		}
	}
	if v := q.Get("gateway"); v != "" {
		gw, err := model.ParseGateway(v)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		f.Gateway = gw
	}

	list, err := s.deps.Transactions.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*model.Transaction{}
	}
	writeJSON(w, http.StatusOK, list)
}

type statsResponse struct {
	TransactionsByStatus map[model.TransactionStatus]int `json:"transactions_by_status"`
	ActiveByPackage      map[string]int                  `json:"active_subscriptions_by_package"`
}

func (s *Server) adminStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.Transactions.CountByStatus(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	metrics.SetTransactionsByStatus(counts)

	active, err := s.deps.Subscriptions.CountActiveByPackage(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{TransactionsByStatus: counts, ActiveByPackage: active})
}
