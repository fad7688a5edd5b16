package api

import (
	"errors"
	"html/template"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/infra/logging"
)

const maxCallbackBody = 1 << 20

type callbackAck struct {
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
}

// handleWebhook acknowledges with 200 only when the event is applied, was
// already applied, or is deliberately ignored; anything else makes the
// gateway redeliver.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	gw, err := model.ParseGateway(chi.URLParam(r, "gateway"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown gateway"})
		return
	}
	ctx := logging.WithGateway(r.Context(), string(gw))
	log := logging.With(ctx, s.log)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unreadable body"})
		return
	}

	t, err := s.deps.Reconcile.HandleCallback(ctx, gw, payload, r.Header)
	if err != nil {
		code, msg := callbackStatus(err)
		if code >= http.StatusInternalServerError {
			log.Error().Err(err).Msg("callback processing failed")
		}
		if code == http.StatusOK {
			writeJSON(w, code, callbackAck{Status: msg})
			return
		}
		writeJSON(w, code, errorBody{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, callbackAck{Status: string(t.Status), Reference: t.Reference})
}

func callbackStatus(err error) (int, string) {
	var gwErr *domain.GatewayError
	switch {
	case errors.Is(err, domain.ErrIgnoredEvent):
		return http.StatusOK, "ignored"
	case domain.IsDuplicateTransition(err):
		return http.StatusOK, "duplicate"
	case errors.Is(err, domain.ErrSignature):
		return http.StatusBadRequest, "invalid signature"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusBadRequest, "unknown reference"
	case errors.As(err, &gwErr):
		if gwErr.Transient() {
			return http.StatusBadGateway, "gateway unavailable"
		}
		return http.StatusBadRequest, "malformed callback"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "malformed callback"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// handleVerify is where gateways send the browser back. Stripe Checkout
// returns ?reference=, Paystack appends ?trxref=&reference=, and Stripe
// Elements returns ?payment_intent=.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := firstNonEmpty(q.Get("reference"), q.Get("trxref"), q.Get("payment_intent"))
	if ref == "" {
		s.redirectFailed(w, r, "", "missing payment reference", http.StatusBadRequest)
		return
	}
	ctx := logging.WithReference(r.Context(), ref)

	t, err := s.deps.Reconcile.Verify(ctx, ref)
	if err != nil {
		var gwErr *domain.GatewayError
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s.redirectFailed(w, r, ref, "unknown payment reference", http.StatusBadRequest)
		case errors.As(err, &gwErr):
			s.redirectFailed(w, r, ref, "we could not confirm the payment with the provider, please retry shortly", http.StatusBadGateway)
		default:
			l := logging.With(ctx, s.log)
			l.Error().Err(err).Msg("verify failed")
			s.redirectFailed(w, r, ref, "we could not confirm the payment, please retry shortly", http.StatusInternalServerError)
		}
		return
	}

	switch t.Status {
	case model.TransactionStatusSuccess:
		if s.pay.SuccessURL != "" {
			http.Redirect(w, r, withQuery(s.pay.SuccessURL, "reference", ref), http.StatusSeeOther)
			return
		}
		renderResult(w, http.StatusOK, resultView{OK: true, Reference: ref, Msg: "Your payment was received and your cover is now active."})
	case model.TransactionStatusPending:
		renderResult(w, http.StatusAccepted, resultView{Pending: true, Reference: ref, Msg: "Your payment is still being processed. Refresh this page in a moment."})
	default:
		s.redirectFailed(w, r, ref, "the payment was not completed", http.StatusOK)
	}
}

func (s *Server) redirectFailed(w http.ResponseWriter, r *http.Request, ref, reason string, code int) {
	if s.pay.FailureURL != "" {
		http.Redirect(w, r, withQuery(s.pay.FailureURL, "reference", ref, "reason", reason), http.StatusSeeOther)
		return
	}
	renderResult(w, code, resultView{Reference: ref, Msg: reason})
}

func (s *Server) handleResultPage(ok bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		v := resultView{OK: ok, Reference: q.Get("reference"), Msg: q.Get("reason")}
		if v.Msg == "" {
			if ok {
				v.Msg = "Your payment was received and your cover is now active."
			} else {
				v.Msg = "The payment was not completed. You have not been charged for this attempt."
			}
		}
		renderResult(w, http.StatusOK, v)
	}
}

func withQuery(base string, kv ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			q.Set(kv[i], kv[i+1])
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

type resultView struct {
	OK        bool
	Pending   bool
	Reference string
	Msg       string
}

var resultPage = template.Must(template.New("result").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>Payment {{if .OK}}Successful{{else if .Pending}}Processing{{else}}Not Completed{{end}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .pending{color:#8a6d00} .fail{color:#b00020}
.btn{display:inline-block;margin-top:16px;padding:10px 16px;border-radius:8px;border:1px solid #888;text-decoration:none}
.small{font-size:12px;color:#666}
</style>
</head>
<body>
<div class="card">
  <h2 class="{{if .OK}}ok{{else if .Pending}}pending{{else}}fail{{end}}">{{if .OK}}Payment Successful{{else if .Pending}}Payment Processing{{else}}Payment Not Completed{{end}}</h2>
  <p>{{.Msg}}</p>
  {{if .Reference}}<div class="small">Reference: {{.Reference}}</div>{{end}}
  <a class="btn" href="/">Back to dashboard</a>
</div>
</body>
</html>`))

func renderResult(w http.ResponseWriter, code int, v resultView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = resultPage.Execute(w, v)
}
