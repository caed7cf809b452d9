package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/josh-kwaku/unified-pay/internal/fx"
	"github.com/josh-kwaku/unified-pay/internal/logging"
)

type fxService interface {
	Convert(ctx context.Context, amount int64, to fx.Currency) (*fx.Conversion, error)
}

type FXHandler struct {
	fx    fxService
	token domain.Token
}

func NewFXHandler(fxSvc fxService, token domain.Token) *FXHandler {
	return &FXHandler{fx: fxSvc, token: token}
}

type fxQuoteResponse struct {
	Amount        int64  `json:"amount"`
	AmountDisplay string `json:"amount_display"`
	Currency      string `json:"currency"`
	DestAmount    int64  `json:"dest_amount"`
	DestDisplay   string `json:"dest_display"`
	FeeAmount     int64  `json:"fee_amount"`
	ExchangeRate  string `json:"exchange_rate"`
	MidMarketRate string `json:"mid_market_rate"`
	Timestamp     string `json:"timestamp"`
}

// Quote prices a token amount in fiat: GET /api/v1/fx/quote?amount=12.34&to=EUR.
func (h *FXHandler) Quote(w http.ResponseWriter, r *http.Request) {
	amount, currency, fields := h.parseQuoteParams(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	conv, err := h.fx.Convert(r.Context(), amount, currency)
	if err != nil {
		logging.FromContext(r.Context()).Warn("fx quote failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, fxQuoteResponse{
		Amount:        conv.SourceAmount,
		AmountDisplay: h.token.Format(conv.SourceAmount),
		Currency:      string(conv.Currency),
		DestAmount:    conv.DestAmount,
		DestDisplay:   fx.FormatFiat(conv.DestAmount, conv.Currency),
		FeeAmount:     conv.FeeAmount,
		ExchangeRate:  conv.ExchangeRate.String(),
		MidMarketRate: conv.MidMarketRate.String(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *FXHandler) parseQuoteParams(r *http.Request) (int64, fx.Currency, []FieldError) {
	var errs []FieldError
	q := r.URL.Query()

	var amount int64
	if raw := q.Get("amount"); raw == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	} else if a, err := h.token.ParseAmount(raw); err != nil {
		errs = append(errs, amountFieldError(err, h.token))
	} else {
		amount = a
	}

	var currency fx.Currency
	if raw := q.Get("to"); raw == "" {
		errs = append(errs, FieldError{Field: "to", Message: "required"})
	} else if c, err := fx.ParseCurrency(raw); err != nil {
		errs = append(errs, FieldError{Field: "to", Message: "must be USD, EUR, or GBP"})
	} else {
		currency = c
	}

	return amount, currency, errs
}
