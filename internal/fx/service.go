package fx

import (
	"context"
	"fmt"
	"strings"

	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

// fiatExponent is the number of minor-unit digits for every supported
// currency.
const fiatExponent = 2

func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP:
		return c, nil
	default:
		return "", fmt.Errorf("ParseCurrency: %q: %w", s, domain.ErrUnsupportedCurrency)
	}
}

type Quote struct {
	Token         string
	ToCurrency    Currency
	MidMarketRate decimal.Decimal
	EffectiveRate decimal.Decimal
	SpreadPct     decimal.Decimal
}

// Conversion prices a token amount in fiat. SourceAmount is in token minor
// units, DestAmount and FeeAmount in fiat minor units.
type Conversion struct {
	SourceAmount  int64
	DestAmount    int64
	FeeAmount     int64
	Currency      Currency
	ExchangeRate  decimal.Decimal
	MidMarketRate decimal.Decimal
}

// RateService quotes the token against fixed reference rates. One token
// unit is pegged to one US dollar.
type RateService struct {
	token     domain.Token
	rates     map[Currency]decimal.Decimal
	spreadPct decimal.Decimal
}

func NewRateService(token domain.Token, spreadPct float64) *RateService {
	return &RateService{
		token:     token,
		spreadPct: decimal.NewFromFloat(spreadPct),
		rates: map[Currency]decimal.Decimal{
			CurrencyUSD: decimal.NewFromInt(1),
			CurrencyEUR: decimal.NewFromFloat(0.92),
			CurrencyGBP: decimal.NewFromFloat(0.79),
		},
	}
}

func (s *RateService) GetRate(_ context.Context, to Currency) (*Quote, error) {
	mid, ok := s.rates[to]
	if !ok {
		return nil, fmt.Errorf("GetRate: %s/%s: %w", s.token.Symbol, to, domain.ErrUnsupportedCurrency)
	}

	effective := mid.Mul(decimal.NewFromInt(1).Sub(s.spreadPct))

	return &Quote{
		Token:         s.token.Symbol,
		ToCurrency:    to,
		MidMarketRate: mid,
		EffectiveRate: effective,
		SpreadPct:     s.spreadPct,
	}, nil
}

func (s *RateService) Convert(ctx context.Context, amount int64, to Currency) (*Conversion, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("Convert: %w", domain.ErrInvalidAmount)
	}

	quote, err := s.GetRate(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("Convert: %w", err)
	}

	src := s.token.ToMajor(amount)

	destAmount := toFiatMinor(src.Mul(quote.EffectiveRate))
	if destAmount < 1 {
		destAmount = 1
	}

	fee := toFiatMinor(src.Mul(quote.MidMarketRate)) - destAmount
	if fee < 0 {
		fee = 0
	}

	return &Conversion{
		SourceAmount:  amount,
		DestAmount:    destAmount,
		FeeAmount:     fee,
		Currency:      to,
		ExchangeRate:  quote.EffectiveRate,
		MidMarketRate: quote.MidMarketRate,
	}, nil
}

func toFiatMinor(major decimal.Decimal) int64 {
	return major.Shift(fiatExponent).Round(0).IntPart()
}

func FormatFiat(minor int64, c Currency) string {
	return decimal.New(minor, -fiatExponent).StringFixed(fiatExponent) + " " + string(c)
}
