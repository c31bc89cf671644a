package reconciler

import (
	"testing"

	stripeapi "github.com/stripe/stripe-go/v72"
)

func TestStripeInvoiceAmount(t *testing.T) {
	tests := []struct {
		name       string
		invoice    stripeapi.Invoice
		wantNil    bool
		wantAtomic int64
	}{
		{
			name:       "USD invoice",
			invoice:    stripeapi.Invoice{AmountPaid: 1999, Currency: stripeapi.CurrencyUSD},
			wantAtomic: 1999,
		},
		{
			name:    "unsupported currency",
			invoice: stripeapi.Invoice{AmountPaid: 1999, Currency: stripeapi.Currency("jpy")},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripeInvoiceAmount(tt.invoice)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a Money value, got nil")
			}
			if got.Atomic != tt.wantAtomic {
				t.Errorf("atomic = %d, want %d", got.Atomic, tt.wantAtomic)
			}
		})
	}
}

func TestPaypalSaleAmount(t *testing.T) {
	tests := []struct {
		name    string
		sale    paypalSaleResource
		wantNil bool
	}{
		{
			name: "USD sale",
			sale: paypalSaleResource{ID: "sale1", Amount: struct {
				Total    string `json:"total"`
				Currency string `json:"currency"`
			}{Total: "10.00", Currency: "USD"}},
		},
		{
			name: "unrecognized currency",
			sale: paypalSaleResource{ID: "sale2", Amount: struct {
				Total    string `json:"total"`
				Currency string `json:"currency"`
			}{Total: "10.00", Currency: "XXX"}},
			wantNil: true,
		},
		{
			name: "malformed total",
			sale: paypalSaleResource{ID: "sale3", Amount: struct {
				Total    string `json:"total"`
				Currency string `json:"currency"`
			}{Total: "not-a-number", Currency: "USD"}},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := paypalSaleAmount(tt.sale)
			if tt.wantNil && got != nil {
				t.Fatalf("expected nil, got %+v", got)
			}
			if !tt.wantNil && got == nil {
				t.Fatal("expected a Money value, got nil")
			}
		})
	}
}
