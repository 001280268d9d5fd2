package whatsapp_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sitebook/gateway/internal/entity"
	"github.com/sitebook/gateway/internal/whatsapp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		err  bool
	}{
		{"98765 43210", "919876543210", false},
		{"098765-43210", "919876543210", false},
		{"+91 98765 43210", "919876543210", false},
		{"0091 9876543210", "919876543210", false},
		{"(987) 654-3210", "919876543210", false},
		{"+1 415 555 0100", "14155550100", false},
		{"12345", "", true},
		{"98765abc10", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := whatsapp.NormalizePhone(tt.raw, "")
			if tt.err {
				assert.ErrorIs(t, err, whatsapp.ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePhone_CountryCode(t *testing.T) {
	got, err := whatsapp.NormalizePhone("5551234567", "1")
	require.NoError(t, err)
	assert.Equal(t, "15551234567", got)
}

func TestLink(t *testing.T) {
	assert.Equal(t, "https://wa.me/919876543210", whatsapp.Link("919876543210", ""))
	assert.Equal(t,
		"https://wa.me/919876543210?text=Paid%20%E2%82%B9500%20%26%20thanks",
		whatsapp.Link("+91 98765 43210", "Paid ₹500 & thanks"))
}

func TestFormatRupees(t *testing.T) {
	tests := map[string]string{
		"0":          "₹0",
		"999":        "₹999",
		"1000":       "₹1,000",
		"123456":     "₹1,23,456",
		"1234567.5":  "₹12,34,567.50",
		"10000000":   "₹1,00,00,000",
		"-2500":      "-₹2,500",
		"12.345":     "₹12.35",
	}
	for in, want := range tests {
		assert.Equal(t, want, whatsapp.FormatRupees(decimal.RequireFromString(in)), in)
	}
}

func TestFormatCompact(t *testing.T) {
	tests := map[string]string{
		"850":      "₹850",
		"12500":    "₹12.5K",
		"250000":   "₹2.5 L",
		"12500000": "₹1.25 Cr",
		"-300000":  "-₹3 L",
	}
	for in, want := range tests {
		assert.Equal(t, want, whatsapp.FormatCompact(decimal.RequireFromString(in)), in)
	}
}

func TestOwnerPaymentReceipt(t *testing.T) {
	p := entity.OwnerPaymentLog{
		Amount:      decimal.RequireFromString("250000"),
		PaymentMode: "upi",
		PaymentDate: "2024-01-20",
		Reference:   "UTR123",
	}
	got := whatsapp.OwnerPaymentReceipt("Mr. Sharma", "Green Villa", p)

	want := "*Payment Receipt*\n\n" +
		"Dear Mr. Sharma,\n" +
		"We have received ₹2,50,000 for *Green Villa*.\n\n" +
		"Date: 20 Jan 2024\n" +
		"Mode: UPI\n" +
		"Reference: UTR123\n" +
		"\nThank you."
	assert.Equal(t, want, got)
}

func TestMasonAdvanceSlip(t *testing.T) {
	got := whatsapp.MasonAdvanceSlip("", entity.MasonAdvance{
		MasonName: "Ramesh",
		Amount:    decimal.NewFromInt(5000),
	})
	assert.Equal(t, "*Advance Slip*\n\nMason: Ramesh\nAmount: ₹5,000\nDate: -", got)
}

func TestLaborSummary(t *testing.T) {
	got := whatsapp.LaborSummary("Green Villa", []entity.LaborEntry{
		{WorkDate: "2024-01-20", LaborType: "Mason", Workers: 3, Amount: decimal.NewFromInt(2400)},
		{WorkDate: "2024-01-20", LaborType: "Helper", Workers: 2, Amount: decimal.NewFromInt(1000)},
	})
	assert.True(t, strings.HasPrefix(got, "*Labor Summary: Green Villa*"))
	assert.Contains(t, got, "Mason × 3 = ₹2,400")
	assert.True(t, strings.HasSuffix(got, "Workers: 5\nTotal: ₹3,400"))

	assert.Contains(t, whatsapp.LaborSummary("", nil), "No labor entries.")
}

func TestMaterialSummary(t *testing.T) {
	got := whatsapp.MaterialSummary("Green Villa", []entity.Material{
		{Name: "Cement", Quantity: decimal.NewFromInt(50), Unit: "bags", Amount: decimal.NewFromInt(18000)},
		{Name: "Steel", Quantity: decimal.NewFromInt(500), Unit: "kg", Amount: decimal.NewFromInt(142000)},
	})
	assert.Contains(t, got, "• Cement 50 bags = ₹18,000")
	assert.True(t, strings.HasSuffix(got, "Total: ₹1,60,000 (₹1.6 L)"))
}

func TestParsedReply(t *testing.T) {
	msg, err := whatsapp.ParseMessage("20 jan 2024\ncement 50 bags 18k\n???")
	require.NoError(t, err)

	got := whatsapp.ParsedReply(msg, 1)
	assert.True(t, strings.HasPrefix(got, "✅ 1 item(s) recorded for 20 Jan 2024"))
	assert.Contains(t, got, "• cement 50 bags (₹18,000)")
	assert.True(t, strings.HasSuffix(got, "⚠️ Not understood:\n• ???"))
}
