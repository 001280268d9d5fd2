package whatsapp

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sitebook/gateway/internal/datefmt"
	"github.com/sitebook/gateway/internal/entity"
	"github.com/sitebook/gateway/internal/enum"
)

// OwnerPaymentReceipt is the acknowledgement sent to an owner for a payment.
func OwnerPaymentReceipt(ownerName, siteName string, p entity.OwnerPaymentLog) string {
	var sb strings.Builder
	sb.WriteString("*Payment Receipt*\n\n")
	fmt.Fprintf(&sb, "Dear %s,\n", nameOr(ownerName, "Sir/Madam"))
	fmt.Fprintf(&sb, "We have received %s", FormatRupees(p.Amount))
	if siteName != "" {
		fmt.Fprintf(&sb, " for *%s*", siteName)
	}
	sb.WriteString(".\n\n")
	fmt.Fprintf(&sb, "Date: %s\n", datefmt.Display(p.PaymentDate))
	if p.PaymentMode != "" {
		fmt.Fprintf(&sb, "Mode: %s\n", modeLabel(p.PaymentMode))
	}
	if p.Reference != "" {
		fmt.Fprintf(&sb, "Reference: %s\n", p.Reference)
	}
	sb.WriteString("\nThank you.")
	return sb.String()
}

// MasonAdvanceSlip records an advance handed to a mason.
func MasonAdvanceSlip(siteName string, a entity.MasonAdvance) string {
	var sb strings.Builder
	sb.WriteString("*Advance Slip*\n\n")
	fmt.Fprintf(&sb, "Mason: %s\n", nameOr(a.MasonName, "-"))
	if siteName != "" {
		fmt.Fprintf(&sb, "Site: %s\n", siteName)
	}
	fmt.Fprintf(&sb, "Amount: %s\n", FormatRupees(a.Amount))
	fmt.Fprintf(&sb, "Date: %s\n", datefmt.Display(a.AdvanceDate))
	if a.Notes != "" {
		fmt.Fprintf(&sb, "Note: %s\n", a.Notes)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// LaborSummary lists labor entries of a site with the grand total.
func LaborSummary(siteName string, entries []entity.LaborEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Labor Summary: %s*\n\n", nameOr(siteName, "All sites"))
	if len(entries) == 0 {
		sb.WriteString("No labor entries.")
		return sb.String()
	}

	total := decimal.Zero
	workers := 0
	for _, e := range entries {
		fmt.Fprintf(&sb, "• %s  %s × %d = %s\n",
			datefmt.Display(e.WorkDate), nameOr(e.LaborType, "Labor"), e.Workers, FormatRupees(e.Amount))
		total = total.Add(e.Amount)
		workers += e.Workers
	}
	fmt.Fprintf(&sb, "\nWorkers: %d\nTotal: %s", workers, FormatRupees(total))
	return sb.String()
}

// MaterialSummary lists materials of a site with the grand total.
func MaterialSummary(siteName string, items []entity.Material) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Material Summary: %s*\n\n", nameOr(siteName, "All sites"))
	if len(items) == 0 {
		sb.WriteString("No materials.")
		return sb.String()
	}

	total := decimal.Zero
	for _, m := range items {
		fmt.Fprintf(&sb, "• %s %s %s = %s\n", m.Name, m.Quantity.String(), m.Unit, FormatRupees(m.Amount))
		total = total.Add(m.Amount)
	}
	fmt.Fprintf(&sb, "\nTotal: %s (%s)", FormatRupees(total), FormatCompact(total))
	return sb.String()
}

// ParsedReply confirms what a quick-entry message created.
func ParsedReply(msg *ParsedMessage, created int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ %d item(s) recorded for %s\n\n", created, msg.Date.Format(datefmt.DateLayout))

	total := decimal.Zero
	for _, it := range msg.Items {
		qty := it.Qty.String()
		if it.Unit != "" {
			qty += " " + it.Unit
		}
		fmt.Fprintf(&sb, "• %s %s (%s)\n", it.Description, qty, FormatRupees(it.Amount))
		total = total.Add(it.Amount)
	}
	fmt.Fprintf(&sb, "\nTotal: %s", FormatRupees(total))

	if len(msg.Warnings) > 0 {
		sb.WriteString("\n\n⚠️ Not understood:\n")
		for _, w := range msg.Warnings {
			fmt.Fprintf(&sb, "• %s\n", strings.TrimPrefix(w, "skipped: "))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func nameOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

var modeLabels = map[string]string{
	enum.PaymentModeCash:   "Cash",
	enum.PaymentModeUPI:    "UPI",
	enum.PaymentModeBank:   "Bank transfer",
	enum.PaymentModeCheque: "Cheque",
}

func modeLabel(mode string) string {
	if l, ok := modeLabels[strings.ToLower(mode)]; ok {
		return l
	}
	return mode
}
