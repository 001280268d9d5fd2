package export

import (
	"github.com/shopspring/decimal"
	"github.com/sitebook/gateway/internal/datefmt"
	"github.com/sitebook/gateway/internal/entity"
)

func money(d decimal.Decimal) any {
	return d.InexactFloat64()
}

var MaterialColumns = []Column[entity.Material]{
	{Header: "Date", Width: 14, Value: func(m entity.Material) any { return datefmt.Display(m.PurchaseDate) }},
	{Header: "Material", Width: 24, Value: func(m entity.Material) any { return m.Name }},
	{Header: "Quantity", Width: 10, Value: func(m entity.Material) any { return money(m.Quantity) }},
	{Header: "Unit", Width: 8, Value: func(m entity.Material) any { return m.Unit }},
	{Header: "Rate", Width: 12, Value: func(m entity.Material) any { return money(m.Rate) }},
	{Header: "Amount", Width: 14, Value: func(m entity.Material) any { return money(m.Amount) }},
	{Header: "Supplier", Width: 20, Value: func(m entity.Material) any { return m.Supplier }},
	{Header: "Notes", Width: 30, Value: func(m entity.Material) any { return m.Notes }},
}

var LaborEntryColumns = []Column[entity.LaborEntry]{
	{Header: "Date", Width: 14, Value: func(l entity.LaborEntry) any { return datefmt.Display(l.WorkDate) }},
	{Header: "Labor Type", Width: 18, Value: func(l entity.LaborEntry) any { return l.LaborType }},
	{Header: "Workers", Width: 10, Value: func(l entity.LaborEntry) any { return l.Workers }},
	{Header: "Rate", Width: 12, Value: func(l entity.LaborEntry) any { return money(l.Rate) }},
	{Header: "Amount", Width: 14, Value: func(l entity.LaborEntry) any { return money(l.Amount) }},
	{Header: "Notes", Width: 30, Value: func(l entity.LaborEntry) any { return l.Notes }},
}

var MasonAdvanceColumns = []Column[entity.MasonAdvance]{
	{Header: "Date", Width: 14, Value: func(a entity.MasonAdvance) any { return datefmt.Display(a.AdvanceDate) }},
	{Header: "Mason", Width: 20, Value: func(a entity.MasonAdvance) any { return a.MasonName }},
	{Header: "Phone", Width: 16, Value: func(a entity.MasonAdvance) any { return a.Phone }},
	{Header: "Amount", Width: 14, Value: func(a entity.MasonAdvance) any { return money(a.Amount) }},
	{Header: "Notes", Width: 30, Value: func(a entity.MasonAdvance) any { return a.Notes }},
}

var OwnerPaymentColumns = []Column[entity.OwnerPaymentLog]{
	{Header: "Date", Width: 14, Value: func(p entity.OwnerPaymentLog) any { return datefmt.Display(p.PaymentDate) }},
	{Header: "Owner ID", Width: 10, Value: func(p entity.OwnerPaymentLog) any { return p.OwnerID.String() }},
	{Header: "Amount", Width: 14, Value: func(p entity.OwnerPaymentLog) any { return money(p.Amount) }},
	{Header: "Mode", Width: 14, Value: func(p entity.OwnerPaymentLog) any { return p.PaymentMode }},
	{Header: "Reference", Width: 20, Value: func(p entity.OwnerPaymentLog) any { return p.Reference }},
}
