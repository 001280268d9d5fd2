package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sitebook/gateway/internal/entity"
	"github.com/sitebook/gateway/internal/enum"
	"github.com/sitebook/gateway/internal/envelope"
	"github.com/sitebook/gateway/internal/middleware"
	"github.com/sitebook/gateway/internal/resource"
	"github.com/sitebook/gateway/internal/whatsapp"
	"go.uber.org/zap"
)

const isoDate = "2006-01-02"

// WhatsAppHandler turns records into shareable messages and quick-entry
// messages into records.
type WhatsAppHandler struct {
	deps        Deps
	countryCode string
}

func NewWhatsAppHandler(deps Deps, countryCode string) *WhatsAppHandler {
	return &WhatsAppHandler{deps: deps, countryCode: countryCode}
}

func (h *WhatsAppHandler) RegisterRoutes(r chi.Router) {
	r.Route("/whatsapp", func(r chi.Router) {
		r.With(middleware.RequireRole(enum.RoleSupervisor)).Post("/materials", h.ParseMaterials)
		r.With(middleware.RequireRole(enum.RoleSupervisor)).Get("/owner-payments/{id}", h.OwnerPayment)
		r.With(middleware.RequireRole(enum.RoleStaff)).Get("/mason-advances/{id}", h.MasonAdvance)
		r.With(middleware.RequireRole(enum.RoleStaff)).Get("/labor-summary", h.LaborSummary)
		r.With(middleware.RequireRole(enum.RoleStaff)).Get("/material-summary", h.MaterialSummary)
	})
}

// --- Request / Response types ---

type parseRequest struct {
	Message string `json:"message"`
}

type parseResponse struct {
	Reply    string   `json:"reply"`
	Created  int      `json:"created"`
	Warnings []string `json:"warnings"`
}

type messageResponse struct {
	Text  string `json:"text"`
	Phone string `json:"phone,omitempty"`
	Link  string `json:"link,omitempty"`
}

// --- Handlers ---

// ParseMaterials records every line of a quick-entry message as a material
// of the selected site. Names are matched against the site's existing
// materials so repeated purchases keep one spelling.
func (h *WhatsAppHandler) ParseMaterials(w http.ResponseWriter, r *http.Request) {
	site := middleware.SiteFromContext(r.Context())
	if site == enum.AllSites {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "select a site before recording materials"})
		return
	}

	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	msg, err := whatsapp.ParseMessage(req.Message)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	materials := hooksFor[entity.Material](h.deps, r, enum.ResourceMaterials)
	existing, err := materials.List(r.Context(), nil)
	if err != nil {
		writeError(w, h.deps.Logger, err)
		return
	}
	names := make([]string, 0, len(existing.Data.Data))
	for _, m := range existing.Data.Data {
		names = append(names, m.Name)
	}
	catalog := whatsapp.NewCatalog(names)

	recorded := &whatsapp.ParsedMessage{Date: msg.Date, Warnings: msg.Warnings}
	for _, it := range msg.Items {
		name := it.Description
		switch res := catalog.Match(it.Description); res.Status {
		case whatsapp.Matched:
			name = res.Name
		case whatsapp.Ambiguous:
			recorded.Warnings = append(recorded.Warnings,
				fmt.Sprintf("%q could be %v, recorded as typed", it.Description, res.Candidates))
		}

		_, err := materials.Create(r.Context(), resource.Payload{Fields: map[string]any{
			"site_id":       site,
			"name":          name,
			"quantity":      it.Qty.String(),
			"unit":          it.Unit,
			"rate":          it.Rate().String(),
			"amount":        it.Amount.String(),
			"purchase_date": msg.Date.Format(isoDate),
		}})
		if err != nil {
			recorded.Warnings = append(recorded.Warnings,
				fmt.Sprintf("skipped: %s (%s)", it.RawText, envelope.Message(err, envelope.MsgFailed)))
			continue
		}
		it.Description = name
		recorded.Items = append(recorded.Items, it)
	}

	warnings := recorded.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, parseResponse{
		Reply:    whatsapp.ParsedReply(recorded, len(recorded.Items)),
		Created:  len(recorded.Items),
		Warnings: warnings,
	})
}

// OwnerPayment renders the receipt for a payment, addressed to its owner.
func (h *WhatsAppHandler) OwnerPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := hooksFor[entity.OwnerPaymentLog](h.deps, r, enum.ResourceOwnerPaymentLogs).
		Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.deps.Logger, err)
		return
	}

	var owner entity.Owner
	if !payment.OwnerID.IsZero() {
		owner, err = hooksFor[entity.Owner](h.deps, r, enum.ResourceOwners).Detail(r.Context(), payment.OwnerID.String())
		if err != nil {
			writeError(w, h.deps.Logger, err)
			return
		}
	}

	text := whatsapp.OwnerPaymentReceipt(owner.Name, h.siteName(r, payment.SiteID), payment)
	writeJSON(w, http.StatusOK, h.message(text, owner.Phone))
}

// MasonAdvance renders the slip for an advance, addressed to the mason.
func (h *WhatsAppHandler) MasonAdvance(w http.ResponseWriter, r *http.Request) {
	adv, err := hooksFor[entity.MasonAdvance](h.deps, r, enum.ResourceMasonAdvances).
		Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.deps.Logger, err)
		return
	}

	text := whatsapp.MasonAdvanceSlip(h.siteName(r, adv.SiteID), adv)
	writeJSON(w, http.StatusOK, h.message(text, adv.Phone))
}

func (h *WhatsAppHandler) LaborSummary(w http.ResponseWriter, r *http.Request) {
	res, err := hooksFor[entity.LaborEntry](h.deps, r, enum.ResourceLaborEntries).List(r.Context(), filters(r))
	if err != nil {
		writeError(w, h.deps.Logger, err)
		return
	}
	text := whatsapp.LaborSummary(h.selectedSiteName(r), res.Data.Data)
	writeJSON(w, http.StatusOK, h.message(text, r.URL.Query().Get("phone")))
}

func (h *WhatsAppHandler) MaterialSummary(w http.ResponseWriter, r *http.Request) {
	res, err := hooksFor[entity.Material](h.deps, r, enum.ResourceMaterials).List(r.Context(), filters(r))
	if err != nil {
		writeError(w, h.deps.Logger, err)
		return
	}
	text := whatsapp.MaterialSummary(h.selectedSiteName(r), res.Data.Data)
	writeJSON(w, http.StatusOK, h.message(text, r.URL.Query().Get("phone")))
}

// --- Helpers ---

// message attaches a wa.me link when phone is usable. A bad number still
// returns the text so it can be copied by hand.
func (h *WhatsAppHandler) message(text, phone string) messageResponse {
	resp := messageResponse{Text: text}
	if phone == "" {
		return resp
	}
	normalized, err := whatsapp.NormalizePhone(phone, h.countryCode)
	if err != nil {
		h.deps.Logger.Debug("unusable phone number", zap.String("phone", phone))
		return resp
	}
	resp.Phone = normalized
	resp.Link = whatsapp.Link(normalized, text)
	return resp
}

func (h *WhatsAppHandler) selectedSiteName(r *http.Request) string {
	site := middleware.SiteFromContext(r.Context())
	if site == enum.AllSites {
		return ""
	}
	id, err := entity.ParseID(site)
	if err != nil {
		return ""
	}
	return h.siteName(r, id)
}

// siteName is best effort; messages read fine without it.
func (h *WhatsAppHandler) siteName(r *http.Request, id entity.ID) string {
	if id.IsZero() {
		return ""
	}
	site, err := hooksFor[entity.Site](h.deps, r, enum.ResourceSites).Detail(r.Context(), id.String())
	if err != nil {
		h.deps.Logger.Debug("site name lookup failed", zap.String("site_id", id.String()), zap.Error(err))
		return ""
	}
	return site.Name
}
