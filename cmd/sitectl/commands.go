package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/sitebook/gateway/internal/enum"
	"github.com/sitebook/gateway/internal/envelope"
	"github.com/sitebook/gateway/internal/resource"
	"github.com/sitebook/gateway/internal/whatsapp"
	"github.com/spf13/cobra"
)

var resources = []string{
	enum.ResourceSites,
	enum.ResourceMaterials,
	enum.ResourceOwners,
	enum.ResourceMasonAdvances,
	enum.ResourceLaborEntries,
	enum.ResourceOwnerLogs,
	enum.ResourceOwnerPaymentLogs,
	enum.ResourcePricingPlans,
	enum.ResourceBusinesses,
	enum.ResourceUsers,
	enum.ResourceRazorpaySettings,
}

// record keeps whatever fields the backend sends.
type record = map[string]any

func (e *env) service(name string) (*resource.Service[record], error) {
	if !slices.Contains(resources, name) {
		return nil, fmt.Errorf("unknown resource %q (valid: %s)", name, strings.Join(resources, ", "))
	}
	return resource.NewService[record](e.client, name), nil
}

func newListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list <resource> [filter...]",
		Short: "List records with optional key=value filters",
		Example: `  sitectl list materials --site 3
  sitectl list labor-entries from=2024-01-01 to=2024-01-31`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := e.service(args[0])
			if err != nil {
				return err
			}
			filters, err := parseFilters(args[1:])
			if err != nil {
				return err
			}

			res, err := svc.List(cmd.Context(), filters)
			if err != nil {
				return err
			}
			if !res.Status {
				return fmt.Errorf("%s: %s", args[0], res.Message)
			}
			return printJSON(cmd, res.Data)
		},
	}
}

func newGetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <resource> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := e.service(args[0])
			if err != nil {
				return err
			}
			rec, err := svc.Detail(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		},
	}
}

func newDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := e.service(args[0])
			if err != nil {
				return err
			}
			if err := svc.Delete(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), envelope.MsgDeleted)
			return nil
		},
	}
}

func newWALinkCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "wa-link <phone> <message...>",
		Short:   "Print a WhatsApp click-to-chat link",
		Example: `  sitectl wa-link "098765 43210" "Payment received, thank you"`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			phone, err := whatsapp.NormalizePhone(args[0], e.cfg.WhatsAppCountryCode)
			if err != nil {
				return fmt.Errorf("%q: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), whatsapp.Link(phone, strings.Join(args[1:], " ")))
			return nil
		},
	}
}

func parseFilters(args []string) (url.Values, error) {
	if len(args) == 0 {
		return nil, nil
	}
	filters := url.Values{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q (expected key=value)", arg)
		}
		filters.Add(key, value)
	}
	return filters, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
