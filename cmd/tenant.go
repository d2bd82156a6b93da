package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-ingest/internal/model"
)

var (
	tenantID     string
	tenantName   string
	tenantVendor string
	tenantSID    string
	tenantAPIKey string
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenants and their webhook credentials",
}

var tenantAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a tenant, optionally with vendor webhook credentials",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		wantCred := tenantVendor != "" || tenantSID != "" || tenantAPIKey != ""
		if wantCred && (tenantVendor == "" || tenantSID == "" || tenantAPIKey == "") {
			return eris.New("--vendor, --sid and --apikey must be given together")
		}

		env, err := initIngest(ctx, "tenant")
		if err != nil {
			return err
		}
		defer env.Close()

		if wantCred {
			if _, ok := env.Coordinator.Vendors().Lookup(tenantVendor); !ok {
				return eris.Errorf("unknown vendor %q", tenantVendor)
			}
		}

		t, err := env.Store.CreateTenant(ctx, model.Tenant{ID: tenantID, Name: tenantName})
		if err != nil {
			return eris.Wrap(err, "create tenant")
		}
		zap.L().Info("tenant created", zap.String("tenant", t.ID), zap.String("name", t.Name))

		if wantCred {
			cred, err := env.Store.AddCredential(ctx, model.WebhookCredential{
				TenantID: t.ID,
				Vendor:   tenantVendor,
				SID:      tenantSID,
				APIKey:   tenantAPIKey,
			})
			if err != nil {
				return eris.Wrap(err, "add webhook credential")
			}
			zap.L().Info("webhook credential added",
				zap.String("tenant", t.ID),
				zap.String("vendor", cred.Vendor),
				zap.String("credential", cred.ID),
			)
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), t.ID)
		return err
	},
}

func init() {
	tenantAddCmd.Flags().StringVar(&tenantID, "id", "", "tenant id (generated when empty)")
	tenantAddCmd.Flags().StringVar(&tenantName, "name", "", "tenant name (required)")
	tenantAddCmd.Flags().StringVar(&tenantVendor, "vendor", "", "vendor profile id for webhook credentials")
	tenantAddCmd.Flags().StringVar(&tenantSID, "sid", "", "webhook sid")
	tenantAddCmd.Flags().StringVar(&tenantAPIKey, "apikey", "", "webhook api key")
	_ = tenantAddCmd.MarkFlagRequired("name")
	tenantCmd.AddCommand(tenantAddCmd)
	rootCmd.AddCommand(tenantCmd)
}
