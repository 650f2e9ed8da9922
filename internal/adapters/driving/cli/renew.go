package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driving"
	"github.com/custodia-labs/exchange-agent/internal/core/services"
)

func newRenewSecretCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "renew-secret",
		Short: "Renew the client secret once",
		Long: `Requests a new client secret from the exchange service and writes it to
the configuration file that defines api.client-secret. The file must be the
only source of the secret and must be writable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newComponents(opts)
			if err != nil {
				return err
			}
			defer c.close()

			var renewer driving.CredentialRenewer = services.NewCredentialRenewal(c.config, c.writer, c.client)
			return renewSecret(cmd, renewer)
		},
	}
}

func renewSecret(cmd *cobra.Command, renewer driving.CredentialRenewer) error {
	err := renewer.Renew(cmd.Context())
	if errors.Is(err, domain.ErrRenewalDisabled) {
		return fmt.Errorf("%w: set credential.renewal.enabled to true", err)
	}
	if err != nil {
		return err
	}
	cmd.Println("Client secret renewed.")
	return nil
}
