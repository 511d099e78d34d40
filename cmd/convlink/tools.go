package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/boomhq/convlink/pkg/config"
	"github.com/boomhq/convlink/pkg/linktoken"
	"github.com/boomhq/convlink/pkg/store"
	"github.com/boomhq/convlink/pkg/verify"
)

// newResolveCommand runs a single resolution from the command line, against
// the same store and orchestrator wiring the server uses.
func newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <identifier>",
		Short: "Resolve a conversation identifier to its canonical UUID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			st, err := store.NewSQLiteStore(cfg.Store.SQLiteDSN)
			if err != nil {
				return errors.Wrap(err, "open conversation store")
			}
			defer func() { _ = st.Close() }()

			minter, err := buildMinter(cfg)
			if err != nil {
				return err
			}
			orch := buildOrchestrator(cfg, st, store.NewMemoryAliasCache(), minter)

			res := orch.Resolve(cmd.Context(), args[0], nil)
			if res == nil {
				return errors.Errorf("could not resolve %q", args[0])
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}

// newMintCommand prints the deterministic UUID an identifier mints to,
// without touching any store.
func newMintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mint <identifier>",
		Short: "Print the deterministic UUID for a legacy id or slug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			minter, err := buildMinter(cfg)
			if err != nil {
				return err
			}
			u, err := minter.MintRaw(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u.String())
			return nil
		},
	}
}

// newImportCommand loads a YAML conversation directory into the store, for
// bootstrapping a deployment from an export.
func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <seed.yaml>",
		Short: "Import a YAML conversation directory into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			st, err := store.NewSQLiteStore(cfg.Store.SQLiteDSN)
			if err != nil {
				return errors.Wrap(err, "open conversation store")
			}
			defer func() { _ = st.Close() }()

			n, err := store.LoadSeedFile(cmd.Context(), args[0], st)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d conversations\n", n)
			return nil
		},
	}
}

func newKeygenCommand() *cobra.Command {
	var privOut, pubOut string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 signing keypair",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := linktoken.GenerateKeypair()
			if err != nil {
				return err
			}
			if privOut != "" {
				if err := os.WriteFile(privOut, []byte(kp.PrivatePEM), 0o600); err != nil {
					return errors.Wrap(err, "write private key")
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), kp.PrivatePEM)
			}
			if pubOut != "" {
				if err := os.WriteFile(pubOut, []byte(kp.PublicPEM), 0o644); err != nil {
					return errors.Wrap(err, "write public key")
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), kp.PublicPEM)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "kid: %s\n", kp.Kid)
			return nil
		},
	}
	cmd.Flags().StringVar(&privOut, "private-out", "", "write the private key PEM to this file instead of stdout")
	cmd.Flags().StringVar(&pubOut, "public-out", "", "write the public key PEM to this file instead of stdout")
	return cmd
}

// newVerifyLinkCommand checks that a built link actually lands somewhere
// sensible before it gets mailed out.
func newVerifyLinkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-link <url>",
		Short: "Probe a link and report whether it reaches the dashboard or login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			v := verify.NewLinkVerifier(cfg.Server.DashboardPath, "", "", 0)
			if !v.Verify(cmd.Context(), args[0]) {
				return errors.Errorf("link did not verify: %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
