package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/services"
)

func newQRCmd(configPath *string) *cobra.Command {
	var (
		token  string
		output string
		size   int
	)

	cmd := &cobra.Command{
		Use:   "qr --token=<link-token>",
		Short: "Render the share QR code of a usable link to a PNG file",
		Long:  "Renders the share QR code of a usable link. Link tokens may start with a dash, so pass them as --token=<value>.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(token) == "" {
				return errors.New("--token is required")
			}

			ws, err := openWorkspace(*configPath)
			if err != nil {
				return err
			}
			defer ws.Close()

			messages, err := services.NewMessageService(ws.db, ws.cfg.Messages.ServiceOptions(nil, nil)...)
			if err != nil {
				return err
			}

			png, err := messages.ShareQRCode(cmd.Context(), token, size)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, png, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", output, messages.ShareURL(token))
			return nil
		},
	}

	cmd.Flags().StringVarP(&token, "token", "t", "", "link token of the message")
	cmd.Flags().StringVarP(&output, "out", "o", "share-qr.png", "output PNG path")
	cmd.Flags().IntVar(&size, "size", 256, "image size in pixels")
	return cmd
}
