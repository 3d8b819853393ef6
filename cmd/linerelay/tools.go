package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valinor-ai/linerelay/internal/channels"
)

func signCmd(opts *rootOptions) *cobra.Command {
	var bodyFile string

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the X-Line-Signature for a request body read from stdin or --file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.Line.ChannelSecret == "" {
				return fmt.Errorf("%w: missing channel secret", channels.ErrConfiguration)
			}

			body, err := readInput(cmd, bodyFile)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), channels.Sign(body, []byte(cfg.Line.ChannelSecret)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&bodyFile, "file", "f", "", "read the body from this file instead of stdin")
	return cmd
}

func encryptCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt [text]",
		Short: "Encrypt text with the configured reply key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			replyCipher, err := cipherFromConfig(opts)
			if err != nil {
				return err
			}

			text, err := textArg(cmd, args)
			if err != nil {
				return err
			}

			encoded, err := replyCipher.Encrypt(text)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), encoded)
			return nil
		},
	}
}

func decryptCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt [ciphertext]",
		Short: "Decrypt a relayed reply with the configured key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			replyCipher, err := cipherFromConfig(opts)
			if err != nil {
				return err
			}

			encoded, err := textArg(cmd, args)
			if err != nil {
				return err
			}

			plaintext, err := replyCipher.Decrypt(strings.TrimSpace(encoded))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), plaintext)
			return nil
		},
	}
}

func cipherFromConfig(opts *rootOptions) (*channels.ReplyCipher, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if cfg.Line.EncryptionKey == "" {
		return nil, fmt.Errorf("%w: missing encryption key", channels.ErrConfiguration)
	}
	return channels.NewReplyCipher([]byte(cfg.Line.EncryptionKey))
}

func textArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	raw, err := readInput(cmd, "")
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(raw), "\r\n"), nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return raw, nil
	}
	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return raw, nil
}
