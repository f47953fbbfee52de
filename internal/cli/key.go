package cli

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/batchauction/internal/crypto"
)

func newKeyCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage encrypted signing keys",
	}

	var keyHex, outPath, password string
	encrypt := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a private key (or a fresh one) into a key file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				return fmt.Errorf("a password is required (--password or BATCHAUCTION_KEY_PASSWORD)")
			}
			var key *ecdsa.PrivateKey
			var err error
			if keyHex != "" {
				key, err = crypto.ParseKey(keyHex)
			} else {
				key, err = ethcrypto.GenerateKey()
			}
			if err != nil {
				return err
			}
			blob, err := crypto.EncryptKey(key, password)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, blob, 0o600); err != nil {
				return fmt.Errorf("write key file: %w", err)
			}
			fmt.Fprintf(o.out, "wrote %s for %s\n", outPath, ethcrypto.PubkeyToAddress(key.PublicKey).Hex())
			return nil
		},
	}
	encrypt.Flags().StringVar(&keyHex, "private-key", "", "hex private key to encrypt; a new key is generated when empty")
	encrypt.Flags().StringVar(&outPath, "out", "auction.key", "key file to write")
	encrypt.Flags().StringVar(&password, "password", os.Getenv("BATCHAUCTION_KEY_PASSWORD"), "key file password")

	address := &cobra.Command{
		Use:   "address <key-file>",
		Short: "Print the address of a key file without unlocking it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read key file: %w", err)
			}
			addr, err := crypto.KeyFileAddress(blob)
			if err != nil {
				return err
			}
			fmt.Fprintln(o.out, addr)
			return nil
		},
	}

	cmd.AddCommand(encrypt, address)
	return cmd
}

func newLoginCmd(o *options) *cobra.Command {
	var keyCfg crypto.KeyConfig
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign a login challenge and print a session token",
		Long:  "login signs the daemon's challenge with your key and prints a token. Export it as BATCHAUCTION_TOKEN or pass it with --token.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := crypto.LoadKey(keyCfg)
			if err != nil {
				return err
			}
			signer := crypto.NewSigner(key)
			c := o.client()

			ch, err := c.RequestChallenge(cmd.Context(), signer.Address().Hex())
			if err != nil {
				return err
			}
			sig, err := signer.SignText([]byte(ch.Message))
			if err != nil {
				return err
			}
			session, err := c.Login(cmd.Context(), ch.Address, sig)
			if err != nil {
				return err
			}
			fmt.Fprintln(o.out, session.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyCfg.EncryptedKeyPath, "key-file", envOr("BATCHAUCTION_KEY_FILE", "auction.key"), "encrypted key file")
	cmd.Flags().StringVar(&keyCfg.KeyPassword, "password", os.Getenv("BATCHAUCTION_KEY_PASSWORD"), "key file password")
	cmd.Flags().StringVar(&keyCfg.RawPrivateKey, "private-key", os.Getenv("BATCHAUCTION_PRIVATE_KEY"), "raw hex private key (overrides --key-file)")
	return cmd
}
