package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/cronoslabs/settlex/logo"
	"github.com/cronoslabs/settlex/wallet"
)

const usage = `manages the encrypted wallet file holding the payer's signing key`

func main() {
	logo.Display()

	var (
		path   string
		passwd string
	)

	validate := func() error {
		if path == "" {
			return errors.New("please specify the wallet file path with -p <path to file>")
		}
		if passwd == "" {
			return errors.New("please specify the wallet passphrase with -s <passphrase>")
		}
		return nil
	}

	app := &cli.App{
		Name:  "wallet",
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "path",
				Aliases:     []string{"p"},
				Usage:       "Path to the encrypted wallet `FILE`",
				Destination: &path,
			},
			&cli.StringFlag{
				Name:        "passwd",
				Aliases:     []string{"s"},
				Usage:       "Passphrase the wallet file is encrypted with",
				Destination: &passwd,
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "new",
				Aliases: []string{"n"},
				Usage:   "Creates a fresh key pair and saves it to the encrypted wallet file.",
				Action: func(_ *cli.Context) error {
					if err := validate(); err != nil {
						return err
					}
					if _, err := os.Stat(path); err == nil {
						return fmt.Errorf("wallet file %s already exists, refusing to overwrite", path)
					}
					w, err := wallet.New()
					if err != nil {
						return err
					}
					if err := w.SaveToFile(path, wallet.EncryptionKey(passwd)); err != nil {
						return err
					}
					pterm.Success.Println(fmt.Sprintf("wallet saved to %s", path))
					pterm.Info.Println(fmt.Sprintf("account address %s", w.Address().Hex()))
					return nil
				},
			},
			{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "Prints the account address the wallet file is bound to.",
				Action: func(_ *cli.Context) error {
					if err := validate(); err != nil {
						return err
					}
					w, err := wallet.ReadFromFile(path, wallet.EncryptionKey(passwd))
					if err != nil {
						return err
					}
					pterm.Info.Println(fmt.Sprintf("account address %s", w.Address().Hex()))
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println(err.Error())
	}
}
