package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/cronoslabs/settlex/chain"
	"github.com/cronoslabs/settlex/configuration"
	"github.com/cronoslabs/settlex/facilitator"
	"github.com/cronoslabs/settlex/logging"
	"github.com/cronoslabs/settlex/logo"
	"github.com/cronoslabs/settlex/networks"
	"github.com/cronoslabs/settlex/receipts"
	"github.com/cronoslabs/settlex/router"
	"github.com/cronoslabs/settlex/stdoutwriter"
	"github.com/cronoslabs/settlex/telemetry"
	"github.com/cronoslabs/settlex/wallet"
	"github.com/cronoslabs/settlex/zincadapter"
)

const usage = `pays and verifies time-boxed transfer authorizations against the settlement facilitator and the Cronos chain`

const passwdEnv = "SETTLEX_WALLET_PASSWD"

func main() {
	logo.Display()
	godotenv.Load()

	var (
		file      string
		recipient string
		amount    string
		txHash    string
	)

	configurator := func() (configuration.Configuration, error) {
		if file == "" {
			return configuration.Configuration{}, errors.New("please specify configuration file path with -c <path to file>")
		}
		return configuration.Read(file)
	}

	app := &cli.App{
		Name:  "settlex",
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Load configuration from `FILE`",
				Destination: &file,
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "pay",
				Aliases: []string{"p"},
				Usage:   "Pays the given stable asset amount to the recipient through the delegated settlement path.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "recipient",
						Aliases:     []string{"r"},
						Usage:       "Recipient account address.",
						Destination: &recipient,
						Required:    true,
					},
					&cli.StringFlag{
						Name:        "amount",
						Aliases:     []string{"a"},
						Usage:       "Human readable amount, for example 0.01.",
						Destination: &amount,
						Required:    true,
					},
				},
				Action: func(_ *cli.Context) error {
					cfg, err := configurator()
					if err != nil {
						return err
					}
					return runPay(cfg, recipient, amount)
				},
			},
			{
				Name:    "verify-direct",
				Aliases: []string{"v"},
				Usage:   "Verifies a payer submitted native asset transfer by receipt inspection.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "tx",
						Aliases:     []string{"t"},
						Usage:       "Transaction hash of the direct transfer.",
						Destination: &txHash,
						Required:    true,
					},
					&cli.StringFlag{
						Name:        "recipient",
						Aliases:     []string{"r"},
						Usage:       "Expected recipient account address.",
						Destination: &recipient,
						Required:    true,
					},
					&cli.StringFlag{
						Name:        "amount",
						Aliases:     []string{"a"},
						Usage:       "Expected human readable amount, for example 1.5.",
						Destination: &amount,
						Required:    true,
					},
				},
				Action: func(_ *cli.Context) error {
					cfg, err := configurator()
					if err != nil {
						return err
					}
					return runVerifyDirect(cfg, txHash, recipient, amount)
				},
			},
			{
				Name:    "health",
				Aliases: []string{"hc"},
				Usage:   "Checks the settlement facilitator liveness.",
				Action: func(_ *cli.Context) error {
					cfg, err := configurator()
					if err != nil {
						return err
					}
					return runHealth(cfg)
				},
			},
			{
				Name:    "supported",
				Aliases: []string{"s"},
				Usage:   "Lists networks and assets the settlement facilitator supports.",
				Action: func(_ *cli.Context) error {
					cfg, err := configurator()
					if err != nil {
						return err
					}
					return runSupported(cfg)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println(err.Error())
	}
}

func setup(cfg configuration.Configuration) (*router.Router, *wallet.Wallet, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())

	callOnErr := func(err error) {
		pterm.Error.Println(fmt.Sprintf("logger failed, %s", err))
	}
	log := logging.New(callOnErr, stdoutwriter.Logger{})
	if cfg.ZincLogger.Address != "" {
		zinc, err := zincadapter.New(cfg.ZincLogger)
		if err != nil {
			cancel()
			return nil, nil, nil, err
		}
		log = logging.New(callOnErr, stdoutwriter.Logger{}, &zinc)
	}

	var tele *telemetry.Measurements
	if cfg.Telemetry.Port != 0 {
		var err error
		tele, err = telemetry.Run(ctx, cancel, cfg.Telemetry)
		if err != nil {
			cancel()
			return nil, nil, nil, err
		}
	}

	network, err := networks.ByID(cfg.Network)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}

	rpcURL := network.RPCURL
	if cfg.Chain.RPCURL != "" {
		rpcURL = cfg.Chain.RPCURL
	}
	reader, err := chain.Dial(ctx, rpcURL)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}

	var capability *wallet.Wallet
	if cfg.Wallet.Path != "" {
		passwd := os.Getenv(passwdEnv)
		if passwd == "" {
			reader.Close()
			cancel()
			return nil, nil, nil, fmt.Errorf("wallet file configured but %s is not set", passwdEnv)
		}
		w, err := wallet.ReadFromFile(cfg.Wallet.Path, wallet.EncryptionKey(passwd))
		if err != nil {
			reader.Close()
			cancel()
			return nil, nil, nil, err
		}
		capability = &w
	}

	settlement := facilitator.NewClient(cfg.Facilitator, log, tele)
	verifier := receipts.NewVerifier(reader, cfg.MinConfirmations)

	var r *router.Router
	if capability != nil {
		r = router.New(settlement, verifier, *capability, log, tele)
	} else {
		r = router.New(settlement, verifier, nil, log, tele)
	}

	teardown := func() {
		reader.Close()
		cancel()
	}
	return r, capability, teardown, nil
}

func runPay(cfg configuration.Configuration, recipient, amount string) error {
	r, w, teardown, err := setup(cfg)
	if err != nil {
		return err
	}
	defer teardown()

	if w == nil {
		return errors.New("paying requires a configured wallet file and the wallet password")
	}

	network, err := networks.ByID(cfg.Network)
	if err != nil {
		return err
	}

	outcome, err := r.Pay(context.Background(), router.Requirement{
		Scheme:            "exact",
		Network:           cfg.Network,
		MaxAmountRequired: amount,
		PayToAddress:      recipient,
		AssetAddress:      network.StableAsset.Address,
	}, router.PayerContext{Accounts: []common.Address{w.Address()}})
	if err != nil {
		return err
	}

	switch {
	case outcome.Success:
		pterm.Success.Println(fmt.Sprintf("settled in transaction %s", outcome.TxHash))
		pterm.Info.Println(outcome.ExplorerURL)
	case outcome.WalletInteractionRequired:
		pterm.Warning.Println("payment requires external wallet interaction")
	default:
		pterm.Error.Println(fmt.Sprintf("%s, %s", outcome.Error, outcome.Reason))
	}
	return nil
}

func runVerifyDirect(cfg configuration.Configuration, txHash, recipient, amount string) error {
	r, _, teardown, err := setup(cfg)
	if err != nil {
		return err
	}
	defer teardown()

	verification, err := r.VerifyDirectPayment(context.Background(), cfg.Network, txHash, recipient, amount, cfg.MinConfirmations)
	if err != nil {
		return err
	}
	switch verification.Valid {
	case true:
		pterm.Success.Println("direct transfer verified")
		pterm.Info.Println(verification.ExplorerURL)
	default:
		pterm.Error.Println(fmt.Sprintf("%s, %s", verification.Error, verification.Reason))
	}
	return nil
}

func runHealth(cfg configuration.Configuration) error {
	r, _, teardown, err := setup(cfg)
	if err != nil {
		return err
	}
	defer teardown()

	health, err := r.FacilitatorHealth(context.Background())
	if err != nil {
		return err
	}
	switch health.Healthy {
	case true:
		pterm.Success.Println(fmt.Sprintf("facilitator healthy at %s", health.Timestamp))
	default:
		pterm.Warning.Println(fmt.Sprintf("facilitator %s at %s", health.Status, health.Timestamp))
	}
	return nil
}

func runSupported(cfg configuration.Configuration) error {
	r, _, teardown, err := setup(cfg)
	if err != nil {
		return err
	}
	defer teardown()

	supported, err := r.SupportedNetworksAndAssets(context.Background())
	if err != nil {
		return err
	}
	for _, network := range supported.Networks {
		pterm.Info.Println(fmt.Sprintf("%s (chain id %d)", network.Network, network.ChainID))
		for _, token := range network.Tokens {
			pterm.Println(fmt.Sprintf("  %s %s, %d decimals", token.Symbol, token.Address, token.Decimals))
		}
	}
	return nil
}
