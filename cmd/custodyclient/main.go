package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ruteri/waas-signing-service/api/clients"
	"github.com/ruteri/waas-signing-service/cmd/flags"
	"github.com/ruteri/waas-signing-service/cryptoutils"
	"github.com/urfave/cli/v2"
)

var flagUsername *cli.StringFlag = &cli.StringFlag{
	Name:     "username",
	Required: true,
	Usage:    "Account to log in as",
}
var flagPassword *cli.StringFlag = &cli.StringFlag{
	Name:     "password",
	Required: true,
	EnvVars:  []string{"CUSTODY_PASSWORD"},
	Usage:    "Account password",
}
var flagGenerateKey *cli.BoolFlag = &cli.BoolFlag{
	Name:  "generate-key",
	Usage: "Generate a key first if the account has none",
}
var flagAddress *cli.StringFlag = &cli.StringFlag{
	Name:     "address",
	Required: true,
	Usage:    "0x-prefixed address the signature is expected to recover to",
}
var flagSignature *cli.StringFlag = &cli.StringFlag{
	Name:     "signature",
	Required: true,
	Usage:    "0x-prefixed 65-byte signature",
}

const usage string = `Every command logs in, acts and logs out again; sessions are not kept between invocations.`

func main() {
	// Settings from a .env file fill in unset environment variables.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "custody client",
		Usage: usage,
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
		},
		Commands: []*cli.Command{
			{
				Name:  "me",
				Usage: "Show the account, its key and its signing state",
				Flags: []cli.Flag{flagUsername, flagPassword},
				Action: withSession(func(ctx context.Context, c *clients.CustodyClient, cCtx *cli.Context) error {
					status, err := c.Me(ctx)
					if err != nil {
						return err
					}
					return printJSON(status)
				}),
			},
			{
				Name:  "generate",
				Usage: "Generate the account's signing key",
				Flags: []cli.Flag{flagUsername, flagPassword},
				Action: withSession(func(ctx context.Context, c *clients.CustodyClient, cCtx *cli.Context) error {
					key, err := c.GenerateKey(ctx)
					if err != nil {
						return err
					}
					return printJSON(key)
				}),
			},
			{
				Name:  "discard",
				Usage: "Discard the account's signing key",
				Flags: []cli.Flag{flagUsername, flagPassword},
				Action: withSession(func(ctx context.Context, c *clients.CustodyClient, cCtx *cli.Context) error {
					return c.DiscardKey(ctx)
				}),
			},
			{
				Name:      "sign",
				Usage:     "Sign a message and wait for the signature",
				ArgsUsage: "<message>",
				Flags:     []cli.Flag{flagUsername, flagPassword, flagGenerateKey},
				Action: withSession(func(ctx context.Context, c *clients.CustodyClient, cCtx *cli.Context) error {
					if cCtx.NArg() != 1 {
						return fmt.Errorf("expected exactly one message argument")
					}

					if cCtx.Bool(flagGenerateKey.Name) {
						status, err := c.Me(ctx)
						if err != nil {
							return err
						}
						if !status.HasKey {
							if _, err := c.GenerateKey(ctx); err != nil {
								return err
							}
						}
					}

					signature, err := c.SignAndWait(ctx, cCtx.Args().First())
					if err != nil {
						return err
					}
					fmt.Println(signature)
					return nil
				}),
			},
			{
				Name:      "verify",
				Usage:     "Check offline that a signature over a message recovers to an address",
				ArgsUsage: "<message>",
				Flags:     []cli.Flag{flagAddress, flagSignature},
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 1 {
						return fmt.Errorf("expected exactly one message argument")
					}

					recovered, err := cryptoutils.RecoverAddress([]byte(cCtx.Args().First()), cCtx.String(flagSignature.Name))
					if err != nil {
						return fmt.Errorf("could not recover signer: %w", err)
					}
					if !strings.EqualFold(recovered.Hex(), cCtx.String(flagAddress.Name)) {
						return fmt.Errorf("signature recovers to %s", recovered.Hex())
					}
					fmt.Println("signature valid")
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type sessionAction func(ctx context.Context, c *clients.CustodyClient, cCtx *cli.Context) error

func withSession(action sessionAction) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		ctx := cCtx.Context

		c, err := clients.NewCustodyClient(cCtx.String(flags.ServerAddrFlag.Name))
		if err != nil {
			return err
		}
		if _, err := c.Login(ctx, cCtx.String(flagUsername.Name), cCtx.String(flagPassword.Name)); err != nil {
			return fmt.Errorf("could not log in: %w", err)
		}
		defer func() {
			_ = c.Logout(context.Background())
		}()

		return action(ctx, c, cCtx)
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
