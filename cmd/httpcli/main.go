package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/zkleaderboard/verifier/cmd/httpcli/client"
	"github.com/zkleaderboard/verifier/ledger"
	"github.com/zkleaderboard/verifier/logging"
	"github.com/zkleaderboard/verifier/util"
)

var (
	addressFlag = cli.StringFlag{
		Name:   "address",
		Value:  "http://localhost:8000",
		Usage:  "verifier REST API",
		EnvVar: "VERIFIER_URL",
	}
	outFlag = cli.StringFlag{
		Name:  "out",
		Usage: "also save the response as JSON to this file",
	}
	debugFlag = cli.BoolFlag{
		Name:  "debug",
		Usage: "log requests",
	}
)

func newClient(cCtx *cli.Context) (*client.HTTPClient, error) {
	level := zap.WarnLevel
	if cCtx.GlobalBool(debugFlag.Name) {
		level = zap.DebugLevel
	}
	return client.NewHTTPClient(cCtx.GlobalString(addressFlag.Name), logging.New(level, "", false, logging.Rotation{}))
}

// output prints v and saves it when --out is set.
func output(cCtx *cli.Context, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	if out := cCtx.String(outFlag.Name); out != "" {
		return util.Persist(out, v)
	}
	return nil
}

// readAddresses takes addresses from the arguments or, if none, one per line from a file.
func readAddresses(cCtx *cli.Context) ([]string, error) {
	if file := cCtx.String("file"); file != "" {
		data, err := os.ReadFile(file) //#nosec G304
		if err != nil {
			return nil, fmt.Errorf("reading addresses: %w", err)
		}
		var addresses []string
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				addresses = append(addresses, line)
			}
		}
		return addresses, nil
	}
	return cCtx.Args(), nil
}

func verify(cCtx *cli.Context) error {
	addresses, err := readAddresses(cCtx)
	if err != nil {
		return err
	}
	cl, err := newClient(cCtx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "verifying %d addresses, this may take a few minutes\n", len(addresses))
	resp, err := cl.Verify(context.Background(), addresses)
	switch {
	case errors.Is(err, client.ErrAmbiguous):
		fmt.Fprintln(os.Stderr, "the settlement transaction may still be mined, check it before retrying")
		return err
	case err != nil:
		return err
	}
	return output(cCtx, resp)
}

func verifyContract(cCtx *cli.Context) error {
	q := ledger.AttestationQuery{
		AttestationID: cCtx.Uint64("attestation-id"),
		Leaf:          common.HexToHash(cCtx.String("leaf")),
		LeafCount:     cCtx.Uint64("leaf-count"),
		Index:         cCtx.Uint64("index"),
	}
	for _, node := range cCtx.StringSlice("path") {
		q.MerklePath = append(q.MerklePath, common.HexToHash(node))
	}
	cl, err := newClient(cCtx)
	if err != nil {
		return err
	}
	verified, err := cl.VerifyContract(context.Background(), q)
	if err != nil {
		return err
	}
	if verified {
		fmt.Println("✅ attestation is valid")
	} else {
		fmt.Println("❌ attestation is not valid")
	}
	return nil
}

func run(cCtx *cli.Context) error {
	if cCtx.NArg() != 1 {
		return errors.New("expected a run id")
	}
	cl, err := newClient(cCtx)
	if err != nil {
		return err
	}
	record, err := cl.Run(context.Background(), cCtx.Args().First())
	if err != nil {
		return err
	}
	return output(cCtx, record)
}

func health(cCtx *cli.Context) error {
	cl, err := newClient(cCtx)
	if err != nil {
		return err
	}
	if err := cl.Health(context.Background()); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func main() {
	app := &cli.App{
		Name:  "httpcli",
		Usage: "talk to a leaderboard verifier",
		Flags: []cli.Flag{addressFlag, debugFlag},
		Commands: []cli.Command{
			{
				Name:      "verify",
				Usage:     "prove, attest and settle a batch of addresses",
				ArgsUsage: "<address>...",
				Flags: []cli.Flag{
					outFlag,
					cli.StringFlag{Name: "file", Usage: "read addresses from a file, one per line"},
				},
				Action: verify,
			},
			{
				Name:  "verify_contract",
				Usage: "check an attestation against the attestation contract",
				Flags: []cli.Flag{
					cli.Uint64Flag{Name: "attestation-id"},
					cli.StringFlag{Name: "leaf"},
					cli.StringSliceFlag{Name: "path", Usage: "merkle path node, repeat in order"},
					cli.Uint64Flag{Name: "leaf-count"},
					cli.Uint64Flag{Name: "index"},
				},
				Action: verifyContract,
			},
			{
				Name:      "run",
				Usage:     "show the stored outcome of a run",
				ArgsUsage: "<run id>",
				Flags:     []cli.Flag{outFlag},
				Action:    run,
			},
			{
				Name:   "health",
				Action: health,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
