package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ruteri/feldman-vss-backend/api"
	"github.com/ruteri/feldman-vss-backend/api/bulletinhandler"
	"github.com/ruteri/feldman-vss-backend/api/vsshandler"
	"github.com/ruteri/feldman-vss-backend/cmd/flags"
	"github.com/ruteri/feldman-vss-backend/cryptoutils"
	"github.com/ruteri/feldman-vss-backend/interfaces"
	"github.com/ruteri/feldman-vss-backend/playerresolver"
	"github.com/ruteri/feldman-vss-backend/roster"
	"github.com/ruteri/feldman-vss-backend/vss"
	"github.com/urfave/cli/v2"
)

var PlayerFlag = &cli.StringFlag{
	Name:  "player",
	Usage: "player identifier to authenticate as, must match a roster entry",
}

var SessionFlag = &cli.StringFlag{
	Name:     "session",
	Required: true,
	Usage:    "session identifier",
}

var OutFlag = &cli.StringFlag{
	Name:  "out",
	Usage: "output file path",
}

var PassphraseFileFlag = &cli.StringFlag{
	Name:  "passphrase-file",
	Usage: "path to a file holding the passphrase for share files at rest",
}

var ShareFileFlag = &cli.StringFlag{
	Name:  "share-file",
	Usage: "path to a passphrase-encrypted share file written by fetch-share",
}

var SharesFlag = &cli.IntFlag{
	Name:     "shares",
	Required: true,
	Usage:    "total number of shares to issue (n)",
}

var ThresholdFlag = &cli.IntFlag{
	Name:     "threshold",
	Required: true,
	Usage:    "number of shares required for reconstruction (t)",
}

var SecretFlag = &cli.StringFlag{
	Name:  "secret",
	Usage: "secret to share, decimal or 0x-prefixed hex; random if unset",
}

var ParamsFileFlag = &cli.StringFlag{
	Name:  "params-file",
	Usage: "path to a JSON group parameters file to reuse instead of generating",
}

var ExpectedFingerprintFlag = &cli.StringFlag{
	Name:  "expected-fingerprint",
	Usage: "0x-prefixed fingerprint the reused parameters must match",
}

var BitsFlag = &cli.IntFlag{
	Name:  "bits",
	Value: 256,
	Usage: "bit size of the subgroup order q when generating parameters",
}

var CertaintyFlag = &cli.IntFlag{
	Name:  "certainty",
	Value: 64,
	Usage: "Miller-Rabin certainty for primality checks",
}

func main() {
	app := &cli.App{
		Name:  "vss-client",
		Usage: "Participate in verifiable secret sharing sessions",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			flags.PrivateKeyFlag,
			PlayerFlag,
		},
		Commands: []*cli.Command{
			{
				Name:        "keygen",
				Usage:       "generate a player key pair",
				Description: "Writes <out>.key and <out>.pub and prints the public key fingerprint, which doubles as the default player identifier.",
				Flags:       []cli.Flag{OutFlag},
				Action:      runKeygen,
			},
			{
				Name:        "generate-params",
				Usage:       "generate group parameters offline",
				Description: "Runs the group parameter search locally and prints the resulting parameters as JSON, suitable for --params-file.",
				Flags:       []cli.Flag{BitsFlag, CertaintyFlag},
				Action:      runGenerateParams,
			},
			{
				Name:   "status",
				Usage:  "show the server's session summary",
				Action: runStatus,
			},
			{
				Name:   "create-session",
				Usage:  "deal a new sharing session",
				Flags:  []cli.Flag{SharesFlag, ThresholdFlag, SecretFlag, ParamsFileFlag, ExpectedFingerprintFlag, BitsFlag, CertaintyFlag},
				Action: runCreateSession,
			},
			{
				Name:        "fetch-share",
				Usage:       "fetch and decrypt this player's share",
				Description: "With --out and --passphrase-file the share is re-encrypted under the passphrase and written to disk; otherwise the share JSON is printed.",
				Flags:       []cli.Flag{SessionFlag, OutFlag, PassphraseFileFlag},
				Action:      runFetchShare,
			},
			{
				Name:        "push-shares",
				Usage:       "fan sealed shares out to player inboxes (dealer only)",
				Description: "Lists the session's sealed shares, resolves each player's roster endpoint and pushes their share to the resolved inbox addresses. Players without an endpoint are skipped; they fetch instead.",
				Flags:       []cli.Flag{SessionFlag, flags.RosterFlag},
				Action:      runPushShares,
			},
			{
				Name:        "submit-share",
				Usage:       "submit a share for reconstruction",
				Description: "Reads the share from --share-file (decrypted with --passphrase-file) or fetches and decrypts it from the server.",
				Flags:       []cli.Flag{SessionFlag, ShareFileFlag, PassphraseFileFlag},
				Action:      runSubmitShare,
			},
			{
				Name:        "demo",
				Usage:       "run the full protocol in-process",
				Description: "Generates group parameters, deals a secret, verifies every share, shows a tampered share being rejected and reconstructs the secret from two different share subsets.",
				Flags:       []cli.Flag{SharesFlag, ThresholdFlag, SecretFlag, BitsFlag, CertaintyFlag},
				Action:      runDemo,
			},
			{
				Name:   "secret",
				Usage:  "read the reconstructed secret (dealer only)",
				Flags:  []cli.Flag{SessionFlag},
				Action: runSecret,
			},
			{
				Name:   "retire",
				Usage:  "retire a session and wipe its share material (dealer only)",
				Flags:  []cli.Flag{SessionFlag},
				Action: runRetire,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runKeygen(cCtx *cli.Context) error {
	privateKeyPEM, publicKeyPEM, err := cryptoutils.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("could not generate key pair: %w", err)
	}

	out := cCtx.String(OutFlag.Name)
	if out == "" {
		out = "player"
	}

	if err := os.WriteFile(out+".key", privateKeyPEM, 0600); err != nil {
		return fmt.Errorf("could not write private key: %w", err)
	}
	if err := os.WriteFile(out+".pub", publicKeyPEM, 0644); err != nil {
		return fmt.Errorf("could not write public key: %w", err)
	}

	fmt.Println(cryptoutils.PlayerPubkey(publicKeyPEM).Fingerprint())
	return nil
}

func runGenerateParams(cCtx *cli.Context) error {
	params, err := vss.NewParameterGenerator(rand.Reader).Generate(context.Background(), cCtx.Int(BitsFlag.Name), cCtx.Int(CertaintyFlag.Name))
	if err != nil {
		return fmt.Errorf("parameter generation failed: %w", err)
	}

	encoded, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func runStatus(cCtx *cli.Context) error {
	client, err := newSignedClient(cCtx)
	if err != nil {
		return err
	}

	status, err := client.Status()
	if err != nil {
		return fmt.Errorf("status request failed: %w", err)
	}
	return printJSON(status)
}

func runCreateSession(cCtx *cli.Context) error {
	client, err := newSignedClient(cCtx)
	if err != nil {
		return err
	}

	request := api.CreateSessionRequest{
		TotalShares: cCtx.Int(SharesFlag.Name),
		Threshold:   cCtx.Int(ThresholdFlag.Name),
		Bits:        cCtx.Int(BitsFlag.Name),
		Certainty:   cCtx.Int(CertaintyFlag.Name),
	}

	if secretStr := cCtx.String(SecretFlag.Name); secretStr != "" {
		secret, ok := new(big.Int).SetString(secretStr, 0)
		if !ok {
			return fmt.Errorf("could not parse secret %q", secretStr)
		}
		request.Secret = (*hexutil.Big)(secret)
	}

	if paramsPath := cCtx.String(ParamsFileFlag.Name); paramsPath != "" {
		paramsJSON, err := os.ReadFile(paramsPath)
		if err != nil {
			return fmt.Errorf("could not read parameters file: %w", err)
		}
		params := &vss.Parameters{}
		if err := json.Unmarshal(paramsJSON, params); err != nil {
			return fmt.Errorf("could not parse parameters file: %w", err)
		}
		request.Parameters = params
	}

	if fingerprintStr := cCtx.String(ExpectedFingerprintFlag.Name); fingerprintStr != "" {
		fingerprint, err := hexutil.Decode(fingerprintStr)
		if err != nil {
			return fmt.Errorf("could not parse expected fingerprint: %w", err)
		}
		request.ExpectedFingerprint = fingerprint
	}

	response, err := client.CreateSession(request)
	if err != nil {
		return fmt.Errorf("session creation failed: %w", err)
	}
	return printJSON(response)
}

func runFetchShare(cCtx *cli.Context) error {
	client, err := newSignedClient(cCtx)
	if err != nil {
		return err
	}
	sessionID, err := interfaces.ParseSessionID(cCtx.String(SessionFlag.Name))
	if err != nil {
		return err
	}

	privateKeyPEM, err := readPrivateKey(cCtx)
	if err != nil {
		return err
	}

	share, err := client.FetchAndDecryptShare(sessionID, privateKeyPEM)
	if err != nil {
		return fmt.Errorf("could not fetch share: %w", err)
	}

	shareJSON, err := json.Marshal(share)
	if err != nil {
		return err
	}

	out := cCtx.String(OutFlag.Name)
	if out == "" {
		fmt.Println(string(shareJSON))
		return nil
	}

	passphrase, err := readPassphrase(cCtx)
	if err != nil {
		return err
	}
	sealed, err := cryptoutils.EncryptWithPassphrase(passphrase, shareJSON)
	if err != nil {
		return fmt.Errorf("could not encrypt share file: %w", err)
	}
	if err := os.WriteFile(out, sealed, 0600); err != nil {
		return fmt.Errorf("could not write share file: %w", err)
	}

	fmt.Printf("share %d written to %s\n", share.Index, out)
	return nil
}

func runPushShares(cCtx *cli.Context) error {
	client, err := newSignedClient(cCtx)
	if err != nil {
		return err
	}
	sessionID, err := interfaces.ParseSessionID(cCtx.String(SessionFlag.Name))
	if err != nil {
		return err
	}

	players, err := roster.LoadFile(cCtx.String(flags.RosterFlag.Name))
	if err != nil {
		return fmt.Errorf("could not load roster: %w", err)
	}

	issued, err := client.IssuedShares(sessionID)
	if err != nil {
		return fmt.Errorf("could not list issued shares: %w", err)
	}
	bulletin, err := bulletinhandler.NewClient(cCtx.String(flags.ServerAddrFlag.Name)).Bulletin(sessionID)
	if err != nil {
		return fmt.Errorf("could not fetch bulletin: %w", err)
	}

	resolver := playerresolver.New()
	for _, share := range issued.Shares {
		player, err := players.Get(share.PlayerID)
		if err != nil {
			return err
		}
		if player.Endpoint == "" {
			fmt.Printf("share %d: %s has no inbox endpoint, skipping\n", share.ShareIndex, share.PlayerID)
			continue
		}

		endpoints, err := resolver.Endpoints(player)
		if err != nil {
			return fmt.Errorf("could not resolve inbox for %s: %w", share.PlayerID, err)
		}

		request := api.InboxShareRequest{
			SessionID:      sessionID,
			Bulletin:       *bulletin,
			EncryptedShare: share.EncryptedShare,
		}
		for _, endpoint := range endpoints {
			response, err := vsshandler.PushShare(http.DefaultClient, endpoint, request)
			if err != nil {
				return fmt.Errorf("push to %s failed: %w", endpoint, err)
			}
			if !response.Accepted {
				return fmt.Errorf("inbox at %s rejected share %d", endpoint, share.ShareIndex)
			}
			fmt.Printf("share %d delivered to %s\n", response.ShareIndex, endpoint)
		}
	}
	return nil
}

func runSubmitShare(cCtx *cli.Context) error {
	client, err := newSignedClient(cCtx)
	if err != nil {
		return err
	}
	sessionID, err := interfaces.ParseSessionID(cCtx.String(SessionFlag.Name))
	if err != nil {
		return err
	}

	var share vss.Share
	if sharePath := cCtx.String(ShareFileFlag.Name); sharePath != "" {
		sealed, err := os.ReadFile(sharePath)
		if err != nil {
			return fmt.Errorf("could not read share file: %w", err)
		}
		passphrase, err := readPassphrase(cCtx)
		if err != nil {
			return err
		}
		shareJSON, err := cryptoutils.DecryptWithPassphrase(passphrase, sealed)
		if err != nil {
			return fmt.Errorf("could not decrypt share file: %w", err)
		}
		if err := json.Unmarshal(shareJSON, &share); err != nil {
			return fmt.Errorf("could not parse share file: %w", err)
		}
	} else {
		privateKeyPEM, err := readPrivateKey(cCtx)
		if err != nil {
			return err
		}
		share, err = client.FetchAndDecryptShare(sessionID, privateKeyPEM)
		if err != nil {
			return fmt.Errorf("could not fetch share: %w", err)
		}
	}

	bulletin, err := bulletinhandler.NewClient(cCtx.String(flags.ServerAddrFlag.Name)).Bulletin(sessionID)
	if err != nil {
		return fmt.Errorf("could not fetch bulletin: %w", err)
	}

	response, err := client.SubmitShare(sessionID, api.SubmitShareRequest{
		Share:                 share,
		ParametersFingerprint: bulletin.ParametersFingerprint,
	})
	if err != nil {
		return fmt.Errorf("share submission failed: %w", err)
	}
	if !response.Accepted {
		return fmt.Errorf("share %d failed commitment verification", share.Index)
	}
	return printJSON(response)
}

func runDemo(cCtx *cli.Context) error {
	n := cCtx.Int(SharesFlag.Name)
	t := cCtx.Int(ThresholdFlag.Name)

	fmt.Printf("generating %d-bit group parameters...\n", cCtx.Int(BitsFlag.Name))
	params, err := vss.NewParameterGenerator(rand.Reader).Generate(context.Background(), cCtx.Int(BitsFlag.Name), cCtx.Int(CertaintyFlag.Name))
	if err != nil {
		return fmt.Errorf("parameter generation failed: %w", err)
	}
	fmt.Printf("p=%s\nq=%s\ng=%s\n", params.P, params.Q, params.G)

	var secret *big.Int
	if secretStr := cCtx.String(SecretFlag.Name); secretStr != "" {
		var ok bool
		if secret, ok = new(big.Int).SetString(secretStr, 0); !ok {
			return fmt.Errorf("could not parse secret %q", secretStr)
		}
	} else {
		if secret, err = vss.RandomSecret(params.Q, rand.Reader); err != nil {
			return fmt.Errorf("could not draw secret: %w", err)
		}
	}

	commitments, shares, err := vss.Deal(secret, n, t, params, rand.Reader)
	if err != nil {
		return fmt.Errorf("dealing failed: %w", err)
	}
	fmt.Printf("dealt %d shares, threshold %d\n", n, t)

	for _, share := range shares {
		if !vss.VerifyShare(share, commitments, params) {
			return fmt.Errorf("honest share %d failed verification", share.Index)
		}
	}
	fmt.Println("all shares verify against the commitments")

	tampered := shares[0]
	tampered.Value = new(big.Int).Add(tampered.Value, big.NewInt(1))
	tampered.Value.Mod(tampered.Value, params.Q)
	if vss.VerifyShare(tampered, commitments, params) {
		return fmt.Errorf("tampered share %d passed verification", tampered.Index)
	}
	fmt.Printf("tampered copy of share %d is rejected\n", tampered.Index)

	first, err := vss.Reconstruct(shares[:t], t, params.Q)
	if err != nil {
		return fmt.Errorf("reconstruction failed: %w", err)
	}
	second, err := vss.Reconstruct(shares[n-t:], t, params.Q)
	if err != nil {
		return fmt.Errorf("reconstruction failed: %w", err)
	}
	if first.Cmp(secret) != 0 || second.Cmp(secret) != 0 {
		return fmt.Errorf("reconstructed values disagree with the secret")
	}

	fmt.Printf("both share subsets reconstruct the secret: %s\n", secret)
	return nil
}

func runSecret(cCtx *cli.Context) error {
	client, err := newSignedClient(cCtx)
	if err != nil {
		return err
	}
	sessionID, err := interfaces.ParseSessionID(cCtx.String(SessionFlag.Name))
	if err != nil {
		return err
	}

	response, err := client.GetSecret(sessionID)
	if err != nil {
		return fmt.Errorf("secret request failed: %w", err)
	}
	fmt.Println(response.Secret.String())
	return nil
}

func runRetire(cCtx *cli.Context) error {
	client, err := newSignedClient(cCtx)
	if err != nil {
		return err
	}
	sessionID, err := interfaces.ParseSessionID(cCtx.String(SessionFlag.Name))
	if err != nil {
		return err
	}

	response, err := client.Retire(sessionID)
	if err != nil {
		return fmt.Errorf("retire request failed: %w", err)
	}
	return printJSON(response)
}

func newSignedClient(cCtx *cli.Context) (*vsshandler.Client, error) {
	privateKeyPEM, err := readPrivateKey(cCtx)
	if err != nil {
		return nil, err
	}
	playerID, err := interfaces.NewPlayerID(cCtx.String(PlayerFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("invalid player id: %w", err)
	}
	return vsshandler.NewClient(cCtx.String(flags.ServerAddrFlag.Name), playerID, privateKeyPEM)
}

func readPrivateKey(cCtx *cli.Context) ([]byte, error) {
	keyPath := cCtx.String(flags.PrivateKeyFlag.Name)
	if keyPath == "" {
		return nil, fmt.Errorf("--%s is required", flags.PrivateKeyFlag.Name)
	}
	privateKeyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("could not read private key: %w", err)
	}
	return privateKeyPEM, nil
}

func readPassphrase(cCtx *cli.Context) (string, error) {
	passphrasePath := cCtx.String(PassphraseFileFlag.Name)
	if passphrasePath == "" {
		return "", fmt.Errorf("--%s is required", PassphraseFileFlag.Name)
	}
	passphrase, err := os.ReadFile(passphrasePath)
	if err != nil {
		return "", fmt.Errorf("could not read passphrase file: %w", err)
	}
	return strings.TrimSpace(string(passphrase)), nil
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
