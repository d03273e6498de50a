package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/x402guard/internal/application/scan"
	"github.com/bryanwahyu/x402guard/internal/config"
	"github.com/bryanwahyu/x402guard/internal/domain/audit"
	"github.com/bryanwahyu/x402guard/internal/log"
	"github.com/bryanwahyu/x402guard/internal/payment"
	"github.com/bryanwahyu/x402guard/internal/wallet"
	"github.com/bryanwahyu/x402guard/internal/x402"
)

// errFlagRetrieval is the error message for when a flag cannot be retrieved.
var errFlagRetrieval = errors.New("error getting flag")

// errMissingKey is returned when no private key is configured.
var errMissingKey = errors.New(envPrivateKey + " is required and cannot be empty")

// errUnsafe marks a completed audit whose recommendation is UNSAFE.
var errUnsafe = errors.New("skill is not safe to install")

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a paid audit of a skill",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			tier, err := cmd.Flags().GetString("tier")
			if err != nil {
				return fmt.Errorf("%w: tier: %w", errFlagRetrieval, err)
			}
			if _, err := audit.ParseTier(tier); err != nil {
				return err
			}
			skillURL, _ := cmd.Flags().GetString("url")             //nolint:errcheck
			contentFile, _ := cmd.Flags().GetString("content-file") //nolint:errcheck
			if skillURL == "" && contentFile == "" {
				return errors.New("one of --url or --content-file is required")
			}
			if os.Getenv(envPrivateKey) == "" {
				return errMissingKey
			}
			return nil
		},
		RunE: runScan,
	}

	cmd.Flags().StringP("tier", "t", string(audit.DefaultTier), "Audit tier: quick|standard|deep")
	cmd.Flags().StringP("url", "u", "", "URL of the skill to audit")
	cmd.Flags().StringP("content-file", "f", "", "File with the skill content to audit ('-' for stdin)")
	cmd.Flags().String("proxy", "", "Base URL of the x402guard proxy (default from config)")
	cmd.Flags().StringSlice("network", nil, "Preferred payment networks, e.g. eip155:8453")
	cmd.Flags().BoolP("yes", "y", false, "Sign payments without asking")
	cmd.Flags().Bool("fail-on-unsafe", false, "Exit non-zero when the recommendation is UNSAFE")
	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	tierFlag, _ := cmd.Flags().GetString("tier")             //nolint:errcheck
	skillURL, _ := cmd.Flags().GetString("url")              //nolint:errcheck
	contentFile, _ := cmd.Flags().GetString("content-file")  //nolint:errcheck
	proxyURL, _ := cmd.Flags().GetString("proxy")            //nolint:errcheck
	networks, _ := cmd.Flags().GetStringSlice("network")     //nolint:errcheck
	yes, _ := cmd.Flags().GetBool("yes")                     //nolint:errcheck
	failOnUnsafe, _ := cmd.Flags().GetBool("fail-on-unsafe") //nolint:errcheck

	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	logger, err := log.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	ctx = log.WithLogger(ctx, logger)

	if proxyURL == "" {
		proxyURL = cfg.Client.ProxyURL
	}
	if len(networks) == 0 {
		networks = cfg.Client.Networks
	}

	tier, err := audit.ParseTier(tierFlag)
	if err != nil {
		return err
	}
	req := audit.Request{SkillURL: skillURL}
	if contentFile != "" {
		content, err := readContent(cmd.InOrStdin(), contentFile)
		if err != nil {
			return err
		}
		req.SkillContent = content
	}

	keySigner, err := wallet.NewKeySigner(os.Getenv(envPrivateKey))
	if err != nil {
		return fmt.Errorf("error loading %s: %w", envPrivateKey, err)
	}
	var signer wallet.Signer = keySigner
	if !yes {
		signer = &wallet.ConfirmingSigner{Signer: keySigner, Confirm: promptConfirm(cmd.InOrStdin(), errOut)}
	}

	session := payment.NewSession(
		&http.Client{Timeout: cfg.Upstream.Timeout},
		logger,
		x402.WithLogger(logger),
		x402.WithNetworks(networks...),
	)
	defer session.Dispose()
	if err := session.Sync(ctx, wallet.Connection{Address: keySigner.Address(), Signer: signer}); err != nil {
		return err
	}
	fmt.Fprintf(errOut, "wallet: %s\n", session.Address())

	flow := scan.NewFlow(session, scan.NewClient(proxyURL, logger), logger)
	flow.OnChange(func(s scan.Snapshot) {
		logger.Debug("scan state", zap.String("state", string(s.State)))
		if s.State.Busy() {
			fmt.Fprintf(errOut, "%s...\n", strings.ReplaceAll(string(s.State), "_", " "))
		}
	})

	snap, err := flow.Trigger(ctx, tier, req)
	if err != nil {
		if snap.Message != "" {
			return fmt.Errorf("%s: %w", snap.Message, err)
		}
		return err
	}
	if snap.State != scan.StateSuccess {
		return errors.New(snap.Message)
	}

	printResult(out, snap)
	if failOnUnsafe && snap.Result.Recommendation.Blocking() {
		return errUnsafe
	}
	return nil
}

func readContent(stdin io.Reader, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("error reading skill content: %w", err)
	}
	return string(data), nil
}

// promptConfirm asks on w and reads a y/N answer from r.
func promptConfirm(r io.Reader, w io.Writer) wallet.ConfirmFunc {
	reader := bufio.NewReader(r)
	return func(ctx context.Context, data apitypes.TypedData) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprintf(w, "Sign payment of %v %s units to %v on chain %s? [y/N] ",
			data.Message["value"], data.Domain.Name, data.Message["to"], chainID(data.Domain))

		answer, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes", nil
	}
}

func chainID(d apitypes.TypedDataDomain) string {
	if d.ChainId == nil {
		return "?"
	}
	return (*big.Int)(d.ChainId).String()
}

func printResult(w io.Writer, snap scan.Snapshot) {
	r := snap.Result
	fmt.Fprintf(w, "Audit %s (%s)\n", r.AuditID, r.Tier)
	fmt.Fprintf(w, "Risk score:     %.0f/100 [%s]\n", r.RiskScore, audit.RiskBand(r.RiskScore))
	fmt.Fprintf(w, "Risk level:     %s\n", r.RiskLevel)
	fmt.Fprintf(w, "Recommendation: %s\n", r.Recommendation)
	fmt.Fprintf(w, "Findings:       %d\n", r.Findings.Total())

	groups := []struct {
		name  string
		items []string
	}{
		{"malware", r.Findings.Malware},
		{"credentials", r.Findings.Credentials},
		{"network", r.Findings.Network},
		{"permissions", r.Findings.Permissions},
	}
	for _, g := range groups {
		for _, item := range g.items {
			fmt.Fprintf(w, "  - [%s] %s\n", g.name, item)
		}
	}
	if r.Attestation != "" {
		fmt.Fprintf(w, "Attestation:    %s\n", r.Attestation)
	}
	if p := snap.Payment; p != nil {
		fmt.Fprintf(w, "Payment:        tx %s on %s (payer %s)\n", p.TransactionHash, p.Network, p.Payer)
	}
}
