package cmd

import (
	"bufio"
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"evm-swap/config"
	"evm-swap/internal/logging"
	"evm-swap/internal/metrics"
	"evm-swap/pkg/ledger"
	"evm-swap/pkg/pipeline"
	"evm-swap/pkg/registry"
	"evm-swap/pkg/signer"
	"evm-swap/pkg/token"
)

// session is the per-command state: configuration, the chain being used and
// a connected node client.
type session struct {
	cfg     *config.Config
	reg     *registry.Registry
	chain   registry.ChainProfile
	client  *ledger.EthClient
	log     zerolog.Logger
	verbose bool
	json    bool
	stop    context.CancelFunc
}

// openSession loads configuration, applies global flag overrides and dials
// the chain's RPC endpoint.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("chain"); v != "" {
		cfg.Chain = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := flags.GetString("metrics-addr"); v != "" {
		cfg.MetricsAddr = v
	}
	verbose, _ := flags.GetBool("verbose")
	jsonOutput, _ := flags.GetBool("json")
	if verbose {
		cfg.LogLevel = "debug"
	}

	reg := registry.Default()
	if cfg.RegistryFile != "" {
		reg, err = registry.LoadFile(cfg.RegistryFile)
		if err != nil {
			return nil, err
		}
	}
	chain, err := reg.Chain(cfg.Chain)
	if err != nil {
		return nil, fmt.Errorf("%w (try: evm-swap chains)", err)
	}
	if cfg.RPCURL != "" {
		chain = chain.WithRPC(cfg.RPCURL)
	}

	log := logging.New(os.Stderr, cfg.LogLevel, true).With().Str("chain", chain.Name).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	client, err := ledger.Dial(ctx, chain.RPCURL)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to %s: %w", chain.RPCURL, err)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mlog := logging.Component(log, "metrics")
			if err := metrics.Serve(ctx, cfg.MetricsAddr, mlog); err != nil {
				mlog.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	return &session{
		cfg:     cfg,
		reg:     reg,
		chain:   chain,
		client:  client,
		log:     log,
		verbose: verbose,
		json:    jsonOutput,
		stop:    cancel,
	}, nil
}

func (s *session) Close() {
	s.stop()
	s.client.Close()
}

func (s *session) pipelineConfig() pipeline.Config {
	return pipeline.Config{
		ChainID:     big.NewInt(s.chain.ChainID),
		ChainName:   s.chain.Name,
		MinGasPrice: gweiToWei(s.cfg.MinGasGwei),
		MaxGasPrice: gweiToWei(s.cfg.MaxGasGwei),
		GasLimit:    s.cfg.GasLimit,
		Logger:      s.log,
	}
}

// mainPipeline builds the pipeline of the configured private key.
func (s *session) mainPipeline() (*pipeline.Pipeline, error) {
	if err := s.cfg.RequirePrivateKey(); err != nil {
		return nil, err
	}
	key, err := signer.ParseKey(s.cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	return pipeline.New(s.client, signer.KeySigner{}, key, s.pipelineConfig())
}

// readOnlyPipeline is used for calls that never sign. A throwaway key stands
// in when none is configured.
func (s *session) readOnlyPipeline() (*pipeline.Pipeline, error) {
	if s.cfg.PrivateKey != "" {
		return s.mainPipeline()
	}
	key, err := signer.GenerateKey()
	if err != nil {
		return nil, err
	}
	return pipeline.New(s.client, signer.KeySigner{}, key, s.pipelineConfig())
}

func (s *session) router(name string) (registry.RouterProfile, error) {
	if name != "" {
		return s.reg.Router(s.chain.Name, name)
	}
	routers := s.reg.Routers(s.chain.Name)
	if len(routers) == 0 {
		return registry.RouterProfile{}, fmt.Errorf("%w: no router on %s", registry.ErrUnknownRouter, s.chain.Name)
	}
	return routers[0], nil
}

func (s *session) resolveToken(symbol string) (common.Address, error) {
	addr, err := s.reg.ResolveToken(s.chain.Name, symbol)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w (try: evm-swap tokens --chain %s)", err, s.chain.Name)
	}
	return addr, nil
}

// decimalsOf prefers the registry and falls back to the token contract.
func (s *session) decimalsOf(ctx context.Context, p *pipeline.Pipeline, addr common.Address) (uint8, error) {
	if sym := s.reg.SymbolOf(s.chain.Name, addr); sym != addr.Hex() {
		if t, err := s.reg.Token(s.chain.Name, sym); err == nil {
			return t.Decimals, nil
		}
	}
	return token.New(p, addr).Decimals(ctx)
}

func (s *session) symbolOf(addr common.Address) string {
	return s.reg.SymbolOf(s.chain.Name, addr)
}

func (s *session) spin(suffix string) *spinner.Spinner {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	sp.Suffix = " " + suffix
	if !s.json {
		sp.Start()
	}
	return sp
}

func gweiToWei(gwei float64) *big.Int {
	return decimal.NewFromFloat(gwei).Shift(9).BigInt()
}

func confirmPrompt(question string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", question)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func exitOnError(err error) {
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}
