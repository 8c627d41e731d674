package server

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zkleaderboard/verifier/attestation"
	"github.com/zkleaderboard/verifier/ledger"
	"github.com/zkleaderboard/verifier/logging"
	"github.com/zkleaderboard/verifier/orchestrator"
	"github.com/zkleaderboard/verifier/proofservice"
	"github.com/zkleaderboard/verifier/storage"
)

type serverOptions struct {
	backend ledger.Backend
	key     *ecdsa.PrivateKey
	dialer  attestation.Dialer
}

type Option func(*serverOptions)

// WithLedgerBackend settles through the backend instead of dialing the configured node.
func WithLedgerBackend(backend ledger.Backend, key *ecdsa.PrivateKey) Option {
	return func(o *serverOptions) {
		o.backend = backend
		o.key = key
	}
}

// WithAttestationDialer opens attestation sessions with the dialer instead of the configured gateway.
func WithAttestationDialer(dialer attestation.Dialer) Option {
	return func(o *serverOptions) {
		o.dialer = dialer
	}
}

type Server struct {
	cfg      Config
	store    *storage.Store
	eth      *ethclient.Client
	handler  *Handler
	limiter  *rateLimiter
	listener net.Listener
}

func New(ctx context.Context, cfg Config, opts ...Option) (*Server, error) {
	options := &serverOptions{}
	for _, opt := range opts {
		opt(options)
	}
	logger := logging.FromContext(ctx)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Resolve the REST listener
	addr, err := net.ResolveTCPAddr("tcp", cfg.RawRESTListener)
	if err != nil {
		return nil, err
	}
	listener, err := net.Listen(addr.Network(), addr.String())
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %v", err)
	}

	s := &Server{cfg: cfg, listener: listener}
	if err := s.setup(ctx, options); err != nil {
		return nil, errors.Join(err, s.Close())
	}
	logger.Info("verifier configured",
		zap.Object("poll", cfg.Poll),
		zap.Object("proof-service", cfg.ProofService),
		zap.Object("attestation", cfg.Attestation),
		zap.Object("ledger", cfg.Ledger),
	)
	return s, nil
}

func (s *Server) setup(ctx context.Context, options *serverOptions) error {
	cfg := s.cfg
	logger := logging.FromContext(ctx)

	store, err := storage.Open(cfg.DbDir)
	if err != nil {
		return err
	}
	s.store = store

	httpClient, err := proofservice.NewHTTPClient(cfg.ProofService.URL,
		proofservice.WithRetries(cfg.ProofService.Retries),
		proofservice.WithRequestTimeout(cfg.ProofService.RequestTimeout),
		proofservice.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("creating proof service client: %w", err)
	}
	proofs, err := proofservice.NewCaching(cfg.ProofService.CacheSize, httpClient)
	if err != nil {
		return fmt.Errorf("creating proof status cache: %w", err)
	}

	dialer := options.dialer
	if dialer == nil {
		dialer = attestation.NewDialer(cfg.Attestation.GatewayURL, os.Getenv(attestation.APIKeyEnvVar))
	}
	attestor := attestation.NewClient(dialer, cfg.Attestation)

	backend, key := options.backend, options.key
	if backend == nil {
		s.eth, err = ethclient.DialContext(ctx, cfg.Ledger.RPCURL)
		if err != nil {
			return fmt.Errorf("connecting to ledger node %s: %w", cfg.Ledger.RPCURL, err)
		}
		backend = s.eth
	}
	if key == nil {
		hexKey := os.Getenv(ledger.KeyEnvVar)
		if hexKey == "" {
			return fmt.Errorf("settlement key not set, export it as %s", ledger.KeyEnvVar)
		}
		if key, err = ledger.LoadKey(hexKey); err != nil {
			return err
		}
	}
	settler, err := ledger.NewClient(ctx, backend, key, cfg.Ledger)
	if err != nil {
		return fmt.Errorf("creating ledger client: %w", err)
	}
	logger.Info("settling from account", zap.Stringer("account", settler.Account()))

	pipelineOpts := []orchestrator.Option{
		orchestrator.WithTransitionHook(func(runID string, from, to orchestrator.Stage) {
			logger.Debug("run stage", zap.String("run_id", runID), zap.Stringer("from", from), zap.Stringer("to", to))
		}),
	}
	if cfg.DisableSettlementGuard {
		logger.Warn("settlement guard disabled, batches may be settled more than once")
	} else {
		pipelineOpts = append(pipelineOpts, orchestrator.WithSettlementGuard(s.store))
	}
	pipeline := orchestrator.New(proofs, proofservice.NewPoller(proofs, cfg.Poll), attestor, settler, pipelineOpts...)

	s.handler = NewHandler(pipeline, s.store, settler, cfg.RunTimeout)
	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	return nil
}

// Close waits for in-flight runs, bounded by the run timeout, before closing the store.
func (s *Server) Close() error {
	var errs []error
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, err)
	}
	if s.handler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout+s.cfg.ShutdownTimeout)
		errs = append(errs, s.handler.Drain(ctx))
		cancel()
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.eth != nil {
		s.eth.Close()
	}
	return errors.Join(errs...)
}

// Addr returns the address the REST server is listening on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// newRouter builds the HTTP routes of the verifier.
func newRouter(logger *zap.Logger, h *Handler, limiter *rateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	verify := []gin.HandlerFunc{h.Verify}
	if limiter != nil {
		verify = append([]gin.HandlerFunc{limiter.middleware()}, verify...)
	}
	api.POST("/verify", verify...)
	api.POST("/verify_contract", h.VerifyContract)
	api.GET("/runs/:id", h.GetRun)
	return router
}

// Start serves the REST API until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	serverGroup, ctx := errgroup.WithContext(ctx)

	logger := logging.FromContext(ctx)

	if s.limiter != nil {
		serverGroup.Go(func() error {
			return s.limiter.cleanup(ctx, time.Minute)
		})
	}

	server := &http.Server{
		Handler:           newRouter(logger, s.handler, s.limiter),
		ReadHeaderTimeout: time.Second * 5,
	}
	serverGroup.Go(func() error {
		logger.Sugar().Infof("REST server listening on %s", s.listener.Addr())
		err := server.Serve(s.listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	// Wait for the server to shut down gracefully
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("failed to shutdown server: %s", err)
	}
	// Runs outlive their connections, settle them before the store closes.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancelDrain()
	if err := s.handler.Drain(drainCtx); err != nil {
		logger.Error("in-flight runs did not finish", zap.Error(err))
	}
	if err := serverGroup.Wait(); err != nil {
		logger.Sugar().Errorf("error when waiting to shutdown servers: %s", err)
		return err
	}
	return nil
}
