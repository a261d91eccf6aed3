package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/foxzi/campaigner/internal/api"
	"github.com/foxzi/campaigner/internal/campaign"
	"github.com/foxzi/campaigner/internal/config"
	"github.com/foxzi/campaigner/internal/contacts"
	"github.com/foxzi/campaigner/internal/dispatch"
	"github.com/foxzi/campaigner/internal/dkim"
	"github.com/foxzi/campaigner/internal/intake"
	"github.com/foxzi/campaigner/internal/logging"
	"github.com/foxzi/campaigner/internal/metrics"
	"github.com/foxzi/campaigner/internal/qualify"
	"github.com/foxzi/campaigner/internal/store"
	"github.com/foxzi/campaigner/internal/store/boltstore"
	"github.com/foxzi/campaigner/internal/store/mongostore"
	"github.com/foxzi/campaigner/internal/suppression"
	"github.com/foxzi/campaigner/internal/template"
	"github.com/foxzi/campaigner/internal/transport"
)

// App holds the opened store and builds services from configuration
type App struct {
	config  *config.Config
	store   store.Store
	bolt    *boltstore.Storage
	sandbox *transport.Sandbox
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New opens the configured store and registers metrics
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.New(cfg.Logging)

	a := &App{
		config:  cfg,
		metrics: metrics.New(),
		logger:  logger,
	}
	metrics.SetGlobal(a.metrics)

	switch cfg.Storage.Backend {
	case config.BackendMongo:
		openCtx, cancel := context.WithTimeout(ctx, cfg.Storage.Mongo.Timeout)
		defer cancel()

		st, err := mongostore.Open(openCtx, cfg.Storage.Mongo.URI, cfg.Storage.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open mongo storage: %w", err)
		}
		a.store = st
	default:
		st, err := boltstore.Open(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		a.store = st
		a.bolt = st
	}

	if err := a.store.Init(ctx); err != nil {
		a.store.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	logger.Debug("storage opened", "backend", cfg.Storage.Backend)
	return a, nil
}

// Config returns the loaded configuration
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the process logger
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Store returns the opened document store
func (a *App) Store() store.Store {
	return a.store
}

// Close releases the sandbox and the store
func (a *App) Close() error {
	if a.sandbox != nil && !a.sharesStoreFile() {
		if err := a.sandbox.Close(); err != nil {
			a.logger.Error("sandbox close error", "error", err)
		}
	}
	return a.store.Close()
}

// PushMetrics sends batch metrics to the Pushgateway when one is configured
func (a *App) PushMetrics() {
	if err := a.metrics.Push(a.config.Metrics.PushgatewayURL, a.config.Metrics.Job); err != nil {
		a.logger.Warn("metrics push failed", "error", err)
	}
}

// Contacts builds the contact maintenance service
func (a *App) Contacts() *contacts.Service {
	return contacts.NewService(a.store, a.logger)
}

// Campaigns builds the campaign read service
func (a *App) Campaigns() *campaign.Service {
	return campaign.NewService(a.store, a.logger)
}

// Assembler builds the campaign assembler with the configured qualification policy
func (a *App) Assembler() *campaign.Assembler {
	q := qualify.New(qualify.Policy{
		CustomerExclusion:       qualify.CustomerExclusion(a.config.Qualification.CustomerExclusion),
		RegisterBusinessDomains: a.config.Qualification.RegisterBusinessDomains,
		Cooldown:                a.config.QualificationCooldown(),
	})
	return campaign.NewAssembler(a.store, q, a.logger)
}

// Loader builds an intake loader; S3 paths use the default AWS chain
func (a *App) Loader(ctx context.Context) (*intake.Loader, error) {
	awsCfg, err := a.awsConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &intake.Loader{S3: s3.NewFromConfig(awsCfg)}, nil
}

// Dispatcher builds the dispatcher with the configured transport and message
func (a *App) Dispatcher(ctx context.Context) (*dispatch.Dispatcher, error) {
	engine, err := template.NewEngine(&template.Template{
		Subject: a.config.Message.Subject,
		HTML:    a.config.Message.HTML,
		Text:    a.config.Message.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse message template: %w", err)
	}

	sender, err := a.Sender(ctx)
	if err != nil {
		return nil, err
	}

	opts := dispatch.Options{
		Policy: dispatch.Policy{
			Mode:     dispatch.Mode(a.config.Dispatch.Policy),
			Cooldown: a.config.DispatchCooldown(),
			Scope:    dispatch.Scope(a.config.Dispatch.CooldownScope),
		},
		From:          a.config.Message.From,
		FromName:      a.config.Message.FromName,
		Vars:          a.config.Message.Vars,
		RatePerSecond: a.config.Dispatch.RatePerSecond,
	}
	return dispatch.New(a.store, sender, engine, opts, a.logger), nil
}

// Sender builds the configured transport
func (a *App) Sender(ctx context.Context) (transport.Sender, error) {
	tc := a.config.Transport

	switch tc.Type {
	case config.TransportSendGrid:
		return transport.NewSendGrid(tc.SendGrid.APIKey, tc.SendGrid.BaseURL, tc.SendGrid.Timeout), nil

	case config.TransportSES:
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		return transport.NewSES(sesv2.NewFromConfig(awsCfg)), nil

	case config.TransportSMTP:
		opts := transport.SMTPOptions{
			Addr:     tc.SMTP.Addr,
			Username: tc.SMTP.Username,
			Password: tc.SMTP.Password,
			Helo:     tc.SMTP.Helo,
			Timeout:  tc.SMTP.Timeout,
		}
		if tc.SMTP.DKIM.Enabled {
			signer, err := dkim.NewSignerFromFile(tc.SMTP.DKIM.KeyFile, tc.SMTP.DKIM.Domain, tc.SMTP.DKIM.Selector)
			if err != nil {
				return nil, fmt.Errorf("failed to load DKIM key: %w", err)
			}
			opts.Signer = signer
			a.logger.Info("DKIM signing enabled", "domain", signer.Domain(), "selector", signer.Selector())
		}
		return transport.NewSMTP(opts, a.logger), nil

	case config.TransportSandbox:
		sb, err := a.Sandbox()
		if err != nil {
			return nil, err
		}
		sb.SetErrorSimulation(tc.Sandbox.ErrorRate)
		a.logger.Warn("sandbox transport active, messages are captured locally", "path", tc.Sandbox.Path)
		return sb, nil
	}

	return nil, fmt.Errorf("unknown transport type: %s", tc.Type)
}

// Sandbox opens the capture store. It shares the bolt file when both
// paths point at it.
func (a *App) Sandbox() (*transport.Sandbox, error) {
	if a.sandbox != nil {
		return a.sandbox, nil
	}

	var (
		sb  *transport.Sandbox
		err error
	)
	if a.sharesStoreFile() {
		sb, err = transport.NewSandbox(a.bolt.DB(), a.logger)
	} else {
		sb, err = transport.OpenSandbox(a.config.Transport.Sandbox.Path, a.logger)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open sandbox: %w", err)
	}

	a.sandbox = sb
	return sb, nil
}

func (a *App) sharesStoreFile() bool {
	return a.bolt != nil && filepath.Clean(a.config.Transport.Sandbox.Path) == filepath.Clean(a.config.Storage.Path)
}

// Syncer builds the suppression syncer for the configured source
func (a *App) Syncer(ctx context.Context) (*suppression.Syncer, error) {
	var source suppression.Source

	switch a.config.Suppression.Source {
	case config.TransportSES:
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		source = suppression.NewSESSource(sesv2.NewFromConfig(awsCfg))
	default:
		sg := a.config.Transport.SendGrid
		if sg.APIKey == "" {
			return nil, errors.New("transport.sendgrid.api_key (or SENDGRID_API_KEY) is required for suppression sync")
		}
		source = suppression.NewSendGridSource(sg.APIKey, sg.BaseURL, sg.Timeout)
	}

	return suppression.NewSyncer(source, a.store, a.logger), nil
}

// awsConfig loads the default AWS chain, with static keys when configured
func (a *App) awsConfig(ctx context.Context) (aws.Config, error) {
	ses := a.config.Transport.SES

	var opts []func(*awsconfig.LoadOptions) error
	if ses.Region != "" {
		opts = append(opts, awsconfig.WithRegion(ses.Region))
	}
	if ses.AccessKey != "" && ses.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ses.AccessKey, ses.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// Serve runs the read-only API and, when enabled, the metrics endpoint
// until ctx is canceled or a signal arrives
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var sandbox api.Sandbox
	if a.config.Transport.Type == config.TransportSandbox {
		sb, err := a.Sandbox()
		if err != nil {
			return err
		}
		sandbox = sb
	}

	apiServer := api.NewServer(a.Campaigns(), a.store, sandbox, a.config.API, a.logger)

	var (
		metricsServer *metrics.Server
		collector     *metrics.Collector
	)
	if a.config.Metrics.Enabled {
		metricsServer = metrics.NewServer(a.metrics, a.config.Metrics.ListenAddr, a.config.Metrics.Path, a.logger)
		collector = metrics.NewCollector(a.metrics, a.store, 0, a.logger)
		collector.Start(ctx)
	}

	a.logger.Info("starting campaigner",
		"api_addr", a.config.API.ListenAddr,
		"metrics", a.config.Metrics.Enabled,
		"storage", a.config.Storage.Backend,
	)

	errCh := make(chan error, 2)

	go func() {
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("server error", "error", runErr)
		cancel()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if collector != nil {
		collector.Stop()
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown error", "error", err)
		}
	}

	a.logger.Info("shutdown complete")
	return runErr
}
