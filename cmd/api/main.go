package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/app"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/authpw"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/cache"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/config"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/content"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/email"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/export"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/gitrepo"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/logging"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/media"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/metrics"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/ratelimit"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/search"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/session"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
)

var (
	skipMigrations bool
	startTimeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "VSA Tecnologia site and admin API",
	Long: `Serves the public site API and the admin CMS API.

Configuration comes from defaults, the YAML file named by PORTAL_CONFIG_FILE
and environment variables, in that order.`,
	SilenceUsage: true,
	RunE:         runServe,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
		return nil
	},
}

type configKey struct{}

func configFrom(cmd *cobra.Command) config.Config {
	cfg, _ := cmd.Context().Value(configKey{}).(config.Config)
	return cfg
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&startTimeout, "start-timeout", 30*time.Second, "time allowed for connecting to dependencies")
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on start")
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	rootCmd.AddCommand(serveCmd, migrateCmd, createAdminCmd, reindexCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	createAdminCmd.Flags().String("email", "", "admin e-mail (required)")
	createAdminCmd.Flags().String("name", "Administrador", "display name")
	createAdminCmd.Flags().String("password", "", "initial password; read from PORTAL_ADMIN_PASSWORD when empty")
	_ = createAdminCmd.MarkFlagRequired("email")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

// runtime holds the wired dependencies of one process.
type runtime struct {
	cfg     config.Config
	db      *sql.DB
	pg      *store.PostgresStore
	search  *search.Service
	service *app.Service
	limiter *ratelimit.Limiter
	closers []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			log.WithError(err).Warn("close dependency")
		}
	}
}

func openDatabase(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL, store.PoolOptions{MaxOpenConns: cfg.DBMaxOpenConns})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}

// openRuntime connects every configured backend. Optional integrations that
// are not configured stay unset on the service.
func openRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	ctx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, db: db, pg: store.NewPostgresStore(db)}
	rt.closers = append(rt.closers, db.Close)

	deps := app.Deps{
		Config:   cfg,
		Accounts: authpw.NewService(rt.pg),
		Site:     rt.pg,
	}

	var snapshots content.Snapshots
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Info("using redis for sessions and store snapshots")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		rt.closers = append(rt.closers, redisStore.Close)
		deps.Sessions = redisStore
		snap := cache.NewSnapshots(redisStore.Client(), cfg.SnapshotTTL)
		snap.OnLookup = metrics.ObserveSnapshot
		snapshots = snap
	} else {
		log.Info("using postgres for sessions")
		deps.Sessions = session.NewPostgresStore(rt.pg)
	}
	deps.Stores = app.NewStores(app.PostgresRepositories(rt.pg), rt.pg.Ordering, snapshots)

	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)
		rt.closers = append(rt.closers, func() error {
			meili.Close()
			return nil
		})
	}
	rt.search = search.NewService(meili, search.NewPgFTS(db))
	deps.Search = rt.search

	if cfg.MediaEnabled() {
		uploader, err := media.NewUploader(ctx, media.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MediaPublicURL,
			MaxBytes:  cfg.MaxUploadBytes,
		})
		if err != nil {
			log.WithError(err).Warn("media storage unavailable, uploads disabled")
		} else {
			deps.Media = uploader
		}
	}

	deps.Export = export.NewService(export.NewChromeRenderer(cfg.ChromePath))

	if err := os.MkdirAll(cfg.RevisionsDir, 0o755); err != nil {
		log.WithError(err).Warn("revisions dir unavailable, page history disabled")
	} else {
		deps.Revisions = gitrepo.New(cfg.RevisionsDir)
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if mailer.IsConfigured() {
		deps.Mailer = mailer
	}

	rt.limiter = ratelimit.New(cfg.ContactRatePerMinute, cfg.ContactBurst)
	deps.Limiter = rt.limiter

	rt.service = app.New(deps)
	return rt, nil
}

func errMissingPassword() error {
	return errors.New("password required: pass --password or set PORTAL_ADMIN_PASSWORD")
}
