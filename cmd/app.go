package cmd

import (
	"net/http"
	"os"

	"github.com/notedapp/noted-sync/global"
	internalApp "github.com/notedapp/noted-sync/internal/app"
	"github.com/notedapp/noted-sync/internal/authflow"
	"github.com/notedapp/noted-sync/internal/dao"
	"github.com/notedapp/noted-sync/internal/domain"
	"github.com/notedapp/noted-sync/internal/gateway"
	"github.com/notedapp/noted-sync/internal/service"
	"github.com/notedapp/noted-sync/pkg/fileurl"
	"github.com/notedapp/noted-sync/pkg/logger"

	"go.uber.org/zap"
)

// appContext bundles everything a command needs after bootstrap.
type appContext struct {
	cfg    *internalApp.AppConfig
	logger *zap.Logger
	creds  domain.CredentialRepository

	authService service.AuthService
	noteService service.NoteService
	syncService service.SyncService
}

// resolveConfigPath finds the config file, writing the default one on first
// run so the user only has to fill in the client id.
func resolveConfigPath() (string, error) {
	if configFlag != "" {
		return configFlag, nil
	}
	for _, p := range []string{"config/config-dev.yaml", "config.yaml", "config/config.yaml"} {
		if fileurl.IsExist(p) {
			return p, nil
		}
	}
	path := "config/config.yaml"
	bootstrapLogger.Warn("config file not found, creating default config", zap.String("path", path))
	if err := fileurl.CreatePath(path, os.ModePerm); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(configDefault), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// newApp loads config, opens the database and wires the services.
func newApp() (*appContext, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, _, err := internalApp.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	global.Config = cfg

	lg, err := logger.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	global.Logger = lg

	db, err := dao.NewDBEngine(cfg.Database)
	if err != nil {
		return nil, err
	}
	global.DBEngine = db

	d := dao.New(db, lg)
	creds := dao.NewCredentialRepository(d)
	mappings := dao.NewMappingRepository(d)
	localStore := dao.NewNoteRepository(d)
	editor := dao.NewNoteEditor(d)

	httpClient := &http.Client{Timeout: cfg.GetRequestTimeout()}

	authenticator := authflow.New(authflow.Options{
		Authority:  cfg.Auth.Authority,
		ClientID:   cfg.Auth.ClientID,
		Scopes:     cfg.Auth.Scopes,
		Creds:      creds,
		HTTPClient: httpClient,
		Logger:     lg,
	})

	gateways := func(account string) domain.NoteGateway {
		tokens := gateway.NewTokenSource(gateway.TokenSourceOptions{
			Account:    account,
			TokenURL:   authenticator.TokenURL(),
			ClientID:   cfg.Auth.ClientID,
			Scopes:     cfg.Auth.Scopes,
			Creds:      creds,
			HTTPClient: httpClient,
			Logger:     lg,
		})
		return gateway.NewClient(gateway.Options{
			BaseURL:       cfg.Remote.BaseURL,
			Tokens:        tokens,
			HTTPClient:    httpClient,
			Logger:        lg,
			MaxRetries:    cfg.Remote.MaxRetries,
			RatePerSecond: cfg.Remote.RatePerSecond,
		})
	}

	syncService := service.NewSyncService(localStore, mappings, gateways, service.SyncOptions{
		SkewTolerance: cfg.GetSkewTolerance(),
		RunTimeout:    cfg.GetRunTimeout(),
	}, lg)

	return &appContext{
		cfg:         cfg,
		logger:      lg,
		creds:       creds,
		authService: service.NewAuthService(authenticator, creds, mappings, lg),
		noteService: service.NewNoteService(editor),
		syncService: syncService,
	}, nil
}

func (a *appContext) close() {
	_ = a.logger.Sync()
}
