package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// AppProvider is the surface the command layer drives.
type AppProvider interface {
	Run(args []string) error
	Clean()
}

// App wires the configuration, logging, flag store and core services
// behind the user-facing commands. Everything is constructed once at
// startup and injected; there is no hidden mutable global state.
type App struct {
	logger     *zap.Logger
	config     *Config
	catalog    CatalogProvider
	account    *AccountClient
	library    LibraryProvider
	downloader *Downloader
	ids        UIDHandler
	cleanups   []func()
}

// NewApp provides an instance of App.
func NewApp() (*App, error) {
	config, err := LoadAndInitConfigs(GitCommit, GitTag, BuildTime)
	if err != nil {
		return nil, fmt.Errorf("failed to setup app configuration: %s", err)
	}

	// Ensure the logs folder exists and Setup the logging module.
	err = os.MkdirAll(filepath.Dir(config.LogFile), 0o700)
	if err != nil {
		return nil, fmt.Errorf("failed to create logging folder: %s", err)
	}
	logFile, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create logging file: %s", err)
	}
	closer := func() {
		if cerr := logFile.Close(); cerr != nil {
			fmt.Println("error during closing of log file: ", cerr)
		}
	}
	logger, flusher := SetupLogging(config, logFile)

	cleanups := []func(){flusher, closer}

	// Setup the flag store on the configured backend. Both backends
	// implement the same FlagStorage interface.
	var flagStorage FlagStorage
	switch config.Library.Backend {
	case RedisBackend:
		redisClient, rerr := GetRedisClient(config)
		if rerr != nil {
			return nil, fmt.Errorf("failed to connect to redis server: %s", rerr)
		}
		cleanups = append(cleanups, func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.Error("failed to close redis client", zap.Error(cerr))
			}
		})
		flagStorage = NewRedisFlagStorage(logger, redisClient)
	default:
		boltClient, berr := GetBoltDBClient(config)
		if berr != nil {
			return nil, fmt.Errorf("failed to open boltdb store: %s", berr)
		}
		cleanups = append(cleanups, func() {
			if cerr := boltClient.Close(); cerr != nil {
				logger.Error("failed to close boltdb store", zap.Error(cerr))
			}
		})
		flagStorage = NewBoltFlagStorage(logger, &config.BoltDB, boltClient)
	}

	clock := NewClock(config.IsProduction)
	ids := NewIDsHandler()
	remoteClient := &http.Client{Timeout: config.Remote.RequestTimeout}

	// Setup the remote clients and core services.
	catalog := NewCatalogClient(logger, config, remoteClient)
	account := NewAccountClient(logger, config, remoteClient, flagStorage)
	library := NewLibraryService(logger, config, flagStorage)
	downloader := NewDownloader(
		logger,
		config,
		&http.Client{Timeout: config.Download.FetchTimeout},
		NewOSDeviceStorage(),
		NewOSPermissionGuard(config.Download.AskPermission),
		NewPlatformFileOpener(),
		clock,
		ids,
	)

	return &App{
		logger:     logger,
		config:     config,
		catalog:    catalog,
		account:    account,
		library:    library,
		downloader: downloader,
		ids:        ids,
		cleanups:   cleanups,
	}, nil
}

// Run dispatches one user action through the command tree then flushes
// all registered cleanups.
func (app *App) Run(args []string) error {
	defer app.Clean()
	root := app.SetupCommands()
	root.SetArgs(args)
	return root.Execute()
}

// Clean calls all registered cleanups functions in reverse order.
func (app *App) Clean() {
	for i := len(app.cleanups) - 1; i >= 0; i-- {
		app.cleanups[i]()
	}
}
