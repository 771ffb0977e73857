package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/statuswatch/statuswatch/internal/assistant"
	"github.com/statuswatch/statuswatch/internal/catalog"
	"github.com/statuswatch/statuswatch/internal/config"
	"github.com/statuswatch/statuswatch/internal/gateway"
	"github.com/statuswatch/statuswatch/internal/history"
	"github.com/statuswatch/statuswatch/internal/metrics"
	"github.com/statuswatch/statuswatch/internal/server"
	"github.com/statuswatch/statuswatch/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// Application represents the main application
type Application struct {
	config  *config.Config
	pool    *gateway.Pool
	gateway *gateway.Gateway
	catalog *catalog.Catalog
	history *history.Store
	toolset *assistant.Toolset
	metrics *metrics.Manager
	server  *server.HTTPServer
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	// Initialize logger
	logCfg := cfg.Logging
	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize components
	if err := app.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	logger := utils.GetLogger()
	logger.Info("Initializing application components")

	// Metrics first so every component can report into it
	app.metrics = metrics.NewManager()

	// Connection pool: the only shared resource, initialized once per process
	app.pool = gateway.NewPool(&gateway.PoolConfig{
		ConnectionString:   app.config.Database.ConnectionString,
		MaxConnections:     app.config.Database.MaxConnections,
		MaxIdleTime:        app.config.Database.MaxIdleTime,
		AcquisitionTimeout: app.config.Database.AcquisitionTimeout,
	})
	if err := app.pool.Connect(); err != nil {
		return fmt.Errorf("failed to connect to tracker database: %w", err)
	}

	// Query history store
	if app.config.History.Enabled {
		if err := os.MkdirAll(filepath.Dir(app.config.History.Path), 0o755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
		app.history = history.NewStore(&history.StoreConfig{Path: app.config.History.Path})
		if err := app.history.Connect(); err != nil {
			return fmt.Errorf("failed to open query history store: %w", err)
		}
	}

	// Gateway and catalog over the shared pool
	app.gateway = gateway.NewGateway(app.pool, &gateway.Config{
		DefaultLimit:     app.config.Gateway.DefaultLimit,
		MaxLimit:         app.config.Gateway.MaxLimit,
		DefaultTimeoutMs: app.config.Gateway.DefaultTimeoutMs,
		MinTimeoutMs:     app.config.Gateway.MinTimeoutMs,
		MaxTimeoutMs:     app.config.Gateway.MaxTimeoutMs,
	}, app.metrics, app.history)
	app.catalog = catalog.NewCatalog(app.pool)

	// Toolset consumed by the orchestration collaborator
	app.toolset = assistant.NewToolset(app.gateway, app.catalog)

	// HTTP server
	srv, err := server.NewHTTPServer(&server.ServerConfig{
		Port:          app.config.Server.Port,
		Host:          app.config.Server.Host,
		ReadTimeout:   app.config.Server.ReadTimeout,
		WriteTimeout:  app.config.Server.WriteTimeout,
		EnableMetrics: app.config.Server.EnableMetrics,
		EnableHealth:  app.config.Server.EnableHealth,
	}, app.gateway, app.catalog, app.history, app.pool, app.metrics)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	app.server = srv

	logger.Info("All components initialized successfully")
	return nil
}

// Start starts the application
func (app *Application) Start() error {
	logger := utils.GetLogger()
	logger.WithField("version", AppVersion).Info("Starting statuswatch assistant")

	if err := app.server.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	logger.WithField("address", fmt.Sprintf("%s:%d", app.config.Server.Host, app.config.Server.Port)).
		Info("Statuswatch assistant started successfully")

	return nil
}

// Stop stops the application gracefully
func (app *Application) Stop() error {
	logger := utils.GetLogger()
	logger.Info("Stopping statuswatch assistant")

	app.cancel()

	if app.server != nil {
		if err := app.server.Stop(); err != nil {
			logger.WithError(err).Error("Failed to stop HTTP server")
		}
	}

	if app.history != nil {
		if err := app.history.Close(); err != nil {
			logger.WithError(err).Error("Failed to close query history store")
		}
	}

	if app.pool != nil {
		if err := app.pool.Close(); err != nil {
			logger.WithError(err).Error("Failed to close connection pool")
		}
	}

	logger.Info("Statuswatch assistant stopped")
	return nil
}

// CLI Commands

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "assistant",
	Short:   "Conversational query assistant for project tracking data",
	Long:    `A read-only query service that lets a conversational agent answer questions about project-tracking change history through a safe SQL gateway.`,
	Version: AppVersion,
	RunE:    runAssistant,
}

// runAssistant is the main command to run the assistant service
func runAssistant(cmd *cobra.Command, args []string) error {
	// Load configuration
	configPath := viper.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// An explicit --log-level flag wins over the config file
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = viper.GetString("log-level")
	}

	// Create application
	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Set up signal handling for graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	// Start application
	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	// Wait for shutdown signal
	<-signalChan
	fmt.Println("\nReceived shutdown signal, stopping application...")

	// Stop application
	if err := app.Stop(); err != nil {
		return fmt.Errorf("failed to stop application: %w", err)
	}

	return nil
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("statuswatch assistant %s\n", AppVersion)
	},
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

// validateConfigCmd validates the configuration
var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := viper.GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Environment: %s\n", cfg.App.Environment)
		fmt.Printf("Server: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("History enabled: %t\n", cfg.History.Enabled)

		return nil
	},
}

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connectivity and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := viper.GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		fmt.Println("Testing statuswatch assistant connectivity...")

		// Test tracker database
		fmt.Println("Testing tracker database connection...")
		pool := gateway.NewPool(&gateway.PoolConfig{
			ConnectionString:   cfg.Database.ConnectionString,
			MaxConnections:     cfg.Database.MaxConnections,
			MaxIdleTime:        cfg.Database.MaxIdleTime,
			AcquisitionTimeout: cfg.Database.AcquisitionTimeout,
		})
		if err := pool.Connect(); err != nil {
			return fmt.Errorf("failed to connect to tracker database: %w", err)
		}
		defer pool.Close()
		fmt.Println("✓ Tracker database connection successful")

		// Test schema introspection
		fmt.Println("Testing schema introspection...")
		cat := catalog.NewCatalog(pool)
		bundle, err := cat.Schema(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to introspect schema: %w", err)
		}
		fmt.Printf("✓ Schema introspection successful: %d columns, %d indexes\n",
			len(bundle.Columns), len(bundle.Indexes))

		fmt.Println("\nAll connectivity tests passed! ✓")
		return nil
	},
}

// init initializes the CLI commands
func init() {
	// Add persistent flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(testCmd)
	configCmd.AddCommand(validateConfigCmd)
}

// main is the entry point
func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
