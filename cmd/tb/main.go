package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/natefinch/atomic"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"taskboard/internal/app"
	"taskboard/internal/config"
	"taskboard/internal/db"
	"taskboard/internal/engine/auth"
	"taskboard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tb",
	Short: "Taskboard CLI",
	Long: `Taskboard keeps project boards: ordered sections holding ordered task cards.
- Workspace: the .taskboard directory holding the SQLite database, plus taskboard.yml.
- Project: owns a board. Its three default sections are created the first time the board is read.
- Section: a column. Default sections can be renamed but never deleted; other sections only when empty.
- Task: a card with a dense order inside its section. Moving a task shifts its neighbours.
- Status history: every status change is appended, never rewritten.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := db.EnsureWorkspace(viper.GetString("workspace")); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (defaults to <workspace>/taskboard.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().StringP("project", "p", "", "project id")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(sectionCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(logCmd())
}

// loadConfig reads --config or the workspace file, then applies environment
// overrides for secrets and the cache URL.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if p := viper.GetString("config"); p != "" {
		data, readErr := os.ReadFile(p)
		if readErr != nil {
			return nil, readErr
		}
		cfg, err = config.FromYAML(data)
	} else {
		cfg, err = config.Load(viper.GetString("workspace"))
	}
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("jwt-secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := viper.GetString("redis-url"); v != "" {
		cfg.Cache.RedisURL = v
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, nil
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := app.ConfigureLogging(cfg); err != nil {
		return err
	}
	a, err := app.Open(ctx, viper.GetString("workspace"), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// cliActor is the principal used for local commands.
func cliActor() auth.Principal {
	return auth.System()
}

func projectID() (string, error) {
	id := strings.TrimSpace(viper.GetString("project"))
	if id == "" {
		return "", errors.New("project id required (--project or TASKBOARD_PROJECT)")
	}
	return id, nil
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage taskboard.yml",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(target); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", target)
			}
			if err := atomic.WriteFile(target, strings.NewReader(config.GenerateDefault())); err != nil {
				return err
			}
			fmt.Println("wrote", target)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfig()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin, legacyHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if !cmd.Flags().Changed("addr") && a.Config.Server.Addr != "" {
					addr = a.Config.Server.Addr
				}
				if !cmd.Flags().Changed("base-path") && a.Config.Server.BasePath != "" {
					basePath = a.Config.Server.BasePath
				}
				authCfg := server.AuthConfig{
					JWTSecret:              a.Config.Auth.JWTSecret,
					DevLogin:               devLogin || a.Config.Auth.DevLogin,
					AllowLegacyActorHeader: legacyHeader || a.Config.Auth.AllowLegacyActorHeader,
				}
				if authCfg.JWTSecret == "" {
					if authCfg.DevLogin {
						return errors.New("dev login needs a JWT secret (auth.jwt_secret or TASKBOARD_JWT_SECRET)")
					}
					log.Warn("no JWT secret configured, only API keys are accepted")
				}
				handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				log.WithFields(log.Fields{"addr": addr, "base_path": basePath, "dev_login": authCfg.DevLogin}).
					Info("serving taskboard API (OpenAPI at <base>/openapi.json, Swagger UI at /docs)")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "enable POST <base>/auth/dev/login")
	cmd.Flags().BoolVar(&legacyHeader, "allow-legacy-actor-header", false, "accept X-Actor-Id without credentials")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJSONOrMessage(v any, msg string) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	fmt.Println(msg)
	return nil
}

func optionalString(cmd *cobra.Command, flag, value string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}
