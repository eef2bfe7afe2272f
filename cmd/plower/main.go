package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"plower/internal/app"
	"plower/internal/config"
	"plower/internal/display"
	"plower/internal/domain"
	"plower/internal/service"
	"plower/internal/tui"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "plower",
	Short: "plower answers questions from your own documents with a local or cloud model",
	Long: `plower keeps a collection of text documents, ranks them against each
question and sends the best matches to Ollama or Gemini. Run without a
subcommand to open the interactive terminal UI.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to YAML config file (default ./config.yaml, then ~/.config/plower/config.yaml)")
	rootCmd.AddCommand(askCmd, addCmd, ocrCmd, docsCmd, resetCmd, keyCmd, serveCmd)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		display.Notice(os.Stderr, display.Failure, service.Describe(err))
		os.Exit(1)
	}
}

func loadConfig() (*config.AppConfig, error) {
	if cfgFile == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(cfgFile)
}

func openApp(ctx context.Context, interactor domain.Interactor) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, interactor)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	interactor := tui.NewInteractor()
	a, err := openApp(ctx, interactor)
	if err != nil {
		return err
	}
	defer a.Close()

	m := tui.New(ctx, a.Service, interactor, tui.Options{
		Model:       a.Config.Models.Default,
		CloudModels: a.Config.Models.Cloud,
	})
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
