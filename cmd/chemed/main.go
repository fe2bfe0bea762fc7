// Command chemed runs the Chem-Ed Genius tutoring gateway.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xcro3dile/chemed-go/internal/config"
	"github.com/0xcro3dile/chemed-go/internal/logging"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	// Set by PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chemed",
	Short: "Chem-Ed Genius - chemistry tutoring gateway",
	Long: `chemed answers chemistry questions through a language model, balances
equations locally before the model sees them, grades free-text answers by
embedding similarity and looks up 3D structures on PubChem.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "chemed.yaml", "Config file (missing file uses defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	seedCmd.Flags().StringVar(&exportPath, "export", "", "Also write the seed embeddings to this JSON file")
	gradeCmd.Flags().StringVar(&gradeQuestion, "question", "", "Question text (informational)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(gradeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
