// Command vulnmirror drives the mirror from the shell: one-shot feed
// ingestion, catalog loads, and the background sync loop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stackrook/vulnmirror/datastore/postgres"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:           "vulnmirror",
	Short:         "Mirror vulnerability intelligence into a local database",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level := zerolog.InfoLevel
		if q, _ := cmd.Flags().GetBool("quiet"); q {
			level = zerolog.WarnLevel
		}
		log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
		cmd.SetContext(log.WithContext(cmd.Context()))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("quiet", false, "only log warnings and errors")
	rootCmd.PersistentFlags().String("database-url", "", "database connection string (env DATABASE_URL)")
	v.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database-url"))
	v.BindEnv("database_url", "DATABASE_URL")
	v.BindEnv("abk_api_token", "ABK_API_TOKEN")
	v.BindEnv("nvd_api_key", "NVD_API_KEY")
	v.BindEnv("sync_interval_hours", "SYNC_INTERVAL_HOURS")

	rootCmd.AddCommand(cveCmd, cweCmd, cpeCmd, kbCmd, syncCmd)
}

// OpenStore connects and migrates.
func openStore(ctx context.Context) (*postgres.Store, error) {
	dsn := v.GetString("database_url")
	if dsn == "" {
		return nil, fmt.Errorf("no database configured; set DATABASE_URL or --database-url")
	}
	return postgres.Init(ctx, dsn)
}

func syncInterval() time.Duration {
	if h := v.GetInt("sync_interval_hours"); h > 0 {
		return time.Duration(h) * time.Hour
	}
	return 6 * time.Hour
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "vulnmirror: %v\n", err)
		os.Exit(1)
	}
}
