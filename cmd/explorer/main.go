// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorse-io/explorer/base/log"
	"github.com/gorse-io/explorer/cmd/version"
	"github.com/gorse-io/explorer/config"
	"github.com/gorse-io/explorer/dataset"
	"github.com/gorse-io/explorer/logics"
	"github.com/gorse-io/explorer/server"
	"github.com/gorse-io/explorer/storage/ratinglog"
	"github.com/gorse-io/explorer/storage/ratings"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "explorer",
	Short: "Recommend local experiences with user-based collaborative filtering.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
		otel.SetErrorHandler(log.GetErrorHandler())
	},
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		_ = cmd.Help()
	},
}

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Serve recommendations over HTTP.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		catalog, persisted := loadData(cfg)
		store := ratings.NewStore(persisted)

		// open rating log
		var flusher *ratinglog.Flusher
		var database ratinglog.Database
		if cfg.RatingLog.Path != "" {
			var err error
			database, err = ratinglog.Open(cfg.RatingLog.Path, cfg.RatingLog.TablePrefix)
			if err != nil {
				log.Logger().Fatal("failed to open rating log", zap.Error(err),
					zap.String("path", log.RedactDBURL(cfg.RatingLog.Path)))
			}
			if err = database.Init(); err != nil {
				log.Logger().Fatal("failed to init rating log", zap.Error(err))
			}
			if cfg.RatingLog.Restore {
				simulated, err := database.Load(context.Background())
				if err != nil {
					log.Logger().Fatal("failed to restore simulated ratings", zap.Error(err))
				}
				store.Restore(simulated)
				log.Logger().Info("restore simulated ratings", zap.Int("n_ratings", len(simulated)))
			}
			flusher = ratinglog.NewFlusher(database, cfg.RatingLog.FlushInterval, cfg.RatingLog.MaxRetries)
			store.SetSink(flusher)
			flusher.Start()
			log.Logger().Info("open rating log", zap.String("path", log.RedactDBURL(cfg.RatingLog.Path)))
		}

		engine := logics.NewEngine(cfg, catalog, store)
		s := server.NewServer(cfg, engine)

		// stop server
		done := make(chan struct{})
		go func() {
			sigint := make(chan os.Signal, 1)
			signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
			<-sigint
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := s.Shutdown(ctx); err != nil {
				log.Logger().Error("failed to shutdown http server", zap.Error(err))
			}
			if flusher != nil {
				if err := flusher.Close(ctx); err != nil {
					log.Logger().Error("failed to flush simulated ratings", zap.Error(err),
						zap.Int("n_pending", flusher.Pending()))
				}
				if err := database.Close(); err != nil {
					log.Logger().Error("failed to close rating log", zap.Error(err))
				}
			}
			close(done)
		}()
		if err := s.Serve(); err != nil {
			log.Logger().Fatal("failed to start http server", zap.Error(err))
		}
		<-done
		log.Logger().Info("stop explorer successfully")
	},
}

func loadConfig(cmd *cobra.Command) *config.Config {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}
	return cfg
}

func loadData(cfg *config.Config) (*dataset.Catalog, []dataset.Rating) {
	catalog, err := dataset.LoadCatalogFile(cfg.Data.CatalogPath, cfg.Data.Separator)
	if err != nil {
		log.Logger().Fatal("failed to load catalog", zap.Error(err),
			zap.String("path", cfg.Data.CatalogPath))
	}
	persisted, err := dataset.LoadRatingsFile(cfg.Data.RatingsPath, cfg.Data.Separator)
	if err != nil {
		log.Logger().Fatal("failed to load ratings", zap.Error(err),
			zap.String("path", cfg.Data.RatingsPath))
	}
	log.Logger().Info("load data",
		zap.Int("n_items", catalog.Len()),
		zap.Int("n_ratings", len(persisted)))
	return catalog, persisted
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.Flags().BoolP("version", "v", false, "explorer version")
	rootCommand.AddCommand(serveCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(errors.Trace(err)))
	}
	log.CloseLogger()
}
