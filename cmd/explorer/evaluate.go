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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorse-io/explorer/base/log"
	"github.com/gorse-io/explorer/config"
	"github.com/gorse-io/explorer/logics"
	"github.com/gorse-io/explorer/storage/ratings"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var eligibleCommand = &cobra.Command{
	Use:   "eligible",
	Short: "List users eligible for offline evaluation.",
	Run: func(cmd *cobra.Command, args []string) {
		engine, cfg := loadEngine(cmd)
		list := engine.EligibleUsers(intFlag(cmd.Flags(), "min-ratings", cfg.Evaluation.MinRatings))
		if printJSON(cmd, list) {
			return
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header([]string{"user", "ratings"})
		for _, user := range list.Users {
			appendRow(table, strconv.Itoa(user.UserId), strconv.Itoa(user.RatingCount))
		}
		render(table)
		fmt.Printf("%d users with at least %d ratings\n", list.Total, list.MinRatings)
	},
}

var holdoutCommand = &cobra.Command{
	Use:   "holdout",
	Short: "Split ratings of eligible users into train and test.",
	Run: func(cmd *cobra.Command, args []string) {
		engine, cfg := loadEngine(cmd)
		opts := holdoutOptions(cmd.Flags(), cfg)
		validateOptions(&opts)
		report := engine.HoldoutReport(opts)
		if printJSON(cmd, report) {
			return
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header([]string{"user", "ratings", "train", "test", "test items", "error"})
		for _, entry := range report.Users {
			appendRow(table,
				strconv.Itoa(entry.UserId),
				strconv.Itoa(entry.RatingCount),
				strconv.Itoa(entry.TrainCount),
				strconv.Itoa(entry.TestCount),
				joinInts(entry.TestItems),
				entry.Error)
		}
		render(table)
	},
}

var evaluateCommand = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate accuracy@K of recommendations on held out ratings.",
	Run: func(cmd *cobra.Command, args []string) {
		engine, cfg := loadEngine(cmd)
		opts := logics.AccuracyOptions{
			HoldoutOptions:     holdoutOptions(cmd.Flags(), cfg),
			TopK:               intFlag(cmd.Flags(), "k", cfg.Evaluation.TopK),
			NumNeighbors:       intFlag(cmd.Flags(), "neighbors", cfg.Evaluation.NumNeighbors),
			RelevanceThreshold: floatFlag(cmd.Flags(), "threshold", cfg.Evaluation.RelevanceThreshold),
			NumJobs:            intFlag(cmd.Flags(), "jobs", cfg.Evaluation.NumJobs),
		}
		validateOptions(&opts)
		jsonOutput, _ := cmd.Flags().GetBool("json")
		var progress func(done, total int)
		if !jsonOutput {
			var bar *progressbar.ProgressBar
			progress = func(done, total int) {
				if bar == nil {
					bar = progressbar.Default(int64(total), "Evaluating users")
				}
				_ = bar.Set(done)
			}
		}
		report := engine.AccuracyReport(opts, progress)
		if printJSON(cmd, report) {
			return
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header([]string{"user", "accuracy", "hits", "recommended", "relevant", "error"})
		for _, entry := range report.Users {
			accuracy := "-"
			if entry.Accuracy != nil {
				accuracy = strconv.FormatFloat(*entry.Accuracy, 'f', 3, 64)
			}
			appendRow(table,
				strconv.Itoa(entry.UserId),
				accuracy,
				strconv.Itoa(entry.Hits),
				strings.Join(entry.RecommendedNames, ", "),
				strings.Join(entry.RelevantNames, ", "),
				entry.Error)
		}
		render(table)
		if report.MeanAccuracy != nil {
			fmt.Printf("mean accuracy@%d over %d users: %.4f\n", opts.TopK, report.NumEvaluated, *report.MeanAccuracy)
		}
	},
}

func loadEngine(cmd *cobra.Command) (*logics.Engine, *config.Config) {
	cfg := loadConfig(cmd)
	catalog, persisted := loadData(cfg)
	return logics.NewEngine(cfg, catalog, ratings.NewStore(persisted)), cfg
}

func intFlag(flags *pflag.FlagSet, name string, fallback int) int {
	if !flags.Changed(name) {
		return fallback
	}
	value, _ := flags.GetInt(name)
	return value
}

func floatFlag(flags *pflag.FlagSet, name string, fallback float64) float64 {
	if !flags.Changed(name) {
		return fallback
	}
	value, _ := flags.GetFloat64(name)
	return value
}

func holdoutOptions(flags *pflag.FlagSet, cfg *config.Config) logics.HoldoutOptions {
	seed := cfg.Evaluation.BaseSeed
	if flags.Changed("seed") {
		seed, _ = flags.GetInt64("seed")
	}
	return logics.HoldoutOptions{
		MinRatings:      intFlag(flags, "min-ratings", cfg.Evaluation.MinRatings),
		HoldoutFraction: floatFlag(flags, "holdout", cfg.Evaluation.HoldoutFraction),
		MinTestSize:     intFlag(flags, "min-test-size", cfg.Evaluation.MinTestSize),
		BaseSeed:        seed,
	}
}

func validateOptions(opts any) {
	if err := validator.New().Struct(opts); err != nil {
		log.Logger().Fatal("invalid evaluation options", zap.Error(err))
	}
}

func printJSON(cmd *cobra.Command, v any) bool {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if !jsonOutput {
		return false
	}
	if err := writeJSON(os.Stdout, v); err != nil {
		log.Logger().Fatal("failed to write json", zap.Error(err))
	}
	return true
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return errors.Trace(encoder.Encode(v))
}

func appendRow(table *tablewriter.Table, row ...string) {
	if err := table.Append(row); err != nil {
		log.Logger().Fatal("failed to append row", zap.Error(err))
	}
}

func render(table *tablewriter.Table) {
	if err := table.Render(); err != nil {
		log.Logger().Fatal("failed to render table", zap.Error(err))
	}
}

func joinInts(values []int) string {
	var builder strings.Builder
	for i, v := range values {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(strconv.Itoa(v))
	}
	return builder.String()
}

func init() {
	for _, command := range []*cobra.Command{eligibleCommand, holdoutCommand, evaluateCommand} {
		command.Flags().Int("min-ratings", 3, "minimum number of persisted ratings")
		command.Flags().Bool("json", false, "print results as JSON")
		rootCommand.AddCommand(command)
	}
	for _, command := range []*cobra.Command{holdoutCommand, evaluateCommand} {
		command.Flags().Float64("holdout", 0.4, "fraction of ratings held out")
		command.Flags().Int("min-test-size", 1, "minimum number of held out ratings")
		command.Flags().Int64("seed", 42, "base random seed")
	}
	evaluateCommand.Flags().Int("k", 5, "number of recommended items")
	evaluateCommand.Flags().Int("neighbors", 3, "number of neighbors")
	evaluateCommand.Flags().Float64("threshold", 3.0, "minimum score of relevant items")
	evaluateCommand.Flags().IntP("jobs", "j", 1, "number of users evaluated concurrently")
}
