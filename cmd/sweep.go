/*
Copyright 2025 Kolo Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/kolofinance/kolo/model"
)

// sweepCommands runs one sweep pass from the command line. Useful for
// catch-up after an outage and for cron setups that prefer a process per
// tick over long-lived workers.
func sweepCommands(k *koloInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "run a scheduling sweep once",
	}

	run := func(name string, fn func(ctx context.Context) (model.SweepSummary, error)) func(cmd *cobra.Command, args []string) {
		return func(cmd *cobra.Command, args []string) {
			summary, err := fn(context.Background())
			if err != nil {
				log.Fatalf("%s sweep failed: %v", name, err)
			}
			fmt.Printf("%s sweep: processed=%d skipped=%d succeeded=%d failed=%d\n",
				name, summary.Processed, summary.Skipped, summary.Succeeded, summary.Failed)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "contributions",
		Short: "dispatch today's contribution charges",
		Run: run("contribution", func(ctx context.Context) (model.SweepSummary, error) {
			return k.kolo.SweepAll(ctx, time.Now())
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "retries",
		Short: "re-dispatch attempts waiting on a retry",
		Run:   run("retry", k.kolo.SweepRetries),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "withdrawals",
		Short: "pay out withdrawals past their hold window",
		Run:   run("withdrawal", k.kolo.SweepWithdrawals),
	})

	return cmd
}
