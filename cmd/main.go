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
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"log"

	"github.com/kolofinance/kolo"
	"github.com/kolofinance/kolo/config"
	"github.com/kolofinance/kolo/database"
	"github.com/kolofinance/kolo/internal/notification"
)

// Kolo represents the CLI application, encapsulating the root Cobra command.
type Kolo struct {
	cmd *cobra.Command
}

// koloInstance holds the engine instance and its configuration, shared by
// every subcommand.
type koloInstance struct {
	kolo *kolo.Kolo
	cnf  *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun sets up the configuration and initializes the engine before running
// any command.
func preRun(app *koloInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("kolo.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newKolo, err := setupKolo(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.kolo = newKolo
		app.cnf = cnf

		return nil
	}
}

// setupKolo connects the datasource and builds the engine from it.
func setupKolo(cfg *config.Configuration) (*kolo.Kolo, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newKolo, err := kolo.NewKolo(db)
	if err != nil {
		return nil, fmt.Errorf("error creating kolo: %v", err)
	}
	return newKolo, nil
}

// NewCLI creates the command-line interface for the Kolo application.
func NewCLI() *Kolo {
	var configFile string
	k := &koloInstance{}

	var rootCmd = &cobra.Command{
		Use:   "kolo",
		Short: "Group contribution engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./kolo.json", "Configuration file for the contribution engine")

	rootCmd.PersistentPreRunE = preRun(k)

	rootCmd.AddCommand(serverCommands(k))
	rootCmd.AddCommand(workerCommands(k))
	rootCmd.AddCommand(sweepCommands(k))
	rootCmd.AddCommand(migrateCommands(k))

	return &Kolo{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during
// execution.
func (w Kolo) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
