/*
Copyright © 2025 The WARNO Authors

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gnames/gn"
	"github.com/spf13/cobra"
	"github.com/warno/warno/internal/iodb"
	"github.com/warno/warno/internal/ioschema"
	"github.com/warno/warno/pkg/db"
)

// getCreateCmd returns the create command.
func getCreateCmd() *cobra.Command {
	var force bool

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create the WARNO database schema",
		Long: `Create builds the WARNO tables in PostgreSQL from scratch.

This command:
  1. Connects to PostgreSQL using configuration settings
  2. Asks before dropping existing tables
  3. Creates all tables using GORM AutoMigrate
  4. Seeds reserved event codes (site, instrument and event code
     requests, pulse captures, instrument logs, special tables)

Run it once at the central facility and once at every site.
Use --force to drop existing tables without asking.

Examples:
  warno create
  warno create --force
  warno create -f`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreate(cmd.Context(), os.Stdin, force)
		},
	}

	createCmd.Flags().BoolVarP(&force, "force", "f",
		false, "drop existing tables without confirmation")

	return createCmd
}

// connectDB connects to the configured database and reports where.
func connectDB(ctx context.Context) (db.Operator, error) {
	op := iodb.NewPgxOperator()
	if err := op.Connect(ctx, &cfg.Database); err != nil {
		return nil, err
	}
	gn.Info("Connected to <em>%s@%s:%d/%s</em>",
		cfg.Database.User, cfg.Database.Host,
		cfg.Database.Port, cfg.Database.Database)
	return op, nil
}

func runCreate(ctx context.Context, in io.Reader, force bool) error {
	op, err := connectDB(ctx)
	if err != nil {
		gn.PrintErrorMessage(err)
		return err
	}
	defer op.Close()

	hasTables, err := op.HasTables(ctx)
	if err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	if hasTables {
		if !force {
			gn.Warn("Database contains tables. " +
				"Creating the schema drops ALL of them with their data.")
			if !confirm(in, os.Stdout) {
				gn.Info("Aborted. No changes made.")
				return nil
			}
		}
		if err = op.DropAllTables(ctx); err != nil {
			gn.PrintErrorMessage(err)
			return err
		}
		gn.Info("Existing tables dropped")
	}

	if err = ioschema.NewManager(op).Create(ctx); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	codes := ioschema.ReservedCodes()
	gn.Info("Schema created, <em>%d</em> reserved event codes seeded:", len(codes))
	for _, c := range codes {
		gn.Info("  %d %s", c.EventCode, c.Description)
	}
	gn.Info("Next: run 'warno serve' and 'warno agent'")
	return nil
}

// confirm asks for a yes/no answer. Anything but yes or y is a no.
func confirm(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "\nDo you want to continue? (yes/no): ")
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "yes" || answer == "y"
}
