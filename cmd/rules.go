// Package cmd provides command-line interface commands for the SIEM backend.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/borelli28/SIEM/bootstrap"
	"github.com/borelli28/SIEM/config"
	"github.com/borelli28/SIEM/ingest"
	"github.com/borelli28/SIEM/storage"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
)

// Global flags for rules commands
var (
	outputJSON bool
	noColor    bool
	accountID  string
	rulesDir   string
)

const (
	maxRuleFileSize = 1 * 1024 * 1024
	defaultTimeout  = 2 * time.Minute
)

// NewRulesCmd creates the rules command tree.
func NewRulesCmd() *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage detection rules",
		Long:  "Import and list detection rules from Sigma YAML files.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rulesCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	rulesCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rulesCmd.PersistentFlags().StringVar(&accountID, "account", "default", "Account the rules belong to")

	rulesCmd.AddCommand(newImportCmd())
	rulesCmd.AddCommand(newListRulesCmd())

	return rulesCmd
}

// importResult summarizes a directory import for --json output.
type importResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import Sigma rules",
		Long:  "Import Sigma YAML rule files from a file argument or the configured rules directory.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			cfg, stores, cleanup, err := openStores()
			if err != nil {
				return err
			}
			defer cleanup()

			dir := rulesDir
			if dir == "" {
				dir = cfg.GetRulesDir()
			}

			var files []string
			if len(args) == 1 {
				files = []string{args[0]}
			} else {
				files, err = ruleFiles(dir)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					warningColor.Printf("No rule files found in %s\n", dir)
					return nil
				}
			}

			var sp *spinner.Spinner
			if !outputJSON && !noColor {
				sp = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				sp.Suffix = fmt.Sprintf(" Importing %d rule file(s)...", len(files))
				sp.Start()
			}

			result := importResult{}
			for _, path := range files {
				if err := importRuleFile(ctx, stores.RuleStorage, path); err != nil {
					result.Skipped++
					result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", filepath.Base(path), err))
					continue
				}
				result.Imported++
			}

			if sp != nil {
				sp.Stop()
			}

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(result)
			}

			successColor.Printf("Imported %d rule(s)\n", result.Imported)
			if result.Skipped > 0 {
				warningColor.Printf("Skipped %d file(s):\n", result.Skipped)
				for _, e := range result.Errors {
					errorColor.Printf("  %s\n", e)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rulesDir, "dir", "", "Directory to scan for rule files (default: configured rules dir)")
	return cmd
}

func newListRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			_, stores, cleanup, err := openStores()
			if err != nil {
				return err
			}
			defer cleanup()

			rules, err := stores.RuleStorage.ListRules(ctx, accountID)
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(rules)
			}

			if len(rules) == 0 {
				infoColor.Println("No rules stored")
				return nil
			}

			for _, r := range rules {
				state := "enabled"
				if !r.Enabled {
					state = "disabled"
				}
				fmt.Printf("%s  [%s] %s (%s)\n", r.ID, r.Severity, r.Name, state)
			}
			return nil
		},
	}
}

// openStores loads config and opens the SQLite-backed stores with a quiet
// logger, returning a cleanup func that closes the database.
func openStores() (*config.Config, *bootstrap.StorageComponents, func(), error) {
	sugar := zap.NewNop().Sugar()

	cfg, err := bootstrap.InitConfig(sugar)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := bootstrap.EnsureDataDirectories(cfg, sugar); err != nil {
		return nil, nil, nil, err
	}

	stores, err := bootstrap.InitStorage(cfg, sugar)
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, stores, func() { stores.SQLite.Close() }, nil
}

// ruleFiles lists the YAML files directly under dir.
func ruleFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, filepath.Join(dir, name))
		}
	}
	return files, nil
}

// importRuleFile parses one Sigma YAML file and stores the resulting rule.
func importRuleFile(ctx context.Context, rules *storage.SQLiteRuleStorage, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() > maxRuleFileSize {
		return fmt.Errorf("file exceeds %d byte limit", maxRuleFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	rule, err := ingest.ParseSigmaRule(data, accountID)
	if err != nil {
		return err
	}

	return rules.CreateRule(ctx, rule)
}
