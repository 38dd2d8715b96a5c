package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/tbourn/go-responder-bot/internal/repo"
	"github.com/tbourn/go-responder-bot/internal/responder"
	"github.com/tbourn/go-responder-bot/internal/services"
	"github.com/tbourn/go-responder-bot/internal/sysutil"
)

// RuleFile is the on-disk format used by import and export.
type RuleFile struct {
	Responders []RuleEntry `yaml:"responders"`
}

// RuleEntry is one responder in a RuleFile. Entries with an id update that
// rule on import; entries without one are created.
type RuleEntry struct {
	ID       int64  `yaml:"id,omitempty"`
	Pattern  string `yaml:"pattern"`
	Flags    string `yaml:"flags,omitempty"`
	Response string `yaml:"response"`
	Priority int    `yaml:"priority"`
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the responder tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			db, closeDB, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			var schema repo.SchemaGuard
			if err := schema.Ensure(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
			return nil
		},
	}
}

func newExportCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all responders as YAML in dispatch order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			db, closeDB, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return exportRules(cmd.Context(), db, w)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to this file instead of stdout")
	return cmd
}

func exportRules(ctx context.Context, db *gorm.DB, w io.Writer) error {
	var schema repo.SchemaGuard
	svc := services.NewResponderService(db, nil, &schema)
	rows, err := svc.List(ctx, repo.ByPriority)
	if err != nil {
		return err
	}
	file := RuleFile{Responders: make([]RuleEntry, 0, len(rows))}
	for _, r := range rows {
		file.Responders = append(file.Responders, RuleEntry{
			ID:       r.ID,
			Pattern:  r.Pattern,
			Flags:    r.Flags,
			Response: r.Response,
			Priority: r.Priority,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return err
	}
	return enc.Close()
}

func newImportCommand() *cobra.Command {
	var editedBy string

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create or update responders from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			db, closeDB, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			created, updated, err := importRules(cmd.Context(), db, f, sysutil.FirstNonEmpty(editedBy, os.Getenv("USER"), "cli"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d responders (%d created, %d updated)\n", created+updated, created, updated)
			return nil
		},
	}
	cmd.Flags().StringVar(&editedBy, "edited-by", "", "Author recorded in the edit history (default $USER)")
	return cmd
}

// importRules validates every entry before writing any of them, then applies
// them in file order inside a single transaction.
func importRules(ctx context.Context, db *gorm.DB, r io.Reader, editedBy string) (created, updated int, err error) {
	var file RuleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return 0, 0, fmt.Errorf("parse rules: %w", err)
	}

	for i, e := range file.Responders {
		if strings.TrimSpace(e.Pattern) == "" || strings.TrimSpace(e.Response) == "" {
			return 0, 0, fmt.Errorf("responder #%d: pattern and response are required", i+1)
		}
		if err := responder.Validate(e.Pattern, e.Flags); err != nil {
			return 0, 0, fmt.Errorf("responder #%d: %w", i+1, err)
		}
	}

	var schema repo.SchemaGuard
	if err := schema.Ensure(ctx, db); err != nil {
		return 0, 0, err
	}

	// One transaction for the whole file: an entry that fails to apply,
	// such as an update of a missing id, rolls back the ones before it.
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, updated = 0, 0
		svc := services.NewResponderService(tx, nil, nil)
		for i, e := range file.Responders {
			params := services.ResponderParams{
				Pattern:  &e.Pattern,
				Flags:    &e.Flags,
				Response: &e.Response,
				Priority: &e.Priority,
			}
			if e.ID != 0 {
				id := e.ID
				params.ID = &id
			}
			if _, err := svc.CreateOrUpdate(ctx, params, editedBy); err != nil {
				return fmt.Errorf("responder #%d: %w", i+1, err)
			}
			if e.ID != 0 {
				updated++
			} else {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}

func newMatchCommand() *cobra.Command {
	var explain bool

	cmd := &cobra.Command{
		Use:   "match <text>",
		Short: "Show the reply the stored rules give for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			db, closeDB, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			var schema repo.SchemaGuard
			set := services.NewResponderSet(db, &schema, cfg.Bot.MatchTimeout)
			if _, err := set.Load(cmd.Context()); err != nil {
				return err
			}
			return printMatch(cmd.OutOrStdout(), set, strings.Join(args, " "), explain)
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "Print every matching rule as JSON")
	return cmd
}

func printMatch(w io.Writer, set *services.ResponderSet, text string, explain bool) error {
	if explain {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(set.Explain(text))
	}
	reply, ok := set.Match(text)
	if !ok {
		_, err := fmt.Fprintln(w, "(no match)")
		return err
	}
	_, err := fmt.Fprintln(w, reply)
	return err
}

