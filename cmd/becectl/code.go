package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/config"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/database"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/logger"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/repository"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/services"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// codeOptions holds the flags of becectl code.
type codeOptions struct {
	state, lga, school int
	seq                int64
	year               int
	parse              string
	owner              bool
}

// ownerFinder is the part of the candidate store becectl code --owner needs.
type ownerFinder interface {
	FindByRegistrationNumber(ctx context.Context, code string) (*models.Candidate, error)
}

func codeCmd() *cobra.Command {
	var opts codeOptions
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Re-derive a registration number, or decompose one with --parse",
		Example: `  becectl code --state 7 --lga 3 --school 45 --seq 12 --year 2025
  becectl code --parse BECE2507030450012
  becectl code --parse BECE2507030450012 --owner`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.owner {
				return runCode(cmd.Context(), cmd.OutOrStdout(), opts, time.Now, nil)
			}
			if opts.parse == "" {
				return errors.New("--owner requires --parse")
			}

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.AppEnv, nil)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			db, err := database.ConnectPostgres(cfg.PostgresDSN(), log)
			if err != nil {
				return err
			}
			defer database.Close(db) //nolint:errcheck

			return runCode(cmd.Context(), cmd.OutOrStdout(), opts, time.Now, repository.NewGormCandidateRepository(db))
		},
	}
	cmd.Flags().IntVar(&opts.state, "state", 0, "state id")
	cmd.Flags().IntVar(&opts.lga, "lga", 0, "LGA id")
	cmd.Flags().IntVar(&opts.school, "school", 0, "school id")
	cmd.Flags().Int64Var(&opts.seq, "seq", 0, "per-school sequence number")
	cmd.Flags().IntVar(&opts.year, "year", 0, "registration year (YY or YYYY, default current)")
	cmd.Flags().StringVar(&opts.parse, "parse", "", "registration number to decompose")
	cmd.Flags().BoolVar(&opts.owner, "owner", false, "with --parse, look up the candidate holding the number")
	return cmd
}

// runCode derives or decomposes a registration number. owners is only
// consulted for --parse and may be nil.
func runCode(ctx context.Context, w io.Writer, opts codeOptions, now func() time.Time, owners ownerFinder) error {
	if opts.parse != "" {
		return parseCode(ctx, w, opts.parse, owners)
	}

	if opts.state == 0 && opts.lga == 0 && opts.school == 0 && opts.seq == 0 {
		return errors.New("either --parse or --state/--lga/--school/--seq is required")
	}

	clock := now
	if opts.year != 0 {
		year := opts.year
		if year < 100 {
			year += 2000
		}
		clock = func() time.Time { return time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC) }
	}

	code := services.NewCodeGenerator(clock).Generate(opts.state, opts.lga, opts.school, opts.seq)
	if !code.Canonical {
		color.New(color.FgYellow).Fprintln(w, "Inputs do not fit the canonical layout; a random fallback would be issued")
		return nil
	}
	color.New(color.FgGreen).Fprintln(w, code.Value)
	return nil
}

func parseCode(ctx context.Context, w io.Writer, code string, owners ownerFinder) error {
	fields, err := services.ParseRegistrationCode(code)
	canonical := err == nil
	if !canonical && owners == nil {
		return fmt.Errorf("%q is not a canonical registration number", code)
	}

	if canonical {
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Year", "State", "LGA", "School", "Sequence"})
		table.Append([]string{
			fmt.Sprintf("%02d", fields.Year),
			strconv.Itoa(fields.StateID),
			strconv.Itoa(fields.LGAID),
			strconv.Itoa(fields.SchoolID),
			strconv.FormatInt(fields.Sequence, 10),
		})
		table.Render()
	} else {
		color.New(color.FgYellow).Fprintln(w, "Fallback registration number, no fields to decompose")
	}

	if owners == nil {
		return nil
	}
	c, err := owners.FindByRegistrationNumber(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		color.New(color.FgYellow).Fprintf(w, "No candidate holds %s\n", code)
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up %s: %w", code, err)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Candidate", "Name", "Email", "School", "Payment"})
	reference := ""
	if c.PaymentReference != nil {
		reference = *c.PaymentReference
	}
	table.Append([]string{c.ID.String(), c.Name, c.Email, strconv.Itoa(c.SchoolID), reference})
	table.Render()
	return nil
}
