package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"

	"github.com/eddiefleurent/seasonal_trader/internal/models"
	"github.com/eddiefleurent/seasonal_trader/internal/storage"
)

var (
	seedFile           string
	seedDefaultSymbols bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load symbols and seasonal rules into the store",
	Long: `Seed upserts symbols and seasonal rules from a YAML file. Rules are matched
by magic number, so re-seeding an edited file updates rules in place.

With --default-symbols the built-in futures catalog is loaded first.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "rules file (YAML)")
	seedCmd.Flags().BoolVar(&seedDefaultSymbols, "default-symbols", false, "load the built-in futures catalog")
}

// seedSet is the rules file layout.
type seedSet struct {
	Symbols []models.Symbol       `yaml:"symbols"`
	Rules   []models.SeasonalRule `yaml:"rules"`
}

type seedSummary struct {
	Symbols int `json:"symbols"`
	Rules   int `json:"rules"`
}

// seedStore is the slice of storage seeding writes to.
type seedStore interface {
	GetSymbol(ctx context.Context, ticker string) (*models.Symbol, error)
	SaveSymbol(ctx context.Context, sym *models.Symbol) error
	SaveRule(ctx context.Context, rule *models.SeasonalRule) error
}

func runSeed(cmd *cobra.Command, args []string) error {
	if seedFile == "" && !seedDefaultSymbols {
		return errors.New("nothing to seed: pass --file and/or --default-symbols")
	}

	set := &seedSet{}
	if seedFile != "" {
		f, err := os.Open(seedFile)
		if err != nil {
			return fmt.Errorf("failed to open rules file: %w", err)
		}
		set, err = parseSeed(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", seedFile, err)
		}
	}
	if seedDefaultSymbols {
		set.Symbols = append(append([]models.Symbol{}, defaultSymbols...), set.Symbols...)
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sum, err := seed(cmd.Context(), a.store, set, a.logger)
	if err != nil {
		return err
	}
	return printJSON(cmd, sum)
}

// parseSeed decodes and validates a rules file. Unknown keys are rejected.
func parseSeed(r io.Reader) (*seedSet, error) {
	var set seedSet
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&set); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	var errs []error
	for i := range set.Symbols {
		if err := models.ValidateSymbol(&set.Symbols[i]); err != nil {
			errs = append(errs, err)
		}
	}
	magics := make(map[int64]bool, len(set.Rules))
	for i := range set.Rules {
		r := &set.Rules[i]
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if magics[r.MagicNumber] {
			errs = append(errs, fmt.Errorf("rule %d: duplicate magic number", r.MagicNumber))
		}
		magics[r.MagicNumber] = true
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &set, nil
}

// seed writes symbols before rules; every rule must name a symbol that is in
// the set or already stored.
func seed(ctx context.Context, store seedStore, set *seedSet, logger logrus.FieldLogger) (seedSummary, error) {
	var sum seedSummary
	known := make(map[string]bool, len(set.Symbols))
	for i := range set.Symbols {
		sym := set.Symbols[i]
		if err := store.SaveSymbol(ctx, &sym); err != nil {
			return sum, fmt.Errorf("failed to save symbol %s: %w", sym.Ticker, err)
		}
		known[sym.Ticker] = true
		sum.Symbols++
	}

	for i := range set.Rules {
		rule := set.Rules[i]
		if !known[rule.Symbol] {
			if _, err := store.GetSymbol(ctx, rule.Symbol); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return sum, fmt.Errorf("rule %d: unknown symbol %q", rule.MagicNumber, rule.Symbol)
				}
				return sum, fmt.Errorf("rule %d: %w", rule.MagicNumber, err)
			}
			known[rule.Symbol] = true
		}
		if err := store.SaveRule(ctx, &rule); err != nil {
			return sum, fmt.Errorf("failed to save rule %d: %w", rule.MagicNumber, err)
		}
		logger.WithFields(logrus.Fields{
			"magic":   rule.MagicNumber,
			"rule_id": rule.ID,
			"symbol":  rule.Symbol,
		}).Info("Seeded rule")
		sum.Rules++
	}
	return sum, nil
}
