package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	apperrors "github.com/nodeweld/nodeweld/pkg/errors"
	"github.com/nodeweld/nodeweld/pkg/ident"
)

// idsCommand creates the ids command group for working with identifier sets
// directly, without a dataset.
func (c *CLI) idsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ids",
		Short: "Generate or correct identifier sets",
	}

	cmd.AddCommand(c.idsGenerateCommand())
	cmd.AddCommand(c.idsCorrectCommand())

	return cmd
}

// idsGenerateCommand creates the "ids generate" subcommand.
func (c *CLI) idsGenerateCommand() *cobra.Command {
	var (
		kind   string
		length int
		count  int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate fresh identifiers from a domain",
		Long: `Generate identifiers from the given domain, one per line.

Integer and float domains count up from 1, string domains draw random values
of the given length, and token domains draw random 128-bit tokens. Generation
fails when the domain cannot produce another distinct value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, err := parseDomain(kind, length)
			if err != nil {
				return err
			}
			pool, err := domain.NewPool()
			if err != nil {
				return err
			}
			for i := 0; i < count; i++ {
				v, err := pool.TryNext()
				if err != nil {
					return fmt.Errorf("after %d values: %w", i, err)
				}
				fmt.Println(ident.Format(v))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "integer", "identifier kind: integer, float, string, token")
	cmd.Flags().IntVar(&length, "length", 0, "value length (string kind only)")
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of identifiers to generate")

	return cmd
}

// idsCorrectCommand creates the "ids correct" subcommand.
func (c *CLI) idsCorrectCommand() *cobra.Command {
	var (
		kind   string
		length int
		input  string
	)

	cmd := &cobra.Command{
		Use:   "correct",
		Short: "Correct an identifier mapping so every value is unique",
		Long: `Correct a JSON mapping of feature IDs to identifier values.

Values that are already unique are kept. Nulls and duplicates are replaced
with fresh values from the domain, never reusing a value that appears
anywhere in the input. The corrected mapping is printed as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, err := parseDomain(kind, length)
			if err != nil {
				return err
			}

			r := os.Stdin
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return fmt.Errorf("open %s: %w", input, err)
				}
				defer f.Close()
				r = f
			}

			var raw map[int64]any
			if err := json.NewDecoder(r).Decode(&raw); err != nil {
				return apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "decode mapping")
			}
			ids := make(map[int64]ident.Value, len(raw))
			for id, v := range raw {
				value, err := domain.FromWire(v)
				if err != nil {
					return apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "feature %d", id)
				}
				ids[id] = value
			}

			pool, err := domain.NewPool()
			if err != nil {
				return err
			}
			corrected, err := ident.CorrectAll(ids, pool, map[ident.Value]struct{}{})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(corrected)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "integer", "identifier kind: integer, float, string, token")
	cmd.Flags().IntVar(&length, "length", 0, "value length (string kind only)")
	cmd.Flags().StringVarP(&input, "input", "i", "", "mapping file (default: stdin)")

	return cmd
}

func parseDomain(kind string, length int) (ident.Domain, error) {
	k, err := ident.ParseKind(kind)
	if err != nil {
		return ident.Domain{}, apperrors.Wrap(apperrors.ErrCodeInvalidIDKind, err, "id kind %q", kind)
	}
	d := ident.Domain{Kind: k, Length: length}
	if err := d.Validate(); err != nil {
		return ident.Domain{}, apperrors.Wrap(apperrors.ErrCodeInvalidIDLength, err, "id domain %s", d)
	}
	return d, nil
}
