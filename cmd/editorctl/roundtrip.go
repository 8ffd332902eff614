package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/debemdeboas/newsroom/internal/convert"
	"github.com/debemdeboas/newsroom/internal/document"
)

type RoundtripResult struct {
	File      string `json:"file" yaml:"file"`
	Stable    bool   `json:"stable" yaml:"stable"`
	Canonical bool   `json:"canonical" yaml:"canonical"`
	Blocks    int    `json:"blocks" yaml:"blocks"`
	Images    int    `json:"images" yaml:"images"`
	Embeds    int    `json:"embeds" yaml:"embeds"`
	Written   bool   `json:"written,omitempty" yaml:"written,omitempty"`
}

// roundtrip loads content into the editor model and stores it back twice.
// The second pass must not change anything.
func roundtrip(content string) (RoundtripResult, string, error) {
	doc, err := convert.ToEditable(content)
	if err != nil {
		return RoundtripResult{}, "", err
	}
	first := convert.ToPersisted(doc)
	second, err := convert.Canonical(first)
	if err != nil {
		return RoundtripResult{}, "", err
	}
	embeds := 0
	for _, k := range []document.Kind{document.KindVideoEmbed, document.KindSocialEmbed, document.KindPromptBox, document.KindTable} {
		embeds += len(doc.Find(k))
	}
	return RoundtripResult{
		Stable:    first == second,
		Canonical: first == content,
		Blocks:    len(doc.Blocks()),
		Images:    len(doc.Find(document.KindImage)),
		Embeds:    embeds,
	}, first, nil
}

func newRoundtripCommand() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "roundtrip <file>...",
		Short: "Check that articles survive a load and store unchanged",
		Long: `Loads each article into the editor model and stores it again.

A stable article stores the same way every time. A canonical article is
already stored exactly as the editor would store it; --write rewrites the
others into canonical form.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var results []RoundtripResult
			unstable := 0
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				res, canonical, err := roundtrip(string(data))
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				res.File = path
				if write && res.Stable && !res.Canonical {
					if err := os.WriteFile(path, []byte(canonical), 0o644); err != nil {
						return err
					}
					res.Written = true
				}
				if !res.Stable {
					unstable++
				}
				results = append(results, res)
			}

			err := output(cmd.OutOrStdout(), results, func(w io.Writer) {
				for _, r := range results {
					fmt.Fprintln(w, labelStyle.Render(filepath.Base(r.File)))
					printFields(w,
						field{"blocks", r.Blocks},
						field{"images", r.Images},
						field{"embeds", r.Embeds},
					)
					fmt.Fprintln(w, status(r.Stable, "stable", "changes on every save"))
					fmt.Fprintln(w, status(r.Canonical || r.Written, "canonical", "not in canonical form"))
				}
			})
			if err != nil {
				return err
			}
			if unstable > 0 {
				return fmt.Errorf("%d of %d files are not stable", unstable, len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "rewrite files into canonical form")
	return cmd
}
