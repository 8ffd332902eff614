package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/debemdeboas/newsroom/internal/convert"
	"github.com/debemdeboas/newsroom/internal/document"
	"github.com/debemdeboas/newsroom/internal/insert"
)

type EmbedResult struct {
	Input    string `json:"input" yaml:"input"`
	Kind     string `json:"kind" yaml:"kind"`
	Platform string `json:"platform,omitempty" yaml:"platform,omitempty"`
	Stored   string `json:"stored" yaml:"stored"`
}

// embedRequest picks the insertion a pasted URL or embed code makes.
func embedRequest(input string) insert.Request {
	if _, ok := insert.ParseVideoURL(input); ok {
		return insert.VideoEmbed{SourceURL: input}
	}
	return insert.SocialEmbed{Input: input}
}

func embed(input string) (EmbedResult, error) {
	req := embedRequest(input)
	doc := document.New()
	if _, err := insert.Apply(doc, doc.End(), req); err != nil {
		return EmbedResult{}, err
	}
	res := EmbedResult{Input: input, Kind: string(req.Kind()), Stored: convert.ToPersisted(doc)}
	if n := doc.Find(document.KindSocialEmbed); len(n) > 0 {
		res.Platform = n[0].Attr(document.AttrPlatform)
	}
	return res, nil
}

func newEmbedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "embed <url or embed code>",
		Short: "Show what the editor stores for a video or social post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := embed(args[0])
			var verr *insert.ValidationError
			if errors.As(err, &verr) {
				return errors.New(verr.Message)
			}
			if err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), res, func(w io.Writer) {
				fields := []field{{"kind", res.Kind}}
				if res.Platform != "" {
					fields = append(fields, field{"platform", res.Platform})
				}
				printFields(w, fields...)
				fmt.Fprintln(w, blockStyle.Render(res.Stored))
			})
		},
	}
}
