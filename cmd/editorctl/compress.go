package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/debemdeboas/newsroom/internal/config"
	"github.com/debemdeboas/newsroom/internal/upload"
)

type CompressResult struct {
	File          string `json:"file" yaml:"file"`
	ContentType   string `json:"content_type" yaml:"content_type"`
	Width         int    `json:"width" yaml:"width"`
	Height        int    `json:"height" yaml:"height"`
	OriginalBytes int    `json:"original_bytes" yaml:"original_bytes"`
	Bytes         int    `json:"bytes" yaml:"bytes"`
	Resized       bool   `json:"resized" yaml:"resized"`
	ObjectPath    string `json:"object_path" yaml:"object_path"`
	Written       string `json:"written,omitempty" yaml:"written,omitempty"`
}

func newCompressCommand() *cobra.Command {
	cfg := config.Get().Upload
	var (
		out      string
		filename string
	)
	cmd := &cobra.Command{
		Use:   "compress <image>",
		Short: "Compress an image the way the editor does before uploading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			compressed, err := upload.NewCompressor(cfg).Compress(filepath.Base(args[0]), data)
			if err != nil {
				return err
			}

			name := filename
			if name == "" {
				name = upload.Stem(args[0])
			}
			res := CompressResult{
				File:          args[0],
				ContentType:   compressed.ContentType,
				Width:         compressed.Width,
				Height:        compressed.Height,
				OriginalBytes: compressed.OriginalBytes,
				Bytes:         len(compressed.Data),
				Resized:       compressed.Resized,
				ObjectPath:    upload.ObjectPath(cfg.Prefix, upload.Slugify(name), time.Now(), compressed.Ext),
			}
			if out != "" {
				if err := os.WriteFile(out, compressed.Data, 0o644); err != nil {
					return err
				}
				res.Written = out
			}

			return output(cmd.OutOrStdout(), res, func(w io.Writer) {
				saved := 100 - float64(res.Bytes)*100/float64(max(res.OriginalBytes, 1))
				printFields(w,
					field{"type", res.ContentType},
					field{"size", fmt.Sprintf("%dx%d", res.Width, res.Height)},
					field{"bytes", fmt.Sprintf("%d -> %d (%.0f%% smaller)", res.OriginalBytes, res.Bytes, saved)},
					field{"path", res.ObjectPath},
				)
				fmt.Fprintln(w, status(int64(res.Bytes) <= cfg.SoftMaxBytes || cfg.SoftMaxBytes <= 0, "within the size limit", "still above the size limit"))
				if res.Written != "" {
					fmt.Fprintln(w, okStyle.Render("✓ written to "+res.Written))
				}
			})
		},
	}
	cmd.Flags().IntVar(&cfg.MaxWidth, "max-width", cfg.MaxWidth, "maximum width in pixels")
	cmd.Flags().IntVar(&cfg.MaxHeight, "max-height", cfg.MaxHeight, "maximum height in pixels")
	cmd.Flags().Float64Var(&cfg.Quality, "quality", cfg.Quality, "starting JPEG quality, 0 to 1")
	cmd.Flags().Int64Var(&cfg.SoftMaxBytes, "soft-max-bytes", cfg.SoftMaxBytes, "size the JPEG quality steps down towards")
	cmd.Flags().StringVar(&filename, "filename", "", "filename used for the suggested object path")
	cmd.Flags().StringVar(&out, "out", "", "write the compressed image here")
	return cmd
}
