package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docsum-backend/internal/bootstrap"
	"docsum-backend/internal/documents"
	"docsum-backend/internal/shared/config"
)

type appFactory func() (*bootstrap.App, error)

func defaultApp() (*bootstrap.App, error) {
	return bootstrap.Build(config.Load())
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(defaultApp)
}

func newRootCmdWith(build appFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "docctl",
		Short:         "Upload, read and analyze documents against the configured stores",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		uploadCmd(build),
		getCmd(build),
		analyzeCmd(build),
		listCmd(build),
	)
	return root
}

func uploadCmd(build appFactory) *cobra.Command {
	var mimeType string
	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Store, record and extract one or more PDF/DOCX files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(build, func(app *bootstrap.App) error {
				uploads := make([]documents.Upload, 0, len(args))
				for _, path := range args {
					data, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read %s: %w", path, err)
					}
					declared := mimeType
					if declared == "" {
						declared = mime.TypeByExtension(filepath.Ext(path))
					}
					uploads = append(uploads, documents.Upload{
						FileName: filepath.Base(path),
						MimeType: declared,
						Data:     data,
					})
				}

				results := app.DocumentsService.CreateDocuments(cmd.Context(), uploads)
				var failed int
				out := make([]map[string]any, 0, len(results))
				for i, res := range results {
					item := map[string]any{"file": args[i]}
					if res.Created() {
						item["id"] = res.Document.ID
						item["has_text"] = res.Document.HasText()
					}
					if res.Err != nil {
						failed++
						item["error"] = res.Err.Error()
					}
					out = append(out, item)
				}
				if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d uploads failed", failed, len(results))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", "declared MIME type (default: from file extension)")
	return cmd
}

func getCmd(build appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Read a document, filling in missing text and analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(build, func(app *bootstrap.App) error {
				doc, info, err := app.DocumentsService.ReadDocument(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), documentView(doc, info))
			})
		},
	}
}

func analyzeCmd(build appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <id>",
		Short: "Run a fresh analysis for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(build, func(app *bootstrap.App) error {
				doc, err := app.DocumentsService.AnalyzeOnDemand(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), documentView(doc, documents.ReadInfo{}))
			})
		},
	}
}

func listCmd(build appFactory) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(build, func(app *bootstrap.App) error {
				docs, err := app.DocumentsService.List(cmd.Context(), limit, offset)
				if err != nil {
					return err
				}
				out := make([]map[string]any, 0, len(docs))
				for _, doc := range docs {
					out = append(out, map[string]any{
						"id":           doc.ID,
						"filename":     doc.FileName,
						"mime_type":    doc.MimeType,
						"size":         doc.SizeBytes,
						"has_text":     doc.HasText(),
						"has_analysis": doc.HasAnalysis(),
						"created_at":   doc.CreatedAt,
					})
				}
				return writeJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum documents to list (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "documents to skip")
	return cmd
}

func withApp(build appFactory, fn func(app *bootstrap.App) error) error {
	app, err := build()
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func documentView(doc documents.Document, info documents.ReadInfo) map[string]any {
	view := map[string]any{
		"id":             doc.ID,
		"filename":       doc.FileName,
		"mime_type":      doc.MimeType,
		"size":           doc.SizeBytes,
		"storage":        doc.Ref,
		"extracted_text": doc.ExtractedText,
		"analysis":       doc.Analysis,
		"created_at":     doc.CreatedAt,
		"updated_at":     doc.UpdatedAt,
	}
	if info.SignedURL != "" {
		view["signed_url"] = info.SignedURL
	}
	return view
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
