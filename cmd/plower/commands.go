package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"plower/internal/display"
	"plower/internal/ocr"
	"plower/internal/service"
)

var (
	askModel string
	askPaste string
	askHTML  bool

	ocrSave bool

	resetYes bool
)

var askCmd = &cobra.Command{
	Use:   "ask QUESTION...",
	Short: "Ask a question about the stored documents",
	Example: `plower ask "What did the meeting decide?"
plower ask --model gemini-1.5-flash --paste "$(pbpaste)" "Summarize this"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), newStdinInteractor(os.Stdin, os.Stderr))
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		printed := 0
		onPartial := func(text string) {
			if askHTML {
				return
			}
			fmt.Fprint(out, text[printed:])
			printed = len(text)
		}
		ans, err := a.Service.Ask(cmd.Context(), service.AskRequest{
			Query:     strings.Join(args, " "),
			ModelID:   askModel,
			PasteText: askPaste,
		}, onPartial)
		if err != nil {
			return err
		}

		switch {
		case askHTML:
			html, err := display.Markup(ans.Text)
			if err != nil {
				return err
			}
			fmt.Fprint(out, html)
		case printed < len(ans.Text):
			fmt.Fprintln(out, ans.Text[printed:])
		default:
			fmt.Fprintln(out)
		}

		var sources []string
		for _, s := range ans.Sources {
			if s.Score > 0 {
				sources = append(sources, s.Name)
			}
		}
		if len(sources) > 0 {
			display.Notice(cmd.ErrOrStderr(), display.Info, "sources: "+strings.Join(sources, ", "))
		}
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add FILES...",
	Short: "Add text files to the documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Service.Upload(cmd.Context(), args)
		if err != nil {
			return err
		}
		for _, s := range res.Skipped {
			display.Notice(cmd.ErrOrStderr(), display.Warning, s.Notice())
		}
		display.Notice(cmd.OutOrStdout(), display.Success, fmt.Sprintf("Added %d file(s).", len(res.Added)))
		return nil
	},
}

var ocrCmd = &cobra.Command{
	Use:   "ocr IMAGE",
	Short: "Recognize the text in an image",
	Long: `Recognize the text in an image and print it. With --save the text is
stored as a memo document.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		image, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context(), newStdinInteractor(os.Stdin, os.Stderr))
		if err != nil {
			return err
		}
		defer a.Close()

		stderr := cmd.ErrOrStderr()
		doc, err := a.Service.PasteImage(cmd.Context(), image, func(p ocr.Progress) {
			display.Notice(stderr, display.Info, fmt.Sprintf("%s (%d%%)", p.Status, p.Percent))
		})
		if err != nil {
			return err
		}
		if doc == nil {
			display.Notice(stderr, display.Warning, "No text was detected in the image.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), doc.Content)

		if !ocrSave {
			return nil
		}
		memo, err := a.Service.SavePaste(cmd.Context(), "")
		if err != nil {
			return err
		}
		display.Notice(stderr, display.Success, fmt.Sprintf("Saved as %s.", memo.Name))
		return nil
	},
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List the stored documents and preview the latest ones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		docs := a.Service.Documents()
		if len(docs) == 0 {
			display.Notice(out, display.Info, "No documents.")
			return nil
		}
		for i, d := range docs {
			fmt.Fprintf(out, "%3d. %s (%s)\n", i+1, d.Name, humanize.Bytes(uint64(len(d.Content))))
		}
		fmt.Fprintln(out)
		for _, d := range display.Preview(docs) {
			display.Notice(out, display.Info, d.Name)
			fmt.Fprintln(out, d.Content)
			fmt.Fprintln(out)
		}
		return nil
	},
}

var docsShowCmd = &cobra.Command{
	Use:   "show N",
	Short: "Print document N in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		docs := a.Service.Documents()
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(docs) {
			return fmt.Errorf("no document %q (have %d)", args[0], len(docs))
		}
		display.Notice(cmd.OutOrStdout(), display.Info, docs[n-1].Name)
		fmt.Fprintln(cmd.OutOrStdout(), docs[n-1].Content)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every stored document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		interactor := newStdinInteractor(os.Stdin, os.Stderr)
		a, err := openApp(cmd.Context(), interactor)
		if err != nil {
			return err
		}
		defer a.Close()

		if !resetYes {
			ok, err := interactor.Confirm(cmd.Context(), fmt.Sprintf("Delete all %d document(s)?", len(a.Service.Documents())))
			if err != nil {
				return err
			}
			if !ok {
				display.Notice(cmd.ErrOrStderr(), display.Info, "Reset cancelled.")
				return nil
			}
		}
		if err := a.Service.Reset(cmd.Context()); err != nil {
			return err
		}
		display.Notice(cmd.OutOrStdout(), display.Success, "All documents were deleted.")
		return nil
	},
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the stored Gemini API key",
}

var keyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored Gemini API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service.ClearCredential(cmd.Context()); err != nil {
			return err
		}
		display.Notice(cmd.OutOrStdout(), display.Success, "Stored API key deleted.")
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "Model id (default from config)")
	askCmd.Flags().StringVar(&askPaste, "paste", "", "Extra text searched together with the documents")
	askCmd.Flags().BoolVar(&askHTML, "html", false, "Print the answer as HTML instead of streaming it")

	ocrCmd.Flags().BoolVar(&ocrSave, "save", false, "Store the recognized text as a memo document")

	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")

	docsCmd.AddCommand(docsShowCmd)
	keyCmd.AddCommand(keyClearCmd)
}
