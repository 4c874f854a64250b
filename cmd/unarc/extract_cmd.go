// cmd/unarc/extract_cmd.go

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/cobra"

	"github.com/avantoine/go-unarc/internal/log"
	"github.com/avantoine/go-unarc/pkg/archive"
)

func init() {
	rootCmd.AddCommand(extractCmd())
}

func extractCmd() *cobra.Command {
	var inputPath, outputPath string
	var includes, excludes []string
	var flatten bool
	var password string
	var passwordFile string
	var dryRun bool
	var verify bool
	var verbose bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract archive entries to a directory",
		Long: `Extract the entries of an archive into an output directory.

Entries can be filtered with gitignore-style --include and --exclude
patterns and remapped to their base names with --flatten. Encrypted
archives take a password from --password or, one candidate per line,
from --password-file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(quiet, verbose)

			candidates, err := passwordCandidates(password, passwordFile)
			if err != nil {
				return err
			}

			opts := archive.DefaultOptions()
			opts.Verify = verify

			s, usedPassword, err := openWithPasswords(openSession, opts, inputPath, candidates, sessionLogger(logger))
			if err != nil {
				return err
			}
			defer s.Close()

			if usedPassword != "" {
				logger.Debugf("opened with a password from the candidate list")
			}

			selected, err := selectEntries(s.List(), includes, excludes, flatten)
			if err != nil {
				return err
			}
			if selected == 0 {
				logger.Infof("nothing to extract")
				return nil
			}

			if dryRun {
				for _, e := range s.List() {
					for _, out := range e.OutputPaths() {
						logger.Infof("%s -> %s", e.ArchivePath, filepath.Join(outputPath, out))
					}
				}
				logger.Infof("")
				logger.Infof("dry run: %d entries would be extracted to %s", selected, outputPath)
				return nil
			}

			logger.Infof("Extracting %s to %s...", inputPath, outputPath)

			// a progress bar, unless the output is meant to stay parseable
			cbs := archive.ExtractCallbacks{
				Error: func(message string) { logger.Errorf("%s", message) },
			}
			finish := func() {}
			if !quiet && !verbose {
				cbs.Progress, finish = archive.ProgressBarCallback(inputPath)
			}
			if verbose {
				cbs.FileChange = func(change archive.FileChange, p string) {
					logger.Debugf("  extracting %s", p)
				}
			}

			// first interrupt asks the session to stop at its next progress
			// checkpoint, a second one exits outright
			sigChan := make(chan os.Signal, 2)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigChan
				s.Cancel()
				<-sigChan
				os.Exit(130)
			}()
			defer signal.Stop(sigChan)

			result, err := s.Extract(outputPath, cbs)
			finish()
			if archive.KindOf(err) == archive.ErrorExtractCancelled {
				return fmt.Errorf("extraction interrupted")
			}
			if err != nil {
				return err
			}

			logger.Infof("")
			logger.Infof("%s", strings.TrimSuffix(result.Summary(), "\n"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input archive file (required)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", ".", "Output directory")
	cmd.Flags().StringArrayVar(&includes, "include", nil, "Only extract entries matching these gitignore-style patterns")
	cmd.Flags().StringArrayVar(&excludes, "exclude", nil, "Skip entries matching these gitignore-style patterns")
	cmd.Flags().BoolVar(&flatten, "flatten", false, "Drop directories and extract files under their base names")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password for encrypted archives")
	cmd.Flags().StringVar(&passwordFile, "password-file", "", "File with candidate passwords, one per line")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be extracted without writing")
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify checksums of extracted files")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show detailed output")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Minimal output (overrides verbose)")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// selectEntries assigns destinations to the entries that pass the include
// and exclude filters and returns how many were selected. With flatten,
// files land under their base names and directory entries are dropped.
func selectEntries(entries []*archive.Entry, includes, excludes []string, flatten bool) (int, error) {
	var include, exclude *ignore.GitIgnore
	if len(includes) > 0 {
		include = ignore.CompileIgnoreLines(includes...)
	}
	if len(excludes) > 0 {
		exclude = ignore.CompileIgnoreLines(excludes...)
	}

	selected := 0
	for _, e := range entries {
		e.ClearOutputPaths()
		if include != nil && !include.MatchesPath(e.ArchivePath) {
			continue
		}
		if exclude != nil && exclude.MatchesPath(e.ArchivePath) {
			continue
		}
		if flatten {
			if e.Kind == archive.KindDir {
				continue
			}
			name := path.Base(strings.TrimSuffix(strings.ReplaceAll(e.ArchivePath, `\`, "/"), "/"))
			if name == "" || name == "." || name == "/" {
				return selected, fmt.Errorf("entry %q has no usable base name", e.ArchivePath)
			}
			e.AddOutputPath(name)
		} else {
			e.AddOutputPath(e.ArchivePath)
		}
		selected++
	}
	return selected, nil
}
