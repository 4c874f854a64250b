// cmd/unarc/list_cmd.go

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/avantoine/go-unarc/internal/log"
	"github.com/avantoine/go-unarc/pkg/archive"
)

func init() {
	rootCmd.AddCommand(listCmd())
}

func listCmd() *cobra.Command {
	var inputPath string
	var password string
	var passwordFile string
	var verbose bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the entries of an archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(quiet, verbose)

			candidates, err := passwordCandidates(password, passwordFile)
			if err != nil {
				return err
			}

			opts := archive.DefaultOptions()
			s, usedPassword, err := openWithPasswords(openSession, opts, inputPath, candidates, sessionLogger(logger))
			if err != nil {
				return err
			}
			defer s.Close()

			if usedPassword != "" {
				logger.Debugf("opened with a password from the candidate list")
			}

			entries := s.List()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
			var total uint64
			var dirs int
			for _, e := range entries {
				switch e.Kind {
				case archive.KindDir:
					dirs++
					if verbose {
						fmt.Fprintf(w, "dir\t-\t%s\n", e.ArchivePath)
					} else {
						fmt.Fprintf(w, "dir\t%s\n", e.ArchivePath)
					}
				case archive.KindFile:
					total += e.Size
					if verbose {
						fmt.Fprintf(w, "%s\t%08x\t%s\n", archive.FormatSize(e.Size), e.CRC, e.ArchivePath)
					} else {
						fmt.Fprintf(w, "%s\t%s\n", archive.FormatSize(e.Size), e.ArchivePath)
					}
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}

			logger.Infof("")
			logger.Infof("%d entries (%d dirs), %s", len(entries), dirs, archive.FormatSize(total))
			if vols := s.Volumes(); len(vols) > 1 {
				logger.Infof("%d volumes:", len(vols))
				for _, v := range vols {
					logger.Infof("  %s", v)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input archive file (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password for encrypted archives")
	cmd.Flags().StringVar(&passwordFile, "password-file", "", "File with candidate passwords, one per line")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show per-entry checksums")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Entries only, no summary")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// sessionLogger forwards session log lines to the CLI logger.
func sessionLogger(logger *log.Logger) archive.LogCallback {
	return func(level archive.LogLevel, message string) {
		switch level {
		case archive.LogDebug:
			logger.Debugf("%s", message)
		case archive.LogInfo:
			logger.Infof("%s", message)
		case archive.LogWarning:
			logger.Warnf("%s", message)
		case archive.LogError:
			logger.Errorf("%s", message)
		}
	}
}
