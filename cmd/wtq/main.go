package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/wtq-eval/internal/config"
)

type cliState struct {
	configPath string
	cfg        *config.Config
}

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderrWriter, err)
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	st := &cliState{configPath: config.DefaultPath}

	root := &cobra.Command{
		Use:           "wtq",
		Short:         "Evaluate language models on WikiTableQuestions",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", st.configPath, "path to config file")

	root.AddCommand(newFetchCmd(st))
	root.AddCommand(newPreviewCmd(st))
	root.AddCommand(newRunCmd(st))
	root.AddCommand(newScoreCmd())
	root.AddCommand(newHistoryCmd(st))
	root.AddCommand(newLeaderboardCmd(st))
	return root
}

// loadConfig reads st.configPath. A missing file at the default location is
// not an error; built-in defaults apply there.
func loadConfig(st *cliState) error {
	cfg, err := config.Load(st.configPath)
	if err != nil {
		if st.configPath == config.DefaultPath && errors.Is(err, fs.ErrNotExist) {
			st.cfg = config.Default()
			return nil
		}
		return err
	}
	st.cfg = cfg
	return nil
}
