package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vinicius-lino-figueiredo/gemongo"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/idgenerator"
)

const envPrefix = "gemongo"

// app holds the state shared by every command of a single execution.
type app struct {
	config *viper.Viper
	in     io.Reader
	out    io.Writer
	engine *gemongo.Engine
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{config: viper.New(), in: in, out: out}

	root := &cobra.Command{
		Use:   "gemongo",
		Short: "Evaluate MongoDB queries and updates against JSON documents",
		Long: `gemongo matches and updates extended JSON documents the way a MongoDB
server does, without a server.

Documents are read from --doc or, one per line, from stdin. Every flag can
also be set through a GEMONGO_ environment variable (GEMONGO_ID_FORMAT for
--id-format) or a .env file.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().String("id-format", "objectid", "format of generated _id values (objectid, uuid, string)")
	root.PersistentFlags().Bool("no-color", false, "disable colored diagnostics")

	root.AddCommand(a.matchCommand())
	root.AddCommand(a.updateCommand())
	root.AddCommand(a.compareCommand())
	return root
}

// setup loads the configuration and builds the engine. Flags take precedence
// over environment variables.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	a.config.SetEnvPrefix(envPrefix)
	a.config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.config.AutomaticEnv()
	if err := a.config.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if a.config.GetBool("no-color") {
		color.NoColor = true
	}

	format, err := idgenerator.ParseFormat(a.config.GetString("id-format"))
	if err != nil {
		return err
	}
	a.engine = gemongo.NewEngine(
		gemongo.WithIDGenerator(idgenerator.NewIDGenerator(idgenerator.WithFormat(format))),
	)
	return nil
}

// printError writes err to w, followed by its protocol error code when it
// has one.
func printError(w io.Writer, err error) {
	_, _ = color.New(color.FgRed, color.Bold).Fprint(w, "Error: ")
	_, _ = fmt.Fprintln(w, err)
	if code := gemongo.ErrorCode(err); code != 0 {
		_, _ = color.New(color.FgCyan).Fprint(w, "  code: ")
		_, _ = fmt.Fprintln(w, code)
	}
}
