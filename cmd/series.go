package cmd

import (
	"encoding/json"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/backstage/services/events/internal/service"
)

var seriesFile string

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Create or edit event series from JSON requests",
}

var seriesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an event and its occurrences",
	RunE: func(cmd *cobra.Command, args []string) error {
		var req service.CreateSeriesRequest
		if err := readRequest(cmd, &req); err != nil {
			return err
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.series.CreateSeries(cmd.Context(), req)
		if err != nil {
			return err
		}
		return writeResult(cmd, result)
	},
}

var seriesUpdateCmd = &cobra.Command{
	Use:   "update <repetition-id>",
	Short: "Edit an occurrence, or the series from it on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repetitionID, err := uuid.Parse(args[0])
		if err != nil {
			return errors.Wrap(err, "invalid repetition id")
		}

		var req service.UpdateSeriesRequest
		if err := readRequest(cmd, &req); err != nil {
			return err
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.series.UpdateSeries(cmd.Context(), repetitionID, req)
		if err != nil {
			return err
		}
		return writeResult(cmd, result)
	},
}

func init() {
	seriesCmd.PersistentFlags().StringVarP(&seriesFile, "file", "f", "-", "request JSON file, - for stdin")
	seriesCmd.AddCommand(seriesCreateCmd, seriesUpdateCmd)
	rootCmd.AddCommand(seriesCmd)
}

func readRequest(cmd *cobra.Command, v interface{}) error {
	var r io.Reader = cmd.InOrStdin()
	if seriesFile != "-" {
		f, err := os.Open(seriesFile)
		if err != nil {
			return errors.Wrap(err, "failed to open request file")
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode request")
	}
	log.Debug().Str("file", seriesFile).Msg("Request loaded")
	return nil
}

func writeResult(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
