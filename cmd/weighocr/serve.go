package main

import (
	"github.com/spf13/cobra"

	"weighocr/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the parse API over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		addr := serveAddr
		if addr == "" {
			addr = cfg.HTTPAddr
		}
		ctx, cancel := signalContext()
		defer cancel()

		srv := server.NewServer(server.NewHandler(db, parser, cfg.RawMailDir))
		return srv.Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
