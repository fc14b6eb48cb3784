// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"net"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jeranaias/mentorbot/internal/conversation"
	"github.com/jeranaias/mentorbot/internal/model"
	"github.com/jeranaias/mentorbot/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr    string
		origins []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversation API over HTTP",
		Long: `Serve the conversation API: formatting, stored conversations,
streamed turns (NDJSON) and a chat proxy to the configured backend. The
stored-conversation endpoints match what the remote storage driver
expects, so one server can hold the history of several clients.

Set server.token (or MENTORBOT_SERVER_TOKEN) to require a bearer token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc := a.cfg.Server
			if cmd.Flags().Changed("addr") {
				sc.Addr = addr
			}
			if cmd.Flags().Changed("cors-origin") {
				sc.CORSOrigins = origins
			}
			if sc.Token == "" && !isLoopback(sc.Addr) {
				a.logger.Warn("serving without a token on a non-loopback address", "addr", sc.Addr)
			}

			store, err := a.Store()
			if err != nil {
				return err
			}
			backend, err := a.Backend()
			if err != nil {
				return err
			}

			srv := server.New(server.Options{
				Addr:    sc.Addr,
				Store:   store,
				Backend: backend,
				Controllers: func(user string, cat model.Category) (*conversation.Controller, error) {
					return a.newController(user, cat, nil, true)
				},
				DefaultUser:       a.cfg.User(),
				CORSOrigins:       sc.CORSOrigins,
				Token:             sc.Token,
				RequestsPerMinute: sc.RequestsPerMinute,
				Logger:            a.logger.WithPrefix("server"),
			})
			a.logger.Info("starting server", "addr", srv.Addr(), "storage", a.cfg.Storage.Driver, "backend", a.cfg.Backend.Kind)
			if err := srv.ListenAndServe(cmd.Context()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return wrap("serve", "", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringSliceVar(&origins, "cors-origin", nil, "allowed CORS origin (repeatable)")
	return cmd
}

// isLoopback reports whether addr only listens on the local machine.
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
