package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain/entities"
	"github.com/Suraj127-git/medchat/internal/api"
	"github.com/Suraj127-git/medchat/internal/auth"
	"github.com/Suraj127-git/medchat/internal/tui"
	"github.com/Suraj127-git/medchat/usecase"
)

const (
	extractVoice = entities.ExtractionVoice
	extractImage = entities.ExtractionImage
)

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func chatCmd(rt *env) *cobra.Command {
	return &cobra.Command{
		Use:         "chat",
		Short:       "Open the interactive chat page",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{logToFile: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd)
			defer cancel()

			program := tea.NewProgram(tui.New(ctx, a.services(), rt.logger.Named("tui")),
				tea.WithAltScreen(),
				tea.WithContext(ctx))
			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("chat page failed: %w", err)
			}
			return nil
		},
	}
}

func askCmd(rt *env) *cobra.Command {
	var convID string

	cmd := &cobra.Command{
		Use:   "ask [--conv ID] QUESTION...",
		Short: "Ask one question and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if convID != "" {
				if err := a.conv.Resume(convID); err != nil {
					return err
				}
			}

			turn := a.conv.SendText(strings.Join(args, " "))
			if turn == nil {
				return errors.New("question is empty")
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()
			return printReply(ctx, cmd, a, turn)
		},
	}
	cmd.Flags().StringVar(&convID, "conv", "", "continue an existing conversation")
	return cmd
}

func extractCmd(rt *env, use, short string, kind entities.ExtractionKind) *cobra.Command {
	return &cobra.Command{
		Use:   use + " FILE",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd)
			defer cancel()

			text, err := a.gateway.SubmitFile(ctx, kind, args[0])
			if err != nil {
				return err
			}
			if text == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No text recognised.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "> %s\n\n", text)

			turn := a.recorder.Last()
			if turn == nil {
				return errors.New("extracted text was not sent")
			}
			return printReply(ctx, cmd, a, turn)
		},
	}
}

func printReply(ctx context.Context, cmd *cobra.Command, a *app, turn *usecase.Turn) error {
	reply, err := turn.Wait(ctx)
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	if id := a.conv.ContinuityID(); id != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\nconv_id: %s\n", id)
	}
	return err
}

func graphCmd(rt *env) *cobra.Command {
	return &cobra.Command{
		Use:   "graph CONV_ID",
		Short: "Print the reasoning graph of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.conv.Resume(args[0]); err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()
			if err := a.graph.Fetch(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.graph.Graph().Pretty())
			return nil
		},
	}
}

func devServerCmd(rt *env) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local development backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dev := rt.cfg.DevServer
			if addr == "" {
				addr = dev.Addr
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			backends, release, err := newDevBackends(ctx, dev, rt.logger)
			if err != nil {
				return err
			}
			defer release()

			server := api.NewServer(api.ServerConfig{
				Addr:            addr,
				JWTSecret:       dev.JWTSecret,
				GraphTTL:        dev.GraphTTL,
				CleanupInterval: dev.CleanupInterval,
			}, backends, rt.logger.Named("devserver"))

			if err := server.ListenAndRun(ctx); err != nil {
				rt.logger.Error("Dev server failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func tokenCmd(rt *env) *cobra.Command {
	var (
		userID int
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the dev server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := rt.cfg.DevServer.JWTSecret
			if secret == "" {
				return errors.New("devserver.jwt_secret (MEDCHAT_DEVSERVER_JWT_SECRET) is not set")
			}
			token, err := auth.GenerateUserToken(userID, []byte(secret), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().IntVar(&userID, "user-id", 0, "user id carried by the token")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
