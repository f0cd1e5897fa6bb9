package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"quizplay/internal/app"
	"quizplay/internal/client"
	"quizplay/internal/config"
	"quizplay/internal/domain"
	"quizplay/internal/infra/file"
	"quizplay/internal/infra/memory"
	infraredis "quizplay/internal/infra/redis"
)

// newPlayer builds a Player for the configured platform and session backend.
// The returned func releases backend connections.
func (g *globals) newPlayer() (*app.Player, func(), error) {
	snapshots, closeFn, err := g.snapshotStore()
	if err != nil {
		return nil, nil, err
	}
	timeout := config.TTLDuration(g.cfg.Client.Timeout, client.DefaultTimeout)
	platform := client.New(g.cfg.Client.ServerURL, timeout, g.logger)
	player := app.NewPlayer(platform, snapshots, app.PlayerOptions{
		SubmitTimeout: timeout,
		Logger:        g.logger,
	})
	return player, closeFn, nil
}

func (g *globals) snapshotStore() (app.SnapshotStore, func(), error) {
	noop := func() {}
	switch g.cfg.Session.Backend {
	case "memory":
		return memory.NewSnapshotStore(), noop, nil
	case "redis":
		if g.cfg.Redis.Addr == "" {
			return nil, nil, fmt.Errorf("session backend redis needs redis.addr")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     g.cfg.Redis.Addr,
			Password: g.cfg.Redis.Password,
			DB:       g.cfg.Redis.DB,
		})
		ttl := config.TTLDuration(g.cfg.Session.TTL, 0)
		return infraredis.NewSnapshotStore(rdb, g.cfg.Session.Profile, ttl), func() { _ = rdb.Close() }, nil
	default:
		path := g.cfg.Session.Path
		if path == "" {
			dir, err := os.UserConfigDir()
			if err != nil {
				return nil, nil, fmt.Errorf("locate session file: %w", err)
			}
			path = filepath.Join(dir, "quizplay", g.cfg.Session.Profile+".yaml")
		}
		return file.NewSnapshotStore(path), noop, nil
	}
}

// withPlayer restores the stored session before running fn.
func (g *globals) withPlayer(ctx context.Context, fn func(*app.Player) error) error {
	player, closeFn, err := g.newPlayer()
	if err != nil {
		return err
	}
	defer closeFn()
	if _, err := player.Start(ctx); err != nil {
		return explain(err)
	}
	return fn(player)
}

func explain(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		return fmt.Errorf("not logged in, run `quizplay login` first")
	case errors.Is(err, domain.ErrSessionInvalid):
		return fmt.Errorf("session expired or revoked, log in again: %w", err)
	default:
		return err
	}
}

func newLoginCmd(g *globals) *cobra.Command {
	var creds domain.Credentials
	var admin bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			player, closeFn, err := g.newPlayer()
			if err != nil {
				return err
			}
			defer closeFn()
			if admin {
				creds.Role = domain.RoleAdmin
			}
			identity, err := player.Login(cmd.Context(), creds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s)\n", identity.DisplayName, identity.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password")
	cmd.Flags().BoolVar(&admin, "admin", false, "log in through the admin endpoint")
	return cmd
}

func newSignupCmd(g *globals) *cobra.Command {
	var reg domain.Registration
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a player account",
		RunE: func(cmd *cobra.Command, args []string) error {
			player, closeFn, err := g.newPlayer()
			if err != nil {
				return err
			}
			defer closeFn()
			identity, err := player.Signup(cmd.Context(), reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "welcome, %s\n", identity.DisplayName)
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.Username, "username", "", "display name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password (8+ chars with upper, lower, digit and symbol)")
	cmd.Flags().StringVar(&reg.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&reg.LastName, "last-name", "", "last name")
	return cmd
}

func newLogoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			player, closeFn, err := g.newPlayer()
			if err != nil {
				return err
			}
			defer closeFn()
			return player.Logout(cmd.Context())
		},
	}
}

func newWhoamiCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current identity and progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withPlayer(cmd.Context(), func(player *app.Player) error {
				dash, err := player.Dashboard(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s <%s> (%s)\n", dash.Identity.DisplayName, dash.Identity.Email, dash.Identity.Role)
				fmt.Fprintf(out, "score:      %d\n", dash.Identity.Score)
				fmt.Fprintf(out, "played:     %d/%d\n", dash.PlayedCount, dash.QuizCount)
				fmt.Fprintf(out, "categories: %d\n", dash.CategoryCount)
				return nil
			})
		},
	}
}

func newQuizzesCmd(g *globals) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "quizzes",
		Short: "List quizzes with their play status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withPlayer(cmd.Context(), func(player *app.Player) error {
				return printQuizzes(cmd.OutOrStdout(), player, category)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only show quizzes whose category contains this text")
	return cmd
}

func printQuizzes(out io.Writer, player *app.Player, filter string) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tSTATUS\tQUESTION")
	for _, q := range player.Quizzes(filter) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", q.ID, q.Category, player.StatusOf(q.ID), q.Question)
	}
	return w.Flush()
}

func newPlayCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "play <quiz-id> <answer>",
		Short: "Answer a quiz",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withPlayer(cmd.Context(), func(player *app.Player) error {
				outcome, err := player.Submit(cmd.Context(), args[0], args[1])
				if err != nil {
					if errors.Is(err, domain.ErrSessionInvalid) {
						return explain(err)
					}
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case !outcome.CorrectKnown:
					fmt.Fprintln(out, "answer recorded")
				case outcome.Correct:
					fmt.Fprintln(out, "correct!")
				default:
					fmt.Fprintln(out, "wrong answer")
				}
				fmt.Fprintf(out, "score: %d\n", outcome.Score)
				return nil
			})
		},
	}
}

func newWatchCmd(g *globals) *cobra.Command {
	var interval time.Duration
	var live bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep play state in sync with the platform until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("interval") {
				interval = config.TTLDuration(g.cfg.Client.SyncInterval, 0)
			}
			if !cmd.Flags().Changed("live") {
				live = g.cfg.Client.LiveFeed
			}
			if interval <= 0 && !live {
				return fmt.Errorf("nothing to watch: set --interval or --live")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return g.withPlayer(ctx, func(player *app.Player) error {
				g.logger.Info("watching", "interval", interval, "live", live)
				group, gctx := errgroup.WithContext(ctx)
				if interval > 0 {
					group.Go(func() error { return player.Sync(gctx, interval) })
				}
				if live {
					timeout := config.TTLDuration(g.cfg.Client.Timeout, client.DefaultTimeout)
					feed := client.NewFeed(g.cfg.Client.ServerURL, timeout, g.logger)
					group.Go(func() error { return player.Watch(gctx, feed) })
				}
				return explain(group.Wait())
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll the played set this often (defaults to client.sync_interval)")
	cmd.Flags().BoolVar(&live, "live", false, "subscribe to the platform's live feed (defaults to client.live_feed)")
	return cmd
}

func newProfileCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the current account",
	}

	var update domain.ProfileUpdate
	var role string
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Edit profile fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withPlayer(cmd.Context(), func(player *app.Player) error {
				current, _ := player.CurrentIdentity()
				if update.Username == "" {
					update.Username = current.DisplayName
				}
				if update.Email == "" {
					update.Email = current.Email
				}
				if update.FirstName == "" {
					update.FirstName = current.FirstName
				}
				if update.LastName == "" {
					update.LastName = current.LastName
				}
				update.Role = domain.Role(role)
				identity, err := player.UpdateProfile(cmd.Context(), update)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "profile updated: %s <%s>\n", identity.DisplayName, identity.Email)
				return nil
			})
		},
	}
	updateCmd.Flags().StringVar(&update.Username, "username", "", "new display name")
	updateCmd.Flags().StringVar(&update.Email, "email", "", "new email")
	updateCmd.Flags().StringVar(&update.FirstName, "first-name", "", "new first name")
	updateCmd.Flags().StringVar(&update.LastName, "last-name", "", "new last name")
	updateCmd.Flags().StringVar(&update.Password, "password", "", "new password")
	updateCmd.Flags().StringVar(&role, "role", "", "new role (admins only)")

	var confirm bool
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the account and log out",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("refusing to delete without --yes")
			}
			return g.withPlayer(cmd.Context(), func(player *app.Player) error {
				if err := player.DeleteAccount(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "account deleted")
				return nil
			})
		},
	}
	deleteCmd.Flags().BoolVar(&confirm, "yes", false, "confirm deletion")

	cmd.AddCommand(updateCmd, deleteCmd)
	return cmd
}
