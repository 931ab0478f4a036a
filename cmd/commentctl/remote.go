package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/blog-comment-widget/internal/client"
	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/tui"
	"github.com/blog-comment-widget/internal/widget"
	"github.com/blog-comment-widget/pkg/logger"
)

type remoteFlags struct {
	apiURL string
	token  string
}

func (f *remoteFlags) register(cmd *cobra.Command) {
	apiURL := os.Getenv("COMMENT_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	cmd.Flags().StringVar(&f.apiURL, "api-url", apiURL, "comment service base URL (COMMENT_API_URL)")
	cmd.Flags().StringVar(&f.token, "token", os.Getenv("COMMENT_SESSION_TOKEN"), "anonymous session token to resume (COMMENT_SESSION_TOKEN)")
}

func newWatchCmd() *cobra.Command {
	var remote remoteFlags
	var order, placeholder, timeFormat string

	cmd := &cobra.Command{
		Use:   "watch <slug>",
		Short: "Show a live comment section in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := models.ParseOrder(order)
			if err != nil {
				return err
			}

			// The terminal belongs to the UI; logs go to a file or nowhere
			var logOut io.Writer = io.Discard
			if os.Getenv("COMMENTCTL_LOG_FILE") != "" {
				logOut = logWriter()
			}
			log := logger.NewWithOutput(logOut, os.Getenv("LOG_LEVEL"), "json")

			c := client.New(remote.apiURL, remote.token)
			format := widget.Formatter{
				Placeholder: placeholder,
				Layout:      timeFormat,
				Location:    time.Local,
				Pending:     widget.PendingTimestamp,
			}
			m := tui.New(cmd.Context(), c, args[0], format, tui.Options{
				Order:    o,
				Composer: widget.ComposerOptions{PlaceholderAuthor: placeholder},
			}, log)
			defer m.Close()

			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("tui error: %w", err)
			}
			if token := c.Token(); token != "" && token != remote.token {
				fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", token)
			}
			return nil
		},
	}
	remote.register(cmd)
	cmd.Flags().StringVar(&order, "order", "asc", "comment order: asc or desc")
	cmd.Flags().StringVar(&placeholder, "placeholder", models.DefaultAuthorLabel, "label shown for comments without an author")
	cmd.Flags().StringVar(&timeFormat, "time-format", time.DateTime, "timestamp layout")
	return cmd
}

func newPostCmd() *cobra.Command {
	var remote remoteFlags
	var author string

	cmd := &cobra.Command{
		Use:   "post <slug> <body...>",
		Short: "Post a comment",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(remote.apiURL, remote.token)
			body := strings.Join(args[1:], " ")

			id, err := c.Append(cmd.Context(), args[0], author, body)
			if err != nil {
				return fmt.Errorf("%s: %w", widget.MessageFor(err), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", widget.SuccessMessage, id)
			if token := c.Token(); token != remote.token {
				fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", token)
			}
			return nil
		},
	}
	remote.register(cmd)
	cmd.Flags().StringVar(&author, "author", "", "author label (blank posts anonymously)")
	return cmd
}
