package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/genie-chat/internal/threadclient"
	"github.com/suPer8Hu/genie-chat/internal/threadsync"
	"github.com/suPer8Hu/genie-chat/internal/threadview"
	"go.uber.org/zap"
)

var (
	idStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	staleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
)

func newListCmd(opts *options) *cobra.Command {
	var (
		collapsed bool
		active    string
		refresh   bool
	)
	c := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show your threads grouped by day",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()

			load := s.sync.Load
			if refresh {
				load = s.sync.Refresh
			}
			snap, err := load(cmd.Context(), s.userID())
			if err != nil {
				return err
			}

			sb := &threadview.Sidebar{Collapsed: collapsed, ActiveID: active}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, sb.Render(snap.Threads, time.Now()))
			printStale(out, snap)
			return nil
		},
	}
	c.Flags().BoolVar(&collapsed, "collapsed", false, "print only the header")
	c.Flags().StringVar(&active, "active", "", "highlight this thread id")
	c.Flags().BoolVar(&refresh, "refresh", false, "always fetch from the server")
	return c
}

func printStale(w io.Writer, snap threadsync.Snapshot) {
	if !snap.Stale {
		return
	}
	msg := "offline: showing cached threads"
	if !snap.FetchedAt.IsZero() {
		msg = fmt.Sprintf("could not refresh, threads fetched %s", humanize.Time(snap.FetchedAt))
	}
	fmt.Fprintln(w, staleStyle.Render(msg))
}

func newNewCmd(opts *options) *cobra.Command {
	var fromMessage bool
	c := &cobra.Command{
		Use:   "new <title>",
		Short: "Create a thread",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()

			title := strings.Join(args, " ")
			if fromMessage {
				title = threadview.TitleFromMessage(title)
			}
			primeList(cmd, s)
			t, err := s.sync.Create(cmd.Context(), s.userID(), title)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s\n", t.Title, idStyle.Render(t.ID))
			return nil
		},
	}
	c.Flags().BoolVar(&fromMessage, "from-message", false, "derive the title from a first message")
	return c
}

func newRmCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <thread-id>...",
		Aliases: []string{"delete"},
		Short:   "Delete threads",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()

			primeList(cmd, s)
			for _, id := range args {
				if err := s.sync.Delete(cmd.Context(), s.userID(), id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return nil
		},
	}
}

// primeList loads the list before a mutation so the local cache reflects it.
func primeList(cmd *cobra.Command, s *session) {
	if _, err := s.sync.Load(cmd.Context(), s.userID()); err != nil {
		s.log.Debug("thread list unavailable", zap.Error(err))
	}
}

func newSearchCmd(opts *options) *cobra.Command {
	var fuzzy, remote bool
	c := &cobra.Command{
		Use:   "search <term>",
		Short: "Find threads by title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()

			term := strings.Join(args, " ")
			var found []threadclient.Thread
			if remote {
				err = s.withToken(cmd.Context(), func(tok string) error {
					var err error
					found, err = s.client.Search(cmd.Context(), tok, term)
					return err
				})
				if err != nil {
					return err
				}
			} else {
				snap, err := s.sync.Load(cmd.Context(), s.userID())
				if err != nil {
					return err
				}
				if fuzzy {
					found = threadview.FuzzySearch(snap.Threads, term)
				} else {
					found = threadview.Search(snap.Threads, term)
				}
			}

			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintf(out, "No threads match %q\n", term)
				return nil
			}
			printThreads(out, found)
			return nil
		},
	}
	c.Flags().BoolVar(&fuzzy, "fuzzy", false, "rank fuzzy matches instead of substring matching")
	c.Flags().BoolVar(&remote, "remote", false, "search on the server")
	return c
}

func printThreads(w io.Writer, threads []threadclient.Thread) {
	for _, t := range threads {
		fmt.Fprintf(w, "%s  %s  %s, %s\n",
			idStyle.Render(t.ID),
			t.Title,
			messageCount(t.MessageCount),
			humanize.Time(t.UpdatedAt),
		)
	}
}

func messageCount(n int) string {
	if n == 1 {
		return "1 message"
	}
	return humanize.Comma(int64(n)) + " messages"
}
