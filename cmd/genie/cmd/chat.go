package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/genie-chat/internal/threadclient"
	"github.com/suPer8Hu/genie-chat/internal/threadview"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
)

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <thread-id>",
		Short: "Print a thread's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			var (
				thread threadclient.Thread
				msgs   []threadclient.Message
			)
			err = s.withToken(ctx, func(tok string) error {
				var err error
				if thread, err = s.client.Get(ctx, tok, args[0]); err != nil {
					return err
				}
				msgs, err = s.client.ListMessages(ctx, tok, args[0])
				return err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", thread.Title, humanize.Time(thread.UpdatedAt))
			for _, m := range msgs {
				fmt.Fprintf(out, "\n%s\n%s\n", roleLabel(m.Role), m.Content)
			}
			return nil
		},
	}
}

func roleLabel(role string) string {
	switch role {
	case "assistant":
		return assistantStyle.Render("Genie")
	case "user":
		return userStyle.Render("You")
	default:
		return userStyle.Render(role)
	}
}

func newSendCmd(opts *options) *cobra.Command {
	var (
		threadID string
		model    string
	)
	c := &cobra.Command{
		Use:   "send <message>",
		Short: "Send a message and print the assistant's reply",
		Long: `send posts the message to a thread, asks the assistant and stores its
reply in the same thread. Without --thread a new thread is created and
titled from the message.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			text := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			if threadID == "" {
				primeList(cmd, s)
				t, err := s.sync.Create(ctx, s.userID(), threadview.TitleFromMessage(text))
				if err != nil {
					return err
				}
				threadID = t.ID
				fmt.Fprintf(out, "New thread %s %s\n", t.Title, idStyle.Render(t.ID))
			}

			var reply threadclient.Reply
			err = s.withToken(ctx, func(tok string) error {
				_, err := s.client.PostMessage(ctx, tok, threadID, "user", text)
				return err
			})
			if err != nil {
				return err
			}
			err = s.withToken(ctx, func(tok string) error {
				var err error
				if reply, err = s.client.Ask(ctx, tok, text, model); err != nil {
					return err
				}
				_, err = s.client.PostMessage(ctx, tok, threadID, "assistant", reply.Response)
				return err
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s\n%s\n", roleLabel("assistant"), reply.Response)
			return nil
		},
	}
	c.Flags().StringVarP(&threadID, "thread", "t", "", "post into this thread")
	c.Flags().StringVar(&model, "model", "", "assistant model")
	return c
}
