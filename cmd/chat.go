package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cropcare-connect/cropcare/internal/chat"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask Leaf Bot a farming question",
		Args:  cobra.MinimumNArgs(1),
		Example: `  cropcare chat "How do I treat early blight on potatoes?"
  cropcare chat --lang hi "गेहूं में रतुआ रोग का इलाज क्या है?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if lang == "" {
				lang = cfg.Language
			}
			language, err := chat.ParseLanguage(lang)
			if err != nil {
				return err
			}

			client, err := newChatClient(cfg)
			if err != nil {
				return err
			}

			conv := chat.NewConversation(client, language)
			conv.Open()
			defer conv.Close()

			if !conv.Send(cmd.Context(), strings.Join(args, " ")) {
				return fmt.Errorf("message is empty")
			}
			msgs := conv.Messages()
			fmt.Fprintln(cmd.OutOrStdout(), msgs[len(msgs)-1].Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Reply language: en or hi (default from config)")

	return cmd
}
