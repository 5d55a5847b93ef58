package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/annexlab/cleanroom/internal/chat"
	"github.com/annexlab/cleanroom/internal/llm"
)

var chatLesson string

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask the tutor; starts an interactive session without a question",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := cliLogger(cfg)
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		svc := chat.NewService(createChatSlot(cfg, log), chat.NewStore(database), nil, log, chatOptions(cfg))
		if !svc.Available() {
			return fmt.Errorf("%w: set an API key in .env", llm.ErrNotConfigured)
		}

		req := chat.Request{Context: chat.Context{Lesson: chatLesson}}
		ask := func(q string) error {
			req.Messages = append(req.Messages, chat.Turn{Role: "user", Content: q})
			reply, err := svc.Reply(cmd.Context(), req)
			if err != nil {
				req.Messages = req.Messages[:len(req.Messages)-1]
				_, msg := chat.HTTPError(err)
				return errors.New(msg)
			}
			req.SessionID = reply.SessionID
			req.Messages = append(req.Messages, chat.Turn{Role: "assistant", Content: reply.Answer})
			fmt.Println(reply.Answer)
			fmt.Println(faint(fmt.Sprintf("[%s, %d tokens]", reply.Model, reply.TokensUsed)))
			return nil
		}

		if len(args) > 0 {
			return ask(strings.Join(args, " "))
		}

		fmt.Println(faint("Interactive tutor session. Press Ctrl+C or enter an empty line to quit."))
		prompt := promptui.Prompt{Label: "You"}
		for {
			q, err := prompt.Run()
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if strings.TrimSpace(q) == "" {
				return nil
			}
			if err := ask(q); err != nil {
				fmt.Printf("%s %v\n", warning("!"), err)
			}
		}
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatLesson, "lesson", "", "current lesson passed to the tutor as context")
	rootCmd.AddCommand(chatCmd)
}
