package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"safeon/internal/embedder"
	"safeon/internal/index"
	"safeon/internal/llm"
	"safeon/internal/rag"
	"safeon/internal/store"

	"github.com/spf13/cobra"
)

var flagK int

// maxHistory is the number of messages carried between turns.
const maxHistory = 20

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions about the indexed precedents",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := existingDBPath()
		if err != nil {
			return err
		}

		st, err := store.Open(db)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer st.Close()

		emb := embedder.NewOllamaEmbedder(flagOllama, flagModel, embedder.WithDimension(store.EmbeddingDim))
		chat := llm.NewOllamaChat(flagOllama, flagChatModel)
		overview := index.LoadOverview(db)
		ctx := cmd.Context()
		k := flagK

		var (
			history     []llm.Message
			lastSources []string
		)
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("safeon chat (type /help for commands, /exit to quit)")
		fmt.Println()

		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}

			if n, ok := strings.CutPrefix(question, "/k "); ok {
				v, err := strconv.Atoi(strings.TrimSpace(n))
				if err != nil || v <= 0 {
					fmt.Println("usage: /k <positive number>")
					continue
				}
				k = v
				fmt.Printf("Retrieving %d excerpts per question.\n", k)
				continue
			}

			switch question {
			case "/exit", "/quit":
				fmt.Println("Goodbye.")
				return nil
			case "/clear":
				history = nil
				fmt.Println("Conversation cleared.")
				continue
			case "/sources":
				printSources(lastSources)
				continue
			case "/help":
				fmt.Println("Commands:")
				fmt.Println("  /clear    - clear conversation history")
				fmt.Println("  /k <n>    - set the number of excerpts retrieved")
				fmt.Println("  /sources  - list the precedents behind the last answer")
				fmt.Println("  /exit     - quit chat")
				fmt.Println("  /help     - show this help")
				continue
			}

			fmt.Println("[Searching...]")

			chunks, err := rag.HybridRetrieve(ctx, question, st, emb, k)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Fprintf(os.Stderr, "retrieval error: %v\n", err)
				continue
			}

			msgs := rag.BuildMessages(chunks, history, question, overview)
			answer, err := chat.Generate(ctx, msgs)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Fprintf(os.Stderr, "llm error: %v\n", err)
				continue
			}

			fmt.Println()
			fmt.Println(answer)
			lastSources = rag.Citations(chunks)
			if len(lastSources) > 0 {
				fmt.Println()
				printSources(lastSources)
			}
			fmt.Println()

			history = append(history,
				llm.Message{Role: "user", Content: question},
				llm.Message{Role: "assistant", Content: answer},
			)
			if len(history) > maxHistory {
				history = history[len(history)-maxHistory:]
			}
		}

		return scanner.Err()
	},
}

func printSources(sources []string) {
	if len(sources) == 0 {
		fmt.Println("No sources yet.")
		return
	}
	fmt.Println("Sources:")
	for _, s := range sources {
		fmt.Printf("  - %s\n", s)
	}
}

func init() {
	chatCmd.Flags().IntVar(&flagK, "k", 10, "number of chunks to retrieve per question")
	rootCmd.AddCommand(chatCmd)
}
