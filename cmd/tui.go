package cmd

import (
	"safeon/internal/tui"
)

func runTUI() error {
	db, err := dbPath()
	if err != nil {
		return err
	}

	return tui.Run(tui.Config{
		DBPath:    db,
		OllamaURL: flagOllama,
		Model:     flagModel,
		ChatModel: flagChatModel,
	})
}
