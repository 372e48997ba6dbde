package commands

import (
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/json"

	"github.com/xac-network/faucet-bot/faucetbot"
)

var Version = discord.SlashCommandCreate{
	Name:        "version",
	Description: "Show the running bot version",
}

func VersionHandler(b *faucetbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if err := e.DeferCreateMessage(false); err != nil {
			return err
		}
		content := fmt.Sprintf("Version: %s\nCommit: %s", b.Version, b.Commit)
		_, err := e.UpdateInteractionResponse(discord.MessageUpdate{Content: json.Ptr(content)})
		return err
	}
}
