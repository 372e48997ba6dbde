package commands

import "github.com/disgoorg/disgo/discord"

var Commands = []discord.ApplicationCommandCreate{
	Claim,
	Register,
	Faucet,
	Website,
	Version,
}
