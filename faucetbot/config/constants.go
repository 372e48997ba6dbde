package config

import "time"

const (
	ErrorColor   = 0xFF0000
	SuccessColor = 0x00FF00
	InfoColor    = 0x0099FF
	WarnColor    = 0xFFAA00

	// Per-command database budget.
	QueryTimeout = 5 * time.Second

	// How often the background milestone evaluation runs.
	MilestoneCheckInterval = time.Minute

	// How long a claim interaction may hold its session lock.
	ClaimSessionDuration = 30 * time.Second
)
