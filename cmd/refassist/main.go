package main

import (
	"refassist-backend/cmd/refassist/commands"
	"refassist-backend/lib/serviceutil"
	"refassist-backend/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "refassist-cli")
	telemetry.InitSlog(true)
	telemetry.InstrumentPerfStats(ctx)
	commands.ExecuteContext(ctx)
}
