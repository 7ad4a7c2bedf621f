package commands

// SetArgs sets the arguments for the command.
func (a *App) SetArgs(args ...string) {
	a.cmd.SetArgs(args)
}

// Config returns the decoded configuration of the app.
func (a App) Config() appConfig {
	return a.config
}

// SetSilenceUsage sets the SilenceUsage flag of the root command.
func (a *App) SetSilenceUsage(silence bool) {
	a.cmd.SilenceUsage = silence
}
