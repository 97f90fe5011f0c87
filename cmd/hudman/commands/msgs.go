package commands

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort = "A HUD manager for Team Fortress 2"
	MsgRootLong = `hudman downloads, installs and switches custom HUDs for Team Fortress 2.

Installs are atomic: the game never sees a half-extracted HUD, and
directories hudman did not create are never touched.`

	MsgListShort      = "List known and installed huds"
	MsgInstallShort   = "Download and install a hud"
	MsgUninstallShort = "Remove an installed hud"
	MsgSwitchShort    = "Mark an installed hud as the active one"
	MsgAddShort       = "Register a hud from a download URL or local archive"
	MsgAddLong = `Add fetches the archive, looks inside for the huds it provides, and
registers them in the catalog without installing anything.`
	MsgRemoveShort     = "Forget a hud that is not installed"
	MsgRefreshShort    = "Update the catalog from the remote index"
	MsgInfoShort       = "Show details for one hud"
	MsgGenConfigShort  = "Print the default configuration file"
	MsgVersionShort    = "Print version information"
	MsgCompletionShort = "Generate shell completion script"

	// Status messages
	MsgInstalled     = "Installed %s\n"
	MsgUninstalled   = "Uninstalled %s\n"
	MsgSwitched      = "Active hud is now %s\n"
	MsgAdded         = "Registered %s\n"
	MsgRemoved       = "Forgot %s\n"
	MsgRefreshed     = "Catalog refreshed: %d huds known\n"
	MsgNothingFound  = "No huds found in %s\n"
	MsgConfigWritten = "Wrote %s\n"

	// Flag descriptions
	MsgFlagVerbose = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagSandbox = "Operate on a throwaway sandbox instead of the real game directory"
	MsgFlagID      = "Identifier to register the hud under (defaults to the scanned name)"
	MsgFlagWrite   = "Write the config file instead of printing it"
)
