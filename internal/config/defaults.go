package config

const (
	defaultVaultDir       = "~/vault"
	defaultDataDir        = "~/.local/share/gleaner"
	defaultLogDir         = "~/.local/share/gleaner/logs"
	defaultToolBinary     = "claude"
	defaultMCPConfig      = "~/.config/gleaner/mcp-minimal.json"
	defaultArticleTimeout = 300
	defaultVideoTimeout   = 600
	defaultAudioTimeout   = 900
	defaultClipTimeout    = 600
	defaultArticleFolder  = "Clippings/Article extractions"
	defaultVideoFolder    = "Clippings/Youtube extractions"
	defaultAudioFolder    = "Clippings"
	defaultClipsFolder    = "Clippings/Unprocessed"
	defaultNtfyTimeout    = 10
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultLogRetention   = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			VaultDir: defaultVaultDir,
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
		},
		Tool: Tool{
			Binary: defaultToolBinary,
			PluginDirs: []string{
				"Claude/skills-pkm",
				"Claude/skills-cto",
			},
			MCPConfig: defaultMCPConfig,
		},
		Processing: Processing{
			ArticleTimeout: defaultArticleTimeout,
			VideoTimeout:   defaultVideoTimeout,
			AudioTimeout:   defaultAudioTimeout,
			ClipTimeout:    defaultClipTimeout,
			ArticleFolder:  defaultArticleFolder,
			VideoFolder:    defaultVideoFolder,
			AudioFolder:    defaultAudioFolder,
			ClipsFolder:    defaultClipsFolder,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetention,
		},
	}
}
