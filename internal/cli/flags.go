package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// RecordCommand — run the samplers until interrupted.
type RecordCommand struct {
	NoWindow bool `long:"no-window" description:"Disable the window title sampler"`
	NoKeys   bool `long:"no-keys" description:"Disable the keystroke frequency sampler"`
	Serve    bool `long:"serve" description:"Also run the HTTP control surface"`

	globals *GlobalFlags
	version string
	env     *env // injectable for testing; nil means build from config
}

// ServeCommand — serve the render directory and control endpoints.
type ServeCommand struct {
	Port int `long:"port" description:"Override the listen port"`

	globals *GlobalFlags
	version string
	env     *env
}

// RefreshCommand — rebuild stale day exports once.
type RefreshCommand struct {
	globals *GlobalFlags
	version string
	env     *env
}

// NoteCommand — append a note.
type NoteCommand struct {
	Text string `long:"text" description:"Note text (required)"`
	Time int64  `long:"time" description:"Unix time of the note (default now)"`

	globals *GlobalFlags
	version string
	env     *env
}

// BlogCommand — replace the day's blog.
type BlogCommand struct {
	Text string `long:"text" description:"Blog text"`
	File string `long:"file" description:"Read the blog text from a file"`
	Time int64  `long:"time" description:"Unix time inside the target day (default now)"`

	globals *GlobalFlags
	version string
	env     *env
}

// StatusCommand — show exported days and rebuild history.
type StatusCommand struct {
	Runs int `long:"runs" description:"Number of recent rebuilds to show" default:"5"`

	globals *GlobalFlags
	version string
	env     *env
}

// PruneCommand — delete rebuild history older than the retention period.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 30d)"`

	globals *GlobalFlags
	version string
	env     *env
}
