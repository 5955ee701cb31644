package config

// SinkName identifies one log destination.
type SinkName string

const (
	SinkConsole   SinkName = "console"
	SinkFile      SinkName = "file"
	SinkException SinkName = "exception"
	SinkRequest   SinkName = "request"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// SinkFilter selects the record predicate a sink applies on top of its level.
type SinkFilter int

const (
	FilterNone SinkFilter = iota
	// FilterRequestOnly accepts only records tagged as request related.
	FilterRequestOnly
)

// Sink is the explicit configuration of one log destination.
type Sink struct {
	Name      SinkName `validate:"required"`
	Enabled   bool
	Level     string `validate:"required"`
	Format    string `validate:"oneof=text json"`
	Path      string `validate:"required_unless=Name console"`
	Rotation  string
	Retention string
	Compress  bool
	Color     bool
	MaxSizeMB int `validate:"gte=0"`
	MaxFiles  int `validate:"gte=0"`
	Filter    SinkFilter
}

// Sinks expands the flat LOG_* options into one entry per destination. Every
// destination is returned; the logger skips the ones that are not Enabled.
func (l Logging) Sinks() []Sink {
	fileFormat := FormatText
	if l.JSON {
		fileFormat = FormatJSON
	}
	exceptionFormat := FormatText
	if l.ExceptionJSON {
		exceptionFormat = FormatJSON
	}

	return []Sink{
		{
			Name:    SinkConsole,
			Enabled: l.Console,
			Level:   l.Level,
			Format:  fileFormat,
			Color:   l.Color,
		},
		{
			Name:      SinkFile,
			Enabled:   l.File != "",
			Level:     l.Level,
			Format:    fileFormat,
			Path:      l.File,
			Rotation:  l.Rotation,
			Retention: l.Retention,
			Compress:  l.Compression,
			MaxSizeMB: l.FileSizeMB,
			MaxFiles:  l.FileCount,
		},
		{
			Name:      SinkException,
			Enabled:   l.Exception && l.ExceptionFile != "",
			Level:     l.ExceptionLevel,
			Format:    exceptionFormat,
			Path:      l.ExceptionFile,
			Rotation:  l.ExceptionRotation,
			Retention: l.ExceptionRetention,
			Compress:  l.ExceptionCompression,
			MaxSizeMB: l.FileSizeMB,
			MaxFiles:  l.FileCount,
		},
		{
			Name:      SinkRequest,
			Enabled:   l.Request && l.RequestFile != "",
			Level:     "INFO",
			Format:    fileFormat,
			Path:      l.RequestFile,
			Rotation:  l.RequestRotation,
			Retention: l.RequestRetention,
			Compress:  l.RequestCompression,
			MaxSizeMB: l.FileSizeMB,
			Filter:    FilterRequestOnly,
		},
	}
}
