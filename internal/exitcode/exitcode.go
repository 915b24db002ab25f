package exitcode

const (
	Success         = 0
	UsageError      = 1
	ValidationError = 2
	DBConnError     = 3
	ResolveError    = 4
	EncodeError     = 5
	OutputError     = 6
	LoadError       = 7
)
