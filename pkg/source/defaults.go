package source

import "time"

// Options selects and configures the default loaders.
type Options struct {
	Timeout   time.Duration
	UserAgent string

	// S3 enables s3:// locations when non-nil.
	S3 *S3Config
}

// NewDefaultMux returns a Mux serving http, https and file locations, and
// s3 when configured.
func NewDefaultMux(opts Options) *Mux {
	var httpOpts []HTTPOption
	if opts.Timeout > 0 {
		httpOpts = append(httpOpts, WithTimeout(opts.Timeout))
	}
	if opts.UserAgent != "" {
		httpOpts = append(httpOpts, WithUserAgent(opts.UserAgent))
	}

	m := NewMux()
	m.Handle(NewHTTPLoader(httpOpts...), "http", "https")
	m.Handle(FileLoader{}, "file")
	if opts.S3 != nil {
		m.Handle(NewS3Loader(NewS3Client(*opts.S3)), "s3")
	}
	return m
}
