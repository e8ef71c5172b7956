package domain

// ProxyVersion is overridden by ldflags
var ProxyVersion = "1.1.0"

const (
	// ServiceVersion is the SPI contract version this host implements.
	ServiceVersion uint32 = 3
	// ServiceVersionMinSupported is the oldest plugin-declared minimum still accepted.
	ServiceVersionMinSupported uint32 = 2
)

const (
	BuildModeDebug   = "DEBUG"
	BuildModeRelease = "RELEASE"
)

// IsRelease reports whether this binary was built in release mode
func IsRelease() bool {
	return BuildMode == BuildModeRelease
}
